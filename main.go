package main

import "github.com/CarlosDiazData/news-analysis-pipeline/cmd"

func main() {
	cmd.Execute()
}
