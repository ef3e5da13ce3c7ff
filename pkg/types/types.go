package types

// URLResult は、特定のURLから抽出された結果、またはその処理中に発生したエラーを保持します。
// Enricher はこの値を記事ごとに生成し、成功時のみ記事の本文へ反映します。
type URLResult struct {
	URL     string // 処理対象のURL
	Content string // 抽出された段落テキスト
	Error   error  // 処理中に発生したエラー
}
