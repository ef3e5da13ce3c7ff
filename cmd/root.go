package cmd

import (
	"fmt"
	"time"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/CarlosDiazData/news-analysis-pipeline/internal/config"
	"github.com/CarlosDiazData/news-analysis-pipeline/internal/logger"
	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/enrich"
	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/newsapi"
)

const appName = "news-pipeline"

// AppFlags はこのアプリケーション固有の永続フラグを保持します。
// 指定されたフラグは同名の環境変数より優先されます。
type AppFlags struct {
	Country       string
	PageSize      int
	FeedURLs      string
	DBDriver      string
	DBURL         string
	APITimeout    time.Duration
	ScrapeTimeout time.Duration
	MaxRetries    int
	RateLimit     float64
	LogLevel      string
}

var Flags AppFlags

var (
	appConfig *config.Config
	appLogger logger.Logger = logger.NewNop()
)

// flagKeys はフラグ名と設定キーの対応です。サブコマンド固有のフラグも含みます。
var flagKeys = map[string]string{
	"country":         config.KeyNewsCountry,
	"page-size":       config.KeyNewsPageSize,
	"feeds":           config.KeyFeedURLs,
	"db-driver":       config.KeyDatabaseDriver,
	"db-url":          config.KeyDatabaseURL,
	"api-timeout":     config.KeyAPITimeout,
	"scrape-timeout":  config.KeyScrapeTimeout,
	"max-retries":     config.KeyMaxRetries,
	"rate-limit":      config.KeyScrapeRateLimit,
	"log-level":       config.KeyLogLevel,
	"schedule":        config.KeySchedule,
	"run-retries":     config.KeyRunRetries,
	"run-retry-delay": config.KeyRunRetryDelay,
}

// addAppPersistentFlags は、アプリケーション固有の永続フラグをルートコマンドに追加します。
func addAppPersistentFlags(rootCmd *cobra.Command) {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&Flags.Country, "country", newsapi.DefaultCountry, "ヘッドラインの国コード (NEWS_COUNTRY)")
	pf.IntVar(&Flags.PageSize, "page-size", newsapi.DefaultPageSize, "取得する記事数 (NEWS_PAGE_SIZE)")
	pf.StringVar(&Flags.FeedURLs, "feeds", "", "APIの代わりに使うRSS/Atomフィードのカンマ区切りURL (FEED_URLS)")
	pf.StringVar(&Flags.DBDriver, "db-driver", "postgres", "データベースドライバー: postgres または sqlite3 (DATABASE_DRIVER)")
	pf.StringVar(&Flags.DBURL, "db-url", "", "データベースの接続文字列 (DATABASE_URL)")
	pf.DurationVar(&Flags.APITimeout, "api-timeout", newsapi.DefaultTimeout, "API呼び出しのタイムアウト (API_TIMEOUT)")
	pf.DurationVar(&Flags.ScrapeTimeout, "scrape-timeout", enrich.DefaultScrapeTimeout, "記事ページ取得のタイムアウト (SCRAPE_TIMEOUT)")
	pf.IntVar(&Flags.MaxRetries, "max-retries", 0, "HTTPリクエストのリトライ最大回数 (MAX_RETRIES)")
	pf.Float64Var(&Flags.RateLimit, "rate-limit", 0, "1秒あたりの記事ページ取得数の上限。0 は無制限 (SCRAPE_RATE_LIMIT)")
	pf.StringVar(&Flags.LogLevel, "log-level", config.DefaultLogLevel, "ログレベル: debug, info, warn, error (LOG_LEVEL)")
}

// bindFlags は実行中のコマンドで利用可能なフラグを設定キーにバインドします。
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("フラグ --%s のバインドに失敗しました: %w", name, err)
		}
	}
	return nil
}

// initAppPreRunE は、clibase共通処理の後に実行される、アプリケーション固有のPersistentPreRunEです。
// 設定とロガーを初期化します。
func initAppPreRunE(cmd *cobra.Command, args []string) error {
	if err := config.LoadEnvFiles(); err != nil {
		return err
	}

	v := viper.New()
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}

	level := cfg.LogLevel
	if clibase.Flags.Verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Config{Level: level})
	if err != nil {
		return err
	}

	appConfig = cfg
	appLogger = log.With(logger.String("app", appName))
	appLogger.Debug("設定を読み込みました",
		logger.Bool("use_feeds", cfg.UseFeeds()),
		logger.String("db_driver", cfg.DatabaseDriver),
		logger.Duration("api_timeout", cfg.APITimeout),
		logger.Duration("scrape_timeout", cfg.ScrapeTimeout))
	return nil
}

// GetConfig は初期化済みの設定を返します。
func GetConfig() *config.Config {
	return appConfig
}

// syncLogOnReturn は各サブコマンドの RunE の終了時にロガーを書き出すようにします。
// clibase.Execute はエラー時に os.Exit するため、Execute 側の defer では書き出されません。
func syncLogOnReturn(cmds ...*cobra.Command) {
	for _, c := range cmds {
		runE := c.RunE
		if runE == nil {
			continue
		}
		c.RunE = func(cmd *cobra.Command, args []string) error {
			defer func() { _ = appLogger.Sync() }()
			return runE(cmd, args)
		}
	}
}

// Execute は、clibase を使ってルートコマンドを構築し、実行します。
func Execute() {
	defer func() { _ = appLogger.Sync() }()

	cmds := []*cobra.Command{runCmd, fetchCmd, extractCmd, enrichCmd, scheduleCmd}
	syncLogOnReturn(cmds...)

	clibase.Execute(
		appName,
		addAppPersistentFlags,
		initAppPreRunE,
		cmds...,
	)
}
