// Package config は、環境変数・.env ファイル・コマンドラインフラグから実行設定を組み立てます。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/enrich"
	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/newsapi"
	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/store"
)

// 設定キー。環境変数名はキーを大文字にしたものです (例: news_api_key → NEWS_API_KEY)。
const (
	KeyNewsAPIKey      = "news_api_key"
	KeyNewsAPIEndpoint = "news_api_endpoint"
	KeyNewsCountry     = "news_country"
	KeyNewsPageSize    = "news_page_size"
	KeyDatabaseDriver  = "database_driver"
	KeyDatabaseURL     = "database_url"
	KeyAPITimeout      = "api_timeout"
	KeyScrapeTimeout   = "scrape_timeout"
	KeyMaxRetries      = "max_retries"
	KeyScrapeRateLimit = "scrape_rate_limit"
	KeyLexiconPath     = "lexicon_path"
	KeyGazetteerPath   = "gazetteer_path"
	KeyFeedURLs        = "feed_urls"
	KeySchedule        = "schedule"
	KeyRunRetries      = "run_retries"
	KeyRunRetryDelay   = "run_retry_delay"
	KeyLogLevel        = "log_level"
)

const (
	DefaultSchedule      = "@daily"
	DefaultRunRetries    = 2
	DefaultRunRetryDelay = 5 * time.Minute
	DefaultLogLevel      = "info"
)

var (
	// ErrMissingAPIKey はAPIキーが設定されていないことを示します。
	ErrMissingAPIKey = newsapi.ErrMissingAPIKey
	// ErrMissingDatabaseURL は保存先の接続文字列が設定されていないことを示します。
	ErrMissingDatabaseURL = errors.New("DATABASE_URL が設定されていません")
)

// Config はパイプライン1回分の実行設定です。
type Config struct {
	NewsAPIKey      string
	NewsAPIEndpoint string
	NewsCountry     string
	NewsPageSize    int

	DatabaseDriver string
	DatabaseURL    string

	APITimeout    time.Duration
	ScrapeTimeout time.Duration
	MaxRetries    uint64
	// ScrapeRateLimit は1秒あたりのページ取得数の上限です。0 以下は無制限です。
	ScrapeRateLimit float64

	LexiconPath   string
	GazetteerPath string
	// FeedURLs が空でない場合、ヘッドラインはAPIではなくフィードから取得します。
	FeedURLs []string

	Schedule      string
	RunRetries    int
	RunRetryDelay time.Duration

	LogLevel string
}

// UseFeeds はフィードを取得元とするかを返します。
func (c *Config) UseFeeds() bool {
	return len(c.FeedURLs) > 0
}

// LoadEnvFiles は .env.local と .env を読み込みます。既存の環境変数は上書きしません。
// ファイルが存在しない場合は無視します。
func LoadEnvFiles() error {
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%s の読み込みに失敗しました: %w", name, err)
		}
	}
	return nil
}

// SetDefaults は v に既定値を登録し、環境変数を自動で参照するよう設定します。
func SetDefaults(v *viper.Viper) {
	v.AutomaticEnv()
	v.SetDefault(KeyNewsAPIEndpoint, newsapi.DefaultEndpoint)
	v.SetDefault(KeyNewsCountry, newsapi.DefaultCountry)
	v.SetDefault(KeyNewsPageSize, newsapi.DefaultPageSize)
	v.SetDefault(KeyDatabaseDriver, store.DriverPostgres)
	v.SetDefault(KeyAPITimeout, newsapi.DefaultTimeout)
	v.SetDefault(KeyScrapeTimeout, enrich.DefaultScrapeTimeout)
	v.SetDefault(KeyMaxRetries, 0)
	v.SetDefault(KeyScrapeRateLimit, 0)
	v.SetDefault(KeySchedule, DefaultSchedule)
	v.SetDefault(KeyRunRetries, DefaultRunRetries)
	v.SetDefault(KeyRunRetryDelay, DefaultRunRetryDelay)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
}

// Load は v から Config を組み立てます。フラグのバインドは呼び出し側で済ませておく必要があります。
// 値の検証は行いません。用途に応じて Validate 系のメソッドを呼び出してください。
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{
		NewsAPIKey:      strings.TrimSpace(v.GetString(KeyNewsAPIKey)),
		NewsAPIEndpoint: v.GetString(KeyNewsAPIEndpoint),
		NewsCountry:     v.GetString(KeyNewsCountry),
		NewsPageSize:    v.GetInt(KeyNewsPageSize),
		DatabaseDriver:  v.GetString(KeyDatabaseDriver),
		DatabaseURL:     strings.TrimSpace(v.GetString(KeyDatabaseURL)),
		APITimeout:      v.GetDuration(KeyAPITimeout),
		ScrapeTimeout:   v.GetDuration(KeyScrapeTimeout),
		MaxRetries:      v.GetUint64(KeyMaxRetries),
		ScrapeRateLimit: v.GetFloat64(KeyScrapeRateLimit),
		LexiconPath:     v.GetString(KeyLexiconPath),
		GazetteerPath:   v.GetString(KeyGazetteerPath),
		FeedURLs:        splitList(v.GetString(KeyFeedURLs)),
		Schedule:        v.GetString(KeySchedule),
		RunRetries:      v.GetInt(KeyRunRetries),
		RunRetryDelay:   v.GetDuration(KeyRunRetryDelay),
		LogLevel:        v.GetString(KeyLogLevel),
	}

	if cfg.APITimeout <= 0 {
		return nil, fmt.Errorf("API_TIMEOUT は正の値である必要があります: %s", v.GetString(KeyAPITimeout))
	}
	if cfg.ScrapeTimeout <= 0 {
		return nil, fmt.Errorf("SCRAPE_TIMEOUT は正の値である必要があります: %s", v.GetString(KeyScrapeTimeout))
	}
	if cfg.RunRetries < 0 {
		return nil, fmt.Errorf("RUN_RETRIES は 0 以上である必要があります: %d", cfg.RunRetries)
	}
	if _, err := store.NormalizeDriver(cfg.DatabaseDriver); err != nil {
		return nil, fmt.Errorf("DATABASE_DRIVER の設定が不正です: %w", err)
	}
	return cfg, nil
}

// ValidateSource はヘッドラインの取得に必要な設定を検証します。
// フィードを使わない場合、APIキーがなければネットワーク呼び出しの前に ErrMissingAPIKey を返します。
func (c *Config) ValidateSource() error {
	if !c.UseFeeds() && c.NewsAPIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// ValidateStore は保存に必要な設定を検証します。
func (c *Config) ValidateStore() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	return nil
}

// Validate はパイプライン全体の実行に必要な設定を検証します。
func (c *Config) Validate() error {
	return errors.Join(c.ValidateSource(), c.ValidateStore())
}

// splitList はカンマ区切りの文字列を空要素を除いて分割します。
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
