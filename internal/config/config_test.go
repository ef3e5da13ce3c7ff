package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/newsapi"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("NEWS_API_KEY", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("FEED_URLS", "")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, newsapi.DefaultEndpoint, cfg.NewsAPIEndpoint)
	assert.Equal(t, "us", cfg.NewsCountry)
	assert.Equal(t, 100, cfg.NewsPageSize)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, 30*time.Second, cfg.APITimeout)
	assert.Equal(t, 15*time.Second, cfg.ScrapeTimeout)
	assert.Less(t, cfg.ScrapeTimeout, cfg.APITimeout)
	assert.Equal(t, uint64(0), cfg.MaxRetries)
	assert.Equal(t, "@daily", cfg.Schedule)
	assert.Equal(t, 2, cfg.RunRetries)
	assert.Equal(t, 5*time.Minute, cfg.RunRetryDelay)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.UseFeeds())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("NEWS_API_KEY", " abc123 ")
	t.Setenv("NEWS_COUNTRY", "gb")
	t.Setenv("NEWS_PAGE_SIZE", "20")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file:news.db")
	t.Setenv("API_TIMEOUT", "10s")
	t.Setenv("SCRAPE_TIMEOUT", "5s")
	t.Setenv("MAX_RETRIES", "3")
	t.Setenv("SCRAPE_RATE_LIMIT", "2.5")
	t.Setenv("FEED_URLS", "http://a/rss, ,http://b/atom")
	t.Setenv("RUN_RETRY_DELAY", "1m")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "abc123", cfg.NewsAPIKey)
	assert.Equal(t, "gb", cfg.NewsCountry)
	assert.Equal(t, 20, cfg.NewsPageSize)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "file:news.db", cfg.DatabaseURL)
	assert.Equal(t, 10*time.Second, cfg.APITimeout)
	assert.Equal(t, 5*time.Second, cfg.ScrapeTimeout)
	assert.Equal(t, uint64(3), cfg.MaxRetries)
	assert.InDelta(t, 2.5, cfg.ScrapeRateLimit, 1e-9)
	assert.Equal(t, []string{"http://a/rss", "http://b/atom"}, cfg.FeedURLs)
	assert.Equal(t, time.Minute, cfg.RunRetryDelay)
	assert.True(t, cfg.UseFeeds())
}

func TestLoad_ExplicitValueOverridesEnvironment(t *testing.T) {
	t.Setenv("NEWS_COUNTRY", "gb")
	v := viper.New()
	v.Set(KeyNewsCountry, "jp")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "jp", cfg.NewsCountry)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"zero_api_timeout", "API_TIMEOUT", "0s"},
		{"negative_scrape_timeout", "SCRAPE_TIMEOUT", "-1s"},
		{"negative_run_retries", "RUN_RETRIES", "-1"},
		{"unknown_driver", "DATABASE_DRIVER", "oracle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load(viper.New())
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		wantSource error
		wantStore  error
	}{
		{
			name:       "missing_key_and_database",
			cfg:        Config{},
			wantSource: ErrMissingAPIKey,
			wantStore:  ErrMissingDatabaseURL,
		},
		{
			name: "feeds_do_not_need_key",
			cfg:  Config{FeedURLs: []string{"http://a/rss"}, DatabaseURL: "postgres://x"},
		},
		{
			name: "complete",
			cfg:  Config{NewsAPIKey: "k", DatabaseURL: "postgres://x"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.cfg.ValidateSource(), tt.wantSource)
			assert.ErrorIs(t, tt.cfg.ValidateStore(), tt.wantStore)

			err := tt.cfg.Validate()
			if tt.wantSource == nil && tt.wantStore == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantSource))
			assert.True(t, errors.Is(err, tt.wantStore))
		})
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PIPELINE_TEST_VALUE=from-env\nPIPELINE_TEST_SHARED=env\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("PIPELINE_TEST_SHARED=local\n"), 0o644))

	t.Chdir(dir)
	t.Cleanup(func() {
		os.Unsetenv("PIPELINE_TEST_VALUE")
		os.Unsetenv("PIPELINE_TEST_SHARED")
	})

	require.NoError(t, LoadEnvFiles())
	assert.Equal(t, "from-env", os.Getenv("PIPELINE_TEST_VALUE"))
	assert.Equal(t, "local", os.Getenv("PIPELINE_TEST_SHARED"), ".env.local が優先される")
}
