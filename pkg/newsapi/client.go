// Package newsapi は、ニュースAPIからトップヘッドラインを取得するクライアントを提供します。
package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/httpclient"
	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/types"
)

const (
	DefaultEndpoint = "https://newsapi.org/v2/top-headlines"
	DefaultCountry  = "us"
	DefaultPageSize = 100
	// DefaultTimeout はAPI呼び出し1回あたりのタイムアウトです。
	DefaultTimeout = 30 * time.Second

	statusOK       = "ok"
	unknownMessage = "Unknown error"
)

var (
	// ErrMissingAPIKey はAPIキーが設定されていないことを示します。ネットワーク呼び出しの前に返されます。
	ErrMissingAPIKey = errors.New("News API key not configured in environment variables")
	// ErrConnectivity はAPIに到達できない、または2xx以外の応答が返されたことを示します。
	ErrConnectivity = errors.New("Connection error")
	// ErrAPI はAPIの応答エンベロープが "ok" 以外のステータスを返したことを示します。
	ErrAPI = errors.New("API Error")
)

// Fetcher は、URLからレスポンスボディを取得する機能のインターフェースです。
// *httpclient.Client はこのインターフェースを満たします。
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// Client はニュースAPIのクライアントです。
type Client struct {
	apiKey   string
	endpoint string
	country  string
	pageSize int
	fetcher  Fetcher
}

// Option は Client の設定を行うための関数型です。
type Option func(*Client)

// WithEndpoint はAPIのエンドポイントを差し替えます。
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithCountry は国コードを設定します。
func WithCountry(country string) Option {
	return func(c *Client) {
		if country != "" {
			c.country = country
		}
	}
}

// WithPageSize は取得件数を設定します。
func WithPageSize(size int) Option {
	return func(c *Client) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

// WithHTTPClient はHTTP取得の実装を差し替えます。
func WithHTTPClient(f Fetcher) Option {
	return func(c *Client) {
		if f != nil {
			c.fetcher = f
		}
	}
}

// NewClient は Client を初期化します。APIキーが空の場合は ErrMissingAPIKey を返します。
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	c := &Client{
		apiKey:   apiKey,
		endpoint: DefaultEndpoint,
		country:  DefaultCountry,
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetcher == nil {
		c.fetcher = httpclient.New(DefaultTimeout)
	}
	return c, nil
}

// requestURL はクエリパラメータ付きのリクエストURLを組み立てます。
func (c *Client) requestURL() (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("エンドポイントURLのパースエラー: %w", err)
	}
	q := u.Query()
	q.Set("apiKey", c.apiKey)
	q.Set("country", c.country)
	q.Set("pageSize", strconv.Itoa(c.pageSize))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FetchHeadlines はトップヘッドラインを1回のGETで取得し、記事のバッチとして返します。
// 空のリストはエラーではありません。
func (c *Client) FetchHeadlines(ctx context.Context) (types.Batch, error) {
	reqURL, err := c.requestURL()
	if err != nil {
		return nil, err
	}

	body, err := c.fetcher.FetchBytes(ctx, reqURL)
	if err != nil {
		return nil, connectivityError(err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: レスポンスのJSON解析に失敗しました: %v", ErrAPI, err)
	}
	if env.Status != statusOK {
		return nil, fmt.Errorf("%w: %s", ErrAPI, env.message())
	}

	batch := make(types.Batch, 0, len(env.Articles))
	for _, raw := range env.Articles {
		batch = append(batch, raw.toArticle())
	}
	return batch, nil
}

// connectivityError は取得エラーを ErrConnectivity でラップします。
// エラー応答のボディがAPIのエンベロープであれば、上流のメッセージを含めます。
func connectivityError(err error) error {
	if status, body, ok := httpclient.StatusBody(err); ok {
		var env envelope
		if json.Unmarshal(body, &env) == nil && env.Message != "" {
			return fmt.Errorf("%w: ステータスコード %d: %s: %w", ErrConnectivity, status, env.Message, err)
		}
	}
	return fmt.Errorf("%w: %w", ErrConnectivity, err)
}
