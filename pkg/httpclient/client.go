package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/retry"
)

const (
	// HTTPクライアント関連の定数
	DefaultHTTPTimeout = 30 * time.Second
	MaxBodySize        = int64(10 * 1024 * 1024) // 10MB: レスポンスボディの最大読み込みサイズ

	// エラーメッセージに含めるボディの最大長
	maxErrorBodyLength = 1024

	// サイトからのブロックを避けるためのUser-Agent
	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36"
)

// Doer は、標準の *http.Client.Do() と互換性のあるHTTPクライアントのインターフェースです。
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NonRetryableHTTPError はHTTP 4xx系のステータスコードエラーを示すカスタムエラー型です。
type NonRetryableHTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *NonRetryableHTTPError) Error() string {
	if len(e.Body) > 0 {
		return fmt.Sprintf("HTTPクライアントエラー (非リトライ対象): ステータスコード %d, ボディ: %s", e.StatusCode, truncateBody(e.Body))
	}
	return fmt.Sprintf("HTTPクライアントエラー (非リトライ対象): ステータスコード %d, ボディなし", e.StatusCode)
}

// ServerHTTPError はHTTP 5xx系など、リトライ対象のステータスコードエラーです。
type ServerHTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *ServerHTTPError) Error() string {
	if len(e.Body) > 0 {
		return fmt.Sprintf("HTTPステータスコードエラー (リトライ対象): %d, 詳細: %s", e.StatusCode, truncateBody(e.Body))
	}
	return fmt.Sprintf("HTTPステータスコードエラー (リトライ対象): %d", e.StatusCode)
}

// truncateBody はエラーメッセージ用にボディを切り詰めます。
func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBodyLength {
		return s[:maxErrorBodyLength] + "..."
	}
	return s
}

// StatusBody は、エラーがHTTPステータスエラーの場合にステータスコードとボディを返します。
func StatusBody(err error) (int, []byte, bool) {
	var nonRetryable *NonRetryableHTTPError
	if errors.As(err, &nonRetryable) {
		return nonRetryable.StatusCode, nonRetryable.Body, true
	}
	var server *ServerHTTPError
	if errors.As(err, &server) {
		return server.StatusCode, server.Body, true
	}
	return 0, nil, false
}

// Client はHTTPリクエストと指数バックオフを用いたリトライロジックを管理します。
type Client struct {
	httpClient  Doer
	retryConfig retry.Config
	userAgent   string
	headers     map[string]string
}

// Option はClientの設定を行うための関数型です。
type Option func(*Client)

// WithHTTPClient はカスタムのDoerを設定します。
func WithHTTPClient(doer Doer) Option {
	return func(c *Client) {
		c.httpClient = doer
	}
}

// WithMaxRetries は最大リトライ回数を設定します。
func WithMaxRetries(max uint64) Option {
	return func(c *Client) {
		c.retryConfig.MaxRetries = max
	}
}

// WithRetryConfig はリトライ設定全体を差し替えます。
func WithRetryConfig(cfg retry.Config) Option {
	return func(c *Client) {
		c.retryConfig = cfg
	}
}

// WithUserAgent はUser-Agentヘッダーを差し替えます。
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithHeader は全リクエストに付与する追加ヘッダーを設定します。
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// New は、新しいClientを生成します。timeout は1リクエストあたりの上限です。
func New(timeout time.Duration, options ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryConfig: retry.DefaultConfig(),
		userAgent:   UserAgent,
		headers:     make(map[string]string),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// addCommonHeaders は共通のHTTPヘッダーを設定します。
func (c *Client) addCommonHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.8,*/*;q=0.7")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
}

// FetchBytes はURLからコンテンツを取得し、生のバイト配列として返します。
// 2xx 以外のステータスはエラーとして扱い、5xx とネットワークエラーのみリトライします。
func (c *Client) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	op := func() error {
		var fetchErr error
		body, fetchErr = c.doFetch(ctx, url)
		return fetchErr
	}

	err := retry.Do(
		ctx,
		c.retryConfig,
		fmt.Sprintf("URL(%s)のフェッチ", url),
		op,
		c.isHTTPRetryableError,
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// doFetch は実際の一度のHTTP GETリクエストを実行します。
func (c *Client) doFetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("GETリクエスト作成に失敗しました: %w", err)
	}
	c.addCommonHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストに失敗しました (ネットワーク/接続エラー): %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponseForRetry(resp); err != nil {
		return nil, err
	}

	return HandleLimitedResponse(resp, MaxBodySize)
}

// HandleLimitedResponse は、レスポンスボディを最大サイズに制限して読み込みます。
func HandleLimitedResponse(resp *http.Response, limit int64) ([]byte, error) {
	if resp.ContentLength > limit {
		return nil, fmt.Errorf("レスポンスボディが最大サイズ (%dバイト) を超えました", limit)
	}
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み込みに失敗しました: %w", err)
	}
	if int64(len(bodyBytes)) > limit {
		return nil, fmt.Errorf("レスポンスボディが最大サイズ (%dバイト) を超えました", limit)
	}
	return bodyBytes, nil
}

// checkResponseForRetry はHTTPレスポンスのステータスコードを評価し、リトライすべきエラーか、非リトライ対象のエラーかを返します。
// 呼び出し元が resp.Body.Close() を実行する必要があります。
func checkResponseForRetry(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))

	if resp.StatusCode >= 500 && resp.StatusCode <= 599 {
		return &ServerHTTPError{StatusCode: resp.StatusCode, Body: bodyBytes}
	}

	return &NonRetryableHTTPError{StatusCode: resp.StatusCode, Body: bodyBytes}
}

// IsNonRetryableError は与えられたエラーが非リトライ対象のHTTPエラーであるかを判断します。
func IsNonRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var nonRetryable *NonRetryableHTTPError
	return errors.As(err, &nonRetryable)
}

// isHTTPRetryableError はエラーがHTTPリトライ対象かどうかを判定します。
func (c *Client) isHTTPRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// 呼び出し元のコンテキストが終了している場合、再試行しても結果は変わらない
	if errors.Is(err, context.Canceled) {
		return false
	}

	// 4xx はリトライしない
	if IsNonRetryableError(err) {
		return false
	}

	// 5xx、ネットワークエラー、リクエスト単位のタイムアウトはリトライ対象
	return true
}
