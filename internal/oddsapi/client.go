package oddsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jeanpatrickreyes/ai-pro-sports/internal/config"
	"github.com/jeanpatrickreyes/ai-pro-sports/internal/utils/httpclient"
)

// ErrMissingAPIKey 未配置API密钥时所有请求直接失败
var ErrMissingAPIKey = fmt.Errorf("TheOddsAPI key未配置")

// Client TheOddsAPI客户端。负责拉取原始赔率和维护配额计数，
// 配额状态按值暴露给采集结果，不做全局单例
type Client struct {
	cfg        *config.OddsAPIConfig
	httpClient *http.Client
	logger     *logrus.Logger

	mu    sync.Mutex
	quota QuotaStatus
}

// NewClient 创建TheOddsAPI客户端
func NewClient(cfg *config.OddsAPIConfig, logger *logrus.Logger) *Client {
	return &Client{
		cfg: cfg,
		httpClient: httpclient.New(httpclient.Options{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
			Proxy:   cfg.Proxy,
		}, logger),
		logger: logger,
		quota: QuotaStatus{
			MonthlyLimit:      cfg.MonthlyLimit,
			RequestsRemaining: cfg.MonthlyLimit,
		},
	}
}

// FetchOdds 拉取单个运动的全部赔率（所有庄家、指定市场）
func (c *Client) FetchOdds(ctx context.Context, apiSportKey string, markets []string) ([]Event, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	params := url.Values{}
	params.Set("apiKey", c.cfg.APIKey)
	params.Set("regions", c.regions())
	params.Set("markets", strings.Join(markets, ","))
	params.Set("oddsFormat", "american")

	var events []Event
	if err := c.getJSON(ctx, fmt.Sprintf("/v4/sports/%s/odds", apiSportKey), params, &events); err != nil {
		return nil, fmt.Errorf("拉取%s赔率失败: %w", apiSportKey, err)
	}
	return events, nil
}

// FetchSports 拉取TheOddsAPI支持的运动列表
func (c *Client) FetchSports(ctx context.Context) ([]Sport, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	params := url.Values{}
	params.Set("apiKey", c.cfg.APIKey)

	var sports []Sport
	if err := c.getJSON(ctx, "/v4/sports", params, &sports); err != nil {
		return nil, fmt.Errorf("拉取运动列表失败: %w", err)
	}
	return sports, nil
}

// Quota 返回配额快照（按值拷贝）
func (c *Client) Quota() QuotaStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quota
}

// getJSON 带重试的GET请求，每次响应后从头部更新配额计数
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	fullURL := fmt.Sprintf("%s%s?%s", strings.TrimRight(c.cfg.BaseURL, "/"), path, params.Encode())

	attempts := c.cfg.RetryCount + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i) * time.Second):
			}
			c.logger.WithField("attempt", i+1).Warn("TheOddsAPI请求重试")
		}

		lastErr = c.doOnce(ctx, fullURL, out)
		if lastErr == nil {
			return nil
		}
		// 请求本身被取消/超时不再重试
		if ctx.Err() != nil {
			return lastErr
		}
		// 4xx为永久失败（密钥无效、路径不存在），重试只会烧配额
		var ae *apiError
		if errors.As(lastErr, &ae) && !ae.retryable() {
			return lastErr
		}
	}
	return lastErr
}

// apiError 上游的非200响应
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("TheOddsAPI返回%d: %s", e.status, e.body)
}

// retryable 5xx和429可重试，其余状态视为永久失败
func (e *apiError) retryable() bool {
	return e.status >= 500 || e.status == http.StatusTooManyRequests
}

func (c *Client) doOnce(ctx context.Context, fullURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.updateQuota(resp.Header)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &apiError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// updateQuota 从x-requests-used/x-requests-remaining响应头更新配额
func (c *Client) updateQuota(h http.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quota.LastRequestAt = time.Now()
	if v := h.Get("x-requests-used"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.quota.RequestsUsed = n
		}
	}
	if v := h.Get("x-requests-remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.quota.RequestsRemaining = n
		}
	}
}

func (c *Client) regions() string {
	if c.cfg.Regions != "" {
		return c.cfg.Regions
	}
	return "us"
}
