package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"DietServer/config"
	"DietServer/pkg/logger"

	"github.com/sony/gobreaker"
)

// Food 识别出的单种食物
type Food struct {
	Name     string `json:"name"`
	Calories int    `json:"calories"` // kcal
	Weight   int    `json:"weight"`   // g
}

// Result 识别结果
type Result struct {
	Foods         []Food `json:"foods"`
	TotalCalories int    `json:"total_calories"`
}

// IRecognizer 食物识别接口
type IRecognizer interface {
	// Recognize 根据图片 URL 识别食物与热量
	Recognize(ctx context.Context, imageURL string) (*Result, error)
}

var (
	// ErrUnavailable 识别服务不可用（熔断开启或重试耗尽）
	ErrUnavailable = errors.New("vision service unavailable")

	// ErrBadResponse 识别服务返回了无法解析的响应
	ErrBadResponse = errors.New("vision service bad response")
)

// httpRecognizer 基于 HTTP API 的识别实现
// 外部大模型 API 延迟与可用性都不稳定，熔断 + 有限重试兜底
type httpRecognizer struct {
	cfg     config.VisionConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewRecognizer 创建食物识别客户端
func NewRecognizer(cfg config.VisionConfig) IRecognizer {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "vision-api",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// 失败率超过 50% 且请求数超过 5 次时触发熔断
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info(context.Background(), "熔断器状态变化",
				logger.String("name", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})

	return &httpRecognizer{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		breaker: breaker,
	}
}

type recognizeRequest struct {
	Model    string `json:"model"`
	ImageURL string `json:"image_url"`
}

// Recognize 根据图片 URL 识别食物与热量
// 重试仅针对网络错误与 5xx；4xx 是请求本身的问题，立即失败
func (r *httpRecognizer) Recognize(ctx context.Context, imageURL string) (*Result, error) {
	var lastErr error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			// 线性退避
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.cfg.RetryInterval * time.Duration(attempt)):
			}
		}

		result, err := r.breaker.Execute(func() (interface{}, error) {
			return r.doRequest(ctx, imageURL)
		})
		if err == nil {
			return result.(*Result), nil
		}

		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, ErrUnavailable
		}
		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
	}

	logger.Warn(ctx, "食物识别重试耗尽",
		logger.Int("max_retries", r.cfg.MaxRetries),
		logger.ErrorField("error", lastErr),
	)
	return nil, ErrUnavailable
}

// retryableError 标记可重试的失败（网络错误/5xx）
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

func (r *httpRecognizer) doRequest(ctx context.Context, imageURL string) (*Result, error) {
	body, err := json.Marshal(recognizeRequest{
		Model:    r.cfg.Model,
		ImageURL: imageURL,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &retryableError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, &retryableError{err: fmt.Errorf("vision api status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrBadResponse, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &retryableError{err: err}
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	// 部分模型只给明细不给总量，兜底累加
	if result.TotalCalories == 0 {
		for _, f := range result.Foods {
			result.TotalCalories += f.Calories
		}
	}
	return &result, nil
}
