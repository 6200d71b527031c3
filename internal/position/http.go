package position

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"olive-mapper/internal/logger"
)

// 文档注释：HTTP 定位提供者
// 背景：设备上的定位守护进程（如 gpsd 桥接）通过 HTTP 暴露当前位置，约定 GET 返回 {latitude, longitude, accuracy}。
// 约束：
// - 401/403 视为权限拒绝，其他非 200 与解析失败视为不可用，上下文超时视为超时；
// - 经纬度非有限数时视为不可用。
type HTTPProvider struct {
	endpoint string
	client   *http.Client
}

// NewHTTP：client 为空时使用无超时客户端（超时由调用方上下文控制）
func NewHTTP(endpoint string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPProvider{endpoint: endpoint, client: client}
}

func (h *HTTPProvider) Locate(ctx context.Context) (Fix, error) {
	fix, err := h.locate(ctx)
	if err != nil {
		logger.L().Warn("position_http_error", "endpoint", h.endpoint, "err", err)
		return Fix{}, err
	}
	return fix, nil
}

func (h *HTTPProvider) locate(ctx context.Context) (Fix, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.endpoint, nil)
	if err != nil {
		return Fix{}, &Error{Kind: Unavailable, Err: err}
	}
	t0 := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Fix{}, &Error{Kind: Timeout, Err: err}
		}
		return Fix{}, &Error{Kind: Unavailable, Err: err}
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Fix{}, &Error{Kind: PermissionDenied, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return Fix{}, &Error{Kind: Unavailable, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	var m struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		Accuracy  float64  `json:"accuracy"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return Fix{}, &Error{Kind: Unavailable, Err: err}
	}
	if m.Latitude == nil || m.Longitude == nil || !finite(*m.Latitude) || !finite(*m.Longitude) {
		return Fix{}, &Error{Kind: Unavailable, Err: errors.New("fix without coordinates")}
	}
	logger.L().Debug("position_http_ok", "duration_ms", time.Since(t0).Milliseconds(), "accuracy", m.Accuracy)
	return Fix{Latitude: *m.Latitude, Longitude: *m.Longitude, Accuracy: m.Accuracy, Time: time.Now()}, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
