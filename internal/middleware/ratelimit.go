// 包 middleware：HTTP 入口的访问控制与限流
package middleware

import (
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"olive-mapper/internal/logger"
)

// 文档注释：令牌桶限流（每秒）
// 背景：导入与测距接口会触发整篇持久化或外部检测服务调用，突发请求需要限速。
// 约束：简化实现，不排队，超出即返回 429；每个自然秒重置令牌。
type TokenBucket struct {
	capacity int
	tokens   int
	lastSec  int64
	now      func() time.Time
	mu       sync.Mutex
}

func NewTokenBucket(qps int) *TokenBucket {
	return &TokenBucket{capacity: qps, tokens: qps, lastSec: time.Now().Unix(), now: time.Now}
}

func (tb *TokenBucket) allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	nowSec := tb.now().Unix()
	if tb.lastSec != nowSec {
		tb.lastSec = nowSec
		tb.tokens = tb.capacity
	}
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Limit：用令牌桶包裹处理器
func Limit(tb *TokenBucket, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !tb.allow() {
			logger.L().Debug("rate_limited", "path", r.URL.Path)
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Wrap：按环境变量组合访问控制与限流
// RATE_LIMIT_ENABLED=true 启用限流，RATE_LIMIT_QPS 为每秒请求数（缺省 200）；访问控制见 AllowlistFromEnv
func Wrap(next http.Handler) http.Handler {
	h := AllowlistFromEnv(logger.L()).Wrap(next)
	if os.Getenv("RATE_LIMIT_ENABLED") == "true" {
		qps := 200
		if s := os.Getenv("RATE_LIMIT_QPS"); s != "" {
			if n, e := strconv.Atoi(s); e == nil && n > 0 {
				qps = n
			}
		}
		return Limit(NewTokenBucket(qps), h)
	}
	return h
}
