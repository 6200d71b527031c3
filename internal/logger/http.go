// 包 logger：API 访问日志；服务端错误（多为持久化失败）提升为 Warn，其余按 Debug 记录
package logger

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"olive-mapper/internal/metrics"
)

// recorder 记录已写出的状态码与字节数
type recorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rw *recorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// statusClass：200 -> "2xx"
func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

// 文档注释：访问日志中间件
// 背景：现场设备的采集、导入与测距请求都经过这里；5xx 记为 http_server_error（Warn），
// 其余记为 http_access（Debug）。指标抓取路径（以 /metrics 结尾）不记日志，只计耗时。
// 约束：不读取请求体；导入文件可能较大且备注属于用户数据。
func AccessMiddleware(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &recorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rw, r)
			ms := time.Since(start).Milliseconds()
			metrics.HTTPDurationMs.WithLabelValues(r.Method, statusClass(rw.status)).Observe(float64(ms))
			if strings.HasSuffix(r.URL.Path, "/metrics") {
				return
			}
			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.status,
				"bytes", rw.bytes,
				"duration_ms", ms,
				"ip", r.RemoteAddr,
			}
			if rw.status >= http.StatusInternalServerError {
				l.Warn("http_server_error", attrs...)
				return
			}
			l.Debug("http_access", attrs...)
		})
	}
}
