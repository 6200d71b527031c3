package main

import (
	"log/slog"
	"net/http"
	"os"
	"strings"

	"olive-mapper/internal/logger"
)

// serveRedirect：HTTP 到 HTTPS 的重定向（不改变 HTTPS 运行端口）
// 约束：TLS_REDIRECT_ADDR 缺省 :80
func serveRedirect(l *slog.Logger, httpsAddr string) {
	redirAddr := os.Getenv("TLS_REDIRECT_ADDR")
	if redirAddr == "" {
		redirAddr = ":80"
	}
	httpRedir := http.NewServeMux()
	httpRedir.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		target := redirectTarget(r.Host, httpsAddr, r.URL.RequestURI())
		http.Redirect(w, r, target, http.StatusMovedPermanently)
		l.Debug("http_redirect", "from", r.Host, "to", target)
	})
	l.Info("http_redirect_listening", "addr", redirAddr, "to", "https"+httpsAddr)
	_ = http.ListenAndServe(redirAddr, logger.AccessMiddleware(l)(httpRedir))
}

// redirectTarget：替换 Host 中的端口为 HTTPS 服务端口
func redirectTarget(host, httpsAddr, uri string) string {
	httpsPort := httpsAddr
	if i := strings.LastIndex(httpsAddr, ":"); i != -1 {
		httpsPort = httpsAddr[i+1:]
	}
	baseHost := host
	if i := strings.LastIndex(host, ":"); i != -1 && !strings.HasSuffix(host, "]") {
		baseHost = host[:i]
	}
	if httpsPort != "" && httpsPort != "443" {
		baseHost = baseHost + ":" + httpsPort
	}
	return "https://" + baseHost + uri
}
