package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
)

// 文档注释：来源 IP 白名单（单 IP + CIDR）
// 背景：服务通常运行在果园现场的笔记本或树莓派上，只应被同一局域网内的手持设备访问。
// 约束：
// - 未启用时直接放行；启用后不在白名单内的请求返回 403；
// - 来源 IP 以 RemoteAddr 为准，配置 ALLOW_REAL_IP_HEADER 时取该头中首个有效 IP；
// - 支持 IPv4/IPv6。
type Allowlist struct {
	l            *slog.Logger
	enabled      bool
	allowIPs     map[string]struct{}
	allowCIDRs   []*net.IPNet
	realIPHeader string
}

// AllowlistFromEnv：
// ALLOW_ENABLE=true                 是否启用
// ALLOW_IPS=192.168.1.20,...        允许的单 IP（逗号分隔）
// ALLOW_CIDRS=192.168.0.0/16,...    允许的网段（逗号分隔）
// ALLOW_LOCAL=true                  允许 127.0.0.1/::1（缺省 true）
// ALLOW_REAL_IP_HEADER=X-Forwarded-For
func AllowlistFromEnv(l *slog.Logger) *Allowlist {
	a := NewAllowlist(l, os.Getenv("ALLOW_ENABLE") == "true",
		splitList(os.Getenv("ALLOW_IPS")), splitList(os.Getenv("ALLOW_CIDRS")))
	if os.Getenv("ALLOW_LOCAL") != "false" {
		a.allowIPs["127.0.0.1"] = struct{}{}
		a.allowIPs["::1"] = struct{}{}
	}
	a.realIPHeader = strings.TrimSpace(os.Getenv("ALLOW_REAL_IP_HEADER"))
	return a
}

// NewAllowlist：非法 IP 与网段被忽略并记录
func NewAllowlist(l *slog.Logger, enabled bool, ips, cidrs []string) *Allowlist {
	a := &Allowlist{l: l, enabled: enabled, allowIPs: map[string]struct{}{}}
	for _, p := range ips {
		if ip := net.ParseIP(p); ip != nil {
			a.allowIPs[ip.String()] = struct{}{}
		} else {
			l.Warn("allowlist_bad_ip", "value", p)
		}
	}
	for _, c := range cidrs {
		if _, n, err := net.ParseCIDR(c); err == nil {
			a.allowCIDRs = append(a.allowCIDRs, n)
		} else {
			l.Warn("allowlist_bad_cidr", "value", c)
		}
	}
	return a
}

func (a *Allowlist) Wrap(next http.Handler) http.Handler {
	if !a.enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := a.clientIP(r)
		if !a.allowed(ip) {
			a.l.Warn("allowlist_deny", "ip", ip, "path", r.URL.Path)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Allowlist) allowed(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if _, ok := a.allowIPs[ip.String()]; ok {
		return true
	}
	for _, n := range a.allowCIDRs {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func (a *Allowlist) clientIP(r *http.Request) net.IP {
	if a.realIPHeader != "" {
		for _, p := range strings.Split(r.Header.Get(a.realIPHeader), ",") {
			if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
