package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// Origin websocket 握手的 Origin 校验；allowed 为空时不限制。
// 条目支持 "*.example.com" 这种子域名通配。
func Origin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// 非浏览器客户端
			return true
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return false
		}
		host := strings.ToLower(u.Hostname())
		for _, a := range allowed {
			a = strings.ToLower(strings.TrimSpace(a))
			switch {
			case a == "*":
				return true
			case strings.HasPrefix(a, "*."):
				if strings.HasSuffix(host, a[1:]) {
					return true
				}
			case a == host || a == strings.ToLower(u.Host):
				return true
			}
		}
		return false
	}
}
