package config

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// APIBaseURL returns the back-end base address for a call made on behalf of r.
// With no browser request in scope the loopback fallback is used; otherwise the
// hostname the browser used to reach the station is combined with the API port.
// It is evaluated on every call and must not be cached.
func (a APIConfig) APIBaseURL(r *http.Request) string {
	scheme := a.Scheme
	if scheme == "" {
		scheme = "http"
	}
	host := a.FallbackHost
	if r != nil {
		if h := requestHostname(r); h != "" {
			host = h
		}
	}
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, fmt.Sprint(a.Port)))
}

func requestHostname(r *http.Request) string {
	hostport := r.Host
	if hostport == "" && r.URL != nil {
		hostport = r.URL.Host
	}
	if hostport == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return host
	}
	// No port present; strip IPv6 brackets if any.
	return strings.Trim(hostport, "[]")
}
