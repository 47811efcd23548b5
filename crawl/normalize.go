package crawl

import (
	"net"
	"net/url"
	"strings"

	"github.com/fwojciec/idedocs"
)

// NormalizeURL returns the canonical form of rawURL used as the visited-set
// key: lower-case scheme and host, default port dropped, fragment stripped,
// and "/" for an empty path. Only absolute http(s) URLs are accepted.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", idedocs.Errorf(idedocs.EINVALID, "invalid URL %q", rawURL)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", idedocs.Errorf(idedocs.EINVALID, "unsupported URL scheme %q", rawURL)
	}
	if u.Host == "" {
		return "", idedocs.Errorf(idedocs.EINVALID, "URL %q has no host", rawURL)
	}

	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	switch {
	case port != "":
		host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		host = "[" + host + "]"
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil
	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}
	return u.String(), nil
}

// hostOf returns the host of a normalized URL.
func hostOf(normalized string) string {
	u, err := url.Parse(normalized)
	if err != nil {
		return ""
	}
	return u.Host
}
