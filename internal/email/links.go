package email

import (
	"fmt"
	"net/url"
	"strings"
)

type Platform string

const (
	PlatformWeb    Platform = "web"
	PlatformNative Platform = "native"
)

// Links строит ссылки в веб-приложение или нативное приложение
type Links struct {
	base         *url.URL
	nativeScheme string
	allowed      map[string]struct{}
}

func NewLinks(appBaseURL, nativeScheme string) (*Links, error) {
	base, err := url.Parse(strings.TrimRight(appBaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse app base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("app base url must be http or https, got %q", appBaseURL)
	}
	nativeScheme = strings.ToLower(strings.TrimSuffix(nativeScheme, "://"))
	if nativeScheme == "" {
		return nil, fmt.Errorf("native scheme is required")
	}

	return &Links{
		base:         base,
		nativeScheme: nativeScheme,
		allowed: map[string]struct{}{
			"http":       {},
			"https":      {},
			nativeScheme: {},
		},
	}, nil
}

// DeepLink возвращает ссылку на path для платформы
func (l *Links) DeepLink(platform Platform, path string, query url.Values) (string, error) {
	path = "/" + strings.TrimLeft(path, "/")

	var u *url.URL
	switch platform {
	case PlatformWeb, "":
		u = l.base.JoinPath(path)
	case PlatformNative:
		// schoolrun://groups/1 - первый сегмент пути становится host
		trimmed := strings.TrimPrefix(path, "/")
		host, rest, _ := strings.Cut(trimmed, "/")
		u = &url.URL{Scheme: l.nativeScheme, Host: host}
		if rest != "" {
			u.Path = "/" + rest
		}
	default:
		return "", fmt.Errorf("unknown platform %q", platform)
	}

	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	if !l.Allowed(u.String()) {
		return "", fmt.Errorf("scheme %q is not allowed", u.Scheme)
	}
	return u.String(), nil
}

// Allowed проверяет, что ссылка использует разрешённую схему
func (l *Links) Allowed(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	_, ok := l.allowed[strings.ToLower(u.Scheme)]
	return ok
}
