package client

import (
	"fmt"
	"net/http"
	"net/url"
)

// DefaultCSRFCookie is the cookie the store issues its anti-forgery token in.
const DefaultCSRFCookie = "csrftoken"

// CSRFHeader carries the anti-forgery token on every mutating request.
const CSRFHeader = "X-CSRFToken"

// StaticToken is a fixed anti-forgery token.
type StaticToken string

// Token implements port.TokenSource.
func (t StaticToken) Token() string { return string(t) }

// CookieTokenSource reads the anti-forgery token from a cookie jar shared
// with the HTTP client, so a token set by any store response is picked up.
type CookieTokenSource struct {
	jar      http.CookieJar
	target   *url.URL
	name     string
	fallback string
}

// NewCookieTokenSource builds a source reading cookie name for baseURL.
// fallback is returned while the jar holds no such cookie.
func NewCookieTokenSource(jar http.CookieJar, baseURL, name, fallback string) (*CookieTokenSource, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if name == "" {
		name = DefaultCSRFCookie
	}
	return &CookieTokenSource{jar: jar, target: u, name: name, fallback: fallback}, nil
}

// Token implements port.TokenSource.
func (s *CookieTokenSource) Token() string {
	if s.jar == nil {
		return s.fallback
	}
	for _, c := range s.jar.Cookies(s.target) {
		if c.Name != s.name {
			continue
		}
		if v, err := url.QueryUnescape(c.Value); err == nil {
			return v
		}
		return c.Value
	}
	return s.fallback
}
