package cookie

import (
	"errors"
	"net/http"
	"time"
)

const (
	DefaultAccessName  = "access-token"
	DefaultRefreshName = "refresh-token"
)

type Config struct {
	// Cookie names, defaults are used if empty
	AccessName  string
	RefreshName string

	// Lifetimes, the cookie lives as long as the token in it
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Transport builds and reads session cookies
// Every cookie is HttpOnly, Secure, SameSite=None and valid for the whole site
type Transport struct {
	accessName  string
	refreshName string
	accessTTL   time.Duration
	refreshTTL  time.Duration
}

func New(cfg Config) *Transport {
	if cfg.AccessName == "" {
		cfg.AccessName = DefaultAccessName
	}
	if cfg.RefreshName == "" {
		cfg.RefreshName = DefaultRefreshName
	}

	return &Transport{
		accessName:  cfg.AccessName,
		refreshName: cfg.RefreshName,
		accessTTL:   cfg.AccessTTL,
		refreshTTL:  cfg.RefreshTTL,
	}
}

func (t *Transport) AccessName() string  { return t.accessName }
func (t *Transport) RefreshName() string { return t.refreshName }

func (t *Transport) Access(value string) *http.Cookie {
	return build(t.accessName, value, t.accessTTL)
}

func (t *Transport) Refresh(value string) *http.Cookie {
	return build(t.refreshName, value, t.refreshTTL)
}

// Deletion cookies: empty value and Max-Age=0
func (t *Transport) ClearAccess() *http.Cookie {
	return build(t.accessName, "", 0)
}

func (t *Transport) ClearRefresh() *http.Cookie {
	return build(t.refreshName, "", 0)
}

// Read cookie value. Empty string if cookie is not set
func (t *Transport) ReadAccess(r *http.Request) string {
	return read(r, t.accessName)
}

func (t *Transport) ReadRefresh(r *http.Request) string {
	return read(r, t.refreshName)
}

func build(name string, value string, ttl time.Duration) *http.Cookie {
	maxAge := int(ttl.Seconds())
	if maxAge <= 0 {
		maxAge = -1 // net/http renders negative as 'Max-Age=0'
	}

	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}

func read(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if errors.Is(err, http.ErrNoCookie) {
		return ""
	}
	return c.Value
}
