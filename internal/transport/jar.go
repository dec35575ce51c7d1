// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package transport

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"
	"golang.org/x/net/publicsuffix"
)

// CookieRecord is the serializable form of one stored cookie.
type CookieRecord struct {
	Domain   string    `yaml:"domain" json:"domain"`
	HostOnly bool      `yaml:"host_only,omitempty" json:"host_only,omitempty"`
	Path     string    `yaml:"path" json:"path"`
	Name     string    `yaml:"name" json:"name"`
	Value    string    `yaml:"value" json:"value"`
	Secure   bool      `yaml:"secure,omitempty" json:"secure,omitempty"`
	HTTPOnly bool      `yaml:"http_only,omitempty" json:"http_only,omitempty"`
	SameSite string    `yaml:"same_site,omitempty" json:"same_site,omitempty"`
	Expires  time.Time `yaml:"expires,omitempty" json:"expires,omitempty"`
}

type cookieKey struct {
	domain string
	path   string
	name   string
}

// Jar is an http.CookieJar that applies public suffix rules and keeps an
// index of everything stored, so cookies can be removed and exported.
type Jar struct {
	jar *cookiejar.Jar

	mu    sync.Mutex
	index map[cookieKey]CookieRecord
	now   func() time.Time
}

// NewJar creates an empty Jar.
func NewJar() (*Jar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, oops.Code("TRANSPORT_JAR_FAILED").Wrap(err)
	}
	return &Jar{
		jar:   jar,
		index: make(map[cookieKey]CookieRecord),
		now:   time.Now,
	}, nil
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.jar.SetCookies(u, cookies)

	j.mu.Lock()
	defer j.mu.Unlock()
	now := j.now()
	for _, c := range cookies {
		rec := recordFor(u, c)
		key := cookieKey{domain: rec.Domain, path: rec.Path, name: rec.Name}
		if c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(now)) {
			delete(j.index, key)
			continue
		}
		j.index[key] = rec
	}
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}

// Remove drops the cookie name visible to u, whatever path or domain
// attribute it was stored with.
func (j *Jar) Remove(u *url.URL, name string) {
	host := u.Hostname()

	j.mu.Lock()
	var victims []CookieRecord
	for key, rec := range j.index {
		if key.name == name && domainMatches(host, rec) {
			victims = append(victims, rec)
			delete(j.index, key)
		}
	}
	j.mu.Unlock()

	for _, rec := range victims {
		expired := &http.Cookie{
			Name:   rec.Name,
			Value:  "",
			Path:   rec.Path,
			MaxAge: -1,
		}
		if !rec.HostOnly {
			expired.Domain = rec.Domain
		}
		j.jar.SetCookies(&url.URL{Scheme: "https", Host: rec.Domain, Path: rec.Path}, []*http.Cookie{expired})
	}
}

// Export returns every live cookie, sorted by domain, path and name.
func (j *Jar) Export() []CookieRecord {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	out := make([]CookieRecord, 0, len(j.index))
	for _, rec := range j.index {
		if !rec.Expires.IsZero() && rec.Expires.Before(now) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Domain != out[b].Domain {
			return out[a].Domain < out[b].Domain
		}
		if out[a].Path != out[b].Path {
			return out[a].Path < out[b].Path
		}
		return out[a].Name < out[b].Name
	})
	return out
}

// Import stores previously exported cookies.
func (j *Jar) Import(records []CookieRecord) {
	for _, rec := range records {
		u := &url.URL{Scheme: "https", Host: rec.Domain, Path: "/"}
		j.SetCookies(u, []*http.Cookie{rec.Cookie()})
	}
}

// Cookie converts the record back into an http.Cookie.
func (rec CookieRecord) Cookie() *http.Cookie {
	c := &http.Cookie{
		Name:     rec.Name,
		Value:    rec.Value,
		Path:     rec.Path,
		Secure:   rec.Secure,
		HttpOnly: rec.HTTPOnly,
		Expires:  rec.Expires,
		SameSite: parseSameSite(rec.SameSite),
	}
	if !rec.HostOnly {
		c.Domain = rec.Domain
	}
	return c
}

func recordFor(u *url.URL, c *http.Cookie) CookieRecord {
	rec := CookieRecord{
		Domain:   strings.TrimPrefix(strings.ToLower(c.Domain), "."),
		Path:     c.Path,
		Name:     c.Name,
		Value:    c.Value,
		Secure:   c.Secure,
		HTTPOnly: c.HttpOnly,
		SameSite: formatSameSite(c.SameSite),
		Expires:  c.Expires,
	}
	if rec.Domain == "" {
		rec.Domain = strings.ToLower(u.Hostname())
		rec.HostOnly = true
	}
	if rec.Path == "" || !strings.HasPrefix(rec.Path, "/") {
		rec.Path = "/"
	}
	return rec
}

func domainMatches(host string, rec CookieRecord) bool {
	if host == rec.Domain {
		return true
	}
	return !rec.HostOnly && strings.HasSuffix(host, "."+rec.Domain)
}

func formatSameSite(s http.SameSite) string {
	switch s {
	case http.SameSiteLaxMode:
		return "lax"
	case http.SameSiteStrictMode:
		return "strict"
	case http.SameSiteNoneMode:
		return "none"
	default:
		return ""
	}
}

func parseSameSite(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
