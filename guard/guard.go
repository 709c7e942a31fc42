// Package guard decides, before a page is served, whether the current
// session may navigate to it.
package guard

import (
	"log"
	"net/http"
	"net/url"

	"xmixing/config"
)

// Authorizer is the read-only view of the session the guard consults.
type Authorizer interface {
	IsAuthenticated() bool
	HasPermission(permission string) bool
}

type LogFunc func(format string, args ...any)

// Redirect reasons.
const (
	ReasonUnauthenticated = "unauthenticated"
	ReasonNoPermission    = "no-permission"
)

// Decision is the outcome of a navigation check. The zero value allows navigation.
type Decision struct {
	Location string // redirect target; empty when navigation is allowed
	Reason   string
}

// Allowed reports whether navigation may proceed unmodified.
func (d Decision) Allowed() bool { return d.Location == "" }

type Guard struct {
	auth        Authorizer
	loginPath   string
	homePath    string
	public      map[string]struct{}
	permissions map[string]string
	logFn       LogFunc
}

func New(auth Authorizer, cfg config.GuardConfig, logFn LogFunc) *Guard {
	if logFn == nil {
		logFn = log.Printf
	}
	g := &Guard{
		auth:        auth,
		loginPath:   cfg.LoginPath,
		homePath:    cfg.HomePath,
		public:      make(map[string]struct{}, len(cfg.PublicPaths)),
		permissions: make(map[string]string, len(cfg.Permissions)),
		logFn:       logFn,
	}
	if g.loginPath == "" {
		g.loginPath = "/x80-UserLogin"
	}
	if g.homePath == "" {
		g.homePath = "/"
	}
	for _, p := range cfg.PublicPaths {
		g.public[p] = struct{}{}
	}
	for p, perm := range cfg.Permissions {
		g.permissions[p] = perm
	}
	return g
}

// Check evaluates a navigation from source to target. target is the full
// requested path and may carry a query string; only its path is matched,
// and only exactly.
func (g *Guard) Check(target, source string) Decision {
	path := target
	if u, err := url.Parse(target); err == nil {
		path = u.Path
	}

	if _, ok := g.public[path]; ok {
		return Decision{}
	}

	if !g.auth.IsAuthenticated() {
		return Decision{
			Location: g.loginPath + "?" + url.Values{"redirect": {target}}.Encode(),
			Reason:   ReasonUnauthenticated,
		}
	}

	if perm, ok := g.permissions[path]; ok && !g.auth.HasPermission(perm) {
		g.logFn("guard: %s denied (needs %s, from %q)", path, perm, source)
		return Decision{
			Location: g.homePath + "?" + url.Values{"error": {ReasonNoPermission}}.Encode(),
			Reason:   ReasonNoPermission,
		}
	}
	return Decision{}
}

// RequiredPermission returns the permission path needs, if any.
func (g *Guard) RequiredPermission(path string) (string, bool) {
	perm, ok := g.permissions[path]
	return perm, ok
}

// Middleware applies Check to every request and answers redirects with 303.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := g.Check(r.URL.RequestURI(), r.Referer())
		if !d.Allowed() {
			http.Redirect(w, r, d.Location, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
