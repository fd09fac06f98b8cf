// Package middleware provides HTTP middleware for secretvault.
package middleware

import (
	"path"
	"regexp"
	"strings"

	"secretvault/internal/policy"
)

// staticExt matches file extensions served as static assets. ".json" is
// deliberately not one of them.
var staticExt = regexp.MustCompile(`\.(?:html?|css|js|jpe?g|webp|png|gif|svg|ttf|woff2?|ico|csv|docx?|xlsx?|zip|webmanifest)$`)

var protectedPrefixes = []string{"/profile", "/secret"}

// Classify returns the access tier for a request path.
// The path is cleaned first so dot segments cannot move a request between tiers.
func Classify(p string) policy.RouteClass {
	if p == "" {
		p = "/"
	}
	p = path.Clean("/" + strings.TrimPrefix(p, "/"))

	// Gated prefixes win over the asset rule: /admin/users/x.png is still admin.
	if strings.HasPrefix(p, "/admin") {
		return policy.RouteAdmin
	}
	if strings.HasPrefix(p, "/dashboard") {
		return policy.RouteProtected
	}
	for _, prefix := range protectedPrefixes {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return policy.RouteProtected
		}
	}

	api := p == "/api" || strings.HasPrefix(p, "/api/")
	if !api && (strings.HasPrefix(p, "/static/") || staticExt.MatchString(p)) {
		return policy.RouteStatic
	}

	return policy.RoutePublic
}
