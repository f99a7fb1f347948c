// Package access decides, for every page navigation, whether the caller may
// proceed or must be redirected elsewhere based on who they are and where
// their account stands in the approval workflow.
package access

import "strings"

// RouteClass is the static category a path belongs to.
type RouteClass int

const (
	Unclassified RouteClass = iota
	AuthRoute
	PublicAuthRoute
	AdminRoute
	ProtectedRoute
)

func (c RouteClass) String() string {
	switch c {
	case AuthRoute:
		return "auth"
	case PublicAuthRoute:
		return "public_auth"
	case AdminRoute:
		return "admin"
	case ProtectedRoute:
		return "protected"
	default:
		return "unclassified"
	}
}

// Redirect targets.
const (
	LoginPath     = "/auth/login"
	PendingPath   = "/auth/pending"
	RejectedPath  = "/auth/rejected"
	DashboardPath = "/dashboard"
	AdminHomePath = "/admin"
)

var (
	authRoutes       = []string{"/auth/login"}
	publicAuthRoutes = []string{"/auth/pending", "/auth/rejected", "/auth/callback", "/auth/logout"}
	adminRoutes      = []string{"/admin"}
	protectedRoutes  = []string{"/dashboard", "/chart", "/predictions", "/dasha", "/birth-data"}

	bypassPrefixes = []string{"/api/", "/_"}
)

// classOrder fixes the evaluation priority; the first table with a matching prefix wins.
var classOrder = []struct {
	class    RouteClass
	prefixes []string
}{
	{AuthRoute, authRoutes},
	{PublicAuthRoute, publicAuthRoutes},
	{AdminRoute, adminRoutes},
	{ProtectedRoute, protectedRoutes},
}

// Classify returns the route class of path using plain prefix matching.
func Classify(path string) RouteClass {
	for _, entry := range classOrder {
		if hasAnyPrefix(path, entry.prefixes) {
			return entry.class
		}
	}
	return Unclassified
}

// Bypassed reports whether path is served by its own handlers without gating.
func Bypassed(path string) bool {
	return hasAnyPrefix(path, bypassPrefixes)
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
