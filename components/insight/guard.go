package insight

import (
	"net/http"
	"strings"
)

// Viewer is the session identity the guard and the views see.
type Viewer struct {
	Username      string `json:"username"`
	Role          string `json:"role"`
	Authenticated bool   `json:"authenticated"`
}

// IsAdmin reports whether the viewer has the admin role.
func (v Viewer) IsAdmin() bool {
	return strings.EqualFold(v.Role, "admin")
}

// NavItem is one sidebar entry.
type NavItem struct {
	Code   string
	Label  string
	Path   string
	Active bool
}

// DefaultNavigation is the sidebar in display order.
var DefaultNavigation = []NavItem{
	{Code: "nav.dashboard", Label: "Dashboard", Path: "/dashboard"},
	{Code: "nav.reports", Label: "Reports", Path: "/reports"},
	{Code: "nav.editor", Label: "Editor", Path: "/editor"},
	{Code: "nav.alerts", Label: "Alerts", Path: "/alerts"},
	{Code: "nav.users", Label: "Users", Path: "/users"},
	{Code: "nav.profile", Label: "Profile", Path: "/profile"},
}

const (
	// LoginPath is the public login page.
	LoginPath = "/login"
	// HomePath is where authenticated users land.
	HomePath = "/dashboard"
)

// Decision is the outcome of a page-load check.
type Decision struct {
	Allow    bool
	Redirect string
	Status   int
}

// Guard decides page access and sidebar visibility.
type Guard struct {
	authz      Authorizer
	nav        []NavItem
	openPrefix []string
}

// NewGuard builds a guard. A nil authorizer hides and forbids everything
// except the pages every authenticated user may see.
func NewGuard(authz Authorizer) *Guard {
	return &Guard{
		authz:      authz,
		nav:        DefaultNavigation,
		openPrefix: []string{"/healthz", "/static/"},
	}
}

// Check runs on every page load: public and open paths pass, the login page
// redirects authenticated viewers home, protected pages redirect anonymous
// viewers to login, and sections the role may not view are forbidden.
func (g *Guard) Check(path string, v Viewer) Decision {
	for _, prefix := range g.openPrefix {
		if strings.HasPrefix(path, prefix) {
			return Decision{Allow: true}
		}
	}
	if path == "/" || path == LoginPath {
		if v.Authenticated {
			return Decision{Redirect: HomePath, Status: http.StatusSeeOther}
		}
		if path == "/" {
			return Decision{Redirect: LoginPath, Status: http.StatusSeeOther}
		}
		return Decision{Allow: true}
	}
	if !v.Authenticated {
		return Decision{Redirect: LoginPath, Status: http.StatusSeeOther}
	}
	if item, ok := g.section(path); ok && !g.allowed(v, item.Code) {
		return Decision{Status: http.StatusForbidden}
	}
	return Decision{Allow: true}
}

// Navigation returns the sidebar entries visible to the viewer with the one
// owning activePath marked active.
func (g *Guard) Navigation(v Viewer, activePath string) []NavItem {
	active, _ := g.section(activePath)
	items := make([]NavItem, 0, len(g.nav))
	for _, item := range g.nav {
		if !g.allowed(v, item.Code) {
			continue
		}
		item.Active = item.Code == active.Code
		items = append(items, item)
	}
	return items
}

// Can reports whether the viewer may perform action on a nav object.
func (g *Guard) Can(v Viewer, object, action string) bool {
	if g.authz == nil {
		return false
	}
	return g.authz.Allowed(v.Role, object, action)
}

func (g *Guard) allowed(v Viewer, code string) bool {
	return g.Can(v, code, "view")
}

func (g *Guard) section(path string) (NavItem, bool) {
	for _, item := range g.nav {
		if path == item.Path || strings.HasPrefix(path, item.Path+"/") {
			return item, true
		}
	}
	return NavItem{}, false
}
