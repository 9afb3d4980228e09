// Package guard decides whether a navigation may render a protected view.
// Evaluate is a pure function of the session state; it is called fresh on
// every request.
package guard

import (
	"net/url"
	"strings"

	"github.com/Pinash124/bike-hub-sub000/internal/domain"
)

// Destinations used by redirects.
const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
	RedirectParam    = "redirect"
)

// Outcome is the guard verdict.
type Outcome int

const (
	// Wait means the session is still being restored.
	Wait Outcome = iota
	RedirectLogin
	RedirectUnauthorized
	Allow
)

func (o Outcome) String() string {
	switch o {
	case Wait:
		return "wait"
	case RedirectLogin:
		return "redirect_login"
	case RedirectUnauthorized:
		return "redirect_unauthorized"
	case Allow:
		return "allow"
	default:
		return "unknown"
	}
}

// State is the slice of session state the guard looks at.
type State struct {
	Loading       bool
	Authenticated bool
	Role          domain.Role
}

// Requirement describes who may see a view. No roles means any signed-in
// user.
type Requirement struct {
	Roles []domain.Role
}

// Require builds a Requirement for the given roles.
func Require(roles ...domain.Role) Requirement {
	return Requirement{Roles: roles}
}

// Permits reports whether role satisfies the requirement.
func (r Requirement) Permits(role domain.Role) bool {
	if len(r.Roles) == 0 {
		return true
	}
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// Decision is the verdict plus where to send the user, if anywhere.
type Decision struct {
	Outcome  Outcome
	Location string
}

// Evaluate decides what to do with a navigation to target.
func Evaluate(s State, req Requirement, target string) Decision {
	switch {
	case s.Loading:
		return Decision{Outcome: Wait}
	case !s.Authenticated:
		return Decision{Outcome: RedirectLogin, Location: LoginURL(target)}
	case !req.Permits(s.Role):
		return Decision{Outcome: RedirectUnauthorized, Location: UnauthorizedPath}
	default:
		return Decision{Outcome: Allow}
	}
}

// LoginURL returns the login path remembering target for the return trip.
func LoginURL(target string) string {
	target = SafeRedirect(target)
	if target == "/" {
		return LoginPath
	}
	return LoginPath + "?" + RedirectParam + "=" + url.QueryEscape(target)
}

// SafeRedirect returns target when it is a local absolute path, otherwise
// "/". Scheme-relative and absolute URLs are rejected.
func SafeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") {
		return "/"
	}
	if strings.HasPrefix(target, "//") || strings.HasPrefix(target, `/\`) {
		return "/"
	}
	u, err := url.Parse(target)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}
	return target
}
