package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Pinash124/bike-hub-sub000/internal/domain"
)

func TestEvaluate(t *testing.T) {
	buyerOnly := Require(domain.RoleBuyer)
	staff := Require(domain.RoleAdmin, domain.RoleInspector)

	tests := []struct {
		name   string
		state  State
		req    Requirement
		target string
		want   Decision
	}{
		{
			name:   "loading waits even when signed in",
			state:  State{Loading: true, Authenticated: true, Role: domain.RoleBuyer},
			req:    buyerOnly,
			target: "/checkout",
			want:   Decision{Outcome: Wait},
		},
		{
			name:   "guest goes to login with return path",
			state:  State{Role: domain.RoleGuest},
			req:    buyerOnly,
			target: "/checkout?step=2",
			want:   Decision{Outcome: RedirectLogin, Location: "/login?redirect=%2Fcheckout%3Fstep%3D2"},
		},
		{
			name:   "wrong role is unauthorized",
			state:  State{Authenticated: true, Role: domain.RoleSeller},
			req:    buyerOnly,
			target: "/checkout",
			want:   Decision{Outcome: RedirectUnauthorized, Location: UnauthorizedPath},
		},
		{
			name:   "one of several roles",
			state:  State{Authenticated: true, Role: domain.RoleInspector},
			req:    staff,
			target: "/dashboard/inspector",
			want:   Decision{Outcome: Allow},
		},
		{
			name:   "any signed-in user",
			state:  State{Authenticated: true, Role: domain.RoleSeller},
			req:    Requirement{},
			target: "/orders",
			want:   Decision{Outcome: Allow},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.state, tt.req, tt.target))
		})
	}
}

func TestLoginURL(t *testing.T) {
	assert.Equal(t, "/login", LoginURL("/"))
	assert.Equal(t, "/login", LoginURL("https://evil.example/steal"))
	assert.Equal(t, "/login?redirect=%2Fdashboard%2Fseller", LoginURL("/dashboard/seller"))
}

func TestSafeRedirect(t *testing.T) {
	tests := map[string]string{
		"":                      "/",
		"/orders":               "/orders",
		"/products/42?tab=size": "/products/42?tab=size",
		"//evil.example":        "/",
		`/\evil.example`:        "/",
		"https://evil.example":  "/",
		"orders":                "/",
	}
	for in, want := range tests {
		assert.Equal(t, want, SafeRedirect(in), "input %q", in)
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "wait", Wait.String())
	assert.Equal(t, "allow", Allow.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
