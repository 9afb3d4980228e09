package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/Pinash124/bike-hub-sub000/internal/auth"
	"github.com/Pinash124/bike-hub-sub000/internal/guard"
	apperrors "github.com/Pinash124/bike-hub-sub000/pkg/errors"
	"github.com/Pinash124/bike-hub-sub000/pkg/httputil"
)

// retryAfterSeconds is sent while the session is still being restored.
const retryAfterSeconds = "1"

type guards struct {
	auth   *auth.Controller
	logger *slog.Logger
}

func newGuards(a *auth.Controller, logger *slog.Logger) *guards {
	return &guards{auth: a, logger: logger}
}

func (g *guards) decide(r *http.Request, req guard.Requirement) guard.Decision {
	st := g.auth.State(r.Context())
	return guard.Evaluate(guard.State{
		Loading:       st.Loading,
		Authenticated: st.Authenticated,
		Role:          st.Role,
	}, req, r.URL.RequestURI())
}

// view guards a page. Navigations that are not allowed are redirected.
func (g *guards) view(req guard.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := g.decide(r, req)
			switch d.Outcome {
			case guard.Wait:
				writeLoading(w, r)
			case guard.RedirectLogin, guard.RedirectUnauthorized:
				g.logger.DebugContext(r.Context(), "navigation redirected",
					slog.String("path", r.URL.Path),
					slog.String("outcome", d.Outcome.String()),
				)
				http.Redirect(w, r, d.Location, http.StatusSeeOther)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// action guards a JSON endpoint. Denials are reported as 401 or 403.
func (g *guards) action(req guard.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch g.decide(r, req).Outcome {
			case guard.Wait:
				writeLoading(w, r)
				return
			case guard.RedirectLogin:
				httputil.WriteError(w, r, apperrors.Unauthorized("please sign in"), g.logger)
				return
			case guard.RedirectUnauthorized:
				httputil.WriteError(w, r, apperrors.Forbidden("your account cannot do this"), g.logger)
				return
			}

			if err := g.auth.EnsureFreshToken(r.Context()); err != nil {
				g.logger.WarnContext(r.Context(), "proactive token refresh failed",
					slog.String("error", err.Error()),
				)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeLoading(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", retryAfterSeconds)
	httputil.WriteError(w, r, apperrors.ServiceUnavailable("session is loading, please retry"), nil)
}

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "Content-Type must be application/json"},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
