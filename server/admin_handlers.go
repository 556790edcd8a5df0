package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/go-embed-auth/auth"
	"github.com/jrsteele09/go-embed-auth/frame"
	"github.com/jrsteele09/go-embed-auth/internal/csrf"
)

type FrameReferersPageData struct {
	pageData
	Patterns       string
	Issues         []frame.PatternIssue
	SaveAction     string
	FormToken      string
	TokenParam     string
	Token          string
	PreviewHost    string
	PreviewAllowed bool
	Saved          bool
	Error          string
}

// FrameReferersGetHandler shows the allow-list editor with lint warnings and
// an optional host check (GET /admin/frame-referers?host=...).
func (s *Server) FrameReferersGetHandler() http.HandlerFunc {
	adminTmpl := s.parsePage("frame_referers.html")

	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := auth.PrincipalFrom(r.Context())

		list, err := s.repos.Frame.Get(r.Context())
		if err != nil {
			s.log.Error().Err(err).Msg("failed to load frame allow-list")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		q := r.URL.Query()
		data := FrameReferersPageData{
			pageData:    s.page("Frame allow-list"),
			Patterns:    list.Patterns,
			Issues:      frame.LintPatterns(list.Patterns),
			SaveAction:  withToken(RouteAdminFrameReferers, p),
			FormToken:   csrf.Token(r.Context(), formFrameReferers),
			TokenParam:  p.Provider,
			PreviewHost: strings.ToLower(strings.TrimSpace(q.Get("host"))),
			Saved:       q.Get("saved") == "1",
			Error:       q.Get("error"),
		}
		if p.Session != nil {
			data.Token = p.Session.Record().Token()
		}
		if data.PreviewHost != "" {
			data.PreviewAllowed, err = s.framePolicy.Allows(r.Context(), data.PreviewHost)
			if err != nil {
				s.log.Error().Err(err).Msg("frame allow-list check failed")
			}
		}
		render(s.log, w, adminTmpl, data)
	}
}

// FrameReferersPostHandler replaces the allow-list (POST /admin/frame-referers).
func (s *Server) FrameReferersPostHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := auth.PrincipalFrom(r.Context())

		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		if !csrf.Valid(r.Context(), formFrameReferers, r.PostFormValue(csrf.FieldName)) {
			s.log.Warn().Str("user_id", p.ID()).Msg("rejected allow-list change with invalid form token")
			http.Error(w, "Invalid form token", http.StatusForbidden)
			return
		}

		patterns := normaliseNewlines(r.PostFormValue("patterns"))
		if err := s.repos.Frame.Set(r.Context(), patterns); err != nil {
			s.log.Error().Err(err).Msg("failed to save frame allow-list")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		issues := frame.LintPatterns(patterns)
		s.log.Info().
			Str("user_id", p.ID()).
			Int("patterns", len(frame.AllowList{Patterns: patterns}.Lines())).
			Int("issues", len(issues)).
			Msg("frame allow-list updated")
		redirectSuccess(w, r, withToken(RouteAdminFrameReferers+"?saved=1", p))
	}
}

// normaliseNewlines stores textarea input with LF line endings.
func normaliseNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
