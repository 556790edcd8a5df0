package server

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/jrsteele09/go-embed-auth/auth"
	"github.com/jrsteele09/go-embed-auth/internal/csrf"
	"github.com/jrsteele09/go-embed-auth/users"
)

type UserPageData struct {
	pageData
	DisplayName string
	Email       string
	Roles       []users.RoleType
	Data        map[string]any
	DataAction  string
	FormToken   string
	AdminURL    string
	Saved       bool
	Error       string
}

// userFormID binds anti-forgery tokens to the user whose data they change.
func userFormID(userID string) string {
	return formUserData + ":" + userID
}

// UserPageHandler shows the principal's own page (GET /users/{id}).
func (s *Server) UserPageHandler() http.HandlerFunc {
	userTmpl := s.parsePage("user.html")

	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := auth.PrincipalFrom(r.Context())
		id := r.PathValue("id")
		if p.ID() != id {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}

		data := UserPageData{
			pageData:    s.page(p.User.DisplayName()),
			DisplayName: p.User.DisplayName(),
			Email:       p.User.Email,
			Roles:       storedRoles(p),
			Saved:       r.URL.Query().Get("saved") == "1",
			Error:       r.URL.Query().Get("error"),
		}
		if p.Session != nil {
			data.Data = p.Session.Data()
			data.DataAction = withToken("/users/"+id+"/data", p)
			data.FormToken = csrf.Token(r.Context(), userFormID(id))
		}
		if p.HasRole(users.RoleAdministrator) {
			data.AdminURL = withToken(RouteAdminFrameReferers, p)
		}
		render(s.log, w, userTmpl, data)
	}
}

// UserDataHandler stores one key/value pair in the session record's data
// (POST /users/{id}/data).
func (s *Server) UserDataHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := auth.PrincipalFrom(r.Context())
		id := r.PathValue("id")
		if p.ID() != id || p.Session == nil {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		if !csrf.Valid(r.Context(), userFormID(id), r.PostFormValue(csrf.FieldName)) {
			s.log.Warn().Str("user_id", id).Msg("rejected data update with invalid form token")
			http.Error(w, "Invalid form token", http.StatusForbidden)
			return
		}

		back := "/users/" + id
		key := strings.TrimSpace(r.PostFormValue("key"))
		if key == "" {
			redirectSuccess(w, r, withToken(back+"?error=Key+is+required", p))
			return
		}

		data := p.Session.Data()
		if data == nil {
			data = make(map[string]any)
		}
		data[key] = r.PostFormValue("value")
		if err := p.Session.Update(r.Context(), data); err != nil {
			s.log.Error().Err(err).Str("user_id", id).Msg("failed to update session data")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		redirectSuccess(w, r, withToken(back+"?saved=1", p))
	}
}

// storedRoles drops the implied authenticated role for display.
func storedRoles(p *auth.Principal) []users.RoleType {
	return slices.DeleteFunc(slices.Clone(p.Roles), func(r users.RoleType) bool {
		return r == users.RoleAuthenticated
	})
}

type JourneyPageData struct {
	pageData
	DisplayName string
	Started     string
	Data        map[string]any
}

// JourneyHandler is the landing page of a journey (GET /journey).
func (s *Server) JourneyHandler() http.HandlerFunc {
	journeyTmpl := s.parsePage("journey.html")

	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := auth.PrincipalFrom(r.Context())
		rec := p.Session.Record()
		render(s.log, w, journeyTmpl, JourneyPageData{
			pageData:    s.page("Journey"),
			DisplayName: p.User.DisplayName(),
			Started:     rec.CreatedAt.Format(time.RFC1123),
			Data:        rec.Data,
		})
	}
}
