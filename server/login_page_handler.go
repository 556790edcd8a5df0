package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	apperrors "github.com/jrsteele09/go-embed-auth/internal/errors"
	"github.com/jrsteele09/go-embed-auth/users"
)

// LoginPageData contains data for rendering the login page
type LoginPageData struct {
	pageData
	Error   string
	Email   string // Preserve email on error
	Flow    string
	Return  string
	OIDCURL string
}

// LoginPageUIHandler displays the login page (GET /login)
func (s *Server) LoginPageUIHandler() http.HandlerFunc {
	loginTmpl := s.parsePage("login.html")

	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		data := LoginPageData{
			pageData: s.page("Sign in"),
			Error:    q.Get("error"),
			Email:    q.Get("email"),
			Flow:     parseFlow(q.Get("flow")),
			Return:   localPath(q.Get("return")),
		}
		if s.oidcEnabled {
			oidcQuery := url.Values{"flow": {data.Flow}}
			if data.Return != "" {
				oidcQuery.Set("return", data.Return)
			}
			data.OIDCURL = RouteOIDCLogin + "?" + oidcQuery.Encode()
		}
		render(s.log, w, loginTmpl, data)
	}
}

// LoginSubmissionHandler checks the password and sends the browser to its
// destination carrying a freshly issued token.
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		email := strings.TrimSpace(r.FormValue("email"))
		password := r.FormValue("password")
		flow := parseFlow(r.FormValue("flow"))
		returnTo := localPath(r.FormValue("return"))

		if email == "" || password == "" {
			s.renderLoginError(w, r, "Email and password are required", email, flow, returnTo)
			return
		}

		user, err := s.checkPassword(r.Context(), email, password)
		switch {
		case errors.Is(err, apperrors.ErrStoreUnavailable):
			s.log.Error().Err(err).Msg("login failed")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		case err != nil:
			s.log.Info().Err(err).Str("email", email).Msg("login rejected")
			s.renderLoginError(w, r, "Invalid email or password", email, flow, returnTo)
			return
		}

		s.issueAndRedirect(w, r, flow, user, returnTo)
	}
}

// checkPassword returns the active user whose credentials match.
func (s *Server) checkPassword(ctx context.Context, email, password string) (*users.User, error) {
	user, err := s.repos.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.ErrUserNotFound
	}
	if !users.CheckPasswordHash(password, user.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if !user.Active() {
		return nil, apperrors.ErrUserBlocked
	}
	return user, nil
}

// issueAndRedirect is the end of every interactive login: it issues the
// flow's token for user and redirects to the destination with it attached.
func (s *Server) issueAndRedirect(w http.ResponseWriter, r *http.Request, flow string, user *users.User, returnTo string) {
	issuer := s.issuers[parseFlow(flow)]

	destination := returnTo
	if destination == "" {
		destination = defaultDestination(flow, user.ID)
	}
	target, _, err := issuer.Issue(r.Context(), user.ID, destination)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("failed to issue url parameter session")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	redirectSuccess(w, r, target)
}

// renderLoginError redirects to login page with an error message
func (s *Server) renderLoginError(w http.ResponseWriter, r *http.Request, errorMsg, email, flow, returnTo string) {
	redirectWithError(w, r, RouteLogin, errorMsg, url.Values{
		"email":  {email},
		"flow":   {flow},
		"return": {returnTo},
	})
}

func parseFlow(flow string) string {
	if flow == FlowJourney {
		return FlowJourney
	}
	return FlowSession
}

func defaultDestination(flow, userID string) string {
	if flow == FlowJourney {
		return RouteJourney
	}
	return "/users/" + url.PathEscape(userID)
}
