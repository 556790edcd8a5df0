package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jrsteele09/go-embed-auth/frame"
	"github.com/jrsteele09/go-embed-auth/users"
)

const DefaultAdminUsername = "admin"

// InitialiseSystem seeds the frame allow-list from configuration and makes
// sure an administrator exists. It returns the generated password when one
// had to be made up, otherwise "".
func (s *Server) InitialiseSystem(ctx context.Context) (generatedPassword string, err error) {
	s.log.Info().Msg("🔧 Bootstrap: Checking system configuration...")

	if err := frame.Seed(ctx, s.repos.Frame, s.config.GetInitialAllowedReferers()); err != nil {
		return "", fmt.Errorf("failed to seed frame allow-list: %w", err)
	}

	adminEmail := s.config.GetAdminEmail()
	if adminEmail == "" {
		adminEmail = generateEmailFromBaseURL(DefaultAdminUsername, s.config.GetBaseURL())
	}
	generatedPassword, err = s.bootstrapAdmin(ctx, adminEmail, s.config.GetAdminPassword())
	if err != nil {
		return "", fmt.Errorf("failed to bootstrap administrator: %w", err)
	}

	if generatedPassword != "" {
		s.log.Warn().
			Str("email", adminEmail).
			Str("password", generatedPassword).
			Msg("👤 Created administrator. SAVE THIS PASSWORD - it will not be displayed again!")
	}
	s.log.Info().Str("base_url", s.config.GetBaseURL()).Msg("✅ Bootstrap complete")
	return generatedPassword, nil
}

// bootstrapAdmin creates the administrator when no user has adminEmail. An
// existing user keeps its password but is granted the administrator role.
func (s *Server) bootstrapAdmin(ctx context.Context, adminEmail, password string) (generatedPassword string, err error) {
	existing, err := s.repos.Users.GetByEmail(ctx, adminEmail)
	if err != nil {
		return "", fmt.Errorf("failed to check for existing administrator: %w", err)
	}
	if existing != nil {
		if existing.HasRole(users.RoleAdministrator) {
			s.log.Info().Str("email", existing.Email).Msg("   Administrator already exists")
			return "", nil
		}
		existing.Roles = append(slices.Clone(existing.Roles), users.RoleAdministrator)
		if err := s.repos.Users.Upsert(ctx, existing); err != nil {
			return "", fmt.Errorf("failed to grant administrator role: %w", err)
		}
		s.log.Info().Str("email", existing.Email).Msg("   ✅ Granted administrator role")
		return "", nil
	}

	if password == "" {
		passwordBytes := make([]byte, 16)
		if _, err := rand.Read(passwordBytes); err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		password = base64.URLEncoding.EncodeToString(passwordBytes)
		generatedPassword = password
	}

	passwordHash, err := users.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &users.User{
		Email:        adminEmail,
		Username:     DefaultAdminUsername,
		PasswordHash: passwordHash,
		FirstName:    "System",
		LastName:     "Administrator",
		DateJoined:   time.Now().UTC(),
		Roles:        []users.RoleType{users.RoleAdministrator},
	}
	if err := s.repos.Users.Upsert(ctx, admin); err != nil {
		return "", fmt.Errorf("failed to create administrator: %w", err)
	}

	s.log.Info().Str("email", admin.Email).Msg("   ✅ Created administrator")
	return generatedPassword, nil
}

// generateEmailFromBaseURL creates an email address from a username and base URL
// Example: ("admin", "https://auth.example.com/path") -> "admin@auth.example.com"
func generateEmailFromBaseURL(user, baseURL string) string {
	domain := strings.ReplaceAll(strings.ReplaceAll(baseURL, "https://", ""), "http://", "")
	domain = strings.SplitN(domain, "/", 2)[0]
	domain = strings.SplitN(domain, ":", 2)[0]
	return fmt.Sprintf("%s@%s", user, domain)
}
