package users

import (
	"fmt"
	"slices"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// RoleType names a role granted to a directory user.
type RoleType string

const (
	// RoleAuthenticated marks any principal that proved an identity. It is
	// never stored; providers add it to the roles they resolve.
	RoleAuthenticated RoleType = "authenticated"

	RoleAdministrator RoleType = "administrator" // Can change site settings such as the frame allow-list
	RoleEditor        RoleType = "editor"        // Can change content data
	RoleViewer        RoleType = "viewer"        // Read-only access
)

// KnownRoles lists the roles that may be stored against a user.
var KnownRoles = []RoleType{RoleAdministrator, RoleEditor, RoleViewer}

// ParseRole returns the RoleType for s when it is a storable role.
func ParseRole(s string) (RoleType, bool) {
	r := RoleType(s)
	if slices.Contains(KnownRoles, r) {
		return r, true
	}
	return "", false
}

type User struct {
	ID           string     `json:"id,omitempty"`          // Unique identifier for the user
	Email        string     `json:"email,omitempty"`       // User's email address
	Username     string     `json:"username,omitempty"`    // Display name
	PasswordHash string     `json:"-"`                     // bcrypt hash, never serialised
	FirstName    string     `json:"first_name,omitempty"`  // First name of the user
	LastName     string     `json:"last_name,omitempty"`   // Last name of the user
	DateJoined   time.Time  `json:"date_joined,omitempty"` // Date and time when the user registered
	Roles        []RoleType `json:"roles,omitempty"`       // Stored roles; RoleAuthenticated is implied

	Blocked bool `json:"blocked,omitempty"` // Blocked users are administratively inactive
}

// Active reports whether the user may be authenticated.
func (u *User) Active() bool {
	return u != nil && !u.Blocked
}

// HasRole reports whether the user holds role. Every user holds RoleAuthenticated.
func (u *User) HasRole(role RoleType) bool {
	if role == RoleAuthenticated {
		return true
	}
	return slices.Contains(u.Roles, role)
}

// DisplayName prefers the username, then the full name, then the email.
func (u *User) DisplayName() string {
	switch {
	case u.Username != "":
		return u.Username
	case u.FirstName != "" || u.LastName != "":
		return fmt.Sprintf("%s %s", u.FirstName, u.LastName)
	default:
		return u.Email
	}
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
