package users

import "context"

// Directory resolves identities for authentication. Lookups return (nil, nil)
// when the user does not exist; any error is an infrastructure fault.
type Directory interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	RolesFor(ctx context.Context, id string) ([]RoleType, error)
}

// UserRepo is the writable directory used by bootstrapping and administration.
type UserRepo interface {
	Directory
	Upsert(ctx context.Context, user *User) error
	SetBlocked(ctx context.Context, email string, blocked bool) error
}
