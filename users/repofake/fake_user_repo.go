package fakeuserrepo

import (
	"context"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/jrsteele09/go-embed-auth/internal/errors"
	"github.com/jrsteele09/go-embed-auth/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users    map[string]*users.User
	emailIds map[string]string // lower-cased email to user id
	lock     sync.RWMutex

	failure atomic.Pointer[error]
	calls   atomic.Int64
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[string]*users.User),
		emailIds: make(map[string]string),
	}
}

// FailWith makes every later call return err wrapped as a store fault. Pass
// nil to restore normal behaviour.
func (ur *FakeUserRepo) FailWith(err error) {
	if err == nil {
		ur.failure.Store(nil)
		return
	}
	ur.failure.Store(&err)
}

// Calls returns how many directory reads have been served.
func (ur *FakeUserRepo) Calls() int64 {
	return ur.calls.Load()
}

func (ur *FakeUserRepo) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return errors.Unavailable(err, op)
	}
	if f := ur.failure.Load(); f != nil {
		return errors.Unavailable(*f, op)
	}
	return nil
}

func (ur *FakeUserRepo) Upsert(ctx context.Context, user *users.User) error {
	if err := ur.check(ctx, "[FakeUserRepo Upsert]"); err != nil {
		return err
	}
	if user == nil || user.Email == "" {
		return errors.Wrapf(errors.ErrInvalidInput, "[FakeUserRepo Upsert] email is required")
	}

	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	stored := *user
	stored.Roles = slices.Clone(user.Roles)
	ur.users[user.ID] = &stored
	ur.emailIds[strings.ToLower(user.Email)] = user.ID
	return nil
}

func (ur *FakeUserRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	ur.calls.Add(1)
	if err := ur.check(ctx, "[FakeUserRepo GetByEmail]"); err != nil {
		return nil, err
	}

	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIds[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	return ur.copyOf(id), nil
}

func (ur *FakeUserRepo) GetByID(ctx context.Context, id string) (*users.User, error) {
	ur.calls.Add(1)
	if err := ur.check(ctx, "[FakeUserRepo GetByID]"); err != nil {
		return nil, err
	}

	ur.lock.RLock()
	defer ur.lock.RUnlock()

	return ur.copyOf(id), nil
}

func (ur *FakeUserRepo) RolesFor(ctx context.Context, id string) ([]users.RoleType, error) {
	ur.calls.Add(1)
	if err := ur.check(ctx, "[FakeUserRepo RolesFor]"); err != nil {
		return nil, err
	}

	ur.lock.RLock()
	defer ur.lock.RUnlock()

	u, ok := ur.users[id]
	if !ok {
		return nil, nil
	}
	return slices.Clone(u.Roles), nil
}

func (ur *FakeUserRepo) SetBlocked(ctx context.Context, email string, blocked bool) error {
	if err := ur.check(ctx, "[FakeUserRepo SetBlocked]"); err != nil {
		return err
	}

	ur.lock.Lock()
	defer ur.lock.Unlock()

	id, ok := ur.emailIds[strings.ToLower(email)]
	if !ok {
		return errors.ErrUserNotFound
	}
	ur.users[id].Blocked = blocked
	return nil
}

// copyOf must be called with the lock held.
func (ur *FakeUserRepo) copyOf(id string) *users.User {
	u, ok := ur.users[id]
	if !ok {
		return nil
	}
	c := *u
	c.Roles = slices.Clone(u.Roles)
	return &c
}
