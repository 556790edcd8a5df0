package pgrepo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jrsteele09/go-embed-auth/internal/db"
	"github.com/jrsteele09/go-embed-auth/internal/errors"
	"github.com/jrsteele09/go-embed-auth/users"
)

var _ users.UserRepo = (*PostgresRepository)(nil)

const (
	userColumns = `id, email, username, first_name, last_name, password_hash, blocked, created_at`

	selectUserByID    = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	selectUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	selectRoles       = `SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role`

	upsertUser = `INSERT INTO users (id, email, username, first_name, last_name, password_hash, blocked, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (email) DO UPDATE SET
    username = EXCLUDED.username,
    first_name = EXCLUDED.first_name,
    last_name = EXCLUDED.last_name,
    password_hash = EXCLUDED.password_hash,
    blocked = EXCLUDED.blocked
RETURNING id`

	deleteRoles = `DELETE FROM user_roles WHERE user_id = $1`
	insertRole  = `INSERT INTO user_roles (user_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	setBlocked  = `UPDATE users SET blocked = $2 WHERE lower(email) = lower($1)`
)

// PostgresRepository is the directory backed by the users and user_roles tables.
type PostgresRepository struct {
	db db.TxBeginner
}

func NewPostgresRepository(conn db.TxBeginner) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*users.User, error) {
	return r.getOne(ctx, "[users PostgresRepository GetByID]", selectUserByID, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return r.getOne(ctx, "[users PostgresRepository GetByEmail]", selectUserByEmail, email)
}

// RolesFor returns the stored roles. Unknown role names in the table are ignored.
func (r *PostgresRepository) RolesFor(ctx context.Context, id string) ([]users.RoleType, error) {
	roles, err := queryRoles(ctx, r.db, id)
	if err != nil {
		return nil, errors.Unavailable(err, "[users PostgresRepository RolesFor]")
	}
	return roles, nil
}

// Upsert inserts or updates by email and replaces the user's roles.
func (r *PostgresRepository) Upsert(ctx context.Context, user *users.User) error {
	if user == nil || user.Email == "" {
		return errors.Wrapf(errors.ErrInvalidInput, "[users PostgresRepository Upsert] email is required")
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now().UTC()
	}

	err := db.InTx(ctx, r.db, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx, upsertUser,
			user.ID, user.Email, user.Username, user.FirstName, user.LastName,
			user.PasswordHash, user.Blocked, user.DateJoined,
		).Scan(&id)
		if err != nil {
			return err
		}
		user.ID = id

		if _, err := tx.Exec(ctx, deleteRoles, id); err != nil {
			return err
		}
		for _, role := range user.Roles {
			if role == users.RoleAuthenticated {
				continue
			}
			if _, err := tx.Exec(ctx, insertRole, id, string(role)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Unavailable(err, "[users PostgresRepository Upsert]")
	}
	return nil
}

func (r *PostgresRepository) SetBlocked(ctx context.Context, email string, blocked bool) error {
	tag, err := r.db.Exec(ctx, setBlocked, email, blocked)
	if err != nil {
		return errors.Unavailable(err, "[users PostgresRepository SetBlocked]")
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrUserNotFound
	}
	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, op, query, arg string) (*users.User, error) {
	var u users.User
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.Username, &u.FirstName, &u.LastName, &u.PasswordHash, &u.Blocked, &u.DateJoined,
	)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, errors.Unavailable(err, op)
	}

	roles, err := queryRoles(ctx, r.db, u.ID)
	if err != nil {
		return nil, errors.Unavailable(err, op)
	}
	u.Roles = roles
	return &u, nil
}

func queryRoles(ctx context.Context, conn db.DBTX, id string) ([]users.RoleType, error) {
	rows, err := conn.Query(ctx, selectRoles, id)
	if err != nil {
		return nil, err
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}

	roles := make([]users.RoleType, 0, len(names))
	for _, name := range names {
		if role, ok := users.ParseRole(name); ok {
			roles = append(roles, role)
		}
	}
	return roles, nil
}
