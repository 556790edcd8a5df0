package pgrepo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jrsteele09/go-embed-auth/internal/db"
	"github.com/jrsteele09/go-embed-auth/internal/errors"
	"github.com/jrsteele09/go-embed-auth/internal/utils"
	"github.com/jrsteele09/go-embed-auth/paramsession"
)

var _ paramsession.Repo = (*PostgresRepository)(nil)

const (
	selectByPublicID = `SELECT id, kind, public_id, secret, owner_id, data, created_at, changed_at
FROM param_sessions WHERE kind = $1 AND public_id = $2 LIMIT 1`

	insertSession = `INSERT INTO param_sessions (kind, public_id, secret, owner_id, data, created_at, changed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`

	updateSessionData = `UPDATE param_sessions SET data = $3, changed_at = $4
WHERE kind = $1 AND public_id = $2
RETURNING id, kind, public_id, secret, owner_id, data, created_at, changed_at`
)

// PostgresRepository stores parameter sessions in the param_sessions table.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a session repository that uses the given pool for persistence.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// FindByPublicID returns the record for publicID, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) FindByPublicID(ctx context.Context, kind paramsession.Kind, publicID string) (*paramsession.Record, error) {
	rec, err := scanRecord(r.db.QueryRow(ctx, selectByPublicID, string(kind), publicID))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, errors.Unavailable(err, "[PostgresRepository FindByPublicID]")
	}
	return rec, nil
}

// Create inserts the record in one statement and sets its ID.
func (r *PostgresRepository) Create(ctx context.Context, rec *paramsession.Record) error {
	if rec == nil || rec.PublicID == "" || rec.Secret == "" {
		return errors.Wrapf(errors.ErrInvalidInput, "[PostgresRepository Create] record requires public id and secret")
	}
	data, err := json.Marshal(nonNilData(rec.Data))
	if err != nil {
		return errors.Wrapf(err, "[PostgresRepository Create] encode data")
	}

	err = r.db.QueryRow(ctx, insertSession,
		string(rec.Kind), rec.PublicID, rec.Secret, utils.NilIfZero(rec.OwnerID), data, rec.CreatedAt, rec.ChangedAt,
	).Scan(&rec.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return paramsession.ErrDuplicatePublicID
		}
		return errors.Unavailable(err, "[PostgresRepository Create]")
	}
	return nil
}

// UpdateData replaces the data payload. Returns errors.ErrNotFound when no row matches.
func (r *PostgresRepository) UpdateData(ctx context.Context, kind paramsession.Kind, publicID string, data map[string]any) (*paramsession.Record, error) {
	encoded, err := json.Marshal(nonNilData(data))
	if err != nil {
		return nil, errors.Wrapf(err, "[PostgresRepository UpdateData] encode data")
	}

	rec, err := scanRecord(r.db.QueryRow(ctx, updateSessionData, string(kind), publicID, encoded, time.Now().UTC()))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, errors.ErrNotFound
		}
		return nil, errors.Unavailable(err, "[PostgresRepository UpdateData]")
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*paramsession.Record, error) {
	var (
		rec   paramsession.Record
		kind  string
		owner *string
		data  []byte
	)
	if err := row.Scan(&rec.ID, &kind, &rec.PublicID, &rec.Secret, &owner, &data, &rec.CreatedAt, &rec.ChangedAt); err != nil {
		return nil, err
	}
	rec.Kind = paramsession.Kind(kind)
	rec.OwnerID = utils.Value(owner)
	rec.Data = map[string]any{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &rec.Data); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

func nonNilData(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	return data
}
