package redisrepo

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jrsteele09/go-embed-auth/internal/errors"
	"github.com/jrsteele09/go-embed-auth/paramsession"
)

var _ paramsession.Repo = (*RedisRepository)(nil)

const (
	defaultPrefix     = "paramsession:"
	maxUpdateAttempts = 3
)

// storedRecord is the JSON document kept under each key.
type storedRecord struct {
	ID        int64          `json:"id"`
	Kind      string         `json:"kind"`
	PublicID  string         `json:"public_id"`
	Secret    string         `json:"secret"`
	OwnerID   string         `json:"owner_id,omitempty"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
	ChangedAt time.Time      `json:"changed_at"`
}

// RedisRepository keeps one key per record, addressed by public id only.
type RedisRepository struct {
	client redis.UniversalClient
	prefix string
}

// Connect parses a redis:// or rediss:// URL, creates a client and pings it.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrapf(err, "[redisrepo Connect] invalid url")
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Unavailable(err, "[redisrepo Connect]")
	}
	return client, nil
}

// NewRedisRepository creates a Redis-backed session repository.
func NewRedisRepository(client redis.UniversalClient) *RedisRepository {
	return &RedisRepository{
		client: client,
		prefix: defaultPrefix,
	}
}

func (r *RedisRepository) key(publicID string) string {
	return r.prefix + publicID
}

func (r *RedisRepository) FindByPublicID(ctx context.Context, kind paramsession.Kind, publicID string) (*paramsession.Record, error) {
	raw, err := r.client.Get(ctx, r.key(publicID)).Bytes()
	if err == redis.Nil {
		return nil, nil // not found
	}
	if err != nil {
		return nil, errors.Unavailable(err, "[RedisRepository FindByPublicID]")
	}

	rec, err := decode(raw)
	if err != nil {
		return nil, errors.Unavailable(err, "[RedisRepository FindByPublicID] corrupt record")
	}
	if rec.Kind != kind {
		return nil, nil
	}
	return rec, nil
}

// Create allocates an ID from a counter and writes the record with SETNX, so
// a concurrent reader sees either nothing or the whole record.
func (r *RedisRepository) Create(ctx context.Context, rec *paramsession.Record) error {
	if rec == nil || rec.PublicID == "" || rec.Secret == "" {
		return errors.Wrapf(errors.ErrInvalidInput, "[RedisRepository Create] record requires public id and secret")
	}

	id, err := r.client.Incr(ctx, r.prefix+"seq").Result()
	if err != nil {
		return errors.Unavailable(err, "[RedisRepository Create] sequence")
	}

	stored := encodeRecord(rec)
	stored.ID = id
	payload, err := json.Marshal(stored)
	if err != nil {
		return errors.Wrapf(err, "[RedisRepository Create] encode")
	}

	ok, err := r.client.SetNX(ctx, r.key(rec.PublicID), payload, 0).Result()
	if err != nil {
		return errors.Unavailable(err, "[RedisRepository Create]")
	}
	if !ok {
		return paramsession.ErrDuplicatePublicID
	}
	rec.ID = id
	return nil
}

// UpdateData rewrites the record inside a WATCH transaction, retrying a few
// times when a concurrent writer wins.
func (r *RedisRepository) UpdateData(ctx context.Context, kind paramsession.Kind, publicID string, data map[string]any) (*paramsession.Record, error) {
	k := r.key(publicID)
	var updated *paramsession.Record

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, k).Bytes()
		if err == redis.Nil {
			return errors.ErrNotFound
		}
		if err != nil {
			return err
		}
		rec, err := decode(raw)
		if err != nil {
			return err
		}
		if rec.Kind != kind {
			return errors.ErrNotFound
		}

		rec.Data = data
		if rec.Data == nil {
			rec.Data = map[string]any{}
		}
		rec.ChangedAt = time.Now().UTC()
		payload, err := json.Marshal(encodeRecord(rec))
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, payload, redis.KeepTTL)
			return nil
		})
		if err == nil {
			updated = rec
		}
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, k)
		switch {
		case err == nil:
			return updated, nil
		case stderrors.Is(err, errors.ErrNotFound):
			return nil, err
		case stderrors.Is(err, redis.TxFailedErr):
			continue
		default:
			return nil, errors.Unavailable(err, "[RedisRepository UpdateData]")
		}
	}
	return nil, errors.Unavailable(redis.TxFailedErr, "[RedisRepository UpdateData] too much contention")
}

func encodeRecord(rec *paramsession.Record) storedRecord {
	data := rec.Data
	if data == nil {
		data = map[string]any{}
	}
	return storedRecord{
		ID:        rec.ID,
		Kind:      string(rec.Kind),
		PublicID:  rec.PublicID,
		Secret:    rec.Secret,
		OwnerID:   rec.OwnerID,
		Data:      data,
		CreatedAt: rec.CreatedAt,
		ChangedAt: rec.ChangedAt,
	}
}

func decode(raw []byte) (*paramsession.Record, error) {
	var s storedRecord
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if s.Data == nil {
		s.Data = map[string]any{}
	}
	return &paramsession.Record{
		ID:        s.ID,
		Kind:      paramsession.Kind(s.Kind),
		PublicID:  s.PublicID,
		Secret:    s.Secret,
		OwnerID:   s.OwnerID,
		Data:      s.Data,
		CreatedAt: s.CreatedAt,
		ChangedAt: s.ChangedAt,
	}, nil
}
