package fakesessionrepo

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-embed-auth/internal/errors"
	"github.com/jrsteele09/go-embed-auth/paramsession"
)

var _ paramsession.Repo = (*FakeSessionRepo)(nil)

// FakeSessionRepo keeps records in memory. Records are copied on the way in
// and out so callers never share the stored map.
type FakeSessionRepo struct {
	sessions map[string]*paramsession.Record // public id -> record
	nextID   int64
	lock     sync.RWMutex

	failure atomic.Pointer[error]
	lookups atomic.Int64
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		sessions: make(map[string]*paramsession.Record),
	}
}

// FailWith makes every later call return err wrapped as a store fault. Pass
// nil to restore normal behaviour.
func (sr *FakeSessionRepo) FailWith(err error) {
	if err == nil {
		sr.failure.Store(nil)
		return
	}
	sr.failure.Store(&err)
}

// Lookups returns how many FindByPublicID calls have been made.
func (sr *FakeSessionRepo) Lookups() int64 {
	return sr.lookups.Load()
}

func (sr *FakeSessionRepo) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return errors.Unavailable(err, op)
	}
	if f := sr.failure.Load(); f != nil {
		return errors.Unavailable(*f, op)
	}
	return nil
}

func (sr *FakeSessionRepo) FindByPublicID(ctx context.Context, kind paramsession.Kind, publicID string) (*paramsession.Record, error) {
	sr.lookups.Add(1)
	if err := sr.check(ctx, "[FakeSessionRepo FindByPublicID]"); err != nil {
		return nil, err
	}

	sr.lock.RLock()
	defer sr.lock.RUnlock()

	rec, ok := sr.sessions[publicID]
	if !ok || rec.Kind != kind {
		return nil, nil
	}
	return rec.Clone(), nil
}

func (sr *FakeSessionRepo) Create(ctx context.Context, rec *paramsession.Record) error {
	if err := sr.check(ctx, "[FakeSessionRepo Create]"); err != nil {
		return err
	}
	if rec == nil || rec.PublicID == "" || rec.Secret == "" {
		return errors.Wrapf(errors.ErrInvalidInput, "[FakeSessionRepo Create] record requires public id and secret")
	}

	sr.lock.Lock()
	defer sr.lock.Unlock()

	if _, exists := sr.sessions[rec.PublicID]; exists {
		return paramsession.ErrDuplicatePublicID
	}
	sr.nextID++
	rec.ID = sr.nextID
	sr.sessions[rec.PublicID] = rec.Clone()
	return nil
}

func (sr *FakeSessionRepo) UpdateData(ctx context.Context, kind paramsession.Kind, publicID string, data map[string]any) (*paramsession.Record, error) {
	if err := sr.check(ctx, "[FakeSessionRepo UpdateData]"); err != nil {
		return nil, err
	}

	sr.lock.Lock()
	defer sr.lock.Unlock()

	rec, ok := sr.sessions[publicID]
	if !ok || rec.Kind != kind {
		return nil, errors.ErrNotFound
	}
	updated := rec.Clone()
	updated.Data = data
	updated.ChangedAt = time.Now().UTC()
	sr.sessions[publicID] = updated.Clone()
	return updated, nil
}

// Len returns the number of stored records.
func (sr *FakeSessionRepo) Len() int {
	sr.lock.RLock()
	defer sr.lock.RUnlock()
	return len(sr.sessions)
}

// All returns copies of every stored record.
func (sr *FakeSessionRepo) All() []*paramsession.Record {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	out := make([]*paramsession.Record, 0, len(sr.sessions))
	for _, rec := range sr.sessions {
		out = append(out, rec.Clone())
	}
	return out
}
