package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// ErrRequestInProgress means another request holds the key's lock and has
// not finished; callers map it to 409.
var ErrRequestInProgress = errors.New("request with this key is already in progress")

// Operation is the guarded unit of work, typically a transaction write.
type Operation func(ctx context.Context) (interface{}, error)

type Result struct {
	Response  interface{}
	FromCache bool
}

type Manager interface {
	Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error)
}

type lockingManager struct {
	store Store
	log   *slog.Logger
}

func NewManager(store Store, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &lockingManager{store: store, log: log}
}

// Execute runs fn exactly once per key: the first caller takes the lock and
// stores the response, replays get the stored response, and a concurrent
// caller racing the first one gets ErrRequestInProgress.
func (m *lockingManager) Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if fn == nil {
		return nil, errors.New("operation fn cannot be nil")
	}

	for {
		locked, err := m.store.Lock(ctx, key, 5*time.Minute)
		if err != nil {
			return nil, err
		}

		if locked {
			return m.runLocked(ctx, key, ttl, fn)
		}

		record, err := m.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}

		switch {
		case record == nil:
			// Lock holder died between SetNX and writing the record;
			// wait for the lock TTL to free it.
		case record.Status == StatusProcessing:
			return nil, ErrRequestInProgress
		case record.Status == StatusCompleted:
			return replay(record)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (m *lockingManager) runLocked(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	defer m.store.ReleaseLock(ctx, key)

	response, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(response)
	if err != nil {
		return nil, err
	}

	if err := m.store.Set(ctx, key, &Record{Status: StatusCompleted, Response: encoded}, ttl); err != nil {
		return nil, err
	}

	return &Result{Response: response}, nil
}

func replay(record *Record) (*Result, error) {
	var response interface{}
	if len(record.Response) > 0 {
		if err := json.Unmarshal(record.Response, &response); err != nil {
			return nil, err
		}
	}

	return &Result{Response: response, FromCache: true}, nil
}
