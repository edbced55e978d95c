package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/admingate/internal/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NotifyChannel is the LISTEN channel fed by the gatekeeper_kv trigger
const NotifyChannel = "gatekeeper_kv_changes"

const (
	listenRetryDelay     = time.Second
	listenCleanupTimeout = 5 * time.Second
)

// PostgresStore persists keys in the gatekeeper_kv table. Change notifications
// come from a trigger issuing pg_notify, so deletions made by any replica reach
// subscribers of every replica.
type PostgresStore struct {
	db     *database.DB
	hub    *hub
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPostgresStore creates a store over db. Call Start to begin receiving notifications.
func NewPostgresStore(db *database.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		hub:    newHub(),
		logger: logger,
	}
}

type pgNotification struct {
	Key string `json:"key"`
	Op  string `json:"op"`
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.Pool.QueryRow(ctx,
		`SELECT value FROM gatekeeper_kv WHERE key = $1`,
		key,
	).Scan(&value)
	if err != nil {
		return "", database.MapPostgresError(err)
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.Pool.Exec(ctx,
		`INSERT INTO gatekeeper_kv (key, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.Pool.Exec(ctx, `DELETE FROM gatekeeper_kv WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

func (s *PostgresStore) Subscribe(key string, fn func(Change)) (func(), error) {
	return s.hub.subscribe(key, fn), nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}

// Start launches the LISTEN loop. It reconnects on connection loss until Close or ctx ends.
func (s *PostgresStore) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	listenCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.listen(listenCtx)
}

func (s *PostgresStore) listen(ctx context.Context) {
	defer close(s.done)

	for {
		err := s.listenOnce(ctx)
		if ctx.Err() != nil {
			s.logger.Info("session store listener stopped")
			return
		}
		s.logger.Warn("session store listener interrupted, retrying",
			slog.Any("error", err),
			slog.Duration("retry_in", listenRetryDelay))

		select {
		case <-time.After(listenRetryDelay):
		case <-ctx.Done():
			return
		}
	}
}

func (s *PostgresStore) listenOnce(ctx context.Context) error {
	conn, err := s.db.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	defer s.releaseListener(conn)

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{NotifyChannel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}

		var payload pgNotification
		if err := json.Unmarshal([]byte(n.Payload), &payload); err != nil {
			s.logger.Warn("ignoring malformed session store notification", slog.Any("error", err))
			continue
		}
		s.hub.publish(Change{Key: payload.Key, Deleted: payload.Op == "DELETE"})
	}
}

// releaseListener drops the LISTEN subscription before the connection goes back
// to the pool. A connection that cannot be cleaned is closed instead.
func (s *PostgresStore) releaseListener(conn *pgxpool.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), listenCleanupTimeout)
	defer cancel()

	if _, err := conn.Exec(ctx, "UNLISTEN *"); err != nil {
		s.logger.Debug("discarding listener connection", slog.Any("error", err))
		_ = conn.Hijack().Close(ctx)
		return
	}
	conn.Release()
}

// Close stops the listener and all subscriptions
func (s *PostgresStore) Close() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	s.hub.close()
}

var (
	_ SessionStore  = (*PostgresStore)(nil)
	_ HealthChecker = (*PostgresStore)(nil)
)

