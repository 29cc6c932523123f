// Package idempotency provides the inbox pattern for exactly-once batch
// processing. Keys are deterministic hashes of batch number plus content, so
// a redelivered batch replays its stored report instead of merging twice.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Status tracks an inbox entry through its lifecycle.
type Status string

const (
	StatusStarted     Status = "STARTED"
	StatusFinished    Status = "FINISHED"
	StatusRecoverable Status = "RECOVERABLE"
	StatusFailed      Status = "FAILED"
)

// Entry is one row of the inbox table.
type Entry struct {
	IdempotencyKey string
	HandlerName    string
	Status         Status
	Payload        json.RawMessage
	Result         json.RawMessage
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ExpiresAt      *time.Time
}

// InboxConfig sets retention and crash-recovery windows.
type InboxConfig struct {
	// DefaultTTL bounds how long a finished entry keeps deduplicating.
	DefaultTTL time.Duration
	// CleanupInterval is how often expired entries are purged.
	CleanupInterval time.Duration
	// RecoveryTimeout is when a STARTED entry is presumed crashed.
	RecoveryTimeout time.Duration
}

// DefaultInboxConfig keeps a week of dedup history, comfortably longer than
// the broker's redelivery horizon for the batch topic.
func DefaultInboxConfig() InboxConfig {
	return InboxConfig{
		DefaultTTL:      7 * 24 * time.Hour,
		CleanupInterval: time.Hour,
		RecoveryTimeout: 5 * time.Minute,
	}
}

// Inbox coordinates idempotent handler execution over a Postgres table.
type Inbox struct {
	pool   *pgxpool.Pool
	config InboxConfig
	logger *zap.Logger
	tracer trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewInbox builds an inbox over the given pool.
func NewInbox(pool *pgxpool.Pool, cfg InboxConfig, logger *zap.Logger) *Inbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Inbox{
		pool:   pool,
		config: cfg,
		logger: logger,
		tracer: otel.Tracer("inbox"),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// ErrInProgress means another worker holds this key right now.
var ErrInProgress = errors.New("message in progress by another handler")

// ErrTerminal wraps handler errors that must not be retried. An entry
// failed this way parks as FAILED and will never reprocess.
var ErrTerminal = errors.New("terminal handler error")

// ProcessResult reports how a key was handled.
type ProcessResult struct {
	// IsNew is false when the stored result was replayed.
	IsNew        bool
	WasRecovered bool
	Result       json.RawMessage
}

// ProcessFunc is an idempotent handler body.
type ProcessFunc func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// Process runs fn at most once per key. A FINISHED key replays its stored
// result; a stale STARTED key is reclaimed after RecoveryTimeout; a FAILED
// key refuses reprocessing.
func (i *Inbox) Process(ctx context.Context, key, handlerName string, payload json.RawMessage, fn ProcessFunc) (*ProcessResult, error) {
	ctx, span := i.tracer.Start(ctx, "inbox_process",
		trace.WithAttributes(
			attribute.String("idempotency_key", key),
			attribute.String("handler", handlerName),
		))
	defer span.End()

	prior, err := i.fetch(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("check inbox: %w", err)
	}

	recovered := false
	if prior != nil {
		switch prior.Status {
		case StatusFinished:
			span.SetAttributes(attribute.Bool("duplicate", true))
			return &ProcessResult{Result: prior.Result}, nil
		case StatusFailed:
			span.SetAttributes(attribute.Bool("previously_failed", true))
			return nil, fmt.Errorf("key %s previously failed permanently", key)
		case StatusStarted:
			if time.Since(prior.UpdatedAt) <= i.config.RecoveryTimeout {
				return nil, ErrInProgress
			}
			if err := i.setStatus(ctx, key, StatusRecoverable, nil); err != nil {
				return nil, fmt.Errorf("reclaim stale entry: %w", err)
			}
			recovered = true
		case StatusRecoverable:
			recovered = true
			span.SetAttributes(attribute.Bool("recovered", true))
		}
	}

	if err := i.claim(ctx, key, handlerName, payload); err != nil {
		return nil, err
	}

	result, handlerErr := fn(ctx, payload)
	if handlerErr != nil {
		status := StatusRecoverable
		if errors.Is(handlerErr, ErrTerminal) {
			status = StatusFailed
		}
		failure, _ := json.Marshal(map[string]string{"error": handlerErr.Error()})
		if err := i.setStatus(ctx, key, status, failure); err != nil {
			i.logger.Error("failed to record handler error", zap.Error(err))
		}
		span.RecordError(handlerErr)
		return nil, handlerErr
	}

	if err := i.setStatus(ctx, key, StatusFinished, result); err != nil {
		// The handler succeeded; losing the marker only costs one replay.
		i.logger.Error("failed to mark finished", zap.Error(err))
	}

	return &ProcessResult{
		IsNew:        prior == nil,
		WasRecovered: recovered,
		Result:       result,
	}, nil
}

// GenerateKey creates a deterministic idempotency key for a catalog batch.
// The key hashes the batch number with the raw document, so a re-sent batch
// with identical content dedupes while a corrected resend processes fresh.
func GenerateKey(batch int, document []byte) string {
	h := sha256.New()
	fmt.Fprintf(h, "batch-%d|", batch)
	h.Write(document)
	return hex.EncodeToString(h.Sum(nil))
}

func (i *Inbox) fetch(ctx context.Context, key string) (*Entry, error) {
	const query = `
		SELECT idempotency_key, handler_name, status, payload, result,
		       created_at, updated_at, expires_at
		FROM inbox
		WHERE idempotency_key = $1`

	e := &Entry{}
	err := i.pool.QueryRow(ctx, query, key).Scan(
		&e.IdempotencyKey, &e.HandlerName, &e.Status,
		&e.Payload, &e.Result, &e.CreatedAt, &e.UpdatedAt, &e.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// claim inserts the key as STARTED or takes over a RECOVERABLE entry. A
// concurrent claim on the same key loses the conflict and maps to
// ErrInProgress.
func (i *Inbox) claim(ctx context.Context, key, handlerName string, payload json.RawMessage) error {
	const query = `
		INSERT INTO inbox (idempotency_key, handler_name, status, payload, expires_at)
		VALUES ($1, $2, 'STARTED', $3, $4)
		ON CONFLICT (idempotency_key) DO UPDATE
		SET status = 'STARTED', updated_at = NOW()
		WHERE inbox.status = 'RECOVERABLE'
		RETURNING idempotency_key`

	var claimed string
	err := i.pool.QueryRow(ctx, query, key, handlerName, payload, time.Now().Add(i.config.DefaultTTL)).Scan(&claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrInProgress
	}
	return err
}

func (i *Inbox) setStatus(ctx context.Context, key string, status Status, result json.RawMessage) error {
	const query = `
		UPDATE inbox
		SET status = $1, result = COALESCE($2, result), updated_at = NOW()
		WHERE idempotency_key = $3`

	_, err := i.pool.Exec(ctx, query, status, result, key)
	return err
}

// StartCleanup launches the background purge goroutine.
func (i *Inbox) StartCleanup() {
	go i.cleanupLoop()
	i.logger.Info("inbox cleanup started", zap.Duration("interval", i.config.CleanupInterval))
}

// Stop terminates the cleanup goroutine and waits for it.
func (i *Inbox) Stop() {
	i.cancel()
	<-i.done
	i.logger.Info("inbox stopped")
}

func (i *Inbox) cleanupLoop() {
	defer close(i.done)

	ticker := time.NewTicker(i.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-i.ctx.Done():
			return
		case <-ticker.C:
			if err := i.purgeExpired(i.ctx); err != nil {
				i.logger.Error("inbox cleanup failed", zap.Error(err))
			}
		}
	}
}

func (i *Inbox) purgeExpired(ctx context.Context) error {
	const query = `DELETE FROM inbox WHERE expires_at < NOW()`

	tag, err := i.pool.Exec(ctx, query)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		i.logger.Info("inbox entries purged", zap.Int64("deleted", tag.RowsAffected()))
	}
	return nil
}

// RecoverStaleEntries flips stale STARTED entries to RECOVERABLE. Called
// at worker startup so batches orphaned by a crash get reprocessed.
func (i *Inbox) RecoverStaleEntries(ctx context.Context) (int64, error) {
	const query = `
		UPDATE inbox
		SET status = 'RECOVERABLE', updated_at = NOW()
		WHERE status = 'STARTED'
		  AND updated_at < NOW() - make_interval(secs => $1)`

	tag, err := i.pool.Exec(ctx, query, i.config.RecoveryTimeout.Seconds())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// InboxStats summarizes entry counts by status.
type InboxStats struct {
	TotalEntries int64
	Started      int64
	Finished     int64
	Recoverable  int64
	Failed       int64
}

// GetStats counts inbox entries per status for health reporting.
func (i *Inbox) GetStats(ctx context.Context) (*InboxStats, error) {
	const query = `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'STARTED'),
		       COUNT(*) FILTER (WHERE status = 'FINISHED'),
		       COUNT(*) FILTER (WHERE status = 'RECOVERABLE'),
		       COUNT(*) FILTER (WHERE status = 'FAILED')
		FROM inbox`

	s := &InboxStats{}
	err := i.pool.QueryRow(ctx, query).Scan(
		&s.TotalEntries, &s.Started, &s.Finished, &s.Recoverable, &s.Failed,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}
