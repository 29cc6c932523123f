// Package postgres provides PostgreSQL infrastructure: the catalog snapshot
// store, clinic override store, and the transactional outbox used to publish
// import reports.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dentara/go-catalog/internal/domain/catalog"
	"github.com/dentara/go-catalog/internal/importer"
	"github.com/dentara/go-catalog/internal/infrastructure/redpanda"
)

// catalogLockID serializes catalog read-modify-write cycles across service
// instances. Batch merges are not commutative record by record, so two
// concurrent imports must not interleave.
const catalogLockID = int64(7201734)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// CatalogStore persists catalog snapshots. Treatments, conditions and
// mappings live in one jsonb document column each, keyed by their natural
// identifier, so the schema never chases the record shape.
type CatalogStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

// NewCatalogStore creates a catalog store backed by the given pool.
func NewCatalogStore(pool *pgxpool.Pool, logger *zap.Logger) *CatalogStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogStore{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("catalog-store"),
	}
}

// LoadSnapshot reads the full catalog into memory.
func (s *CatalogStore) LoadSnapshot(ctx context.Context) (catalog.Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "catalog_load_snapshot")
	defer span.End()

	var snap catalog.Snapshot

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return snap, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := loadDocs(ctx, tx, "SELECT doc FROM catalog_treatments", &snap.Treatments); err != nil {
		return snap, fmt.Errorf("load treatments: %w", err)
	}
	if err := loadDocs(ctx, tx, "SELECT doc FROM catalog_conditions", &snap.Conditions); err != nil {
		return snap, fmt.Errorf("load conditions: %w", err)
	}
	if err := loadDocs(ctx, tx, "SELECT doc FROM catalog_mappings", &snap.Mappings); err != nil {
		return snap, fmt.Errorf("load mappings: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return snap, fmt.Errorf("commit read tx: %w", err)
	}

	catalog.SortTreatments(snap.Treatments)
	catalog.SortConditions(snap.Conditions)
	catalog.SortMappings(snap.Mappings)

	span.SetAttributes(
		attribute.Int("treatments", len(snap.Treatments)),
		attribute.Int("conditions", len(snap.Conditions)),
		attribute.Int("mappings", len(snap.Mappings)),
	)
	return snap, nil
}

// loadDocs scans a jsonb doc column into a slice of T.
func loadDocs[T any](ctx context.Context, tx pgx.Tx, query string, out *[]T) error {
	rows, err := tx.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return err
		}
		var v T
		if err := json.Unmarshal(doc, &v); err != nil {
			return fmt.Errorf("decode doc: %w", err)
		}
		*out = append(*out, v)
	}
	return rows.Err()
}

// ApplyBatch runs one import as a serialized read-modify-write: acquire the
// catalog advisory lock, load the snapshot, merge the batch in memory, write
// the result back, and queue the import report on the outbox inside the same
// transaction. The merge itself never fails; schema errors come back as data
// in the report.
func (s *CatalogStore) ApplyBatch(ctx context.Context, batch importer.BatchImport) (importer.ImportResult, error) {
	ctx, span := s.tracer.Start(ctx, "catalog_apply_batch",
		trace.WithAttributes(attribute.Int("batch", batch.Batch)))
	defer span.End()

	var result importer.ImportResult

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Transaction-scoped lock; released automatically on commit or rollback.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", catalogLockID); err != nil {
		return result, fmt.Errorf("acquire catalog lock: %w", err)
	}

	var snap catalog.Snapshot
	if err := loadDocs(ctx, tx, "SELECT doc FROM catalog_treatments", &snap.Treatments); err != nil {
		return result, fmt.Errorf("load treatments: %w", err)
	}
	if err := loadDocs(ctx, tx, "SELECT doc FROM catalog_conditions", &snap.Conditions); err != nil {
		return result, fmt.Errorf("load conditions: %w", err)
	}
	if err := loadDocs(ctx, tx, "SELECT doc FROM catalog_mappings", &snap.Mappings); err != nil {
		return result, fmt.Errorf("load mappings: %w", err)
	}

	merged, result := importer.Apply(snap, batch)

	if err := s.saveSnapshot(ctx, tx, merged); err != nil {
		return result, fmt.Errorf("save snapshot: %w", err)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return result, fmt.Errorf("encode import report: %w", err)
	}
	entry := &OutboxEntry{
		AggregateID:   fmt.Sprintf("batch-%d", batch.Batch),
		AggregateType: "catalog_import",
		EventType:     "catalog.import.completed",
		Payload:       payload,
		Topic:         redpanda.TopicImportReports,
		Key:           fmt.Sprintf("batch-%d", batch.Batch),
	}
	if err := WriteEntry(ctx, tx, entry); err != nil {
		return result, err
	}

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("commit tx: %w", err)
	}

	s.logger.Info("catalog batch applied",
		zap.Int("batch", batch.Batch),
		zap.Int("treatments_added", result.TreatmentsAdded),
		zap.Int("treatments_updated", result.TreatmentsUpdated),
		zap.Int("errors", len(result.Errors)),
		zap.Int("orphaned_mappings", len(result.OrphanedMappings)))

	return result, nil
}

// saveSnapshot replaces the persisted catalog with the given snapshot.
// Upserts plus deletion of rows absent from the snapshot keep the tables an
// exact mirror without rewriting unchanged documents.
func (s *CatalogStore) saveSnapshot(ctx context.Context, tx pgx.Tx, snap catalog.Snapshot) error {
	treatmentCodes := make([]string, 0, len(snap.Treatments))
	for _, t := range snap.Treatments {
		doc, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encode treatment %s: %w", t.Code, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO catalog_treatments (code, doc, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (code) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()
		`, t.Code, doc)
		if err != nil {
			return fmt.Errorf("upsert treatment %s: %w", t.Code, err)
		}
		treatmentCodes = append(treatmentCodes, t.Code)
	}
	if _, err := tx.Exec(ctx,
		"DELETE FROM catalog_treatments WHERE code <> ALL($1)", treatmentCodes); err != nil {
		return fmt.Errorf("prune treatments: %w", err)
	}

	conditionValues := make([]string, 0, len(snap.Conditions))
	for _, c := range snap.Conditions {
		doc, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode condition %s: %w", c.Value, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO catalog_conditions (value, doc, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (value) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()
		`, c.Value, doc)
		if err != nil {
			return fmt.Errorf("upsert condition %s: %w", c.Value, err)
		}
		conditionValues = append(conditionValues, c.Value)
	}
	if _, err := tx.Exec(ctx,
		"DELETE FROM catalog_conditions WHERE value <> ALL($1)", conditionValues); err != nil {
		return fmt.Errorf("prune conditions: %w", err)
	}

	mappingConditions := make([]string, 0, len(snap.Mappings))
	for _, m := range snap.Mappings {
		doc, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode mapping %s: %w", m.Condition, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO catalog_mappings (condition, doc, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (condition) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()
		`, m.Condition, doc)
		if err != nil {
			return fmt.Errorf("upsert mapping %s: %w", m.Condition, err)
		}
		mappingConditions = append(mappingConditions, m.Condition)
	}
	if _, err := tx.Exec(ctx,
		"DELETE FROM catalog_mappings WHERE condition <> ALL($1)", mappingConditions); err != nil {
		return fmt.Errorf("prune mappings: %w", err)
	}

	return nil
}

// OverrideStore persists per-clinic treatment overrides keyed by
// (clinic_id, treatment_code).
type OverrideStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

// NewOverrideStore creates an override store backed by the given pool.
func NewOverrideStore(pool *pgxpool.Pool, logger *zap.Logger) *OverrideStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverrideStore{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("override-store"),
	}
}

// Upsert writes or replaces one clinic override.
func (s *OverrideStore) Upsert(ctx context.Context, o catalog.Override) error {
	ctx, span := s.tracer.Start(ctx, "override_upsert",
		trace.WithAttributes(
			attribute.String("clinic_id", o.ClinicID),
			attribute.String("treatment_code", o.TreatmentCode),
		))
	defer span.End()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO clinic_overrides (clinic_id, treatment_code, price_aud, duration_minutes, ada_code, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (clinic_id, treatment_code)
		DO UPDATE SET price_aud = EXCLUDED.price_aud,
		              duration_minutes = EXCLUDED.duration_minutes,
		              ada_code = EXCLUDED.ada_code,
		              updated_at = NOW()
	`, o.ClinicID, o.TreatmentCode, o.PriceAUD, o.Duration, o.ADACode)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("upsert override: %w", err)
	}
	return nil
}

// Get returns the override for one clinic and treatment, or ErrNotFound.
func (s *OverrideStore) Get(ctx context.Context, clinicID, treatmentCode string) (catalog.Override, error) {
	o := catalog.Override{ClinicID: clinicID, TreatmentCode: treatmentCode}
	err := s.pool.QueryRow(ctx, `
		SELECT price_aud, duration_minutes, ada_code
		FROM clinic_overrides
		WHERE clinic_id = $1 AND treatment_code = $2
	`, clinicID, treatmentCode).Scan(&o.PriceAUD, &o.Duration, &o.ADACode)
	if errors.Is(err, pgx.ErrNoRows) {
		return o, ErrNotFound
	}
	if err != nil {
		return o, fmt.Errorf("get override: %w", err)
	}
	return o, nil
}

// ListForClinic returns all overrides for a clinic ordered by treatment code.
func (s *OverrideStore) ListForClinic(ctx context.Context, clinicID string) ([]catalog.Override, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT treatment_code, price_aud, duration_minutes, ada_code
		FROM clinic_overrides
		WHERE clinic_id = $1
		ORDER BY treatment_code
	`, clinicID)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	defer rows.Close()

	var out []catalog.Override
	for rows.Next() {
		o := catalog.Override{ClinicID: clinicID}
		if err := rows.Scan(&o.TreatmentCode, &o.PriceAUD, &o.Duration, &o.ADACode); err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Delete removes one clinic override. Deleting a missing override is a no-op.
func (s *OverrideStore) Delete(ctx context.Context, clinicID, treatmentCode string) error {
	_, err := s.pool.Exec(ctx,
		"DELETE FROM clinic_overrides WHERE clinic_id = $1 AND treatment_code = $2",
		clinicID, treatmentCode)
	if err != nil {
		return fmt.Errorf("delete override: %w", err)
	}
	return nil
}
