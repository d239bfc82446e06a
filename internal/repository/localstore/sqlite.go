package localstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pastvra/pastvra/internal/domain/models"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

const pageSize = 100

// A drain claim older than this belongs to a pass that died without
// releasing it and may be taken over.
const drainLockTTL = 10 * time.Minute

// SQLite is the durable Store kept on the capture device.
type SQLite struct {
	db     *sql.DB
	logger *zap.Logger
	subs   subscribers
	now    func() time.Time
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the database at path with WAL enabled
// and applies the schema. Use ":memory:" for a throwaway database.
func OpenSQLite(path string, logger *zap.Logger) (*SQLite, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn := ":memory:"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("creating local store directory: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_txlock=immediate", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening local store: %w", err)
	}
	// One connection serialises every queue operation.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying local schema: %w", err)
	}

	logger.Named("localstore").Debug("local store ready", zap.String("path", path))
	return &SQLite{db: db, logger: logger.Named("localstore"), now: time.Now}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Enqueue(ctx context.Context, rec models.PendingWeightRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_weights (idempotency_key, farm_id, animal_id, measured_on, weight_kg, queued_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.IdempotencyKey, rec.FarmID, rec.AnimalID,
		rec.MeasuredOn.Format(models.DateLayout), rec.WeightKg, rec.QueuedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("enqueueing weight %s: %w", rec.IdempotencyKey, err)
	}
	s.notify(ctx)
	return nil
}

func (s *SQLite) ListOrderedByQueueTime(ctx context.Context) iter.Seq2[models.PendingWeightRecord, error] {
	return func(yield func(models.PendingWeightRecord, error) bool) {
		var bound sql.NullInt64
		if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM pending_weights`).Scan(&bound); err != nil {
			yield(models.PendingWeightRecord{}, fmt.Errorf("reading queue bound: %w", err))
			return
		}
		if !bound.Valid {
			return
		}

		var (
			afterQueued int64 = -1 << 63
			afterSeq    int64 = -1
		)
		for {
			page, err := s.page(ctx, bound.Int64, afterQueued, afterSeq)
			if err != nil {
				yield(models.PendingWeightRecord{}, err)
				return
			}
			for _, p := range page {
				if !yield(p.record, nil) {
					return
				}
			}
			if len(page) < pageSize {
				return
			}
			last := page[len(page)-1]
			afterQueued, afterSeq = last.queuedAt, last.seq
		}
	}
}

type pendingRow struct {
	seq      int64
	queuedAt int64
	record   models.PendingWeightRecord
}

// page reads one keyset page and releases the connection before returning,
// so callers may Remove while iterating.
func (s *SQLite) page(ctx context.Context, bound, afterQueued, afterSeq int64) ([]pendingRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, idempotency_key, farm_id, animal_id, measured_on, weight_kg, queued_at
		FROM pending_weights
		WHERE seq <= ? AND (queued_at > ? OR (queued_at = ? AND seq > ?))
		ORDER BY queued_at, seq
		LIMIT ?`,
		bound, afterQueued, afterQueued, afterSeq, pageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("listing pending weights: %w", err)
	}
	defer rows.Close()

	out := make([]pendingRow, 0, pageSize)
	for rows.Next() {
		var (
			row        pendingRow
			measuredOn string
		)
		if err := rows.Scan(&row.seq, &row.record.IdempotencyKey, &row.record.FarmID, &row.record.AnimalID,
			&measuredOn, &row.record.WeightKg, &row.queuedAt); err != nil {
			return nil, fmt.Errorf("scanning pending weight: %w", err)
		}
		row.record.MeasuredOn, err = models.ParseDate(measuredOn)
		if err != nil {
			return nil, fmt.Errorf("parsing measured_on of %s: %w", row.record.IdempotencyKey, err)
		}
		row.record.QueuedAt = time.Unix(0, row.queuedAt).UTC()
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pending weights: %w", err)
	}
	return out, nil
}

func (s *SQLite) Remove(ctx context.Context, idempotencyKey string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pending_weights WHERE idempotency_key = ?`, idempotencyKey)
	if err != nil {
		return fmt.Errorf("removing pending weight %s: %w", idempotencyKey, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.notify(ctx)
	}
	return nil
}

func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_weights`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting pending weights: %w", err)
	}
	return n, nil
}

// TryLockDrain claims the single drain_lock row with one upsert, taking over
// claims older than drainLockTTL.
func (s *SQLite) TryLockDrain(ctx context.Context) (func(), bool, error) {
	owner := uuid.NewString()
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO drain_lock (id, owner, acquired_at) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET owner = excluded.owner, acquired_at = excluded.acquired_at
		WHERE drain_lock.acquired_at < ?`,
		owner, now.UnixNano(), now.Add(-drainLockTTL).UnixNano(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("claiming drain lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("claiming drain lock: %w", err)
	}
	if n == 0 {
		return nil, false, nil
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			if _, err := s.db.ExecContext(context.WithoutCancel(ctx),
				`DELETE FROM drain_lock WHERE owner = ?`, owner); err != nil {
				s.logger.Warn("releasing drain lock", zap.Error(err))
			}
		})
	}
	return release, true, nil
}

func (s *SQLite) Subscribe(fn func(count int)) func() {
	return s.subs.add(fn)
}

func (s *SQLite) notify(ctx context.Context) {
	n, err := s.Count(ctx)
	if err != nil {
		s.logger.Warn("pending count unavailable for subscribers", zap.Error(err))
		return
	}
	s.subs.notify(n)
}

func (s *SQLite) PutAnimal(ctx context.Context, a models.AnimalSummaryCache) error {
	var measuredOn sql.NullString
	if a.LastMeasuredOn != nil {
		measuredOn = sql.NullString{String: a.LastMeasuredOn.Format(models.DateLayout), Valid: true}
	}
	var weight sql.NullFloat64
	if a.LastWeightKg != nil {
		weight = sql.NullFloat64{Float64: *a.LastWeightKg, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO animal_cache (animal_id, farm_id, chip_id, ear_tag, display_name, photo_path, last_weight_kg, last_measured_on)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (animal_id) DO UPDATE SET
			farm_id = excluded.farm_id,
			chip_id = excluded.chip_id,
			ear_tag = excluded.ear_tag,
			display_name = excluded.display_name,
			photo_path = excluded.photo_path,
			last_weight_kg = excluded.last_weight_kg,
			last_measured_on = excluded.last_measured_on`,
		a.AnimalID, a.FarmID, nullString(a.ChipID), nullString(a.EarTag),
		nullString(a.DisplayName), nullString(a.PhotoPath), weight, measuredOn,
	)
	if err != nil {
		return fmt.Errorf("caching animal %s: %w", a.AnimalID, err)
	}
	return nil
}

func (s *SQLite) FindAnimal(ctx context.Context, farmID, term string) (*models.AnimalSummaryCache, error) {
	if term == "" {
		return nil, models.ErrNotCached
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT animal_id, farm_id, chip_id, ear_tag, display_name, photo_path, last_weight_kg, last_measured_on
		FROM animal_cache
		WHERE farm_id = ? AND (chip_id = ? OR ear_tag = ?)
		LIMIT 1`,
		farmID, term, term,
	)
	return scanAnimal(row)
}

func (s *SQLite) GetAnimal(ctx context.Context, animalID string) (*models.AnimalSummaryCache, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT animal_id, farm_id, chip_id, ear_tag, display_name, photo_path, last_weight_kg, last_measured_on
		FROM animal_cache
		WHERE animal_id = ?`,
		animalID,
	)
	return scanAnimal(row)
}

func scanAnimal(row *sql.Row) (*models.AnimalSummaryCache, error) {
	var (
		a                               models.AnimalSummaryCache
		chip, ear, display, photo, date sql.NullString
		weight                          sql.NullFloat64
	)
	err := row.Scan(&a.AnimalID, &a.FarmID, &chip, &ear, &display, &photo, &weight, &date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotCached
	}
	if err != nil {
		return nil, fmt.Errorf("reading animal cache: %w", err)
	}

	a.ChipID, a.EarTag, a.DisplayName, a.PhotoPath = chip.String, ear.String, display.String, photo.String
	if weight.Valid {
		w := weight.Float64
		a.LastWeightKg = &w
	}
	if date.Valid {
		d, err := models.ParseDate(date.String)
		if err != nil {
			return nil, fmt.Errorf("parsing cached last_measured_on: %w", err)
		}
		a.LastMeasuredOn = &d
	}
	return &a, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
