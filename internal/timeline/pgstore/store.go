// Package pgstore persists committed tick snapshots to Postgres via bun,
// so a timeline survives process restarts. Provenance records are not
// stored.
// It is an optional durability layer: Executor and Timeline operate
// entirely in memory, and a Store is wired in alongside them only when
// the application wants ticks to outlive the process.
package pgstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/longtable/longtable/internal/serialize"
	"github.com/longtable/longtable/internal/timeline"
)

// Store is a bun-backed durable store for timeline snapshots.
type Store struct {
	db *bun.DB
}

// New opens a Store against dsn without issuing any queries.
func New(dsn string) *Store {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &Store{db: db}
}

// SnapshotModel is the row shape for one committed tick on one branch.
type SnapshotModel struct {
	bun.BaseModel `bun:"table:longtable_snapshots,alias:s"`

	ID        uuid.UUID `bun:"id,pk"`
	Branch    string    `bun:"branch,unique:branch_tick"`
	TickID    uint64    `bun:"tick_id,unique:branch_tick"`
	Summary   string    `bun:"summary"`
	WorldBlob []byte    `bun:"world_blob,type:bytea"`
	CreatedAt time.Time `bun:"created_at"`
}

// InitSchema creates the snapshot table if it does not already exist.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*SnapshotModel)(nil)).IfNotExists().Exec(ctx)
	return err
}

// SaveSnapshot encodes snap's World with MessagePack and upserts one row
// keyed by (branch, tick_id).
func (s *Store) SaveSnapshot(ctx context.Context, branch string, snap timeline.Snapshot) error {
	blob, err := serialize.EncodeWorld(snap.World)
	if err != nil {
		return err
	}
	model := &SnapshotModel{
		ID:        uuid.New(),
		Branch:    branch,
		TickID:    snap.TickID,
		Summary:   snap.Summary,
		WorldBlob: blob,
		CreatedAt: time.Now(),
	}
	_, err = s.db.NewInsert().Model(model).
		On("CONFLICT (branch, tick_id) DO UPDATE").
		Set("world_blob = EXCLUDED.world_blob").
		Set("summary = EXCLUDED.summary").
		Exec(ctx)
	return err
}

// LoadSnapshot fetches and decodes the snapshot for (branch, tickID).
func (s *Store) LoadSnapshot(ctx context.Context, branch string, tickID uint64) (timeline.Snapshot, error) {
	var model SnapshotModel
	err := s.db.NewSelect().Model(&model).
		Where("branch = ? AND tick_id = ?", branch, tickID).
		Scan(ctx)
	if err != nil {
		return timeline.Snapshot{}, err
	}
	world, err := serialize.DecodeWorld(model.WorldBlob)
	if err != nil {
		return timeline.Snapshot{}, err
	}
	return timeline.Snapshot{TickID: model.TickID, World: world, Summary: model.Summary}, nil
}
