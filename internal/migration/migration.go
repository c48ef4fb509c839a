// Package migration upgrades stored asset records from older on-disk
// layouts to the current one before the node accepts commands.
package migration

import (
	"fmt"
	"log/slog"
	"time"

	"Pedigree/internal/ledger"
	"Pedigree/internal/logger"
	"Pedigree/internal/storage"
)

// CurrentVersion is the schema version of the current asset layout.
const CurrentVersion uint16 = 2

// PlaceholderLabel is given to records that predate labels.
var PlaceholderLabel = ledger.Label{'a', 'b', 'c', 'd', '0', '0', '0', '0'}

// Report describes a completed run.
type Report struct {
	From     uint16 // From is the version found on disk
	To       uint16 // To is the version on disk after the run
	Migrated int    // Migrated is the number of rewritten records
}

// Engine migrates the asset records of one database.
type Engine struct {
	db  *storage.Storage
	log *slog.Logger
}

// New creates an engine over db.
func New(db *storage.Storage) *Engine {
	return &Engine{db: db, log: logger.Component("migration")}
}

// Pending reports whether the stored version is behind CurrentVersion.
func (e *Engine) Pending() (bool, uint16, error) {
	version, err := ledger.NewStore(e.db).SchemaVersion()
	if err != nil {
		return false, 0, err
	}

	return version < CurrentVersion, version, nil
}

// Run rewrites every asset record from the stored version's layout into the
// current layout and records CurrentVersion, all in one batch. Nothing is
// written unless every record decodes. A database already at or above
// CurrentVersion is left untouched.
func (e *Engine) Run() (Report, error) {
	start := time.Now()

	pending, version, err := e.Pending()
	if err != nil {
		return Report{}, fmt.Errorf("read schema version:\n%w", err)
	}

	if !pending {
		return Report{From: version, To: version}, nil
	}

	decode, err := decoderFor(version)
	if err != nil {
		return Report{}, err
	}

	type rewrite struct {
		id    ledger.AssetID
		asset ledger.Asset
	}

	var rewrites []rewrite

	err = ledger.NewStore(e.db).RawAssets(func(id ledger.AssetID, data []byte) error {
		asset, err := decode(data)
		if err != nil {
			return fmt.Errorf("decode asset %d as v%d:\n%w", id, version, err)
		}

		rewrites = append(rewrites, rewrite{id: id, asset: asset})
		return nil
	})
	if err != nil {
		return Report{}, err
	}

	batch := e.db.NewBatch()
	defer batch.Discard()

	store := ledger.NewStore(batch)

	for _, r := range rewrites {
		if err := store.PutAsset(r.id, r.asset); err != nil {
			return Report{}, fmt.Errorf("write asset %d:\n%w", r.id, err)
		}
	}

	if err := store.SetSchemaVersion(CurrentVersion); err != nil {
		return Report{}, err
	}

	if err := batch.Commit(); err != nil {
		return Report{}, fmt.Errorf("commit migration:\n%w", err)
	}

	report := Report{From: version, To: CurrentVersion, Migrated: len(rewrites)}

	e.log.Info("schema migrated",
		"from", report.From,
		"to", report.To,
		"records", report.Migrated,
		logger.Timed(start),
	)

	return report, nil
}
