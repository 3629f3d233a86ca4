// Package audit is a best-effort, out-of-band persistence layer for
// governance dashboards. It records the result of each conservation-check
// pass and each keeper-crank summary to a relational store via GORM. It
// never participates in the engine's own correctness: a write failure is
// logged and swallowed, the same log-and-continue pattern as the rest of
// this codebase's best-effort paths.
package audit

import (
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// ConservationSnapshot is the append-only row persisted after each
// conservation-check pass.
type ConservationSnapshot struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	CheckedAtUnix int64  `gorm:"column:checked_at_unix;index"`
	Vault         string `gorm:"column:vault"`
	CTot          string `gorm:"column:c_tot"`
	PnLPosTot     string `gorm:"column:pnl_pos_tot"`
	Insurance     string `gorm:"column:insurance"`
	Slack         string `gorm:"column:slack"`
	PrimaryHolds  bool   `gorm:"column:primary_holds"`
	ExtendedHolds bool   `gorm:"column:extended_holds"`
}

func (ConservationSnapshot) TableName() string { return "conservation_snapshots" }

// CrankSummary is the append-only row persisted after each keeper crank.
type CrankSummary struct {
	ID             uint  `gorm:"primaryKey;autoIncrement"`
	RanAtUnix      int64 `gorm:"column:ran_at_unix;index"`
	Slot           uint64 `gorm:"column:slot"`
	AccountsTouched int   `gorm:"column:accounts_touched"`
	Liquidations    int   `gorm:"column:liquidations"`
	ForceRealizes   int   `gorm:"column:force_realizes"`
	GCClosures      int   `gorm:"column:gc_closures"`
	SweepCompleted  bool  `gorm:"column:sweep_completed"`
}

func (CrankSummary) TableName() string { return "crank_summaries" }

// Store wraps a *gorm.DB with the two append-only writers the engine's
// host wrapper calls after each conservation check / crank.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewStore wraps db and auto-migrates the two snapshot tables.
func NewStore(db *gorm.DB, logger zerolog.Logger) (*Store, error) {
	if err := db.AutoMigrate(&ConservationSnapshot{}, &CrankSummary{}); err != nil {
		return nil, err
	}
	return &Store{db: db, logger: logger}, nil
}

// RecordConservation persists a conservation-check snapshot. Failure is
// logged and swallowed: the checker's own pass/fail verdict does not depend
// on whether this write succeeds.
func (s *Store) RecordConservation(row ConservationSnapshot, nowUnix int64) {
	row.CheckedAtUnix = nowUnix
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	}); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist conservation snapshot")
	}
}

// RecordCrank persists a keeper-crank summary. Failure is logged and
// swallowed.
func (s *Store) RecordCrank(row CrankSummary, nowUnix int64) {
	row.RanAtUnix = nowUnix
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	}); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist crank summary")
	}
}
