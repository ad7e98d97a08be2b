package runledger

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/groupscope/groupscope/internal/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var ErrNoPublish = errors.New("no_publish_recorded")

// Ledger is the local run-history store. It is not the published output;
// it exists so operators can see what each run did to which item.
type Ledger struct {
	db    *gorm.DB
	genID *snowflake.Node
	log   *zap.Logger
}

func New(cfg config.Config, genID *snowflake.Node, log *zap.Logger) (*Ledger, error) {
	db, err := gorm.Open(sqlite.Open(cfg.LedgerPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return NewWithDB(db, genID, log)
}

func NewWithDB(db *gorm.DB, genID *snowflake.Node, log *zap.Logger) (*Ledger, error) {
	if err := db.AutoMigrate(&Run{}, &TablePublish{}); err != nil {
		return nil, err
	}
	return &Ledger{db: db, genID: genID, log: log.Named("runledger")}, nil
}

// BeginRun opens a run record in state running, echoing the config that
// shapes the output.
func (l *Ledger) BeginRun(ctx context.Context, cfg config.Config) (*Run, error) {
	run := &Run{
		ID:           l.genID.Generate(),
		StartedAt:    time.Now().UTC(),
		Status:       RunRunning,
		TestMode:     cfg.TestMode,
		RecentDays:   cfg.RecentDays,
		OutputFolder: cfg.OutputFolder,
	}
	if err := l.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

// FinishRun closes a run record with its final status and counters.
func (l *Ledger) FinishRun(ctx context.Context, run *Run, runErr error) error {
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Status = RunSucceeded
	if runErr != nil {
		run.Status = RunFailed
		run.Error = runErr.Error()
	}
	return l.db.WithContext(ctx).Save(run).Error
}

// RecordPublish appends one table-publish outcome to the run.
func (l *Ledger) RecordPublish(ctx context.Context, rec TablePublish) error {
	rec.ID = l.genID.Generate()
	rec.CreatedAt = time.Now().UTC()
	return l.db.WithContext(ctx).Create(&rec).Error
}

// LastItemID returns the hosted item identity recorded by the most recent
// publish of the named table.
func (l *Ledger) LastItemID(ctx context.Context, tableName string) (string, error) {
	var rec TablePublish
	err := l.db.WithContext(ctx).
		Where("table_name = ? AND item_id <> ''", tableName).
		Order("created_at DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNoPublish
	}
	if err != nil {
		return "", err
	}
	return rec.ItemID, nil
}

// History lists the publish records of a table, newest first.
func (l *Ledger) History(ctx context.Context, tableName string, limit int) ([]TablePublish, error) {
	if limit <= 0 {
		limit = 20
	}
	var recs []TablePublish
	err := l.db.WithContext(ctx).
		Where("table_name = ?", tableName).
		Order("created_at DESC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}
