package publisher

import (
	"context"
	"errors"
	"fmt"

	"github.com/groupscope/groupscope/internal/config"
	"github.com/groupscope/groupscope/internal/portal"
	"github.com/groupscope/groupscope/internal/schema"
	"go.uber.org/zap"
)

// State names the table lifecycle states of the publish procedure.
//
//	NotExists -> create -> Empty -> append -> Populated
//	Populated -> delete-all -> Empty -> append -> Populated
//
// Partial is terminal and always surfaced as an error: a half-replaced
// table must never look like a successful run.
type State string

const (
	StateNotExists State = "not_exists"
	StateEmpty     State = "exists_empty"
	StatePopulated State = "exists_populated"
	StatePartial   State = "exists_partial"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

var (
	// ErrPartialAppend marks a run that left the table with only part of
	// the row set. The table needs manual remediation or a re-run.
	ErrPartialAppend = errors.New("partial_append")
)

// Portal is the slice of the portal client the publisher needs.
type Portal interface {
	FindTableItem(ctx context.Context, title string) (*portal.Item, error)
	EnsureFolder(ctx context.Context, name string) (string, error)
	CreateHostedTable(ctx context.Context, name string, tableDef map[string]any) (*portal.Item, error)
	UpdateItem(ctx context.Context, itemID string, props map[string]string) error
	MoveItem(ctx context.Context, itemID, folderID string) error
	ShareOrg(ctx context.Context, itemID string) error
	DeleteAllRows(ctx context.Context, serviceURL string) error
	AppendRows(ctx context.Context, serviceURL string, rows []map[string]any) error
	AddRows(ctx context.Context, serviceURL string, rows []map[string]any, batchSize int) (int, []portal.RowError, error)
}

// Result reports the outcome of one table publish.
type Result struct {
	Item     *portal.Item
	Action   Action
	State    State
	RowCount int
	Added    int
	Rejected []portal.RowError
	FellBack bool
}

// Publisher creates a hosted table on first run and fully replaces its
// contents on later runs, keeping the item identity stable so dashboards
// that reference the table by ID keep working.
type Publisher struct {
	portal    Portal
	folder    string
	batchSize int
	log       *zap.Logger
}

func New(cfg config.Config, client *portal.Client, log *zap.Logger) *Publisher {
	return NewWithPortal(cfg, client, log)
}

func NewWithPortal(cfg config.Config, p Portal, log *zap.Logger) *Publisher {
	return &Publisher{
		portal:    p,
		folder:    cfg.OutputFolder,
		batchSize: cfg.EditBatchSize,
		log:       log.Named("publisher"),
	}
}

// Publish upserts one hosted table: create when missing, delete-all-then-
// append when present. Rows are attribute maps already validated against
// the builders' truncation rules; Publish re-validates against the schema
// to catch drift before touching the service.
func (p *Publisher) Publish(ctx context.Context, table schema.Table, rows []map[string]any) (Result, error) {
	for i, row := range rows {
		if err := table.Validate(row); err != nil {
			return Result{State: StateNotExists}, fmt.Errorf("row %d: %w", i, err)
		}
	}

	log := p.log.With(zap.String("table", table.Name), zap.Int("rows", len(rows)))

	item, err := p.portal.FindTableItem(ctx, table.Name)
	switch {
	case errors.Is(err, portal.ErrTableNotFound):
		return p.create(ctx, log, table, rows)
	case err != nil:
		// Includes duplicate titles: fatal for this table, the run may
		// continue with the others.
		return Result{State: StateNotExists}, fmt.Errorf("publish %s: %w", table.Name, err)
	default:
		return p.update(ctx, log, item, table, rows)
	}
}

func (p *Publisher) create(ctx context.Context, log *zap.Logger, table schema.Table, rows []map[string]any) (Result, error) {
	result := Result{Action: ActionCreate, State: StateNotExists, RowCount: len(rows)}

	folderID, err := p.portal.EnsureFolder(ctx, p.folder)
	if err != nil {
		return result, fmt.Errorf("publish %s: %w", table.Name, err)
	}

	item, err := p.portal.CreateHostedTable(ctx, table.Name, table.Definition())
	if err != nil {
		return result, fmt.Errorf("publish %s: %w", table.Name, err)
	}
	result.Item = item
	result.State = StateEmpty
	log.Info("table created", zap.String("item_id", item.ID))

	if err := p.append(ctx, log, item, rows, &result); err != nil {
		return result, fmt.Errorf("publish %s: %w", table.Name, err)
	}

	if err := p.portal.UpdateItem(ctx, item.ID, map[string]string{
		"title":       table.Name,
		"description": table.Description,
	}); err != nil {
		log.Warn("item properties not updated", zap.Error(err))
	}
	if err := p.portal.ShareOrg(ctx, item.ID); err != nil {
		log.Warn("organization sharing failed", zap.Error(err))
	}
	if err := p.portal.MoveItem(ctx, item.ID, folderID); err != nil {
		// Published services land in the root folder; a failed move is
		// cosmetic, not fatal.
		log.Warn("move to folder failed", zap.String("folder", p.folder), zap.Error(err))
	}

	log.Info("table published", zap.String("item_id", item.ID), zap.Int("added", result.Added))
	return result, nil
}

func (p *Publisher) update(ctx context.Context, log *zap.Logger, item *portal.Item, table schema.Table, rows []map[string]any) (Result, error) {
	result := Result{Item: item, Action: ActionUpdate, State: StatePopulated, RowCount: len(rows)}
	log = log.With(zap.String("item_id", item.ID))
	log.Info("existing table found, item identity will be preserved")

	if err := p.portal.DeleteAllRows(ctx, item.URL); err != nil {
		return result, fmt.Errorf("publish %s: %w", table.Name, err)
	}
	result.State = StateEmpty

	if err := p.append(ctx, log, item, rows, &result); err != nil {
		return result, fmt.Errorf("publish %s: %w", table.Name, err)
	}

	log.Info("table updated", zap.Int("added", result.Added))
	return result, nil
}

// append tries the bulk path first and falls back to record-by-record
// edits. Partial success terminates in StatePartial with ErrPartialAppend.
func (p *Publisher) append(ctx context.Context, log *zap.Logger, item *portal.Item, rows []map[string]any, result *Result) error {
	if len(rows) == 0 {
		return nil
	}

	bulkErr := p.portal.AppendRows(ctx, item.URL, rows)
	if bulkErr == nil {
		result.Added = len(rows)
		result.State = StatePopulated
		return nil
	}
	log.Warn("bulk append failed, falling back to record-by-record edits", zap.Error(bulkErr))
	result.FellBack = true

	added, rejected, err := p.portal.AddRows(ctx, item.URL, rows, p.batchSize)
	result.Added = added
	result.Rejected = rejected
	if err != nil {
		result.State = partialState(added)
		return fmt.Errorf("record fallback after bulk failure (%v): %w", bulkErr, err)
	}
	if len(rejected) > 0 {
		result.State = partialState(added)
		for _, r := range rejected[:min(len(rejected), 5)] {
			log.Error("row rejected",
				zap.Int("row", r.Index),
				zap.Int("code", r.Code),
				zap.String("description", r.Description),
			)
		}
		return fmt.Errorf("%d of %d rows rejected: %w", len(rejected), len(rows), ErrPartialAppend)
	}
	result.State = StatePopulated
	return nil
}

func partialState(added int) State {
	if added == 0 {
		return StateEmpty
	}
	return StatePartial
}
