package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/groupscope/groupscope/internal/analytics/domain"
	"github.com/groupscope/groupscope/internal/analytics/service"
	"github.com/groupscope/groupscope/internal/config"
	"github.com/groupscope/groupscope/internal/portal"
	"github.com/groupscope/groupscope/internal/publisher"
	"github.com/groupscope/groupscope/internal/runledger"
	"github.com/groupscope/groupscope/internal/schema"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// maxGroupItems bounds the per-group content listing.
const maxGroupItems = 1000

// Options selects which tables a run publishes. The snapshot-only variant
// publishes just Group_Snapshot.
type Options struct {
	IncludeContent bool
	IncludeMembers bool
}

// Source is the slice of the portal client the pipeline reads from.
type Source interface {
	PortalSelf(ctx context.Context) (*portal.Self, error)
	SearchUsers(ctx context.Context) ([]portal.User, error)
	SearchGroups(ctx context.Context) ([]portal.Group, error)
	GroupMembers(ctx context.Context, groupID string) (portal.MemberList, error)
	GroupContent(ctx context.Context, groupID string, maxItems int) ([]portal.Item, error)
	ServiceLastEdit(ctx context.Context, serviceURL string) (int64, error)
	BaseURL() string
	IsOnline() bool
}

// TablePublisher publishes one table's row set.
type TablePublisher interface {
	Publish(ctx context.Context, table schema.Table, rows []map[string]any) (publisher.Result, error)
}

// Pipeline runs one end-to-end analysis: read the org, build rows, publish
// tables. Execution is single-threaded and sequential; concurrent runs
// against the same tables are not guarded and would race on delete/append.
type Pipeline struct {
	cfg     config.Config
	opts    Options
	source  Source
	builder *service.Builder
	pub     TablePublisher
	ledger  *runledger.Ledger
	log     *zap.Logger
}

func New(cfg config.Config, opts Options, client *portal.Client, builder *service.Builder, pub *publisher.Publisher, ledger *runledger.Ledger, log *zap.Logger) *Pipeline {
	return NewWithDeps(cfg, opts, client, builder, pub, ledger, log)
}

func NewWithDeps(cfg config.Config, opts Options, source Source, builder *service.Builder, pub TablePublisher, ledger *runledger.Ledger, log *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		opts:    opts,
		source:  source,
		builder: builder,
		pub:     pub,
		ledger:  ledger,
		log:     log.Named("pipeline"),
	}
}

// rowSets holds one run's transient output; discarded after publish.
type rowSets struct {
	snapshot    []domain.GroupSnapshotRow
	content     []domain.ContentRow
	memberships []domain.MembershipRow
}

// Run executes one full pass. A failed table publish is joined into the
// returned error but does not stop the remaining tables.
func (p *Pipeline) Run(ctx context.Context) error {
	run, err := p.ledger.BeginRun(ctx, p.cfg)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	p.log.Info("run started",
		zap.String("run_id", run.ID.String()),
		zap.Bool("test_mode", p.cfg.TestMode),
		zap.String("output_folder", p.cfg.OutputFolder),
		zap.Int("recent_days", p.cfg.RecentDays),
	)

	runErr := p.run(ctx, run)
	if err := p.ledger.FinishRun(ctx, run, runErr); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("finish run: %w", err))
	}
	if runErr != nil {
		p.log.Error("run finished with errors", zap.String("run_id", run.ID.String()), zap.Error(runErr))
	} else {
		p.log.Info("run finished", zap.String("run_id", run.ID.String()))
	}
	return runErr
}

func (p *Pipeline) run(ctx context.Context, run *runledger.Run) error {
	sets, err := p.collect(ctx, run)
	if err != nil {
		return err
	}
	p.builder.Summarize(sets.snapshot, sets.memberships)

	jobs := []struct {
		name    string
		enabled bool
		table   schema.Table
		rows    func() []map[string]any
	}{
		{p.cfg.SnapshotTable, true, schema.GroupSnapshot(p.cfg.SnapshotTable), func() []map[string]any {
			return snapshotAttrs(sets.snapshot)
		}},
		{p.cfg.ContentTable, p.opts.IncludeContent, schema.GroupContent(p.cfg.ContentTable), func() []map[string]any {
			return contentAttrs(sets.content)
		}},
		{p.cfg.MembersTable, p.opts.IncludeMembers, schema.GroupMembers(p.cfg.MembersTable), func() []map[string]any {
			return membershipAttrs(sets.memberships)
		}},
	}

	var errs error
	for _, job := range jobs {
		if !job.enabled {
			continue
		}
		if err := p.publishTable(ctx, run, job.table, job.rows()); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}

// collect reads the org and builds all row sets for the enabled tables.
func (p *Pipeline) collect(ctx context.Context, run *runledger.Run) (rowSets, error) {
	self, err := p.source.PortalSelf(ctx)
	if err != nil {
		return rowSets{}, fmt.Errorf("connect: %w", err)
	}
	info := service.PortalInfo{
		URL:      p.source.BaseURL(),
		OrgID:    self.ID,
		IsOnline: p.source.IsOnline(),
	}

	users, err := p.source.SearchUsers(ctx)
	if err != nil {
		return rowSets{}, fmt.Errorf("user directory: %w", err)
	}
	dir := service.NewDirectory(users)
	p.log.Info("user directory built", zap.Int("users", len(dir)))

	groups, err := p.source.SearchGroups(ctx)
	if err != nil {
		return rowSets{}, fmt.Errorf("groups: %w", err)
	}
	run.TotalGroups = len(groups)
	if p.cfg.TestMode && len(groups) > p.cfg.TestLimit {
		groups = groups[:p.cfg.TestLimit]
		p.log.Info("test mode limit applied", zap.Int("limit", p.cfg.TestLimit))
	}
	run.GroupsAnalyzed = len(groups)
	p.log.Info("groups fetched", zap.Int("total", run.TotalGroups), zap.Int("analyzing", len(groups)))

	var sets rowSets
	for i, group := range groups {
		members, err := p.source.GroupMembers(ctx, group.ID)
		if err != nil {
			p.log.Warn("member listing failed, continuing with empty roster",
				zap.String("group_id", group.ID), zap.Error(err))
			members = portal.MemberList{}
		}
		items, err := p.source.GroupContent(ctx, group.ID, maxGroupItems)
		if err != nil {
			p.log.Warn("content listing failed, continuing with empty content",
				zap.String("group_id", group.ID), zap.Error(err))
			items = nil
		}
		if p.opts.IncludeContent {
			p.resolveEditDates(ctx, items)
		}

		sets.snapshot = append(sets.snapshot, p.builder.SnapshotRow(info, group, items, members, dir))
		if p.opts.IncludeContent {
			sets.content = append(sets.content, p.builder.ContentRows(info, group, items, dir)...)
		}
		if p.opts.IncludeMembers {
			sets.memberships = append(sets.memberships, p.builder.MembershipRows(group, members, dir)...)
		}

		if (i+1)%10 == 0 {
			p.log.Info("groups processed", zap.Int("done", i+1), zap.Int("of", len(groups)))
		}
	}
	return sets, nil
}

// resolveEditDates fills Item.DataModified from service editingInfo for
// feature-backed items, so content rows can report actual data edits rather
// than metadata changes.
func (p *Pipeline) resolveEditDates(ctx context.Context, items []portal.Item) {
	for i := range items {
		item := &items[i]
		if item.URL == "" || !isFeatureType(item.Type) {
			continue
		}
		last, err := p.source.ServiceLastEdit(ctx, item.URL)
		if err != nil {
			continue
		}
		item.DataModified = last
	}
}

func isFeatureType(itemType string) bool {
	switch itemType {
	case "Feature Service", "Feature Layer", "Feature Layer Collection", "Table":
		return true
	default:
		return false
	}
}

func (p *Pipeline) publishTable(ctx context.Context, run *runledger.Run, table schema.Table, rows []map[string]any) error {
	log := p.log.With(zap.String("table", table.Name), zap.String("run_id", run.ID.String()))
	log.Info("publishing", zap.Int("rows", len(rows)))

	previousItemID, err := p.ledger.LastItemID(ctx, table.Name)
	if err != nil {
		previousItemID = ""
	}

	result, pubErr := p.pub.Publish(ctx, table, rows)

	rec := runledger.TablePublish{
		RunID:      run.ID,
		TableName:  table.Name,
		Action:     string(result.Action),
		FinalState: string(result.State),
		RowCount:   result.RowCount,
		Added:      result.Added,
		Rejected:   len(result.Rejected),
		FellBack:   result.FellBack,
		Detail:     publishDetail(result),
	}
	if result.Item != nil {
		rec.ItemID = result.Item.ID
	}
	if pubErr != nil {
		rec.Error = pubErr.Error()
	}
	if err := p.ledger.RecordPublish(ctx, rec); err != nil {
		log.Warn("publish not recorded in run ledger", zap.Error(err))
	}

	if pubErr != nil {
		// A partially replaced table needs manual remediation; say so
		// explicitly.
		log.Error("publish failed",
			zap.String("final_state", string(result.State)),
			zap.Int("added", result.Added),
			zap.Int("of", result.RowCount),
			zap.Error(pubErr),
		)
		return pubErr
	}

	if previousItemID != "" && rec.ItemID != "" && previousItemID != rec.ItemID {
		// Breaks dashboards referencing the old ID; only possible when the
		// table was deleted out of band between runs.
		log.Warn("hosted item identity changed since previous run",
			zap.String("previous_item_id", previousItemID),
			zap.String("item_id", rec.ItemID),
		)
	}
	log.Info("published",
		zap.String("item_id", rec.ItemID),
		zap.String("action", string(result.Action)),
		zap.Int("rows", result.Added),
	)
	return nil
}

// maxDetailRows bounds the rejected-row detail stored per publish record.
const maxDetailRows = 20

// publishDetail captures what an operator needs to remediate a degraded
// publish by hand: whether the bulk path fell back, and which rows the
// portal rejected. Clean publishes store no detail.
func publishDetail(result publisher.Result) datatypes.JSONMap {
	if !result.FellBack && len(result.Rejected) == 0 {
		return nil
	}
	detail := datatypes.JSONMap{"fell_back": result.FellBack}
	rejected := result.Rejected
	if len(rejected) > maxDetailRows {
		detail["rejected_truncated"] = len(rejected) - maxDetailRows
		rejected = rejected[:maxDetailRows]
	}
	if len(rejected) > 0 {
		rows := make([]any, 0, len(rejected))
		for _, r := range rejected {
			rows = append(rows, map[string]any{
				"row":         r.Index,
				"code":        r.Code,
				"description": r.Description,
			})
		}
		detail["rejected"] = rows
	}
	return detail
}

func snapshotAttrs(rows []domain.GroupSnapshotRow) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Attributes())
	}
	return out
}

func contentAttrs(rows []domain.ContentRow) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Attributes())
	}
	return out
}

func membershipAttrs(rows []domain.MembershipRow) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Attributes())
	}
	return out
}
