package runledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/groupscope/groupscope/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	assert.NoError(t, err)

	node, err := snowflake.NewNode(1)
	assert.NoError(t, err)

	ledger, err := NewWithDB(db, node, zap.NewNop())
	assert.NoError(t, err)
	return ledger
}

func TestRunLifecycle(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	run, err := ledger.BeginRun(ctx, config.Config{
		TestMode:     true,
		RecentDays:   90,
		OutputFolder: "Group Analytics",
	})
	assert.NoError(t, err)
	assert.NotZero(t, run.ID)
	assert.Equal(t, RunRunning, run.Status)
	assert.True(t, run.TestMode)
	assert.Nil(t, run.FinishedAt)

	// Config echo, so old runs stay interpretable.
	assert.Equal(t, 90, run.RecentDays)
	assert.Equal(t, "Group Analytics", run.OutputFolder)

	run.GroupsAnalyzed = 10
	run.TotalGroups = 42
	assert.NoError(t, ledger.FinishRun(ctx, run, nil))
	assert.Equal(t, RunSucceeded, run.Status)
	assert.NotNil(t, run.FinishedAt)
}

func TestFinishRunRecordsFailure(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	run, err := ledger.BeginRun(ctx, config.Config{RecentDays: 90})
	assert.NoError(t, err)

	assert.NoError(t, ledger.FinishRun(ctx, run, errors.New("portal unreachable")))
	assert.Equal(t, RunFailed, run.Status)
	assert.Equal(t, "portal unreachable", run.Error)
}

func TestLastItemIDAndHistory(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.LastItemID(ctx, "Group_Snapshot")
	assert.ErrorIs(t, err, ErrNoPublish)

	run, err := ledger.BeginRun(ctx, config.Config{RecentDays: 90})
	assert.NoError(t, err)

	assert.NoError(t, ledger.RecordPublish(ctx, TablePublish{
		RunID: run.ID, TableName: "Group_Snapshot", ItemID: "T1",
		Action: "create", FinalState: "exists_populated", RowCount: 5, Added: 5,
	}))
	// Failed publish with no item must not shadow the recorded identity.
	assert.NoError(t, ledger.RecordPublish(ctx, TablePublish{
		RunID: run.ID, TableName: "Group_Snapshot", Error: "create failed",
	}))
	assert.NoError(t, ledger.RecordPublish(ctx, TablePublish{
		RunID: run.ID, TableName: "Group_Content", ItemID: "T2",
		Action: "create", FinalState: "exists_populated",
	}))

	id, err := ledger.LastItemID(ctx, "Group_Snapshot")
	assert.NoError(t, err)
	assert.Equal(t, "T1", id)

	history, err := ledger.History(ctx, "Group_Snapshot", 10)
	assert.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestLastItemIDReturnsNewest(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	run, err := ledger.BeginRun(ctx, config.Config{RecentDays: 90})
	assert.NoError(t, err)

	assert.NoError(t, ledger.RecordPublish(ctx, TablePublish{
		RunID: run.ID, TableName: "Group_Members", ItemID: "OLD",
	}))
	// Keep the CreatedAt ordering unambiguous.
	time.Sleep(5 * time.Millisecond)
	assert.NoError(t, ledger.RecordPublish(ctx, TablePublish{
		RunID: run.ID, TableName: "Group_Members", ItemID: "NEW",
	}))

	id, err := ledger.LastItemID(ctx, "Group_Members")
	assert.NoError(t, err)
	assert.Equal(t, "NEW", id)
}
