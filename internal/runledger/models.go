package runledger

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one end-to-end execution of the pipeline. The config knobs that
// shape the output are echoed onto the record so a run can be interpreted
// later without the environment it ran in.
type Run struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	StartedAt      time.Time    `gorm:"not null"`
	FinishedAt     *time.Time
	Status         RunStatus `gorm:"not null;index"`
	TestMode       bool
	RecentDays     int
	OutputFolder   string
	GroupsAnalyzed int
	TotalGroups    int
	Error          string
}

// TablePublish records the outcome of one table publish within a run,
// including the hosted item identity so identity stability can be verified
// across runs and a failed replace can be remediated by hand.
type TablePublish struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	RunID      snowflake.ID `gorm:"not null;index"`
	TableName  string       `gorm:"not null;index"`
	ItemID     string
	Action     string
	FinalState string
	RowCount   int
	Added      int
	Rejected   int
	FellBack   bool
	Error      string
	Detail     datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt  time.Time         `gorm:"not null"`
}
