package domain

import (
	"testing"
	"time"

	"github.com/groupscope/groupscope/internal/schema"
	"github.com/stretchr/testify/assert"
)

// Every attribute a row emits must exist in its table schema, or publishing
// would reject the whole row set.
func TestAttributesMatchSchemas(t *testing.T) {
	days := 12

	snapshot := GroupSnapshotRow{
		GroupID:                "g1",
		Created:                time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		DaysSinceContentUpdate: &days,
		IsRecent:               true,
	}
	assert.NoError(t, schema.GroupSnapshot("s").Validate(snapshot.Attributes()))

	content := ContentRow{ItemID: "i1", GroupID: "g1", DaysSinceUpdate: &days}
	assert.NoError(t, schema.GroupContent("c").Validate(content.Attributes()))

	membership := MembershipRow{Username: "alice", GroupID: "g1"}
	assert.NoError(t, schema.GroupMembers("m").Validate(membership.Attributes()))
}

func TestAttributeEncodings(t *testing.T) {
	created := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	row := GroupSnapshotRow{
		Created:  created,
		IsRecent: true,
	}
	attrs := row.Attributes()

	// Date columns take epoch milliseconds on the wire, midnight UTC.
	assert.Equal(t, created.UnixMilli(), attrs["group_created"])
	assert.Equal(t, "True", attrs["is_recent"])
	assert.Equal(t, "False", attrs["is_empty"])
	assert.Nil(t, attrs["days_since_content_update"])

	// A zero time means the source never supplied a value.
	empty := GroupSnapshotRow{}
	assert.Nil(t, empty.Attributes()["group_created"])
}

func TestRowKeys(t *testing.T) {
	assert.Equal(t, "i1/g1", ContentRow{ItemID: "i1", GroupID: "g1"}.Key())
	assert.Equal(t, "alice/g1", MembershipRow{Username: "alice", GroupID: "g1"}.Key())
}
