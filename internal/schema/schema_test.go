package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	table := GroupSnapshot("Group_Snapshot")

	ok := map[string]any{
		"group_id":             "abc123",
		"group_title":          "Roads",
		"group_item_count":     12,
		"group_item_score":     66.67,
		"has_external_members": "False",
		"group_created":        nil,
	}
	assert.NoError(t, table.Validate(ok))

	bad := map[string]any{"no_such_field": "x"}
	err := table.Validate(bad)
	assert.ErrorIs(t, err, ErrUnknownField)

	tooLong := map[string]any{"group_title": strings.Repeat("x", 257)}
	err = table.Validate(tooLong)
	assert.ErrorIs(t, err, ErrValueTooLong)

	atLimit := map[string]any{"group_title": strings.Repeat("x", 256)}
	assert.NoError(t, table.Validate(atLimit))

	// Rune length, not byte length.
	multibyte := map[string]any{"group_title": strings.Repeat("ö", 256)}
	assert.NoError(t, table.Validate(multibyte))

	// Flag fields carry the shorter limit.
	longFlag := map[string]any{"is_recent": strings.Repeat("x", 17)}
	assert.ErrorIs(t, table.Validate(longFlag), ErrValueTooLong)
}

func TestValidateDateFields(t *testing.T) {
	table := GroupSnapshot("Group_Snapshot")

	// Date columns travel as epoch milliseconds, or null when absent.
	assert.NoError(t, table.Validate(map[string]any{"group_created": int64(1710460800000)}))
	assert.NoError(t, table.Validate(map[string]any{"group_created": nil}))

	err := table.Validate(map[string]any{"group_created": "2024/03/15"})
	assert.ErrorIs(t, err, ErrInvalidDate)
	assert.ErrorIs(t, table.Validate(map[string]any{"group_created": 1.5}), ErrInvalidDate)

	members := GroupMembers("Group_Members")
	assert.ErrorIs(t, members.Validate(map[string]any{"user_created": "yesterday"}), ErrInvalidDate)
}

func TestDefinition(t *testing.T) {
	table := GroupMembers("Group_Members")
	def := table.Definition()

	assert.Equal(t, "Group_Members", def["name"])
	assert.Equal(t, "Table", def["type"])
	assert.Equal(t, "OBJECTID", def["objectIdField"])
	assert.Equal(t, "Query,Create,Delete,Update,Editing", def["capabilities"])

	fields := def["fields"].([]map[string]any)
	assert.Len(t, fields, len(table.Fields)+1)

	oid := fields[0]
	assert.Equal(t, "OBJECTID", oid["name"])
	assert.Equal(t, "esriFieldTypeOID", oid["type"])
	assert.Equal(t, false, oid["editable"])

	byName := map[string]map[string]any{}
	for _, f := range fields[1:] {
		byName[f["name"].(string)] = f
	}

	assert.Equal(t, "esriFieldTypeString", byName["user_name"]["type"])
	assert.Equal(t, 256, byName["user_name"]["length"])
	assert.Equal(t, 16, byName["is_active"]["length"])
	assert.Equal(t, "esriFieldTypeDate", byName["user_last_login"]["type"])
	assert.Equal(t, "esriFieldTypeInteger", byName["days_since_login"]["type"])
	_, hasLength := byName["days_since_login"]["length"]
	assert.False(t, hasLength)
}

func TestTableShapes(t *testing.T) {
	assert.Len(t, GroupSnapshot("s").Fields, 25)
	assert.Len(t, GroupContent("c").Fields, 15)
	assert.Len(t, GroupMembers("m").Fields, 10)

	// Every table starts with its primary identity column.
	assert.Equal(t, "group_id", GroupSnapshot("s").Fields[0].Name)
	assert.Equal(t, "item_id", GroupContent("c").Fields[0].Name)
}
