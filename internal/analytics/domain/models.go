package domain

import "time"

// Row types for the three output tables. String fields are truncated at
// build time; dates carry only a date component (midnight UTC). A zero
// time.Time means the source never supplied a value and the attribute is
// published as null.

const (
	MembershipInternal = "Internal"
	MembershipExternal = "External"
)

type GroupSnapshotRow struct {
	GroupID      string
	Title        string
	Summary      string
	Description  string
	Tags         string
	Owner        string
	OwnerName    string
	Created      time.Time
	Type         string
	SharingLevel string

	ItemCount           int
	MemberCount         int
	ExternalMemberCount int
	HasExternalMembers  bool
	Link                string
	ActiveMembers       int

	ItemScore       float64
	MemberScore     float64
	AvgViewsPerItem float64

	DaysSinceContentUpdate *int

	IsRecent       bool
	IsEmpty        bool
	IsSingleMember bool
	IsHub          bool
	IsSite         bool
}

func (r GroupSnapshotRow) Attributes() map[string]any {
	return map[string]any{
		"group_id":                  r.GroupID,
		"group_title":               r.Title,
		"group_summary":             r.Summary,
		"group_description":         r.Description,
		"group_tags":                r.Tags,
		"group_owner":               r.Owner,
		"group_owner_name":          r.OwnerName,
		"group_created":             dateValue(r.Created),
		"group_type":                r.Type,
		"group_sharing_level":       r.SharingLevel,
		"group_item_count":          r.ItemCount,
		"group_member_count":        r.MemberCount,
		"external_member_count":     r.ExternalMemberCount,
		"has_external_members":      flagValue(r.HasExternalMembers),
		"group_link":                r.Link,
		"active_members":            r.ActiveMembers,
		"group_item_score":          r.ItemScore,
		"group_member_score":        r.MemberScore,
		"avg_views_per_item":        r.AvgViewsPerItem,
		"days_since_content_update": intValue(r.DaysSinceContentUpdate),
		"is_recent":                 flagValue(r.IsRecent),
		"is_empty":                  flagValue(r.IsEmpty),
		"is_single_member":          flagValue(r.IsSingleMember),
		"is_hub":                    flagValue(r.IsHub),
		"is_site":                   flagValue(r.IsSite),
	}
}

type ContentRow struct {
	ItemID      string
	Title       string
	Owner       string
	Type        string
	Created     time.Time
	DataUpdated time.Time
	Views       int
	URL         string

	GroupID           string
	GroupType         string
	GroupSharingLevel string

	DaysSinceUpdate *int

	InSharedUpdateGroup bool
	InPartneredCollab   bool
	InDistributedCollab bool
}

// Key is the composite identity of a content row, unique within a run.
func (r ContentRow) Key() string { return r.ItemID + "/" + r.GroupID }

func (r ContentRow) Attributes() map[string]any {
	return map[string]any{
		"item_id":                r.ItemID,
		"item_title":             r.Title,
		"item_owner":             r.Owner,
		"item_type":              r.Type,
		"item_created":           dateValue(r.Created),
		"item_data_updated":      dateValue(r.DataUpdated),
		"item_views":             r.Views,
		"item_url":               r.URL,
		"group_id":               r.GroupID,
		"group_type":             r.GroupType,
		"group_sharing_level":    r.GroupSharingLevel,
		"days_since_update":      intValue(r.DaysSinceUpdate),
		"in_shared_update_group": flagValue(r.InSharedUpdateGroup),
		"in_partnered_collab":    flagValue(r.InPartneredCollab),
		"in_distributed_collab":  flagValue(r.InDistributedCollab),
	}
}

type MembershipRow struct {
	Username  string
	UserName  string
	Email     string
	OrgID     string
	LastLogin time.Time
	Created   time.Time

	GroupID        string
	Categories     string
	MembershipType string

	DaysSinceLogin *int
	IsActive       bool
}

// Key is the composite identity of a membership row, unique within a run.
func (r MembershipRow) Key() string { return r.Username + "/" + r.GroupID }

func (r MembershipRow) Attributes() map[string]any {
	return map[string]any{
		"user_name":            r.UserName,
		"user_email":           r.Email,
		"user_last_login":      dateValue(r.LastLogin),
		"user_org_id":          r.OrgID,
		"user_created":         dateValue(r.Created),
		"group_id":             r.GroupID,
		"user_categories":      r.Categories,
		"user_membership_type": r.MembershipType,
		"days_since_login":     intValue(r.DaysSinceLogin),
		"is_active":            flagValue(r.IsActive),
	}
}

// dateValue encodes a date-only value as the epoch-millisecond number the
// edit endpoint expects for date fields, null when the source had none.
func dateValue(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

func flagValue(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func intValue(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
