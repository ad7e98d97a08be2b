package service

import (
	"strings"
	"testing"
	"time"

	"github.com/groupscope/groupscope/internal/analytics/domain"
	"github.com/groupscope/groupscope/internal/clock"
	"github.com/groupscope/groupscope/internal/config"
	"github.com/groupscope/groupscope/internal/portal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestBuilder() *Builder {
	cfg := config.Config{RecentDays: 90}
	return NewBuilder(cfg, clock.NewFakeClock(testNow), zap.NewNop())
}

func millisAgo(days int) int64 {
	return testNow.AddDate(0, 0, -days).UnixMilli()
}

func testPortalInfo() PortalInfo {
	return PortalInfo{URL: "https://org.maps.arcgis.com", OrgID: "ORG1", IsOnline: true}
}

func TestSnapshotRowScoresAndActivity(t *testing.T) {
	b := newTestBuilder()

	dir := NewDirectory([]portal.User{
		{Username: "alice", LastLogin: millisAgo(5)},
		{Username: "bob", LastLogin: millisAgo(200)},
		{Username: "carol", LastLogin: millisAgo(10)},
	})
	members := portal.MemberList{
		Admins: []string{"alice"},
		Users:  []string{"bob", "carol", "dana"},
	}
	items := []portal.Item{
		{ID: "i1", Owner: "alice", NumViews: 10, Modified: millisAgo(3)},
		{ID: "i2", Owner: "bob", NumViews: 30, Modified: millisAgo(400)},
		{ID: "i3", Owner: "esri_livingatlas", NumViews: 9999, Modified: millisAgo(1)},
	}

	row := b.SnapshotRow(testPortalInfo(), portal.Group{ID: "g1", Title: "Roads"}, items, members, dir)

	assert.Equal(t, 4, row.MemberCount)
	assert.Equal(t, 3, row.ItemCount)
	// dana is not in the directory.
	assert.Equal(t, 1, row.ExternalMemberCount)
	assert.True(t, row.HasExternalMembers)
	// alice and carol logged in within 90 days; bob did not; dana is unknown.
	assert.Equal(t, 2, row.ActiveMembers)

	assert.InDelta(t, 66.67, row.ItemScore, 0.001)
	assert.InDelta(t, 50.0, row.MemberScore, 0.001)

	// Living Atlas views are excluded from the average.
	assert.InDelta(t, 20.0, row.AvgViewsPerItem, 0.001)

	assert.True(t, row.IsRecent)
	assert.NotNil(t, row.DaysSinceContentUpdate)
	assert.Equal(t, 1, *row.DaysSinceContentUpdate)
	assert.False(t, row.IsEmpty)
	assert.False(t, row.IsSingleMember)
	assert.Equal(t, "https://www.arcgis.com/home/group.html?id=g1", row.Link)
}

func TestSnapshotRowEmptyGroup(t *testing.T) {
	b := newTestBuilder()

	row := b.SnapshotRow(testPortalInfo(), portal.Group{ID: "g2"}, nil, portal.MemberList{}, Directory{})

	assert.True(t, row.IsEmpty)
	assert.Equal(t, 0, row.MemberCount)
	assert.Equal(t, 0.0, row.ItemScore)
	assert.Equal(t, 0.0, row.MemberScore)
	assert.Equal(t, 0.0, row.AvgViewsPerItem)
	assert.Nil(t, row.DaysSinceContentUpdate)
	assert.False(t, row.IsRecent)
	assert.False(t, row.HasExternalMembers)
}

func TestSnapshotRowSingleMember(t *testing.T) {
	b := newTestBuilder()
	members := portal.MemberList{Users: []string{"alice"}}
	dir := NewDirectory([]portal.User{{Username: "alice"}})

	row := b.SnapshotRow(testPortalInfo(), portal.Group{ID: "g3"}, nil, members, dir)
	assert.True(t, row.IsSingleMember)
	assert.Equal(t, 0, row.ExternalMemberCount)
}

func TestSnapshotRowAllExternal(t *testing.T) {
	b := newTestBuilder()
	members := portal.MemberList{Users: []string{"p1", "p2", "p3"}}

	row := b.SnapshotRow(testPortalInfo(), portal.Group{ID: "g4"}, nil, members, Directory{})
	assert.Equal(t, 3, row.ExternalMemberCount)
	assert.Equal(t, 0, row.ActiveMembers)
}

func TestSnapshotRowTruncatesLongText(t *testing.T) {
	b := newTestBuilder()
	long := strings.Repeat("d", 500)

	row := b.SnapshotRow(testPortalInfo(), portal.Group{
		ID:          "g5",
		Title:       long,
		Description: long,
		Snippet:     long,
		Tags:        []string{long},
	}, nil, portal.MemberList{}, Directory{})

	assert.Len(t, []rune(row.Title), 256)
	assert.Len(t, []rune(row.Description), 256)
	assert.Len(t, []rune(row.Summary), 256)
	assert.Len(t, []rune(row.Tags), 256)
	assert.True(t, strings.HasSuffix(row.Title, "..."))
}

func TestSnapshotRowScanCap(t *testing.T) {
	b := newTestBuilder()

	items := make([]portal.Item, 150)
	for i := range items {
		items[i] = portal.Item{ID: "i", Owner: "alice", NumViews: 1, Modified: millisAgo(400)}
	}
	// A recent edit beyond the scan window must not register.
	items[149].Modified = millisAgo(1)

	row := b.SnapshotRow(testPortalInfo(), portal.Group{ID: "g6"}, items, portal.MemberList{}, Directory{})
	assert.Equal(t, 150, row.ItemCount)
	assert.False(t, row.IsRecent)
}

func TestContentRows(t *testing.T) {
	b := newTestBuilder()
	dir := NewDirectory([]portal.User{{Username: "alice", FullName: "Alice Jones"}})
	group := portal.Group{ID: "g1", Access: "org", TypeKeywords: []string{"Shared Update"}}

	items := []portal.Item{
		{ID: "i1", Title: "Parcels", Owner: "alice", Type: "Feature Service", Created: millisAgo(30), Modified: millisAgo(10), NumViews: 7, DataModified: millisAgo(2)},
		{ID: "i1", Title: "Parcels", Owner: "alice"},
		{ID: ""},
		{ID: "i2", Title: "Basemap", Owner: "ghost", Modified: millisAgo(5)},
	}

	rows := b.ContentRows(testPortalInfo(), group, items, dir)
	assert.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "i1", first.ItemID)
	assert.Equal(t, "Alice Jones", first.Owner)
	// Data edit date wins over the metadata modified date.
	assert.Equal(t, DateFromMillis(millisAgo(2)), first.DataUpdated)
	assert.NotNil(t, first.DaysSinceUpdate)
	assert.Equal(t, 2, *first.DaysSinceUpdate)
	assert.Equal(t, "Shared Update", first.GroupType)
	assert.Equal(t, "Organization", first.GroupSharingLevel)
	assert.True(t, first.InSharedUpdateGroup)
	assert.False(t, first.InPartneredCollab)
	assert.Equal(t, "https://org.maps.arcgis.com/home/item.html?id=i1", first.URL)

	// Without a service edit date the item modified date is used, and an
	// owner absent from the directory keeps the raw username.
	second := rows[1]
	assert.Equal(t, "ghost", second.Owner)
	assert.Equal(t, DateFromMillis(millisAgo(5)), second.DataUpdated)
}

func TestMembershipRows(t *testing.T) {
	b := newTestBuilder()
	dir := NewDirectory([]portal.User{
		{Username: "alice", FullName: "Alice Jones", Email: "alice@example.com", OrgID: "ORG1", LastLogin: millisAgo(5), Created: millisAgo(1000), Categories: []string{"GIS"}},
		{Username: "bob", LastLogin: millisAgo(120)},
	})
	members := portal.MemberList{
		Admins: []string{"alice"},
		Users:  []string{"bob", "partner_x", "alice"},
	}

	rows := b.MembershipRows(portal.Group{ID: "g1"}, members, dir)
	assert.Len(t, rows, 3)

	byUser := map[string]domain.MembershipRow{}
	for _, r := range rows {
		byUser[r.Username] = r
	}

	alice := byUser["alice"]
	assert.Equal(t, "Alice Jones", alice.UserName)
	assert.Equal(t, "alice@example.com", alice.Email)
	assert.Equal(t, domain.MembershipInternal, alice.MembershipType)
	assert.True(t, alice.IsActive)
	assert.Equal(t, "GIS", alice.Categories)

	bob := byUser["bob"]
	assert.Equal(t, domain.MembershipInternal, bob.MembershipType)
	assert.False(t, bob.IsActive)

	partner := byUser["partner_x"]
	assert.Equal(t, domain.MembershipExternal, partner.MembershipType)
	assert.False(t, partner.IsActive)
	assert.Nil(t, partner.DaysSinceLogin)
	assert.True(t, partner.LastLogin.IsZero())
}

func TestMemberListAllDedupes(t *testing.T) {
	m := portal.MemberList{
		Admins: []string{"alice", "bob"},
		Users:  []string{"bob", "carol", ""},
	}
	assert.Equal(t, []string{"bob", "carol", "alice"}, m.All())
}
