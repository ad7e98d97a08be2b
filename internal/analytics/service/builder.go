package service

import (
	"strings"

	"github.com/groupscope/groupscope/internal/analytics/domain"
	"github.com/groupscope/groupscope/internal/clock"
	"github.com/groupscope/groupscope/internal/config"
	"github.com/groupscope/groupscope/internal/portal"
	"github.com/groupscope/groupscope/internal/schema"
	"go.uber.org/zap"
)

// maxScanItems caps the per-group item scan used for view and recency
// aggregation.
const maxScanItems = 100

// Directory is the organization's member directory keyed by username. A
// group member absent from it belongs to a partner organization.
type Directory map[string]portal.User

func NewDirectory(users []portal.User) Directory {
	dir := make(Directory, len(users))
	for _, u := range users {
		if u.Username == "" {
			continue
		}
		dir[u.Username] = u
	}
	return dir
}

// PortalInfo is the connection context rows are built against.
type PortalInfo struct {
	URL      string
	OrgID    string
	IsOnline bool
}

// GroupLink builds the direct group page URL.
func (pi PortalInfo) GroupLink(groupID string) string {
	if pi.IsOnline {
		return "https://www.arcgis.com/home/group.html?id=" + groupID
	}
	return pi.URL + "/home/group.html?id=" + groupID
}

// ItemLink builds the short portal item page URL. The short format avoids
// length issues with long service URLs.
func (pi PortalInfo) ItemLink(itemID string) string {
	return pi.URL + "/home/item.html?id=" + itemID
}

// Builder turns raw portal records into typed, length-bounded metric rows.
// It is a pure transform: malformed or missing optional fields get defaults
// rather than failing the group.
type Builder struct {
	recentDays int
	accounts   SystemAccounts
	clock      clock.Clock
	log        *zap.Logger
}

func NewBuilder(cfg config.Config, clk clock.Clock, log *zap.Logger) *Builder {
	return &Builder{
		recentDays: cfg.RecentDays,
		accounts:   NewSystemAccounts(cfg.SystemAccounts),
		clock:      clk,
		log:        log.Named("builder"),
	}
}

// SnapshotRow builds the single per-group record.
func (b *Builder) SnapshotRow(pi PortalInfo, g portal.Group, items []portal.Item, members portal.MemberList, dir Directory) domain.GroupSnapshotRow {
	now := b.clock.Now()
	usernames := members.All()
	memberCount := len(usernames)
	itemCount := len(items)

	active := 0
	external := 0
	for _, username := range usernames {
		info, ok := dir[username]
		if !ok {
			external++
			continue
		}
		if days := daysSinceMillis(now, info.LastLogin); days != nil && *days <= b.recentDays {
			active++
		}
	}

	itemScore := 0.0
	if itemCount > 0 {
		itemScore = round2(float64(active) / float64(itemCount) * 100)
	}
	memberScore := 0.0
	if memberCount > 0 {
		memberScore = round2(float64(active) / float64(memberCount) * 100)
	}

	scan := items
	if len(scan) > maxScanItems {
		scan = scan[:maxScanItems]
	}
	recent := false
	totalViews := 0
	nonSystemItems := 0
	var mostRecent int64
	for _, item := range scan {
		if item.Modified > 0 {
			if days := daysSinceMillis(now, item.Modified); days != nil && *days <= b.recentDays {
				recent = true
			}
			if item.Modified > mostRecent {
				mostRecent = item.Modified
			}
		}
		if !b.accounts.IsSystemOwner(item.Owner) {
			totalViews += item.NumViews
			nonSystemItems++
		}
	}
	avgViews := 0.0
	if nonSystemItems > 0 {
		avgViews = round2(float64(totalViews) / float64(nonSystemItems))
	}

	return domain.GroupSnapshotRow{
		GroupID:                g.ID,
		Title:                  Truncate(g.Title, schema.DefaultFieldLength),
		Summary:                Truncate(g.Snippet, schema.DefaultFieldLength),
		Description:            Truncate(g.Description, schema.DefaultFieldLength),
		Tags:                   Truncate(strings.Join(g.Tags, ", "), schema.DefaultFieldLength),
		Owner:                  g.Owner,
		OwnerName:              b.fullName(g.Owner, dir),
		Created:                DateFromMillis(g.Created),
		Type:                   groupType(g),
		SharingLevel:           sharingLevel(g.Access),
		ItemCount:              itemCount,
		MemberCount:            memberCount,
		ExternalMemberCount:    external,
		HasExternalMembers:     external > 0,
		Link:                   pi.GroupLink(g.ID),
		ActiveMembers:          active,
		ItemScore:              itemScore,
		MemberScore:            memberScore,
		AvgViewsPerItem:        avgViews,
		DaysSinceContentUpdate: daysSinceMillis(now, mostRecent),
		IsRecent:               recent,
		IsEmpty:                itemCount == 0,
		IsSingleMember:         memberCount == 1,
		IsHub:                  isHubGroup(g),
		IsSite:                 isSiteGroup(g),
	}
}

// ContentRows builds one record per item-group association, deduplicated on
// the (item_id, group_id) composite key.
func (b *Builder) ContentRows(pi PortalInfo, g portal.Group, items []portal.Item, dir Directory) []domain.ContentRow {
	now := b.clock.Now()
	gType := groupType(g)
	gSharing := sharingLevel(g.Access)

	seen := make(map[string]struct{}, len(items))
	rows := make([]domain.ContentRow, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		// item_data_updated prefers the service-level last edit date,
		// falling back to the item's modified timestamp.
		updatedMillis := item.DataModified
		if updatedMillis <= 0 {
			updatedMillis = item.Modified
		}
		updated := DateFromMillis(updatedMillis)

		row := domain.ContentRow{
			ItemID:              item.ID,
			Title:               Truncate(item.Title, schema.DefaultFieldLength),
			Owner:               b.fullName(item.Owner, dir),
			Type:                item.Type,
			Created:             DateFromMillis(item.Created),
			DataUpdated:         updated,
			Views:               item.NumViews,
			URL:                 pi.ItemLink(item.ID),
			GroupID:             g.ID,
			GroupType:           gType,
			GroupSharingLevel:   gSharing,
			DaysSinceUpdate:     daysSinceDate(now, updated),
			InSharedUpdateGroup: strings.Contains(gType, "Shared Update"),
			InPartneredCollab:   strings.Contains(gType, "Partnered Collaboration"),
			InDistributedCollab: strings.Contains(gType, "Distributed Collaboration"),
		}
		if _, dup := seen[row.Key()]; dup {
			continue
		}
		seen[row.Key()] = struct{}{}
		rows = append(rows, row)
	}
	return rows
}

// MembershipRows builds one record per user-group membership, deduplicated
// on the (user_id, group_id) composite key. Classification is External
// exactly when the member is absent from the org directory.
func (b *Builder) MembershipRows(g portal.Group, members portal.MemberList, dir Directory) []domain.MembershipRow {
	now := b.clock.Now()
	usernames := members.All()

	seen := make(map[string]struct{}, len(usernames))
	rows := make([]domain.MembershipRow, 0, len(usernames))
	for _, username := range usernames {
		info, inDirectory := dir[username]

		row := domain.MembershipRow{
			Username:       username,
			UserName:       b.fullName(username, dir),
			Email:          info.Email,
			OrgID:          info.OrgID,
			LastLogin:      DateFromMillis(info.LastLogin),
			Created:        DateFromMillis(info.Created),
			GroupID:        g.ID,
			Categories:     Truncate(strings.Join(info.Categories, ", "), schema.DefaultFieldLength),
			MembershipType: domain.MembershipInternal,
		}
		if !inDirectory {
			row.MembershipType = domain.MembershipExternal
		}
		row.DaysSinceLogin = daysSinceDate(now, row.LastLogin)
		row.IsActive = row.DaysSinceLogin != nil && *row.DaysSinceLogin <= b.recentDays

		if _, dup := seen[row.Key()]; dup {
			continue
		}
		seen[row.Key()] = struct{}{}
		rows = append(rows, row)
	}
	return rows
}

func (b *Builder) fullName(username string, dir Directory) string {
	if info, ok := dir[username]; ok {
		if name := strings.TrimSpace(info.FullName); name != "" && name != username {
			return name
		}
	}
	return username
}

// Summarize logs the run-level health indicators for a built row set.
func (b *Builder) Summarize(snapshot []domain.GroupSnapshotRow, memberships []domain.MembershipRow) {
	empty, single, stale, hub, site := 0, 0, 0, 0, 0
	for _, r := range snapshot {
		if r.IsEmpty {
			empty++
		}
		if r.IsSingleMember {
			single++
		}
		if !r.IsRecent {
			stale++
		}
		if r.IsHub {
			hub++
		}
		if r.IsSite {
			site++
		}
	}
	internal, externalCount, activeCount := 0, 0, 0
	for _, m := range memberships {
		if m.MembershipType == domain.MembershipExternal {
			externalCount++
		} else {
			internal++
		}
		if m.IsActive {
			activeCount++
		}
	}
	b.log.Info("group health indicators",
		zap.Int("groups", len(snapshot)),
		zap.Int("empty_groups", empty),
		zap.Int("single_member_groups", single),
		zap.Int("inactive_groups", stale),
		zap.Int("hub_groups", hub),
		zap.Int("site_groups", site),
		zap.Int("internal_memberships", internal),
		zap.Int("external_memberships", externalCount),
		zap.Int("active_memberships", activeCount),
	)
}
