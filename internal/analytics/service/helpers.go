package service

import (
	"math"
	"strings"
	"time"

	"github.com/groupscope/groupscope/internal/portal"
)

// Truncate bounds a string to max characters. Truncated values end in "..."
// and are exactly max characters long; values that fit pass through
// unchanged.
func Truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	if max > 3 {
		return string(runes[:max-3]) + "..."
	}
	if max < 0 {
		return ""
	}
	return string(runes[:max])
}

// DateFromMillis converts an epoch-millisecond timestamp to a date-only
// value (midnight UTC), stripping any time of day. 0 and -1 both mean the
// source had no value and yield the zero time.
func DateFromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	t := time.UnixMilli(ms).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysSinceMillis returns whole days between a millisecond timestamp and
// now, or nil when the timestamp is absent. Portal clocks can run ahead of
// the runner's, so future timestamps clamp to 0.
func daysSinceMillis(now time.Time, ms int64) *int {
	if ms <= 0 {
		return nil
	}
	days := int(now.Sub(time.UnixMilli(ms)).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return &days
}

// daysSinceDate returns whole days between a date-only value and today,
// clamped to 0 for future dates.
func daysSinceDate(now time.Time, t time.Time) *int {
	if t.IsZero() {
		return nil
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	days := int(today.Sub(t).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return &days
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// groupType classifies a group by its collaboration and update semantics.
func groupType(g portal.Group) string {
	sharedUpdate := false
	for _, cap := range g.Capabilities {
		lower := strings.ToLower(cap)
		if strings.Contains(lower, "updateitemcontrol") || strings.Contains(lower, "shared update") {
			sharedUpdate = true
		}
	}
	partnered := g.IsPartnerCollab
	distributed := g.IsDistributedCollab
	for _, kw := range g.TypeKeywords {
		switch kw {
		case "Shared Update":
			sharedUpdate = true
		case "Partner Collaboration":
			partnered = true
		case "Distributed Collaboration":
			distributed = true
		}
	}

	var types []string
	if partnered {
		types = append(types, "Partnered Collaboration")
	}
	if distributed {
		types = append(types, "Distributed Collaboration")
	}
	if sharedUpdate {
		types = append(types, "Shared Update")
	}
	if len(types) == 0 {
		return "Standard"
	}
	return strings.Join(types, ", ")
}

func sharingLevel(access string) string {
	switch access {
	case "public":
		return "Public"
	case "org":
		return "Organization"
	default:
		return "Private"
	}
}

var hubTags = []string{
	"hub group",
	"hub content group",
	"hub site group",
	"hub initiative group",
}

var siteTags = []string{
	"sites",
	"sites group",
	"sites content group",
	"sites core team group",
}

func hasAnyTag(tags, wanted []string) bool {
	for _, tag := range tags {
		lower := strings.ToLower(tag)
		for _, w := range wanted {
			if lower == w {
				return true
			}
		}
	}
	return false
}

func isHubGroup(g portal.Group) bool  { return hasAnyTag(g.Tags, hubTags) }
func isSiteGroup(g portal.Group) bool { return hasAnyTag(g.Tags, siteTags) }

// defaultSystemAccounts are the platform-curated accounts that own Living
// Atlas and other system content. The list is a configuration point: an
// organization whose system accounts differ can override it.
var defaultSystemAccounts = []string{
	"esri",
	"esri_livingatlas",
	"esri_demographics",
	"esri_boundaries",
	"esri_basemaps",
	"esri_landscape",
	"esri_imagery",
	"esri_elevation",
	"esri_vector",
	"esri_cartography",
	"esri_hydro",
	"esri_apps",
	"esri_media",
	"esri_3d",
	"esri_livefeeds",
	"esri_analytics",
}

// SystemAccounts answers whether an item owner is a platform system
// account. Matching is exact (case-insensitive) plus the esri_ account
// prefix; an ordinary user whose name merely contains "esri" never matches.
type SystemAccounts struct {
	exact map[string]struct{}
}

func NewSystemAccounts(names []string) SystemAccounts {
	if len(names) == 0 {
		names = defaultSystemAccounts
	}
	exact := make(map[string]struct{}, len(names))
	for _, n := range names {
		exact[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
	}
	return SystemAccounts{exact: exact}
}

func (s SystemAccounts) IsSystemOwner(owner string) bool {
	lower := strings.ToLower(owner)
	if _, ok := s.exact[lower]; ok {
		return true
	}
	return strings.HasPrefix(lower, "esri_") && !strings.Contains(lower, "@")
}
