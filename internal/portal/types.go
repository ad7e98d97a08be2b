package portal

// Raw portal records. The portal omits fields freely depending on privileges
// and item type; zero values are the documented defaults (empty string, nil
// slice, 0 timestamp). Timestamps are epoch milliseconds; 0 and -1 both mean
// "unknown".

type Group struct {
	ID                  string   `json:"id"`
	Title               string   `json:"title"`
	Snippet             string   `json:"snippet"`
	Description         string   `json:"description"`
	Tags                []string `json:"tags"`
	Owner               string   `json:"owner"`
	Access              string   `json:"access"`
	Created             int64    `json:"created"`
	Capabilities        []string `json:"capabilities"`
	TypeKeywords        []string `json:"typeKeywords"`
	IsPartnerCollab     bool     `json:"isPartnerCollab"`
	IsDistributedCollab bool     `json:"isDistributedCollab"`
}

type Item struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Owner    string `json:"owner"`
	Type     string `json:"type"`
	Created  int64  `json:"created"`
	Modified int64  `json:"modified"`
	NumViews int    `json:"numViews"`
	URL      string `json:"url"`

	// DataModified is the service-level last edit timestamp resolved from
	// editingInfo for feature services. 0 means unresolved; callers fall
	// back to Modified.
	DataModified int64 `json:"-"`
}

type User struct {
	Username   string   `json:"username"`
	FullName   string   `json:"fullName"`
	Email      string   `json:"email"`
	OrgID      string   `json:"orgId"`
	LastLogin  int64    `json:"lastLogin"`
	Created    int64    `json:"created"`
	Categories []string `json:"categories"`
}

// MemberList is the membership roster of a single group.
type MemberList struct {
	Owner  string   `json:"owner"`
	Admins []string `json:"admins"`
	Users  []string `json:"users"`
}

// All returns admins and users combined, deduplicated, order preserved.
func (m MemberList) All() []string {
	seen := make(map[string]struct{}, len(m.Users)+len(m.Admins))
	out := make([]string, 0, len(m.Users)+len(m.Admins))
	for _, username := range append(append([]string{}, m.Users...), m.Admins...) {
		if username == "" {
			continue
		}
		if _, ok := seen[username]; ok {
			continue
		}
		seen[username] = struct{}{}
		out = append(out, username)
	}
	return out
}

// Self describes the connected portal and user.
type Self struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsPortal bool   `json:"isPortal"`
	User     struct {
		Username string `json:"username"`
	} `json:"user"`
}

type Folder struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
