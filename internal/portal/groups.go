package portal

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"
)

type groupSearchPage struct {
	Total     int     `json:"total"`
	Start     int     `json:"start"`
	Num       int     `json:"num"`
	NextStart int     `json:"nextStart"`
	Results   []Group `json:"results"`
}

// SearchGroups pages through every group visible to the connected user.
func (c *Client) SearchGroups(ctx context.Context) ([]Group, error) {
	var groups []Group
	start := 1
	for {
		params := url.Values{}
		params.Set("q", "*")
		params.Set("start", strconv.Itoa(start))
		params.Set("num", strconv.Itoa(c.pageSize))
		params.Set("sortField", "title")

		var page groupSearchPage
		if err := c.do(ctx, c.rest("community", "groups"), params, &page); err != nil {
			return nil, fmt.Errorf("search groups: %w", err)
		}
		groups = append(groups, page.Results...)
		if page.NextStart <= 0 || len(page.Results) == 0 {
			break
		}
		start = page.NextStart
	}
	c.log.Debug("groups fetched", zap.Int("count", len(groups)))
	return groups, nil
}

// GroupMembers fetches the membership roster of one group. The endpoint is
// not paged.
func (c *Client) GroupMembers(ctx context.Context, groupID string) (MemberList, error) {
	var members MemberList
	if err := c.do(ctx, c.rest("community", "groups", groupID, "users"), nil, &members); err != nil {
		return MemberList{}, fmt.Errorf("group %s members: %w", groupID, err)
	}
	return members, nil
}

type itemSearchPage struct {
	Total     int    `json:"total"`
	Start     int    `json:"start"`
	Num       int    `json:"num"`
	NextStart int    `json:"nextStart"`
	Results   []Item `json:"results"`
}

// GroupContent pages through the items shared to a group, up to maxItems.
func (c *Client) GroupContent(ctx context.Context, groupID string, maxItems int) ([]Item, error) {
	var items []Item
	start := 1
	for {
		num := c.pageSize
		if maxItems > 0 && maxItems-len(items) < num {
			num = maxItems - len(items)
		}
		if num <= 0 {
			break
		}
		params := url.Values{}
		params.Set("q", fmt.Sprintf("group:%q", groupID))
		params.Set("start", strconv.Itoa(start))
		params.Set("num", strconv.Itoa(num))

		var page itemSearchPage
		if err := c.do(ctx, c.rest("search"), params, &page); err != nil {
			return nil, fmt.Errorf("group %s content: %w", groupID, err)
		}
		items = append(items, page.Results...)
		if page.NextStart <= 0 || len(page.Results) == 0 {
			break
		}
		start = page.NextStart
	}
	return items, nil
}
