package portal

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"
)

type userSearchPage struct {
	Total     int    `json:"total"`
	Start     int    `json:"start"`
	Num       int    `json:"num"`
	NextStart int    `json:"nextStart"`
	Results   []User `json:"results"`
}

// SearchUsers pages through the organization's own member directory. The
// endpoint is org-scoped: members of partner organizations never appear in
// the results, which is what makes directory absence a reliable external
// signal.
func (c *Client) SearchUsers(ctx context.Context) ([]User, error) {
	var users []User
	start := 1
	for {
		params := url.Values{}
		params.Set("q", "*")
		params.Set("start", strconv.Itoa(start))
		params.Set("num", strconv.Itoa(c.pageSize))

		var page userSearchPage
		if err := c.do(ctx, c.rest("community", "users"), params, &page); err != nil {
			return nil, fmt.Errorf("search users: %w", err)
		}
		users = append(users, page.Results...)
		if page.NextStart <= 0 || len(page.Results) == 0 {
			break
		}
		start = page.NextStart
	}
	c.log.Debug("users fetched", zap.Int("count", len(users)))
	return users, nil
}
