package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/groupscope/groupscope/internal/config"
	"go.uber.org/zap"
)

// Client talks to the portal's sharing REST API. All calls are blocking and
// carry the configured access token; responses are decoded after checking
// the embedded error envelope.
type Client struct {
	baseURL  string
	restURL  string
	token    string
	pageSize int
	http     *http.Client
	log      *zap.Logger

	username string
}

func New(cfg config.Config, log *zap.Logger) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	base := strings.TrimRight(cfg.PortalURL, "/")
	return &Client{
		baseURL:  base,
		restURL:  base + "/sharing/rest",
		token:    cfg.Token,
		pageSize: pageSize,
		http:     &http.Client{Timeout: 60 * time.Second},
		log:      log.Named("portal"),
	}
}

// BaseURL returns the portal root, used for building item and group links.
func (c *Client) BaseURL() string { return c.baseURL }

// IsOnline reports whether the portal is ArcGIS Online rather than an
// Enterprise deployment.
func (c *Client) IsOnline() bool {
	return strings.Contains(strings.ToLower(c.baseURL), "arcgis.com")
}

// do posts a form-encoded request to an absolute URL and decodes the JSON
// response into out. The token and f=json are always attached.
func (c *Client) do(ctx context.Context, rawURL string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("f", "json")
	params.Set("token", c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("portal request failed: %s: %s", resp.Status, truncateBody(body))
	}

	var envelope struct {
		Error *Error `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("portal response decode: %w", err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

// rest builds an absolute URL under the sharing REST root.
func (c *Client) rest(parts ...string) string {
	return c.restURL + "/" + strings.Join(parts, "/")
}

// currentUser resolves and caches the connected username.
func (c *Client) currentUser(ctx context.Context) (string, error) {
	if c.username != "" {
		return c.username, nil
	}
	self, err := c.PortalSelf(ctx)
	if err != nil {
		return "", err
	}
	c.username = self.User.Username
	return c.username, nil
}

// PortalSelf fetches the connected portal and user description.
func (c *Client) PortalSelf(ctx context.Context) (*Self, error) {
	var self Self
	if err := c.do(ctx, c.rest("portals", "self"), nil, &self); err != nil {
		return nil, fmt.Errorf("portal self: %w", err)
	}
	if self.User.Username != "" {
		c.username = self.User.Username
	}
	return &self, nil
}

func truncateBody(body []byte) string {
	const max = 200
	s := string(body)
	if len(s) > max {
		return s[:max]
	}
	return s
}
