package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// FindTableItem locates the hosted table item with the given title owned by
// the connected user. Exactly one match is expected: none yields
// ErrTableNotFound, more than one ErrDuplicateTable.
func (c *Client) FindTableItem(ctx context.Context, title string) (*Item, error) {
	owner, err := c.currentUser(ctx)
	if err != nil {
		return nil, err
	}

	// The search syntax has no escape for quotes inside a quoted term, so
	// strip them from the query; the exact-title filter below still compares
	// against the real title.
	queryTitle := strings.ReplaceAll(title, `"`, "")

	var matches []Item
	start := 1
	for {
		params := url.Values{}
		params.Set("q", fmt.Sprintf(`title:"%s" AND owner:%s AND type:"Feature Service"`, queryTitle, owner))
		params.Set("start", strconv.Itoa(start))
		params.Set("num", strconv.Itoa(c.pageSize))

		var page itemSearchPage
		if err := c.do(ctx, c.rest("search"), params, &page); err != nil {
			return nil, fmt.Errorf("find table %s: %w", title, err)
		}
		for _, item := range page.Results {
			if item.Title == title && item.Owner == owner {
				matches = append(matches, item)
			}
		}
		if page.NextStart <= 0 || len(page.Results) == 0 {
			break
		}
		start = page.NextStart
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%s: %w", title, ErrTableNotFound)
	case 1:
		item := matches[0]
		return &item, nil
	default:
		return nil, fmt.Errorf("%s: %d items share the title: %w", title, len(matches), ErrDuplicateTable)
	}
}

// EnsureFolder finds or creates a content folder and returns its ID.
func (c *Client) EnsureFolder(ctx context.Context, name string) (string, error) {
	user, err := c.currentUser(ctx)
	if err != nil {
		return "", err
	}

	var content struct {
		Folders []Folder `json:"folders"`
	}
	if err := c.do(ctx, c.rest("content", "users", user), nil, &content); err != nil {
		return "", fmt.Errorf("list folders: %w", err)
	}
	for _, folder := range content.Folders {
		if folder.Title == name {
			return folder.ID, nil
		}
	}

	params := url.Values{}
	params.Set("title", name)
	var created struct {
		Folder Folder `json:"folder"`
	}
	if err := c.do(ctx, c.rest("content", "users", user, "createFolder"), params, &created); err != nil {
		return "", fmt.Errorf("create folder %s: %w", name, err)
	}
	c.log.Info("folder created", zap.String("folder", name), zap.String("id", created.Folder.ID))
	return created.Folder.ID, nil
}

// CreateHostedTable creates an empty non-spatial hosted table service and
// attaches the given table definition to it.
func (c *Client) CreateHostedTable(ctx context.Context, name string, tableDef map[string]any) (*Item, error) {
	user, err := c.currentUser(ctx)
	if err != nil {
		return nil, err
	}

	serviceName := sanitizeServiceName(name)
	createParams, err := json.Marshal(map[string]any{
		"name":                  serviceName,
		"serviceDescription":    "",
		"hasStaticData":         false,
		"maxRecordCount":        2000,
		"supportedQueryFormats": "JSON",
		"capabilities":          "Query,Create,Delete,Update,Editing",
	})
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("createParameters", string(createParams))
	params.Set("outputType", "featureService")

	var created struct {
		Success    bool   `json:"success"`
		ItemID     string `json:"itemId"`
		ServiceURL string `json:"serviceurl"`
	}
	if err := c.do(ctx, c.rest("content", "users", user, "createService"), params, &created); err != nil {
		return nil, fmt.Errorf("create service %s: %w", serviceName, err)
	}
	if !created.Success || created.ItemID == "" {
		return nil, fmt.Errorf("create service %s: portal reported failure", serviceName)
	}

	defJSON, err := json.Marshal(map[string]any{"tables": []any{tableDef}})
	if err != nil {
		return nil, err
	}
	defParams := url.Values{}
	defParams.Set("addToDefinition", string(defJSON))

	var defResult struct {
		Success bool `json:"success"`
	}
	if err := c.do(ctx, adminURL(created.ServiceURL)+"/addToDefinition", defParams, &defResult); err != nil {
		return nil, fmt.Errorf("add table definition %s: %w", name, err)
	}
	if !defResult.Success {
		return nil, fmt.Errorf("add table definition %s: portal reported failure", name)
	}

	c.log.Info("hosted table created",
		zap.String("table", name),
		zap.String("item_id", created.ItemID),
	)
	return &Item{
		ID:    created.ItemID,
		Title: name,
		Owner: user,
		Type:  "Feature Service",
		URL:   created.ServiceURL,
	}, nil
}

// UpdateItem sets item properties such as title and description.
func (c *Client) UpdateItem(ctx context.Context, itemID string, props map[string]string) error {
	user, err := c.currentUser(ctx)
	if err != nil {
		return err
	}
	params := url.Values{}
	for key, value := range props {
		params.Set(key, value)
	}
	var result struct {
		Success bool `json:"success"`
	}
	if err := c.do(ctx, c.rest("content", "users", user, "items", itemID, "update"), params, &result); err != nil {
		return fmt.Errorf("update item %s: %w", itemID, err)
	}
	if !result.Success {
		return fmt.Errorf("update item %s: portal reported failure", itemID)
	}
	return nil
}

// MoveItem moves an item into a folder. Published services land in the root
// folder, so the publisher moves them after creation.
func (c *Client) MoveItem(ctx context.Context, itemID, folderID string) error {
	user, err := c.currentUser(ctx)
	if err != nil {
		return err
	}
	params := url.Values{}
	params.Set("folder", folderID)
	var result struct {
		Success bool `json:"success"`
	}
	if err := c.do(ctx, c.rest("content", "users", user, "items", itemID, "move"), params, &result); err != nil {
		return fmt.Errorf("move item %s: %w", itemID, err)
	}
	if !result.Success {
		return fmt.Errorf("move item %s: portal reported failure", itemID)
	}
	return nil
}

// ShareOrg shares an item at the organization level.
func (c *Client) ShareOrg(ctx context.Context, itemID string) error {
	user, err := c.currentUser(ctx)
	if err != nil {
		return err
	}
	params := url.Values{}
	params.Set("org", "true")
	params.Set("everyone", "false")
	if err := c.do(ctx, c.rest("content", "users", user, "items", itemID, "share"), params, nil); err != nil {
		return fmt.Errorf("share item %s: %w", itemID, err)
	}
	return nil
}

// ServiceLastEdit resolves the service-level last edit timestamp from
// editingInfo. When the service root has none, it takes the max across the
// individual layers and tables. Returns 0 when no edit date is available.
func (c *Client) ServiceLastEdit(ctx context.Context, serviceURL string) (int64, error) {
	type editingInfo struct {
		LastEditDate int64 `json:"lastEditDate"`
	}
	var root struct {
		EditingInfo *editingInfo `json:"editingInfo"`
		Layers      []struct {
			ID int `json:"id"`
		} `json:"layers"`
		Tables []struct {
			ID int `json:"id"`
		} `json:"tables"`
	}
	if err := c.do(ctx, serviceURL, nil, &root); err != nil {
		return 0, fmt.Errorf("service info: %w", err)
	}
	if root.EditingInfo != nil && root.EditingInfo.LastEditDate > 0 {
		return root.EditingInfo.LastEditDate, nil
	}

	var last int64
	ids := make([]int, 0, len(root.Layers)+len(root.Tables))
	for _, layer := range root.Layers {
		ids = append(ids, layer.ID)
	}
	for _, table := range root.Tables {
		ids = append(ids, table.ID)
	}
	for _, id := range ids {
		var layer struct {
			EditingInfo *editingInfo `json:"editingInfo"`
		}
		if err := c.do(ctx, fmt.Sprintf("%s/%d", serviceURL, id), nil, &layer); err != nil {
			continue
		}
		if layer.EditingInfo != nil && layer.EditingInfo.LastEditDate > last {
			last = layer.EditingInfo.LastEditDate
		}
	}
	return last, nil
}

func adminURL(serviceURL string) string {
	return strings.Replace(serviceURL, "/rest/services/", "/rest/admin/services/", 1)
}

func sanitizeServiceName(name string) string {
	return strings.NewReplacer(" ", "_", "-", "_").Replace(name)
}
