package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Feature edit operations target the first (and only) table of a hosted
// table service, layer index 0.

type feature struct {
	Attributes map[string]any `json:"attributes"`
}

type editResult struct {
	Success  bool   `json:"success"`
	ObjectID int64  `json:"objectId"`
	Error    *Error `json:"error"`
}

// RowError describes a single rejected row from a per-record edit.
type RowError struct {
	Index       int
	Code        int
	Description string
}

// DeleteAllRows removes every row from the hosted table while leaving the
// item, schema, and service configuration untouched.
func (c *Client) DeleteAllRows(ctx context.Context, serviceURL string) error {
	params := url.Values{}
	params.Set("where", "1=1")

	var result struct {
		Success bool `json:"success"`
	}
	if err := c.do(ctx, tableLayerURL(serviceURL)+"/deleteFeatures", params, &result); err != nil {
		return fmt.Errorf("delete features: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("delete features: portal reported failure")
	}
	return nil
}

// AppendRows adds the whole row set in a single atomic applyEdits call.
// rollbackOnFailure makes the portal reject the batch as a unit, so a
// failed bulk append leaves the table empty rather than partially filled.
func (c *Client) AppendRows(ctx context.Context, serviceURL string, rows []map[string]any) error {
	features := make([]feature, 0, len(rows))
	for _, row := range rows {
		features = append(features, feature{Attributes: row})
	}
	payload, err := json.Marshal(features)
	if err != nil {
		return err
	}

	params := url.Values{}
	params.Set("adds", string(payload))
	params.Set("rollbackOnFailure", "true")

	var result struct {
		AddResults []editResult `json:"addResults"`
	}
	if err := c.do(ctx, tableLayerURL(serviceURL)+"/applyEdits", params, &result); err != nil {
		return fmt.Errorf("bulk append: %w", err)
	}
	for i, r := range result.AddResults {
		if !r.Success {
			return fmt.Errorf("bulk append row %d: %s: %w", i, editErrorText(r.Error), ErrEditRejected)
		}
	}
	if len(result.AddResults) != len(rows) {
		return fmt.Errorf("bulk append: %d of %d rows acknowledged: %w", len(result.AddResults), len(rows), ErrEditRejected)
	}
	return nil
}

// AddRows adds rows in batches with per-record result decoding. When a
// whole batch request fails, the batch is retried one record at a time to
// isolate the offending rows. Returns the number of rows added and the
// rejected rows; err is non-nil only for unrecoverable transport failures.
func (c *Client) AddRows(ctx context.Context, serviceURL string, rows []map[string]any, batchSize int) (int, []RowError, error) {
	if batchSize <= 0 {
		batchSize = 50
	}

	added := 0
	var rejected []RowError
	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		results, err := c.applyAdds(ctx, serviceURL, batch)
		if err != nil {
			if ctx.Err() != nil {
				return added, rejected, ctx.Err()
			}
			// Batch-level failure: isolate per record.
			c.log.Warn("edit batch failed, retrying record by record",
				zap.Int("batch_start", start),
				zap.Error(err),
			)
			for offset, row := range batch {
				single, singleErr := c.applyAdds(ctx, serviceURL, []map[string]any{row})
				if singleErr != nil || len(single) == 0 {
					rejected = append(rejected, RowError{Index: start + offset, Description: errText(singleErr)})
					continue
				}
				if single[0].Success {
					added++
				} else {
					rejected = append(rejected, rowError(start+offset, single[0].Error))
				}
			}
			continue
		}

		for offset, r := range results {
			if r.Success {
				added++
			} else {
				rejected = append(rejected, rowError(start+offset, r.Error))
			}
		}
	}
	return added, rejected, nil
}

func (c *Client) applyAdds(ctx context.Context, serviceURL string, rows []map[string]any) ([]editResult, error) {
	features := make([]feature, 0, len(rows))
	for _, row := range rows {
		features = append(features, feature{Attributes: row})
	}
	payload, err := json.Marshal(features)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("adds", string(payload))
	params.Set("rollbackOnFailure", "false")

	var result struct {
		AddResults []editResult `json:"addResults"`
	}
	if err := c.do(ctx, tableLayerURL(serviceURL)+"/applyEdits", params, &result); err != nil {
		return nil, err
	}
	return result.AddResults, nil
}

func tableLayerURL(serviceURL string) string {
	return strings.TrimRight(serviceURL, "/") + "/0"
}

func rowError(index int, e *Error) RowError {
	re := RowError{Index: index}
	if e != nil {
		re.Code = e.Code
		re.Description = e.Message
	}
	return re
}

func editErrorText(e *Error) string {
	if e == nil {
		return "no error detail"
	}
	return e.Message
}

func errText(err error) string {
	if err == nil {
		return "no result returned"
	}
	return err.Error()
}
