package salesforce

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
)

// maxBatchSize is the Salesforce Collections API limit per request.
const maxBatchSize = 200

// BulkInsertLeads splits records into batches of 200 (SF Collections API
// limit) and sends them via InsertCollection. Partial results are returned
// alongside the error when a later batch fails.
func BulkInsertLeads(ctx context.Context, c Client, records []map[string]any) ([]CollectionResult, error) {
	if len(records) == 0 {
		return nil, nil
	}

	var allResults []CollectionResult

	for start := 0; start < len(records); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(records) {
			end = len(records)
		}

		results, err := c.InsertCollection(ctx, "Lead", records[start:end])
		if err != nil {
			return allResults, eris.Wrap(err, fmt.Sprintf("sf: bulk insert leads batch %d-%d", start, end))
		}
		allResults = append(allResults, results...)
	}

	return allResults, nil
}
