package salesforce

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindLeadByEmail(t *testing.T) {
	mc := &mockClient{
		queryFn: func(_ context.Context, soql string, out any) error {
			assert.Contains(t, soql, "FROM Lead")
			assert.Contains(t, soql, "Email = 'ahmed@rakceramics.com'")
			data := `[{"Id":"00Q001","FirstName":"Ahmed","LastName":"Hassan","Company":"RAK Ceramics","Email":"ahmed@rakceramics.com"}]`
			return json.Unmarshal([]byte(data), out)
		},
	}

	lead, err := FindLeadByEmail(context.Background(), mc, "ahmed@rakceramics.com")
	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, "00Q001", lead.ID)
	assert.Equal(t, "RAK Ceramics", lead.Company)
}

func TestFindLeadByEmail_NotFound(t *testing.T) {
	mc := &mockClient{
		queryFn: func(_ context.Context, _ string, _ any) error { return nil },
	}
	lead, err := FindLeadByEmail(context.Background(), mc, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, lead)
}

func TestFindLeadByEmail_SOQLInjectionPrevented(t *testing.T) {
	mc := &mockClient{
		queryFn: func(_ context.Context, soql string, _ any) error {
			// Every quote in the input is escaped, so the literal cannot
			// terminate early.
			assert.Contains(t, soql, `Email = 'x\' OR \'1\'=\'1'`)
			return nil
		},
	}
	_, err := FindLeadByEmail(context.Background(), mc, "x' OR '1'='1")
	require.NoError(t, err)
}

func TestCreateLead(t *testing.T) {
	var gotObject string
	mc := &mockClient{
		insertOneFn: func(_ context.Context, sObjectName string, record map[string]any) (string, error) {
			gotObject = sObjectName
			assert.Equal(t, "Hassan", record["LastName"])
			return "00Q002", nil
		},
	}

	id, err := CreateLead(context.Background(), mc, map[string]any{
		"FirstName": "Ahmed",
		"LastName":  "Hassan",
		"Company":   "RAK Ceramics",
	})
	require.NoError(t, err)
	assert.Equal(t, "00Q002", id)
	assert.Equal(t, "Lead", gotObject)
}

func TestCreateLead_RequiredFields(t *testing.T) {
	mc := &mockClient{}

	_, err := CreateLead(context.Background(), mc, map[string]any{"Company": "RAK Ceramics"})
	assert.ErrorContains(t, err, "LastName")

	_, err = CreateLead(context.Background(), mc, map[string]any{"LastName": "Hassan", "Company": ""})
	assert.ErrorContains(t, err, "Company")
}

func TestUpdateLead(t *testing.T) {
	var gotID string
	mc := &mockClient{
		updateOneFn: func(_ context.Context, sObjectName, id string, fields map[string]any) error {
			assert.Equal(t, "Lead", sObjectName)
			gotID = id
			assert.Equal(t, "Hot", fields["Rating"])
			return nil
		},
	}
	err := UpdateLead(context.Background(), mc, "00Q001", map[string]any{"Rating": "Hot"})
	require.NoError(t, err)
	assert.Equal(t, "00Q001", gotID)
}

func TestUpdateLead_Validation(t *testing.T) {
	mc := &mockClient{}
	assert.Error(t, UpdateLead(context.Background(), mc, "", map[string]any{"Rating": "Hot"}))
	assert.Error(t, UpdateLead(context.Background(), mc, "00Q001", nil))
}

func TestBulkInsertLeads_Batching(t *testing.T) {
	var batches [][]map[string]any
	mc := &mockClient{
		insertCollectionFn: func(_ context.Context, sObjectName string, records []map[string]any) ([]CollectionResult, error) {
			assert.Equal(t, "Lead", sObjectName)
			batches = append(batches, records)
			results := make([]CollectionResult, len(records))
			for i := range results {
				results[i] = CollectionResult{Success: true}
			}
			return results, nil
		},
	}

	records := make([]map[string]any, 450)
	for i := range records {
		records[i] = map[string]any{"LastName": "x", "Company": "y"}
	}

	results, err := BulkInsertLeads(context.Background(), mc, records)
	require.NoError(t, err)
	assert.Len(t, results, 450)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 200)
	assert.Len(t, batches[2], 50)
}

func TestBulkInsertLeads_Empty(t *testing.T) {
	results, err := BulkInsertLeads(context.Background(), &mockClient{}, nil)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestBulkInsertLeads_BatchErrorReturnsPartial(t *testing.T) {
	calls := 0
	mc := &mockClient{
		insertCollectionFn: func(_ context.Context, _ string, records []map[string]any) ([]CollectionResult, error) {
			calls++
			if calls == 2 {
				return nil, assert.AnError
			}
			results := make([]CollectionResult, len(records))
			return results, nil
		},
	}

	records := make([]map[string]any, 300)
	for i := range records {
		records[i] = map[string]any{"LastName": "x", "Company": "y"}
	}

	results, err := BulkInsertLeads(context.Background(), mc, records)
	assert.Error(t, err)
	assert.Len(t, results, 200)
}
