package sink

import (
	"context"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vikabot-systems/leadscout/internal/model"
	"github.com/vikabot-systems/leadscout/pkg/salesforce"
)

// SalesforceSink writes leads to the Salesforce Lead object. Each lead with
// an email is first looked up by that email; matches are refreshed in place
// so re-syncing a delta twice does not create duplicate records. New leads
// go through the Collections API in batches, or a single insert when only
// one is left.
type SalesforceSink struct {
	client salesforce.Client
}

// NewSalesforce returns a sink writing into the Lead object.
func NewSalesforce(client salesforce.Client) *SalesforceSink {
	return &SalesforceSink{client: client}
}

func (s *SalesforceSink) Name() string {
	return "salesforce"
}

func (s *SalesforceSink) Append(ctx context.Context, leads []model.Lead) error {
	if len(leads) == 0 {
		return nil
	}

	var fresh []model.Lead
	var records []map[string]any
	updated := 0
	for _, lead := range leads {
		existing, err := s.findExisting(ctx, lead)
		if err != nil {
			return eris.Wrapf(err, "salesforce sink: look up %s", lead.IdentityKey)
		}
		if existing != nil {
			if err := salesforce.UpdateLead(ctx, s.client, existing.ID, updateFields(lead)); err != nil {
				return eris.Wrap(err, "salesforce sink")
			}
			updated++
			continue
		}
		fresh = append(fresh, lead)
		records = append(records, leadRecord(lead))
	}

	switch len(records) {
	case 0:
	case 1:
		if _, err := salesforce.CreateLead(ctx, s.client, records[0]); err != nil {
			return eris.Wrapf(err, "salesforce sink: insert %s", fresh[0].IdentityKey)
		}
	default:
		results, err := salesforce.BulkInsertLeads(ctx, s.client, records)
		if err != nil {
			return eris.Wrap(err, "salesforce sink")
		}
		failed := 0
		for i, r := range results {
			if !r.Success {
				failed++
				zap.L().Warn("salesforce insert rejected",
					zap.String("identity_key", fresh[i].IdentityKey),
					zap.Strings("errors", r.Errors),
				)
			}
		}
		if failed > 0 {
			return eris.Errorf("salesforce sink: %d of %d inserts rejected", failed, len(records))
		}
	}

	zap.L().Info("salesforce sync finished",
		zap.Int("inserted", len(records)),
		zap.Int("updated", updated),
	)
	return nil
}

// findExisting looks up a lead by its best email. Leads without an email
// cannot be matched and are always treated as new.
func (s *SalesforceSink) findExisting(ctx context.Context, lead model.Lead) (*salesforce.Lead, error) {
	email := lead.BestEmail()
	if email == "" {
		return nil, nil
	}
	return salesforce.FindLeadByEmail(ctx, s.client, email)
}

// leadRecord maps a lead onto Salesforce Lead fields. LastName and Company
// are required by the object; tier maps onto the stock Rating picklist.
func leadRecord(lead model.Lead) map[string]any {
	first, last := splitNameParts(lead)
	if last == "" {
		last = "Unknown"
	}
	company := lead.Company
	if company == "" {
		company = "Unknown"
	}

	record := map[string]any{
		"LastName":   last,
		"Company":    company,
		"LeadSource": lead.Source,
		"Rating":     ratingFor(lead.Tier),
	}
	setIfNotEmpty(record, "FirstName", first)
	setIfNotEmpty(record, "Title", lead.Title)
	setIfNotEmpty(record, "Email", lead.BestEmail())
	setIfNotEmpty(record, "Phone", lead.Phone)
	setIfNotEmpty(record, "MobilePhone", lead.WhatsApp)
	setIfNotEmpty(record, "Website", lead.CompanyWebsite)
	setIfNotEmpty(record, "Industry", lead.Industry)
	setIfNotEmpty(record, "City", lead.City)
	setIfNotEmpty(record, "Description", lead.Notes)
	if n, err := strconv.Atoi(employeeFloor(lead.CompanySize)); err == nil && n > 0 {
		record["NumberOfEmployees"] = n
	}
	return record
}

// updateFields strips the insert-only placeholders so a refresh never
// overwrites a real LastName or Company with "Unknown".
func updateFields(lead model.Lead) map[string]any {
	fields := leadRecord(lead)
	if lead.Company == "" {
		delete(fields, "Company")
	}
	if _, last := splitNameParts(lead); last == "" {
		delete(fields, "LastName")
	}
	return fields
}

// ratingFor folds the four tiers onto Salesforce's three-value Rating
// picklist.
func ratingFor(tier model.Tier) string {
	switch tier {
	case model.TierHot:
		return "Hot"
	case model.TierHigh, model.TierMedium:
		return "Warm"
	default:
		return "Cold"
	}
}

// employeeFloor extracts the lower bound of a size bucket ("51-200" -> "51",
// "1000+" -> "1000").
func employeeFloor(bucket string) string {
	for i := 0; i < len(bucket); i++ {
		if bucket[i] < '0' || bucket[i] > '9' {
			return bucket[:i]
		}
	}
	return bucket
}

func setIfNotEmpty(record map[string]any, field, value string) {
	if value != "" {
		record[field] = value
	}
}
