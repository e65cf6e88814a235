// Package sink delivers accepted leads to downstream destinations. Sinks are
// append-only: they never mutate or delete what an earlier sync wrote.
package sink

import (
	"context"
	"fmt"
	"strings"

	"github.com/vikabot-systems/leadscout/internal/model"
)

// Sink receives a batch of leads. Append must tolerate being called with
// leads it has already seen; the caller decides what counts as new.
type Sink interface {
	Name() string
	Append(ctx context.Context, leads []model.Lead) error
}

// Header is the column layout shared by the spreadsheet sinks.
var Header = []string{
	"Date Added", "Name", "Title", "Company", "Location",
	"Industry", "Company Size", "LinkedIn", "Email Option 1", "Email Option 2",
	"Email Option 3", "Phone", "WhatsApp", "Website", "Products Interest",
	"Lead Score", "Priority", "Status", "Next Action", "Notes",
}

// leadRow flattens a lead into the Header column order.
func leadRow(lead model.Lead) []string {
	emails := make([]string, 3)
	for i := 0; i < 3 && i < len(lead.Emails); i++ {
		emails[i] = lead.Emails[i].Address
	}

	return []string{
		lead.CreatedAt.Format("2006-01-02"),
		lead.Name,
		lead.Title,
		lead.Company,
		lead.Location,
		lead.Industry,
		lead.CompanySize,
		lead.ProfileURL,
		emails[0],
		emails[1],
		emails[2],
		lead.Phone,
		lead.WhatsApp,
		lead.CompanyWebsite,
		lead.ProductsInterest,
		fmt.Sprintf("%.0f", lead.Score),
		string(lead.Tier),
		string(lead.Status),
		lead.NextAction,
		lead.Notes,
	}
}

// splitNameParts returns a first/last pair for CRMs that require a last
// name. A single-token name goes into the last-name slot.
func splitNameParts(lead model.Lead) (first, last string) {
	if lead.FirstName != "" || lead.LastName != "" {
		return lead.FirstName, lead.LastName
	}
	fields := strings.Fields(lead.Name)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return "", fields[0]
	default:
		return fields[0], fields[len(fields)-1]
	}
}
