package sink

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vikabot-systems/leadscout/internal/model"
	"github.com/vikabot-systems/leadscout/pkg/notion"
)

// linkedInProperty is the URL property used to recognize leads that already
// have a page in the database.
const linkedInProperty = "LinkedIn"

// NotionSink creates one page per lead in a Notion database. Leads whose
// profile URL already has a page are skipped, so re-syncing a delta twice
// does not produce duplicate pages.
type NotionSink struct {
	client notion.Client
	dbID   string
}

// NewNotion returns a sink writing lead pages into the given database.
func NewNotion(client notion.Client, dbID string) *NotionSink {
	return &NotionSink{client: client, dbID: dbID}
}

func (s *NotionSink) Name() string {
	return "notion"
}

func (s *NotionSink) Append(ctx context.Context, leads []model.Lead) error {
	if len(leads) == 0 {
		return nil
	}

	existing, err := notion.ExistingURLs(ctx, s.client, s.dbID, linkedInProperty)
	if err != nil {
		return eris.Wrap(err, "notion sink")
	}

	created := 0
	for _, lead := range leads {
		if lead.ProfileURL != "" && existing[lead.ProfileURL] {
			continue
		}
		req := &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(s.dbID),
			},
			Properties: leadProperties(lead),
		}
		if _, err := s.client.CreatePage(ctx, req); err != nil {
			return eris.Wrapf(err, "notion sink: create page for %s", lead.IdentityKey)
		}
		created++
	}

	zap.L().Info("notion sync finished",
		zap.Int("created", created),
		zap.Int("skipped", len(leads)-created),
	)
	return nil
}

func leadProperties(lead model.Lead) notionapi.Properties {
	props := notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Type:  notionapi.PropertyTypeTitle,
			Title: richText(lead.Name),
		},
		"Lead Score": notionapi.NumberProperty{
			Type:   notionapi.PropertyTypeNumber,
			Number: lead.Score,
		},
		"Priority": notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: string(lead.Tier)},
		},
		"Status": notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: string(lead.Status)},
		},
		"Date Added": notionapi.DateProperty{
			Type: notionapi.PropertyTypeDate,
			Date: &notionapi.DateObject{Start: dateOf(lead)},
		},
	}

	if lead.ProfileURL != "" {
		props[linkedInProperty] = notionapi.URLProperty{
			Type: notionapi.PropertyTypeURL,
			URL:  lead.ProfileURL,
		}
	}
	if email := lead.BestEmail(); email != "" {
		props["Email"] = notionapi.EmailProperty{
			Type:  notionapi.PropertyTypeEmail,
			Email: email,
		}
	}
	if lead.Phone != "" {
		props["Phone"] = notionapi.PhoneNumberProperty{
			Type:        notionapi.PropertyTypePhoneNumber,
			PhoneNumber: lead.Phone,
		}
	}

	for name, value := range map[string]string{
		"Title":             lead.Title,
		"Company":           lead.Company,
		"Location":          lead.Location,
		"Industry":          lead.Industry,
		"Company Size":      lead.CompanySize,
		"WhatsApp":          lead.WhatsApp,
		"Products Interest": lead.ProductsInterest,
		"Next Action":       lead.NextAction,
		"Notes":             lead.Notes,
	} {
		if value == "" {
			continue
		}
		props[name] = notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: richText(value),
		}
	}
	return props
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{
		{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}},
	}
}

func dateOf(lead model.Lead) *notionapi.Date {
	d := notionapi.Date(lead.CreatedAt)
	return &d
}
