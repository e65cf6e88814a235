package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vikabot-systems/leadscout/internal/fetcher"
	"github.com/vikabot-systems/leadscout/internal/model"
)

// LeadList reads purchased or exported lead files (CSV or XLSX, local path
// or URL) and maps their rows onto candidates. The query is ignored: the
// file itself is the selection.
type LeadList struct {
	fetch Downloader
	paths []string
}

// NewLeadList builds a lead-list source over the given file paths or URLs.
func NewLeadList(fetch Downloader, paths []string) *LeadList {
	return &LeadList{fetch: fetch, paths: paths}
}

func (s *LeadList) Name() string {
	return NameLeadList
}

// columnAliases maps a canonical field to the header spellings seen across
// vendor exports. Matching is case-insensitive after trimming.
var columnAliases = map[string][]string{
	"name":       {"name", "full name", "full_name", "contact", "contact name"},
	"first_name": {"first name", "first_name", "firstname", "given name"},
	"last_name":  {"last name", "last_name", "lastname", "surname", "family name"},
	"title":      {"title", "job title", "job_title", "position", "role", "headline", "designation"},
	"company":    {"company", "company name", "company_name", "organization", "organisation", "employer", "account"},
	"location":   {"location", "region", "area", "country"},
	"city":       {"city", "town"},
	"industry":   {"industry", "sector", "vertical"},
	"size":       {"company size", "company_size", "size", "employees", "employee count", "headcount", "# employees"},
	"profile":    {"linkedin", "linkedin url", "linkedin_url", "profile", "profile url", "profile_url", "person linkedin url"},
	"email":      {"email", "email address", "e-mail", "work email", "email_1"},
	"phone":      {"phone", "phone number", "phone_number", "mobile", "mobile phone", "contact number", "work direct phone"},
	"website":    {"website", "company website", "company_website", "web site", "url", "domain"},
	"conns":      {"connections", "connection count", "# connections"},
}

func (s *LeadList) FetchCandidates(ctx context.Context, _ Query, maxResults int) ([]model.RawCandidate, error) {
	if maxResults <= 0 {
		return nil, nil
	}

	var out []model.RawCandidate
	for _, path := range s.paths {
		if len(out) == maxResults {
			break
		}
		header, rows, err := s.readFile(ctx, path)
		if err != nil {
			// A missing or malformed file is not retryable and should not
			// kill the other files in the batch.
			zap.L().Warn("lead list: skipping file",
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}

		cols := mapColumns(header)
		for _, row := range rows {
			if len(out) == maxResults {
				break
			}
			cand := rowToCandidate(row, cols)
			if cand.Name == "" && cand.ProfileURL == "" {
				continue
			}
			out = append(out, cand)
		}
	}
	return out, nil
}

// readFile loads a CSV or XLSX lead file. Remote files are downloaded
// through the fetcher; XLSX bodies are spooled to disk because the format
// is not streamable.
func (s *LeadList) readFile(ctx context.Context, path string) ([]string, [][]string, error) {
	isRemote := strings.HasPrefix(path, "http://") ||
		strings.HasPrefix(path, "https://") ||
		strings.HasPrefix(path, "ftp://")

	switch strings.ToLower(filepath.Ext(strippedQuery(path))) {
	case ".csv":
		var r io.ReadCloser
		if isRemote {
			body, err := s.fetch.Download(ctx, path)
			if err != nil {
				return nil, nil, eris.Wrapf(err, "download %s", path)
			}
			r = body
		} else {
			f, err := os.Open(path)
			if err != nil {
				return nil, nil, eris.Wrapf(err, "open %s", path)
			}
			r = f
		}
		defer r.Close()
		return fetcher.ReadCSV(ctx, r, fetcher.CSVOptions{HasHeader: true, TrimSpace: true})

	case ".xlsx":
		local := path
		if isRemote {
			tmp, err := s.spool(ctx, path)
			if err != nil {
				return nil, nil, err
			}
			defer os.Remove(tmp)
			local = tmp
		}
		headerCh := make(chan []string, 1)
		rows, err := fetcher.ReadXLSX(local, fetcher.XLSXOptions{SkipRows: 1, HeaderCh: headerCh})
		if err != nil {
			return nil, nil, err
		}
		var header []string
		select {
		case header = <-headerCh:
		default:
		}
		return header, rows, nil

	default:
		return nil, nil, eris.Errorf("unsupported lead file %s", path)
	}
}

func (s *LeadList) spool(ctx context.Context, url string) (string, error) {
	body, err := s.fetch.Download(ctx, url)
	if err != nil {
		return "", eris.Wrapf(err, "download %s", url)
	}
	defer body.Close()

	tmp, err := os.CreateTemp("", "leadlist-*.xlsx")
	if err != nil {
		return "", eris.Wrap(err, "create temp file")
	}
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", eris.Wrap(err, "spool lead file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", eris.Wrap(err, "spool lead file")
	}
	return tmp.Name(), nil
}

// mapColumns resolves a header row to canonical field -> column index.
// First alias match wins; unknown columns are ignored.
func mapColumns(header []string) map[string]int {
	norm := make([]string, len(header))
	for i, h := range header {
		norm[i] = strings.ToLower(strings.TrimSpace(h))
	}

	cols := map[string]int{}
	for field, aliases := range columnAliases {
		for _, alias := range aliases {
			for i, h := range norm {
				if h == alias {
					cols[field] = i
					break
				}
			}
			if _, ok := cols[field]; ok {
				break
			}
		}
	}
	return cols
}

func rowToCandidate(row []string, cols map[string]int) model.RawCandidate {
	cell := func(field string) string {
		i, ok := cols[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	cand := model.RawCandidate{
		Name:           cell("name"),
		FirstName:      cell("first_name"),
		LastName:       cell("last_name"),
		Title:          cell("title"),
		Company:        cell("company"),
		Location:       cell("location"),
		City:           cell("city"),
		Industry:       cell("industry"),
		CompanySize:    cell("size"),
		ProfileURL:     cell("profile"),
		Phone:          cell("phone"),
		CompanyWebsite: cell("website"),
		Connections:    cell("conns"),
		SourceTag:      NameLeadList,
	}
	if cand.Name == "" && (cand.FirstName != "" || cand.LastName != "") {
		cand.Name = strings.TrimSpace(cand.FirstName + " " + cand.LastName)
	}
	if addr := cell("email"); addr != "" {
		// A file column says nothing about deliverability, so the address
		// stays a guess until something actually verifies it.
		cand.Email = &model.RawEmail{Address: addr, Status: model.EmailGuessed}
	}
	return cand
}

// strippedQuery drops a URL query string so extension sniffing works on
// signed download links.
func strippedQuery(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		return path[:i]
	}
	return path
}
