package main

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vikabot-systems/leadscout/internal/db"
	"github.com/vikabot-systems/leadscout/internal/enrich"
	"github.com/vikabot-systems/leadscout/internal/fetcher"
	"github.com/vikabot-systems/leadscout/internal/model"
	"github.com/vikabot-systems/leadscout/internal/normalize"
	"github.com/vikabot-systems/leadscout/internal/source"
	"github.com/vikabot-systems/leadscout/internal/store"
)

var importMax int

var importCmd = &cobra.Command{
	Use:   "import <file|url> [more files...]",
	Short: "Import leads from CSV or XLSX lead lists",
	Long:  "Reads vendor lead-list exports (local paths, http(s) or ftp URLs), normalizes and scores the rows, and upserts them into the store.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("import"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		list := source.NewLeadList(importDownloader(), args)
		raws, err := list.FetchCandidates(ctx, source.Query{}, importMax)
		if err != nil {
			return eris.Wrap(err, "read lead lists")
		}

		engine, err := buildEngine()
		if err != nil {
			return err
		}

		norm := normalize.New(cfg.Collect.ProductsInterest)
		enricher := enrich.New()
		now := time.Now().UTC()

		var leads []model.Lead
		var rejected int
		for _, raw := range raws {
			lead, err := norm.Normalize(raw, now)
			if err != nil {
				if eris.Is(err, normalize.ErrRejected) {
					rejected++
					continue
				}
				return eris.Wrap(err, "normalize candidate")
			}
			enricher.Enrich(&lead)
			engine.Apply(&lead)
			leads = append(leads, lead)
		}

		var created, merged int
		if pg, ok := st.(*store.PostgresStore); ok {
			n, err := bulkImport(ctx, pg, leads)
			if err != nil {
				return err
			}
			created = n
		} else {
			for _, lead := range leads {
				_, wasNew, err := st.UpsertLead(ctx, lead)
				if err != nil {
					return eris.Wrapf(err, "upsert lead %s", lead.IdentityKey)
				}
				if wasNew {
					created++
				} else {
					merged++
				}
			}
		}

		zap.L().Info("import complete",
			zap.Int("rows", len(raws)),
			zap.Int("created", created),
			zap.Int("merged", merged),
			zap.Int("rejected", rejected),
		)
		return nil
	},
}

// importDownloader routes remote lead files by scheme: ftp drops go through
// the FTP fetcher, everything else through the rate-limited HTTP fetcher.
func importDownloader() source.Downloader {
	return schemeRouter{
		ftp: fetcher.NewFTPFetcher(fetcher.FTPOptions{
			Timeout: time.Duration(cfg.Search.TimeoutSecs) * time.Second,
		}),
		http: searchFetcher(),
	}
}

type schemeRouter struct {
	ftp  *fetcher.FTPFetcher
	http *fetcher.HTTPFetcher
}

func (r schemeRouter) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if strings.HasPrefix(rawURL, "ftp://") {
		return r.ftp.Download(ctx, rawURL)
	}
	return r.http.Download(ctx, rawURL)
}

// bulkImport lands the batch in Postgres through a temp-table COPY instead
// of one upsert round trip per row. Conflicting rows are replaced outright;
// an import is the authoritative copy of its file.
func bulkImport(ctx context.Context, pg *store.PostgresStore, leads []model.Lead) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}

	// Dedupe within the batch; COPY cannot upsert the same key twice.
	seen := make(map[string]bool, len(leads))
	rows := make([][]any, 0, len(leads))
	for _, lead := range leads {
		if seen[lead.IdentityKey] {
			continue
		}
		seen[lead.IdentityKey] = true

		doc, err := json.Marshal(lead)
		if err != nil {
			return 0, eris.Wrapf(err, "marshal lead %s", lead.IdentityKey)
		}
		rows = append(rows, []any{
			lead.IdentityKey, doc, lead.Score, string(lead.Tier), string(lead.Status),
			lead.Source, lead.Synced, lead.CreatedAt, lead.UpdatedAt,
		})
	}

	n, err := db.BulkUpsert(ctx, pg.Pool(), db.BulkConfig{
		Table:        "leads",
		Columns:      []string{"identity_key", "doc", "score", "tier", "status", "source", "synced", "created_at", "updated_at"},
		ConflictKeys: []string{"identity_key"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "bulk import leads")
	}
	return int(n), nil
}

func init() {
	importCmd.Flags().IntVar(&importMax, "max", 10000, "maximum number of rows to import")
	rootCmd.AddCommand(importCmd)
}
