package main

import (
	"context"
	"net/url"
	"os"
	"time"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/vikabot-systems/leadscout/internal/collector"
	"github.com/vikabot-systems/leadscout/internal/enrich"
	"github.com/vikabot-systems/leadscout/internal/fetcher"
	"github.com/vikabot-systems/leadscout/internal/normalize"
	"github.com/vikabot-systems/leadscout/internal/score"
	"github.com/vikabot-systems/leadscout/internal/sink"
	"github.com/vikabot-systems/leadscout/internal/source"
	"github.com/vikabot-systems/leadscout/internal/store"
	"github.com/vikabot-systems/leadscout/pkg/apify"
	"github.com/vikabot-systems/leadscout/pkg/apollo"
	"github.com/vikabot-systems/leadscout/pkg/notion"
	sfpkg "github.com/vikabot-systems/leadscout/pkg/salesforce"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leadscout.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initSalesforce() (sfpkg.Client, error) {
	if cfg.Salesforce.ClientID == "" {
		return nil, eris.New("salesforce client ID is required (LEADSCOUT_SALESFORCE_CLIENT_ID)")
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf), nil
}

// searchFetcher builds the HTTP fetcher used for search scraping and remote
// lead-list downloads, with the search engine's host pinned to the
// configured rate.
func searchFetcher() *fetcher.HTTPFetcher {
	hostRates := map[string]rate.Limit{}
	if u, err := url.Parse(cfg.Search.BaseURL); err == nil && u.Host != "" {
		hostRates[u.Host] = rate.Limit(cfg.Search.RatePerSec)
	}
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent: cfg.Search.UserAgent,
		Timeout:   time.Duration(cfg.Search.TimeoutSecs) * time.Second,
		HostRates: hostRates,
	})
}

func buildSources() ([]source.Source, error) {
	var sources []source.Source
	for _, name := range cfg.Collect.Sources {
		switch name {
		case source.NameProfileSearch:
			client := apollo.NewClient(cfg.Apollo.Key, apollo.WithBaseURL(cfg.Apollo.BaseURL))
			sources = append(sources, source.NewProfileSearch(client, cfg.Apollo.PerPage))
		case source.NameWebContact:
			sources = append(sources, source.NewWebContact(searchFetcher(), cfg.Search.BaseURL))
		case source.NameActor:
			client := apify.NewClient(cfg.Apify.Token, apify.WithBaseURL(cfg.Apify.BaseURL))
			sources = append(sources, source.NewActor(
				client,
				cfg.Apify.Actor,
				time.Duration(cfg.Apify.PollIntervalSec)*time.Second,
				time.Duration(cfg.Apify.MaxWaitSec)*time.Second,
			))
		default:
			return nil, eris.Errorf("unknown source: %s", name)
		}
	}
	return sources, nil
}

func buildSinks() ([]sink.Sink, error) {
	var sinks []sink.Sink
	for _, target := range cfg.Sink.Targets {
		switch target {
		case "notion":
			sinks = append(sinks, sink.NewNotion(notion.NewClient(cfg.Notion.Token), cfg.Notion.LeadDB))
		case "salesforce":
			sfClient, err := initSalesforce()
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, sink.NewSalesforce(sfClient))
		case "xlsx":
			sinks = append(sinks, sink.NewXLSX(cfg.Sink.XLSXPath))
		case "csv":
			sinks = append(sinks, sink.NewCSV(cfg.Sink.CSVPath))
		default:
			return nil, eris.Errorf("unknown sink target: %s", target)
		}
	}
	return sinks, nil
}

func buildEngine() (*score.Engine, error) {
	var (
		policy score.Policy
		err    error
	)
	if cfg.Score.PolicyPath != "" {
		policy, err = score.LoadPolicy(cfg.Score.PolicyPath)
		if err != nil {
			return nil, err
		}
	} else {
		policy = score.DefaultPolicy()
		if cfg.Score.HotThreshold > 0 {
			policy.HotThreshold = cfg.Score.HotThreshold
		}
		if cfg.Score.HighThreshold > 0 {
			policy.HighThreshold = cfg.Score.HighThreshold
		}
		if cfg.Score.MediumThreshold > 0 {
			policy.MediumThreshold = cfg.Score.MediumThreshold
		}
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return score.NewEngine(policy), nil
}

func buildCollector(st store.Store) (*collector.Collector, error) {
	sources, err := buildSources()
	if err != nil {
		return nil, err
	}
	engine, err := buildEngine()
	if err != nil {
		return nil, err
	}

	opts := collector.Options{
		Target:          cfg.Collect.DailyTarget,
		MaxAttemptsMul:  cfg.Collect.MaxAttemptsMul,
		MinDelay:        time.Duration(cfg.Collect.MinDelayMillis) * time.Millisecond,
		MaxDelay:        time.Duration(cfg.Collect.MaxDelayMillis) * time.Millisecond,
		MaxRetries:      cfg.Collect.MaxRetries,
		PerQueryResults: cfg.Collect.PerQueryResults,
		Titles:          cfg.Collect.Titles,
		Locations:       cfg.Collect.Locations,
		CompanySizes:    cfg.Collect.CompanySizes,
	}

	return collector.New(
		st,
		sources,
		normalize.New(cfg.Collect.ProductsInterest),
		enrich.New(),
		engine,
		opts,
	), nil
}
