package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Apollo     ApolloConfig     `yaml:"apollo" mapstructure:"apollo"`
	Apify      ApifyConfig      `yaml:"apify" mapstructure:"apify"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Sink       SinkConfig       `yaml:"sink" mapstructure:"sink"`
	Collect    CollectConfig    `yaml:"collect" mapstructure:"collect"`
	Score      ScoreConfig      `yaml:"score" mapstructure:"score"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the dedup store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ApolloConfig holds the people-search API settings.
type ApolloConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	PerPage int    `yaml:"per_page" mapstructure:"per_page"`
}

// ApifyConfig holds the managed actor runner settings.
type ApifyConfig struct {
	Token           string `yaml:"token" mapstructure:"token"`
	BaseURL         string `yaml:"base_url" mapstructure:"base_url"`
	Actor           string `yaml:"actor" mapstructure:"actor"`
	PollIntervalSec int    `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	MaxWaitSec      int    `yaml:"max_wait_secs" mapstructure:"max_wait_secs"`
}

// SearchConfig configures the web-contact adapter's search scraping.
type SearchConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// NotionConfig holds Notion API credentials and the lead database ID.
type NotionConfig struct {
	Token  string `yaml:"token" mapstructure:"token"`
	LeadDB string `yaml:"lead_db" mapstructure:"lead_db"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// SinkConfig selects and configures the sync sinks.
type SinkConfig struct {
	// Targets lists enabled sinks: "notion", "salesforce", "xlsx", "csv".
	Targets  []string `yaml:"targets" mapstructure:"targets"`
	XLSXPath string   `yaml:"xlsx_path" mapstructure:"xlsx_path"`
	CSVPath  string   `yaml:"csv_path" mapstructure:"csv_path"`
}

// CollectConfig configures one collection run.
type CollectConfig struct {
	DailyTarget     int      `yaml:"daily_target" mapstructure:"daily_target"`
	MaxAttemptsMul  int      `yaml:"max_attempts_mul" mapstructure:"max_attempts_mul"`
	MinDelayMillis  int      `yaml:"min_delay_millis" mapstructure:"min_delay_millis"`
	MaxDelayMillis  int      `yaml:"max_delay_millis" mapstructure:"max_delay_millis"`
	MaxRetries      int      `yaml:"max_retries" mapstructure:"max_retries"`
	PerQueryResults int      `yaml:"per_query_results" mapstructure:"per_query_results"`
	Titles          []string `yaml:"titles" mapstructure:"titles"`
	Locations       []string `yaml:"locations" mapstructure:"locations"`
	CompanySizes    []string `yaml:"company_sizes" mapstructure:"company_sizes"`
	Sources         []string `yaml:"sources" mapstructure:"sources"`
	// ProductsInterest seeds the products-interest field on every new lead.
	ProductsInterest string `yaml:"products_interest" mapstructure:"products_interest"`
}

// ScoreConfig configures the scoring engine policy. If PolicyPath is set the
// policy is loaded from that YAML file; otherwise defaults apply with the
// tier thresholds below.
type ScoreConfig struct {
	PolicyPath      string  `yaml:"policy_path" mapstructure:"policy_path"`
	HotThreshold    float64 `yaml:"hot_threshold" mapstructure:"hot_threshold"`
	HighThreshold   float64 `yaml:"high_threshold" mapstructure:"high_threshold"`
	MediumThreshold float64 `yaml:"medium_threshold" mapstructure:"medium_threshold"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leadscout.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("apollo.base_url", "https://api.apollo.io/v1")
	v.SetDefault("apollo.per_page", 25)
	v.SetDefault("apify.base_url", "https://api.apify.com/v2")
	v.SetDefault("apify.actor", "apify~linkedin-profile-scraper")
	v.SetDefault("apify.poll_interval_secs", 10)
	v.SetDefault("apify.max_wait_secs", 600)
	v.SetDefault("search.base_url", "https://www.google.com/search")
	v.SetDefault("search.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")
	v.SetDefault("search.timeout_secs", 15)
	v.SetDefault("search.rate_per_sec", 0.2)
	v.SetDefault("sink.targets", []string{"csv"})
	v.SetDefault("sink.xlsx_path", "leads.xlsx")
	v.SetDefault("sink.csv_path", "leads.csv")
	v.SetDefault("collect.daily_target", 50)
	v.SetDefault("collect.max_attempts_mul", 3)
	v.SetDefault("collect.min_delay_millis", 3000)
	v.SetDefault("collect.max_delay_millis", 7000)
	v.SetDefault("collect.max_retries", 3)
	v.SetDefault("collect.per_query_results", 5)
	v.SetDefault("collect.titles", []string{
		"IT Director", "IT Manager", "CTO", "CIO",
		"VP IT", "Technology Director", "Infrastructure Manager",
		"Head of IT", "IT Procurement Manager",
	})
	v.SetDefault("collect.locations", []string{
		"Ras Al Khaimah", "Sharjah", "Dubai", "United Arab Emirates",
	})
	v.SetDefault("collect.company_sizes", []string{"51-200", "201-500", "501-1000", "1000+"})
	v.SetDefault("collect.sources", []string{"profile_search", "web_contact"})
	v.SetDefault("collect.products_interest", "ICT Solutions")
	v.SetDefault("score.hot_threshold", 90)
	v.SetDefault("score.high_threshold", 80)
	v.SetDefault("score.medium_threshold", 70)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration is usable for the given mode
// ("collect", "sync", "serve", "import"). Credentials are only required for
// the sources and sinks actually enabled.
func (c *Config) Validate(mode string) error {
	var errs []string

	checkCollect := func() {
		if c.Collect.DailyTarget <= 0 {
			errs = append(errs, "collect.daily_target must be > 0")
		}
		if c.Collect.MaxAttemptsMul <= 0 {
			errs = append(errs, "collect.max_attempts_mul must be > 0")
		}
		if c.Collect.MinDelayMillis < 0 || c.Collect.MaxDelayMillis < c.Collect.MinDelayMillis {
			errs = append(errs, "collect delay range is invalid")
		}
		for _, src := range c.Collect.Sources {
			switch src {
			case "profile_search":
				if c.Apollo.Key == "" {
					errs = append(errs, "apollo.key is required for the profile_search source")
				}
			case "actor":
				if c.Apify.Token == "" {
					errs = append(errs, "apify.token is required for the actor source")
				}
			case "web_contact":
				// no credentials needed
			default:
				errs = append(errs, "unknown source: "+src)
			}
		}
	}

	checkSinks := func() {
		for _, tgt := range c.Sink.Targets {
			switch tgt {
			case "notion":
				if c.Notion.Token == "" || c.Notion.LeadDB == "" {
					errs = append(errs, "notion.token and notion.lead_db are required for the notion sink")
				}
			case "salesforce":
				if c.Salesforce.ClientID == "" || c.Salesforce.Username == "" || c.Salesforce.KeyPath == "" {
					errs = append(errs, "salesforce client_id, username and key_path are required for the salesforce sink")
				}
			case "xlsx":
				if c.Sink.XLSXPath == "" {
					errs = append(errs, "sink.xlsx_path is required for the xlsx sink")
				}
			case "csv":
				if c.Sink.CSVPath == "" {
					errs = append(errs, "sink.csv_path is required for the csv sink")
				}
			default:
				errs = append(errs, "unknown sink target: "+tgt)
			}
		}
	}

	switch mode {
	case "collect":
		checkCollect()
	case "sync":
		checkSinks()
	case "serve":
		checkCollect()
		checkSinks()
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "import":
		// store settings only
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		errs = append(errs, "store.driver must be sqlite or postgres")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
