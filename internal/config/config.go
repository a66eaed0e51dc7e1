// Package config loads the newsletter definitions from YAML and the secrets
// and tuning knobs from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/deusflow/newsbrief/internal/news"
	"github.com/deusflow/newsbrief/internal/render"
)

const DefaultPath = "configs/newsletters.yaml"

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

var (
	ErrNoNewsletters    = errors.New("at least one newsletter is required")
	ErrUnknownProvider  = errors.New("llm_provider must be 'openai' or 'gemini'")
	ErrUnknownPeriod    = errors.New("period must be one of 일단위, 주단위, 월단위")
	ErrNewsletterNotSet = errors.New("newsletter not found")
)

// Common holds settings shared by every newsletter.
type Common struct {
	Period       string        `yaml:"period"`
	IntervalTime float64       `yaml:"interval_time"` // seconds between URL decoder calls
	OpenAIModel  string        `yaml:"openai_model"`
	GeminiModel  string        `yaml:"gemini_model"`
	LLMProvider  string        `yaml:"llm_provider"`
	Locale       string        `yaml:"locale"`
	MaxResults   int           `yaml:"max_results"`
	Brand        render.Brand  `yaml:"brand"`
	Footer       render.Footer `yaml:"footer"`
}

// Newsletter is one configured digest.
type Newsletter struct {
	Name               string                 `yaml:"-"`
	Topics             []news.Topic           `yaml:"topics"`
	DBName             string                 `yaml:"db_name"`
	DBDriver           string                 `yaml:"db_driver"`
	DBDSN              string                 `yaml:"db_dsn"`
	OutputHTML         string                 `yaml:"output_html"`
	MonthlyJSONEnabled bool                   `yaml:"monthly_json_enabled"`
	MonthlyJSONDir     string                 `yaml:"monthly_json_dir"`
	Brand              *render.Brand          `yaml:"brand"`
	Footer             *render.Footer         `yaml:"footer"`
	Banner             []render.BannerSection `yaml:"banner"`

	// SkipSeen seeds the ledger with URLs already in the store, so an
	// article appears in at most one issue.
	SkipSeen bool `yaml:"skip_seen"`
	// KeepTextless keeps articles whose body could not be extracted; they
	// render as singletons without a summary.
	KeepTextless bool `yaml:"keep_textless"`
}

// RenderOptions merges the newsletter's overrides over the common branding.
func (n Newsletter) RenderOptions(c Common) render.Options {
	opts := render.Options{Brand: c.Brand, Footer: c.Footer, Banner: n.Banner}
	if n.Brand != nil {
		opts.Brand = *n.Brand
	}
	if n.Footer != nil {
		opts.Footer = *n.Footer
	}
	return opts
}

// DSN returns the data source for the newsletter's store.
func (n Newsletter) DSN() string {
	if n.DBDSN != "" {
		return n.DBDSN
	}
	return n.DBName
}

type Config struct {
	Common      Common
	Newsletters []Newsletter

	// LLM
	LLMProvider    string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	GeminiAPIKey   string
	MaxLLMRequests int // per run, 0 = unlimited
	SummaryTimeout time.Duration
	CacheTTL       time.Duration

	// Mail
	SenderEmail    string
	SenderPassword string
	MailTo         string
	SMTPHost       string
	SMTPPort       int
	MailBatchSize  int
	MailPause      time.Duration

	// Subscribers
	FirebaseCredentials []byte
	FirebaseDatabaseURL string

	// Redis history, disabled when RedisAddr is empty
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	// Pools
	TopicConcurrency   int
	FetchConcurrency   int
	SummaryConcurrency int

	// App settings
	Debug          bool
	RequestTimeout time.Duration
	InsecureImages bool
	MonitoringPort string
}

type file struct {
	Common      Common    `yaml:"common"`
	Newsletters yaml.Node `yaml:"newsletters"`
}

// Load reads .env (if present), the YAML file at path and the environment.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Parse decodes the YAML document, keeping newsletters in file order.
func Parse(data []byte) (*Config, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	cfg := &Config{Common: f.Common}
	if f.Newsletters.Kind != 0 {
		if f.Newsletters.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("newsletters must be a mapping, got line %d", f.Newsletters.Line)
		}
		for i := 0; i+1 < len(f.Newsletters.Content); i += 2 {
			key, val := f.Newsletters.Content[i], f.Newsletters.Content[i+1]
			var n Newsletter
			if err := val.Decode(&n); err != nil {
				return nil, fmt.Errorf("newsletter %q: %w", key.Value, err)
			}
			n.Name = key.Value
			cfg.Newsletters = append(cfg.Newsletters, n)
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Common.Period == "" {
		c.Common.Period = "일단위"
	}
	if c.Common.IntervalTime <= 0 {
		c.Common.IntervalTime = 5
	}
	if c.Common.OpenAIModel == "" {
		c.Common.OpenAIModel = "gpt-4o-mini"
	}
	if c.Common.GeminiModel == "" {
		c.Common.GeminiModel = "gemini-1.5-flash"
	}
	if c.Common.LLMProvider == "" {
		c.Common.LLMProvider = ProviderOpenAI
	}
	if c.Common.Locale == "" {
		c.Common.Locale = "ko_KR.UTF-8"
	}
	if c.Common.MaxResults <= 0 {
		c.Common.MaxResults = 10
	}
	for i := range c.Newsletters {
		n := &c.Newsletters[i]
		if n.DBName == "" {
			n.DBName = n.Name + ".db"
		}
		if n.DBDriver == "" {
			n.DBDriver = "sqlite3"
		}
		if n.OutputHTML == "" {
			n.OutputHTML = n.Name + ".html"
		}
		if n.MonthlyJSONDir == "" {
			n.MonthlyJSONDir = "data"
		}
	}

	c.LLMProvider = c.Common.LLMProvider
	c.SummaryTimeout = 60 * time.Second
	c.CacheTTL = 24 * time.Hour
	c.SMTPHost = "smtp.gmail.com"
	c.SMTPPort = 465
	c.MailBatchSize = 80
	c.MailPause = 30 * time.Second
	c.RedisTTL = 30 * 24 * time.Hour
	c.TopicConcurrency = 5
	c.FetchConcurrency = 10
	c.SummaryConcurrency = 5
	c.RequestTimeout = 30 * time.Second
	c.MonitoringPort = "8080"
}

func (c *Config) loadEnv() error {
	c.LLMProvider = strings.ToLower(getEnvOrDefault("LLM_PROVIDER", c.LLMProvider))
	c.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	c.OpenAIBaseURL = os.Getenv("OPENAI_BASE_URL")
	c.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	c.MaxLLMRequests = getEnvIntOrDefault("MAX_LLM_REQUESTS", c.MaxLLMRequests)
	c.SummaryTimeout = getEnvDurationOrDefault("SUMMARY_TIMEOUT", c.SummaryTimeout)
	c.CacheTTL = getEnvDurationOrDefault("SUMMARY_CACHE_TTL", c.CacheTTL)

	c.SenderEmail = os.Getenv("SENDER_EMAIL")
	c.SenderPassword = os.Getenv("SENDER_PASSWORD")
	c.MailTo = getEnvOrDefault("MAIL_TO", c.SenderEmail)
	c.SMTPHost = getEnvOrDefault("SMTP_HOST", c.SMTPHost)
	c.SMTPPort = getEnvIntOrDefault("SMTP_PORT", c.SMTPPort)
	c.MailBatchSize = getEnvIntOrDefault("MAIL_BATCH_SIZE", c.MailBatchSize)
	c.MailPause = getEnvDurationOrDefault("MAIL_BATCH_PAUSE", c.MailPause)

	creds, err := credentials(os.Getenv("FIREBASE_CREDENTIALS"))
	if err != nil {
		return err
	}
	c.FirebaseCredentials = creds
	c.FirebaseDatabaseURL = os.Getenv("FIREBASE_DATABASE_URL")

	c.RedisAddr = os.Getenv("REDIS_ADDR")
	c.RedisPassword = os.Getenv("REDIS_PASSWORD")
	c.RedisDB = getEnvIntOrDefault("REDIS_DB", c.RedisDB)
	c.RedisTTL = getEnvDurationOrDefault("REDIS_TTL", c.RedisTTL)

	c.TopicConcurrency = getEnvIntOrDefault("TOPIC_CONCURRENCY", c.TopicConcurrency)
	c.FetchConcurrency = getEnvIntOrDefault("FETCH_CONCURRENCY", c.FetchConcurrency)
	c.SummaryConcurrency = getEnvIntOrDefault("SUMMARY_CONCURRENCY", c.SummaryConcurrency)

	if debug := os.Getenv("DEBUG"); debug == "true" {
		c.Debug = true
	}
	c.RequestTimeout = getEnvDurationOrDefault("REQUEST_TIMEOUT", c.RequestTimeout)
	c.InsecureImages = os.Getenv("INSECURE_IMAGE_FETCH") == "true"
	c.MonitoringPort = getEnvOrDefault("MONITORING_PORT", c.MonitoringPort)
	return nil
}

// credentials accepts either inline service-account JSON or a path to it.
func credentials(v string) ([]byte, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	if strings.HasPrefix(v, "{") {
		return []byte(v), nil
	}
	data, err := os.ReadFile(v)
	if err != nil {
		return nil, fmt.Errorf("read FIREBASE_CREDENTIALS file: %w", err)
	}
	return data, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// Validate checks what every command needs.
func (c *Config) Validate() error {
	if len(c.Newsletters) == 0 {
		return ErrNoNewsletters
	}
	switch c.Common.Period {
	case "일단위", "주단위", "월단위":
	default:
		return ErrUnknownPeriod
	}
	for _, n := range c.Newsletters {
		if len(n.Topics) == 0 {
			return fmt.Errorf("newsletter %q: at least one topic is required", n.Name)
		}
		for _, t := range n.Topics {
			if t.Name == "" || len(t.Keywords) == 0 {
				return fmt.Errorf("newsletter %q: every topic needs a name and keywords", n.Name)
			}
		}
		if n.DBDriver != "sqlite3" && n.DBDriver != "postgres" {
			return fmt.Errorf("newsletter %q: db_driver must be 'sqlite3' or 'postgres'", n.Name)
		}
	}
	if c.TopicConcurrency < 1 || c.FetchConcurrency < 1 || c.SummaryConcurrency < 1 {
		return fmt.Errorf("concurrency limits must be at least 1")
	}
	if c.LLMProvider != ProviderOpenAI && c.LLMProvider != ProviderGemini {
		return ErrUnknownProvider
	}
	return nil
}

// ValidateLLM checks the API key of the selected provider.
func (c *Config) ValidateLLM() error {
	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required")
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required")
		}
	default:
		return ErrUnknownProvider
	}
	return nil
}

// ValidateMail checks the secrets the send command needs.
func (c *Config) ValidateMail() error {
	if c.SenderEmail == "" {
		return fmt.Errorf("SENDER_EMAIL is required")
	}
	if c.SenderPassword == "" {
		return fmt.Errorf("SENDER_PASSWORD is required")
	}
	if len(c.FirebaseCredentials) == 0 {
		return fmt.Errorf("FIREBASE_CREDENTIALS is required")
	}
	if c.FirebaseDatabaseURL == "" {
		return fmt.Errorf("FIREBASE_DATABASE_URL is required")
	}
	return nil
}

// Newsletter returns the named newsletter.
func (c *Config) Newsletter(name string) (Newsletter, error) {
	for _, n := range c.Newsletters {
		if n.Name == name {
			return n, nil
		}
	}
	return Newsletter{}, fmt.Errorf("%w: %s", ErrNewsletterNotSet, name)
}
