package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"carwatch/filter"
)

type Config struct {
	Scheduler      SchedulerConfig
	Scraper        ScraperConfig
	S3             S3Config
	DBPath         string
	DatabaseURL    string
	ProxyURL       string
	SnapshotDir    string
	FreshOnCorrupt bool
	LogLevel       string
	Searches       map[string]*SearchConfig
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type ScraperConfig struct {
	DelayMS int
}

type S3Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	ArchiveInterval time.Duration
}

// SearchConfig is one tracked search, loaded from config/searches/*.yaml.
type SearchConfig struct {
	ID          string      `yaml:"id"`
	Name        string      `yaml:"name"`
	URL         string      `yaml:"url"`
	Handler     string      `yaml:"handler"`
	MaxPages    int         `yaml:"max_pages"`
	Output      string      `yaml:"output"`
	RateLimitMS int         `yaml:"rate_limit_ms"`
	Filters     filter.Spec `yaml:"filters"`
}

// SnapshotPath resolves where the search's dataset lives on disk: the
// explicit output path if the YAML sets one, otherwise <dir>/<id>.json.
func (s *SearchConfig) SnapshotPath(dir string) string {
	if s.Output != "" {
		return s.Output
	}
	return filepath.Join(dir, s.ID+".json")
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCRAPE_CRON"),
		},
		Scraper: ScraperConfig{
			DelayMS: getEnvInt("SCRAPE_DELAY_MS", 500),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
		},
		DBPath:         getEnv("DB_PATH", "carwatch.db"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		ProxyURL:       os.Getenv("PROXY_URL"),
		SnapshotDir:    getEnv("SNAPSHOT_DIR", "snapshots"),
		FreshOnCorrupt: os.Getenv("FRESH_ON_CORRUPT") == "true",
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Searches:       make(map[string]*SearchConfig),
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}
	if interval := os.Getenv("S3_ARCHIVE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.S3.ArchiveInterval = d
		}
	}

	if err := cfg.loadSearchConfigs("config/searches"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadSearchConfigs(configDir string) error {
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var search SearchConfig
		if err := yaml.Unmarshal(data, &search); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		if search.ID == "" {
			return fmt.Errorf("%s: search config missing id", path)
		}
		if search.URL == "" {
			return fmt.Errorf("%s: search config missing url", path)
		}
		if search.Handler == "" {
			search.Handler = "http"
		}
		if search.MaxPages <= 0 {
			search.MaxPages = 5
		}

		c.Searches[search.ID] = &search
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
