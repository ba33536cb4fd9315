package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Supabase   SupabaseConfig
	Browser    BrowserConfig
	Scout      ScoutConfig
	Server     ServerConfig
	Scheduler  SchedulerConfig
	S3         S3Config
	Transcript TranscriptConfig
	DBPath     string
	LogPath    string
	Channels   []string
}

type SupabaseConfig struct {
	URL        string
	ServiceKey string
	DBURL      string
	RateLimit  float64
}

type BrowserConfig struct {
	ExtensionPath  string
	ExtensionID    string
	UserDataDir    string
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
}

type ScoutConfig struct {
	MinScore          float64
	MinViews          int64
	PruneMinViews     int64
	ExtractPublished  bool
	ThumbnailFallback bool
	ScrollStrategy    string
	MaxScrolls        int
	ScrollPause       time.Duration
	SettleDelay       time.Duration
	GridTimeout       time.Duration
	TabDelay          time.Duration
}

type ServerConfig struct {
	Port        string
	CORSOrigins string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type TranscriptConfig struct {
	Language string
}

// channelsFile is the YAML layout of the scheduled channel list.
type channelsFile struct {
	Channels []string `yaml:"channels"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Supabase: SupabaseConfig{
			URL:        os.Getenv("SUPABASE_URL"),
			ServiceKey: firstEnv("SUPABASE_SERVICE_KEY", "SUPABASE_KEY"),
			DBURL:      os.Getenv("SUPABASE_DB_URL"),
			RateLimit:  getEnvFloat("SUPABASE_RATE_LIMIT", 10),
		},
		Browser: BrowserConfig{
			ExtensionPath:  absPath(getEnv("EXTENSION_PATH", "./1of10_ext")),
			ExtensionID:    getEnv("EXTENSION_ID", "gkfdnmclhbgbidnpmimfdobgjpeblckn"),
			UserDataDir:    absPath(getEnv("USER_DATA_DIR", "./user_data")),
			Headless:       getEnvBool("BROWSER_HEADLESS", false),
			ViewportWidth:  getEnvInt("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getEnvInt("BROWSER_VIEWPORT_HEIGHT", 1080),
		},
		Scout: ScoutConfig{
			MinScore:          getEnvFloat("SCOUT_MIN_SCORE", 1.5),
			MinViews:          int64(getEnvInt("SCOUT_MIN_VIEWS", 5000)),
			PruneMinViews:     int64(getEnvInt("PRUNE_MIN_VIEWS", 5000)),
			ExtractPublished:  getEnvBool("SCOUT_EXTRACT_PUBLISHED", true),
			ThumbnailFallback: getEnvBool("SCOUT_THUMBNAIL_FALLBACK", true),
			ScrollStrategy:    getEnv("SCOUT_SCROLL_STRATEGY", "height"),
			MaxScrolls:        getEnvInt("SCOUT_MAX_SCROLLS", 50),
			ScrollPause:       getEnvDuration("SCOUT_SCROLL_PAUSE", 2*time.Second),
			SettleDelay:       getEnvDuration("SCOUT_SETTLE_DELAY", 3*time.Second),
			GridTimeout:       getEnvDuration("SCOUT_GRID_TIMEOUT", 15*time.Second),
			TabDelay:          getEnvDuration("SCOUT_TAB_DELAY", time.Second),
		},
		Server: ServerConfig{
			Port:        getEnv("PORT", "5000"),
			CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		},
		Scheduler: SchedulerConfig{
			Cron:     os.Getenv("SCOUT_CRON"),
			Interval: getEnvDuration("SCOUT_INTERVAL", 0),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		Transcript: TranscriptConfig{
			Language: getEnv("TRANSCRIPT_LANGUAGE", "en"),
		},
		DBPath:  getEnv("DB_PATH", "scout.db"),
		LogPath: getEnv("LOG_PATH", "scout.log"),
	}

	channels, err := loadChannels(getEnv("SCOUT_CHANNELS_FILE", "config/channels.yaml"))
	if err != nil {
		return nil, err
	}
	cfg.Channels = channels

	return cfg, nil
}

func loadChannels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var f channelsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	var channels []string
	for _, c := range f.Channels {
		if c = strings.TrimSpace(c); c != "" {
			channels = append(channels, c)
		}
	}
	return channels, nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if val := os.Getenv(k); val != "" {
			return val
		}
	}
	return ""
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

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
