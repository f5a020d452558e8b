package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Search    SearchConfig
	Scrape    ScrapeConfig
	Aggregate AggregateConfig
	Lead      LeadConfig
	LLM       LLMConfig
	Output    OutputConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8000
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser and its slot pages.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: false (a visible profile is less likely to be flagged)

	// Tabs is the execution slot pool capacity.
	Tabs int // default: 5

	// ProfileDir is the persistent user-data dir shared by every slot.
	ProfileDir string // default: "./chrome-profile"

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL for the browser.
	Proxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool

	// BlockedResourceTypes lists resource types to block on every slot page.
	BlockedResourceTypes []string // default: ["Image", "Font", "Media"]

	// BlockAds drops requests to known ad and tracking hosts.
	BlockAds bool // default: true
}

// SearchConfig controls the SearchTaskRunner.
type SearchConfig struct {
	// BaseURL is the search endpoint; the query is appended as ?q=.
	BaseURL string // default: "https://www.google.com/search"

	// NumResults is the results-per-page parameter for campaign queries.
	NumResults int // default: 20

	// NavigationTimeout bounds page.Navigate.
	NavigationTimeout time.Duration // default: 30s

	// ResultsWait bounds the wait for any "results loaded" selector.
	ResultsWait time.Duration // default: 5s

	// RateLimitBackoff is the single extended wait after a rate-limit page.
	RateLimitBackoff time.Duration // default: 10s

	// PaceBase, PaceJitter and PaceStep shape the inter-query delay:
	// base + rand[0,jitter) + index*step, capped at PaceMax.
	PaceBase   time.Duration // default: 3s
	PaceJitter time.Duration // default: 2s
	PaceStep   time.Duration // default: 150ms
	PaceMax    time.Duration // default: 8s

	// SessionRate is the number of search navigations per second allowed
	// across all slots of the shared session. 0 disables the limiter.
	SessionRate  float64 // default: 0.5
	SessionBurst int     // default: 2
}

// ScrapeConfig controls the DeepScrapeRunner.
type ScrapeConfig struct {
	NavigationTimeout time.Duration // default: 30s
	ContentWait       time.Duration // default: 2s
	MaxContentChars   int           // default: 5000
	MaxWebsites       int           // default: 5

	// HostFailureLimit failed visits within HostMemoryTTL mark a host
	// unreachable; later URLs on it are skipped.
	HostFailureLimit int           // default: 2
	HostMemoryTTL    time.Duration // default: 1h
}

// AggregateConfig controls scoring and selection.
type AggregateConfig struct {
	MinScore      float64 // default: 6
	FallbackFloor int     // default: 20
	FallbackScore float64 // default: 4

	// DefaultPlatforms is used for the fallback heuristic when the strategy has none.
	DefaultPlatforms []string

	// ScoreMaxTokens bounds the batched scoring completion.
	ScoreMaxTokens int // default: 1500
}

// LeadConfig controls lead extraction and identity resolution.
type LeadConfig struct {
	// ProfileThreshold is the minimum relevance for a resolved profile.
	ProfileThreshold float64 // default: 7

	// MaxProfiles is the number of profiles kept per person.
	MaxProfiles int // default: 2

	// MaxPeople caps identity-resolution lookups per page.
	MaxPeople int // default: 3

	// ProfilePatterns marks URLs that count as personal profiles.
	ProfilePatterns []string // default: ["linkedin.com/in/"]

	// NearDuplicateDistance is the simhash distance under which two lead pages collapse.
	NearDuplicateDistance int // default: 3
}

// LLMConfig configures the OpenAI-compatible text-completion service.
type LLMConfig struct {
	APIKey  string
	Model   string        // default: "gpt-4o-mini"
	BaseURL string        // default: "https://api.openai.com/v1"
	Timeout time.Duration // default: 60s
}

// OutputConfig controls where artifacts are written.
type OutputConfig struct {
	RawDir     string // default: "raw"
	LeadsDir   string // default: "detailed_leads"
	ResultsDir string // default: "leads"
	XLSX       bool   // default: true
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting of the HTTP API.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 3
}

// CacheConfig controls the page record cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached page records. 0 disables it.
	MaxEntries int // default: 1000

	// MaxAge is how long a cached page record stays fresh.
	MaxAge time.Duration // default: 6h
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("LEADSCOUT_HOST", "0.0.0.0"),
			Port: envIntOr("LEADSCOUT_PORT", 8000),
			Mode: envOr("LEADSCOUT_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("LEADSCOUT_HEADLESS", false),
			Tabs:       envIntOr("LEADSCOUT_TABS", 5),
			ProfileDir: envOr("LEADSCOUT_PROFILE_DIR", "./chrome-profile"),
			BrowserBin: os.Getenv("LEADSCOUT_BROWSER_BIN"),
			Proxy:      os.Getenv("LEADSCOUT_PROXY"),
			NoSandbox:  envBoolOr("LEADSCOUT_NO_SANDBOX", false),
			BlockedResourceTypes: envSliceOr("LEADSCOUT_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
			BlockAds: envBoolOr("LEADSCOUT_BLOCK_ADS", true),
		},
		Search: SearchConfig{
			BaseURL:           envOr("LEADSCOUT_SEARCH_URL", "https://www.google.com/search"),
			NumResults:        envIntOr("LEADSCOUT_SEARCH_NUM", 20),
			NavigationTimeout: envDurationOr("LEADSCOUT_SEARCH_NAV_TIMEOUT", 30*time.Second),
			ResultsWait:       envDurationOr("LEADSCOUT_RESULTS_WAIT", 5*time.Second),
			RateLimitBackoff:  envDurationOr("LEADSCOUT_RATE_LIMIT_BACKOFF", 10*time.Second),
			PaceBase:          envDurationOr("LEADSCOUT_PACE_BASE", 3*time.Second),
			PaceJitter:        envDurationOr("LEADSCOUT_PACE_JITTER", 2*time.Second),
			PaceStep:          envDurationOr("LEADSCOUT_PACE_STEP", 150*time.Millisecond),
			PaceMax:           envDurationOr("LEADSCOUT_PACE_MAX", 8*time.Second),
			SessionRate:       envFloatOr("LEADSCOUT_SESSION_RATE", 0.5),
			SessionBurst:      envIntOr("LEADSCOUT_SESSION_BURST", 2),
		},
		Scrape: ScrapeConfig{
			NavigationTimeout: envDurationOr("LEADSCOUT_SCRAPE_NAV_TIMEOUT", 30*time.Second),
			ContentWait:       envDurationOr("LEADSCOUT_CONTENT_WAIT", 2*time.Second),
			MaxContentChars:   envIntOr("LEADSCOUT_MAX_CONTENT", 5000),
			MaxWebsites:       envIntOr("LEADSCOUT_MAX_WEBSITES", 5),
			HostFailureLimit:  envIntOr("LEADSCOUT_HOST_FAILURE_LIMIT", 2),
			HostMemoryTTL:     envDurationOr("LEADSCOUT_HOST_MEMORY_TTL", time.Hour),
		},
		Aggregate: AggregateConfig{
			MinScore:      envFloatOr("LEADSCOUT_MIN_SCORE", 6),
			FallbackFloor: envIntOr("LEADSCOUT_FALLBACK_FLOOR", 20),
			FallbackScore: envFloatOr("LEADSCOUT_FALLBACK_SCORE", 4),
			DefaultPlatforms: envSliceOr("LEADSCOUT_PLATFORMS", []string{
				"linkedin.com", "crunchbase.com", "clutch.co", "g2.com",
				"reddit.com", "angel.co", "producthunt.com", "indiehackers.com",
			}),
			ScoreMaxTokens: envIntOr("LEADSCOUT_SCORE_MAX_TOKENS", 1500),
		},
		Lead: LeadConfig{
			ProfileThreshold:      envFloatOr("LEADSCOUT_PROFILE_THRESHOLD", 7),
			MaxProfiles:           envIntOr("LEADSCOUT_MAX_PROFILES", 2),
			MaxPeople:             envIntOr("LEADSCOUT_MAX_PEOPLE", 3),
			ProfilePatterns:       envSliceOr("LEADSCOUT_PROFILE_PATTERNS", []string{"linkedin.com/in/"}),
			NearDuplicateDistance: envIntOr("LEADSCOUT_NEAR_DUP_DISTANCE", 3),
		},
		LLM: LLMConfig{
			APIKey:  envOr("LEADSCOUT_LLM_API_KEY", os.Getenv("OPENAI_API_KEY")),
			Model:   envOr("LEADSCOUT_LLM_MODEL", "gpt-4o-mini"),
			BaseURL: envOr("LEADSCOUT_LLM_BASE_URL", "https://api.openai.com/v1"),
			Timeout: envDurationOr("LEADSCOUT_LLM_TIMEOUT", 60*time.Second),
		},
		Output: OutputConfig{
			RawDir:     envOr("LEADSCOUT_RAW_DIR", "raw"),
			LeadsDir:   envOr("LEADSCOUT_LEADS_DIR", "detailed_leads"),
			ResultsDir: envOr("LEADSCOUT_RESULTS_DIR", "leads"),
			XLSX:       envBoolOr("LEADSCOUT_XLSX", true),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("LEADSCOUT_AUTH_ENABLED", true),
			APIKeys: envSliceOr("LEADSCOUT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("LEADSCOUT_RATE_RPS", 1.0),
			Burst:             envIntOr("LEADSCOUT_RATE_BURST", 3),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("LEADSCOUT_CACHE_MAX_ENTRIES", 1000),
			MaxAge:     envDurationOr("LEADSCOUT_CACHE_MAX_AGE", 6*time.Hour),
		},
		Log: LogConfig{
			Level:  envOr("LEADSCOUT_LOG_LEVEL", "info"),
			Format: envOr("LEADSCOUT_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
