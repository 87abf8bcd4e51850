package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port     string
	LogLevel string

	// Pathstore export
	PathstoreURL    string
	PathstoreAPIKey string
	ExportEnabled   bool

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// Build options, optionally overridden by a YAML file.
	BuildConfigFile string
	Build           BuildOptions
}

// BuildOptions tunes one document build. Class names use the detector's
// labels ("table_title", "picture", ...).
type BuildOptions struct {
	Strategy           string            `yaml:"strategy"`
	TitleClass         string            `yaml:"title_class"`
	SectionFontSize    float64           `yaml:"section_font_size"`
	SubsectionFontSize float64           `yaml:"subsection_font_size"`
	Clusters           int               `yaml:"clusters"`
	TocMatchThreshold  int               `yaml:"toc_match_threshold"`
	MaxPageDiff        int               `yaml:"max_page_diff"`
	MaxBoxes           int               `yaml:"max_boxes"`
	Captions           map[string]string `yaml:"captions"`      // caption class -> target class
	TitleSources       map[string]string `yaml:"title_sources"` // class -> reference type
	MaxChunkSize       int               `yaml:"max_chunk_size"`
	OverlapBoxes       int               `yaml:"overlap_boxes"`
	ImageWeight        int               `yaml:"image_weight"`
	ExcludeClasses     []string          `yaml:"exclude_classes"`
	MinScore           float64           `yaml:"min_score"`
}

// DefaultBuildOptions returns the build defaults. Nil maps mean the built-in
// caption and title-source tables.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		Strategy:           "auto",
		TitleClass:         "title",
		SectionFontSize:    16,
		SubsectionFontSize: 14,
		TocMatchThreshold:  80,
		MaxPageDiff:        1,
		MaxBoxes:           5,
		MaxChunkSize:       2000,
		OverlapBoxes:       1,
		ImageWeight:        100,
	}
}

func Load() Config {
	def := DefaultBuildOptions()
	cfg := Config{
		Port:     envOr("PORT", "8090"),
		LogLevel: envOr("LOG_LEVEL", "info"),

		PathstoreURL:    envOr("PATHSTORE_URL", "http://localhost:8080"),
		PathstoreAPIKey: os.Getenv("PATHSTORE_API_KEY"),
		ExportEnabled:   envBool("EXPORT_ENABLED", true),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		BuildConfigFile: os.Getenv("BUILD_CONFIG_FILE"),
		Build: BuildOptions{
			Strategy:           envOr("HIERARCHY_STRATEGY", def.Strategy),
			TitleClass:         def.TitleClass,
			SectionFontSize:    envFloat("SECTION_FONT_SIZE", def.SectionFontSize),
			SubsectionFontSize: envFloat("SUBSECTION_FONT_SIZE", def.SubsectionFontSize),
			TocMatchThreshold:  envInt("TOC_MATCH_THRESHOLD", def.TocMatchThreshold),
			MaxPageDiff:        envInt("MAX_PAGE_DIFF", def.MaxPageDiff),
			MaxBoxes:           envInt("MAX_BOXES", def.MaxBoxes),
			MaxChunkSize:       envInt("MAX_CHUNK_SIZE", def.MaxChunkSize),
			OverlapBoxes:       envInt("OVERLAP_BOXES", def.OverlapBoxes),
			ImageWeight:        envInt("IMAGE_WEIGHT", def.ImageWeight),
		},
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	cfg.Build.applyDefaults()

	return cfg
}

// applyDefaults replaces non-positive values. OverlapBoxes and MaxPageDiff
// may be zero.
func (b *BuildOptions) applyDefaults() {
	def := DefaultBuildOptions()
	if b.Strategy == "" {
		b.Strategy = def.Strategy
	}
	if b.TitleClass == "" {
		b.TitleClass = def.TitleClass
	}
	if b.SectionFontSize <= 0 {
		b.SectionFontSize = def.SectionFontSize
	}
	if b.SubsectionFontSize <= 0 {
		b.SubsectionFontSize = def.SubsectionFontSize
	}
	if b.TocMatchThreshold <= 0 {
		b.TocMatchThreshold = def.TocMatchThreshold
	}
	if b.MaxPageDiff < 0 {
		b.MaxPageDiff = def.MaxPageDiff
	}
	if b.MaxBoxes <= 0 {
		b.MaxBoxes = def.MaxBoxes
	}
	if b.MaxChunkSize <= 0 {
		b.MaxChunkSize = def.MaxChunkSize
	}
	if b.OverlapBoxes < 0 {
		b.OverlapBoxes = def.OverlapBoxes
	}
	if b.ImageWeight <= 0 {
		b.ImageWeight = def.ImageWeight
	}
}

// LoadBuildFile overlays the YAML file at path onto the build options. Keys
// missing from the file keep their current values.
func (c *Config) LoadBuildFile(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read build config: %w", err)
	}
	b := c.Build
	if err := yaml.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("parse build config %s: %w", path, err)
	}
	b.applyDefaults()
	c.Build = b
	return nil
}

func (c Config) Validate() error {
	if c.ExportEnabled && c.PathstoreAPIKey == "" {
		return fmt.Errorf("PATHSTORE_API_KEY is required when export is enabled")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return c.Build.Validate()
}

// Validate checks option ranges that defaults cannot repair.
func (b BuildOptions) Validate() error {
	switch b.Strategy {
	case "auto", "fixed", "dynamic", "toc":
	default:
		return fmt.Errorf("unknown hierarchy strategy %q", b.Strategy)
	}
	if b.SectionFontSize <= b.SubsectionFontSize {
		return fmt.Errorf("section font size %.1f must exceed subsection font size %.1f",
			b.SectionFontSize, b.SubsectionFontSize)
	}
	if b.TocMatchThreshold > 100 {
		return fmt.Errorf("toc match threshold %d out of range 0..100", b.TocMatchThreshold)
	}
	if b.Clusters < 0 {
		return fmt.Errorf("clusters must not be negative")
	}
	return nil
}

// ParseLogLevel maps LOG_LEVEL to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return l, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
