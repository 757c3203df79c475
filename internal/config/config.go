package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"calscan/internal/extract"
)

// Source kinds. An empty kind is sniffed from the response.
const (
	KindImage = "image"
	KindText  = "text"
	KindPage  = "page"
)

// DefaultRefresh re-reads configured sources four times a day.
const DefaultRefresh = "0 */6 * * *"

// SourceConfig is a calendar document re-extracted on a schedule.
type SourceConfig struct {
	// ID is used in URLs and as the cache key.
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
	// Kind is "image", "text", "page" (rendered in Chromium) or empty to
	// decide from the response.
	Kind string `yaml:"kind,omitempty" json:"kind,omitempty"`
	// Mode is "listing", "grid" or "bulk".
	Mode string `yaml:"mode" json:"mode"`
	// AcademicYearStart overrides the top-level value for this source.
	AcademicYearStart int `yaml:"academic_year_start,omitempty" json:"academic_year_start,omitempty"`
	// Year and Month name the month shown by grid and bulk sources.
	Year  int `yaml:"year,omitempty" json:"year,omitempty"`
	Month int `yaml:"month,omitempty" json:"month,omitempty"`
	// WaitSelector is the CSS selector awaited for page sources.
	WaitSelector string `yaml:"wait_selector,omitempty" json:"wait_selector,omitempty"`
	// Refresh is a cron schedule string (e.g. "0 */6 * * *").
	Refresh string `yaml:"refresh" json:"refresh"`
}

// GridConfig tunes month-grid extraction.
type GridConfig struct {
	Cols    int `yaml:"cols" json:"cols"`
	Rows    int `yaml:"rows" json:"rows"`
	Padding int `yaml:"padding" json:"padding"`
	// Workers bounds concurrent cell OCR calls.
	Workers int `yaml:"workers" json:"workers"`
	// WeekStart is "sunday" (default) or "monday".
	WeekStart string `yaml:"week_start" json:"week_start"`
}

// OCRConfig configures the Tesseract engine.
type OCRConfig struct {
	Languages     []string `yaml:"languages" json:"languages"`
	DPI           int      `yaml:"dpi" json:"dpi"`
	MinConfidence float64  `yaml:"min_confidence" json:"min_confidence"`
}

// StorageConfig locates the run database and the fetch cache.
type StorageConfig struct {
	Path     string `yaml:"path" json:"path"`
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
}

// GoogleConfig enables pushing events to Google Calendar.
type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
	CalendarID      string `yaml:"calendar_id" json:"calendar_id"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone timed events are anchored in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is "debug", "info" or "error".
	LogLevel string `yaml:"log_level" json:"log_level"`

	// AcademicYearStart is the calendar year in which the school year
	// begins (its August).
	AcademicYearStart int `yaml:"academic_year_start" json:"academic_year_start"`

	Grid    GridConfig    `yaml:"grid" json:"grid"`
	OCR     OCRConfig     `yaml:"ocr" json:"ocr"`
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Holidays are tried before the built-in rules.
	Holidays []extract.HolidayRule `yaml:"holidays,omitempty" json:"holidays,omitempty"`

	// Substitutions run after the built-in OCR repairs.
	Substitutions []extract.Substitution `yaml:"substitutions,omitempty" json:"substitutions,omitempty"`

	Sources []SourceConfig `yaml:"sources" json:"sources"`

	// Google, if non-nil, enables calendar sync.
	Google *GoogleConfig `yaml:"google,omitempty" json:"google,omitempty"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// CurrentAcademicYear is the start year of the school year containing now.
func CurrentAcademicYear(now time.Time) int {
	if now.Month() >= time.August {
		return now.Year()
	}
	return now.Year() - 1
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:            "127.0.0.1:8080",
		Timezone:          "America/Chicago",
		LogLevel:          "info",
		AcademicYearStart: CurrentAcademicYear(time.Now()),
		Grid: GridConfig{
			Cols:      7,
			Rows:      6,
			Padding:   5,
			Workers:   4,
			WeekStart: "sunday",
		},
		OCR: OCRConfig{
			Languages:     []string{"eng"},
			DPI:           300,
			MinConfidence: 0.3,
		},
		Storage: StorageConfig{
			Path:     "/var/lib/calscan/calscan.db",
			CacheDir: "/var/lib/calscan/cache",
		},
		Sources: []SourceConfig{},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.AcademicYearStart <= 0 {
		c.AcademicYearStart = def.AcademicYearStart
	}

	if c.Grid.Cols <= 0 {
		c.Grid.Cols = def.Grid.Cols
	}
	if c.Grid.Rows <= 0 {
		c.Grid.Rows = def.Grid.Rows
	}
	if c.Grid.Padding < 0 {
		c.Grid.Padding = 0
	}
	if c.Grid.Workers <= 0 {
		c.Grid.Workers = def.Grid.Workers
	}
	switch strings.ToLower(c.Grid.WeekStart) {
	case "monday":
		c.Grid.WeekStart = "monday"
	default:
		c.Grid.WeekStart = "sunday"
	}

	if len(c.OCR.Languages) == 0 {
		c.OCR.Languages = def.OCR.Languages
	}
	if c.OCR.DPI <= 0 {
		c.OCR.DPI = def.OCR.DPI
	}
	if c.OCR.MinConfidence <= 0 || c.OCR.MinConfidence > 1 {
		c.OCR.MinConfidence = def.OCR.MinConfidence
	}

	if c.Storage.Path == "" {
		c.Storage.Path = def.Storage.Path
	}
	if c.Storage.CacheDir == "" {
		c.Storage.CacheDir = filepath.Join(filepath.Dir(c.Storage.Path), "cache")
	}

	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
	for i := range c.Sources {
		s := &c.Sources[i]
		if s.ID == "" {
			s.ID = fmt.Sprintf("source-%d", i+1)
		}
		if s.Name == "" {
			s.Name = s.ID
		}
		if s.Mode == "" {
			s.Mode = "listing"
		}
		s.Kind = strings.ToLower(s.Kind)
		if s.Refresh == "" {
			s.Refresh = DefaultRefresh
		}
	}
	if c.Google != nil && c.Google.CalendarID == "" {
		c.Google.CalendarID = "primary"
	}
}

// Validate reports settings Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Sources))
	for _, s := range c.Sources {
		if s.URL == "" {
			return fmt.Errorf("config: source %q has no url", s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("config: duplicate source id %q", s.ID)
		}
		seen[s.ID] = true
		switch s.Kind {
		case "", KindImage, KindText, KindPage:
		default:
			return fmt.Errorf("config: source %q: unknown kind %q", s.ID, s.Kind)
		}
		if s.Month < 0 || s.Month > 12 {
			return fmt.Errorf("config: source %q: month %d out of range", s.ID, s.Month)
		}
	}
	if _, err := c.ListingOptions(); err != nil {
		return err
	}
	return nil
}

// Location loads the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// WeekStart returns the weekday of the grid's first column.
func (c *Config) WeekStart() time.Weekday {
	if c.Grid.WeekStart == "monday" {
		return time.Monday
	}
	return time.Sunday
}

// Source returns the source with the given id.
func (c *Config) Source(id string) (SourceConfig, bool) {
	for _, s := range c.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return SourceConfig{}, false
}

// ListingOptions builds listing-parser options from the holiday and
// substitution tables: configured holidays take precedence over the
// built-in rules and configured substitutions run after the built-in ones.
func (c *Config) ListingOptions() ([]extract.ListingOption, error) {
	var opts []extract.ListingOption
	if len(c.Holidays) > 0 {
		rules := make([]extract.HolidayRule, 0, len(c.Holidays)+len(extract.DefaultHolidayRules))
		rules = append(rules, c.Holidays...)
		rules = append(rules, extract.DefaultHolidayRules...)
		opts = append(opts, extract.WithHolidayRules(rules))
	}
	if len(c.Substitutions) > 0 {
		subs := make([]extract.Substitution, 0, len(extract.DefaultSubstitutions)+len(c.Substitutions))
		subs = append(subs, extract.DefaultSubstitutions...)
		subs = append(subs, c.Substitutions...)
		rw, err := extract.CompileSubstitutions(subs)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		opts = append(opts, extract.WithRewriter(rw))
	}
	return opts, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg atomically (temp file + rename) with 0600 permissions,
// creating the parent directory (0700) when needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".calscan-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
