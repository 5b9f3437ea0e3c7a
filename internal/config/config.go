package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultStartURL is the first catalog page.
	DefaultStartURL = "https://books.toscrape.com/"

	// DefaultMinRecords is the number of records after which the crawl stops.
	DefaultMinRecords = 500

	// DefaultDelay is the minimum time between two requests.
	DefaultDelay = 1 * time.Second

	// DefaultMaxRetries is the number of network attempts per page.
	DefaultMaxRetries = 3

	// DefaultBackoff is the back-off unit. Attempt n is followed by n*unit.
	DefaultBackoff = 2 * time.Second

	// DefaultTimeout bounds a single request including the body read.
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent identifies the harvester in requests and is the agent
	// name matched against robots.txt groups.
	DefaultUserAgent = "bookharvest/1.0 (+https://github.com/nao1215/bookharvest)"

	// DefaultMaxPages of zero means no page cap.
	DefaultMaxPages = 0

	// DefaultOutputDir is where export files are written.
	DefaultOutputDir = "."

	// DefaultCSVFile is the CSV export file name.
	DefaultCSVFile = "books_data.csv"

	// DefaultJSONFile is the JSON export file name.
	DefaultJSONFile = "books_data.json"

	// DefaultMaxBodySize limits the decoded size of a page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// AppName is the application name used for XDG directory paths.
	AppName = "bookharvest"
)

// Config holds every option of a crawl run.
// It is built from defaults, then the configuration file, then CLI flags,
// and passed down explicitly rather than kept in global state.
type Config struct {
	// StartURL is the first catalog page. Must be an absolute http(s) URL.
	StartURL string

	// MinRecords stops the crawl once this many records were collected.
	MinRecords int

	// Delay is the minimum time between two requests. Zero disables it.
	// A larger robots.txt Crawl-delay takes precedence.
	Delay time.Duration

	// MaxRetries is the number of network attempts per page.
	MaxRetries int

	// Backoff is the linear back-off unit between attempts.
	Backoff time.Duration

	// Timeout bounds a single request.
	Timeout time.Duration

	// UserAgent is sent with every request and matched against robots.txt.
	UserAgent string

	// MaxPages caps the number of pages fetched. Zero means no cap.
	MaxPages int

	// OutputDir is the directory relative export paths are placed in.
	OutputDir string

	// CSVFile and JSONFile are the export file names.
	CSVFile  string
	JSONFile string

	// MarkdownFile enables the Markdown summary when non-empty.
	MarkdownFile string

	// SaveToDB stores the run in the history database.
	SaveToDB bool

	// DBDir is the directory of the history database.
	// Defaults to the XDG data directory (~/.local/share/bookharvest on Linux).
	DBDir string

	// RespectRobots enables robots.txt evaluation.
	RespectRobots bool

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" form.
	ProxyAddress string

	// Headers are extra request headers.
	Headers map[string]string

	// Cookie is sent as the Cookie header when set.
	Cookie string

	// MaxBodySize is the maximum decoded page size in bytes.
	MaxBodySize int64

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the configuration file that was loaded, if any.
	ConfigFilePath string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		StartURL:      DefaultStartURL,
		MinRecords:    DefaultMinRecords,
		Delay:         DefaultDelay,
		MaxRetries:    DefaultMaxRetries,
		Backoff:       DefaultBackoff,
		Timeout:       DefaultTimeout,
		UserAgent:     DefaultUserAgent,
		MaxPages:      DefaultMaxPages,
		OutputDir:     DefaultOutputDir,
		CSVFile:       DefaultCSVFile,
		JSONFile:      DefaultJSONFile,
		SaveToDB:      true,
		DBDir:         XDGDataDir(),
		RespectRobots: true,
		MaxBodySize:   DefaultMaxBodySize,
	}
}

// XDGDataDir returns the XDG data directory for bookharvest.
// On Linux: ~/.local/share/bookharvest
// On macOS: ~/Library/Application Support/bookharvest
// On Windows: %LOCALAPPDATA%\bookharvest
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for bookharvest.
// On Linux: ~/.config/bookharvest
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// OutputPath places name inside OutputDir unless it is absolute.
// An empty name returns an empty path.
func (c *Config) OutputPath(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.OutputDir, name)
}

// Host returns the lower-cased host of StartURL, used to select site settings.
func (c *Config) Host() string {
	return hostOf(c.StartURL)
}

// Validate checks if the configuration is valid.
// It returns the first problem found, wrapping one of the sentinel errors.
func (c *Config) Validate() error {
	u, err := url.Parse(strings.TrimSpace(c.StartURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidStartURL, c.StartURL)
	}

	if c.MinRecords <= 0 {
		return ErrInvalidMinRecords
	}

	if c.Delay < 0 {
		return ErrInvalidDelay
	}

	if c.MaxRetries <= 0 {
		return ErrInvalidMaxRetries
	}

	if c.Backoff < 0 {
		return ErrInvalidBackoff
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if strings.TrimSpace(c.UserAgent) == "" {
		return ErrEmptyUserAgent
	}

	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}

	if c.CSVFile == "" || c.JSONFile == "" {
		return ErrNoOutputFile
	}

	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}

	if c.SaveToDB && c.DBDir == "" {
		return ErrNoDBDir
	}

	return nil
}
