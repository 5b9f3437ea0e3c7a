package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

// TestNewConfig documents the defaults. A failing case means a default
// changed and the change should be intentional.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{name: "StartURL", got: cfg.StartURL, want: "https://books.toscrape.com/"},
		{name: "MinRecords", got: cfg.MinRecords, want: 500},
		{name: "Delay", got: cfg.Delay, want: time.Second},
		{name: "MaxRetries", got: cfg.MaxRetries, want: 3},
		{name: "Backoff", got: cfg.Backoff, want: 2 * time.Second},
		{name: "Timeout", got: cfg.Timeout, want: 10 * time.Second},
		{name: "MaxPages", got: cfg.MaxPages, want: 0},
		{name: "CSVFile", got: cfg.CSVFile, want: "books_data.csv"},
		{name: "JSONFile", got: cfg.JSONFile, want: "books_data.json"},
		{name: "MarkdownFile", got: cfg.MarkdownFile, want: ""},
		{name: "SaveToDB", got: cfg.SaveToDB, want: true},
		{name: "RespectRobots", got: cfg.RespectRobots, want: true},
		{name: "MaxBodySize", got: cfg.MaxBodySize, want: int64(5 * 1024 * 1024)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, tt.got)
			}
		})
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{name: "relative start URL", modify: func(c *Config) { c.StartURL = "/catalogue/page-1.html" }, wantErr: ErrInvalidStartURL},
		{name: "ftp start URL", modify: func(c *Config) { c.StartURL = "ftp://books.toscrape.com/" }, wantErr: ErrInvalidStartURL},
		{name: "zero min records", modify: func(c *Config) { c.MinRecords = 0 }, wantErr: ErrInvalidMinRecords},
		{name: "negative delay", modify: func(c *Config) { c.Delay = -time.Second }, wantErr: ErrInvalidDelay},
		{name: "zero retries", modify: func(c *Config) { c.MaxRetries = 0 }, wantErr: ErrInvalidMaxRetries},
		{name: "negative backoff", modify: func(c *Config) { c.Backoff = -1 }, wantErr: ErrInvalidBackoff},
		{name: "zero timeout", modify: func(c *Config) { c.Timeout = 0 }, wantErr: ErrInvalidTimeout},
		{name: "blank user agent", modify: func(c *Config) { c.UserAgent = "  " }, wantErr: ErrEmptyUserAgent},
		{name: "negative max pages", modify: func(c *Config) { c.MaxPages = -1 }, wantErr: ErrInvalidMaxPages},
		{name: "no csv file", modify: func(c *Config) { c.CSVFile = "" }, wantErr: ErrNoOutputFile},
		{name: "zero body size", modify: func(c *Config) { c.MaxBodySize = 0 }, wantErr: ErrInvalidMaxBodySize},
		{name: "db without dir", modify: func(c *Config) { c.DBDir = "" }, wantErr: ErrNoDBDir},
		{name: "db disabled without dir", modify: func(c *Config) { c.SaveToDB = false; c.DBDir = "" }, wantErr: nil},
		{name: "zero delay allowed", modify: func(c *Config) { c.Delay = 0 }, wantErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			cfg.DBDir = "/tmp/bookharvest-test"
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigOutputPath(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.OutputDir = "out"

	if got := cfg.OutputPath("books.csv"); got != filepath.Join("out", "books.csv") {
		t.Errorf("expected out/books.csv, got %q", got)
	}
	abs := filepath.Join(t.TempDir(), "books.json")
	if got := cfg.OutputPath(abs); got != abs {
		t.Errorf("expected absolute path to be kept, got %q", got)
	}
	if got := cfg.OutputPath(""); got != "" {
		t.Errorf("expected empty path, got %q", got)
	}
}

func TestDurationUnmarshalYAML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{input: "d: 1", want: time.Second},
		{input: "d: 0.5", want: 500 * time.Millisecond},
		{input: "d: 1500ms", want: 1500 * time.Millisecond},
		{input: `d: "2s"`, want: 2 * time.Second},
		{input: "d: soon", wantErr: true},
		{input: "d: [1, 2]", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			var v struct {
				D Duration `yaml:"d"`
			}
			err := yaml.Unmarshal([]byte(tt.input), &v)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", v.D.Std())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.D.Std() != tt.want {
				t.Errorf("expected %v, got %v", tt.want, v.D.Std())
			}
		})
	}
}

func TestFileGetSiteConfig(t *testing.T) {
	t.Parallel()

	cf := &File{
		SiteConfig: SiteConfig{
			Cookie:  "global=1",
			Headers: map[string]string{"X-Global": "g", "X-Shared": "global"},
		},
		Sites: map[string]SiteConfig{
			"books.toscrape.com": {
				Cookie:  "session=abc",
				Headers: map[string]string{"X-Shared": "site"},
			},
		},
	}

	t.Run("site overrides merge over top level", func(t *testing.T) {
		t.Parallel()

		got := cf.GetSiteConfig("books.toscrape.com")
		if got.Cookie != "session=abc" {
			t.Errorf("expected site cookie, got %q", got.Cookie)
		}
		if got.Headers["X-Global"] != "g" || got.Headers["X-Shared"] != "site" {
			t.Errorf("unexpected headers %v", got.Headers)
		}
	})

	t.Run("unknown host gets top level only", func(t *testing.T) {
		t.Parallel()

		got := cf.GetSiteConfig("other.example")
		if got.Cookie != "global=1" || got.Headers["X-Shared"] != "global" {
			t.Errorf("unexpected config %+v", got)
		}
	})

	t.Run("does not mutate top level headers", func(t *testing.T) {
		t.Parallel()

		_ = cf.GetSiteConfig("books.toscrape.com")
		if cf.Headers["X-Shared"] != "global" {
			t.Errorf("top level headers were modified: %v", cf.Headers)
		}
	})
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.bookharvest")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads and applies valid YAML config", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), DefaultConfigFile)
		content := `startUrl: https://books.toscrape.com/catalogue/page-1.html
minRecords: 100
delay: 0
maxRetries: 5
backoff: 1.5
timeout: 30s
maxPages: 10
outputDir: exports
markdownFile: summary.md
saveToDB: false
respectRobots: false
proxy: 127.0.0.1:1080
cookie: "global=1"
headers:
  X-Request-Source: bookharvest
sites:
  books.toscrape.com:
    cookie: "session=xyz"
    headers:
      Authorization: "Bearer token"
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		file, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cfg := NewConfig()
		file.ApplyTo(cfg)

		if cfg.StartURL != "https://books.toscrape.com/catalogue/page-1.html" {
			t.Errorf("unexpected start URL %q", cfg.StartURL)
		}
		if cfg.MinRecords != 100 || cfg.MaxRetries != 5 || cfg.MaxPages != 10 {
			t.Errorf("unexpected numbers: %d %d %d", cfg.MinRecords, cfg.MaxRetries, cfg.MaxPages)
		}
		if cfg.Delay != 0 {
			t.Errorf("expected explicit zero delay, got %v", cfg.Delay)
		}
		if cfg.Backoff != 1500*time.Millisecond || cfg.Timeout != 30*time.Second {
			t.Errorf("unexpected durations: %v %v", cfg.Backoff, cfg.Timeout)
		}
		if cfg.SaveToDB || cfg.RespectRobots {
			t.Error("expected saveToDB and respectRobots to be disabled")
		}
		if cfg.ProxyAddress != "127.0.0.1:1080" {
			t.Errorf("unexpected proxy %q", cfg.ProxyAddress)
		}
		if cfg.OutputPath(cfg.MarkdownFile) != filepath.Join("exports", "summary.md") {
			t.Errorf("unexpected markdown path %q", cfg.OutputPath(cfg.MarkdownFile))
		}
		if cfg.Cookie != "session=xyz" {
			t.Errorf("expected site cookie, got %q", cfg.Cookie)
		}
		if cfg.Headers["Authorization"] != "Bearer token" || cfg.Headers["X-Request-Source"] != "bookharvest" {
			t.Errorf("unexpected headers %v", cfg.Headers)
		}
		if cfg.CSVFile != DefaultCSVFile {
			t.Errorf("unset values should keep defaults, got %q", cfg.CSVFile)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("initializes nil Sites map", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(configPath, []byte("minRecords: 20\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Sites == nil {
			t.Error("expected Sites map to be initialized")
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("minRecords: 1\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if got := FindConfigFile(configPath); got != configPath {
			t.Errorf("expected %q, got %q", configPath, got)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile("/nonexistent/path/config.yaml"); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})
}

func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if filepath.Base(XDGDataDir()) != AppName {
		t.Errorf("expected data dir to end in %q, got %q", AppName, XDGDataDir())
	}
	if filepath.Base(XDGConfigDir()) != AppName {
		t.Errorf("expected config dir to end in %q, got %q", AppName, XDGConfigDir())
	}
}

func TestConfigHost(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.StartURL = "https://Books.ToScrape.com:8443/catalogue/page-1.html"
	if got := cfg.Host(); got != "books.toscrape.com" {
		t.Errorf("expected books.toscrape.com, got %q", got)
	}
}
