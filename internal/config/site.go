package config

import "maps"

// SiteConfig holds request settings for one host.
type SiteConfig struct {
	// Cookie is an HTTP cookie to send to this host.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this host.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// File represents the structure of the .bookharvest configuration file.
// Zero values leave the corresponding Config field untouched.
type File struct {
	StartURL      string    `yaml:"startUrl,omitempty"`
	MinRecords    int       `yaml:"minRecords,omitempty"`
	Delay         *Duration `yaml:"delay,omitempty"`
	MaxRetries    int       `yaml:"maxRetries,omitempty"`
	Backoff       *Duration `yaml:"backoff,omitempty"`
	Timeout       Duration  `yaml:"timeout,omitempty"`
	UserAgent     string    `yaml:"userAgent,omitempty"`
	MaxPages      int       `yaml:"maxPages,omitempty"`
	OutputDir     string    `yaml:"outputDir,omitempty"`
	CSVFile       string    `yaml:"csvFile,omitempty"`
	JSONFile      string    `yaml:"jsonFile,omitempty"`
	MarkdownFile  string    `yaml:"markdownFile,omitempty"`
	SaveToDB      *bool     `yaml:"saveToDB,omitempty"`
	DBDir         string    `yaml:"dbDir,omitempty"`
	RespectRobots *bool     `yaml:"respectRobots,omitempty"`
	Proxy         string    `yaml:"proxy,omitempty"`
	MaxBodySize   int64     `yaml:"maxBodySize,omitempty"`

	// SiteConfig holds the cookie and headers sent to every host.
	SiteConfig `yaml:",inline"`

	// Sites maps host names to host-specific settings that override the
	// top-level cookie and headers.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`
}

// GetSiteConfig returns the request settings for host.
// It merges the host-specific configuration over the top-level one.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := SiteConfig{Cookie: cf.Cookie}
	if len(cf.Headers) > 0 {
		result.Headers = maps.Clone(cf.Headers)
	}

	if site, ok := cf.Sites[host]; ok {
		if site.Cookie != "" {
			result.Cookie = site.Cookie
		}
		if len(site.Headers) > 0 {
			if result.Headers == nil {
				result.Headers = make(map[string]string, len(site.Headers))
			}
			maps.Copy(result.Headers, site.Headers)
		}
	}

	return result
}

// ApplyTo copies every value set in the file onto c.
// Cookie and headers are resolved for the host of the resulting start URL.
func (cf *File) ApplyTo(c *Config) {
	if cf.StartURL != "" {
		c.StartURL = cf.StartURL
	}
	if cf.MinRecords != 0 {
		c.MinRecords = cf.MinRecords
	}
	if cf.Delay != nil {
		c.Delay = cf.Delay.Std()
	}
	if cf.MaxRetries != 0 {
		c.MaxRetries = cf.MaxRetries
	}
	if cf.Backoff != nil {
		c.Backoff = cf.Backoff.Std()
	}
	if cf.Timeout != 0 {
		c.Timeout = cf.Timeout.Std()
	}
	if cf.UserAgent != "" {
		c.UserAgent = cf.UserAgent
	}
	if cf.MaxPages != 0 {
		c.MaxPages = cf.MaxPages
	}
	if cf.OutputDir != "" {
		c.OutputDir = cf.OutputDir
	}
	if cf.CSVFile != "" {
		c.CSVFile = cf.CSVFile
	}
	if cf.JSONFile != "" {
		c.JSONFile = cf.JSONFile
	}
	if cf.MarkdownFile != "" {
		c.MarkdownFile = cf.MarkdownFile
	}
	if cf.SaveToDB != nil {
		c.SaveToDB = *cf.SaveToDB
	}
	if cf.DBDir != "" {
		c.DBDir = cf.DBDir
	}
	if cf.RespectRobots != nil {
		c.RespectRobots = *cf.RespectRobots
	}
	if cf.Proxy != "" {
		c.ProxyAddress = cf.Proxy
	}
	if cf.MaxBodySize != 0 {
		c.MaxBodySize = cf.MaxBodySize
	}

	site := cf.GetSiteConfig(c.Host())
	if site.Cookie != "" {
		c.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		c.Headers = site.Headers
	}
}
