// Package config provides the configuration of a crawl run: defaults, the
// optional .bookharvest YAML file and validation.
//
// Precedence is defaults, then the configuration file, then CLI flags that
// were set explicitly.
package config
