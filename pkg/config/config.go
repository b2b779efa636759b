// Package config loads tabcat client configuration from a YAML file
// plus environment overrides.
//
// There is deliberately no import-time global: env vars and the working
// directory can change during runtime, so configuration is captured
// explicitly, once, by the caller, and passed down as a value.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tabletools/tabcat/pkg/walden"
	"github.com/tabletools/tabcat/tcapi"
)

// Environment variables recognized by WithEnv. Each overrides the
// corresponding file setting.
const (
	EnvCacheRoot  = "TABCAT_CACHE_ROOT"
	EnvBaseURI    = "TABCAT_BASE_URI"
	EnvChannels   = "TABCAT_CHANNELS" // comma-separated
	EnvS3Bucket   = "TABCAT_S3_BUCKET"
	EnvS3Region   = "TABCAT_S3_REGION"
	EnvS3Endpoint = "TABCAT_S3_ENDPOINT"
)

// S3 holds the object-storage side of the configuration, used for
// private table payloads and for publishing.
type S3 struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"` // empty means the provider default
}

// Config is everything the tabcat client and CLI need to run.
type Config struct {
	// CacheRoot is where fetched artifacts are kept between runs.
	CacheRoot string `yaml:"cache_root"`
	// BaseURI is the catalog to read: a local directory path or an
	// http(s) URL.
	BaseURI string `yaml:"base_uri"`
	// Channels to load; empty means the client default.
	Channels []tcapi.Channel `yaml:"channels"`

	S3 S3 `yaml:"s3"`
}

// Default returns the configuration used when no file and no env vars
// say otherwise.
func Default() Config {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	return Config{
		CacheRoot: filepath.Join(cacheDir, "tabcat"),
	}
}

// DefaultPath returns the conventional config file location,
// or "" when the user config dir cannot be determined.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tabcat", "config.yaml")
}

// Load reads a YAML config file over the defaults. A missing file is
// fine when path is the default location; a path the caller named
// explicitly must exist.
//
// Errors:
//
//    - tabcat-error-not-found -- when an explicitly named file does not exist
//    - tabcat-error-io -- when reading fails
//    - tabcat-error-serialization -- when the YAML is malformed
func Load(path string, explicit bool) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if explicit {
				return Config{}, tcapi.ErrorNotFound("config file", path)
			}
			return cfg, nil
		}
		return Config{}, tcapi.ErrorIo("reading config file", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, tcapi.ErrorSerialization("parsing config file "+path, err)
	}
	return cfg, nil
}

// WithEnv returns a copy of the config with any recognized environment
// variables applied on top. lookup is usually os.LookupEnv; tests pass
// their own.
func (c Config) WithEnv(lookup func(string) (string, bool)) Config {
	if v, ok := lookup(EnvCacheRoot); ok {
		c.CacheRoot = v
	}
	if v, ok := lookup(EnvBaseURI); ok {
		c.BaseURI = v
	}
	if v, ok := lookup(EnvChannels); ok {
		var chs []tcapi.Channel
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				chs = append(chs, tcapi.Channel(part))
			}
		}
		c.Channels = chs
	}
	if v, ok := lookup(EnvS3Bucket); ok {
		c.S3.Bucket = v
	}
	if v, ok := lookup(EnvS3Region); ok {
		c.S3.Region = v
	}
	if v, ok := lookup(EnvS3Endpoint); ok {
		c.S3.Endpoint = v
	}
	return c
}

// Walden maps the config onto the artifact store's own configuration.
func (c Config) Walden() walden.Config {
	return walden.Config{
		CacheRoot: c.CacheRoot,
		Bucket:    c.S3.Bucket,
		Region:    c.S3.Region,
		Endpoint:  c.S3.Endpoint,
	}
}

// Remote reports whether BaseURI points at a catalog served over HTTP
// rather than a local directory.
func (c Config) Remote() bool {
	return strings.HasPrefix(c.BaseURI, "http://") || strings.HasPrefix(c.BaseURI, "https://")
}
