package healthcheck

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/serum-errors/go-serum"

	"github.com/tabletools/tabcat/pkg/config"
	"github.com/tabletools/tabcat/pkg/index"
)

// ConfigCheck verifies the config file parses.
type ConfigCheck struct {
	Path     string // empty means the default location
	Explicit bool
}

func (c *ConfigCheck) String() string {
	path := c.Path
	if path == "" {
		path = config.DefaultPath()
	}
	return fmt.Sprintf("Config file: %q", path)
}

// Run loads the config file.
// Errors:
//
//    - tabcat-healthcheck-run-okay -- when the config loads
//    - tabcat-healthcheck-run-ambiguous -- when no config file exists
//    - tabcat-healthcheck-run-fail -- when the config file is unreadable or malformed
func (c *ConfigCheck) Run(ctx context.Context) error {
	path := c.Path
	if path == "" {
		path = config.DefaultPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) && !c.Explicit {
		return serum.Errorf(CodeRunAmbiguous, "no config file; running on defaults and environment")
	}
	cfg, err := config.Load(path, c.Explicit)
	if err != nil {
		return serum.Error(CodeRunFailure, serum.WithCause(err),
			serum.WithMessageLiteral("config file did not load"),
		)
	}
	return serum.Errorf(CodeRunOkay, "base_uri=%q channels=%v", cfg.BaseURI, cfg.Channels)
}

// CacheCheck verifies the cache root exists (or can be created) and is
// writable.
type CacheCheck struct {
	Root string
}

func (c *CacheCheck) String() string {
	return fmt.Sprintf("Cache root: %q", c.Root)
}

// Run probes the cache directory with a throwaway file.
// Errors:
//
//    - tabcat-healthcheck-run-okay -- when the cache root is writable
//    - tabcat-healthcheck-run-fail -- when it cannot be created or written
func (c *CacheCheck) Run(ctx context.Context) error {
	if err := os.MkdirAll(c.Root, 0755); err != nil {
		return serum.Error(CodeRunFailure, serum.WithCause(err),
			serum.WithMessageTemplate("cannot create cache root {{path|q}}"),
			serum.WithDetail("path", c.Root),
		)
	}
	probe := filepath.Join(c.Root, ".tabcat-healthcheck")
	if err := os.WriteFile(probe, []byte("ok\n"), 0644); err != nil {
		return serum.Error(CodeRunFailure, serum.WithCause(err),
			serum.WithMessageTemplate("cache root {{path|q}} is not writable"),
			serum.WithDetail("path", c.Root),
		)
	}
	os.Remove(probe)
	return serum.Errorf(CodeRunOkay, "writable")
}

// CatalogCheck verifies a local catalog directory is present and its
// format version is supported.
type CatalogCheck struct {
	Root string
}

func (c *CatalogCheck) String() string {
	return fmt.Sprintf("Catalog: %q", c.Root)
}

// Run reads the catalog metadata.
// Errors:
//
//    - tabcat-healthcheck-run-okay -- when the catalog metadata is readable and supported
//    - tabcat-healthcheck-run-ambiguous -- when no catalog is configured
//    - tabcat-healthcheck-run-fail -- when the metadata is missing, corrupt,
//      or requires a newer tabcat
func (c *CatalogCheck) Run(ctx context.Context) error {
	if c.Root == "" {
		return serum.Errorf(CodeRunAmbiguous, "no catalog configured")
	}
	meta, err := index.ReadMeta(c.Root)
	if err != nil {
		return serum.Error(CodeRunFailure, serum.WithCause(err),
			serum.WithMessageLiteral("catalog metadata did not load"),
		)
	}
	if meta.FormatVersion > index.FormatVersion {
		return serum.Error(CodeRunFailure,
			serum.WithMessageTemplate("catalog format version {{found}} needs a newer tabcat (supports up to {{supported}})"),
			serum.WithDetail("found", fmt.Sprintf("%d", meta.FormatVersion)),
			serum.WithDetail("supported", fmt.Sprintf("%d", index.FormatVersion)),
		)
	}
	return serum.Errorf(CodeRunOkay, "format_version=%d", meta.FormatVersion)
}
