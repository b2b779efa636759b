package util

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/tabletools/tabcat/pkg/catalog"
	"github.com/tabletools/tabcat/pkg/config"
	"github.com/tabletools/tabcat/pkg/walden"
	"github.com/tabletools/tabcat/tcapi"
)

// LoadConfig resolves the effective configuration for a command: the
// file named by --config (or the default location), then environment
// overrides on top.
//
// Errors:
//
//    - tabcat-error-not-found -- when a --config file does not exist
//    - tabcat-error-io -- when reading the config file fails
//    - tabcat-error-serialization -- when the config file is malformed
func LoadConfig(c *cli.Context) (config.Config, error) {
	path := c.String("config")
	explicit := path != ""
	if !explicit {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path, explicit)
	if err != nil {
		return config.Config{}, err
	}
	return cfg.WithEnv(os.LookupEnv), nil
}

// OpenClient opens the catalog named by the config's base URI, local
// or remote, loading the configured channels.
//
// Errors:
//
//    - tabcat-error-validation -- when the config names no catalog
//    - tabcat-error-not-found -- when the catalog or a channel index does not exist
//    - tabcat-error-update-required -- when the catalog format is newer than supported
//    - tabcat-error-io -- when reading or downloading fails
//    - tabcat-error-serialization -- when decoding an index fails
//    - tabcat-error-integrity -- when an index violates invariants
func OpenClient(c *cli.Context, cfg config.Config) (*catalog.Client, error) {
	if cfg.BaseURI == "" {
		return nil, tcapi.ErrorValidation("no catalog configured: set base_uri in the config file or " + config.EnvBaseURI)
	}
	store := walden.NewStore(cfg.Walden())
	if cfg.Remote() {
		return catalog.OpenRemote(c.Context, cfg.BaseURI, store, cfg.Channels...)
	}
	return catalog.OpenLocal(cfg.BaseURI, store, cfg.Channels...)
}
