package healthcheckcli

import (
	"github.com/urfave/cli/v2"

	appbase "github.com/tabletools/tabcat/app/base"
	"github.com/tabletools/tabcat/app/base/util"
	"github.com/tabletools/tabcat/pkg/config"
	"github.com/tabletools/tabcat/pkg/healthcheck"
	"github.com/tabletools/tabcat/pkg/logging"
	"github.com/tabletools/tabcat/tcapi"
)

func init() {
	appbase.App.Commands = append(appbase.App.Commands, healthcheckCmdDef)
}

var healthcheckCmdDef = &cli.Command{
	Name:  "healthcheck",
	Usage: "Check for potential errors in system configuration",
	Action: util.ChainCmdMiddleware(cmdHealth,
		util.CmdMiddlewareLogging,
		util.CmdMiddlewareTracingConfig,
		util.CmdMiddlewareTracingSpan,
	),
}

func cmdHealth(c *cli.Context) error {
	ctx := c.Context
	log := logging.Ctx(ctx)

	cfg, err := util.LoadConfig(c)
	if err != nil {
		// a broken config is itself a finding; the ConfigCheck below reports it
		log.Debug("", "config load failed: %s", err)
		cfg = config.Default()
	}

	catalogRoot := ""
	if cfg.BaseURI != "" && !cfg.Remote() {
		catalogRoot = cfg.BaseURI
	}
	hc := &healthcheck.HealthCheck{
		Runners: []healthcheck.Runner{
			&healthcheck.ConfigCheck{Path: c.String("config"), Explicit: c.String("config") != ""},
			&healthcheck.CacheCheck{Root: cfg.CacheRoot},
			&healthcheck.CatalogCheck{Root: catalogRoot},
		},
	}
	if err := hc.Run(ctx); err != nil {
		log.Info("", "health check critical error: %s", err)
		return err
	}

	log.Debug("", "runners=%d, results=%d", len(hc.Runners), len(hc.Results))

	if err := hc.Fprint(c.App.Writer); err != nil {
		return err
	}
	if hc.Failed() {
		return tcapi.ErrorValidation("one or more health checks failed")
	}
	return nil
}
