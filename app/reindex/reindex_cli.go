package reindexcli

import (
	"github.com/MakeNowJust/heredoc"
	"github.com/urfave/cli/v2"

	appbase "github.com/tabletools/tabcat/app/base"
	"github.com/tabletools/tabcat/app/base/util"
	"github.com/tabletools/tabcat/pkg/index"
	"github.com/tabletools/tabcat/pkg/logging"
	"github.com/tabletools/tabcat/tcapi"
)

func init() {
	appbase.App.Commands = append(appbase.App.Commands, reindexCmdDef)
}

var reindexCmdDef = &cli.Command{
	Name:      "reindex",
	Usage:     "Rebuild a local catalog's index files",
	ArgsUsage: "[catalog-dir]",
	Description: heredoc.Doc(`
		Scans the catalog directory for datasets and rewrites the
		per-channel index files. With --include, only datasets whose
		catalog-relative path matches the pattern are re-scanned;
		entries outside the pattern are kept from the existing index.
	`),
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "channel",
			Aliases: []string{"c"},
			Usage:   "Channel to index; repeatable. Defaults to every channel directory present.",
		},
		&cli.StringFlag{
			Name:  "include",
			Usage: "Regex over catalog-relative dataset paths; only matching datasets are re-scanned",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Number of datasets scanned concurrently",
			Value: index.DefaultWorkers,
		},
	},
	Action: util.ChainCmdMiddleware(cmdReindex,
		util.CmdMiddlewareLogging,
		util.CmdMiddlewareTracingConfig,
		util.CmdMiddlewareTracingSpan,
	),
}

func cmdReindex(c *cli.Context) error {
	ctx := c.Context
	log := logging.Ctx(ctx)

	root := c.Args().First()
	if root == "" {
		cfg, err := util.LoadConfig(c)
		if err != nil {
			return err
		}
		if cfg.BaseURI == "" || cfg.Remote() {
			return tcapi.ErrorValidation("reindex needs a local catalog directory: pass one as an argument or set a local base_uri")
		}
		root = cfg.BaseURI
	}

	var channels []tcapi.Channel
	for _, ch := range c.StringSlice("channel") {
		channels = append(channels, tcapi.Channel(ch))
	}

	indexes, err := index.Reindex(ctx, root, channels, index.ReindexOptions{
		Include: c.String("include"),
		Workers: c.Int("workers"),
	})
	if err != nil {
		return err
	}
	for _, ix := range indexes {
		log.Out("%s: %d tables", ix.Channel, len(ix.Entries))
	}
	return nil
}
