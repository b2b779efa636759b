package publishcli

import (
	"github.com/MakeNowJust/heredoc"
	"github.com/urfave/cli/v2"

	appbase "github.com/tabletools/tabcat/app/base"
	"github.com/tabletools/tabcat/app/base/util"
	"github.com/tabletools/tabcat/pkg/config"
	"github.com/tabletools/tabcat/pkg/publish"
	"github.com/tabletools/tabcat/tcapi"
)

func init() {
	appbase.App.Commands = append(appbase.App.Commands, publishCmdDef)
}

var publishCmdDef = &cli.Command{
	Name:      "publish",
	Usage:     "Push a local catalog to object storage",
	ArgsUsage: "[catalog-dir]",
	Description: heredoc.Doc(`
		Uploads the catalog's table payloads, sidecars, and index files
		to the configured S3 bucket. Payloads already present remotely
		are skipped; index files and catalog metadata are always
		refreshed, metadata last so readers never see an index pointing
		at missing payloads.
	`),
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "channel",
			Aliases: []string{"c"},
			Usage:   "Channel to publish; repeatable. Defaults to every channel present.",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Print what would be pushed without pushing",
		},
	},
	Action: util.ChainCmdMiddleware(cmdPublish,
		util.CmdMiddlewareLogging,
		util.CmdMiddlewareTracingConfig,
		util.CmdMiddlewareTracingSpan,
	),
}

func cmdPublish(c *cli.Context) error {
	ctx := c.Context

	cfg, err := util.LoadConfig(c)
	if err != nil {
		return err
	}
	root := c.Args().First()
	if root == "" {
		if cfg.BaseURI == "" || cfg.Remote() {
			return tcapi.ErrorValidation("publish needs a local catalog directory: pass one as an argument or set a local base_uri")
		}
		root = cfg.BaseURI
	}
	if cfg.S3.Bucket == "" {
		return tcapi.ErrorValidation("publish needs an S3 bucket: set s3.bucket in the config file or " + config.EnvS3Bucket)
	}

	pusher, err := publish.NewS3Pusher(ctx, cfg.Walden())
	if err != nil {
		return err
	}

	var channels []tcapi.Channel
	for _, ch := range c.StringSlice("channel") {
		channels = append(channels, tcapi.Channel(ch))
	}
	return publish.Catalog(ctx, pusher, root, publish.Options{
		Channels: channels,
		DryRun:   c.Bool("dry-run"),
	})
}
