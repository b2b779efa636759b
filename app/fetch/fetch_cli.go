package fetchcli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/urfave/cli/v2"

	appbase "github.com/tabletools/tabcat/app/base"
	"github.com/tabletools/tabcat/app/base/util"
	"github.com/tabletools/tabcat/pkg/catalog"
	"github.com/tabletools/tabcat/pkg/codec"
	"github.com/tabletools/tabcat/pkg/logging"
	"github.com/tabletools/tabcat/pkg/table"
	"github.com/tabletools/tabcat/tcapi"
)

func init() {
	appbase.App.Commands = append(appbase.App.Commands, fetchCmdDef)
}

var fetchCmdDef = &cli.Command{
	Name:      "fetch",
	Usage:     "Fetch a table from the catalog",
	ArgsUsage: "table",
	Description: heredoc.Doc(`
		Resolves the table name to its latest version, fetches it in the
		best available format, verifies its checksum, and either prints a
		preview or, with --output, saves it (data plus metadata sidecar)
		into a directory.
	`),
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "channel",
			Aliases: []string{"c"},
			Usage:   "Channel to search; repeatable",
		},
		&cli.StringFlag{
			Name:    "dataset",
			Aliases: []string{"d"},
			Usage:   "Exact dataset name",
		},
		&cli.StringFlag{
			Name:    "namespace",
			Aliases: []string{"n"},
			Usage:   "Exact namespace",
		},
		&cli.StringFlag{
			Name:  "version",
			Usage: "Exact version; defaults to the latest by natural order",
		},
		&cli.StringFlag{
			Name:      "output",
			Aliases:   []string{"o"},
			Usage:     "Directory to save the table into",
			TakesFile: true,
		},
		&cli.BoolFlag{
			Name:  "header",
			Usage: "Fetch only the table's structure and metadata, not its rows",
		},
	},
	Action: util.ChainCmdMiddleware(cmdFetch,
		util.CmdMiddlewareLogging,
		util.CmdMiddlewareTracingConfig,
		util.CmdMiddlewareTracingSpan,
	),
}

func cmdFetch(c *cli.Context) error {
	ctx := c.Context
	log := logging.Ctx(ctx)

	name := c.Args().First()
	if name == "" {
		return tcapi.ErrorValidation("fetch needs a table name")
	}
	if c.Bool("header") && c.String("output") != "" {
		return tcapi.ErrorValidation("--header and --output cannot be combined; a header-only table has no rows to save")
	}
	cfg, err := util.LoadConfig(c)
	if err != nil {
		return err
	}
	client, err := util.OpenClient(c, cfg)
	if err != nil {
		return err
	}

	var channels []tcapi.Channel
	for _, ch := range c.StringSlice("channel") {
		channels = append(channels, tcapi.Channel(ch))
	}
	entry, err := client.FindLatest(catalog.Query{
		Table:     name,
		Dataset:   c.String("dataset"),
		Namespace: c.String("namespace"),
		Version:   c.String("version"),
		Channels:  channels,
	})
	if err != nil {
		return err
	}
	log.Debug("fetch", "resolved %q to %s", name, entry)

	var t *table.Table
	if c.Bool("header") {
		t, err = client.FetchHeader(ctx, entry)
	} else {
		t, err = client.Fetch(ctx, entry)
	}
	if err != nil {
		return err
	}

	if out := c.String("output"); out != "" {
		if err := os.MkdirAll(out, 0755); err != nil {
			return tcapi.ErrorIo("creating output directory", out, err)
		}
		stem := filepath.Join(out, entry.Table)
		if err := codec.Save(t, stem, entry.Formats...); err != nil {
			return err
		}
		log.Out("saved %s to %s", entry, stem)
		return nil
	}

	fmt.Fprintf(c.App.Writer, "%s\n", entry)
	fmt.Fprintf(c.App.Writer, "columns: %s\n", strings.Join(t.Names(), ", "))
	fmt.Fprintf(c.App.Writer, "rows: %d\n", t.Len())
	if !c.Bool("header") {
		fmt.Fprintf(c.App.Writer, "%s\n", t.Head(10))
	}
	return nil
}
