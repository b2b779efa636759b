package findcli

import (
	"encoding/json"
	"fmt"

	"github.com/MakeNowJust/heredoc"
	"github.com/urfave/cli/v2"

	appbase "github.com/tabletools/tabcat/app/base"
	"github.com/tabletools/tabcat/app/base/util"
	"github.com/tabletools/tabcat/pkg/catalog"
	"github.com/tabletools/tabcat/tcapi"
)

func init() {
	appbase.App.Commands = append(appbase.App.Commands, findCmdDef)
}

var findCmdDef = &cli.Command{
	Name:      "find",
	Usage:     "Search the catalog for tables",
	ArgsUsage: "[table]",
	Description: heredoc.Doc(`
		Searches the loaded channel indexes. The positional argument
		matches table names; --dataset, --namespace and --version narrow
		the search further. --match selects how table and dataset names
		are compared: exact, contains, regex, or fuzzy. Fuzzy matches are
		scored 0-100 and sorted best-first.
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
			Usage:   "Match dataset names",
		},
		&cli.StringFlag{
			Name:    "namespace",
			Aliases: []string{"n"},
			Usage:   "Exact namespace",
		},
		&cli.StringFlag{
			Name:  "version",
			Usage: "Exact version",
		},
		&cli.StringFlag{
			Name:  "match",
			Usage: "Match mode: exact, contains, regex, or fuzzy",
			Value: string(catalog.MatchContains),
		},
		&cli.IntFlag{
			Name:  "threshold",
			Usage: "Minimum fuzzy score (0-100)",
			Value: catalog.DefaultFuzzyThreshold,
		},
	},
	Action: util.ChainCmdMiddleware(cmdFind,
		util.CmdMiddlewareLogging,
		util.CmdMiddlewareTracingConfig,
		util.CmdMiddlewareTracingSpan,
	),
}

func cmdFind(c *cli.Context) error {
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
	results, err := client.Find(catalog.Query{
		Table:     c.Args().First(),
		Dataset:   c.String("dataset"),
		Namespace: c.String("namespace"),
		Version:   c.String("version"),
		Channels:  channels,
		Match:     catalog.MatchMode(c.String("match")),
		Threshold: c.Int("threshold"),
	})
	if err != nil {
		return err
	}

	if c.Bool("json") {
		serial, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return tcapi.ErrorSerialization("encoding search results", err)
		}
		fmt.Fprintf(c.App.Writer, "%s\n", serial)
		return nil
	}
	for _, r := range results {
		fmt.Fprintf(c.App.Writer, "%s\n", r.CatalogEntry)
	}
	if len(results) == 0 {
		fmt.Fprintf(c.App.ErrWriter, "no tables found\n")
	}
	return nil
}
