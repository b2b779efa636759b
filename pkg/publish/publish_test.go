package publish_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/serum-errors/go-serum"

	"github.com/tabletools/tabcat/pkg/dataset"
	"github.com/tabletools/tabcat/pkg/index"
	"github.com/tabletools/tabcat/pkg/publish"
	"github.com/tabletools/tabcat/pkg/table"
	"github.com/tabletools/tabcat/tcapi"
)

// buildCatalog seeds one public and one private dataset under a garden
// channel and indexes them.
func buildCatalog(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	private := false
	seed := func(name, tableName string, meta tcapi.DatasetMeta) {
		dir := filepath.Join(root, "garden", "demography", "2024-03-10", name)
		meta.Channel = "garden"
		meta.Namespace = "demography"
		meta.ShortName = name
		meta.Version = "2024-03-10"
		ds, err := dataset.Create(dir, meta)
		qt.Assert(t, err, qt.IsNil)
		tab := table.New(tcapi.TableMeta{ShortName: tableName})
		qt.Assert(t, tab.AddColumn("country", table.NewStrings("fr", "de")), qt.IsNil)
		qt.Assert(t, tab.AddColumn("value", table.NewFloats(1, 2)), qt.IsNil)
		qt.Assert(t, ds.AddTable(tab), qt.IsNil)
	}
	seed("un_wpp", "population", tcapi.DatasetMeta{})
	seed("proprietary", "sales", tcapi.DatasetMeta{IsPublic: &private})

	_, err := index.Reindex(context.Background(), root, []tcapi.Channel{"garden"}, index.ReindexOptions{})
	qt.Assert(t, err, qt.IsNil)
	return root
}

// countingPusher records the order of Push calls on top of the mock.
type countingPusher struct {
	*publish.MockPusher
	calls []string
}

func (p *countingPusher) Push(ctx context.Context, key string, localPath string, public bool) error {
	p.calls = append(p.calls, key)
	return p.MockPusher.Push(ctx, key, localPath, public)
}

func TestCatalogPushesEverything(t *testing.T) {
	root := buildCatalog(t)
	p := &countingPusher{MockPusher: publish.NewMockPusher()}
	qt.Assert(t, publish.Catalog(context.Background(), p, root, publish.Options{}), qt.IsNil)

	qt.Check(t, p.Pushed(), qt.DeepEquals, []string{
		"catalog-garden.feather",
		"catalog-garden.json.zst",
		"catalog.meta.json",
		"garden/demography/2024-03-10/proprietary/sales.feather",
		"garden/demography/2024-03-10/proprietary/sales.meta.json",
		"garden/demography/2024-03-10/un_wpp/population.feather",
		"garden/demography/2024-03-10/un_wpp/population.meta.json",
	})

	// visibility follows the dataset; index files are always public
	qt.Check(t, p.Public("garden/demography/2024-03-10/un_wpp/population.feather"), qt.IsTrue)
	qt.Check(t, p.Public("garden/demography/2024-03-10/proprietary/sales.feather"), qt.IsFalse)
	qt.Check(t, p.Public("catalog-garden.feather"), qt.IsTrue)

	// catalog.meta.json goes last so clients never see a dangling index
	qt.Check(t, p.calls[len(p.calls)-1], qt.Equals, "catalog.meta.json")
}

func TestCatalogSkipsPayloadsTheRemoteHas(t *testing.T) {
	root := buildCatalog(t)
	mock := publish.NewMockPusher()
	qt.Assert(t, publish.Catalog(context.Background(), mock, root, publish.Options{}), qt.IsNil)

	second := &countingPusher{MockPusher: mock}
	qt.Assert(t, publish.Catalog(context.Background(), second, root, publish.Options{}), qt.IsNil)

	for _, key := range second.calls {
		qt.Check(t, strings.HasSuffix(key, ".feather") && strings.HasPrefix(key, "garden/"),
			qt.IsFalse, qt.Commentf("payload %q was re-pushed", key))
	}
	// sidecars and index files still go out so metadata edits propagate
	qt.Check(t, second.calls, qt.Contains, "garden/demography/2024-03-10/un_wpp/population.meta.json")
	qt.Check(t, second.calls, qt.Contains, "catalog-garden.feather")
	qt.Check(t, second.calls, qt.Contains, "catalog.meta.json")
}

func TestCatalogDryRunPushesNothing(t *testing.T) {
	root := buildCatalog(t)
	p := publish.NewMockPusher()
	qt.Assert(t, publish.Catalog(context.Background(), p, root, publish.Options{DryRun: true}), qt.IsNil)
	qt.Check(t, p.Pushed(), qt.HasLen, 0)
}

func TestCatalogMissingIndex(t *testing.T) {
	err := publish.Catalog(context.Background(), publish.NewMockPusher(), t.TempDir(),
		publish.Options{Channels: []tcapi.Channel{"garden"}})
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-not-found")
}
