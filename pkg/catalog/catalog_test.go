package catalog_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/serum-errors/go-serum"

	"github.com/tabletools/tabcat/pkg/catalog"
	"github.com/tabletools/tabcat/pkg/dataset"
	"github.com/tabletools/tabcat/pkg/index"
	"github.com/tabletools/tabcat/pkg/table"
	"github.com/tabletools/tabcat/pkg/walden"
	"github.com/tabletools/tabcat/tcapi"
)

// buildCatalog seeds a small catalog on disk and indexes it:
//
//	garden/demography/2023-12-01/un_wpp/population
//	garden/demography/2024-03-10/un_wpp/population
//	garden/regions/2024-01-15/owid_regions/country_codes
func buildCatalog(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	seed := func(namespace, version, name, tableName string) {
		dir := filepath.Join(root, "garden", namespace, version, name)
		ds, err := dataset.Create(dir, tcapi.DatasetMeta{
			Channel:   "garden",
			Namespace: namespace,
			ShortName: name,
			Version:   version,
		})
		qt.Assert(t, err, qt.IsNil)
		tab := table.New(tcapi.TableMeta{ShortName: tableName})
		qt.Assert(t, tab.AddColumn("country", table.NewStrings("fr", "de")), qt.IsNil)
		qt.Assert(t, tab.AddColumn("year", table.NewInts(2020, 2020)), qt.IsNil)
		qt.Assert(t, tab.AddColumn("value", table.NewFloats(67.5, 83.1)), qt.IsNil)
		qt.Assert(t, tab.SetPrimaryKey("country", "year"), qt.IsNil)
		qt.Assert(t, ds.AddTable(tab), qt.IsNil)
	}
	seed("demography", "2023-12-01", "un_wpp", "population")
	seed("demography", "2024-03-10", "un_wpp", "population")
	seed("regions", "2024-01-15", "owid_regions", "country_codes")

	_, err := index.Reindex(context.Background(), root, []tcapi.Channel{"garden"}, index.ReindexOptions{})
	qt.Assert(t, err, qt.IsNil)
	return root
}

func newStore(t *testing.T) *walden.Store {
	t.Helper()
	return walden.NewStore(walden.Config{CacheRoot: t.TempDir()})
}

func openLocal(t *testing.T) *catalog.Client {
	t.Helper()
	c, err := catalog.OpenLocal(buildCatalog(t), newStore(t))
	qt.Assert(t, err, qt.IsNil)
	return c
}

func tables(results []catalog.Result) []string {
	var out []string
	for _, r := range results {
		out = append(out, r.Table)
	}
	return out
}

func TestOpenLocalLoadsDefaultChannel(t *testing.T) {
	c := openLocal(t)
	qt.Check(t, c.Channels(), qt.DeepEquals, []tcapi.Channel{"garden"})

	entries, err := c.Entries("garden")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, entries, qt.HasLen, 3)

	_, err = c.Entries("meadows")
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-validation")
}

func TestFindExact(t *testing.T) {
	c := openLocal(t)
	results, err := c.Find(catalog.Query{Table: "population"})
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, tables(results), qt.DeepEquals, []string{"population", "population"})

	results, err = c.Find(catalog.Query{Table: "populat"})
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, results, qt.HasLen, 0)
}

func TestFindContains(t *testing.T) {
	c := openLocal(t)
	results, err := c.Find(catalog.Query{Table: "countr", Match: catalog.MatchContains})
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, tables(results), qt.DeepEquals, []string{"country_codes"})
}

func TestFindRegex(t *testing.T) {
	c := openLocal(t)
	results, err := c.Find(catalog.Query{Table: "^pop.*n$", Match: catalog.MatchRegex})
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, results, qt.HasLen, 2)

	_, err = c.Find(catalog.Query{Table: "[", Match: catalog.MatchRegex})
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-validation")
}

func TestFindFuzzy(t *testing.T) {
	c := openLocal(t)
	// a one-character typo still finds the table, and nothing else
	results, err := c.Find(catalog.Query{Table: "populaton", Match: catalog.MatchFuzzy})
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, tables(results), qt.DeepEquals, []string{"population", "population"})
	// one edit out of ten characters scores 90
	qt.Check(t, results[0].Score > 89 && results[0].Score < 91, qt.IsTrue)
}

func TestFindFuzzyCombinesFilters(t *testing.T) {
	c := openLocal(t)
	results, err := c.Find(catalog.Query{
		Table:   "population",
		Dataset: "un_wp",
		Match:   catalog.MatchFuzzy,
	})
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, results, qt.HasLen, 2)
	// mean of an exact table match (100) and a one-off dataset match (83.3..)
	qt.Check(t, results[0].Score > 90, qt.IsTrue)
	qt.Check(t, results[0].Score < 100, qt.IsTrue)
}

func TestFindFuzzyThresholdSentinel(t *testing.T) {
	c := openLocal(t)
	// far below the default cutoff, nothing matches
	results, err := c.Find(catalog.Query{Table: "pop", Match: catalog.MatchFuzzy})
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, results, qt.HasLen, 0)

	// a negative threshold disables the cutoff and scores everything
	results, err = c.Find(catalog.Query{Table: "pop", Match: catalog.MatchFuzzy, Threshold: -1})
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, results, qt.HasLen, 3)
	// the closest names sort first
	qt.Check(t, tables(results), qt.DeepEquals, []string{"population", "population", "country_codes"})
}

func TestFindRejectsUnknownMode(t *testing.T) {
	c := openLocal(t)
	_, err := c.Find(catalog.Query{Table: "population", Match: "soundex"})
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-validation")
}

func TestFindRejectsUnloadedChannel(t *testing.T) {
	c := openLocal(t)
	_, err := c.Find(catalog.Query{Channels: []tcapi.Channel{"meadows"}})
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-validation")
}

func TestFindLatestPrefersNaturalOrder(t *testing.T) {
	c := openLocal(t)
	e, err := c.FindLatest(catalog.Query{Table: "population"})
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, e.Version, qt.Equals, "2024-03-10")

	_, err = c.FindLatest(catalog.Query{Table: "ghost"})
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-not-found")
}

func TestFindOne(t *testing.T) {
	c := openLocal(t)
	e, err := c.FindOne(catalog.Query{Table: "population", Version: "2023-12-01"})
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, e.Dataset, qt.Equals, "un_wpp")

	_, err = c.FindOne(catalog.Query{Table: "population"})
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-validation")

	_, err = c.FindOne(catalog.Query{Table: "ghost"})
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-not-found")
}

func TestLocalFetch(t *testing.T) {
	c := openLocal(t)
	e, err := c.FindLatest(catalog.Query{Table: "population"})
	qt.Assert(t, err, qt.IsNil)

	got, err := c.Fetch(context.Background(), e)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, got.Len(), qt.Equals, 2)
	qt.Check(t, got.PrimaryKey(), qt.DeepEquals, []string{"country", "year"})

	header, err := c.FetchHeader(context.Background(), e)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, header.Len(), qt.Equals, 0)
	qt.Check(t, header.Names(), qt.DeepEquals, got.Names())
}

func TestRemoteCatalog(t *testing.T) {
	root := buildCatalog(t)
	srv := httptest.NewServer(http.FileServer(http.Dir(root)))
	defer srv.Close()

	c, err := catalog.OpenRemote(context.Background(), srv.URL, newStore(t))
	qt.Assert(t, err, qt.IsNil)

	e, err := c.FindLatest(catalog.Query{Table: "population"})
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, e.Version, qt.Equals, "2024-03-10")

	got, err := c.Fetch(context.Background(), e)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, got.Len(), qt.Equals, 2)
	qt.Check(t, got.PrimaryKey(), qt.DeepEquals, []string{"country", "year"})

	header, err := c.FetchHeader(context.Background(), e)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, header.Len(), qt.Equals, 0)
}

func TestRemoteFetchVerifiesChecksum(t *testing.T) {
	root := buildCatalog(t)
	srv := httptest.NewServer(http.FileServer(http.Dir(root)))
	defer srv.Close()

	c, err := catalog.OpenRemote(context.Background(), srv.URL, newStore(t))
	qt.Assert(t, err, qt.IsNil)
	e, err := c.FindLatest(catalog.Query{Table: "population"})
	qt.Assert(t, err, qt.IsNil)

	// tamper with the served payload after indexing
	payload := filepath.Join(root, filepath.FromSlash(e.Path)+".feather")
	qt.Assert(t, os.WriteFile(payload, []byte("tampered"), 0644), qt.IsNil)

	_, err = c.Fetch(context.Background(), e)
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-checksum-mismatch")
}

func TestRemoteRefusesNewerFormat(t *testing.T) {
	root := buildCatalog(t)
	qt.Assert(t, index.WriteMeta(root, index.CatalogMeta{FormatVersion: index.FormatVersion + 1}), qt.IsNil)
	srv := httptest.NewServer(http.FileServer(http.Dir(root)))
	defer srv.Close()

	_, err := catalog.OpenRemote(context.Background(), srv.URL, newStore(t))
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-update-required")
}

func TestRemoteMissingCatalog(t *testing.T) {
	srv := httptest.NewServer(http.FileServer(http.Dir(t.TempDir())))
	defer srv.Close()

	_, err := catalog.OpenRemote(context.Background(), srv.URL, newStore(t))
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-not-found")
}
