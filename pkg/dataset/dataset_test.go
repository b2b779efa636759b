package dataset_test

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/serum-errors/go-serum"

	"github.com/tabletools/tabcat/pkg/dataset"
	"github.com/tabletools/tabcat/pkg/table"
	"github.com/tabletools/tabcat/tcapi"
)

func sampleMeta() tcapi.DatasetMeta {
	return tcapi.DatasetMeta{
		Channel:   "garden",
		Namespace: "demography",
		ShortName: "un_wpp",
		Title:     "UN World Population Prospects",
		Version:   "2024-03-10",
		Sources:   []tcapi.Source{{Name: "un_wpp"}},
	}
}

func sampleTable(t *testing.T, name string) *table.Table {
	tab := table.New(tcapi.TableMeta{ShortName: name, Title: "Population"})
	qt.Assert(t, tab.AddColumn("country", table.NewStrings("fr", "de")), qt.IsNil)
	qt.Assert(t, tab.AddColumn("population", table.NewFloats(67.5, 83.1)), qt.IsNil)
	qt.Assert(t, tab.SetPrimaryKey("country"), qt.IsNil)
	return tab
}

func TestCreateAndOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "un_wpp")
	ds, err := dataset.Create(dir, sampleMeta())
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, dataset.IsRoot(dir), qt.IsTrue)
	qt.Check(t, ds.Dir(), qt.Equals, dir)

	reopened, err := dataset.Open(dir)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, reopened.Meta(), qt.DeepEquals, sampleMeta())
}

func TestOpenMissing(t *testing.T) {
	_, err := dataset.Open(filepath.Join(t.TempDir(), "ghost"))
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-not-found")
}

func TestOpenCorruptMeta(t *testing.T) {
	dir := t.TempDir()
	qt.Assert(t, os.WriteFile(filepath.Join(dir, dataset.MetaFilename), []byte("{nope"), 0644), qt.IsNil)
	_, err := dataset.Open(dir)
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-integrity")
}

func TestAddAndLoadTable(t *testing.T) {
	ds, err := dataset.Create(filepath.Join(t.TempDir(), "un_wpp"), sampleMeta())
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, ds.AddTable(sampleTable(t, "population")), qt.IsNil)

	got, err := ds.Table("population")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, got.Len(), qt.Equals, 2)
	qt.Check(t, got.PrimaryKey(), qt.DeepEquals, []string{"country"})

	// the loaded table carries a back-reference to its dataset
	qt.Assert(t, got.Meta().Dataset, qt.IsNotNil)
	qt.Check(t, got.Meta().Dataset.ShortName, qt.Equals, "un_wpp")
}

func TestAddTableRequiresShortName(t *testing.T) {
	ds, err := dataset.Create(filepath.Join(t.TempDir(), "un_wpp"), sampleMeta())
	qt.Assert(t, err, qt.IsNil)

	anon := table.New(tcapi.TableMeta{})
	qt.Assert(t, anon.AddColumn("x", table.NewInts(1)), qt.IsNil)
	err = ds.AddTable(anon)
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-validation")
}

func TestTableNames(t *testing.T) {
	ds, err := dataset.Create(filepath.Join(t.TempDir(), "un_wpp"), sampleMeta())
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, ds.AddTable(sampleTable(t, "population")), qt.IsNil)
	qt.Assert(t, ds.AddTable(sampleTable(t, "deaths")), qt.IsNil)

	names, err := ds.TableNames()
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, names, qt.DeepEquals, []string{"deaths", "population"})
}

func TestTableMissing(t *testing.T) {
	ds, err := dataset.Create(filepath.Join(t.TempDir(), "un_wpp"), sampleMeta())
	qt.Assert(t, err, qt.IsNil)
	_, err = ds.Table("ghost")
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-not-found")
}

func TestSetMetaPersists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "un_wpp")
	ds, err := dataset.Create(dir, sampleMeta())
	qt.Assert(t, err, qt.IsNil)

	meta := ds.Meta()
	meta.Version = "2024-07-01"
	qt.Assert(t, ds.SetMeta(meta), qt.IsNil)

	reopened, err := dataset.Open(dir)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, reopened.Meta().Version, qt.Equals, "2024-07-01")
}
