package table_test

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/serum-errors/go-serum"

	"github.com/tabletools/tabcat/pkg/table"
	"github.com/tabletools/tabcat/tcapi"
)

func popTable(t *testing.T) *table.Table {
	tab := table.New(tcapi.TableMeta{ShortName: "population", Title: "Population"})
	qt.Assert(t, tab.AddColumn("country", table.NewStrings("fr", "fr", "de")), qt.IsNil)
	qt.Assert(t, tab.AddColumn("year", table.NewInts(2019, 2020, 2020)), qt.IsNil)
	pop := table.NewFloats(67.2, 67.5, 83.1).WithMeta(tcapi.VariableMeta{
		Title: "Population", Unit: "million persons", ShortUnit: "M",
	})
	qt.Assert(t, tab.AddColumn("population", pop), qt.IsNil)
	qt.Assert(t, tab.SetPrimaryKey("country", "year"), qt.IsNil)
	return tab
}

func TestAddColumnValidation(t *testing.T) {
	tab := table.New(tcapi.TableMeta{})
	err := tab.AddColumn("", table.NewInts(1))
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-validation")

	qt.Assert(t, tab.AddColumn("a", table.NewInts(1, 2)), qt.IsNil)
	err = tab.AddColumn("a", table.NewInts(3, 4))
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-already-exists")

	err = tab.AddColumn("b", table.NewInts(1, 2, 3))
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-validation")
}

func TestColumnMetaRiderCopies(t *testing.T) {
	tab := popTable(t)

	// pulling a column out and pushing it into another table moves the
	// metadata along with the data
	pop, err := tab.Column("population")
	qt.Assert(t, err, qt.IsNil)

	other := table.New(tcapi.TableMeta{})
	qt.Assert(t, other.SetColumn("pop", pop), qt.IsNil)
	m, err := other.VariableMeta("pop")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, m.Unit, qt.Equals, "million persons")

	// and it is a copy: editing the destination must not touch the source
	m.Unit = "billions"
	qt.Assert(t, other.SetVariableMeta("pop", m), qt.IsNil)
	orig, err := tab.VariableMeta("population")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, orig.Unit, qt.Equals, "million persons")
}

func TestRenameMovesMetadataAtomically(t *testing.T) {
	tab := popTable(t)

	qt.Assert(t, tab.Rename(map[string]string{"population": "pop", "year": "yr"}), qt.IsNil)
	qt.Check(t, tab.HasColumn("population"), qt.IsFalse)
	m, err := tab.VariableMeta("pop")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, m.ShortUnit, qt.Equals, "M")
	// primary key names follow the rename
	qt.Check(t, tab.PrimaryKey(), qt.DeepEquals, []string{"country", "yr"})

	// a rename with any bad name changes nothing at all
	err = tab.Rename(map[string]string{"pop": "population", "ghost": "x"})
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-not-found")
	qt.Check(t, tab.HasColumn("pop"), qt.IsTrue)

	err = tab.Rename(map[string]string{"pop": "country"})
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-already-exists")
	qt.Check(t, tab.HasColumn("pop"), qt.IsTrue)
}

func TestSelectKeepsMetadata(t *testing.T) {
	tab := popTable(t)
	sub, err := tab.Select("country", "population")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, sub.Names(), qt.DeepEquals, []string{"country", "population"})
	m, err := sub.VariableMeta("population")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, m.Unit, qt.Equals, "million persons")

	_, err = tab.Select("nope")
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-not-found")
}

func TestFilterAndHead(t *testing.T) {
	tab := popTable(t)

	got, err := tab.Filter([]bool{true, false, true})
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, got.Len(), qt.Equals, 2)
	c, err := got.Column("country")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, c.Strings(), qt.DeepEquals, []string{"fr", "de"})

	_, err = tab.Filter([]bool{true})
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-validation")

	qt.Check(t, tab.Head(2).Len(), qt.Equals, 2)
	qt.Check(t, tab.Head(10).Len(), qt.Equals, 3)
	qt.Check(t, tab.Head(-1).Len(), qt.Equals, 0)
}

func TestSetPrimaryKeyUniqueness(t *testing.T) {
	tab := table.New(tcapi.TableMeta{})
	qt.Assert(t, tab.AddColumn("country", table.NewStrings("fr", "fr")), qt.IsNil)
	qt.Assert(t, tab.AddColumn("year", table.NewInts(2020, 2020)), qt.IsNil)

	err := tab.SetPrimaryKey("country", "year")
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-validation")
	qt.Check(t, tab.PrimaryKey(), qt.HasLen, 0)

	err = tab.SetPrimaryKey("missing")
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-not-found")
}

func TestNullsDistinctInPrimaryKey(t *testing.T) {
	tab := table.New(tcapi.TableMeta{})
	name, err := table.NewStrings("", "x").WithValidity([]bool{false, true})
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, tab.AddColumn("name", name), qt.IsNil)
	// a null and an empty string are different key values
	qt.Assert(t, tab.SetPrimaryKey("name"), qt.IsNil)
}

func TestCopyIsIndependent(t *testing.T) {
	tab := popTable(t)
	dup := tab.Copy()
	qt.Assert(t, dup.Equal(tab), qt.IsTrue)

	qt.Assert(t, dup.SetVariableMeta("population", tcapi.VariableMeta{Unit: "people"}), qt.IsNil)
	m, err := tab.VariableMeta("population")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, m.Unit, qt.Equals, "million persons")
}
