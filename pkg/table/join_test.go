package table_test

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/serum-errors/go-serum"

	"github.com/tabletools/tabcat/pkg/table"
	"github.com/tabletools/tabcat/tcapi"
)

func sideTable(t *testing.T, name string, countries []string, vals []float64, unit string) *table.Table {
	tab := table.New(tcapi.TableMeta{ShortName: name})
	key := table.NewStrings(countries...).WithMeta(tcapi.VariableMeta{Title: "Country (" + name + ")"})
	qt.Assert(t, tab.AddColumn("country", key), qt.IsNil)
	val := table.NewFloats(vals...).WithMeta(tcapi.VariableMeta{Unit: unit})
	qt.Assert(t, tab.AddColumn("value", val), qt.IsNil)
	return tab
}

func TestJoinSuffixesAndMetadata(t *testing.T) {
	left := sideTable(t, "gdp", []string{"fr", "de"}, []float64{2.6, 3.8}, "trillion usd")
	right := sideTable(t, "pop", []string{"fr", "de"}, []float64{67.5, 83.1}, "million persons")

	got, err := table.Join(left, right, []string{"country"}, table.JoinInner)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, got.Names(), qt.DeepEquals, []string{"country", "value_x", "value_y"})

	// key column keeps the left side's metadata
	km, err := got.VariableMeta("country")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, km.Title, qt.Equals, "Country (gdp)")

	// each suffixed column keeps its own side's metadata
	lm, err := got.VariableMeta("value_x")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, lm.Unit, qt.Equals, "trillion usd")
	rm, err := got.VariableMeta("value_y")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, rm.Unit, qt.Equals, "million persons")

	// joins never carry a primary key over
	qt.Check(t, got.PrimaryKey(), qt.HasLen, 0)
}

func TestJoinKinds(t *testing.T) {
	left := sideTable(t, "gdp", []string{"fr", "de"}, []float64{2.6, 3.8}, "trillion usd")
	right := sideTable(t, "pop", []string{"de", "jp"}, []float64{83.1, 124.5}, "million persons")

	inner, err := table.Join(left, right, []string{"country"}, table.JoinInner)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, inner.Len(), qt.Equals, 1)

	leftJoin, err := table.Join(left, right, []string{"country"}, table.JoinLeft)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, leftJoin.Len(), qt.Equals, 2)
	rv, err := leftJoin.Column("value_y")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, rv.IsNull(0), qt.IsTrue) // fr has no population row

	outer, err := table.Join(left, right, []string{"country"}, table.JoinOuter)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, outer.Len(), qt.Equals, 3)
	// the appended jp row fills the key column from the right side
	key, err := outer.Column("country")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, key.IsNull(2), qt.IsFalse)
	qt.Check(t, key.Value(2), qt.Equals, "jp")
	lv, err := outer.Column("value_x")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, lv.IsNull(2), qt.IsTrue)
}

func TestJoinValidation(t *testing.T) {
	left := sideTable(t, "gdp", []string{"fr"}, []float64{2.6}, "")
	right := table.New(tcapi.TableMeta{ShortName: "pop"})
	qt.Assert(t, right.AddColumn("country", table.NewInts(1)), qt.IsNil)

	_, err := table.Join(left, right, nil, table.JoinInner)
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-validation")

	_, err = table.Join(left, right, []string{"country"}, table.JoinInner)
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-validation")

	_, err = table.Join(left, right, []string{"ghost"}, table.JoinInner)
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-not-found")
}

func TestConcatMetadataRules(t *testing.T) {
	a := sideTable(t, "a", []string{"fr"}, []float64{1}, "usd")
	b := sideTable(t, "b", []string{"de"}, []float64{2}, "")

	got, err := table.Concat(a, b)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, got.Len(), qt.Equals, 2)
	// first non-empty metadata wins
	m, err := got.VariableMeta("value")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, m.Unit, qt.Equals, "usd")

	// conflicting units never resolve silently
	c := sideTable(t, "c", []string{"jp"}, []float64{3}, "eur")
	_, err = table.Concat(a, c)
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-validation")

	// schema mismatch
	d := table.New(tcapi.TableMeta{})
	qt.Assert(t, d.AddColumn("country", table.NewStrings("us")), qt.IsNil)
	_, err = table.Concat(a, d)
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-validation")
}

func TestMergeAllDeterministic(t *testing.T) {
	tables := []*table.Table{
		sideTable(t, "a", []string{"fr", "de"}, []float64{1, 2}, "u1"),
		sideTable(t, "b", []string{"de", "jp"}, []float64{3, 4}, "u2"),
		sideTable(t, "c", []string{"jp", "us"}, []float64{5, 6}, "u3"),
	}
	rename := func(i int, n string) {
		qt.Assert(t, tables[i].Rename(map[string]string{"value": n}), qt.IsNil)
	}
	rename(0, "va")
	rename(1, "vb")
	rename(2, "vc")

	first, err := table.MergeAll(context.Background(), tables, []string{"country"}, 4)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, first.Names(), qt.DeepEquals, []string{"country", "va", "vb", "vc"})
	qt.Check(t, first.Len(), qt.Equals, 4)

	// same inputs, same output, regardless of worker interleaving
	for i := 0; i < 5; i++ {
		again, err := table.MergeAll(context.Background(), tables, []string{"country"}, 2)
		qt.Assert(t, err, qt.IsNil)
		qt.Assert(t, again.Equal(first), qt.IsTrue)
	}
}
