// Package table provides the metadata-propagating columnar container at
// the heart of the catalog. A Table owns its column data, an optional
// ordered primary key, and one VariableMeta per column; every operation
// defines explicitly what happens to that metadata, rather than leaving
// it to whatever the underlying arrays would do.
//
// The invariant maintained throughout: every column name present in the
// data has an entry (possibly empty) in the metadata map, and the map
// never contains keys absent from the data.
package table

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/tabletools/tabcat/tcapi"
)

// Table pairs columnar data with per-column metadata.
//
// Operations come in two flavors: mutators (AddColumn, SetColumn, Rename,
// SetPrimaryKey) change the receiver in place, and deriving operations
// (Select, Head, Filter, Join, Concat) return a new Table. Series values
// are treated as immutable once inside a table; deriving operations may
// share them.
type Table struct {
	meta  tcapi.TableMeta
	names []string
	cols  map[string]*Series
	metas map[string]tcapi.VariableMeta
}

// New creates an empty table with the given metadata.
func New(meta tcapi.TableMeta) *Table {
	return &Table{
		meta:  meta,
		cols:  map[string]*Series{},
		metas: map[string]tcapi.VariableMeta{},
	}
}

// Meta returns the table-level metadata.
func (t *Table) Meta() tcapi.TableMeta { return t.meta }

// SetMeta replaces the table-level metadata. The primary key list is
// managed through SetPrimaryKey and is preserved across this call.
func (t *Table) SetMeta(meta tcapi.TableMeta) {
	meta.PrimaryKey = t.meta.PrimaryKey
	t.meta = meta
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	return append([]string(nil), t.names...)
}

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.names) }

// Len returns the number of rows.
func (t *Table) Len() int {
	if len(t.names) == 0 {
		return 0
	}
	return t.cols[t.names[0]].Len()
}

// PrimaryKey returns the ordered index column names, empty when none set.
func (t *Table) PrimaryKey() []string {
	return append([]string(nil), t.meta.PrimaryKey...)
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// Column returns the named column as a Series carrying a rider copy of
// the column's metadata, so that assigning it into another table (or the
// same one under a new name) propagates provenance by default.
//
// Errors:
//
//    - tabcat-error-not-found -- when no such column exists
func (t *Table) Column(name string) (*Series, error) {
	s, ok := t.cols[name]
	if !ok {
		return nil, tcapi.ErrorNotFound("column "+name, t.meta.ShortName)
	}
	return s.WithMeta(t.metas[name]), nil
}

// VariableMeta returns the metadata for the named column.
//
// Errors:
//
//    - tabcat-error-not-found -- when no such column exists
func (t *Table) VariableMeta(name string) (tcapi.VariableMeta, error) {
	m, ok := t.metas[name]
	if !ok {
		return tcapi.VariableMeta{}, tcapi.ErrorNotFound("column "+name, t.meta.ShortName)
	}
	return m.Copy(), nil
}

// SetVariableMeta replaces the metadata for the named column.
//
// Errors:
//
//    - tabcat-error-not-found -- when no such column exists
func (t *Table) SetVariableMeta(name string, m tcapi.VariableMeta) error {
	if _, ok := t.cols[name]; !ok {
		return tcapi.ErrorNotFound("column "+name, t.meta.ShortName)
	}
	t.metas[name] = m.Copy()
	return nil
}

// AddColumn appends a new column. The column starts with a copy of the
// Series' metadata rider if it has one, else with empty metadata.
//
// Errors:
//
//    - tabcat-error-validation -- when the name is empty or the length does
//      not match the table's row count
//    - tabcat-error-already-exists -- when a column of that name is present
func (t *Table) AddColumn(name string, s *Series) error {
	if name == "" {
		return tcapi.ErrorUnnamedColumn()
	}
	if _, ok := t.cols[name]; ok {
		return tcapi.ErrorAlreadyExists("column "+name, t.meta.ShortName)
	}
	return t.setColumn(name, s, true)
}

// SetColumn adds or replaces a column: the table equivalent of
// `t["b"] = t["a"]`. A replaced column's previous metadata is discarded
// in favor of the incoming Series' rider (or empty metadata for a
// freshly computed Series with no provenance attached).
//
// Errors:
//
//    - tabcat-error-validation -- when the name is empty or the length
//      does not match the table's row count
func (t *Table) SetColumn(name string, s *Series) error {
	if name == "" {
		return tcapi.ErrorUnnamedColumn()
	}
	_, exists := t.cols[name]
	return t.setColumn(name, s, !exists)
}

func (t *Table) setColumn(name string, s *Series, appendName bool) error {
	if len(t.names) > 0 && s.Len() != t.Len() {
		return tcapi.ErrorValidation(
			fmt.Sprintf("column %q has %d rows, table has %d", name, s.Len(), t.Len()),
			[2]string{"column", name})
	}
	stored := s.shallowCopy()
	stored.meta = nil
	t.cols[name] = stored
	if s.meta != nil {
		t.metas[name] = s.meta.Copy()
	} else {
		t.metas[name] = tcapi.VariableMeta{}
	}
	if appendName {
		t.names = append(t.names, name)
	}
	return nil
}

// Rename moves columns to new names. Metadata moves with each column and
// the old key is removed atomically: either all renames apply or none do.
//
// Errors:
//
//    - tabcat-error-not-found -- when a source column does not exist
//    - tabcat-error-validation -- when a target name is empty or two
//      columns are renamed to the same name
//    - tabcat-error-already-exists -- when a target name collides with a
//      surviving column
func (t *Table) Rename(renames map[string]string) error {
	// validate the whole mapping before touching anything
	targets := map[string]bool{}
	for old, new := range renames {
		if _, ok := t.cols[old]; !ok {
			return tcapi.ErrorNotFound("column "+old, t.meta.ShortName)
		}
		if new == "" {
			return tcapi.ErrorUnnamedColumn()
		}
		if targets[new] {
			return tcapi.ErrorValidation(fmt.Sprintf("two columns renamed to %q", new),
				[2]string{"column", new})
		}
		targets[new] = true
		if _, ok := t.cols[new]; ok {
			if _, alsoRenamed := renames[new]; !alsoRenamed {
				return tcapi.ErrorAlreadyExists("column "+new, t.meta.ShortName)
			}
		}
	}

	newNames := make([]string, len(t.names))
	newCols := make(map[string]*Series, len(t.cols))
	newMetas := make(map[string]tcapi.VariableMeta, len(t.metas))
	for i, name := range t.names {
		to := name
		if n, ok := renames[name]; ok {
			to = n
		}
		newNames[i] = to
		newCols[to] = t.cols[name]
		newMetas[to] = t.metas[name]
	}
	for i, k := range t.meta.PrimaryKey {
		if n, ok := renames[k]; ok {
			t.meta.PrimaryKey[i] = n
		}
	}
	t.names = newNames
	t.cols = newCols
	t.metas = newMetas
	return nil
}

// Select returns a new table containing only the named columns, in the
// given order. Primary key columns survive selection implicitly, the way
// an index survives subsetting. Metadata for surviving columns is copied
// unchanged.
//
// Errors:
//
//    - tabcat-error-not-found -- when a named column does not exist
func (t *Table) Select(names ...string) (*Table, error) {
	keep := append([]string(nil), t.meta.PrimaryKey...)
	for _, n := range names {
		if _, ok := t.cols[n]; !ok {
			return nil, tcapi.ErrorNotFound("column "+n, t.meta.ShortName)
		}
		inKey := false
		for _, k := range t.meta.PrimaryKey {
			if k == n {
				inKey = true
				break
			}
		}
		if !inKey {
			keep = append(keep, n)
		}
	}
	out := New(t.meta.Copy())
	out.names = keep
	for _, n := range keep {
		out.cols[n] = t.cols[n]
		out.metas[n] = t.metas[n].Copy()
	}
	return out, nil
}

// Head returns a new table with at most n rows. Negative n is treated
// as zero.
func (t *Table) Head(n int) *Table {
	if n < 0 {
		n = 0
	}
	if n > t.Len() {
		n = t.Len()
	}
	idxs := make([]int, n)
	for i := range idxs {
		idxs[i] = i
	}
	return t.takeRows(idxs)
}

// Filter returns a new table containing the rows where mask is true.
//
// Errors:
//
//    - tabcat-error-validation -- when the mask length does not match the
//      table's row count
func (t *Table) Filter(mask []bool) (*Table, error) {
	if len(mask) != t.Len() {
		return nil, tcapi.ErrorValidation(
			fmt.Sprintf("filter mask length %d does not match table length %d", len(mask), t.Len()))
	}
	var idxs []int
	for i, keep := range mask {
		if keep {
			idxs = append(idxs, i)
		}
	}
	return t.takeRows(idxs), nil
}

func (t *Table) takeRows(idxs []int) *Table {
	out := New(t.meta.Copy())
	out.names = append([]string(nil), t.names...)
	for _, n := range t.names {
		out.cols[n] = t.cols[n].gather(idxs)
		out.metas[n] = t.metas[n].Copy()
	}
	return out
}

// SetPrimaryKey promotes the named columns to the table's index, in
// order. The combination of key values must uniquely identify each row.
//
// Errors:
//
//    - tabcat-error-not-found -- when a key column does not exist
//    - tabcat-error-validation -- when the key columns do not uniquely
//      identify rows
func (t *Table) SetPrimaryKey(cols ...string) error {
	for _, c := range cols {
		if _, ok := t.cols[c]; !ok {
			return tcapi.ErrorNotFound("column "+c, t.meta.ShortName)
		}
	}
	if len(cols) > 0 {
		seen := make(map[string]bool, t.Len())
		for i := 0; i < t.Len(); i++ {
			k := t.rowKey(cols, i)
			if seen[k] {
				return tcapi.ErrorAmbiguousIndex(
					fmt.Sprintf("key columns %v do not uniquely identify rows (duplicate at row %d)", cols, i))
			}
			seen[k] = true
		}
	}
	t.meta.PrimaryKey = append([]string(nil), cols...)
	return nil
}

// ResetPrimaryKey demotes the index columns back to ordinary columns.
func (t *Table) ResetPrimaryKey() {
	t.meta.PrimaryKey = nil
}

func (t *Table) rowKey(cols []string, i int) string {
	parts := make([]string, len(cols))
	for j, c := range cols {
		parts[j] = t.cols[c].keyPart(i)
	}
	return strings.Join(parts, "\x00")
}

// Copy returns a deep copy of the table.
func (t *Table) Copy() *Table {
	out := New(t.meta.Copy())
	out.names = append([]string(nil), t.names...)
	for _, n := range t.names {
		out.cols[n] = t.cols[n].gather(identity(t.Len()))
		out.metas[n] = t.metas[n].Copy()
	}
	return out
}

func identity(n int) []int {
	idxs := make([]int, n)
	for i := range idxs {
		idxs[i] = i
	}
	return idxs
}

// Equal reports whether two tables have the same columns (in order), the
// same data, the same per-column metadata, and the same table metadata.
func (t *Table) Equal(o *Table) bool {
	if !reflect.DeepEqual(t.names, o.names) {
		return false
	}
	if !reflect.DeepEqual(normalizeTableMeta(t.meta), normalizeTableMeta(o.meta)) {
		return false
	}
	for _, n := range t.names {
		if !t.cols[n].Equal(o.cols[n]) {
			return false
		}
		if !reflect.DeepEqual(t.metas[n], o.metas[n]) {
			return false
		}
	}
	return true
}

// normalizeTableMeta strips the dataset back-reference and maps an empty
// primary key slice to nil so Equal doesn't distinguish them.
func normalizeTableMeta(m tcapi.TableMeta) tcapi.TableMeta {
	m.Dataset = nil
	if len(m.PrimaryKey) == 0 {
		m.PrimaryKey = nil
	}
	return m
}

// String renders the table row by row. Meant for previews and test
// failure output, not serialization.
func (t *Table) String() string {
	var b strings.Builder
	b.WriteString(strings.Join(t.names, "\t"))
	for i := 0; i < t.Len(); i++ {
		b.WriteByte('\n')
		for j, n := range t.names {
			if j > 0 {
				b.WriteByte('\t')
			}
			s := t.cols[n]
			if s.IsNull(i) {
				b.WriteString("null")
				continue
			}
			fmt.Fprintf(&b, "%v", s.Value(i))
		}
	}
	return b.String()
}
