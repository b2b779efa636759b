package table

import (
	"fmt"

	"github.com/tabletools/tabcat/tcapi"
)

// JoinKind selects which rows a join keeps.
type JoinKind string

const (
	JoinInner JoinKind = "inner"
	JoinLeft  JoinKind = "left"
	JoinOuter JoinKind = "outer"
)

// Suffixes appended to colliding column names; the suffixed column from
// each side keeps that side's metadata.
const (
	leftSuffix  = "_x"
	rightSuffix = "_y"
)

// Join combines two tables on shared key columns.
//
// Metadata rules: key columns keep the metadata of the left table; value
// columns keep the metadata of their originating table; colliding value
// column names are suffixed ("_x"/"_y") and each suffixed column keeps
// its own table's metadata. Nothing is ever merged silently.
//
// Row rules: inner keeps rows whose key appears on both sides, left keeps
// every left row (unmatched right columns become null), outer
// additionally appends unmatched right rows (left-first ordering, so the
// result is deterministic).
//
// The result has no primary key; callers re-establish one if wanted.
//
// Errors:
//
//    - tabcat-error-not-found -- when a key column is missing from either side
//    - tabcat-error-validation -- when the key columns have different
//      dtypes on the two sides, or `on` is empty
func Join(left, right *Table, on []string, how JoinKind) (*Table, error) {
	if len(on) == 0 {
		return nil, tcapi.ErrorValidation("join requires at least one key column")
	}
	for _, k := range on {
		ls, ok := left.cols[k]
		if !ok {
			return nil, tcapi.ErrorNotFound("join key column "+k, left.meta.ShortName)
		}
		rs, ok := right.cols[k]
		if !ok {
			return nil, tcapi.ErrorNotFound("join key column "+k, right.meta.ShortName)
		}
		if ls.DType() != rs.DType() {
			return nil, tcapi.ErrorValidation(
				fmt.Sprintf("join key %q has dtype %s on the left but %s on the right", k, ls.DType(), rs.DType()),
				[2]string{"column", k})
		}
	}

	// hash the right side's keys
	rightRows := map[string][]int{}
	for i := 0; i < right.Len(); i++ {
		k := right.rowKey(on, i)
		rightRows[k] = append(rightRows[k], i)
	}

	// pair up row indices; -1 marks a missing side
	var lIdx, rIdx []int
	rightMatched := map[int]bool{}
	for i := 0; i < left.Len(); i++ {
		matches := rightRows[left.rowKey(on, i)]
		if len(matches) == 0 {
			if how == JoinLeft || how == JoinOuter {
				lIdx = append(lIdx, i)
				rIdx = append(rIdx, -1)
			}
			continue
		}
		for _, j := range matches {
			lIdx = append(lIdx, i)
			rIdx = append(rIdx, j)
			rightMatched[j] = true
		}
	}
	if how == JoinOuter {
		for j := 0; j < right.Len(); j++ {
			if !rightMatched[j] {
				lIdx = append(lIdx, -1)
				rIdx = append(rIdx, j)
			}
		}
	}

	keySet := map[string]bool{}
	for _, k := range on {
		keySet[k] = true
	}
	collides := map[string]bool{}
	for _, n := range left.names {
		if keySet[n] {
			continue
		}
		if right.HasColumn(n) {
			collides[n] = true
		}
	}

	out := New(tcapi.TableMeta{ShortName: left.meta.ShortName, Dataset: left.meta.Dataset})

	// key columns: values from whichever side has the row, metadata from the left
	for _, k := range on {
		merged := mergeKeyColumn(left.cols[k], right.cols[k], lIdx, rIdx)
		out.names = append(out.names, k)
		out.cols[k] = merged
		out.metas[k] = left.metas[k].Copy()
	}
	// left value columns
	for _, n := range left.names {
		if keySet[n] {
			continue
		}
		name := n
		if collides[n] {
			name = n + leftSuffix
		}
		out.names = append(out.names, name)
		out.cols[name] = left.cols[n].gather(lIdx)
		out.metas[name] = left.metas[n].Copy()
	}
	// right value columns
	for _, n := range right.names {
		if keySet[n] {
			continue
		}
		name := n
		if collides[n] {
			name = n + rightSuffix
		}
		out.names = append(out.names, name)
		out.cols[name] = right.cols[n].gather(rIdx)
		out.metas[name] = right.metas[n].Copy()
	}
	return out, nil
}

// mergeKeyColumn gathers a key column from the left side where present,
// falling back to the right side for outer-join rows the left never saw.
func mergeKeyColumn(ls, rs *Series, lIdx, rIdx []int) *Series {
	fromLeft := ls.gather(lIdx)
	for j := range lIdx {
		if lIdx[j] >= 0 {
			continue
		}
		i := rIdx[j]
		if rs.IsNull(i) {
			continue
		}
		if fromLeft.valid != nil {
			fromLeft.valid[j] = true
		}
		switch rs.dtype {
		case DTypeString:
			fromLeft.strs[j] = rs.strs[i]
		case DTypeInt64:
			fromLeft.ints[j] = rs.ints[i]
		case DTypeFloat64:
			fromLeft.floats[j] = rs.floats[i]
		case DTypeBool:
			fromLeft.bools[j] = rs.bools[i]
		}
	}
	return fromLeft
}

// Concat stacks tables with identical schemas. Column metadata is checked
// for consistency: a unit conflict between non-empty metadata blocks is a
// validation error, never silently resolved; otherwise the first
// non-empty metadata wins. The result has no primary key.
//
// Errors:
//
//    - tabcat-error-validation -- when schemas differ, or two tables carry
//      conflicting units for the same column
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, tcapi.ErrorValidation("nothing to concatenate")
	}
	first := tables[0]
	for _, t := range tables[1:] {
		if len(t.names) != len(first.names) {
			return nil, tcapi.ErrorValidation("cannot concatenate tables with different schemas")
		}
		for i, n := range first.names {
			if t.names[i] != n {
				return nil, tcapi.ErrorValidation(
					fmt.Sprintf("cannot concatenate: column %d is %q in one table and %q in another", i, n, t.names[i]))
			}
			if t.cols[n].DType() != first.cols[n].DType() {
				return nil, tcapi.ErrorValidation(
					fmt.Sprintf("cannot concatenate: column %q has dtype %s in one table and %s in another",
						n, first.cols[n].DType(), t.cols[n].DType()))
			}
		}
	}

	// validate metadata consistency before building anything
	metas := make(map[string]tcapi.VariableMeta, len(first.names))
	for _, n := range first.names {
		chosen := tcapi.VariableMeta{}
		for _, t := range tables {
			m := t.metas[n]
			if m.IsEmpty() {
				continue
			}
			if chosen.IsEmpty() {
				chosen = m
				continue
			}
			if m.Unit != "" && chosen.Unit != "" && m.Unit != chosen.Unit {
				return nil, tcapi.ErrorValidation(
					fmt.Sprintf("conflicting units for column %q: %q vs %q", n, chosen.Unit, m.Unit),
					[2]string{"column", n})
			}
		}
		metas[n] = chosen.Copy()
	}

	meta := first.meta.Copy()
	meta.PrimaryKey = nil
	out := New(meta)
	out.names = append([]string(nil), first.names...)
	for _, n := range first.names {
		acc := first.cols[n]
		for _, t := range tables[1:] {
			var err error
			acc, err = appendSeries(acc, t.cols[n])
			if err != nil {
				return nil, err
			}
		}
		out.cols[n] = acc
		out.metas[n] = metas[n]
	}
	return out, nil
}
