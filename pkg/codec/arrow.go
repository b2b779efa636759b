package codec

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/tabletools/tabcat/pkg/table"
	"github.com/tabletools/tabcat/tcapi"
)

// arrowType maps a table dtype onto its Arrow data type.
func arrowType(dt table.DType) (arrow.DataType, error) {
	switch dt {
	case table.DTypeString:
		return arrow.BinaryTypes.String, nil
	case table.DTypeInt64:
		return arrow.PrimitiveTypes.Int64, nil
	case table.DTypeFloat64:
		return arrow.PrimitiveTypes.Float64, nil
	case table.DTypeBool:
		return arrow.FixedWidthTypes.Boolean, nil
	}
	return nil, tcapi.ErrorValidation(fmt.Sprintf("dtype %q has no columnar representation", dt))
}

// tableDType maps an Arrow data type back onto a table dtype.
func tableDType(dt arrow.DataType) (table.DType, error) {
	switch dt.ID() {
	case arrow.STRING, arrow.LARGE_STRING:
		return table.DTypeString, nil
	case arrow.INT64:
		return table.DTypeInt64, nil
	case arrow.FLOAT64:
		return table.DTypeFloat64, nil
	case arrow.BOOL:
		return table.DTypeBool, nil
	}
	return "", tcapi.ErrorValidation(fmt.Sprintf("unsupported columnar type %s", dt))
}

// toRecord converts a Table into a single Arrow record batch. Primary key
// columns are already ordinary columns in our representation, so the
// record is flat; the sidecar is what remembers the key.
func toRecord(t *table.Table) (arrow.Record, error) {
	names := t.Names()
	fields := make([]arrow.Field, len(names))
	for i, n := range names {
		col, err := t.Column(n)
		if err != nil {
			return nil, err
		}
		at, err := arrowType(col.DType())
		if err != nil {
			return nil, err
		}
		fields[i] = arrow.Field{Name: n, Type: at, Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	mem := memory.NewGoAllocator()
	rb := array.NewRecordBuilder(mem, schema)
	defer rb.Release()
	for i, n := range names {
		col, err := t.Column(n)
		if err != nil {
			return nil, err
		}
		switch b := rb.Field(i).(type) {
		case *array.StringBuilder:
			for j, v := range col.Strings() {
				if col.IsNull(j) {
					b.AppendNull()
				} else {
					b.Append(v)
				}
			}
		case *array.Int64Builder:
			for j, v := range col.Ints() {
				if col.IsNull(j) {
					b.AppendNull()
				} else {
					b.Append(v)
				}
			}
		case *array.Float64Builder:
			for j, v := range col.Floats() {
				if col.IsNull(j) {
					b.AppendNull()
				} else {
					b.Append(v)
				}
			}
		case *array.BooleanBuilder:
			for j, v := range col.Bools() {
				if col.IsNull(j) {
					b.AppendNull()
				} else {
					b.Append(v)
				}
			}
		default:
			return nil, tcapi.ErrorValidation(fmt.Sprintf("unsupported builder for column %q", n))
		}
	}
	return rb.NewRecord(), nil
}

// fromRecords rebuilds column data from one or more record batches
// sharing a schema. Metadata is not touched here; the caller layers the
// sidecar on top.
func fromRecords(schema *arrow.Schema, recs []arrow.Record) (*table.Table, error) {
	t := table.New(tcapi.TableMeta{})
	for i, field := range schema.Fields() {
		dt, err := tableDType(field.Type)
		if err != nil {
			return nil, err
		}
		s, err := columnFromChunks(dt, i, recs)
		if err != nil {
			return nil, err
		}
		if err := t.AddColumn(field.Name, s); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func columnFromChunks(dt table.DType, col int, recs []arrow.Record) (*table.Series, error) {
	n := 0
	for _, r := range recs {
		n += int(r.NumRows())
	}
	valid := make([]bool, 0, n)
	hasNull := false

	var s *table.Series
	switch dt {
	case table.DTypeString:
		vals := make([]string, 0, n)
		for _, r := range recs {
			// parquet reads can surface strings as large_string
			var length int
			var at func(int) string
			var isNull func(int) bool
			switch arr := r.Column(col).(type) {
			case *array.String:
				length, at, isNull = arr.Len(), arr.Value, arr.IsNull
			case *array.LargeString:
				length, at, isNull = arr.Len(), arr.Value, arr.IsNull
			default:
				return nil, tcapi.ErrorValidation("column chunk is not a string array")
			}
			for j := 0; j < length; j++ {
				ok := !isNull(j)
				valid = append(valid, ok)
				hasNull = hasNull || !ok
				if ok {
					vals = append(vals, at(j))
				} else {
					vals = append(vals, "")
				}
			}
		}
		s = table.NewStrings(vals...)
	case table.DTypeInt64:
		vals := make([]int64, 0, n)
		for _, r := range recs {
			arr, ok := r.Column(col).(*array.Int64)
			if !ok {
				return nil, tcapi.ErrorValidation("column chunk is not an int64 array")
			}
			for j := 0; j < arr.Len(); j++ {
				ok := !arr.IsNull(j)
				valid = append(valid, ok)
				hasNull = hasNull || !ok
				if ok {
					vals = append(vals, arr.Value(j))
				} else {
					vals = append(vals, 0)
				}
			}
		}
		s = table.NewInts(vals...)
	case table.DTypeFloat64:
		vals := make([]float64, 0, n)
		for _, r := range recs {
			arr, ok := r.Column(col).(*array.Float64)
			if !ok {
				return nil, tcapi.ErrorValidation("column chunk is not a float64 array")
			}
			for j := 0; j < arr.Len(); j++ {
				ok := !arr.IsNull(j)
				valid = append(valid, ok)
				hasNull = hasNull || !ok
				if ok {
					vals = append(vals, arr.Value(j))
				} else {
					vals = append(vals, 0)
				}
			}
		}
		s = table.NewFloats(vals...)
	case table.DTypeBool:
		vals := make([]bool, 0, n)
		for _, r := range recs {
			arr, ok := r.Column(col).(*array.Boolean)
			if !ok {
				return nil, tcapi.ErrorValidation("column chunk is not a boolean array")
			}
			for j := 0; j < arr.Len(); j++ {
				ok := !arr.IsNull(j)
				valid = append(valid, ok)
				hasNull = hasNull || !ok
				if ok {
					vals = append(vals, arr.Value(j))
				} else {
					vals = append(vals, false)
				}
			}
		}
		s = table.NewBools(vals...)
	}
	if !hasNull {
		return s, nil
	}
	return s.WithValidity(valid)
}
