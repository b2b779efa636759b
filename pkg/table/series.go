package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tabletools/tabcat/tcapi"
)

// DType names the primitive element type of a Series.
type DType string

const (
	DTypeString  DType = "string"
	DTypeInt64   DType = "int64"
	DTypeFloat64 DType = "float64"
	DTypeBool    DType = "bool"
)

// ParseDType validates a dtype name read from a sidecar file.
//
// Errors:
//
//    - tabcat-error-validation -- when the name is not a known dtype
func ParseDType(s string) (DType, error) {
	switch DType(s) {
	case DTypeString, DTypeInt64, DTypeFloat64, DTypeBool:
		return DType(s), nil
	}
	return "", tcapi.ErrorValidation(fmt.Sprintf("unknown dtype %q", s), [2]string{"dtype", s})
}

// Series is one column's worth of values: a same-length array of a single
// primitive type, plus an optional validity mask (nil means all valid).
//
// A Series taken out of a Table carries a rider copy of that column's
// metadata, which is how provenance follows values through assignment:
// setting such a Series as a new column copies the rider, while a freshly
// built Series carries none and the new column starts empty.
type Series struct {
	dtype  DType
	strs   []string
	ints   []int64
	floats []float64
	bools  []bool
	valid  []bool

	meta *tcapi.VariableMeta
}

// NewStrings builds a string Series with all values valid.
func NewStrings(vals ...string) *Series {
	return &Series{dtype: DTypeString, strs: vals}
}

// NewInts builds an int64 Series with all values valid.
func NewInts(vals ...int64) *Series {
	return &Series{dtype: DTypeInt64, ints: vals}
}

// NewFloats builds a float64 Series with all values valid.
func NewFloats(vals ...float64) *Series {
	return &Series{dtype: DTypeFloat64, floats: vals}
}

// NewBools builds a bool Series with all values valid.
func NewBools(vals ...bool) *Series {
	return &Series{dtype: DTypeBool, bools: vals}
}

// WithValidity returns a copy of the Series using the given validity
// mask. A nil mask marks every value valid. The mask length must equal
// the series length.
//
// Errors:
//
//    - tabcat-error-validation -- when the mask length does not match
func (s *Series) WithValidity(valid []bool) (*Series, error) {
	if valid != nil && len(valid) != s.Len() {
		return nil, tcapi.ErrorValidation(
			fmt.Sprintf("validity mask length %d does not match series length %d", len(valid), s.Len()))
	}
	out := s.shallowCopy()
	out.valid = append([]bool(nil), valid...)
	return out, nil
}

// WithMeta returns a copy of the Series carrying the given metadata rider.
func (s *Series) WithMeta(m tcapi.VariableMeta) *Series {
	out := s.shallowCopy()
	mc := m.Copy()
	out.meta = &mc
	return out
}

// Meta returns the metadata rider, or nil if the Series carries none.
func (s *Series) Meta() *tcapi.VariableMeta { return s.meta }

func (s *Series) shallowCopy() *Series {
	out := *s
	return &out
}

// DType returns the series element type.
func (s *Series) DType() DType { return s.dtype }

// Len returns the number of elements, including nulls.
func (s *Series) Len() int {
	switch s.dtype {
	case DTypeString:
		return len(s.strs)
	case DTypeInt64:
		return len(s.ints)
	case DTypeFloat64:
		return len(s.floats)
	case DTypeBool:
		return len(s.bools)
	}
	return 0
}

// IsNull reports whether element i is null.
func (s *Series) IsNull(i int) bool {
	return s.valid != nil && !s.valid[i]
}

// Value returns element i boxed as interface{}, or nil when null.
func (s *Series) Value(i int) interface{} {
	if s.IsNull(i) {
		return nil
	}
	switch s.dtype {
	case DTypeString:
		return s.strs[i]
	case DTypeInt64:
		return s.ints[i]
	case DTypeFloat64:
		return s.floats[i]
	case DTypeBool:
		return s.bools[i]
	}
	return nil
}

// Strings returns the backing string slice. Valid only for string series.
func (s *Series) Strings() []string { return s.strs }

// Ints returns the backing int64 slice. Valid only for int64 series.
func (s *Series) Ints() []int64 { return s.ints }

// Floats returns the backing float64 slice. Valid only for float64 series.
func (s *Series) Floats() []float64 { return s.floats }

// Bools returns the backing bool slice. Valid only for bool series.
func (s *Series) Bools() []bool { return s.bools }

// Validity returns the validity mask, nil when all values are valid.
func (s *Series) Validity() []bool { return s.valid }

// keyPart renders element i for use inside a composite join/index key.
// Nulls render distinctly from any real value.
func (s *Series) keyPart(i int) string {
	if s.IsNull(i) {
		return "\x00null"
	}
	switch s.dtype {
	case DTypeString:
		return s.strs[i]
	case DTypeInt64:
		return strconv.FormatInt(s.ints[i], 10)
	case DTypeFloat64:
		return strconv.FormatFloat(s.floats[i], 'g', -1, 64)
	case DTypeBool:
		return strconv.FormatBool(s.bools[i])
	}
	return ""
}

// gather builds a new Series from the given row indices. An index of -1
// produces a null element; this is how joins fill unmatched rows.
func (s *Series) gather(idxs []int) *Series {
	out := &Series{dtype: s.dtype}
	needValid := false
	for _, i := range idxs {
		if i < 0 || (s.valid != nil && !s.valid[i]) {
			needValid = true
			break
		}
	}
	if needValid {
		out.valid = make([]bool, len(idxs))
	}
	switch s.dtype {
	case DTypeString:
		out.strs = make([]string, len(idxs))
	case DTypeInt64:
		out.ints = make([]int64, len(idxs))
	case DTypeFloat64:
		out.floats = make([]float64, len(idxs))
	case DTypeBool:
		out.bools = make([]bool, len(idxs))
	}
	for j, i := range idxs {
		if i < 0 || (s.valid != nil && !s.valid[i]) {
			// zero value already in place; mark invalid
			continue
		}
		if out.valid != nil {
			out.valid[j] = true
		}
		switch s.dtype {
		case DTypeString:
			out.strs[j] = s.strs[i]
		case DTypeInt64:
			out.ints[j] = s.ints[i]
		case DTypeFloat64:
			out.floats[j] = s.floats[i]
		case DTypeBool:
			out.bools[j] = s.bools[i]
		}
	}
	return out
}

// appendSeries concatenates two series of the same dtype.
func appendSeries(a, b *Series) (*Series, error) {
	if a.dtype != b.dtype {
		return nil, tcapi.ErrorValidation(
			fmt.Sprintf("cannot concatenate %s series with %s series", a.dtype, b.dtype))
	}
	out := &Series{dtype: a.dtype}
	out.strs = append(append([]string(nil), a.strs...), b.strs...)
	out.ints = append(append([]int64(nil), a.ints...), b.ints...)
	out.floats = append(append([]float64(nil), a.floats...), b.floats...)
	out.bools = append(append([]bool(nil), a.bools...), b.bools...)
	if a.valid != nil || b.valid != nil {
		out.valid = make([]bool, 0, a.Len()+b.Len())
		for i := 0; i < a.Len(); i++ {
			out.valid = append(out.valid, !a.IsNull(i))
		}
		for i := 0; i < b.Len(); i++ {
			out.valid = append(out.valid, !b.IsNull(i))
		}
	}
	return out, nil
}

// Equal reports element-wise equality, treating NaN as equal to NaN so
// that round-trip comparisons behave.
func (s *Series) Equal(o *Series) bool {
	if s.dtype != o.dtype || s.Len() != o.Len() {
		return false
	}
	for i := 0; i < s.Len(); i++ {
		if s.IsNull(i) != o.IsNull(i) {
			return false
		}
		if s.IsNull(i) {
			continue
		}
		switch s.dtype {
		case DTypeString:
			if s.strs[i] != o.strs[i] {
				return false
			}
		case DTypeInt64:
			if s.ints[i] != o.ints[i] {
				return false
			}
		case DTypeFloat64:
			if s.floats[i] != o.floats[i] && !(math.IsNaN(s.floats[i]) && math.IsNaN(o.floats[i])) {
				return false
			}
		case DTypeBool:
			if s.bools[i] != o.bools[i] {
				return false
			}
		}
	}
	return true
}

func (s *Series) String() string {
	parts := make([]string, 0, s.Len())
	for i := 0; i < s.Len(); i++ {
		if s.IsNull(i) {
			parts = append(parts, "null")
			continue
		}
		parts = append(parts, fmt.Sprintf("%v", s.Value(i)))
	}
	return fmt.Sprintf("%s[%s]", s.dtype, strings.Join(parts, " "))
}
