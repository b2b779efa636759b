package codec

import (
	"bytes"

	"github.com/tabletools/tabcat/pkg/table"
	"github.com/tabletools/tabcat/tcapi"
)

// WriteFeatherFile writes a table's data (no sidecar) as a standalone
// feather file with an atomic rename. Used for the catalog index files,
// which carry their own metadata conventions.
//
// Errors:
//
//    - tabcat-error-validation -- when the table holds unsupported dtypes
//    - tabcat-error-serialization -- when encoding fails
//    - tabcat-error-io -- when writing fails
func WriteFeatherFile(path string, t *table.Table) error {
	rec, err := toRecord(t)
	if err != nil {
		return err
	}
	defer rec.Release()
	var buf bytes.Buffer
	if err := writeFeather(&buf, rec); err != nil {
		return tcapi.ErrorSerialization("encoding feather file", err)
	}
	return WriteFileAtomic(path, buf.Bytes())
}

// ReadFeatherFile reads a standalone feather file's data. No sidecar is
// consulted; column metadata comes back empty.
//
// Errors:
//
//    - tabcat-error-not-found -- when the file does not exist
//    - tabcat-error-io -- when reading fails
//    - tabcat-error-serialization -- when decoding fails
//    - tabcat-error-validation -- when the file holds unsupported column types
func ReadFeatherFile(path string) (*table.Table, error) {
	return readFeather(path)
}
