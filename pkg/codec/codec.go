// Package codec persists Tables: row/column data as a flat columnar file
// (feather, i.e. the Arrow IPC file format, and/or parquet) plus a JSON
// sidecar holding the table metadata, the primary key, the column schema,
// and one VariableMeta per column.
//
// The columnar formats have no index concept, so primary key columns are
// written as ordinary columns and the key is re-established from the
// sidecar on load. Load(Save(T)) round-trips both data and metadata.
package codec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	pqfile "github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/tabletools/tabcat/pkg/table"
	"github.com/tabletools/tabcat/tcapi"
)

// SidecarSuffix is appended to a table's path stem to form its metadata
// sidecar filename.
const SidecarSuffix = ".meta.json"

// schemaField is one entry of the sidecar's schema section: enough to
// rebuild a table's structure without touching the columnar payload.
type schemaField struct {
	Name  string `json:"name"`
	DType string `json:"dtype"`
}

// sidecar is the on-disk shape of `<name>.meta.json`.
type sidecar struct {
	tcapi.TableMeta
	Schema []schemaField                 `json:"schema,omitempty"`
	Fields map[string]tcapi.VariableMeta `json:"fields"`
}

// SidecarPath returns the sidecar filename for a table path stem.
func SidecarPath(pathStem string) string { return pathStem + SidecarSuffix }

// FormatPath returns the columnar filename for a table path stem and format.
func FormatPath(pathStem string, f tcapi.Format) string {
	return pathStem + "." + f.Ext()
}

// Save writes the table's data in each requested columnar format and its
// metadata sidecar. When no formats are given, feather is written. All
// writes go through a temp file and an atomic rename, and validation
// happens before any write, so a failed save never leaves partial state
// at the destination paths.
//
// Errors:
//
//    - tabcat-error-validation -- when the table has no columns, or holds
//      a dtype the columnar formats cannot represent
//    - tabcat-error-io -- when writing any of the files fails
//    - tabcat-error-serialization -- when encoding the sidecar fails
func Save(t *table.Table, pathStem string, formats ...tcapi.Format) error {
	if t.Width() == 0 {
		return tcapi.ErrorEmptyTable(pathStem)
	}
	if len(formats) == 0 {
		formats = []tcapi.Format{tcapi.FormatFeather}
	}

	rec, err := toRecord(t)
	if err != nil {
		return err
	}
	defer rec.Release()

	for _, f := range formats {
		path := FormatPath(pathStem, f)
		var buf bytes.Buffer
		switch f {
		case tcapi.FormatFeather:
			err = writeFeather(&buf, rec)
		case tcapi.FormatParquet:
			err = writeParquet(&buf, rec)
		default:
			return tcapi.ErrorValidation(fmt.Sprintf("unknown table format %q", f))
		}
		if err != nil {
			return tcapi.ErrorSerialization(fmt.Sprintf("encoding %s file", f), err)
		}
		if err := WriteFileAtomic(path, buf.Bytes()); err != nil {
			return err
		}
	}

	return saveSidecar(t, pathStem)
}

func saveSidecar(t *table.Table, pathStem string) error {
	sc := sidecar{
		TableMeta: t.Meta(),
		Fields:    map[string]tcapi.VariableMeta{},
	}
	sc.Dataset = nil
	for _, n := range t.Names() {
		m, err := t.VariableMeta(n)
		if err != nil {
			return err
		}
		sc.Fields[n] = m
		col, err := t.Column(n)
		if err != nil {
			return err
		}
		sc.Schema = append(sc.Schema, schemaField{Name: n, DType: string(col.DType())})
	}
	serial, err := json.MarshalIndent(&sc, "", "  ")
	if err != nil {
		return tcapi.ErrorSerialization("encoding table sidecar", err)
	}
	return WriteFileAtomic(SidecarPath(pathStem), append(serial, '\n'))
}

func writeFeather(buf *bytes.Buffer, rec arrow.Record) error {
	w, err := ipc.NewFileWriter(buf, ipc.WithSchema(rec.Schema()))
	if err != nil {
		return err
	}
	if err := w.Write(rec); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func writeParquet(buf *bytes.Buffer, rec arrow.Record) error {
	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())
	w, err := pqarrow.NewFileWriter(rec.Schema(), buf, props, arrowProps)
	if err != nil {
		return err
	}
	if err := w.Write(rec); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Load reads the table at pathStem in its best available format
// (feather preferred) and layers the sidecar metadata on top.
//
// Errors:
//
//    - tabcat-error-not-found -- when no columnar file exists at the stem
//    - tabcat-error-io -- when reading fails
//    - tabcat-error-integrity -- when the sidecar is corrupt or the
//      recorded primary key is not unique in the data
//    - tabcat-error-serialization -- when decoding the columnar file fails
//    - tabcat-error-validation -- when the file holds unsupported column types
func Load(pathStem string) (*table.Table, error) {
	for _, f := range tcapi.FormatPreference {
		path := FormatPath(pathStem, f)
		if _, err := os.Stat(path); err == nil {
			return LoadFormat(pathStem, f)
		}
	}
	return nil, tcapi.ErrorNotFound("table", pathStem)
}

// LoadFormat reads the table at pathStem in the given format.
//
// Errors:
//
//    - tabcat-error-not-found -- when the columnar file does not exist
//    - tabcat-error-io -- when reading fails
//    - tabcat-error-integrity -- when the sidecar is corrupt or the
//      recorded primary key is not unique in the data
//    - tabcat-error-serialization -- when decoding the columnar file fails
//    - tabcat-error-validation -- when the file holds unsupported column types
func LoadFormat(pathStem string, f tcapi.Format) (*table.Table, error) {
	path := FormatPath(pathStem, f)
	var (
		t   *table.Table
		err error
	)
	switch f {
	case tcapi.FormatFeather:
		t, err = readFeather(path)
	case tcapi.FormatParquet:
		t, err = readParquet(path)
	default:
		return nil, tcapi.ErrorValidation(fmt.Sprintf("unknown table format %q", f))
	}
	if err != nil {
		return nil, err
	}
	if err := applySidecar(t, pathStem); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadHeader rebuilds the table's structure (columns, dtypes, metadata,
// primary key) from the sidecar alone, returning a zero-row table
// without touching the columnar payload.
//
// Errors:
//
//    - tabcat-error-not-found -- when the sidecar does not exist
//    - tabcat-error-io -- when reading the sidecar fails
//    - tabcat-error-integrity -- when the sidecar is corrupt or lacks a
//      schema section
//    - tabcat-error-validation -- when the sidecar names an unknown dtype
func LoadHeader(pathStem string) (*table.Table, error) {
	sc, err := readSidecar(pathStem)
	if err != nil {
		return nil, err
	}
	if len(sc.Schema) == 0 {
		return nil, tcapi.ErrorIntegrity(SidecarPath(pathStem), "sidecar has no schema section; cannot build header-only table")
	}
	t := table.New(tcapi.TableMeta{})
	for _, fld := range sc.Schema {
		dt, err := table.ParseDType(fld.DType)
		if err != nil {
			return nil, err
		}
		if err := t.AddColumn(fld.Name, emptySeries(dt)); err != nil {
			return nil, err
		}
	}
	return t, applySidecarParsed(t, sc, pathStem)
}

func emptySeries(dt table.DType) *table.Series {
	switch dt {
	case table.DTypeString:
		return table.NewStrings()
	case table.DTypeInt64:
		return table.NewInts()
	case table.DTypeFloat64:
		return table.NewFloats()
	case table.DTypeBool:
		return table.NewBools()
	}
	return nil
}

// Formats reports which physical formats exist at pathStem, in
// preference order.
func Formats(pathStem string) []tcapi.Format {
	var out []tcapi.Format
	for _, f := range tcapi.FormatPreference {
		if _, err := os.Stat(FormatPath(pathStem, f)); err == nil {
			out = append(out, f)
		}
	}
	return out
}

func readFeather(path string) (*table.Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, tcapi.ErrorNotFound("table file", path)
		}
		return nil, tcapi.ErrorIo("reading feather file", path, err)
	}
	r, err := ipc.NewFileReader(bytes.NewReader(raw), ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, tcapi.ErrorSerialization("opening feather file "+path, err)
	}
	defer r.Close()
	recs := make([]arrow.Record, 0, r.NumRecords())
	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.RecordAt(i)
		if err != nil {
			return nil, tcapi.ErrorSerialization("reading feather record batch", err)
		}
		recs = append(recs, rec)
	}
	return fromRecords(r.Schema(), recs)
}

func readParquet(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, tcapi.ErrorNotFound("table file", path)
		}
		return nil, tcapi.ErrorIo("reading parquet file", path, err)
	}
	defer f.Close()
	pf, err := pqfile.NewParquetReader(f)
	if err != nil {
		return nil, tcapi.ErrorSerialization("opening parquet file "+path, err)
	}
	defer pf.Close()
	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
	if err != nil {
		return nil, tcapi.ErrorSerialization("opening parquet file "+path, err)
	}
	at, err := fr.ReadTable(context.Background())
	if err != nil {
		return nil, tcapi.ErrorSerialization("reading parquet file "+path, err)
	}
	defer at.Release()

	tr := array.NewTableReader(at, at.NumRows())
	defer tr.Release()
	var recs []arrow.Record
	for tr.Next() {
		rec := tr.Record()
		rec.Retain()
		defer rec.Release()
		recs = append(recs, rec)
	}
	if tr.Err() != nil {
		return nil, tcapi.ErrorSerialization("reading parquet file "+path, tr.Err())
	}
	return fromRecords(at.Schema(), recs)
}

func readSidecar(pathStem string) (*sidecar, error) {
	path := SidecarPath(pathStem)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, tcapi.ErrorNotFound("table sidecar", path)
		}
		return nil, tcapi.ErrorIo("reading table sidecar", path, err)
	}
	sc := &sidecar{}
	if err := json.Unmarshal(raw, sc); err != nil {
		return nil, tcapi.ErrorIntegrity(path, "sidecar JSON is corrupt: "+err.Error())
	}
	return sc, nil
}

func applySidecar(t *table.Table, pathStem string) error {
	sc, err := readSidecar(pathStem)
	if err != nil {
		return err
	}
	return applySidecarParsed(t, sc, pathStem)
}

func applySidecarParsed(t *table.Table, sc *sidecar, pathStem string) error {
	meta := sc.TableMeta
	meta.PrimaryKey = nil
	t.SetMeta(meta)
	for name, m := range sc.Fields {
		if !t.HasColumn(name) {
			// metadata map must never hold keys absent from the data
			return tcapi.ErrorIntegrity(SidecarPath(pathStem),
				fmt.Sprintf("sidecar describes column %q which is not in the data", name))
		}
		if err := t.SetVariableMeta(name, m); err != nil {
			return err
		}
	}
	if len(sc.TableMeta.PrimaryKey) > 0 {
		if err := t.SetPrimaryKey(sc.TableMeta.PrimaryKey...); err != nil {
			return tcapi.ErrorIntegrity(SidecarPath(pathStem),
				"recorded primary key is not unique in the data: "+err.Error())
		}
	}
	return nil
}

// WriteFileAtomic writes data to a temp file in the destination's
// directory, syncs, then renames into place, so a reader never observes
// a partially written file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return tcapi.ErrorIo("creating temp file", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return tcapi.ErrorIo("writing temp file", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return tcapi.ErrorIo("syncing temp file", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return tcapi.ErrorIo("closing temp file", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return tcapi.ErrorIo("renaming temp file into place", path, err)
	}
	return nil
}
