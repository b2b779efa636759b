// Package dataset handles the on-disk layout of one dataset: a directory
// with a DatasetMeta in `index.json` at its root and one columnar file
// plus `<name>.meta.json` sidecar per table.
package dataset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tabletools/tabcat/pkg/codec"
	"github.com/tabletools/tabcat/pkg/table"
	"github.com/tabletools/tabcat/tcapi"
)

// MetaFilename marks a directory as a dataset root.
const MetaFilename = "index.json"

// Dataset is a handle on one dataset directory. The metadata is loaded
// eagerly when the handle is opened and held as owned state.
type Dataset struct {
	dir  string
	meta tcapi.DatasetMeta
}

// Create makes the dataset directory (if needed) and writes its
// index.json.
//
// Errors:
//
//    - tabcat-error-io -- when the directory or metadata file cannot be written
//    - tabcat-error-serialization -- when encoding the metadata fails
func Create(dir string, meta tcapi.DatasetMeta) (*Dataset, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, tcapi.ErrorIo("creating dataset directory", dir, err)
	}
	d := &Dataset{dir: dir, meta: meta}
	if err := d.saveMeta(); err != nil {
		return nil, err
	}
	return d, nil
}

// Open loads an existing dataset's metadata.
//
// Errors:
//
//    - tabcat-error-not-found -- when the directory has no index.json
//    - tabcat-error-io -- when reading the metadata fails
//    - tabcat-error-integrity -- when the metadata JSON is corrupt
func Open(dir string) (*Dataset, error) {
	path := filepath.Join(dir, MetaFilename)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, tcapi.ErrorNotFound("dataset", dir)
		}
		return nil, tcapi.ErrorIo("reading dataset metadata", path, err)
	}
	var meta tcapi.DatasetMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, tcapi.ErrorIntegrity(path, "dataset metadata JSON is corrupt: "+err.Error())
	}
	return &Dataset{dir: dir, meta: meta}, nil
}

// IsRoot reports whether dir is a dataset root, i.e. contains index.json.
func IsRoot(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, MetaFilename))
	return err == nil
}

// Dir returns the dataset's directory.
func (d *Dataset) Dir() string { return d.dir }

// Meta returns the dataset's metadata.
func (d *Dataset) Meta() tcapi.DatasetMeta { return d.meta }

// SetMeta replaces the dataset metadata and persists it.
//
// Errors:
//
//    - tabcat-error-io -- when the metadata file cannot be written
//    - tabcat-error-serialization -- when encoding the metadata fails
func (d *Dataset) SetMeta(meta tcapi.DatasetMeta) error {
	d.meta = meta
	return d.saveMeta()
}

func (d *Dataset) saveMeta() error {
	serial, err := json.MarshalIndent(&d.meta, "", "  ")
	if err != nil {
		return tcapi.ErrorSerialization("encoding dataset metadata", err)
	}
	return codec.WriteFileAtomic(filepath.Join(d.dir, MetaFilename), append(serial, '\n'))
}

// AddTable saves a table into the dataset. The table must have a short
// name; its metadata gains a back-reference to this dataset so variables
// can fall back to dataset-level defaults.
//
// Errors:
//
//    - tabcat-error-validation -- when the table has no short name or no columns
//    - tabcat-error-io -- when writing fails
//    - tabcat-error-serialization -- when encoding fails
func (d *Dataset) AddTable(t *table.Table, formats ...tcapi.Format) error {
	meta := t.Meta()
	if meta.ShortName == "" {
		return tcapi.ErrorValidation("table has no short_name; cannot place it in a dataset")
	}
	meta.Dataset = &d.meta
	t.SetMeta(meta)
	return codec.Save(t, filepath.Join(d.dir, meta.ShortName), formats...)
}

// Table loads the named table from the dataset.
//
// Errors:
//
//    - tabcat-error-not-found -- when the table does not exist
//    - tabcat-error-io -- when reading fails
//    - tabcat-error-integrity -- when the sidecar is corrupt
//    - tabcat-error-serialization -- when decoding fails
//    - tabcat-error-validation -- when the file holds unsupported column types
func (d *Dataset) Table(name string) (*table.Table, error) {
	t, err := codec.Load(filepath.Join(d.dir, name))
	if err != nil {
		return nil, err
	}
	meta := t.Meta()
	meta.Dataset = &d.meta
	t.SetMeta(meta)
	return t, nil
}

// TableNames lists the logical tables in the dataset, sorted, by scanning
// for metadata sidecars.
//
// Errors:
//
//    - tabcat-error-io -- when the directory cannot be read
func (d *Dataset) TableNames() ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, tcapi.ErrorIo("listing dataset directory", d.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), codec.SidecarSuffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), codec.SidecarSuffix))
	}
	sort.Strings(names)
	return names, nil
}
