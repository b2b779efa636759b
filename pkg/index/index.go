// Package index builds and persists the catalog's per-channel table
// index. Each channel's index is one flat file listing every table in
// that channel: where it lives, which formats exist, its dimensions, and
// a content checksum. The feather rendition is the machine-efficient
// primary; a zstd-compressed JSON rendition is written alongside for
// tooling that cannot read feather.
package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"github.com/tabletools/tabcat/pkg/codec"
	"github.com/tabletools/tabcat/pkg/table"
	"github.com/tabletools/tabcat/tcapi"
)

// FormatVersion is the index format this package reads and writes. A
// client refuses to read an index declaring a newer version.
const FormatVersion = 1

// MetaFilename is the catalog-level metadata file at the catalog root.
const MetaFilename = "catalog.meta.json"

// CatalogMeta is the content of catalog.meta.json.
type CatalogMeta struct {
	FormatVersion int `json:"format_version"`
}

// Index is one channel's entries, held in memory.
type Index struct {
	Channel tcapi.Channel
	Entries []tcapi.CatalogEntry
}

// ChannelFilename returns the index filename for a channel: the feather
// rendition for FormatFeather, the compressed JSON rendition otherwise.
func ChannelFilename(ch tcapi.Channel) string {
	return fmt.Sprintf("catalog-%s.feather", ch)
}

// ChannelJSONFilename returns the channel's compressed JSON index filename.
func ChannelJSONFilename(ch tcapi.Channel) string {
	return fmt.Sprintf("catalog-%s.json.zst", ch)
}

// Sort orders entries by (table, dataset, version, namespace, channel,
// is_public) so that rebuilt indexes are reproducible byte for byte.
func (ix *Index) Sort() {
	sort.SliceStable(ix.Entries, func(i, j int) bool {
		a, b := ix.Entries[i], ix.Entries[j]
		if a.Table != b.Table {
			return a.Table < b.Table
		}
		if a.Dataset != b.Dataset {
			return a.Dataset < b.Dataset
		}
		if a.Version != b.Version {
			return a.Version < b.Version
		}
		if a.Namespace != b.Namespace {
			return a.Namespace < b.Namespace
		}
		if a.Channel != b.Channel {
			return a.Channel < b.Channel
		}
		return !a.IsPublic && b.IsPublic
	})
}

// validate enforces the uniqueness invariant on the identity tuple.
//
// Errors:
//
//    - tabcat-error-integrity -- when two entries share an identity tuple
func (ix *Index) validate() error {
	seen := map[string]bool{}
	for _, e := range ix.Entries {
		k := e.Key()
		if seen[k] {
			return tcapi.ErrorIntegrity(e.Path, "duplicate catalog entry for "+k)
		}
		seen[k] = true
	}
	return nil
}

// Write persists the channel index under the catalog root in both
// renditions, plus the catalog metadata file.
//
// Errors:
//
//    - tabcat-error-integrity -- when entries violate the uniqueness invariant
//    - tabcat-error-io -- when writing fails
//    - tabcat-error-serialization -- when encoding fails
//    - tabcat-error-validation -- never in practice; index columns are all representable
func (ix *Index) Write(root string) error {
	ix.Sort()
	if err := ix.validate(); err != nil {
		return err
	}
	t, err := entriesToTable(ix.Entries)
	if err != nil {
		return err
	}
	if err := codec.WriteFeatherFile(filepath.Join(root, ChannelFilename(ix.Channel)), t); err != nil {
		return err
	}
	if err := writeJSONZst(filepath.Join(root, ChannelJSONFilename(ix.Channel)), ix.Entries); err != nil {
		return err
	}
	return WriteMeta(root, CatalogMeta{FormatVersion: FormatVersion})
}

// Read loads a channel's index from the catalog root, after checking the
// catalog metadata's format version.
//
// Errors:
//
//    - tabcat-error-not-found -- when the channel has no index file
//    - tabcat-error-update-required -- when the index format is newer than supported
//    - tabcat-error-io -- when reading fails
//    - tabcat-error-serialization -- when decoding fails
//    - tabcat-error-integrity -- when the catalog metadata is corrupt or
//      the index violates invariants
//    - tabcat-error-validation -- when the index file holds unexpected column types
func Read(root string, ch tcapi.Channel) (*Index, error) {
	meta, err := ReadMeta(root)
	if err != nil {
		return nil, err
	}
	if meta.FormatVersion > FormatVersion {
		return nil, tcapi.ErrorUpdateRequired(meta.FormatVersion, FormatVersion)
	}
	t, err := codec.ReadFeatherFile(filepath.Join(root, ChannelFilename(ch)))
	if err != nil {
		return nil, err
	}
	entries, err := EntriesFromTable(t)
	if err != nil {
		return nil, err
	}
	ix := &Index{Channel: ch, Entries: entries}
	if err := ix.validate(); err != nil {
		return nil, err
	}
	return ix, nil
}

// WriteMeta writes catalog.meta.json at the catalog root.
//
// Errors:
//
//    - tabcat-error-io -- when writing fails
//    - tabcat-error-serialization -- when encoding fails
func WriteMeta(root string, meta CatalogMeta) error {
	serial, err := json.Marshal(&meta)
	if err != nil {
		return tcapi.ErrorSerialization("encoding catalog metadata", err)
	}
	return codec.WriteFileAtomic(filepath.Join(root, MetaFilename), append(serial, '\n'))
}

// ReadMeta reads catalog.meta.json at the catalog root.
//
// Errors:
//
//    - tabcat-error-not-found -- when the metadata file does not exist
//    - tabcat-error-io -- when reading fails
//    - tabcat-error-integrity -- when the metadata JSON is corrupt
func ReadMeta(root string) (CatalogMeta, error) {
	path := filepath.Join(root, MetaFilename)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return CatalogMeta{}, tcapi.ErrorNotFound("catalog metadata", path)
		}
		return CatalogMeta{}, tcapi.ErrorIo("reading catalog metadata", path, err)
	}
	var meta CatalogMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return CatalogMeta{}, tcapi.ErrorIntegrity(path, "catalog metadata JSON is corrupt: "+err.Error())
	}
	return meta, nil
}

func writeJSONZst(path string, entries []tcapi.CatalogEntry) error {
	serial, err := json.Marshal(entries)
	if err != nil {
		return tcapi.ErrorSerialization("encoding index entries", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return tcapi.ErrorSerialization("creating zstd encoder", err)
	}
	defer enc.Close()
	return codec.WriteFileAtomic(path, enc.EncodeAll(serial, nil))
}

// index file column order; also the wire contract for remote clients.
var indexColumns = []string{
	"table", "dataset", "version", "namespace", "channel",
	"is_public", "path", "dimensions", "formats", "checksum",
}

func entriesToTable(entries []tcapi.CatalogEntry) (*table.Table, error) {
	n := len(entries)
	strCols := map[string][]string{}
	for _, c := range indexColumns {
		if c != "is_public" {
			strCols[c] = make([]string, 0, n)
		}
	}
	isPublic := make([]bool, 0, n)
	for _, e := range entries {
		dims, err := json.Marshal(orEmpty(e.Dimensions))
		if err != nil {
			return nil, tcapi.ErrorSerialization("encoding entry dimensions", err)
		}
		fmts := make([]string, len(e.Formats))
		for i, f := range e.Formats {
			fmts[i] = string(f)
		}
		fmtsJSON, err := json.Marshal(fmts)
		if err != nil {
			return nil, tcapi.ErrorSerialization("encoding entry formats", err)
		}
		strCols["table"] = append(strCols["table"], e.Table)
		strCols["dataset"] = append(strCols["dataset"], e.Dataset)
		strCols["version"] = append(strCols["version"], e.Version)
		strCols["namespace"] = append(strCols["namespace"], e.Namespace)
		strCols["channel"] = append(strCols["channel"], string(e.Channel))
		strCols["path"] = append(strCols["path"], e.Path)
		strCols["dimensions"] = append(strCols["dimensions"], string(dims))
		strCols["formats"] = append(strCols["formats"], string(fmtsJSON))
		strCols["checksum"] = append(strCols["checksum"], e.Checksum)
		isPublic = append(isPublic, e.IsPublic)
	}
	t := table.New(tcapi.TableMeta{ShortName: "catalog"})
	for _, c := range indexColumns {
		var s *table.Series
		if c == "is_public" {
			s = table.NewBools(isPublic...)
		} else {
			s = table.NewStrings(strCols[c]...)
		}
		if err := t.AddColumn(c, s); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// EntriesFromTable decodes the columnar index representation back into
// catalog entries. It is the inverse of the encoding used by Write.
//
// Errors:
//
//    - tabcat-error-integrity -- when an expected index column is missing
//    - tabcat-error-validation -- when a column holds an unexpected type
//    - tabcat-error-serialization -- when an embedded JSON cell is corrupt
func EntriesFromTable(t *table.Table) ([]tcapi.CatalogEntry, error) {
	get := func(name string) (*table.Series, error) {
		s, err := t.Column(name)
		if err != nil {
			return nil, tcapi.ErrorIntegrity("catalog index", "missing index column "+name)
		}
		return s, nil
	}
	cols := map[string]*table.Series{}
	for _, c := range indexColumns {
		s, err := get(c)
		if err != nil {
			return nil, err
		}
		cols[c] = s
	}
	entries := make([]tcapi.CatalogEntry, t.Len())
	for i := 0; i < t.Len(); i++ {
		e := tcapi.CatalogEntry{
			Table:     cols["table"].Strings()[i],
			Dataset:   cols["dataset"].Strings()[i],
			Version:   cols["version"].Strings()[i],
			Namespace: cols["namespace"].Strings()[i],
			Channel:   tcapi.Channel(cols["channel"].Strings()[i]),
			IsPublic:  cols["is_public"].Bools()[i],
			Path:      cols["path"].Strings()[i],
			Checksum:  cols["checksum"].Strings()[i],
		}
		if err := json.Unmarshal([]byte(cols["dimensions"].Strings()[i]), &e.Dimensions); err != nil {
			return nil, tcapi.ErrorIntegrity(e.Path, "corrupt dimensions column: "+err.Error())
		}
		var fmts []string
		if err := json.Unmarshal([]byte(cols["formats"].Strings()[i]), &fmts); err != nil {
			return nil, tcapi.ErrorIntegrity(e.Path, "corrupt formats column: "+err.Error())
		}
		for _, f := range fmts {
			e.Formats = append(e.Formats, tcapi.Format(f))
		}
		entries[i] = e
	}
	return entries, nil
}

func orEmpty(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
