package index_test

import (
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/serum-errors/go-serum"

	"github.com/tabletools/tabcat/pkg/index"
	"github.com/tabletools/tabcat/tcapi"
)

func entry(table, dataset, version string) tcapi.CatalogEntry {
	return tcapi.CatalogEntry{
		Table:      table,
		Dataset:    dataset,
		Version:    version,
		Namespace:  "demography",
		Channel:    "garden",
		IsPublic:   true,
		Path:       "garden/demography/" + version + "/" + dataset + "/" + table,
		Dimensions: []string{},
		Formats:    []tcapi.Format{tcapi.FormatFeather},
		Checksum:   "sha256:0000000000000000000000000000000000000000000000000000000000000000",
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	root := t.TempDir()
	ix := &index.Index{
		Channel: "garden",
		Entries: []tcapi.CatalogEntry{
			entry("population", "un_wpp", "2024-03-10"),
			entry("deaths", "un_wpp", "2024-03-10"),
		},
	}
	qt.Assert(t, ix.Write(root), qt.IsNil)

	got, err := index.Read(root, "garden")
	qt.Assert(t, err, qt.IsNil)
	// Write sorts, so deaths comes first
	qt.Assert(t, got.Entries, qt.HasLen, 2)
	qt.Check(t, got.Entries[0].Table, qt.Equals, "deaths")
	qt.Check(t, got.Entries[1].Table, qt.Equals, "population")
	qt.Check(t, got.Entries[1], qt.DeepEquals, entry("population", "un_wpp", "2024-03-10"))
}

func TestSortOrder(t *testing.T) {
	ix := &index.Index{Channel: "garden", Entries: []tcapi.CatalogEntry{
		entry("population", "un_wpp", "2024-03-10"),
		entry("population", "un_wpp", "2023-12-01"),
		entry("population", "hmd", "2024-03-10"),
		entry("deaths", "un_wpp", "2024-03-10"),
	}}
	ix.Sort()

	var got [][2]string
	for _, e := range ix.Entries {
		got = append(got, [2]string{e.Table, e.Dataset + "/" + e.Version})
	}
	qt.Check(t, got, qt.DeepEquals, [][2]string{
		{"deaths", "un_wpp/2024-03-10"},
		{"population", "hmd/2024-03-10"},
		{"population", "un_wpp/2023-12-01"},
		{"population", "un_wpp/2024-03-10"},
	})
}

func TestWriteRejectsDuplicateIdentity(t *testing.T) {
	root := t.TempDir()
	dup := entry("population", "un_wpp", "2024-03-10")
	dup.Path = "garden/somewhere/else/population"
	ix := &index.Index{Channel: "garden", Entries: []tcapi.CatalogEntry{
		entry("population", "un_wpp", "2024-03-10"),
		dup,
	}}
	err := ix.Write(root)
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-integrity")
}

func TestReadMissingChannel(t *testing.T) {
	root := t.TempDir()
	ix := &index.Index{Channel: "garden", Entries: nil}
	qt.Assert(t, ix.Write(root), qt.IsNil)

	_, err := index.Read(root, "meadow")
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-not-found")
}

func TestReadRefusesNewerFormat(t *testing.T) {
	root := t.TempDir()
	ix := &index.Index{Channel: "garden", Entries: []tcapi.CatalogEntry{
		entry("population", "un_wpp", "2024-03-10"),
	}}
	qt.Assert(t, ix.Write(root), qt.IsNil)
	qt.Assert(t, index.WriteMeta(root, index.CatalogMeta{FormatVersion: index.FormatVersion + 1}), qt.IsNil)

	_, err := index.Read(root, "garden")
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-update-required")
}

func TestReadMetaMissing(t *testing.T) {
	_, err := index.ReadMeta(filepath.Join(t.TempDir(), "nowhere"))
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-not-found")
}
