package tcapi

import (
	"fmt"
	"strings"
)

// Channel is a processing tier under which datasets are grouped,
// e.g. "meadow" for lightly cleaned data and "garden" for harmonized data.
type Channel string

// Format names a physical on-disk encoding of a table.
type Format string

const (
	FormatFeather Format = "feather"
	FormatParquet Format = "parquet"
)

// FormatPreference is the order in which formats are chosen when a table
// is available in more than one. Feather loads fastest, so it wins.
var FormatPreference = []Format{FormatFeather, FormatParquet}

// Ext returns the file extension for the format, without the dot.
func (f Format) Ext() string { return string(f) }

// CatalogEntry is one row of a channel's index: everything needed to
// locate and verify a single table in the catalog.
//
// The tuple (Channel, Namespace, Version, Dataset, Table) is unique
// within one index snapshot. Path is relative to the catalog base URI
// and carries no format extension; Formats lists which encodings exist
// at that path.
type CatalogEntry struct {
	Table      string   `json:"table"`
	Dataset    string   `json:"dataset"`
	Version    string   `json:"version"`
	Namespace  string   `json:"namespace"`
	Channel    Channel  `json:"channel"`
	IsPublic   bool     `json:"is_public"`
	Path       string   `json:"path"`
	Dimensions []string `json:"dimensions"`
	Formats    []Format `json:"formats"`
	Checksum   string   `json:"checksum,omitempty"`
}

// BestFormat resolves which physical format to load: the first format in
// FormatPreference that the entry has, else the entry's first format.
//
// Errors:
//
//    - tabcat-error-not-found -- when the entry lists no formats at all
func (e CatalogEntry) BestFormat() (Format, error) {
	if len(e.Formats) == 0 {
		return "", ErrorNotFound("table format", e.Path)
	}
	for _, want := range FormatPreference {
		for _, have := range e.Formats {
			if have == want {
				return want, nil
			}
		}
	}
	return e.Formats[0], nil
}

// HasFormat reports whether the entry is available in the given format.
func (e CatalogEntry) HasFormat(f Format) bool {
	for _, have := range e.Formats {
		if have == f {
			return true
		}
	}
	return false
}

// Key returns the identity tuple used for uniqueness checks within one
// index snapshot.
func (e CatalogEntry) Key() string {
	return strings.Join([]string{string(e.Channel), e.Namespace, e.Version, e.Dataset, e.Table}, "/")
}

func (e CatalogEntry) String() string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", e.Channel, e.Namespace, e.Version, e.Dataset, e.Table)
}
