package tcapi

// Provenance and descriptive metadata for datasets, tables and variables.
//
// All of these structures serialize to JSON with empty fields pruned
// (omitempty), so that sidecar files only carry what was actually set.
// Origins, Sources and Licenses are immutable once attached to a variable;
// operations that need to adjust them must work on copies.

// Origin describes one upstream data product a variable derives from.
// A variable may carry several origins when its values were combined
// from multiple upstream sources.
type Origin struct {
	Producer      string `json:"producer,omitempty"`
	Title         string `json:"title,omitempty"`
	Description   string `json:"description,omitempty"`
	CitationFull  string `json:"citation_full,omitempty"`
	URLMain       string `json:"url_main,omitempty"`
	URLDownload   string `json:"url_download,omitempty"`
	DateAccessed  string `json:"date_accessed,omitempty"`
	DatePublished string `json:"date_published,omitempty"`
}

// Source is the older, flatter provenance record still used by many
// datasets. New metadata should prefer Origin.
type Source struct {
	Name            string `json:"name,omitempty"`
	Description     string `json:"description,omitempty"`
	URL             string `json:"url,omitempty"`
	SourceDataURL   string `json:"source_data_url,omitempty"`
	DateAccessed    string `json:"date_accessed,omitempty"`
	PublicationDate string `json:"publication_date,omitempty"`
	PublicationYear int    `json:"publication_year,omitempty"`
	PublishedBy     string `json:"published_by,omitempty"`
}

// License names the terms under which data may be redistributed.
type License struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Display carries presentation hints for a variable. These never affect
// the data itself; they are passed through to whatever renders it.
type Display struct {
	Name             string `json:"name,omitempty"`
	NumDecimalPlaces *int   `json:"numDecimalPlaces,omitempty"`
}

// VariableMeta is the per-column metadata block. One of these exists for
// every column of a Table, even if all its fields are empty. Table
// operations that logically preserve a column must preserve its
// VariableMeta; see the table package for the propagation rules.
type VariableMeta struct {
	Title                 string   `json:"title,omitempty"`
	Description           string   `json:"description,omitempty"`
	DescriptionShort      string   `json:"description_short,omitempty"`
	DescriptionProcessing string   `json:"description_processing,omitempty"`
	DescriptionKey        []string `json:"description_key,omitempty"`
	Unit                  string   `json:"unit,omitempty"`
	ShortUnit             string   `json:"short_unit,omitempty"`
	Origins               []Origin `json:"origins,omitempty"`
	Sources               []Source `json:"sources,omitempty"`
	Licenses              []License `json:"licenses,omitempty"`
	Display               *Display `json:"display,omitempty"`

	// SortOrder gives the ordinal ordering of categories for categorical
	// columns. Empty for plain columns.
	SortOrder []string `json:"sort_order,omitempty"`
}

// IsEmpty reports whether no metadata field has been set.
func (m VariableMeta) IsEmpty() bool {
	return m.Title == "" &&
		m.Description == "" &&
		m.DescriptionShort == "" &&
		m.DescriptionProcessing == "" &&
		len(m.DescriptionKey) == 0 &&
		m.Unit == "" &&
		m.ShortUnit == "" &&
		len(m.Origins) == 0 &&
		len(m.Sources) == 0 &&
		len(m.Licenses) == 0 &&
		m.Display == nil &&
		len(m.SortOrder) == 0
}

// Copy returns a deep copy. Slices and the Display pointer are duplicated
// so that mutating the copy can never reach back into the original.
func (m VariableMeta) Copy() VariableMeta {
	out := m
	out.DescriptionKey = append([]string(nil), m.DescriptionKey...)
	out.Origins = append([]Origin(nil), m.Origins...)
	out.Sources = append([]Source(nil), m.Sources...)
	out.Licenses = append([]License(nil), m.Licenses...)
	out.SortOrder = append([]string(nil), m.SortOrder...)
	if m.Display != nil {
		d := *m.Display
		if m.Display.NumDecimalPlaces != nil {
			n := *m.Display.NumDecimalPlaces
			d.NumDecimalPlaces = &n
		}
		out.Display = &d
	}
	return out
}

// TableMeta describes one table. PrimaryKey is the ordered list of index
// columns; uniqueness over those columns is required before a table can
// be saved with them.
type TableMeta struct {
	ShortName   string   `json:"short_name,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	PrimaryKey  []string `json:"primary_key,omitempty"`

	// Dataset points back at the owning dataset's metadata so that
	// variables can fall back to dataset-level defaults. It is not
	// serialized into the table sidecar; the dataset has its own
	// index.json.
	Dataset *DatasetMeta `json:"-"`
}

// Copy returns a deep copy of the table metadata. The dataset
// back-reference is shared, not duplicated; DatasetMeta is treated as
// immutable once loaded.
func (m TableMeta) Copy() TableMeta {
	out := m
	out.PrimaryKey = append([]string(nil), m.PrimaryKey...)
	return out
}

// DatasetMeta is persisted as index.json at a dataset's root directory
// and loaded eagerly when the dataset is opened.
type DatasetMeta struct {
	Channel     string    `json:"channel,omitempty"`
	Namespace   string    `json:"namespace,omitempty"`
	ShortName   string    `json:"short_name,omitempty"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Version     string    `json:"version,omitempty"`
	Sources     []Source  `json:"sources,omitempty"`
	Licenses    []License `json:"licenses,omitempty"`
	IsPublic    *bool     `json:"is_public,omitempty"`
}

// Public reports the dataset's visibility; datasets are public unless
// explicitly marked otherwise.
func (m DatasetMeta) Public() bool {
	return m.IsPublic == nil || *m.IsPublic
}
