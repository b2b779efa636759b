package catalog

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/facette/natsort"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/tabletools/tabcat/tcapi"
)

// MatchMode selects how the table and dataset filters of a Query are
// compared against index entries. Namespace, version, and channel are
// always matched exactly regardless of mode.
type MatchMode string

const (
	MatchExact    MatchMode = "exact"
	MatchContains MatchMode = "contains"
	MatchRegex    MatchMode = "regex"
	MatchFuzzy    MatchMode = "fuzzy"
)

// DefaultFuzzyThreshold is the minimum per-filter score (0..100) an
// entry must reach under MatchFuzzy to be kept.
const DefaultFuzzyThreshold = 80

// Query describes a catalog search. Empty fields are unconstrained.
type Query struct {
	Table     string
	Dataset   string
	Namespace string
	Version   string
	Channels  []tcapi.Channel

	// Match applies to Table and Dataset only; zero value means MatchExact.
	Match MatchMode
	// Threshold is the fuzzy cutoff in 0..100; the zero value means
	// DefaultFuzzyThreshold. A negative value disables the cutoff so
	// every entry is scored and returned.
	Threshold int
}

// Result is a matching entry plus its fuzzy score. Under non-fuzzy
// match modes Score is always 100.
type Result struct {
	tcapi.CatalogEntry
	Score float64
}

// Find returns entries matching the query. Under MatchFuzzy every
// supplied text filter must clear the threshold and results are sorted
// by descending score; under the other modes results keep index order.
//
// Errors:
//
//    - tabcat-error-validation -- when the query names an unloaded channel,
//      an unknown match mode, or an invalid regex
func (c *Client) Find(q Query) ([]Result, error) {
	mode := q.Match
	if mode == "" {
		mode = MatchExact
	}
	switch mode {
	case MatchExact, MatchContains, MatchRegex, MatchFuzzy:
	default:
		return nil, tcapi.ErrorValidation(fmt.Sprintf("unknown match mode %q", mode))
	}

	channels := q.Channels
	if len(channels) == 0 {
		channels = c.sortedChannels()
	}
	for _, ch := range channels {
		if _, ok := c.channels[ch]; !ok {
			return nil, c.unknownChannel(ch)
		}
	}

	match, err := newMatcher(mode, q)
	if err != nil {
		return nil, err
	}

	var out []Result
	for _, ch := range channels {
		for _, e := range c.channels[ch].Entries {
			if q.Namespace != "" && e.Namespace != q.Namespace {
				continue
			}
			if q.Version != "" && e.Version != q.Version {
				continue
			}
			score, ok := match(e)
			if !ok {
				continue
			}
			out = append(out, Result{CatalogEntry: e, Score: score})
		}
	}
	if mode == MatchFuzzy {
		// Stable sort keeps index order among equal scores, and index
		// order already prefers newer versions last within a dataset, so
		// break score ties toward later entries.
		sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	}
	return out, nil
}

// matcher reports whether an entry passes the text filters and with
// what score.
type matcher func(e tcapi.CatalogEntry) (float64, bool)

func newMatcher(mode MatchMode, q Query) (matcher, error) {
	switch mode {
	case MatchExact:
		return func(e tcapi.CatalogEntry) (float64, bool) {
			if q.Table != "" && e.Table != q.Table {
				return 0, false
			}
			if q.Dataset != "" && e.Dataset != q.Dataset {
				return 0, false
			}
			return 100, true
		}, nil
	case MatchContains:
		return func(e tcapi.CatalogEntry) (float64, bool) {
			if q.Table != "" && !strings.Contains(e.Table, q.Table) {
				return 0, false
			}
			if q.Dataset != "" && !strings.Contains(e.Dataset, q.Dataset) {
				return 0, false
			}
			return 100, true
		}, nil
	case MatchRegex:
		var tableRe, datasetRe *regexp.Regexp
		var err error
		if q.Table != "" {
			if tableRe, err = regexp.Compile(q.Table); err != nil {
				return nil, tcapi.ErrorValidation("invalid table pattern: "+err.Error(), [2]string{"pattern", q.Table})
			}
		}
		if q.Dataset != "" {
			if datasetRe, err = regexp.Compile(q.Dataset); err != nil {
				return nil, tcapi.ErrorValidation("invalid dataset pattern: "+err.Error(), [2]string{"pattern", q.Dataset})
			}
		}
		return func(e tcapi.CatalogEntry) (float64, bool) {
			if tableRe != nil && !tableRe.MatchString(e.Table) {
				return 0, false
			}
			if datasetRe != nil && !datasetRe.MatchString(e.Dataset) {
				return 0, false
			}
			return 100, true
		}, nil
	case MatchFuzzy:
		threshold := q.Threshold
		switch {
		case threshold == 0:
			threshold = DefaultFuzzyThreshold
		case threshold < 0:
			threshold = 0
		}
		return func(e tcapi.CatalogEntry) (float64, bool) {
			var scores []float64
			if q.Table != "" {
				s := fuzzyScore(q.Table, e.Table)
				if s < float64(threshold) {
					return 0, false
				}
				scores = append(scores, s)
			}
			if q.Dataset != "" {
				s := fuzzyScore(q.Dataset, e.Dataset)
				if s < float64(threshold) {
					return 0, false
				}
				scores = append(scores, s)
			}
			if len(scores) == 0 {
				return 100, true
			}
			var sum float64
			for _, s := range scores {
				sum += s
			}
			return sum / float64(len(scores)), true
		}, nil
	}
	return nil, tcapi.ErrorValidation(fmt.Sprintf("unknown match mode %q", mode))
}

// fuzzyScore converts Levenshtein distance into a 0..100 similarity
// ratio, case-insensitively.
func fuzzyScore(needle, haystack string) float64 {
	a := strings.ToLower(needle)
	b := strings.ToLower(haystack)
	if a == b {
		return 100
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 100
	}
	dist := fuzzy.LevenshteinDistance(a, b)
	return 100 * (1 - float64(dist)/float64(longest))
}

// FindLatest resolves the query and keeps only the greatest version,
// by natural sort order, so "2024-03-10" beats "2023-12-01" and "v10"
// beats "v9". The first matching entry at that version is returned.
//
// Errors:
//
//    - tabcat-error-not-found -- when nothing matches
//    - tabcat-error-validation -- when the query is invalid
func (c *Client) FindLatest(q Query) (tcapi.CatalogEntry, error) {
	results, err := c.Find(q)
	if err != nil {
		return tcapi.CatalogEntry{}, err
	}
	if len(results) == 0 {
		return tcapi.CatalogEntry{}, tcapi.ErrorNotFound("table", describeQuery(q))
	}
	versions := make([]string, 0, len(results))
	seen := map[string]bool{}
	for _, r := range results {
		if !seen[r.Version] {
			seen[r.Version] = true
			versions = append(versions, r.Version)
		}
	}
	natsort.Sort(versions)
	latest := versions[len(versions)-1]
	for _, r := range results {
		if r.Version == latest {
			return r.CatalogEntry, nil
		}
	}
	// unreachable: latest came from results
	return results[0].CatalogEntry, nil
}

// FindOne resolves the query to exactly one entry.
//
// Errors:
//
//    - tabcat-error-not-found -- when nothing matches
//    - tabcat-error-validation -- when the query is invalid or ambiguous
func (c *Client) FindOne(q Query) (tcapi.CatalogEntry, error) {
	results, err := c.Find(q)
	if err != nil {
		return tcapi.CatalogEntry{}, err
	}
	switch len(results) {
	case 0:
		return tcapi.CatalogEntry{}, tcapi.ErrorNotFound("table", describeQuery(q))
	case 1:
		return results[0].CatalogEntry, nil
	}
	return tcapi.CatalogEntry{}, tcapi.ErrorValidation(
		fmt.Sprintf("%d entries match %s; narrow the query", len(results), describeQuery(q)))
}

func describeQuery(q Query) string {
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	add("table", q.Table)
	add("dataset", q.Dataset)
	add("namespace", q.Namespace)
	add("version", q.Version)
	if len(q.Channels) > 0 {
		chs := make([]string, len(q.Channels))
		for i, ch := range q.Channels {
			chs[i] = string(ch)
		}
		parts = append(parts, "channels="+strings.Join(chs, ","))
	}
	if len(parts) == 0 {
		return "query matching everything"
	}
	return "query " + strings.Join(parts, " ")
}
