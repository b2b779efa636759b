package index

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/serum-errors/go-serum"
	"golang.org/x/sync/errgroup"

	"github.com/tabletools/tabcat/pkg/checksum"
	"github.com/tabletools/tabcat/pkg/codec"
	"github.com/tabletools/tabcat/pkg/dataset"
	"github.com/tabletools/tabcat/pkg/logging"
	"github.com/tabletools/tabcat/pkg/tracing"
	"github.com/tabletools/tabcat/tcapi"
)

// DefaultWorkers bounds per-dataset scan concurrency. Scanning is I/O
// bound, so the pool is sized for disk parallelism rather than CPU count.
const DefaultWorkers = 8

// wellKnownIndexColumns are the standard grouping columns; any further
// primary key columns count as a table's extra dimensions.
var wellKnownIndexColumns = map[string]bool{
	"country": true,
	"year":    true,
}

// ReindexOptions tunes a reindex run.
type ReindexOptions struct {
	// Include, when non-empty, is a regular expression limiting the scan
	// to dataset directories whose catalog-relative path matches. The
	// result is then merged with the existing index by path: entries at
	// rescanned paths are replaced, all others kept. Merging is
	// idempotent: re-running the same incremental reindex twice gives
	// the same result as running it once.
	Include string

	// Workers bounds per-dataset scan concurrency; <1 means DefaultWorkers.
	Workers int
}

// Reindex rebuilds the index for each given channel under the catalog
// root and persists it, returning the built indexes. With no channels
// given, every channel directory found under the root is indexed.
//
// Errors:
//
//    - tabcat-error-validation -- when the include pattern is not a valid regexp
//    - tabcat-error-io -- when the tree cannot be walked or files cannot be written
//    - tabcat-error-integrity -- when dataset metadata or the existing
//      index is corrupt, or uniqueness is violated
//    - tabcat-error-update-required -- when merging against an existing
//      index written by a newer version
//    - tabcat-error-serialization -- when encoding or decoding fails
func Reindex(ctx context.Context, root string, channels []tcapi.Channel, opts ReindexOptions) (_ []*Index, err error) {
	ctx, span := tracing.Start(ctx, "index.Reindex")
	defer func() { tracing.EndWithStatus(span, err) }()
	log := logging.Ctx(ctx)

	var includeRe *regexp.Regexp
	if opts.Include != "" {
		includeRe, err = regexp.Compile(opts.Include)
		if err != nil {
			return nil, tcapi.ErrorValidation("invalid include pattern: "+err.Error(),
				[2]string{"include", opts.Include})
		}
	}
	workers := opts.Workers
	if workers < 1 {
		workers = DefaultWorkers
	}
	if len(channels) == 0 {
		channels, err = Channels(root)
		if err != nil {
			return nil, err
		}
	}

	var out []*Index
	for _, ch := range channels {
		entries, err := scanChannel(ctx, root, ch, includeRe, workers)
		if err != nil {
			return nil, err
		}
		ix := &Index{Channel: ch, Entries: entries}
		if includeRe != nil {
			existing, err := Read(root, ch)
			switch {
			case err == nil:
				ix.Entries = mergeByPath(existing.Entries, entries, includeRe)
			case serum.Code(err) == tcapi.ECodeNotFound:
				// this incremental run is the first; nothing to merge
			default:
				// a corrupt or incompatible existing index must not be
				// overwritten with a partial rescan
				return nil, err
			}
		}
		log.Info("index", "channel %q: %d entries", ch, len(ix.Entries))
		if err := ix.Write(root); err != nil {
			return nil, err
		}
		out = append(out, ix)
	}
	return out, nil
}

// Channels lists the channel directories present under the catalog
// root, sorted. Dotted names and plain files are not channels.
//
// Errors:
//
//    - tabcat-error-io -- when the root cannot be read
func Channels(root string) ([]tcapi.Channel, error) {
	dirents, err := os.ReadDir(root)
	if err != nil {
		return nil, tcapi.ErrorIo("listing catalog root", root, err)
	}
	var out []tcapi.Channel
	for _, d := range dirents {
		if !d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		out = append(out, tcapi.Channel(d.Name()))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// mergeByPath replaces existing entries whose path falls inside the
// rescanned region and keeps the rest untouched.
func mergeByPath(existing, scanned []tcapi.CatalogEntry, includeRe *regexp.Regexp) []tcapi.CatalogEntry {
	out := make([]tcapi.CatalogEntry, 0, len(existing)+len(scanned))
	fresh := map[string]bool{}
	for _, e := range scanned {
		fresh[e.Path] = true
	}
	for _, e := range existing {
		if fresh[e.Path] || includeRe.MatchString(e.Path) {
			continue
		}
		out = append(out, e)
	}
	return append(out, scanned...)
}

// scanChannel walks one channel's directory tree. A directory is a
// dataset root iff it contains index.json; the walk does not descend
// into dataset roots. Datasets are scanned by a bounded worker pool;
// there is no shared mutable state across datasets beyond the result
// slice, which each worker writes at its own offset.
func scanChannel(ctx context.Context, root string, ch tcapi.Channel, includeRe *regexp.Regexp, workers int) ([]tcapi.CatalogEntry, error) {
	channelDir := filepath.Join(root, string(ch))
	var datasetDirs []string
	err := filepath.WalkDir(channelDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == channelDir {
				// channel directory may simply not exist yet
				return filepath.SkipAll
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if dataset.IsRoot(path) {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if includeRe == nil || includeRe.MatchString(filepath.ToSlash(rel)) {
				datasetDirs = append(datasetDirs, path)
			}
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, tcapi.ErrorIo("walking channel directory", channelDir, err)
	}
	sort.Strings(datasetDirs)

	// each worker writes only its own slot, so no locking is needed
	results := make([][]tcapi.CatalogEntry, len(datasetDirs))
	eg, _ := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, dir := range datasetDirs {
		i, dir := i, dir
		eg.Go(func() error {
			entries, err := scanDataset(root, ch, dir)
			if err != nil {
				return err
			}
			results[i] = entries
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var all []tcapi.CatalogEntry
	for _, entries := range results {
		all = append(all, entries...)
	}
	return all, nil
}

// scanDataset emits one entry per logical table in the dataset,
// recording every physical format present for it.
func scanDataset(root string, ch tcapi.Channel, dir string) ([]tcapi.CatalogEntry, error) {
	ds, err := dataset.Open(dir)
	if err != nil {
		return nil, err
	}
	meta := ds.Meta()
	names, err := ds.TableNames()
	if err != nil {
		return nil, err
	}
	entries := make([]tcapi.CatalogEntry, 0, len(names))
	for _, name := range names {
		stem := filepath.Join(dir, name)
		formats := codec.Formats(stem)
		if len(formats) == 0 {
			// sidecar without a columnar file; skip rather than index
			// something unfetchable
			continue
		}
		header, err := codec.LoadHeader(stem)
		if err != nil {
			return nil, err
		}
		relStem, err := filepath.Rel(root, stem)
		if err != nil {
			return nil, tcapi.ErrorIo("resolving table path", stem, err)
		}
		best := formats[0]
		sum, err := checksum.File(codec.FormatPath(stem, best), checksum.DefaultAlgo)
		if err != nil {
			return nil, err
		}
		entries = append(entries, tcapi.CatalogEntry{
			Table:      name,
			Dataset:    meta.ShortName,
			Version:    meta.Version,
			Namespace:  meta.Namespace,
			Channel:    ch,
			IsPublic:   meta.Public(),
			Path:       filepath.ToSlash(relStem),
			Dimensions: dimensions(header.PrimaryKey()),
			Formats:    formats,
			Checksum:   sum.String(),
		})
	}
	return entries, nil
}

// dimensions reports the primary key columns beyond the well-known
// country/year pair, preserving key order.
func dimensions(primaryKey []string) []string {
	dims := []string{}
	for _, k := range primaryKey {
		if !wellKnownIndexColumns[strings.ToLower(k)] {
			dims = append(dims, k)
		}
	}
	return dims
}
