// Package publish pushes a local catalog into remote storage so that
// clients can open it over HTTP or object storage.
//
// Table payloads are content-addressed by their recorded checksum, so a
// payload already present remotely is never re-uploaded; index files and
// catalog metadata are small and always overwritten.
package publish

import (
	"context"
	"os"
	"path/filepath"

	"github.com/tabletools/tabcat/pkg/codec"
	"github.com/tabletools/tabcat/pkg/index"
	"github.com/tabletools/tabcat/pkg/logging"
	"github.com/tabletools/tabcat/pkg/tracing"
	"github.com/tabletools/tabcat/tcapi"
)

// Pusher moves one file into remote storage. Keys are catalog-relative
// forward-slash paths.
type Pusher interface {
	// Has reports whether the key already exists remotely.
	//
	// Errors:
	//
	//    - tabcat-error-io -- when the remote cannot be queried
	Has(ctx context.Context, key string) (bool, error)
	// Push uploads the file at localPath to the key. Public controls
	// whether anonymous clients may read it back.
	//
	// Errors:
	//
	//    - tabcat-error-upload -- when the upload fails
	//    - tabcat-error-io -- when the local file cannot be read
	Push(ctx context.Context, key string, localPath string, public bool) error
}

// Options tunes a catalog push.
type Options struct {
	// Channels to publish; empty means every channel directory present.
	Channels []tcapi.Channel
	// DryRun logs what would be pushed without pushing anything.
	DryRun bool
}

// Catalog publishes the catalog rooted at root through the pusher:
// every indexed table's payloads and sidecar, then the channel index
// files, then catalog.meta.json last so readers never see an index that
// points at missing payloads.
//
// Errors:
//
//    - tabcat-error-not-found -- when a channel index or an indexed file is missing
//    - tabcat-error-update-required -- when the local index format is newer than supported
//    - tabcat-error-io -- when local or remote I/O fails
//    - tabcat-error-serialization -- when decoding the index fails
//    - tabcat-error-integrity -- when the index violates invariants
//    - tabcat-error-validation -- when the index holds unexpected column types
//    - tabcat-error-upload -- when an upload fails
func Catalog(ctx context.Context, p Pusher, root string, opts Options) (err error) {
	ctx, span := tracing.Start(ctx, "publish.Catalog")
	defer func() { tracing.EndWithStatus(span, err) }()
	log := logging.Ctx(ctx)

	channels := opts.Channels
	if len(channels) == 0 {
		channels, err = index.Channels(root)
		if err != nil {
			return err
		}
	}

	for _, ch := range channels {
		ix, err := index.Read(root, ch)
		if err != nil {
			return err
		}
		for _, e := range ix.Entries {
			if err := pushEntry(ctx, p, root, e, opts.DryRun); err != nil {
				return err
			}
		}
		for _, name := range []string{index.ChannelFilename(ch), index.ChannelJSONFilename(ch)} {
			if err := pushFile(ctx, p, root, name, true, opts.DryRun); err != nil {
				return err
			}
		}
		log.Info("publish", "channel %q: %d tables", ch, len(ix.Entries))
	}

	return pushFile(ctx, p, root, index.MetaFilename, true, opts.DryRun)
}

// pushEntry uploads a table's payload files and sidecar. Payloads are
// skipped when the remote already has them; the sidecar is small and
// always pushed so metadata edits propagate.
func pushEntry(ctx context.Context, p Pusher, root string, e tcapi.CatalogEntry, dryRun bool) error {
	log := logging.Ctx(ctx)
	for _, f := range e.Formats {
		key := e.Path + "." + f.Ext()
		has, err := p.Has(ctx, key)
		if err != nil {
			return err
		}
		if has {
			log.Debug("publish", "remote already has %q, skipping", key)
			continue
		}
		if err := pushFile(ctx, p, root, key, e.IsPublic, dryRun); err != nil {
			return err
		}
	}
	return pushFile(ctx, p, root, e.Path+codec.SidecarSuffix, e.IsPublic, dryRun)
}

func pushFile(ctx context.Context, p Pusher, root string, key string, public bool, dryRun bool) error {
	log := logging.Ctx(ctx)
	localPath := filepath.Join(root, filepath.FromSlash(key))
	if _, err := os.Stat(localPath); err != nil {
		if os.IsNotExist(err) {
			return tcapi.ErrorNotFound("catalog file", localPath)
		}
		return tcapi.ErrorIo("checking catalog file", localPath, err)
	}
	if dryRun {
		log.Out("would push %q (public=%t)", key, public)
		return nil
	}
	log.Info("publish", "pushing %q", key)
	return p.Push(ctx, key, localPath, public)
}
