// Package catalog is the consumer-facing client: it loads per-channel
// indexes (from a local catalog directory or a remote catalog over
// HTTP), searches them, and fetches tables.
package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/tabletools/tabcat/pkg/codec"
	"github.com/tabletools/tabcat/pkg/index"
	"github.com/tabletools/tabcat/pkg/logging"
	"github.com/tabletools/tabcat/pkg/walden"
	"github.com/tabletools/tabcat/tcapi"
)

// DefaultChannels are loaded when the caller does not name any.
var DefaultChannels = []tcapi.Channel{"garden"}

// Client holds in-memory channel indexes plus the means to fetch table
// payloads. It is read-only with respect to the catalog; the only thing
// it writes is staging space for remote fetches.
type Client struct {
	baseURI  string
	remote   bool
	channels map[tcapi.Channel]*index.Index
	order    []tcapi.Channel
	store    *walden.Store
}

// OpenLocal opens a catalog rooted at a local directory, loading the
// named channels' indexes eagerly. With no channels given it loads
// DefaultChannels.
//
// Errors:
//
//    - tabcat-error-not-found -- when a channel has no index file
//    - tabcat-error-update-required -- when the index format is newer than supported
//    - tabcat-error-io -- when reading fails
//    - tabcat-error-serialization -- when decoding an index fails
//    - tabcat-error-integrity -- when an index violates invariants
//    - tabcat-error-validation -- when an index file holds unexpected column types
func OpenLocal(root string, store *walden.Store, channels ...tcapi.Channel) (*Client, error) {
	c := &Client{
		baseURI:  root,
		channels: map[tcapi.Channel]*index.Index{},
		store:    store,
	}
	if len(channels) == 0 {
		channels = DefaultChannels
	}
	for _, ch := range channels {
		ix, err := index.Read(root, ch)
		if err != nil {
			return nil, err
		}
		c.channels[ch] = ix
		c.order = append(c.order, ch)
	}
	return c, nil
}

// OpenRemote opens a catalog served over HTTP at baseURI. The catalog
// metadata is checked first: an index with a newer format version than
// this package supports is refused outright, never partially read.
// Channel indexes are then downloaded into a temp dir and loaded.
//
// Errors:
//
//    - tabcat-error-update-required -- when the catalog format is newer than supported
//    - tabcat-error-not-found -- when the catalog or a channel index does not exist
//    - tabcat-error-io -- when a download fails
//    - tabcat-error-serialization -- when decoding fails
//    - tabcat-error-integrity -- when the catalog metadata or an index is corrupt
//    - tabcat-error-validation -- when an index file holds unexpected column types
func OpenRemote(ctx context.Context, baseURI string, store *walden.Store, channels ...tcapi.Channel) (*Client, error) {
	log := logging.Ctx(ctx)
	baseURI = strings.TrimRight(baseURI, "/")
	c := &Client{
		baseURI:  baseURI,
		remote:   true,
		channels: map[tcapi.Channel]*index.Index{},
		store:    store,
	}
	if len(channels) == 0 {
		channels = DefaultChannels
	}

	staging, err := stagingDir()
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(staging)

	metaPath := filepath.Join(staging, index.MetaFilename)
	if err := store.Download(ctx, baseURI+"/"+index.MetaFilename, metaPath, ""); err != nil {
		return nil, err
	}
	meta, err := index.ReadMeta(staging)
	if err != nil {
		return nil, err
	}
	if meta.FormatVersion > index.FormatVersion {
		return nil, tcapi.ErrorUpdateRequired(meta.FormatVersion, index.FormatVersion)
	}

	for _, ch := range channels {
		name := index.ChannelFilename(ch)
		local := filepath.Join(staging, name)
		log.Debug("catalog", "loading remote channel index %s", name)
		if err := store.Download(ctx, baseURI+"/"+name, local, ""); err != nil {
			return nil, err
		}
		t, err := codec.ReadFeatherFile(local)
		if err != nil {
			return nil, err
		}
		entries, err := index.EntriesFromTable(t)
		if err != nil {
			return nil, err
		}
		c.channels[ch] = &index.Index{Channel: ch, Entries: entries}
		c.order = append(c.order, ch)
	}
	return c, nil
}

// Channels lists the channels loaded into this client, in load order.
func (c *Client) Channels() []tcapi.Channel {
	return append([]tcapi.Channel(nil), c.order...)
}

// Entries returns the loaded entries for a channel.
//
// Errors:
//
//    - tabcat-error-validation -- when the channel is not loaded
func (c *Client) Entries(ch tcapi.Channel) ([]tcapi.CatalogEntry, error) {
	ix, ok := c.channels[ch]
	if !ok {
		return nil, c.unknownChannel(ch)
	}
	return append([]tcapi.CatalogEntry(nil), ix.Entries...), nil
}

func (c *Client) unknownChannel(ch tcapi.Channel) error {
	loaded := make([]string, 0, len(c.order))
	for _, l := range c.order {
		loaded = append(loaded, string(l))
	}
	return tcapi.ErrorValidation(
		fmt.Sprintf("channel %q is not loaded into this client (loaded: %s)", ch, strings.Join(loaded, ", ")),
		[2]string{"channel", string(ch)},
	)
}

func stagingDir() (string, error) {
	dir := filepath.Join(os.TempDir(), "tabcat-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", tcapi.ErrorIo("creating staging directory", dir, err)
	}
	return dir, nil
}

// sortedChannels gives deterministic iteration when a query does not
// constrain channels.
func (c *Client) sortedChannels() []tcapi.Channel {
	out := append([]tcapi.Channel(nil), c.order...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
