// Package walden is the content-addressed store of raw dataset
// artifacts. An artifact is keyed by (namespace, version, short_name)
// and lives at the same relative path locally and in object storage:
//
//	s3://{bucket}/{namespace}/{version}/{short_name}.{ext}
//	{cacheRoot}/{namespace}/{version}/{short_name}.{ext}
//
// Files are verified against their recorded checksum; a cached file that
// fails verification is deleted and re-fetched, never served stale.
// Cache writes are single-writer-per-path within a process and go
// through a temp file plus atomic rename, so a reader never observes a
// partial file. No cross-process locking is attempted: corruption is
// detected after the fact by checksum, not prevented by locks.
package walden

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/tabletools/tabcat/pkg/checksum"
	"github.com/tabletools/tabcat/tcapi"
)

// Artifact identifies one raw file in the store.
type Artifact struct {
	Namespace string
	Version   string
	ShortName string
	Ext       string

	// Checksum is the expected digest of the file's content; empty means
	// no verification is possible and cached copies are trusted as-is.
	Checksum checksum.Digest

	// Public artifacts may be fetched over plain HTTP; private ones go
	// through authenticated object storage.
	Public bool
}

// RelPath returns the artifact's path relative to the cache root or
// bucket root.
func (a Artifact) RelPath() string {
	name := a.ShortName
	if a.Ext != "" {
		name += "." + a.Ext
	}
	return path.Join(a.Namespace, a.Version, name)
}

// RemoteURI returns the artifact's object-storage URI in the given bucket.
func (a Artifact) RemoteURI(bucket string) string {
	return "s3://" + bucket + "/" + a.RelPath()
}

func (a Artifact) String() string { return a.RelPath() }

// splitURI separates a URI into scheme and remainder.
//
// Errors:
//
//    - tabcat-error-validation -- when the URI has no scheme
func splitURI(uri string) (scheme, rest string, err error) {
	i := strings.Index(uri, "://")
	if i < 0 {
		return "", "", tcapi.ErrorValidation("URI has no scheme: "+uri, [2]string{"uri", uri})
	}
	return uri[:i], uri[i+3:], nil
}

// parseS3URI splits "s3://bucket/key..." into bucket and key.
//
// Errors:
//
//    - tabcat-error-validation -- when the URI is not a well-formed s3 URI
func parseS3URI(uri string) (bucket, key string, err error) {
	scheme, rest, err := splitURI(uri)
	if err != nil {
		return "", "", err
	}
	if scheme != "s3" {
		return "", "", tcapi.ErrorValidation("not an s3 URI: "+uri, [2]string{"uri", uri})
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", tcapi.ErrorValidation("s3 URI must be s3://bucket/key: "+uri, [2]string{"uri", uri})
	}
	return parts[0], parts[1], nil
}

// localizePath maps a relative artifact path onto the local filesystem.
func localizePath(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}
