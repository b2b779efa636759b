package walden

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/tabletools/tabcat/pkg/checksum"
	"github.com/tabletools/tabcat/pkg/logging"
	"github.com/tabletools/tabcat/pkg/tracing"
	"github.com/tabletools/tabcat/tcapi"
)

// Config carries the store's location settings. Endpoint and Region are
// for S3-compatible object storage; Endpoint may be empty for AWS proper.
type Config struct {
	CacheRoot string
	Bucket    string
	Region    string
	Endpoint  string
}

// Store is the local cache plus its remote object-storage backing.
// Methods are safe for concurrent use; concurrent callers for the same
// artifact serialize on a per-path mutex so they never race to write the
// same file.
type Store struct {
	cfg   Config
	httpc *http.Client

	s3mu  sync.Mutex
	s3c   *s3.Client

	mu        sync.Mutex
	pathLocks map[string]*sync.Mutex
}

// NewStore creates a store rooted at cfg.CacheRoot. The S3 client is
// created lazily on first remote object-storage use, so purely local and
// HTTP use never needs credentials.
func NewStore(cfg Config) *Store {
	return &Store{
		cfg:       cfg,
		httpc:     http.DefaultClient,
		pathLocks: map[string]*sync.Mutex{},
	}
}

// LocalPath returns where the artifact lives (or would live) in the cache.
func (st *Store) LocalPath(a Artifact) string {
	return localizePath(st.cfg.CacheRoot, a.RelPath())
}

// Bucket returns the configured object-storage bucket name.
func (st *Store) Bucket() string { return st.cfg.Bucket }

func (st *Store) pathLock(p string) *sync.Mutex {
	st.mu.Lock()
	defer st.mu.Unlock()
	l, ok := st.pathLocks[p]
	if !ok {
		l = &sync.Mutex{}
		st.pathLocks[p] = l
	}
	return l
}

func (st *Store) s3Client(ctx context.Context) (*s3.Client, error) {
	st.s3mu.Lock()
	defer st.s3mu.Unlock()
	if st.s3c != nil {
		return st.s3c, nil
	}
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(st.cfg.Region),
	}
	if st.cfg.Endpoint != "" {
		endpoint := st.cfg.Endpoint
		region := st.cfg.Region
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
			func(service, _ string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               endpoint,
					HostnameImmutable: true,
					SigningRegion:     region,
				}, nil
			})))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, tcapi.ErrorUnknown("could not load object storage configuration", err)
	}
	st.s3c = s3.NewFromConfig(cfg)
	return st.s3c, nil
}

// EnsureDownloaded returns a local path for the artifact, fetching it
// from object storage if it is not already cached. A cached file with a
// recorded checksum is verified before being returned; on mismatch it is
// deleted and re-fetched. If a fresh download fails verification, the
// partial file is removed and the artifact remains un-cached so the
// caller may retry.
//
// Errors:
//
//    - tabcat-error-io -- when cache or network I/O fails
//    - tabcat-error-not-found -- when the remote object does not exist
//    - tabcat-error-checksum-mismatch -- when the downloaded content does
//      not match the artifact's recorded checksum
//    - tabcat-error-validation -- when the artifact's checksum names an
//      unsupported algorithm
//    - tabcat-error-unknown -- when object storage configuration fails
func (st *Store) EnsureDownloaded(ctx context.Context, a Artifact) (string, error) {
	ctx, span := tracing.Start(ctx, "walden.EnsureDownloaded")
	defer span.End()
	log := logging.Ctx(ctx)

	localPath := st.LocalPath(a)
	lock := st.pathLock(localPath)
	lock.Lock()
	defer lock.Unlock()

	if _, err := os.Stat(localPath); err == nil {
		if a.Checksum == "" {
			return localPath, nil
		}
		verr := checksum.Verify(localPath, a.Checksum)
		if verr == nil {
			log.Debug("walden", "cache hit: %s", a.RelPath())
			return localPath, nil
		}
		// stale or corrupt; remove and fall through to a fresh fetch
		log.Info("walden", "cached file %q failed checksum, re-fetching", localPath)
		if err := os.Remove(localPath); err != nil {
			return "", tcapi.ErrorIo("removing corrupt cached file", localPath, err)
		}
	}

	if err := st.download(ctx, a.RemoteURI(st.cfg.Bucket), localPath, a.Checksum); err != nil {
		return "", err
	}
	return localPath, nil
}

// Download fetches a remote URI (http://, https://, or s3://) to a local
// path, incrementally checksumming the stream. On checksum mismatch the
// partial file is deleted and nothing is left at localPath.
//
// Errors:
//
//    - tabcat-error-io -- when network or file I/O fails
//    - tabcat-error-not-found -- when the remote object does not exist
//    - tabcat-error-checksum-mismatch -- when the content does not match expected
//    - tabcat-error-validation -- when the URI is malformed or the checksum
//      algorithm is unsupported
//    - tabcat-error-unknown -- when object storage configuration fails
func (st *Store) Download(ctx context.Context, uri string, localPath string, expected checksum.Digest) error {
	lock := st.pathLock(localPath)
	lock.Lock()
	defer lock.Unlock()
	return st.download(ctx, uri, localPath, expected)
}

// download does the work; callers hold the path lock.
func (st *Store) download(ctx context.Context, uri string, localPath string, expected checksum.Digest) (err error) {
	ctx, span := tracing.Start(ctx, "walden.download")
	defer func() { tracing.EndWithStatus(span, err) }()

	scheme, _, err := splitURI(uri)
	if err != nil {
		return err
	}

	var body io.ReadCloser
	switch scheme {
	case "http", "https":
		body, err = st.openHTTP(ctx, uri)
	case "s3":
		body, err = st.openS3(ctx, uri)
	default:
		return tcapi.ErrorValidation("unsupported download scheme "+scheme, [2]string{"uri", uri})
	}
	if err != nil {
		return err
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return tcapi.ErrorIo("creating cache directory", filepath.Dir(localPath), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(localPath), "."+filepath.Base(localPath)+".part-*")
	if err != nil {
		return tcapi.ErrorIo("creating partial download file", localPath, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	algo := checksum.DefaultAlgo
	if expected != "" {
		algo = expected.Algo()
	}
	h, err := checksum.New(algo)
	if err != nil {
		tmp.Close()
		return err
	}
	if _, err := io.Copy(io.MultiWriter(tmp, h), body); err != nil {
		tmp.Close()
		return tcapi.ErrorIo("streaming download", uri, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return tcapi.ErrorIo("syncing partial download file", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return tcapi.ErrorIo("closing partial download file", tmpName, err)
	}

	if expected != "" {
		actual := checksum.Sum(algo, h)
		if actual.Hex() != expected.Hex() {
			// deferred remove cleans up the partial file
			return tcapi.ErrorChecksumMismatch(uri, expected.String(), actual.String())
		}
	}
	if err := os.Rename(tmpName, localPath); err != nil {
		return tcapi.ErrorIo("moving download into place", localPath, err)
	}
	return nil
}

func (st *Store) openHTTP(ctx context.Context, uri string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, tcapi.ErrorValidation("bad download URI "+uri, [2]string{"uri", uri})
	}
	resp, err := st.httpc.Do(req)
	if err != nil {
		return nil, tcapi.ErrorIo("fetching over http", uri, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, tcapi.ErrorNotFound("remote file", uri)
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, tcapi.ErrorIo("fetching over http", uri, &httpStatusError{resp.StatusCode, uri})
	}
	return resp.Body, nil
}

func (st *Store) openS3(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, key, err := parseS3URI(uri)
	if err != nil {
		return nil, err
	}
	client, err := st.s3Client(ctx)
	if err != nil {
		return nil, err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, tcapi.ErrorNotFound("remote object", uri)
		}
		return nil, tcapi.ErrorIo("fetching from object storage", uri, err)
	}
	return out.Body, nil
}

// Upload copies a local file into object storage. dest may be an
// absolute s3:// URI or a key relative to the store's bucket. Public
// uploads get a public-read ACL. Failures are wrapped as upload errors
// and never retried automatically.
//
// Errors:
//
//    - tabcat-error-io -- when the local file cannot be read
//    - tabcat-error-validation -- when dest is malformed
//    - tabcat-error-upload -- when the transfer fails
//    - tabcat-error-unknown -- when object storage configuration fails
func (st *Store) Upload(ctx context.Context, localPath string, dest string, public bool) (string, error) {
	bucket := st.cfg.Bucket
	key := dest
	if hasScheme(dest) {
		var err error
		bucket, key, err = parseS3URI(dest)
		if err != nil {
			return "", err
		}
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", tcapi.ErrorIo("opening file for upload", localPath, err)
	}
	defer f.Close()

	client, err := st.s3Client(ctx)
	if err != nil {
		return "", err
	}
	uploader := manager.NewUploader(client)
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if public {
		input.ACL = s3types.ObjectCannedACLPublicRead
	}
	uri := "s3://" + bucket + "/" + key
	if _, err := uploader.Upload(ctx, input); err != nil {
		return "", tcapi.ErrorUpload(uri, err)
	}
	return uri, nil
}

func hasScheme(s string) bool {
	_, _, err := splitURI(s)
	return err == nil
}

type httpStatusError struct {
	code int
	uri  string
}

func (e *httpStatusError) Error() string {
	return "unexpected http status " + http.StatusText(e.code) + " fetching " + e.uri
}
