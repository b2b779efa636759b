// Package checksum computes and verifies the content digests used
// throughout the catalog. A digest is written as "algo:hex", e.g.
// "sha256:ab12..."; a bare hex string is read as sha256 for
// compatibility with older index files.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/tabletools/tabcat/tcapi"
)

const (
	AlgoSha256 = "sha256"
	AlgoBlake3 = "blake3"

	// DefaultAlgo is used whenever a digest is computed fresh.
	DefaultAlgo = AlgoSha256
)

// Digest is an algorithm-prefixed content hash.
type Digest string

// Algo returns the digest's algorithm name.
func (d Digest) Algo() string {
	if i := strings.IndexByte(string(d), ':'); i >= 0 {
		return string(d)[:i]
	}
	return AlgoSha256
}

// Hex returns the digest's hex-encoded hash value.
func (d Digest) Hex() string {
	if i := strings.IndexByte(string(d), ':'); i >= 0 {
		return string(d)[i+1:]
	}
	return string(d)
}

func (d Digest) String() string { return string(d) }

// New returns a fresh hash state for the named algorithm.
//
// Errors:
//
//    - tabcat-error-validation -- when the algorithm is not supported
func New(algo string) (hash.Hash, error) {
	switch algo {
	case AlgoSha256:
		return sha256.New(), nil
	case AlgoBlake3:
		return blake3.New(), nil
	default:
		return nil, tcapi.ErrorValidation(
			fmt.Sprintf("unsupported checksum algorithm %q", algo),
			[2]string{"algo", algo},
		)
	}
}

// Sum finalizes a hash state into a Digest.
func Sum(algo string, h hash.Hash) Digest {
	return Digest(algo + ":" + hex.EncodeToString(h.Sum(nil)))
}

// Reader computes a digest while streaming from r.
//
// Errors:
//
//    - tabcat-error-io -- when reading fails
//    - tabcat-error-validation -- when the algorithm is not supported
func Reader(r io.Reader, algo string) (Digest, error) {
	h, err := New(algo)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", tcapi.ErrorIo("checksumming stream", "", err)
	}
	return Sum(algo, h), nil
}

// File computes the digest of a file on disk.
//
// Errors:
//
//    - tabcat-error-io -- when the file cannot be read
//    - tabcat-error-validation -- when the algorithm is not supported
func File(path string, algo string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", tcapi.ErrorIo("opening file for checksum", path, err)
	}
	defer f.Close()
	h, serr := New(algo)
	if serr != nil {
		return "", serr
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", tcapi.ErrorIo("checksumming file", path, err)
	}
	return Sum(algo, h), nil
}

// Verify recomputes the file's digest with the expected digest's
// algorithm and compares.
//
// Errors:
//
//    - tabcat-error-io -- when the file cannot be read
//    - tabcat-error-validation -- when the expected digest names an unsupported algorithm
//    - tabcat-error-checksum-mismatch -- when the digests differ
func Verify(path string, expected Digest) error {
	actual, err := File(path, expected.Algo())
	if err != nil {
		return err
	}
	if actual.Hex() != expected.Hex() {
		return tcapi.ErrorChecksumMismatch(path, expected.String(), actual.String())
	}
	return nil
}
