package checksum_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/serum-errors/go-serum"

	"github.com/tabletools/tabcat/pkg/checksum"
)

func TestReaderKnownAnswers(t *testing.T) {
	// sha256("hello world")
	d, err := checksum.Reader(strings.NewReader("hello world"), "sha256")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, d, qt.Equals, checksum.Digest("sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"))
	qt.Check(t, d.Algo(), qt.Equals, "sha256")
	qt.Check(t, d.Hex(), qt.Equals, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9")

	b, err := checksum.Reader(strings.NewReader("hello world"), "blake3")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, b.Algo(), qt.Equals, "blake3")
	qt.Check(t, b.Hex(), qt.HasLen, 64)

	_, err = checksum.Reader(strings.NewReader(""), "md5")
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-validation")
}

func TestBareHexMeansSha256(t *testing.T) {
	d := checksum.Digest("b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9")
	qt.Check(t, d.Algo(), qt.Equals, "sha256")
	qt.Check(t, d.Hex(), qt.Equals, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9")
}

func TestVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	qt.Assert(t, os.WriteFile(path, []byte("hello world"), 0644), qt.IsNil)

	good, err := checksum.File(path, "sha256")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, checksum.Verify(path, good), qt.IsNil)

	// truncate and watch verification fail
	qt.Assert(t, os.WriteFile(path, []byte("hello"), 0644), qt.IsNil)
	err = checksum.Verify(path, good)
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-checksum-mismatch")
}
