package config_test

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/serum-errors/go-serum"

	"github.com/tabletools/tabcat/pkg/config"
	"github.com/tabletools/tabcat/tcapi"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	qt.Assert(t, os.WriteFile(path, []byte(`
cache_root: /var/cache/tabcat
base_uri: https://catalog.example.org
channels: [garden, meadows]
s3:
  bucket: my-tables
  region: eu-west-1
`), 0644), qt.IsNil)

	cfg, err := config.Load(path, true)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, cfg.CacheRoot, qt.Equals, "/var/cache/tabcat")
	qt.Check(t, cfg.BaseURI, qt.Equals, "https://catalog.example.org")
	qt.Check(t, cfg.Channels, qt.DeepEquals, []tcapi.Channel{"garden", "meadows"})
	qt.Check(t, cfg.S3.Bucket, qt.Equals, "my-tables")
	qt.Check(t, cfg.Remote(), qt.IsTrue)
}

func TestLoadMissingDefaultLocationIsFine(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "config.yaml"), false)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, cfg.CacheRoot, qt.Not(qt.Equals), "")
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "config.yaml"), true)
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-not-found")
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	qt.Assert(t, os.WriteFile(path, []byte("cache_root: [oops"), 0644), qt.IsNil)
	_, err := config.Load(path, true)
	qt.Check(t, serum.Code(err), qt.Equals, "tabcat-error-serialization")
}

func TestWithEnvOverrides(t *testing.T) {
	env := map[string]string{
		config.EnvCacheRoot: "/tmp/elsewhere",
		config.EnvBaseURI:   "https://other.example.org",
		config.EnvChannels:  "garden, meadows,",
		config.EnvS3Bucket:  "other-bucket",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := config.Default().WithEnv(lookup)
	qt.Check(t, cfg.CacheRoot, qt.Equals, "/tmp/elsewhere")
	qt.Check(t, cfg.BaseURI, qt.Equals, "https://other.example.org")
	qt.Check(t, cfg.Channels, qt.DeepEquals, []tcapi.Channel{"garden", "meadows"})
	qt.Check(t, cfg.S3.Bucket, qt.Equals, "other-bucket")

	// unset vars leave file values alone
	qt.Check(t, cfg.S3.Region, qt.Equals, "")
}

func TestWaldenMapping(t *testing.T) {
	cfg := config.Config{
		CacheRoot: "/var/cache/tabcat",
		S3: config.S3{
			Bucket:   "my-tables",
			Region:   "eu-west-1",
			Endpoint: "https://minio.local",
		},
	}
	w := cfg.Walden()
	qt.Check(t, w.CacheRoot, qt.Equals, "/var/cache/tabcat")
	qt.Check(t, w.Bucket, qt.Equals, "my-tables")
	qt.Check(t, w.Region, qt.Equals, "eu-west-1")
	qt.Check(t, w.Endpoint, qt.Equals, "https://minio.local")
}

func TestRemote(t *testing.T) {
	qt.Check(t, config.Config{BaseURI: "http://x"}.Remote(), qt.IsTrue)
	qt.Check(t, config.Config{BaseURI: "/data/catalog"}.Remote(), qt.IsFalse)
}
