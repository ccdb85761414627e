package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileKindOf(t *testing.T) {
	cases := []struct {
		path string
		want FileKind
	}{
		{"/etc/ssl/cert.pem", FileKindCertificate},
		{"/E.KEY", FileKindPrivateKey},
		{"/a/b/c.p12", FileKindKeystore},
		{"/etc/hosts", FileKindUnknown},
		{"/a/b/c.CRT", FileKindCertificate},
		{"/a/b/c.cer", FileKindCertificate},
		{"/a/b/c.pfx", FileKindKeystore},
		{"/a/b/c.jks", FileKindKeystore},
		{"noext", FileKindUnknown},
		{"", FileKindUnknown},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, FileKindOf(c.path), "FileKindOf(%q)", c.path)
	}
}

func TestLibraryName(t *testing.T) {
	cases := []struct {
		path string
		want string
		ok   bool
	}{
		{"/usr/lib/libssl.so.1.1", "libssl", true},
		{"libsodium.so.23", "libsodium", true},
		{"/usr/lib/libnss3", "libnss3", true},
		{"", "", false},
		{"/usr/lib/", "", false},
	}
	for _, c := range cases {
		got, ok := LibraryName(c.path)
		assert.Equalf(t, c.want, got, "LibraryName(%q) name", c.path)
		assert.Equalf(t, c.ok, ok, "LibraryName(%q) ok", c.path)
	}
}

func TestIsCryptoLibrary(t *testing.T) {
	assert.True(t, IsCryptoLibrary("/usr/lib/libssl.so.1.1"))
	assert.False(t, IsCryptoLibrary("/usr/lib/libz.so.1"))
}

func TestCachedMatchesUncached(t *testing.T) {
	c := NewCached(16)
	paths := []string{"/etc/ssl/cert.pem", "/a/b/c.p12", "/etc/hosts", "/usr/lib/libssl.so.1.1"}
	for _, p := range paths {
		require.Equal(t, FileKindOf(p), c.FileKindOf(p))

		wantName, wantOK := LibraryName(p)
		gotName, gotOK := c.LibraryName(p)
		assert.Equal(t, wantName, gotName)
		assert.Equal(t, wantOK, gotOK)

		// second lookup exercises the cache hit path
		assert.Equal(t, FileKindOf(p), c.FileKindOf(p))
	}
}
