// Package classify maps file paths to a crypto-artifact kind and extracts
// canonical library names from shared-object paths. Pure functions: no
// I/O, no retained state beyond the optional cache in cached.go.
package classify

import "strings"

// FileKind is the result of classifying a path by its extension.
type FileKind uint8

const (
	FileKindUnknown FileKind = iota
	FileKindCertificate
	FileKindPrivateKey
	FileKindKeystore
)

func (k FileKind) String() string {
	switch k {
	case FileKindCertificate:
		return "certificate"
	case FileKindPrivateKey:
		return "private_key"
	case FileKindKeystore:
		return "keystore"
	default:
		return "unknown"
	}
}

// CryptoLibrarySubstrings is the canonical whitelist of crypto shared
// libraries a lib_load event must match to be considered a crypto
// artifact, per spec §4.9.
var CryptoLibrarySubstrings = []string{
	"libssl", "libcrypto", "libgnutls", "libsodium", "libnss3", "libmbedtls",
}

// extensionKinds maps each recognized extension to its FileKind.
// CryptoFileExtensions (the crypto-artifact extension set the glossary
// names) is derived from this map's keys, so the two can never drift
// apart.
var extensionKinds = map[string]FileKind{
	"pem":      FileKindCertificate,
	"crt":      FileKindCertificate,
	"cer":      FileKindCertificate,
	"key":      FileKindPrivateKey,
	"p12":      FileKindKeystore,
	"pfx":      FileKindKeystore,
	"jks":      FileKindKeystore,
	"keystore": FileKindKeystore,
}

// CryptoFileExtensions is the set of extensions FileKind recognizes as a
// crypto artifact (i.e. everything except FileKindUnknown).
var CryptoFileExtensions = extensionKeys()

func extensionKeys() []string {
	out := make([]string, 0, len(extensionKinds))
	for ext := range extensionKinds {
		out = append(out, ext)
	}
	return out
}

// FileKindOf decided by the last extension, case-insensitive. .pem is
// conservatively certificate in v1 even though PEM-encoded private keys
// are common (spec §9 open question 2: a content-sniff pass could refine
// this but v1 never reads file contents).
func FileKindOf(path string) FileKind {
	if kind, ok := extensionKinds[extOf(path)]; ok {
		return kind
	}
	return FileKindUnknown
}

func extOf(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 || i == len(path)-1 {
		return ""
	}
	slash := strings.LastIndexByte(path, '/')
	if slash > i {
		return ""
	}
	return strings.ToLower(path[i+1:])
}

// LibraryName takes the final path segment and truncates at the first
// '.', preserving bare names without a path. Returns ok=false on empty
// input.
func LibraryName(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	name := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		name = path[i+1:]
	}
	if name == "" {
		return "", false
	}
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return "", false
	}
	return name, true
}

// IsCryptoLibrary reports whether path (a mapped shared object, or a
// lib_load event's path) contains one of the canonical crypto library
// substrings. Case-sensitive by design: shared-object names on Linux are
// lowercase by convention and the substring set is itself lowercase.
func IsCryptoLibrary(path string) bool {
	for _, s := range CryptoLibrarySubstrings {
		if strings.Contains(path, s) {
			return true
		}
	}
	return false
}
