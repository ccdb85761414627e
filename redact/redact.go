// Package redact rewrites paths under user-home roots to opaque forms
// while preserving system paths verbatim, per spec §4.7. Applied to any
// path-typed event field before filter evaluation and before output.
package redact

import "strings"

// systemRoots are first path segments that are always returned verbatim,
// regardless of redaction being enabled.
var systemRoots = map[string]bool{
	"etc": true, "usr": true, "lib": true, "lib64": true,
	"sys": true, "proc": true, "dev": true, "tmp": true,
	"opt": true, "bin": true, "sbin": true,
}

// Path redacts a single path. When enabled is false this is the identity
// function. Idempotent: Path(Path(p), true) == Path(p, true).
func Path(path string, enabled bool) string {
	if !enabled || path == "" {
		return path
	}

	// Already-redacted forms are fixed points: without this, re-redacting
	// "/home/ROOT" would fall through to the generic "/home/<anything>"
	// rule below and collapse it to "/home/USER", breaking idempotence.
	if path == "/home/USER" || path == "/home/ROOT" ||
		hasPrefix(path, "/home/USER/") || hasPrefix(path, "/home/ROOT/") {
		return path
	}

	if rest, ok := cutPrefix(path, "/root"); ok && (rest == "" || rest[0] == '/') {
		if rest == "" {
			return "/home/ROOT"
		}
		return "/home/ROOT" + rest
	}

	if rest, ok := cutPrefix(path, "/home"); ok && (rest == "" || rest[0] == '/') {
		// rest is "" or "/<user>[/...]"
		if rest == "" {
			return "/home/USER"
		}
		// Skip the leading '/', then the username segment.
		trimmed := rest[1:]
		if i := indexByte(trimmed, '/'); i >= 0 {
			return "/home/USER" + trimmed[i:]
		}
		return "/home/USER"
	}

	if path == "var/lib" || hasPrefix(path, "/var/lib/") || path == "/var/lib" {
		return path
	}

	if len(path) > 0 && path[0] == '/' {
		end := indexByte(path[1:], '/')
		var first string
		if end < 0 {
			first = path[1:]
		} else {
			first = path[1 : 1+end]
		}
		if systemRoots[first] {
			return path
		}
	}

	return path
}

func cutPrefix(s, prefix string) (string, bool) {
	if !hasPrefix(s, prefix) {
		return "", false
	}
	return s[len(prefix):], true
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func indexByte(s string, b byte) int {
	return strings.IndexByte(s, b)
}
