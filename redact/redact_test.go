package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPath(t *testing.T) {
	cases := []struct {
		name    string
		path    string
		enabled bool
		want    string
	}{
		{"home user file", "/home/alice/x.pem", true, "/home/USER/x.pem"},
		{"root ssh key", "/root/.ssh/k", true, "/home/ROOT/.ssh/k"},
		{"bare root", "/root", true, "/home/ROOT"},
		{"system path untouched", "/etc/ssl/x.pem", true, "/etc/ssl/x.pem"},
		{"bare home dir", "/home/bob", true, "/home/USER"},
		{"disabled is identity", "/home/alice/x.pem", false, "/home/alice/x.pem"},
		{"var lib untouched", "/var/lib/docker/foo", true, "/var/lib/docker/foo"},
		{"usr path untouched", "/usr/lib/libssl.so", true, "/usr/lib/libssl.so"},
		{"unrelated path untouched", "/srv/data/x.pem", true, "/srv/data/x.pem"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Path(c.path, c.enabled))
		})
	}
}

func TestPathIdempotent(t *testing.T) {
	inputs := []string{
		"/home/alice/x.pem", "/root/.ssh/k", "/root", "/etc/ssl/x.pem",
		"/home/bob", "/home/ROOT/x", "/home/USER/y",
	}
	for _, p := range inputs {
		once := Path(p, true)
		twice := Path(once, true)
		assert.Equalf(t, once, twice, "redact not idempotent for %q", p)
	}
}

func TestPathSystemRootsAreFixedPoints(t *testing.T) {
	for _, root := range []string{"/etc/x", "/usr/x", "/proc/1", "/dev/null", "/tmp/x", "/opt/x", "/bin/sh", "/sbin/init", "/sys/x"} {
		assert.Equal(t, root, Path(root, true))
	}
}
