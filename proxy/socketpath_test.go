package proxy

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeSocketPath(t *testing.T) {
	rx := regexp.MustCompile(`^/tmp/server-[0-9a-f-]{36}\.sock$`)

	actual := MakeSocketPath("/tmp")

	assert.Regexp(t, rx, actual)
}

func TestMakeSocketPath_unique(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		p := MakeSocketPath("/tmp")
		assert.False(t, seen[p], "duplicate path %s", p)
		seen[p] = true
	}
}

func TestMakeSocketPath_defaultDir(t *testing.T) {
	t.Setenv("TMPDIR", "/var/tmp")

	assert.Regexp(t, `^/var/tmp/server-.*\.sock$`, MakeSocketPath(""))
}
