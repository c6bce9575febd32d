package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDForSlugDeterministic(t *testing.T) {
	slug := "local/proj:src/main.cpp|foo::bar()@12"
	assert.Equal(t, UUIDForSlug(slug), UUIDForSlug(slug))
	assert.NotEqual(t, UUIDForSlug(slug), UUIDForSlug(slug+"x"))
}

func TestTempEntitySlugRoundTrip(t *testing.T) {
	slug := TempEntitySlug("Ns::Foo::Foo(int)", 41)
	assert.Equal(t, "Ns::Foo::Foo(int)@41", slug)

	fqn, line, ok := SplitTempEntitySlug(slug)
	require.True(t, ok)
	assert.Equal(t, "Ns::Foo::Foo(int)", fqn)
	assert.Equal(t, 41, line)
}

func TestSplitTempEntitySlugRejectsMalformed(t *testing.T) {
	_, _, ok := SplitTempEntitySlug("no-line-suffix")
	assert.False(t, ok)

	_, _, ok = SplitTempEntitySlug("name@notanumber")
	assert.False(t, ok)
}

func TestSourceFileSlug(t *testing.T) {
	assert.Equal(t, "github.com/o/r:src/a.py", SourceFileSlug("github.com/o/r", "src/a.py"))
	assert.Equal(t, "local/p:dir/f.c", SourceFileSlug("local/p", `dir\f.c`))
}

func TestPersistentEntitySlugScopesByFile(t *testing.T) {
	a := PersistentEntitySlug("repo:a.cpp", "f()@3")
	b := PersistentEntitySlug("repo:b.cpp", "f()@3")
	assert.NotEqual(t, a, b)
	assert.Equal(t, "repo:a.cpp|f()@3", a)
}

func TestHeartbeatSlug(t *testing.T) {
	assert.Equal(t, "heartbeat://local/p", HeartbeatSlug("local/p"))
}
