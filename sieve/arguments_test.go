package sieve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func argumentsOf(t *testing.T, src string) *ArgumentList {
	t.Helper()
	p := newTestParser(src)
	l := p.arguments()
	require.True(t, p.ok(), "unexpected parse error: %s", p.err)
	return l
}

func TestArgumentFollowingTag(t *testing.T) {
	l := argumentsOf(t, `:over 100 "keys"`)
	a := l.ArgumentFollowingTag(":over")
	require.NotNil(t, a)
	assert.Equal(t, uint32(100), a.Number())
	assert.True(t, l.Arguments()[0].Parsed())
	assert.True(t, l.Arguments()[1].Parsed())
	assert.False(t, l.Arguments()[2].Parsed())

	assert.Nil(t, l.ArgumentFollowingTag(":under"))
}

func TestArgumentFollowingTagErrors(t *testing.T) {
	l := argumentsOf(t, `:is :is`)
	l.ArgumentFollowingTag(":is")
	for _, a := range l.Arguments() {
		assert.Equal(t, "Tag used twice: :is", a.Error())
	}

	l = argumentsOf(t, `"x" :over`)
	assert.Nil(t, l.ArgumentFollowingTag(":over"))
	assert.Equal(t, "Tag not followed by argument: :over", l.Arguments()[1].Error())
}

func TestTakeTagged(t *testing.T) {
	l := argumentsOf(t, `:over "x"`)
	assert.Equal(t, uint32(0), l.TakeTaggedNumber(":over"))
	assert.Equal(t, "Expected a number here, not a string or string list", l.Arguments()[1].Error())

	l = argumentsOf(t, `:comparator ["a", "b"]`)
	assert.Equal(t, "a", l.TakeTaggedString(":comparator"))
	assert.Equal(t, "Expected a single string here, not a string list", l.Arguments()[1].Error())

	l = argumentsOf(t, `:content ["text/plain", "text/html"]`)
	assert.Equal(t, []string{"text/plain", "text/html"}, l.TakeTaggedStringList(":content"))
	assert.Empty(t, l.Arguments()[1].Error())

	l = argumentsOf(t, `:content 5`)
	assert.Nil(t, l.TakeTaggedStringList(":content"))
	assert.Equal(t, "Expected a string list here, not a number", l.Arguments()[1].Error())

	l = argumentsOf(t, `:under 5`)
	assert.Equal(t, uint32(5), l.TakeTaggedNumber(":under"))
	assert.Empty(t, l.Arguments()[1].Error())
}

func TestFindTag(t *testing.T) {
	l := argumentsOf(t, `:copy "Work"`)
	a := l.FindTag(":copy")
	require.NotNil(t, a)
	assert.Equal(t, ":copy", a.Tag())
	assert.True(t, a.Parsed())
	assert.False(t, l.Arguments()[1].Parsed())

	l = argumentsOf(t, `:copy :copy`)
	require.NotNil(t, l.FindTag(":copy"))
	for _, a := range l.Arguments() {
		assert.Equal(t, "Tag occurs twice: :copy", a.Error())
	}
}

func TestAllowOneTag(t *testing.T) {
	l := argumentsOf(t, `:is "a" :matches :contains`)
	l.AllowOneTag(":is", ":matches", ":contains")
	args := l.Arguments()
	assert.Equal(t, "Mutually exclusive tags used", args[0].Error())
	assert.Empty(t, args[1].Error())
	assert.Equal(t, "Tag :is conflicts with :matches", args[2].Error())
	assert.Equal(t, "Tag :is conflicts with :contains", args[3].Error())

	l = argumentsOf(t, `:is "a"`)
	l.AllowOneTag(":is", ":matches", ":contains")
	assert.Empty(t, l.Arguments()[0].Error())
}

func TestTakeStringAndList(t *testing.T) {
	l := argumentsOf(t, `:over 5 "one" ["two", "three"]`)
	l.TakeTaggedNumber(":over")
	assert.Equal(t, "one", l.TakeString())
	assert.Equal(t, []string{"two", "three"}, l.TakeStringList())

	assert.Nil(t, l.TakeStringList())
	assert.Equal(t, "Missing string/list argument", l.Error())

	l = argumentsOf(t, ``)
	assert.Equal(t, "", l.TakeString())
	assert.Equal(t, "Missing string argument", l.Error())

	l = argumentsOf(t, `:tag`)
	assert.Equal(t, "", l.TakeString())
	assert.Equal(t, "Expected a string here, not a tag", l.Arguments()[0].Error())
}

func TestFlagUnparsedAsBad(t *testing.T) {
	l := argumentsOf(t, `:x 5 "s" ["a", "b"]`)
	l.FlagUnparsedAsBad()
	args := l.Arguments()
	require.Len(t, args, 4)
	assert.Equal(t, "Unknown tag: :x", args[0].Error())
	assert.Equal(t, "Why is this number here?", args[1].Error())
	assert.Equal(t, "Why is this string/list here?", args[2].Error())
	assert.Equal(t, "Why is this string/list here?", args[3].Error())

	l = argumentsOf(t, `:x 5`)
	l.FindTag(":x")
	l.FlagUnparsedAsBad()
	assert.Empty(t, l.Arguments()[0].Error())
	assert.Equal(t, "Why is this number here?", l.Arguments()[1].Error())
}
