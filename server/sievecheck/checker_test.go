package sievecheck

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/migadu/sievelint/cache"
	"github.com/migadu/sievelint/consts"
	"github.com/migadu/sievelint/pkg/metrics"
	"github.com/migadu/sievelint/sieve"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChecker(t *testing.T, opts Options) *Checker {
	t.Helper()
	c, err := New(opts)
	require.NoError(t, err)
	return c
}

func messages(r *Report) []string {
	m := []string{}
	for _, d := range r.Diagnostics {
		m = append(m, d.Message)
	}
	return m
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name       string
		script     string
		strict     bool
		valid      bool
		messages   []string
		undeclared []string
	}{
		{
			name:       "valid",
			script:     "require \"fileinto\";\nfileinto \"Work\";\n",
			strict:     true,
			valid:      true,
			messages:   []string{},
			undeclared: []string{},
		},
		{
			name:       "unknown command",
			script:     "frobnicate;\n",
			strict:     true,
			messages:   []string{"Command unknown: frobnicate"},
			undeclared: []string{},
		},
		{
			name:       "missing require is reported when strict",
			script:     "fileinto \"Work\";\n",
			strict:     true,
			messages:   []string{`Extension(s) used but not declared with require: "fileinto"`},
			undeclared: []string{"fileinto"},
		},
		{
			name:       "missing require is only listed when lenient",
			script:     "fileinto \"Work\";\n",
			valid:      true,
			messages:   []string{},
			undeclared: []string{"fileinto"},
		},
		{
			name:       "lenient mode keeps other diagnostics",
			script:     "fileinto \"Work\";\nfrobnicate;\n",
			messages:   []string{"Command unknown: frobnicate"},
			undeclared: []string{"fileinto"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newChecker(t, Options{StrictRequire: tt.strict})
			r, err := c.Check(context.Background(), "test.sieve", tt.script)
			require.NoError(t, err)
			assert.Equal(t, "test.sieve", r.Name)
			assert.Equal(t, tt.valid, r.Valid)
			assert.Equal(t, tt.messages, messages(r))
			assert.Equal(t, tt.undeclared, r.Undeclared)
			assert.Equal(t, cache.Key(tt.script), r.Hash)
			assert.False(t, r.Cached)
			assert.Nil(t, r.CrossCheck)
		})
	}
}

func TestCheckDiagnosticPosition(t *testing.T) {
	c := newChecker(t, Options{StrictRequire: true})
	r, err := c.Check(context.Background(), "", "keep;\n  frobnicate;\n")
	require.NoError(t, err)
	require.Len(t, r.Diagnostics, 1)
	d := r.Diagnostics[0]
	assert.Equal(t, 2, d.Line)
	assert.Equal(t, 3, d.Column)
	assert.Equal(t, "command", d.Production)
}

func TestCheckRefusesScripts(t *testing.T) {
	c := newChecker(t, Options{MaxScriptSize: 10})

	empty := testutil.ToFloat64(metrics.RejectedScriptsTotal.WithLabelValues("empty"))
	_, err := c.Check(context.Background(), "x", " \r\n ")
	assert.ErrorIs(t, err, consts.ErrEmptyScript)
	assert.Equal(t, empty+1, testutil.ToFloat64(metrics.RejectedScriptsTotal.WithLabelValues("empty")))

	_, err = c.Check(context.Background(), "x", strings.Repeat("keep;", 3))
	assert.ErrorIs(t, err, consts.ErrScriptTooLarge)

	r, err := c.Check(context.Background(), "x", "keep;")
	require.NoError(t, err)
	assert.True(t, r.Valid)
}

func TestNew(t *testing.T) {
	_, err := New(Options{SupportedExtensions: []string{"vacation"}})
	assert.True(t, errors.Is(err, consts.ErrInvalidExtension))

	_, err = New(Options{MaxScriptSize: -1})
	assert.Error(t, err)

	c := newChecker(t, Options{})
	assert.Equal(t, sieve.DefaultSupportedExtensions, c.Extensions())

	c = newChecker(t, Options{SupportedExtensions: []string{"fileinto"}})
	assert.Equal(t, []string{"fileinto"}, c.Extensions())
	r, err := c.Check(context.Background(), "x", "require \"body\";\n")
	require.NoError(t, err)
	assert.Equal(t, []string{`Each string must be a supported sieve extension. These are not: "body"`}, messages(r))
}

func TestNestingDepthOption(t *testing.T) {
	c := newChecker(t, Options{MaxNestingDepth: 2})
	r, err := c.Check(context.Background(), "x", "if true { if true { if true { stop; } } }")
	require.NoError(t, err)
	assert.False(t, r.Valid)
	assert.Contains(t, messages(r), "Nesting too deep (maximum 2 levels)")
}

func TestCheckUsesCache(t *testing.T) {
	rc, err := cache.New(10, time.Minute, "")
	require.NoError(t, err)
	defer rc.Close()

	c := newChecker(t, Options{StrictRequire: true, Cache: rc})
	script := "frobnicate;\n"

	first, err := c.Check(context.Background(), "a.sieve", script)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, rc.Size())

	second, err := c.Check(context.Background(), "b.sieve", script)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "b.sieve", second.Name)
	assert.Equal(t, first.Hash, second.Hash)
	assert.Equal(t, first.Valid, second.Valid)
	assert.Equal(t, first.Diagnostics, second.Diagnostics)

	// Different options must not share results.
	lenient := newChecker(t, Options{StrictRequire: false, Cache: rc})
	third, err := lenient.Check(context.Background(), "a.sieve", script)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, 2, rc.Size())
}

func TestCrossCheckWithGoSieve(t *testing.T) {
	c := newChecker(t, Options{StrictRequire: true, CrossCheck: true})

	r, err := c.Check(context.Background(), "x", "require \"fileinto\";\nfileinto \"Work\";\n")
	require.NoError(t, err)
	require.NotNil(t, r.CrossCheck)
	assert.Equal(t, "go-sieve", r.CrossCheck.Engine)
	assert.True(t, r.CrossCheck.Valid)
	assert.True(t, r.CrossCheck.Agrees)

	r, err = c.Check(context.Background(), "x", "if {\n")
	require.NoError(t, err)
	require.NotNil(t, r.CrossCheck)
	assert.False(t, r.Valid)
	assert.False(t, r.CrossCheck.Valid)
	assert.NotEmpty(t, r.CrossCheck.Error)
	assert.True(t, r.CrossCheck.Agrees)
}

func TestCrossCheckDisagreement(t *testing.T) {
	c := newChecker(t, Options{StrictRequire: true, CrossCheck: true})
	var enabled []string
	c.load = func(script string, extensions []string) error {
		enabled = extensions
		return nil
	}

	before := testutil.ToFloat64(metrics.CrossCheckDisagreementsTotal)
	r, err := c.Check(context.Background(), "x", "require \"fileinto\";\nfileinto \"INBOX.Work\";\n")
	require.NoError(t, err)
	assert.False(t, r.Valid)
	require.NotNil(t, r.CrossCheck)
	assert.True(t, r.CrossCheck.Valid)
	assert.False(t, r.CrossCheck.Agrees)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.CrossCheckDisagreementsTotal))
	assert.Equal(t, []string{"envelope", "fileinto"}, enabled)
}

func TestCrossCheckSkipsUnknownExtensions(t *testing.T) {
	c := newChecker(t, Options{StrictRequire: true, CrossCheck: true})
	c.load = func(string, []string) error {
		t.Fatal("go-sieve must not be consulted")
		return nil
	}

	r, err := c.Check(context.Background(), "x", "require \"body\";\nif body :contains \"x\" { keep; }\n")
	require.NoError(t, err)
	require.NotNil(t, r.CrossCheck)
	assert.Equal(t, `extension "body" is not implemented by go-sieve`, r.CrossCheck.Skipped)
	assert.True(t, r.CrossCheck.Agrees)
}

func TestCrossCheckSkipsReject(t *testing.T) {
	c := newChecker(t, Options{StrictRequire: true, CrossCheck: true})
	c.load = func(string, []string) error {
		t.Fatal("go-sieve must not be consulted")
		return nil
	}

	r, err := c.Check(context.Background(), "x", "if size :over 1M { reject; }\n")
	require.NoError(t, err)
	assert.True(t, r.Valid)
	require.NotNil(t, r.CrossCheck)
	assert.Equal(t, `extension "reject" is not implemented by go-sieve`, r.CrossCheck.Skipped)
}

func TestRejectReasonOption(t *testing.T) {
	script := "require \"reject\";\nreject \"too big\";\n"

	plain := newChecker(t, Options{StrictRequire: true})
	r, err := plain.Check(context.Background(), "x", script)
	require.NoError(t, err)
	assert.False(t, r.Valid)

	withReason := newChecker(t, Options{StrictRequire: true, RejectReason: true})
	r, err = withReason.Check(context.Background(), "x", script)
	require.NoError(t, err)
	assert.True(t, r.Valid)
	assert.Equal(t, []string{"reject"}, r.ExtensionsNeeded)
	assert.NotEqual(t, plain.fingerprint, withReason.fingerprint)
}

func TestGoSieveLoad(t *testing.T) {
	assert.NoError(t, goSieveLoad("keep;\n", []string{}))
	assert.Error(t, goSieveLoad("keep\n", []string{}))
}
