package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/migadu/sievelint/pkg/errors"
	"github.com/migadu/sievelint/server/sievecheck"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// testConfig keeps the logs out of the test output.
func testConfig(t *testing.T, dir, extra string) string {
	t.Helper()
	return writeFile(t, dir, "sievelint.toml", "[logging]\noutput = \""+filepath.Join(dir, "log.txt")+"\"\n"+extra)
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersion(t *testing.T) {
	code, out, _ := runCLI(t, "", "-version")
	assert.Equal(t, errors.ExitOK, code)
	assert.Contains(t, out, "sievelint version dev")
}

func TestCheckValidFile(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir, "")
	file := writeFile(t, dir, "ok.sieve", "require \"fileinto\";\nfileinto \"Work\";\n")

	code, out, errOut := runCLI(t, "", "-config", cfg, file)
	assert.Equal(t, errors.ExitOK, code, errOut)
	assert.Contains(t, out, file+": uses fileinto\n")
	assert.Contains(t, out, file+": ok\n")
}

func TestCheckInvalidFile(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir, "")
	good := writeFile(t, dir, "good.sieve", "keep;\n")
	bad := writeFile(t, dir, "bad.sieve", "keep;\n  frobnicate;\n")

	code, out, _ := runCLI(t, "", "-config", cfg, good, bad)
	assert.Equal(t, errors.ExitDiagnostics, code)
	assert.Contains(t, out, good+": ok\n")
	assert.Contains(t, out, bad+":2:3: Command unknown: frobnicate\n")
}

func TestCheckStdinAsJSON(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir, "")

	code, out, _ := runCLI(t, "fileinto \"Work\";\n", "-config", cfg, "-json", "-")
	assert.Equal(t, errors.ExitDiagnostics, code)

	var reports []sievecheck.Report
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "-", reports[0].Name)
	assert.False(t, reports[0].Valid)
	assert.Equal(t, []string{"fileinto"}, reports[0].Undeclared)
}

func TestLenientRequire(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir, "[sieve]\nstrict_require = false\n")

	code, out, _ := runCLI(t, "fileinto \"Work\";\n", "-config", cfg)
	assert.Equal(t, errors.ExitOK, code)
	assert.Contains(t, out, "<stdin>: not declared with require: fileinto\n")
	assert.Contains(t, out, "<stdin>: ok\n")
}

func TestUnreadableAndRefusedFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir, "[sieve]\nmax_script_size = \"8\"\n")
	big := writeFile(t, dir, "big.sieve", "keep;\nkeep;\nkeep;\n")

	code, _, errOut := runCLI(t, "", "-config", cfg, filepath.Join(dir, "missing.sieve"), big)
	assert.Equal(t, errors.ExitUsage, code)
	assert.Contains(t, errOut, "missing.sieve")
	assert.Contains(t, errOut, "script too large")
}

func TestConfigErrors(t *testing.T) {
	dir := t.TempDir()

	code, _, errOut := runCLI(t, "", "-config", filepath.Join(dir, "nope.toml"))
	assert.Equal(t, errors.ExitUsage, code)
	assert.Contains(t, errOut, "not found")

	bad := writeFile(t, dir, "bad.toml", "[sieve]\nsupported_extensions = [\"vacation\"]\n")
	code, _, errOut = runCLI(t, "", "-config", bad)
	assert.Equal(t, errors.ExitUsage, code)
	assert.Contains(t, errOut, "invalid configuration")

	code, _, _ = runCLI(t, "", "-no-such-flag")
	assert.Equal(t, errors.ExitUsage, code)
}

func TestPersistentCacheAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir, "[cache]\nenabled = true\nmax_entries = 10\npath = \""+filepath.Join(dir, "results.db")+"\"\n")

	code, first, _ := runCLI(t, "keep;\n", "-config", cfg, "-json")
	require.Equal(t, errors.ExitOK, code)
	code, second, _ := runCLI(t, "keep;\n", "-config", cfg, "-json")
	require.Equal(t, errors.ExitOK, code)

	var a, b []sievecheck.Report
	require.NoError(t, json.Unmarshal([]byte(first), &a))
	require.NoError(t, json.Unmarshal([]byte(second), &b))
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.False(t, a[0].Cached)
	assert.True(t, b[0].Cached)
	assert.Equal(t, a[0].Hash, b[0].Hash)
}
