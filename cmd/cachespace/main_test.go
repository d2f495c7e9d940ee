package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentuity/go-cachespace/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	root := newRootCommand(&buf)
	root.SetArgs(append([]string{"--path", dir, "--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestSetGet(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		typ, in, out string
	}{
		{"string", "hello", "hello"},
		{"bool", "true", "true"},
		{"int32", "-42", "-42"},
		{"uint32", "42", "42"},
		{"int64", "9000000000", "9000000000"},
		{"uint64", "18446744073709551615", "18446744073709551615"},
		{"float", "1.5", "1.5"},
		{"double", "3.25", "3.25"},
		{"date", "2024-05-01T10:00:00+02:00", "2024-05-01T08:00:00Z"},
		{"data", "aGVsbG8=", "aGVsbG8="},
		{"object", `{"a":1}`, `{"a":1}`},
		{"object", `[1,"x"]`, `[1,"x"]`},
	}
	for i, tc := range cases {
		key := tc.typ + strings.Repeat("_", i)
		_, err := execute(t, dir, "set", "--type", tc.typ, key, tc.in)
		require.NoError(t, err, tc.typ)
		out, err := execute(t, dir, "get", key)
		require.NoError(t, err, tc.typ)
		assert.Equal(t, tc.out+"\n", out, tc.typ)
	}
}

func TestGetMissing(t *testing.T) {
	_, err := execute(t, t.TempDir(), "get", "nope")
	assert.ErrorIs(t, err, errNotFound)
}

func TestSetInvalid(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, dir, "set", "--type", "int32", "k", "abc")
	assert.Error(t, err)
	_, err = execute(t, dir, "set", "--type", "color", "k", "red")
	assert.Error(t, err)
	_, err = execute(t, dir, "set", "--type", "object", "k", "42")
	assert.Error(t, err)
}

func TestSpacesAreSeparate(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, dir, "--space", "session", "set", "--type", "bool", "isActive", "true")
	require.NoError(t, err)

	out, err := execute(t, dir, "--space", "session", "get", "isActive")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	_, err = execute(t, dir, "get", "isActive")
	assert.ErrorIs(t, err, errNotFound)
}

func TestKeysCountRemove(t *testing.T) {
	dir := t.TempDir()
	for _, k := range []string{"b", "a", "c"} {
		_, err := execute(t, dir, "-s", "x", "set", k, "v")
		require.NoError(t, err)
	}
	_, err := execute(t, dir, "-s", "x", "set", "--type", "bool", "d", "false")
	require.NoError(t, err)

	out, err := execute(t, dir, "-s", "x", "keys")
	require.NoError(t, err)
	assert.Equal(t, "a\tstring\t\nb\tstring\t\nc\tstring\t\nd\tbool\t\n", out)

	out, err = execute(t, dir, "-s", "x", "count")
	require.NoError(t, err)
	assert.Equal(t, "4\n", out)

	_, err = execute(t, dir, "-s", "x", "rm", "a", "b")
	require.NoError(t, err)
	out, err = execute(t, dir, "-s", "x", "count")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	_, err = execute(t, dir, "-s", "x", "clear")
	assert.Error(t, err)
	_, err = execute(t, dir, "-s", "x", "clear", "--force")
	require.NoError(t, err)
	out, err = execute(t, dir, "-s", "x", "count")
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)
}

func TestStats(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, dir, "set", "k", "v")
	require.NoError(t, err)

	fn := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(fn, []byte("disk_quota: 1Ki\n"), 0o644))
	out, err := execute(t, dir, "--config", fn, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Path: "+dir)
	assert.Contains(t, out, "Keys: 1")
	assert.Contains(t, out, "Quota: 1.0 KiB")
	assert.Contains(t, out, "over its quota")
}

func TestConfigInitAndShow(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "cachespace.yaml")
	var buf bytes.Buffer
	root := newRootCommand(&buf)
	root.SetArgs([]string{"config", "init", fn})
	require.NoError(t, root.Execute())

	cfg, err := config.Load(fn)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Shards)
	assert.Equal(t, "info", cfg.LogLevel)

	root = newRootCommand(&buf)
	root.SetArgs([]string{"config", "init", fn})
	assert.Error(t, root.Execute())

	buf.Reset()
	root = newRootCommand(&buf)
	root.SetArgs([]string{"--config", fn, "--path", "/srv/cache", "config", "show"})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "path: /srv/cache")
	assert.Contains(t, buf.String(), "shards: 16")
}
