package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NublyBR/go-bincode"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd := newRootCommand(strings.NewReader(stdin), &out)
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	err := cmd.Execute()

	return out.String(), err
}

func TestEncode(t *testing.T) {
	out, err := run(t, `{"a": true}`, "encode", "--endian", "big")
	require.NoError(t, err)

	assert.Equal(t, "0000000000000001"+"0000000000000001"+"61"+"01"+"\n", out)
}

func TestEncodeNumbers(t *testing.T) {
	// JSON numbers are float64.
	out, err := run(t, `[1]`, "encode", "--array-length", "u8")
	require.NoError(t, err)

	assert.Equal(t, "01"+"000000000000f03f"+"\n", out)
}

func TestSize(t *testing.T) {
	out, err := run(t, `"ab"`, "size")
	require.NoError(t, err)
	assert.Equal(t, "10\n", out)

	out, err = run(t, `"ab"`, "size", "--string-length", "u8")
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)
}

func TestLimit(t *testing.T) {
	_, err := run(t, `"abc"`, "encode", "--limit", "4")
	assert.ErrorIs(t, err, bincode.ErrSizeLimit)

	_, err = run(t, `"abc"`, "size", "--limit", "11")
	assert.NoError(t, err)
}

func TestInvalidInput(t *testing.T) {
	_, err := run(t, `{`, "encode")
	assert.ErrorContains(t, err, "read json")

	_, err = run(t, `null`, "encode")
	assert.ErrorIs(t, err, &bincode.Error{Kind: bincode.KindCustom})

	_, err = run(t, `1`, "encode", "--endian", "middle")
	assert.Error(t, err)
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bincode.yaml")
	require.NoError(t, os.WriteFile(path, []byte("limit: 100\nendian: big\nstring_length: u16\n"), 0o600))

	out, err := run(t, "", "config", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "limit: 100\nendian: big\nstring_length: u16\narray_length: u64\n", out)

	// Flags win over the file.
	out, err = run(t, "", "config", "--config", path, "--endian", "little", "--limit", "unlimited")
	require.NoError(t, err)
	assert.Equal(t, "limit: unlimited\nendian: little\nstring_length: u16\narray_length: u64\n", out)

	out, err = run(t, `"ab"`, "encode", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "0002"+"6162"+"\n", out)

	_, err = run(t, "", "config", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDefaultConfig(t *testing.T) {
	out, err := run(t, "", "config")
	require.NoError(t, err)
	assert.Equal(t, "limit: unlimited\nendian: little\nstring_length: u64\narray_length: u64\n", out)
}
