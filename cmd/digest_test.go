package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haierkeys/fast-note-anchor/pkg/digest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runDigest(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	c := newDigestCmd()
	var out bytes.Buffer
	c.SetOut(&out)
	c.SetErr(&out)
	c.SetIn(strings.NewReader(stdin))
	c.SetArgs(args)
	err := c.Execute()
	return out.String(), err
}

func TestDigestCommand(t *testing.T) {
	out, err := runDigest(t, "", "hello")
	require.NoError(t, err)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824\n", out)
}

func TestDigestCommandFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.md")
	require.NoError(t, os.WriteFile(path, []byte("# title\nbody"), 0o644))

	out, err := runDigest(t, "", "-f", path)
	require.NoError(t, err)
	assert.Equal(t, digest.Digest("# title\nbody")+"\n", out)

	out, err = runDigest(t, "from stdin", "-f", "-")
	require.NoError(t, err)
	assert.Equal(t, digest.Digest("from stdin")+"\n", out)
}

func TestDigestCommandInputErrors(t *testing.T) {
	_, err := runDigest(t, "")
	assert.Error(t, err)

	_, err = runDigest(t, "", "-f", "x.md", "content")
	assert.Error(t, err)

	_, err = runDigest(t, "", "-f", filepath.Join(t.TempDir(), "missing.md"))
	assert.Error(t, err)
}

func TestDigestVerifyCommand(t *testing.T) {
	hash := digest.Digest("kept")

	out, err := runDigest(t, "", "verify", "--hash", hash, "kept")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "intact\n"))

	out, err = runDigest(t, "", "verify", "--hash", hash, "changed")
	assert.ErrorIs(t, err, ErrDigestMismatch)
	assert.Contains(t, out, "modified")
	assert.Contains(t, out, digest.Digest("changed"))

	_, err = runDigest(t, "", "verify", "kept")
	assert.Error(t, err, "--hash is required")
}
