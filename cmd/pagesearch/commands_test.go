package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveContentPath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	got, err := resolveContentPath(filepath.Join("pages", "vpn.txt"))
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "pages", "vpn.txt"), got)

	got, err = resolveContentPath("/srv/helpdesk/vpn.txt")
	require.NoError(t, err)
	assert.Equal(t, "/srv/helpdesk/vpn.txt", got)

	got, err = resolveContentPath("")
	require.NoError(t, err)
	assert.Empty(t, got)
}
