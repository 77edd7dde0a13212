package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartsoil/smartsoil/internal/crypto"
)

func TestKeygenPrintsUsableKey(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"keygen"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())

	key := strings.TrimSpace(out.String())
	sealer, err := crypto.NewSealerFromBase64(key)
	require.NoError(t, err)

	sealed, err := sealer.Seal([]byte("state"))
	require.NoError(t, err)
	opened, err := sealer.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "state", string(opened))
}

func TestKeygenRejectsArgs(t *testing.T) {
	rootCmd.SetArgs([]string{"keygen", "extra"})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	assert.Error(t, rootCmd.Execute())
}
