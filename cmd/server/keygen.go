package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smartsoil/smartsoil/internal/crypto"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Print a new STATE_ENCRYPTION_KEY",
	Long: `Generate a random AES-256 key for sealing session state in Redis and
print it base64 encoded, ready to paste into STATE_ENCRYPTION_KEY.`,
	Args: cobra.NoArgs,
	RunE: runKeygen,
}

func runKeygen(cmd *cobra.Command, args []string) error {
	key, err := crypto.GenerateKeyBase64()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), key)
	return nil
}
