package system

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	pasetotoken "github.com/bookspot/bookspot_backend/pkg/paseto"
)

func NewGenKeyCommand() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "gen-key",
		Short: "Generate PASETO key material for authentication.paseto",
		Long: `Generate fresh PASETO v4 keys and print them as an authentication.paseto
config fragment.

local prints one shared symmetric key. public prints a signing key and its
public half; verify-only nodes only need public_key_hex.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := pasetotoken.GenerateKeyStrings(pasetotoken.Mode(mode))
			if err != nil {
				return fmt.Errorf("failed to generate keys: %w", err)
			}
			return writeKeyConfig(cmd.OutOrStdout(), keys)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(pasetotoken.ModeLocal), "Key mode: local or public")

	return cmd
}

func writeKeyConfig(w io.Writer, keys pasetotoken.KeyStrings) error {
	lines := []string{"authentication:", "  paseto:", fmt.Sprintf("    mode: %s", keys.Mode)}
	switch keys.Mode {
	case pasetotoken.ModeLocal:
		lines = append(lines, fmt.Sprintf("    local_key_hex: %s", keys.SymmetricHex))
	case pasetotoken.ModePublic:
		lines = append(lines,
			fmt.Sprintf("    secret_key_hex: %s", keys.SecretHex),
			fmt.Sprintf("    public_key_hex: %s", keys.PublicHex),
		)
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
