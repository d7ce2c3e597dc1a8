package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// ErrInvalidEnvelope is returned by verify so the process exits non-zero.
var ErrInvalidEnvelope = errors.New("envelope rejected")

func buildVerifyCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the signature and freshness of a JSON envelope",
		Long:  `Verify reads one JSON envelope from --file (or stdin) and checks its HMAC and timestamp against the configured secret and freshness window.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			var raw []byte
			if file == "" || file == "-" {
				raw, err = io.ReadAll(cmd.InOrStdin())
			} else {
				raw, err = os.ReadFile(file)
			}
			if err != nil {
				return fmt.Errorf("read envelope: %w", err)
			}

			if !newCodec(cfg).Verify(raw, cfg.Security.FreshnessWindow) {
				fmt.Fprintln(cmd.OutOrStdout(), "INVALID")
				return ErrInvalidEnvelope
			}
			fmt.Fprintln(cmd.OutOrStdout(), "VALID")
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "envelope file (default: stdin)")
	return cmd
}
