package root

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"fireq/internal/security"
)

func newSignCmd(flags *configFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sign [payload]",
		Short: "Print the X-Hub-Signature of a payload file (stdin when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			var body []byte
			if len(args) == 1 {
				body, err = os.ReadFile(args[0])
			} else {
				body, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), security.Sign(body, []byte(cfg.Secret)))
			return err
		},
	}
}
