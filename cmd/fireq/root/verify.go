package root

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"fireq/internal/audit"
)

func newVerifyCmd() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "verify <log dir | journal.jsonl>",
		Short: "Check the status journal of a build for tampering",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				path = filepath.Join(path, audit.FileName)
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			j, err := audit.OpenJournal(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			entries := j.Entries()
			if list {
				for _, e := range entries {
					fmt.Fprintf(out, "%d %s %-32s %-8s %d %.16s\n",
						e.Index, e.Timestamp, e.Context, e.State, e.HTTPStatus, e.Hash)
				}
			}
			if err := j.VerifyChain(); err != nil {
				return fmt.Errorf("journal verification failed: %w", err)
			}
			if err := j.VerifyResponses(); err != nil {
				return fmt.Errorf("response verification failed: %w", err)
			}
			_, err = fmt.Fprintf(out, "journal ok: %d entries\n", len(entries))
			return err
		},
	}
	cmd.Flags().BoolVarP(&list, "list", "l", false, "print every entry")
	return cmd
}
