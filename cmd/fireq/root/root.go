// Package root wires the fireq subcommands
package root

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for fireq
func NewRootCmd() *cobra.Command {
	flags := &configFlags{}
	cmd := &cobra.Command{
		Use:   "fireq",
		Short: "Build, check and publish Superdesk instances from GitHub webhooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newServeCmd(flags),
		newSignCmd(flags),
		newReplayCmd(flags),
		newVerifyCmd(),
		newInitCmd(),
	)
	return cmd
}

// Execute runs the root command with provided args
func Execute(args []string) error {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}
