package root

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"fireq/internal/config"
)

// starterConfig is the subset of config.Config written by init
type starterConfig struct {
	Secret     string `yaml:"secret"`
	GithubAuth string `yaml:"github_auth"`
	Domain     string `yaml:"domain"`
	Base       string `yaml:"sdbase"`
	E2ECount   int    `yaml:"e2e_count"`
}

func newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter config with a fresh webhook secret",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := DefaultConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			secret, err := newSecret()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(starterConfig{
				Secret:     secret,
				GithubAuth: "user:token",
				Domain:     config.DefaultDomain,
				Base:       config.DefaultBase,
				E2ECount:   config.DefaultE2ECount,
			})
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			if err := os.WriteFile(path, data, 0o600); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\nwebhook secret: %s\n", path, secret)
			return err
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

// newSecret returns 32 random bytes, hex encoded
func newSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
