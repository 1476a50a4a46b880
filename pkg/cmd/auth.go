package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yeisme/carevault/pkg/internal/auth"
)

var (
	authCmd = &cobra.Command{
		Use:   "auth",
		Short: "Authentication helpers",
	}

	authHashCmd = &cobra.Command{
		Use:   "hash [password]",
		Short: "print a bcrypt hash for auth.password_hash; reads stdin when no argument is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string

			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}

				password = strings.TrimRight(line, "\r\n")
			}

			if password == "" {
				return fmt.Errorf("password is empty")
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), hash)

			return nil
		},
	}
)

func registerAuthCommands() {
	authCmd.AddCommand(authHashCmd)
	rootCmd.AddCommand(authCmd)
}
