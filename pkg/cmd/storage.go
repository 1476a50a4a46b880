package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/yeisme/carevault/pkg/configs"
	"github.com/yeisme/carevault/pkg/internal/storage"
	"github.com/yeisme/carevault/pkg/internal/storage/kv"
	"github.com/yeisme/carevault/pkg/internal/storage/mq"
)

var (
	kvCmd = &cobra.Command{
		Use:     "kv",
		Short:   "Key-Value store related commands",
		Aliases: []string{"keyvalue"},
	}

	kvListCmd = &cobra.Command{
		Use:     "list",
		Short:   "list all registered kv types",
		Aliases: []string{"ls", "l"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Registered kv types:")

			for _, t := range kv.GetRegisteredKVTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), "   - "+string(t))
			}
		},
	}

	mqCmd = &cobra.Command{
		Use:     "mq",
		Short:   "Message queue related commands",
		Aliases: []string{"messagequeue"},
	}

	mqListCmd = &cobra.Command{
		Use:     "list",
		Short:   "list all registered mq types",
		Aliases: []string{"ls", "l"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Registered mq types:")

			for _, t := range mq.GetRegisteredMQTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), "   - "+string(t))
			}
		},
	}

	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "connect to every configured backend and report its status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			mgr, err := storage.New(ctx, configs.GetConfig())
			if err != nil {
				return err
			}
			defer mgr.Close()

			results := mgr.Health(ctx)

			names := make([]string, 0, len(results))
			for name := range results {
				names = append(names, name)
			}

			sort.Strings(names)

			var failed []error

			for _, name := range names {
				if err := results[name]; err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%-5s unhealthy: %v\n", name, err)
					failed = append(failed, fmt.Errorf("%s: %w", name, err))

					continue
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%-5s ok\n", name)
			}

			return errors.Join(failed...)
		},
	}
)

// registerKVCommands 注册 KV 相关命令.
func registerKVCommands() {
	rootCmd.AddCommand(kvCmd)
	kvCmd.AddCommand(kvListCmd)
}

// registerMQCommands 注册 MQ 相关命令.
func registerMQCommands() {
	rootCmd.AddCommand(mqCmd, healthCmd)
	mqCmd.AddCommand(mqListCmd)
}
