// Package cmd 提供 carevault 命令行：启动服务以及存储、病历、认证相关的运维子命令.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/yeisme/carevault/pkg/configs"
	"github.com/yeisme/carevault/pkg/log"
)

var (
	configPath string
	debug      bool

	rootCmd = &cobra.Command{
		Use:           configs.AppName,
		Short:         "Clinical record intake service with encrypted document storage",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := configs.InitConfig(configPath); err != nil {
				return err
			}

			cfg := configs.GetConfig()
			log.Init(cfg.Log, debug || cfg.Server.Debug)

			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return log.Close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveCmd.RunE(cmd, args)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "config file or directory")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	registerServeCommands()
	registerConfigsCommands()
	registerDBCommands()
	registerKVCommands()
	registerMQCommands()
	registerBlobCommands()
	registerRecordCommands()
	registerAuthCommands()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
