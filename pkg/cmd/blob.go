package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yeisme/carevault/pkg/configs"
	"github.com/yeisme/carevault/pkg/internal/storage/blob"
)

var (
	blobCmd = &cobra.Command{
		Use:   "blob",
		Short: "Original document storage commands",
	}

	blobTypesCmd = &cobra.Command{
		Use:     "types",
		Short:   "list all registered blob backends",
		Aliases: []string{"ls"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Registered blob types:")

			for _, t := range blob.GetRegisteredBlobTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), "   - "+string(t))
			}
		},
	}

	blobListCmd = &cobra.Command{
		Use:   "objects [prefix]",
		Short: "list stored documents under a prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configs.GetConfig()

			prefix := cfg.Ingest.KeyPrefix + "/"
			if len(args) == 1 {
				prefix = args[0]
			}

			client, err := blob.New(cmd.Context(), cfg.Blob)
			if err != nil {
				return err
			}
			defer client.Close()

			objects, err := client.List(cmd.Context(), prefix)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tSIZE\tMODIFIED")

			for _, o := range objects {
				fmt.Fprintf(w, "%s\t%d\t%s\n", o.Key, o.Size, o.LastModified.Format("2006-01-02 15:04:05"))
			}

			return w.Flush()
		},
	}
)

func registerBlobCommands() {
	rootCmd.AddCommand(blobCmd)
	blobCmd.AddCommand(blobTypesCmd, blobListCmd)
}
