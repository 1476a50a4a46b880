package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/yeisme/carevault/pkg/app"
	"github.com/yeisme/carevault/pkg/configs"
	ctxPkg "github.com/yeisme/carevault/pkg/context"
	"github.com/yeisme/carevault/pkg/extract"
	"github.com/yeisme/carevault/pkg/internal/service"
)

const cliActor = "cli"

var (
	sweepGrace time.Duration

	recordCmd = &cobra.Command{
		Use:   "record",
		Short: "Patient record maintenance commands",
	}

	recordDecryptCmd = &cobra.Command{
		Use:   "decrypt <patient_id>",
		Short: "print the decrypted document text of a patient record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRecords(cmd.Context(), func(ctx context.Context, svc *service.RecordService) error {
				rec, text, err := svc.ReadText(ctx, args[0])
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.ErrOrStderr(), "record %d, patient %d (%s), %s\n", rec.ID, rec.PatientID, rec.PatientName, rec.DocumentName)
				fmt.Fprintln(cmd.OutOrStdout(), text)

				return nil
			})
		},
	}

	recordExtractCmd = &cobra.Command{
		Use:   "extract <file>",
		Short: "extract text from a local .docx or .pptx file without storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			text, err := extract.Default().Extract(cmd.Context(), data, extract.ExtOf(args[0]))
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), text)

			return nil
		},
	}

	recordAuditCmd = &cobra.Command{
		Use:   "audit",
		Short: "decrypt every stored payload and report the ones that fail",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRecords(cmd.Context(), func(ctx context.Context, svc *service.RecordService) error {
				res, err := svc.AuditPayloads(ctx, configs.GetConfig().Jobs.AuditBatchSize)
				if err != nil {
					return err
				}

				b, err := sonic.ConfigStd.MarshalIndent(res, "", "  ")
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), string(b))

				if res.Failed > 0 {
					return fmt.Errorf("%d payloads failed to decrypt", res.Failed)
				}

				return nil
			})
		},
	}

	recordSweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "remove stored documents no record refers to",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRecords(cmd.Context(), func(ctx context.Context, svc *service.RecordService) error {
				n, err := svc.SweepOrphans(ctx, sweepGrace)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "removed %d orphan documents\n", n)

				return nil
			})
		},
	}
)

// withRecords 打开存储并以 cli 身份执行 fn.
func withRecords(ctx context.Context, fn func(context.Context, *service.RecordService) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.NewRecordsOnly(ctx, configs.GetConfig())
	if err != nil {
		return err
	}

	err = fn(ctxPkg.WithActor(ctx, cliActor), a.Records())

	return errors.Join(err, a.Close())
}

func registerRecordCommands() {
	recordSweepCmd.Flags().DurationVar(&sweepGrace, "grace", 24*time.Hour, "skip documents younger than this")

	recordCmd.AddCommand(recordDecryptCmd, recordExtractCmd, recordAuditCmd, recordSweepCmd)
	rootCmd.AddCommand(recordCmd)
}
