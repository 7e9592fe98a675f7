// Command replay rebuilds interview reports from recorded chunks.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/DavidYu75/intreview/internal/app"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "replay",
		Short:         "Rebuild interview reports from recorded media",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log progress to stderr")

	rootCmd.AddCommand(newReportCmd(&verbose))
	return rootCmd
}

func newReportCmd(verbose *bool) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "report <session-id>",
		Short: "Recompute a session report from its stored chunks",
		Long:  "Decode every stored frame and audio fragment of a session, rebuild the report and print it as JSON.\nUse --save to replace the stored report.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logOut := io.Discard
			if *verbose {
				logOut = os.Stderr
			}
			logger := log.New(logOut, "", log.LstdFlags)

			a, err := app.New(app.LoadConfigFromEnv(), logger)
			if err != nil {
				return fmt.Errorf("initializing app: %w", err)
			}
			defer a.Close()

			ctx := cmd.Context()
			report, err := a.Replayer().Rebuild(ctx, args[0])
			if err != nil {
				return err
			}

			if save {
				if err := a.SaveReplayedReport(ctx, report); err != nil {
					return err
				}
				logger.Printf("replay: saved report for %s", args[0])
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report.Envelope())
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Replace the stored report with the rebuilt one")
	return cmd
}
