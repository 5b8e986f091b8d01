package cli

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/JonMunkholm/stagepipe/internal/metabase"
	"github.com/spf13/cobra"
)

// RunBackup is the entry point of the backup binary.
func RunBackup() ExitCode {
	return execute(NewBackupCmd())
}

// NewBackupCmd builds the Metabase export command. URL, output directory
// and timeout default to the METABASE_* settings.
func NewBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export Metabase dashboards, collections and cards to JSON files.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			baseURL, err := flags.GetString("url")
			if err != nil {
				return fmt.Errorf("failed to get url flag: %w", err)
			}
			if baseURL == "" {
				baseURL = cfg.Metabase.URL
			}
			outDir, err := flags.GetString("output-dir")
			if err != nil {
				return fmt.Errorf("failed to get output-dir flag: %w", err)
			}
			if outDir == "" {
				outDir = cfg.Metabase.OutputDir
			}
			username, err := flags.GetString("username")
			if err != nil {
				return fmt.Errorf("failed to get username flag: %w", err)
			}
			password, err := flags.GetString("password")
			if err != nil {
				return fmt.Errorf("failed to get password flag: %w", err)
			}

			exporter := &metabase.Exporter{
				Client:    metabase.NewClient(baseURL, metabase.WithHTTPClient(&http.Client{Timeout: cfg.Metabase.Timeout})),
				Username:  username,
				Password:  password,
				OutputDir: outDir,
				Logger:    slog.Default(),
			}

			report, err := exporter.Run(cmd.Context())
			if err != nil {
				return err
			}
			printReport(cmd, report)
			if report.Failed() {
				slog.Warn("export finished with failures", "dir", report.Dir)
			}
			return nil
		},
	}
	addGlobalFlags(cmd)
	cmd.Flags().String("url", "", "Metabase base URL (default $METABASE_URL)")
	cmd.Flags().String("username", "", "Metabase username")
	cmd.Flags().String("password", "", "Metabase password")
	cmd.Flags().String("output-dir", "", "directory for the export (default $METABASE_OUTPUT_DIR)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func printReport(cmd *cobra.Command, report metabase.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "export written to %s\n", report.Dir)

	cats := make([]string, 0, len(report.Categories))
	for c := range report.Categories {
		cats = append(cats, string(c))
	}
	sort.Strings(cats)

	table := newTable(out, []string{"Category", "Listed", "Exported", "Failed", "Skipped"})
	for _, c := range cats {
		r := report.Categories[metabase.Category(c)]
		listed := fmt.Sprint(r.Listed)
		if !r.ListOK {
			listed = "list failed"
		}
		table.Append([]string{c, listed, fmt.Sprint(r.Exported), fmt.Sprint(r.Failed), fmt.Sprint(r.Skipped)})
	}
	table.Render()
}
