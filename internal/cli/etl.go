package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/JonMunkholm/stagepipe/internal/database"
	"github.com/JonMunkholm/stagepipe/internal/pipeline"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// RunETL is the entry point of the etl binary.
func RunETL() ExitCode {
	return execute(NewETLCmd())
}

// NewETLCmd builds the etl command tree.
func NewETLCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "etl",
		Short: "Move records through the raw, processed and final stages.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	addGlobalFlags(root)

	extract := &cobra.Command{
		Use:   "extract",
		Short: "Store source records in raw_data",
	}
	extract.AddCommand(newExtractCSVCmd(), newExtractAPICmd())

	root.AddCommand(
		extract,
		newStageCmd("transform", "Clean raw records into processed_data"),
		newStageCmd("load", "Analyze processed records into final_data"),
		newRunCmd(),
		newResetCmd(),
		newStatusCmd(),
	)
	return root
}

// withService loads config, connects and hands fn a ready service.
func withService(cmd *cobra.Command, fn func(svc *pipeline.Service) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts, err := pipeline.OptionsFromConfig(cfg.Pipeline)
	if err != nil {
		return err
	}

	pool, acc, err := connect(cmd.Context(), cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(pipeline.NewService(acc, opts))
}

func newExtractCSVCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "csv <path>",
		Short: "Store each row of a CSV file as a raw record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := cmd.Flags().GetString("source")
			if err != nil {
				return fmt.Errorf("failed to get source flag: %w", err)
			}
			return withService(cmd, func(svc *pipeline.Service) error {
				n, err := svc.ExtractCSV(cmd.Context(), args[0], source)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "extracted %d records from %s\n", n, args[0])
				return nil
			})
		},
	}
	cmd.Flags().String("source", "csv", "source label stored with each record")
	return cmd
}

func newExtractAPICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api <url>",
		Short: "Fetch a JSON document and store it as one raw record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := cmd.Flags().GetString("source")
			if err != nil {
				return fmt.Errorf("failed to get source flag: %w", err)
			}
			params, err := cmd.Flags().GetStringToString("param")
			if err != nil {
				return fmt.Errorf("failed to get param flag: %w", err)
			}
			return withService(cmd, func(svc *pipeline.Service) error {
				n, err := svc.ExtractAPI(cmd.Context(), args[0], params, source)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "extracted %d record from %s\n", n, args[0])
				return nil
			})
		},
	}
	cmd.Flags().String("source", "api", "source label stored with the record")
	cmd.Flags().StringToString("param", nil, "query parameter key=value (repeatable)")
	return cmd
}

// newStageCmd builds transform and load, which differ only in the method
// they call.
func newStageCmd(name, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var id *int64
			if cmd.Flags().Changed("id") {
				v, err := cmd.Flags().GetInt64("id")
				if err != nil {
					return fmt.Errorf("failed to get id flag: %w", err)
				}
				if v < 1 {
					return fmt.Errorf("invalid id: %d", v)
				}
				id = &v
			}
			return withService(cmd, func(svc *pipeline.Service) error {
				run := svc.Transform
				if name == "load" {
					run = svc.Load
				}
				n, err := run(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d records\n", name, n)
				return nil
			})
		},
	}
	cmd.Flags().Int64("id", 0, "process only the record with this upstream id")
	return cmd
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Transform then load everything pending",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(svc *pipeline.Service) error {
				res, err := svc.Run(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "run %s: transformed %d, loaded %d\n", res.RunID, res.Transformed, res.Loaded)
				return nil
			})
		},
	}
}

func newResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every row from all pipeline tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			yes, err := cmd.Flags().GetBool("yes")
			if err != nil {
				return fmt.Errorf("failed to get yes flag: %w", err)
			}
			if !yes {
				return fmt.Errorf("reset deletes all data; repeat with --yes")
			}
			return withService(cmd, func(svc *pipeline.Service) error {
				res, err := svc.Reset(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted final=%d processed=%d raw=%d etl_metrics=%d\n",
					res.Final, res.Processed, res.Raw, res.EtlMetrics)
				return nil
			})
		},
	}
	cmd.Flags().Bool("yes", false, "confirm the reset")
	return cmd
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show stage counts and recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := cmd.Flags().GetInt("runs")
			if err != nil {
				return fmt.Errorf("failed to get runs flag: %w", err)
			}
			return withService(cmd, func(svc *pipeline.Service) error {
				counts, err := svc.Status(cmd.Context())
				if err != nil {
					return err
				}
				runs, err := svc.Runs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				printCounts(cmd.OutOrStdout(), counts)
				printRuns(cmd.OutOrStdout(), runs)
				return nil
			})
		},
	}
	cmd.Flags().Int("runs", 10, "number of recent runs to show")
	return cmd
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetBorder(true)
	table.SetHeader(header)
	return table
}

func printCounts(w io.Writer, c database.StageCounts) {
	table := newTable(w, []string{"Stage", "Rows", "Waiting"})
	table.Append([]string{"raw_data", itoa(c.Raw), itoa(c.PendingTransform)})
	table.Append([]string{"processed_data", itoa(c.Processed), itoa(c.PendingLoad)})
	table.Append([]string{"final_data", itoa(c.Final), ""})
	table.Append([]string{"etl_metrics", itoa(c.EtlMetrics), ""})
	table.Render()
}

func printRuns(w io.Writer, runs []database.EtlRunMetric) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return
	}
	table := newTable(w, []string{"Process", "Started", "Duration", "Records", "Result"})
	for _, m := range runs {
		result := "ok"
		if !m.Success {
			result = "failed"
			if m.ErrorMessage.Valid {
				result += ": " + m.ErrorMessage.String
			}
		}
		table.Append([]string{
			m.ProcessName,
			m.StartTime.Local().Format(time.DateTime),
			m.EndTime.Sub(m.StartTime).Round(time.Millisecond).String(),
			strconv.Itoa(int(m.RecordsProcessed)),
			result,
		})
	}
	table.Render()
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
