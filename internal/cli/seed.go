package cli

import (
	"fmt"

	"github.com/JonMunkholm/stagepipe/internal/pipeline"
	"github.com/JonMunkholm/stagepipe/internal/seed"
	"github.com/spf13/cobra"
)

// RunSeed is the entry point of the seed binary.
func RunSeed() ExitCode {
	return execute(NewSeedCmd())
}

// NewSeedCmd builds the data generator command.
func NewSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the pipeline tables with synthetic business data.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := cmd.Flags().GetInt("raw")
			if err != nil {
				return fmt.Errorf("failed to get raw flag: %w", err)
			}
			etl, err := cmd.Flags().GetInt("etl")
			if err != nil {
				return fmt.Errorf("failed to get etl flag: %w", err)
			}
			reset, err := cmd.Flags().GetBool("reset")
			if err != nil {
				return fmt.Errorf("failed to get reset flag: %w", err)
			}
			randSeed, err := cmd.Flags().GetUint64("seed")
			if err != nil {
				return fmt.Errorf("failed to get seed flag: %w", err)
			}
			if raw < 0 || etl < 0 {
				return fmt.Errorf("counts must not be negative")
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			opts, err := pipeline.OptionsFromConfig(cfg.Pipeline)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, acc, err := connect(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			out := cmd.OutOrStdout()
			if reset {
				res, err := pipeline.NewService(acc, opts).Reset(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "cleared %d raw, %d processed, %d final, %d etl_metrics rows\n",
					res.Raw, res.Processed, res.Final, res.EtlMetrics)
			}

			gen := seed.New(acc, seed.Options{
				Seed:                 randSeed,
				Clean:                opts.Clean,
				VariabilityThreshold: opts.VariabilityThreshold,
			})

			n, err := gen.Seed(ctx, raw)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "inserted %d raw records with processed and final rows\n", n)

			m, err := gen.SeedEtlMetrics(ctx, etl)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "inserted %d etl_metrics rows\n", m)
			return nil
		},
	}
	addGlobalFlags(cmd)
	cmd.Flags().Int("raw", 100, "raw records to generate")
	cmd.Flags().Int("etl", 50, "etl_metrics rows to generate")
	cmd.Flags().Bool("reset", false, "clear all tables first")
	cmd.Flags().Uint64("seed", 0, "random seed for reproducible data (0 = random)")
	return cmd
}
