package main

import (
	"fmt"

	"movieflix/internal/biz"

	"github.com/spf13/cobra"
)

func newRunETLCmd() *cobra.Command {
	var phase string
	cmd := &cobra.Command{
		Use:   "run-etl",
		Short: "Ingest a phase, load the warehouse, build the marts and export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := biz.ParsePhase(phase)
			if err != nil {
				return err
			}
			return withPipeline(cmd, func(uc *biz.PipelineUseCase) error {
				res, err := uc.Run(cmd.Context(), p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[ETL] OK: warehouse and marts ready (phase=%s). Exported: %s\n",
					res.Phase, formatSummary(res.Export))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&phase, "phase", biz.DefaultPhase.String(), fmt.Sprintf("data lake phase, one of %v", biz.Phases()))
	return cmd
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write the warehouse and the marts to CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPipeline(cmd, func(uc *biz.PipelineUseCase) error {
				summary, err := uc.Export(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[EXPORT] files written to %s :: %s\n", summary.Dir, formatRows(summary.Rows))
				return nil
			})
		},
	}
}

func newReloadCmd() *cobra.Command {
	var phase string
	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Rebuild the warehouse and the marts from the current staging tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := biz.ParsePhase(phase)
			if err != nil {
				return err
			}
			return withPipeline(cmd, func(uc *biz.PipelineUseCase) error {
				if err := uc.Reload(cmd.Context(), p); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[RELOAD] OK: warehouse and marts rebuilt (phase=%s)\n", p)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&phase, "phase", biz.DefaultPhase.String(), "phase the staging tables were ingested from")
	return cmd
}

func withPipeline(cmd *cobra.Command, fn func(*biz.PipelineUseCase) error) error {
	bc, logger, cleanup, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	uc, ucCleanup, err := wirePipeline(bc.Data, bc.Lake, logger)
	if err != nil {
		return err
	}
	defer ucCleanup()
	return fn(uc)
}

func formatSummary(s *biz.ExportSummary) string {
	if s == nil {
		return "{}"
	}
	return fmt.Sprintf("{dir: %s, rows: %s}", s.Dir, formatRows(s.Rows))
}

func formatRows(r biz.ExportCounts) string {
	return fmt.Sprintf("{dw_movies: %d, dw_users: %d, dw_ratings: %d, mart_top10: %d, mart_age: %d, mart_country: %d}",
		r.DWMovies, r.DWUsers, r.DWRatings, r.MartTop10, r.MartAge, r.MartCountry)
}
