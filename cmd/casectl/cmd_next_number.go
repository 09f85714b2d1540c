package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"casedesk/internal/cases/models"
)

func newNextNumberCmd() *cobra.Command {
	var flags struct {
		caseType string
		year     int
	}
	cmd := &cobra.Command{
		Use:   "next-number",
		Short: "Print the number the next case of a type would receive",
		Long:  "next-number computes the next case number without reserving it.\nA concurrent create may still take the number first.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := models.ParseCaseType(flags.caseType)
			if err != nil {
				return err
			}
			cfg, log, err := env(cmd)
			if err != nil {
				return err
			}
			year := flags.year
			if year == 0 {
				year = time.Now().In(cfg.ReportLocation()).Year()
			}

			backends, err := openBackends(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer backends.Close()

			number, err := backends.Cases.NextNumber(cmd.Context(), t, year)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), number)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.caseType, "type", "", "Case type: Preventive or Corrective (required)")
	f.IntVar(&flags.year, "year", 0, "Numbering year (default: current year in REPORT_TIMEZONE)")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}
