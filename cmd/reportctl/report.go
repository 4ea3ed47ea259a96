package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"finassist/internal/core"
	"finassist/internal/services"
)

func newReportCmd(a *app) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate, inspect and delete reports",
	}
	cmd.PersistentFlags().StringVar(&owner, "owner", "", "Owner (user id) of the reports")
	_ = cmd.MarkPersistentFlagRequired("owner")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "monthly YYYY-MM",
			Short: "Get or generate the monthly report",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := a.reportService(cmd.Context())
				if err != nil {
					return err
				}
				r, err := svc.GetMonthlyReport(cmd.Context(), owner, args[0])
				if err != nil {
					return err
				}
				return a.printJSON(r)
			},
		},
		&cobra.Command{
			Use:   "annual YYYY",
			Short: "Get or generate the annual report",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				year, err := services.ParseYear(args[0])
				if err != nil {
					return err
				}
				svc, err := a.reportService(cmd.Context())
				if err != nil {
					return err
				}
				r, err := svc.GetAnnualReport(cmd.Context(), owner, year)
				if err != nil {
					return err
				}
				return a.printJSON(r)
			},
		},
		&cobra.Command{
			Use:   "custom START END",
			Short: "Get or generate a report for an inclusive YYYY-MM-DD range",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				start, err := core.ParseDate(args[0])
				if err != nil {
					return fmt.Errorf("%w: %w", core.ErrInvalidRange, err)
				}
				end, err := core.ParseDate(args[1])
				if err != nil {
					return fmt.Errorf("%w: %w", core.ErrInvalidRange, err)
				}
				svc, err := a.reportService(cmd.Context())
				if err != nil {
					return err
				}
				r, err := svc.GetCustomReport(cmd.Context(), owner, start, end)
				if err != nil {
					return err
				}
				return a.printJSON(r)
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List reports, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := a.reportService(cmd.Context())
				if err != nil {
					return err
				}
				reports, err := svc.ListReports(cmd.Context(), owner)
				if err != nil {
					return err
				}
				if reports == nil {
					reports = []core.Report{}
				}
				return a.printJSON(reports)
			},
		},
		&cobra.Command{
			Use:   "show ID",
			Short: "Print a report with its category details",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				svc, err := a.reportService(cmd.Context())
				if err != nil {
					return err
				}
				r, err := svc.GetReport(cmd.Context(), owner, id)
				if err != nil {
					return err
				}
				details, err := svc.GetReportDetails(cmd.Context(), owner, id)
				if err != nil {
					return err
				}
				return a.printJSON(struct {
					Report  core.Report         `json:"report"`
					Details []core.ReportDetail `json:"details"`
				}{r, details})
			},
		},
		&cobra.Command{
			Use:   "delete ID",
			Short: "Delete a report and its details",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				svc, err := a.reportService(cmd.Context())
				if err != nil {
					return err
				}
				if err := svc.DeleteReport(cmd.Context(), owner, id); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "deleted report %d\n", id)
				return nil
			},
		},
	)
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid report id %q", s)
	}
	return id, nil
}
