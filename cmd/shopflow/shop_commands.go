package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"shopflow/internal/api"
	"shopflow/internal/assignment"
	"shopflow/internal/board"
	"shopflow/internal/workflow"
	"shopflow/internal/workload"
)

func newWorkloadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "workload <shop>",
		Short: "Show stage occupancy and bottlenecks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(s *session) error {
				report, err := s.engine.GetWorkload(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, api.FromWorkload(report))
				}
				out := cmd.OutOrStdout()
				printWorkload(out, report, shouldColorize(out))
				return nil
			})
		},
	}
}

func printWorkload(out io.Writer, report workload.Report, colorize bool) {
	for _, line := range renderSectionHeader("Workload: "+report.ShopID, colorize) {
		fmt.Fprintln(out, line)
	}
	rows := make([][]string, 0, len(report.Stages))
	for _, load := range report.Stages {
		flag := ""
		if load.IsBottleneck {
			flag = highlight("bottleneck", colorize)
		}
		rows = append(rows, []string{
			load.Name,
			strconv.Itoa(load.Count),
			strconv.Itoa(load.Capacity),
			formatPercent(load.Utilization),
			strconv.Itoa(load.Overdue),
			flag,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]column{textCol("Stage"), numCol("Jobs"), numCol("Capacity"), numCol("Utilization"), numCol("Overdue"), textCol("")},
		rows,
		[]string{"Total", strconv.Itoa(report.TotalActive - report.Unplaced), strconv.Itoa(report.TotalCapacity),
			formatPercent(report.OverallUtilization), strconv.Itoa(report.Overdue)},
	))
	fmt.Fprintf(out, "Active jobs: %d of %d capacity (%s)\n",
		report.TotalActive, report.TotalCapacity, formatPercent(report.OverallUtilization))
	if report.Unplaced > 0 {
		fmt.Fprintf(out, "Jobs in unknown stages: %d\n", report.Unplaced)
	}
}

func newAssignmentsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "assignments <shop>",
		Short: "Project technician utilization and availability",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shopID := strings.TrimSpace(args[0])
			return ctx.withSession(cmd, func(s *session) error {
				projections, err := s.engine.GetTechnicianAssignments(cmd.Context(), shopID)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, api.FromProjections(shopID, projections))
				}
				printAssignments(cmd.OutOrStdout(), projections)
				return nil
			})
		},
	}
}

func printAssignments(out io.Writer, projections []assignment.Projection) {
	if len(projections) == 0 {
		fmt.Fprintln(out, "No technicians")
		return
	}
	rows := make([][]string, 0, len(projections))
	for _, p := range projections {
		rows = append(rows, []string{
			p.TechnicianID,
			p.Name,
			strconv.FormatFloat(p.AssignedHours, 'f', 1, 64),
			formatPercent(p.Utilization),
			yesNo(p.IsAvailable),
			p.NextAvailableDate.Format("2006-01-02"),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]column{textCol("ID"), textCol("Name"), numCol("Hours"), numCol("Utilization"), textCol("Available"), textCol("Next Free")},
		rows,
		nil,
	))
}

func newBoardCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board <shop>",
		Short: "Show the shop's active jobs by board column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(s *session) error {
				b, err := s.engine.GetBoard(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, api.FromBoard(b, s.engine.Projector()))
				}
				out := cmd.OutOrStdout()
				printBoard(out, b, shouldColorize(out))
				return nil
			})
		},
	}
	cmd.AddCommand(newBoardSetCommand(ctx))
	return cmd
}

func printBoard(out io.Writer, b workflow.Board, colorize bool) {
	for _, col := range b.Columns {
		for _, line := range renderSectionHeader(fmt.Sprintf("%s (%d)", col.Name, len(col.Cards)), colorize) {
			fmt.Fprintln(out, line)
		}
		for _, card := range col.Cards {
			label := fmt.Sprintf("#%d", card.JobID)
			if card.Reference != "" {
				label = fmt.Sprintf("%s %s", label, card.Reference)
			}
			fmt.Fprintf(out, "%s%s  %s  %s", statusIndent, label, card.StageName, formatMinutes(card.TimeInStage))
			if card.TechnicianID != "" {
				fmt.Fprintf(out, "  @%s", card.TechnicianID)
			}
			fmt.Fprintln(out)
		}
	}
}

func newBoardSetCommand(ctx *commandContext) *cobra.Command {
	var flags moveFlags

	cmd := &cobra.Command{
		Use:   "set <job> <column>",
		Short: "Drop a job on a board column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withSession(cmd, func(s *session) error {
				column, err := s.engine.Projector().ParseStage(args[1])
				if err != nil {
					return fmt.Errorf("%w (columns: %s)", err, columnList(s.engine.Projector()))
				}
				outcome, err := s.engine.SetBoardStage(cmd.Context(), workflow.BoardMoveRequest{
					JobID:        jobID,
					BoardStage:   string(column),
					TechnicianID: strings.TrimSpace(flags.technician),
					Notes:        flags.notes,
					Override:     flags.override,
					AuthorizedBy: strings.TrimSpace(flags.authorizedBy),
					Reason:       strings.TrimSpace(flags.reason),
				})
				return reportOutcome(cmd, ctx, s, outcome, err)
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func columnList(p *board.Projector) string {
	cols := p.Columns()
	codes := make([]string, len(cols))
	for i, col := range cols {
		codes[i] = string(col.Code)
	}
	return strings.Join(codes, ", ")
}
