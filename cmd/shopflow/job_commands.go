package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"shopflow/internal/api"
	"shopflow/internal/board"
	"shopflow/internal/jobstore"
	"shopflow/internal/stages"
	"shopflow/internal/workflow"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Manage repair jobs",
	}
	jobCmd.AddCommand(newJobAddCommand(ctx))
	jobCmd.AddCommand(newJobListCommand(ctx))
	jobCmd.AddCommand(newJobShowCommand(ctx))
	jobCmd.AddCommand(newJobHistoryCommand(ctx))
	jobCmd.AddCommand(newJobRequireCommand(ctx))
	jobCmd.AddCommand(newJobAssignCommand(ctx))
	return jobCmd
}

func newJobAddCommand(ctx *commandContext) *cobra.Command {
	var in jobstore.NewJob

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Open a job in the initial stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(s *session) error {
				job, err := s.store.CreateJob(cmd.Context(), in)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, api.JobResponse{Job: api.FromJob(job, s.engine.Projector())})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created job %d in %s\n", job.ID, stageLabel(s, job.CurrentStage))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&in.ShopID, "shop", "", "Shop identifier")
	cmd.Flags().StringVar(&in.Reference, "ref", "", "Repair order reference")
	cmd.Flags().Float64Var(&in.EstimatedHours, "hours", 0, "Estimated labour hours")
	cmd.Flags().IntVar(&in.Priority, "priority", 0, "Priority (higher is more urgent)")
	cmd.Flags().StringVar(&in.TechnicianID, "tech", "", "Assigned technician")
	_ = cmd.MarkFlagRequired("shop")
	return cmd
}

func newJobListCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list <shop>",
		Short: "List a shop's jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(s *session) error {
				shopID := strings.TrimSpace(args[0])
				var (
					jobs []*jobstore.Job
					err  error
				)
				if all {
					jobs, err = s.store.ListJobs(cmd.Context(), shopID)
				} else {
					jobs, err = s.store.ListActiveJobs(cmd.Context(), shopID)
				}
				if err != nil {
					return err
				}
				projector := s.engine.Projector()
				if ctx.jsonMode() {
					return writeJSON(cmd, map[string]any{"jobs": api.FromJobs(jobs, projector)})
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]column{numCol("ID"), textCol("Reference"), textCol("Stage"), textCol("Board"), textCol("Tech"), numCol("Hours"), numCol("Priority")},
					buildJobRows(s, jobs, projector),
					nil,
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include jobs in terminal stages")
	return cmd
}

func buildJobRows(s *session, jobs []*jobstore.Job, projector *board.Projector) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			job.Reference,
			stageLabel(s, job.CurrentStage),
			string(projector.ToBoardStage(job.CurrentStage)),
			job.TechnicianID,
			strconv.FormatFloat(job.EstimatedHours, 'f', -1, 64),
			strconv.Itoa(job.Priority),
		})
	}
	return rows
}

func newJobShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withSession(cmd, func(s *session) error {
				job, err := s.engine.GetJob(cmd.Context(), jobID)
				if err != nil {
					return failJSON(cmd, ctx, err)
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, api.JobResponse{Job: api.FromJobDetail(job, s.engine)})
				}
				printJob(cmd.OutOrStdout(), s, job, time.Now())
				return nil
			})
		},
	}
}

func printJob(out io.Writer, s *session, job *jobstore.Job, now time.Time) {
	fmt.Fprintf(out, "Job %d", job.ID)
	if job.Reference != "" {
		fmt.Fprintf(out, " (%s)", job.Reference)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Shop:         %s\n", job.ShopID)
	fmt.Fprintf(out, "  Stage:        %s\n", stageLabel(s, job.CurrentStage))
	fmt.Fprintf(out, "  Board:        %s\n", s.engine.Projector().ToBoardStage(job.CurrentStage))
	if next := s.engine.NextStages(job.CurrentStage); len(next) > 0 {
		labels := make([]string, len(next))
		for i, code := range next {
			labels[i] = string(code)
		}
		fmt.Fprintf(out, "  Next:         %s\n", strings.Join(labels, ", "))
	}
	if job.StageEnteredAt != nil {
		fmt.Fprintf(out, "  In stage:     %s\n", formatMinutes(job.TimeInStage(now)))
	}
	if job.TechnicianID != "" {
		fmt.Fprintf(out, "  Technician:   %s\n", job.TechnicianID)
	}
	fmt.Fprintf(out, "  Hours:        %s\n", strconv.FormatFloat(job.EstimatedHours, 'f', -1, 64))
	fmt.Fprintf(out, "  Priority:     %d\n", job.Priority)
	completed := job.CompletedRequirements.Strings()
	if len(completed) == 0 {
		fmt.Fprintln(out, "  Completed:    none")
	} else {
		fmt.Fprintf(out, "  Completed:    %s\n", strings.Join(completed, ", "))
	}
	if def, err := s.engine.Registry().Get(job.CurrentStage); err == nil {
		if missing := def.Requirements.Difference(job.CompletedRequirements); len(missing) > 0 {
			names := make([]string, len(missing))
			for i, req := range missing {
				names[i] = string(req)
			}
			fmt.Fprintf(out, "  Outstanding:  %s\n", strings.Join(names, ", "))
		}
	}
}

func newJobHistoryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Show a job's transition ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withSession(cmd, func(s *session) error {
				history, err := s.engine.GetHistory(cmd.Context(), jobID)
				if err != nil {
					return failJSON(cmd, ctx, err)
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, api.FromHistory(history))
				}
				printHistory(cmd.OutOrStdout(), history)
				return nil
			})
		},
	}
}

func printHistory(out io.Writer, history workflow.History) {
	if len(history.Records) == 0 {
		fmt.Fprintf(out, "Job %d has no transitions\n", history.JobID)
		return
	}
	rows := make([][]string, 0, len(history.Records))
	for _, rec := range history.Records {
		duration := "-"
		if rec.DurationMinutes != nil {
			duration = formatMinutes(rec.Duration())
		}
		rows = append(rows, []string{
			rec.TransitionTime.Local().Format("2006-01-02 15:04"),
			string(rec.FromStage),
			string(rec.ToStage),
			string(rec.Movement),
			rec.Reason,
			duration,
			rec.TechnicianID,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]column{textCol("When"), textCol("From"), textCol("To"), textCol("Movement"), textCol("Reason"), numCol("In Stage"), textCol("Tech")},
		rows,
		nil,
	))
	fmt.Fprintf(out, "Total cycle time: %s\n", formatMinutes(time.Duration(history.TotalCycleMinutes)*time.Minute))
}

func newJobRequireCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "require <id> <requirement>...",
		Short: "Mark requirements of a job satisfied",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			reqs := make([]stages.Requirement, 0, len(args)-1)
			for _, raw := range args[1:] {
				req, err := stages.ParseRequirement(raw)
				if err != nil {
					return err
				}
				reqs = append(reqs, req)
			}
			return ctx.withSession(cmd, func(s *session) error {
				job, err := completeRequirements(cmd.Context(), s.store, jobID, reqs)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, api.JobResponse{Job: api.FromJob(job, s.engine.Projector())})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d completed: %s\n", job.ID, strings.Join(job.CompletedRequirements.Strings(), ", "))
				return nil
			})
		},
	}
}

func completeRequirements(ctx context.Context, store *jobstore.Store, jobID int64, reqs []stages.Requirement) (*jobstore.Job, error) {
	var job *jobstore.Job
	for _, req := range reqs {
		var err error
		if job, err = store.CompleteRequirement(ctx, jobID, req); err != nil {
			return nil, err
		}
	}
	return job, nil
}

func newJobAssignCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <id> <technician>",
		Short: "Assign a job to a technician",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withSession(cmd, func(s *session) error {
				job, err := s.store.AssignTechnician(cmd.Context(), jobID, strings.TrimSpace(args[1]))
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, api.JobResponse{Job: api.FromJob(job, s.engine.Projector())})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d assigned to %s\n", job.ID, job.TechnicianID)
				return nil
			})
		},
	}
}

func parseJobID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", raw)
	}
	return id, nil
}

func stageLabel(s *session, code stages.Code) string {
	def, err := s.engine.Registry().Get(code)
	if err != nil {
		return string(code)
	}
	return def.DisplayName()
}
