package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"shopflow/internal/api"
	"shopflow/internal/workflow"
)

type moveFlags struct {
	technician   string
	notes        string
	override     bool
	authorizedBy string
	reason       string
	expect       string
}

func (f *moveFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.technician, "tech", "", "Technician performing the move (defaults to the job's)")
	cmd.Flags().StringVar(&f.notes, "notes", "", "Free-text notes stored on the transition")
	cmd.Flags().BoolVar(&f.override, "override", false, "Bypass missing requirements and allowed-next rules")
	cmd.Flags().StringVar(&f.authorizedBy, "authorized-by", "", "Who approved the override")
	cmd.Flags().StringVar(&f.reason, "reason", "", "Reason recorded on the transition")
}

func newMoveCommand(ctx *commandContext) *cobra.Command {
	var flags moveFlags

	cmd := &cobra.Command{
		Use:   "move <job> <stage>",
		Short: "Move a job to another detailed stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			req := workflow.TransitionRequest{
				JobID:         jobID,
				TargetStage:   parseStageArg(args[1]),
				TechnicianID:  strings.TrimSpace(flags.technician),
				Notes:         flags.notes,
				Override:      flags.override,
				AuthorizedBy:  strings.TrimSpace(flags.authorizedBy),
				Reason:        strings.TrimSpace(flags.reason),
				ExpectedStage: parseStageArg(flags.expect),
			}
			return ctx.withSession(cmd, func(s *session) error {
				pinned, err := pinExpectedStage(cmd.Context(), s.engine, req)
				if err != nil {
					return reportOutcome(cmd, ctx, s, workflow.TransitionOutcome{}, err)
				}
				outcome, err := s.engine.RequestTransition(cmd.Context(), pinned)
				return reportOutcome(cmd, ctx, s, outcome, err)
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&flags.expect, "expect", "", "Fail if the job is no longer in this stage (defaults to the stage read before moving)")
	cmd.AddCommand(newBatchCommand(ctx))
	return cmd
}

// pinExpectedStage fills ExpectedStage with the job's current stage when the
// caller gave none, so two operators issuing the same move concurrently get
// one success and one conflict instead of a second parallel record.
func pinExpectedStage(ctx context.Context, engine *workflow.Engine, req workflow.TransitionRequest) (workflow.TransitionRequest, error) {
	if req.ExpectedStage != "" {
		return req, nil
	}
	job, err := engine.GetJob(ctx, req.JobID)
	if err != nil {
		return req, err
	}
	req.ExpectedStage = job.CurrentStage
	return req, nil
}

func reportOutcome(cmd *cobra.Command, ctx *commandContext, s *session, outcome workflow.TransitionOutcome, err error) error {
	if err != nil {
		return failJSON(cmd, ctx, err)
	}
	if ctx.jsonMode() {
		return writeJSON(cmd, api.FromOutcome(outcome, s.engine.Projector()))
	}
	out := cmd.OutOrStdout()
	if outcome.Unchanged {
		fmt.Fprintf(out, "Job %d already in %s; nothing to do\n", outcome.Job.ID, stageLabel(s, outcome.Job.CurrentStage))
		return nil
	}
	rec := outcome.Record
	fmt.Fprintf(out, "Job %d moved %s → %s (%s, %s)\n",
		rec.JobID, stageLabel(s, rec.FromStage), stageLabel(s, rec.ToStage), rec.Movement, rec.Reason)
	if outcome.Validation.OverrideUsed && len(outcome.Validation.Missing) > 0 {
		missing := make([]string, len(outcome.Validation.Missing))
		for i, req := range outcome.Validation.Missing {
			missing[i] = string(req)
		}
		fmt.Fprintf(out, "Override bypassed: %s\n", strings.Join(missing, ", "))
	}
	return nil
}

func newBatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <file>",
		Short: "Apply a JSON batch of transitions (- reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := readBatch(cmd, args[0])
			if err != nil {
				return err
			}
			reqs := make([]workflow.TransitionRequest, len(batch.Transitions))
			for i, item := range batch.Transitions {
				reqs[i] = api.ToTransitionRequest(0, item)
			}
			return ctx.withSession(cmd, func(s *session) error {
				report, batchErr := s.engine.BatchRequestTransition(cmd.Context(), reqs)
				if ctx.jsonMode() {
					if err := writeJSON(cmd, api.FromBatch(report, s.engine.Projector())); err != nil {
						return err
					}
				} else {
					printBatch(cmd.OutOrStdout(), report)
				}
				if batchErr != nil {
					return fmt.Errorf("%d of %d transitions failed", len(report.Failures), len(reqs))
				}
				return nil
			})
		},
	}
}

func readBatch(cmd *cobra.Command, path string) (api.BatchRequest, error) {
	var reader io.Reader
	if path == "-" {
		reader = cmd.InOrStdin()
	} else {
		file, err := os.Open(path)
		if err != nil {
			return api.BatchRequest{}, fmt.Errorf("open batch file: %w", err)
		}
		defer file.Close()
		reader = file
	}
	var batch api.BatchRequest
	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&batch); err != nil {
		return api.BatchRequest{}, fmt.Errorf("parse batch: %w", err)
	}
	if len(batch.Transitions) == 0 {
		return api.BatchRequest{}, fmt.Errorf("batch contains no transitions")
	}
	return batch, nil
}

func printBatch(out io.Writer, report workflow.BatchReport) {
	for _, res := range report.Results {
		fmt.Fprintf(out, "[%d] job %d → %s\n", res.Index, res.Outcome.Job.ID, res.Outcome.Job.CurrentStage)
	}
	for _, failure := range report.Failures {
		fmt.Fprintf(out, "[%d] job %d failed (%s): %v\n", failure.Index, failure.JobID, failure.Kind, failure.Err)
	}
}
