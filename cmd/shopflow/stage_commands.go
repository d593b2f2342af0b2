package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"shopflow/internal/api"
	"shopflow/internal/stages"
)

func newStagesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "List the stage catalogue in rank order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(s *session) error {
				defs := s.engine.GetStages()
				if ctx.jsonMode() {
					return writeJSON(cmd, api.StageListResponse{Stages: api.FromStages(defs)})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]column{numCol("Rank"), textCol("Code"), textCol("Name"), textCol("Next"), textCol("Requires"), numCol("Limit"), numCol("Capacity")},
					buildStageRows(defs),
					nil,
				))
				return nil
			})
		},
	}
}

func buildStageRows(defs []stages.Definition) [][]string {
	rows := make([][]string, 0, len(defs))
	for _, def := range defs {
		next := make([]string, 0, len(def.AllowedNext))
		for _, code := range def.AllowedNext {
			next = append(next, string(code))
		}
		limit := "-"
		if def.TimeLimit > 0 {
			limit = formatMinutes(def.TimeLimit)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", def.Rank),
			string(def.Code),
			def.DisplayName(),
			strings.Join(next, ", "),
			strings.Join(def.Requirements.Strings(), ", "),
			limit,
			fmt.Sprintf("%d", def.Capacity),
		})
	}
	return rows
}

func parseStageArg(raw string) stages.Code {
	return stages.Code(strings.ToLower(strings.TrimSpace(raw)))
}
