package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"shopflow/internal/jobstore"
)

func newTechCommand(ctx *commandContext) *cobra.Command {
	techCmd := &cobra.Command{
		Use:   "tech",
		Short: "Manage technicians",
	}
	techCmd.AddCommand(newTechAddCommand(ctx))
	techCmd.AddCommand(newTechListCommand(ctx))
	return techCmd
}

func newTechAddCommand(ctx *commandContext) *cobra.Command {
	var tech jobstore.Technician
	var skills string

	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Register a technician",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tech.ID = strings.TrimSpace(args[0])
			for _, skill := range strings.Split(skills, ",") {
				if skill = strings.TrimSpace(skill); skill != "" {
					tech.Skills = append(tech.Skills, skill)
				}
			}
			return ctx.withSession(cmd, func(s *session) error {
				created, err := s.store.CreateTechnician(cmd.Context(), tech)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, technicianView(*created))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered technician %s in %s\n", created.ID, created.ShopID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tech.ShopID, "shop", "", "Shop identifier")
	cmd.Flags().StringVar(&tech.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&skills, "skills", "", "Comma-separated skills")
	_ = cmd.MarkFlagRequired("shop")
	return cmd
}

func newTechListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list <shop>",
		Short: "List a shop's technicians",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(s *session) error {
				techs, err := s.store.ListTechnicians(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					views := make([]map[string]any, 0, len(techs))
					for _, tech := range techs {
						views = append(views, technicianView(tech))
					}
					return writeJSON(cmd, map[string]any{"technicians": views})
				}
				out := cmd.OutOrStdout()
				if len(techs) == 0 {
					fmt.Fprintln(out, "No technicians")
					return nil
				}
				rows := make([][]string, 0, len(techs))
				for _, tech := range techs {
					rows = append(rows, []string{tech.ID, tech.Name, strings.Join(tech.Skills, ", ")})
				}
				fmt.Fprintln(out, renderTable([]column{textCol("ID"), textCol("Name"), textCol("Skills")}, rows, nil))
				return nil
			})
		},
	}
}

func technicianView(tech jobstore.Technician) map[string]any {
	skills := tech.Skills
	if skills == nil {
		skills = []string{}
	}
	return map[string]any{
		"id":     tech.ID,
		"shopId": tech.ShopID,
		"name":   tech.Name,
		"skills": skills,
	}
}
