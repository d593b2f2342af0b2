package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"shopflow/internal/api"
)

// writeJSON prints v the same way the HTTP API would serve it, indented for
// terminals.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// failJSON reports err as an api.ErrorResponse on stdout when --json is set
// and returns err so the exit status still reflects the failure.
func failJSON(cmd *cobra.Command, ctx *commandContext, err error) error {
	if err != nil && ctx.jsonMode() {
		_ = writeJSON(cmd, api.FromError(err))
	}
	return err
}
