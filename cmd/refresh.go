package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch every configured factor table, refresh the payload cache, and print the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initApp(cmd.Context(), "refresh")
		if err != nil {
			return err
		}
		defer env.Close()

		return printJSON(cmd.OutOrStdout(), env.refresh(cmd.Context()))
	},
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}
