package main

import (
	"github.com/spf13/cobra"
)

var (
	lookupCategory    string
	lookupSkipRefresh bool
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <item>",
	Short: "Show the table row an item matches without estimating",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat := requestCategory(lookupCategory)

		env, err := initApp(cmd.Context(), "resolve")
		if err != nil {
			return err
		}
		defer env.Close()

		if !lookupSkipRefresh {
			env.refresh(cmd.Context())
		}

		return printJSON(cmd.OutOrStdout(), env.Resolver.Lookup(args[0], cat))
	},
}

func init() {
	lookupCmd.Flags().StringVar(&lookupCategory, "category", "", "item category (FOOD, TRANSPORT, ENERGY, WATER)")
	lookupCmd.Flags().BoolVar(&lookupSkipRefresh, "skip-refresh", false, "look up against built-in seeds only")
	rootCmd.AddCommand(lookupCmd)
}
