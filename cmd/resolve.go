package main

import (
	"github.com/spf13/cobra"
)

var (
	resolveCategory    string
	resolveUnit        string
	resolveSkipRefresh bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <item>",
	Short: "Resolve an item to an emission factor, estimating it when no table row matches",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat := requestCategory(resolveCategory)

		env, err := initApp(cmd.Context(), "resolve")
		if err != nil {
			return err
		}
		defer env.Close()

		if !resolveSkipRefresh {
			env.refresh(cmd.Context())
		}

		return printJSON(cmd.OutOrStdout(), env.Resolver.ResolveFactor(cmd.Context(), args[0], cat, resolveUnit))
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveCategory, "category", "", "item category (FOOD, TRANSPORT, ENERGY, WATER)")
	resolveCmd.Flags().StringVar(&resolveUnit, "unit", "", "unit the quantity is logged in (grams/g harmonizes per_kg factors)")
	resolveCmd.Flags().BoolVar(&resolveSkipRefresh, "skip-refresh", false, "resolve against built-in seeds only")
	rootCmd.AddCommand(resolveCmd)
}
