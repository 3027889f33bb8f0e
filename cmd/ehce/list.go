package main

import (
	"fmt"

	"github.com/ehce/ehce/internal/mods"
	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [root...]",
		Short: "List mod directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{a.cfg.Mods.Root}
			}
			for _, name := range mods.Available(args...) {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
