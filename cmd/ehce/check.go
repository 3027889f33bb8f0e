package main

import (
	"fmt"
	"slices"

	"github.com/ehce/ehce/internal/mods"
	"github.com/spf13/cobra"
)

func newCheckCmd(a *app) *cobra.Command {
	var (
		fromDB bool
		modID  string
	)
	cmd := &cobra.Command{
		Use:   "check [dir]",
		Short: "Load a mod and report what it contains",
		Long: `Load a mod, resolve every reference, and print the number of items per
kind and the content fingerprint. On failure the full error context is
printed, deepest frame first.

Examples:
  ehce check mods/core
  ehce check --db --mod core`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data *mods.ModData
				err  error
			)
			if fromDB {
				data, err = a.loadFromDB(cmd, modID)
			} else {
				data, err = a.loadDir(cmd, args)
			}
			if err != nil {
				return err
			}
			printSummary(cmd, data)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromDB, "db", false, "load the mod from Postgres instead of a directory")
	cmd.Flags().StringVar(&modID, "mod", "", "mod id to load with --db (default: mods.default_mod)")
	return cmd
}

func (a *app) loadDir(cmd *cobra.Command, args []string) (*mods.ModData, error) {
	m, err := a.manager()
	if err != nil {
		return nil, err
	}
	defer a.bus.Flush()
	return m.LoadDir(cmd.Context(), a.modDir(args))
}

func (a *app) loadFromDB(cmd *cobra.Command, modID string) (*mods.ModData, error) {
	if modID == "" {
		modID = a.cfg.Mods.DefaultMod
	}
	m, err := a.manager()
	if err != nil {
		return nil, err
	}

	repo, closeDB, err := a.repo(cmd.Context())
	if err != nil {
		return nil, err
	}
	defer closeDB()

	files, err := repo.LoadMod(cmd.Context(), modID)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("mod %s has no files in the database", modID)
	}
	defer a.bus.Flush()
	return m.LoadFiles(cmd.Context(), modID, files)
}

func printSummary(cmd *cobra.Command, data *mods.ModData) {
	out := cmd.OutOrStdout()
	counts := data.Registry.Counts()
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)

	fmt.Fprintf(out, "mod %s\n", data.ModID)
	for _, k := range kinds {
		fmt.Fprintf(out, "  %-16s %d\n", k, counts[k])
	}
	fmt.Fprintf(out, "  %-16s %d\n", "Image", data.Registry.Images.Len())
	fmt.Fprintf(out, "fingerprint %s\n", data.Fingerprint)
}
