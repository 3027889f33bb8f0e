package main

import (
	"fmt"
	"path/filepath"

	"github.com/ehce/ehce/internal/mods"
	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	var modID string
	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Store a mod directory in Postgres",
		Long: `Load a mod directory and, if it resolves cleanly, replace the stored
files of the mod with it. Files with unknown extensions are not stored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			if modID == "" {
				modID = filepath.Base(dir)
			}
			opts, err := a.options()
			if err != nil {
				return err
			}
			opts.ModID = modID

			files, err := mods.ReadDir(dir)
			if err != nil {
				return err
			}
			items, assets := mods.Classify(files, opts)
			data, err := mods.Load(cmd.Context(), items, assets, opts)
			if err != nil {
				return err
			}

			repo, closeDB, err := a.repo(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()
			if err := repo.SaveMod(cmd.Context(), modID, append(items, assets...)); err != nil {
				return fmt.Errorf("save mod %s: %w", modID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s: %d files, fingerprint %s\n", modID, len(data.Paths), data.Fingerprint)
			return nil
		},
	}
	cmd.Flags().StringVar(&modID, "mod", "", "mod id to store under (default: directory name)")
	return cmd
}
