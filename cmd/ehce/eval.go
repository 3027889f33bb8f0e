package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ehce/ehce/internal/attr"
	"github.com/ehce/ehce/internal/combat"
	"github.com/ehce/ehce/internal/mods"
	"github.com/spf13/cobra"
)

func newEvalCmd(a *app) *cobra.Command {
	var (
		build   string
		keys    []string
		reloads []string
	)
	cmd := &cobra.Command{
		Use:   "eval [dir]",
		Short: "Spawn a ship build and calculate its attributes",
		Long: `Spawn a ship build and calculate its attributes. With --reload, the given
item files are then resolved into the loaded mod, the unit is rebuilt on
the new content, and the attributes are calculated again.`,
		Example: `  ehce eval mods/core --build frigate_default --attr speed --attr armor
  ehce eval mods/core --build frigate_default --attr speed --reload edits/speed.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.loadDir(cmd, args)
			if err != nil {
				return err
			}
			reg := data.Registry
			buildID, ok := reg.ShipBuilds.ID(build)
			if !ok {
				return fmt.Errorf("ship build %q does not exist", build)
			}

			w := combat.NewWorld(a.log)
			id, err := combat.Spawn(w, reg, buildID)
			if err != nil {
				a.metrics.AttributeError(err)
				return err
			}
			g, _ := w.Graph(id)
			out := cmd.OutOrStdout()
			evalErr := evalAttrs(out, g, keys, a.metrics)
			if len(reloads) == 0 {
				return evalErr
			}

			files, err := readEdits(a.modDir(args), reloads)
			if err != nil {
				return err
			}
			data, err = a.mgr.Reload(cmd.Context(), files)
			a.bus.Flush()
			if err != nil {
				return err
			}
			if err := w.Reload(data.Registry); err != nil {
				a.metrics.AttributeError(err)
				return err
			}
			fmt.Fprintf(out, "reloaded %d file(s)\n", len(files))
			return errors.Join(evalErr, evalAttrs(out, g, keys, a.metrics))
		},
	}
	cmd.Flags().StringVar(&build, "build", "", "ship build id")
	cmd.Flags().StringArrayVar(&keys, "attr", nil, "variable to calculate (repeatable)")
	cmd.Flags().StringArrayVar(&reloads, "reload", nil, "item file to resolve into the mod afterwards (repeatable)")
	_ = cmd.MarkFlagRequired("build")
	_ = cmd.MarkFlagRequired("attr")
	return cmd
}

// evalAttrs reads every key through one probe, so a failing key leaves the
// graph untouched, then commits what was read.
func evalAttrs(out io.Writer, g *attr.Graph, keys []string, metrics *mods.Metrics) error {
	p := g.Probe()
	var errs []error
	for _, key := range keys {
		v, err := g.Lookup(key)
		if err == nil {
			var value float64
			if value, err = p.Calculate(v); err == nil {
				fmt.Fprintf(out, "%s = %g\n", key, value)
				continue
			}
		}
		metrics.AttributeError(err)
		fmt.Fprintf(out, "%s: %v\n", key, err)
		errs = append(errs, err)
	}
	if err := g.RecalculateDirty(p); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// readEdits reads changed item files. Paths inside the mod directory keep
// their mod-relative name.
func readEdits(dir string, paths []string) ([]mods.File, error) {
	files := make([]mods.File, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		name := filepath.Base(path)
		if rel, err := filepath.Rel(dir, path); err == nil && filepath.IsLocal(rel) {
			name = rel
		}
		files = append(files, mods.File{Path: filepath.ToSlash(name), Data: data})
	}
	return files, nil
}
