package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/ehce/ehce/internal/config"
	"github.com/ehce/ehce/internal/core/event"
	"github.com/ehce/ehce/internal/mods"
	"github.com/ehce/ehce/internal/persist"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app carries what every subcommand needs once the config is loaded.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	metrics *mods.Metrics
	gather  *prometheus.Registry

	mgr *mods.Manager
	bus *event.Bus
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var cfgPath string

	root := &cobra.Command{
		Use:           "ehce",
		Short:         "Validate and inspect ship combat mods",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cfgPath)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			defer a.log.Sync()
			if a.gather == nil {
				return nil
			}
			return dumpMetrics(a.gather, cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "",
		fmt.Sprintf("config file (default: $%s or %s)", config.EnvPath, config.DefaultPath))

	root.AddCommand(newCheckCmd(a), newEvalCmd(a), newImportCmd(a), newListCmd(a))
	return root
}

func (a *app) init(cfgPath string) error {
	if cfgPath == "" {
		cfgPath = config.Path()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.cfg, a.log = cfg, log

	if cfg.Metrics.Enabled {
		a.gather = prometheus.NewRegistry()
		if a.metrics, err = mods.NewMetrics(a.gather, cfg.Metrics.Namespace); err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
	}
	return nil
}

func (a *app) options() (mods.Options, error) {
	engine, err := mods.NewEngine(a.cfg.Mods.FormulaEngine, a.log)
	if err != nil {
		return mods.Options{}, err
	}
	return mods.Options{
		Engine:    engine,
		ItemExts:  a.cfg.Mods.ItemExts,
		ImageExts: a.cfg.Mods.ImageExts,
		Log:       a.log,
		Metrics:   a.metrics,
	}, nil
}

// manager returns the mod manager, creating it on first use. Load results
// are logged from the event bus when it is flushed.
func (a *app) manager() (*mods.Manager, error) {
	if a.mgr != nil {
		return a.mgr, nil
	}
	opts, err := a.options()
	if err != nil {
		return nil, err
	}
	a.bus = event.NewBus()
	event.Subscribe(a.bus, func(e event.ModLoaded) {
		a.log.Info("mod active",
			zap.String("mod", e.ModID),
			zap.Stringer("load", e.LoadID),
			zap.String("fingerprint", e.Fingerprint),
			zap.Int("items", e.Items),
		)
	})
	event.Subscribe(a.bus, func(e event.ModLoadFailed) {
		a.log.Warn("mod rejected", zap.String("mod", e.ModID), zap.Stringer("load", e.LoadID))
	})
	a.mgr = mods.NewManager(a.bus, opts)
	return a.mgr, nil
}

// modDir picks the mod directory from args, falling back to the default mod.
func (a *app) modDir(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return filepath.Join(a.cfg.Mods.Root, a.cfg.Mods.DefaultMod)
}

// repo connects to Postgres, applies migrations, and returns the item
// repository with a cleanup func.
func (a *app) repo(ctx context.Context) (*persist.ItemRepo, func(), error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(ctx, a.cfg.Database, a.log)
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}
	if _, err := persist.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return persist.NewItemRepo(db), db.Close, nil
}

func dumpMetrics(reg *prometheus.Registry, w io.Writer) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
