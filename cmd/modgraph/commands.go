package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/kingrea/modgraph/internal/config"
	"github.com/kingrea/modgraph/internal/logbook"
	"github.com/kingrea/modgraph/internal/logging"
	"github.com/kingrea/modgraph/internal/metrics"
	"github.com/kingrea/modgraph/internal/module"
	"github.com/kingrea/modgraph/internal/publish"
	"github.com/kingrea/modgraph/internal/server"
	"github.com/kingrea/modgraph/internal/tui"
	"github.com/kingrea/modgraph/internal/watch"
	"github.com/kingrea/modgraph/internal/workflow/engine"
)

const shutdownTimeout = 5 * time.Second

// workspace is everything a command needs once the project is loaded.
type workspace struct {
	cfg      *config.Config
	logger   *logging.Logger
	book     *logbook.Logbook
	recorder *metrics.Recorder
	engine   *engine.Engine
}

func bootstrap(opts *Options, logToStderr bool) (*workspace, error) {
	cfg, err := config.NewConfig(opts.ProjectDir)
	if err != nil {
		return nil, err
	}
	opts.Apply(cfg)
	logOpts := logging.Options{
		Level:  cfg.Project.Logging.Level,
		Format: cfg.Project.Logging.Format,
		File:   cfg.LogFile(),
	}
	if !logToStderr {
		// The TUI owns the terminal; keep records in the log file only.
		logOpts.Output = io.Discard
	}
	logger, err := logging.New(logOpts)
	if err != nil {
		return nil, err
	}
	book, err := logbook.New(cfg.LogbookPath())
	if err != nil {
		logger.Close()
		return nil, err
	}
	catalog, err := module.LoadCatalogFile(cfg.CatalogPath())
	if err != nil {
		logger.Close()
		return nil, err
	}
	recorder := metrics.NewRecorder()
	eng, err := engine.New(catalog,
		engine.WithLogger(logger.Logger),
		engine.WithLogbook(book),
		engine.WithRecorder(recorder),
		engine.WithStateStore(engine.NewRepository(cfg.StateDir())),
	)
	if err != nil {
		logger.Close()
		return nil, err
	}
	logger.V(logging.VERBOSE).Info("catalog loaded", "path", cfg.CatalogPath(), "modules", catalog.Len())
	return &workspace{cfg: cfg, logger: logger, book: book, recorder: recorder, engine: eng}, nil
}

func (rt *workspace) close() {
	_ = rt.logger.Close()
}

func (rt *workspace) reload(ctx context.Context) error {
	_, err := rt.engine.LoadFile(ctx, rt.cfg.ConfigurationPath())
	return err
}

func runInit(opts *Options) error {
	if err := config.InitDir(opts.ProjectDir); err != nil {
		return fmt.Errorf("init %s: %w", config.Dir, err)
	}
	fmt.Printf("Initialized %s in %s\n", config.Dir, opts.ProjectDir)
	return nil
}

func runResolve(opts *Options) error {
	rt, err := bootstrap(opts, true)
	if err != nil {
		return err
	}
	defer rt.close()
	snap, err := rt.engine.LoadFile(context.Background(), rt.cfg.ConfigurationPath())
	if err != nil {
		fmt.Fprintln(os.Stderr, tui.RenderError(err))
		return errRejected
	}
	fmt.Println(tui.RenderReport(snap))
	return nil
}

func runInspect(opts *Options) error {
	rt, err := bootstrap(opts, false)
	if err != nil {
		return err
	}
	defer rt.close()
	// A rejected configuration still opens the inspector; the header shows
	// the error and "r" retries.
	_ = rt.reload(context.Background())
	app, err := tui.NewApp(rt.engine, tui.WithReload(rt.reload), tui.WithLogbook(rt.book))
	if err != nil {
		return err
	}
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run TUI: %w", err)
	}
	return nil
}

func runServe(opts *Options) error {
	rt, err := bootstrap(opts, true)
	if err != nil {
		return err
	}
	defer rt.close()
	log := rt.logger.WithName("serve")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if rt.cfg.Project.Publish.Enabled() {
		pub, err := publish.NewNATSPublisher(ctx, rt.cfg.Project.Publish.NATSURL)
		if err != nil {
			return err
		}
		defer pub.Close()
		rt.engine.Subscribe(publish.Listener(ctx, pub, rt.cfg.Project.Publish.Subject, rt.logger.Logger))
		log.Info("publishing views", "url", rt.cfg.Project.Publish.NATSURL, "subject", rt.cfg.Project.Publish.Subject)
	}

	if err := rt.reload(ctx); err != nil {
		// Keep serving: the watcher picks up the fix.
		log.Error(err, "initial resolution failed", "path", rt.cfg.ConfigurationPath())
	}

	g, gctx := errgroup.WithContext(ctx)

	if !opts.NoHTTP {
		srv, err := server.New(server.SettingsFromConfig(rt.cfg), rt.engine,
			server.WithMetrics(rt.recorder.Handler()),
			server.WithLogbook(rt.book),
			server.WithLogger(rt.logger.Logger),
		)
		if err != nil {
			return err
		}
		if err := srv.Start(gctx); err != nil && !errors.Is(err, server.ErrDisabled) {
			return err
		}
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if rt.cfg.Project.Watch.Enabled {
		reload := func(ctx context.Context, path string) error {
			_, err := rt.engine.LoadFile(ctx, path)
			return err
		}
		w, err := watch.New(reload, []string{rt.cfg.ConfigurationPath()},
			watch.WithDebounce(rt.cfg.Project.Watch.Debounce),
			watch.WithLogger(rt.logger.Logger),
		)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return w.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	err = g.Wait()
	log.Info("stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
