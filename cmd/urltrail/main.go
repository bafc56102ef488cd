package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/browser"
	log "github.com/sirupsen/logrus"
	"github.com/vincentbai/urltrail/internal/config"
	"github.com/vincentbai/urltrail/internal/database"
	"github.com/vincentbai/urltrail/internal/history"
	"github.com/vincentbai/urltrail/internal/logging"
	"github.com/vincentbai/urltrail/internal/presenter"
	"github.com/vincentbai/urltrail/internal/relay"
	"github.com/vincentbai/urltrail/internal/server"
	"github.com/vincentbai/urltrail/internal/tui"
	"github.com/vincentbai/urltrail/internal/watch"
)

func init() {
	logging.SetupBaseLogger()
}

func main() {
	cmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd = strings.ToLower(strings.TrimSpace(args[0]))
		args = args[1:]
	}

	fs := flag.NewFlagSet("urltrail "+cmd, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config.yaml")
	tabID := fs.Int("tab", -1, "Tab id to inspect (panel only)")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	logging.SetLogLevel(cfg.LogLevel)
	logging.ConfigureLogOutput(logging.OutputConfig{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	defer logging.CloseLogOutput()

	switch cmd {
	case "serve":
		err = serve(cfg)
	case "watch":
		err = watchBrowser(cfg)
	case "panel":
		if *tabID < 0 {
			usage()
			os.Exit(2)
		}
		err = panel(cfg, *tabID)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fatal(err)
	}
}

func openStore(cfg *config.Config) (*database.Database, *history.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create application directory: %w", err)
	}
	db, err := database.NewDatabase(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return db, history.NewStore(db), nil
}

func serve(cfg *config.Config) error {
	loc, err := cfg.TimeLocation()
	if err != nil {
		return err
	}
	db, store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	srv := server.NewServer(relay.New(store), store, cfg.Listen, loc)
	return srv.Start()
}

func watchBrowser(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sink watch.Sink
	if cfg.Observer.RelayURL != "" {
		sink = relay.NewClient(cfg.Observer.RelayURL, nil)
		log.Infof("delivering to relay at %s", cfg.Observer.RelayURL)
	} else {
		db, store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		sink = relay.New(store)
		log.Infof("writing to %s", cfg.Database)
	}

	devtools := watch.DevTools{
		Endpoint: cfg.Observer.DevToolsURL,
		Client:   &http.Client{Timeout: 5 * time.Second},
	}
	supervisor := watch.NewSupervisor(devtools, sink, watch.Options{
		DiscoveryInterval: cfg.Observer.DiscoveryInterval,
		PollInterval:      cfg.Observer.PollInterval,
	})
	log.Infof("watching browser at %s", cfg.Observer.DevToolsURL)
	return supervisor.Run(ctx)
}

func panel(cfg *config.Config, tabID int) error {
	loc, err := cfg.TimeLocation()
	if err != nil {
		return err
	}
	db, store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// The alternate screen owns the terminal.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
	if cfg.LogFile == "" {
		log.SetOutput(io.Discard)
	}

	p := presenter.NewPanel(store, tabID,
		presenter.WithLocation(loc),
		presenter.WithSaver(presenter.DirSaver{Dir: cfg.Panel.ExportDir}),
	)
	model := tui.New(context.Background(), p, tui.WithRefreshInterval(cfg.Panel.RefreshInterval))
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: urltrail [serve|watch|panel] [flags]")
	fmt.Fprintln(os.Stderr, "Flags: -config <path> -tab <id>")
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
