// Command medtracker reminds you to take your medications. It runs as a
// terminal UI by default, or as a background reminder daemon with
// --headless.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/nhle/medtracker/internal/api"
	"github.com/nhle/medtracker/internal/app"
	"github.com/nhle/medtracker/internal/clock"
	"github.com/nhle/medtracker/internal/credential"
	"github.com/nhle/medtracker/internal/logger"
	"github.com/nhle/medtracker/internal/model"
	"github.com/nhle/medtracker/internal/notify"
	"github.com/nhle/medtracker/internal/reminder"
	"github.com/nhle/medtracker/internal/store"
	appsync "github.com/nhle/medtracker/internal/sync"
)

// notificationRetention is how long inbox history is kept on disk.
const notificationRetention = 30 * 24 * time.Hour

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "medtracker: %v\n", err)
		os.Exit(1)
	}
}

// options are the command-line settings that are not part of the config
// file.
type options struct {
	configPath string
	headless   bool
}

func parseFlags(args []string) (options, *pflag.FlagSet, error) {
	var opts options
	fs := pflag.NewFlagSet("medtracker", pflag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", model.DefaultConfigPath(), "path to the YAML config file")
	fs.BoolVar(&opts.headless, "headless", false, "run reminders without the terminal UI")
	fs.String("log-level", "", "log level: debug, info, warn or error")
	fs.String("log-file", "", "write logs to this file")
	fs.String("api-url", "", "medication API base URL")
	fs.Bool("no-sound", false, "disable the reminder beep")

	if err := fs.Parse(args); err != nil {
		return opts, nil, err
	}
	return opts, fs, nil
}

// loadConfig reads the config file with flags bound on top of it.
func loadConfig(opts options, fs *pflag.FlagSet) (*model.AppConfig, error) {
	v := model.NewViper()
	bindings := map[string]string{
		"log.level":    "log-level",
		"log.file":     "log-file",
		"api.base_url": "api-url",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("binding --%s: %w", flag, err)
		}
	}

	cfg, err := model.LoadConfigWith(v, opts.configPath)
	if err != nil {
		return nil, err
	}
	if noSound, _ := fs.GetBool("no-sound"); noSound {
		cfg.Notifications.Sound = false
	}
	return cfg, nil
}

func run(args []string) error {
	opts, fs, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(opts, fs)
	if err != nil {
		return err
	}

	logFile := cfg.Log.File
	if logFile == "" && !opts.headless {
		logFile = filepath.Join(model.ConfigDir(), "medtracker.log")
	}
	log, err := logger.New(logger.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		File:    logFile,
		Service: "medtracker",
	})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	loc, err := clock.LoadLocation(cfg.Reminders.Timezone)
	if err != nil {
		log.Warn("falling back to UTC+6", zap.Error(err))
	}
	clk := clock.System(loc)

	db, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	pruneHistory(db, clk, log)

	inbox := notify.NewInbox(log.Named("inbox"), notify.WithPersister(db), notify.WithNow(func() time.Time {
		return clk.Now().Time
	}))
	defer inbox.Close()
	if err := inbox.Load(context.Background()); err != nil {
		log.Warn("loading inbox history", zap.Error(err))
	}

	var sound notify.SoundPlayer = notify.NopSound{}
	if cfg.Notifications.Sound {
		sound = notify.BeepSound{}
	}
	emitter := notify.NewEmitter(inbox, sound, notify.DesktopPopup{}, log.Named("emitter"))
	emitter.SetDesktopPermission(cfg.Notifications.Desktop)
	defer emitter.Wait()

	tokens := credential.NewStore(model.ConfigDir())
	client := api.NewClient(api.Options{
		BaseURL:            cfg.API.BaseURL,
		Timeout:            time.Duration(cfg.API.TimeoutSec) * time.Second,
		Location:           loc,
		DefaultLeadMinutes: cfg.Reminders.DefaultLeadMinutes,
		Logger:             log.Named("api"),
	})

	poller := appsync.New(appsync.Deps{
		Directory: client,
		Clock:     clk,
		Evaluator: reminder.NewEvaluator(clk, cfg.Reminders.RepeatInterval(), log.Named("reminder")),
		Emitter:   emitter,
		Active:    inbox,
		Cache:     db,
		Logger:    log.Named("poller"),
	}, appsync.Config{
		PollInterval:    cfg.Reminders.PollInterval(),
		CleanupInterval: cfg.Reminders.CleanupInterval(),
		FetchTimeout:    time.Duration(cfg.API.TimeoutSec) * time.Second,
		AutoMissAfter:   cfg.Reminders.AutoMissAfter(),
	})

	if opts.headless {
		return runHeadless(client, tokens, poller, log)
	}

	m := app.New(app.Deps{
		Config:     cfg,
		ConfigPath: opts.configPath,
		Clock:      clk,
		Poller:     poller,
		Session:    client,
		Tokens:     tokens,
		Inbox:      inbox,
		Logger:     log.Named("app"),
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	poller.Stop()
	if err != nil {
		return fmt.Errorf("running terminal UI: %w", err)
	}
	return nil
}

// pruneHistory drops inbox entries past the retention window.
func pruneHistory(db *store.SQLiteStore, clk *clock.Clock, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	before := clk.Now().Time.Add(-notificationRetention)
	n, err := db.PruneNotifications(ctx, before)
	if err != nil {
		log.Warn("pruning notification history", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("pruned notification history", zap.Int64("removed", n))
	}
}
