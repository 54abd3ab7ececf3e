package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"deck/internal/activity"
	"deck/internal/app"
	deckclient "deck/internal/client"
	"deck/internal/config"
	"deck/internal/dispatch"
	"deck/internal/logging"
	"deck/internal/notify"
	"deck/internal/state"
	"deck/internal/store"
	"deck/internal/types"
)

const usageText = `deck is a terminal client for an agent session server.

Usage:
  deck <command> [flags]

Commands:
  ui             run the terminal UI (default)
  sessions       list sessions
  notifications  show notification history
  help           show help

Flags:
  -h, --help     show help

Common flags:
  --server URL   server base URL (overrides config)
  --token TOKEN  bearer token (overrides config)

Examples:
  deck
  deck sessions
  deck notifications --unread
`

func printUsage() {
	fmt.Fprint(os.Stderr, usageText)
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		exitOnErr("ui", runUI(nil))
		return
	}

	switch args[0] {
	case "-h", "--help", "help":
		printUsage()
		return
	case "ui":
		exitOnErr("ui", runUI(args[1:]))
	case "sessions":
		exitOnErr("sessions", runSessions(args[1:]))
	case "notifications":
		exitOnErr("notifications", runNotifications(args[1:]))
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func loadConfig(fs *flag.FlagSet, args []string) (config.Config, error) {
	server := fs.String("server", "", "server base URL")
	token := fs.String("token", "", "bearer token")
	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}
	path, err := config.ConfigPath()
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return config.Config{}, err
	}
	if *server != "" {
		cfg.Server.URL = *server
	}
	if *token != "" {
		cfg.Server.Token = *token
	}
	return cfg, nil
}

func runUI(args []string) error {
	fs := flag.NewFlagSet("ui", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}

	dataDir, err := config.DataDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return err
	}

	// The UI owns the terminal, so logs go to a file.
	logPath, err := config.LogPath()
	if err != nil {
		return err
	}
	log, closeLog := logging.NewFile(logPath, logging.ParseLevel(cfg.Logging.Level))
	defer func() { _ = closeLog() }()

	dbPath, err := config.DBPath()
	if err != nil {
		return err
	}
	notificationStore, err := store.OpenNotificationStore(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = notificationStore.Close() }()

	client := deckclient.New(cfg.Server.URL, cfg.Server.Token, log.With(logging.F("component", "client")))
	messages := state.NewMessageStore(log.With(logging.F("component", "messages")))
	children := state.NewChildSessionTracker()
	tracker := activity.NewTracker(log.With(logging.F("component", "activity")))
	notifier := notify.NewNotifier(log.With(logging.F("component", "notify")), notificationStore, notify.Options{
		MaxToasts:     cfg.Notify.MaxToasts,
		MaxHistory:    cfg.Notify.MaxHistory,
		ToastDuration: time.Duration(cfg.Notify.ToastDurationMS) * time.Millisecond,
	})
	prompts := app.NewPromptInbox()

	dispatcher := dispatch.NewDispatcher(dispatch.Config{
		Log:             log.With(logging.F("component", "dispatch")),
		Pull:            client,
		Messages:        messages,
		Children:        children,
		Tracker:         tracker,
		Notifier:        notifier,
		OnPromptRequest: prompts.Deliver,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	unsubscribe := client.SubscribeEvents(ctx, dispatcher.Handlers())
	defer unsubscribe()

	return app.Run(app.Deps{
		Log:        log,
		API:        client,
		Dispatcher: dispatcher,
		Messages:   messages,
		Tracker:    tracker,
		Notifier:   notifier,
		Prompts:    prompts,
		CharDelay:  time.Duration(cfg.Stream.CharDelayMS) * time.Millisecond,
	})
}

func runSessions(args []string) error {
	fs := flag.NewFlagSet("sessions", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client := deckclient.New(cfg.Server.URL, cfg.Server.Token, logging.Nop())

	sessions, err := client.ListSessions(ctx)
	if err != nil {
		return err
	}
	statuses, err := client.SessionStatus(ctx)
	if err != nil {
		statuses = map[string]types.SessionActivity{}
	}

	printSessions(sessions, statuses)
	return nil
}

func printSessions(sessions []types.Session, statuses map[string]types.SessionActivity) {
	writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tSTATUS\tPARENT\tTITLE\tDIRECTORY")
	for _, session := range sessions {
		status := statuses[session.ID]
		if status == "" {
			status = types.SessionIdle
		}
		parent := session.ParentID
		if parent == "" {
			parent = "-"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n", session.ID, status, parent, session.Title, session.Directory)
	}
	_ = writer.Flush()
}

func runNotifications(args []string) error {
	fs := flag.NewFlagSet("notifications", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	unreadOnly := fs.Bool("unread", false, "show only unread notifications")
	if err := fs.Parse(args); err != nil {
		return err
	}

	dbPath, err := config.DBPath()
	if err != nil {
		return err
	}
	notificationStore, err := store.OpenNotificationStore(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = notificationStore.Close() }()

	entries, err := notificationStore.Load(context.Background())
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "TIME\tTYPE\tREAD\tTITLE\tSESSION")
	for _, entry := range entries {
		if *unreadOnly && entry.Read {
			continue
		}
		read := "no"
		if entry.Read {
			read = "yes"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			entry.CreatedAt.Format(time.RFC3339), entry.Type, read, entry.Title, entry.SessionID)
	}
	return writer.Flush()
}

func exitOnErr(label string, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%s error: %v\n", label, err)
	os.Exit(1)
}
