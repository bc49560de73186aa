// Command agencyctl inspects and administers the dashboard data layer from
// a terminal: listing clients and alerts, switching the active backend and
// storing secrets in the OS keyring.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/nhle/agency-dashboard/internal/credential"
	"github.com/nhle/agency-dashboard/internal/datasource"
	"github.com/nhle/agency-dashboard/internal/datasource/factory"
	"github.com/nhle/agency-dashboard/internal/model"
	"github.com/nhle/agency-dashboard/internal/store"
	"github.com/nhle/agency-dashboard/internal/theme"
)

const usage = `usage: agencyctl [-config path] [-v] <command> [args]

commands:
  clients                 list clients of the active data source
  alerts                  list derived alerts
  onboarding [client-id]  list active onboarding cards
  add-client              create a client with the onboarding template
  convert <lead-id>       convert a won lead into a client
  kind                    print the active data source
  switch [kind]           probe and switch the data source
  reset                   drop the cached data source instance
  metrics <client-id> [metric...]
                          show or replace a client's metric selection
  sheet <url|path> [tab]  save the spreadsheet connection
  secret <name>           store a secret in the OS keyring
  counters                print telemetry counters
`

// env is what every command gets.
type env struct {
	cfg     *model.AppConfig
	local   *store.SQLiteStore
	manager *factory.Manager
	out     io.Writer
	logger  *slog.Logger
}

func main() {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to config.yaml")
	verbose := flag.Bool("v", false, "log to stderr")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *configPath, flag.Args(), logger); err != nil {
		fmt.Fprintln(os.Stderr, theme.ErrorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, args []string, logger *slog.Logger) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Hosted.DatabaseURL, err = credential.Fallback(cfg.Hosted.DatabaseURL, credential.KeyHostedDatabaseURL, nil); err != nil {
		logger.Warn("reading hosted database URL from keyring", "error", err)
	}

	if err := os.MkdirAll(dirOf(cfg.DataSource.LocalDBPath), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	local, err := store.NewSQLiteStore(cfg.DataSource.LocalDBPath)
	if err != nil {
		return fmt.Errorf("opening local store: %w", err)
	}
	defer local.Close()

	manager := factory.NewManager(
		factory.New(*cfg, local, logger),
		local, datasource.Kind(cfg.DataSource.Kind), cfg.DataSource.ProbeTimeout(), logger,
	)
	defer manager.Close()

	e := &env{cfg: cfg, local: local, manager: manager, out: os.Stdout, logger: logger}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "clients":
		return e.listClients(ctx)
	case "alerts":
		return e.listAlerts(ctx)
	case "onboarding":
		return e.listOnboarding(ctx, optionalArg(rest))
	case "add-client":
		return e.addClient(ctx)
	case "convert":
		if len(rest) != 1 {
			return fmt.Errorf("convert needs a lead id")
		}
		return e.convertLead(ctx, rest[0])
	case "kind":
		return e.printKind(ctx)
	case "switch":
		return e.switchKind(ctx, optionalArg(rest))
	case "reset":
		manager.Reset()
		fmt.Fprintln(e.out, theme.HelpStyle.Render("data source instance dropped"))
		return nil
	case "metrics":
		if len(rest) == 0 {
			return fmt.Errorf("metrics needs a client id")
		}
		return e.metrics(ctx, rest[0], rest[1:])
	case "sheet":
		if len(rest) == 0 {
			return fmt.Errorf("sheet needs a URL or path")
		}
		return e.saveSheet(ctx, rest[0], optionalArg(rest[1:]))
	case "secret":
		if len(rest) != 1 {
			return fmt.Errorf("secret needs a name")
		}
		return e.storeSecret(rest[0])
	case "counters":
		return e.printCounters(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func optionalArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
