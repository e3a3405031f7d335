package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/progress.report/internal/api"
	"github.com/banshee-data/progress.report/internal/config"
	"github.com/banshee-data/progress.report/internal/db"
	"github.com/banshee-data/progress.report/internal/detect"
	"github.com/banshee-data/progress.report/internal/httputil"
	"github.com/banshee-data/progress.report/internal/measure"
	"github.com/banshee-data/progress.report/internal/monitoring"
	"github.com/banshee-data/progress.report/internal/report"
	"github.com/banshee-data/progress.report/internal/security"
	"github.com/banshee-data/progress.report/internal/store"
	"github.com/banshee-data/progress.report/internal/tracker"
	"github.com/banshee-data/progress.report/internal/version"
)

const defaultDBFile = "progress.db"

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch command {
	case "serve":
		err = runServe(args)
	case "migrate":
		err = runMigrate(args, os.Stdout)
	case "report":
		err = runReport(args, os.Stdout)
	case "version":
		fmt.Println(version.String())
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("%s: %v", command, err)
	}
}

func printUsage() {
	fmt.Println(`progress - measurement calibration and progress tracking

Usage: progress <command> [options]

Commands:
  serve      Run the HTTP API and the goal expiry sweep
  migrate    Manage database migrations (up, down, status, version N, force N)
  report     Render the progress report to a file
  version    Show version information
  help       Show this help message

Common Flags:
  --db <file>          SQLite database path (default: progress.db)
  --config <file>      JSON tuning file (default: built-in defaults)

Examples:
  progress serve --listen :8080 --config config/progress.defaults.json
  progress migrate status --db progress.db
  progress report --format png --axis girth --out progress.png`)
}

// loadConfig reads path, or returns the built-in defaults when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.EmptyConfig(), nil
	}
	return config.LoadConfig(path)
}

// openTracker opens the database and loads a tracker over it. The
// settings store is sealed when a passphrase is configured.
func openTracker(ctx context.Context, dbPath string, cfg *config.Config, notify tracker.Notifier) (*tracker.Tracker, *db.DB, error) {
	database, err := db.NewDB(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	var kv store.KVStore = db.NewKVStore(database)
	if pass := cfg.GetStorePassphrase(); pass != "" {
		sealed, err := store.NewSealed(ctx, kv, pass)
		if err != nil {
			database.Close()
			return nil, nil, err
		}
		kv = sealed
	}

	tr := tracker.New(tracker.Options{
		Records:  db.NewRecordStore(database),
		KV:       kv,
		Config:   cfg,
		Notifier: notify,
	})
	if err := tr.Load(ctx); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load tracker: %w", err)
	}
	return tr, database, nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	dbPath := fs.String("db", defaultDBFile, "SQLite database path")
	configPath := fs.String("config", "", "JSON tuning file")
	listen := fs.String("listen", ":8080", "Listen address")
	sweep := fs.Duration("sweep-interval", time.Hour, "How often goal deadlines are checked")
	diag := fs.Bool("debug", false, "Enable diagnostic logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *listen == "" {
		return errors.New("listen address is required")
	}

	logs := monitoring.LogWriters{Ops: os.Stdout}
	if *diag {
		logs.Diag = os.Stderr
	}
	monitoring.SetLogWriters(logs)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tr, database, err := openTracker(ctx, *dbPath, cfg, tracker.LogNotifier{})
	if err != nil {
		return err
	}
	defer database.Close()

	var detector detect.Detector
	if url := cfg.GetDetectorURL(); url != "" {
		detector = detect.NewRemote(httputil.NewClient(cfg.GetDetectorTimeout()), url)
		log.Printf("outline detection via %s", url)
	}

	apiServer := api.NewServer(api.Options{Tracker: tr, Config: cfg, Detector: detector})
	defer apiServer.Close()

	mux := apiServer.ServeMux()
	if err := database.AttachAdminRoutes(mux); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              *listen,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("listening on %s", *listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			return server.Close()
		}
		return nil
	})
	g.Go(func() error {
		return tr.Run(gctx, *sweep)
	})

	err = g.Wait()
	log.Printf("Graceful shutdown complete")
	return err
}

func runMigrate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dbPath := fs.String("db", defaultDBFile, "SQLite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return db.RunMigrateCommand(fs.Args(), *dbPath, nil, out)
}

func runReport(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	dbPath := fs.String("db", defaultDBFile, "SQLite database path")
	configPath := fs.String("config", "", "JSON tuning file")
	format := fs.String("format", "html", "Output format: html or png")
	axisName := fs.String("axis", "length", "Axis to project: length or girth")
	outPath := fs.String("out", "", "Output file (default: progress.<format>)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	axis, err := measure.ParseKind(*axisName)
	if err != nil || axis == measure.Area {
		return fmt.Errorf("invalid axis %q: must be length or girth", *axisName)
	}
	if *outPath == "" {
		*outPath = "progress." + *format
	}
	if err := security.ValidateExportPath(*outPath); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	tr, database, err := openTracker(context.Background(), *dbPath, cfg, nil)
	if err != nil {
		return err
	}
	defer database.Close()

	steps, _ := tr.Projection(axis)
	d := report.Data{
		Title:      "Progress report",
		Unit:       tr.Settings().DisplayUnit,
		Axis:       axis,
		Snapshots:  tr.Snapshots(),
		Projection: steps,
		Weeks:      tr.Weekly(),
		Metrics:    tr.Metrics(),
	}

	switch *format {
	case "png":
		err = report.SavePNG(*outPath, d)
	case "html":
		err = writeHTML(*outPath, d)
	default:
		return fmt.Errorf("invalid format %q: must be html or png", *format)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s (%d snapshots)\n", *outPath, len(d.Snapshots))
	return nil
}

func writeHTML(path string, d report.Data) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.RenderHTML(f, d, report.HTMLOptions{}); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
