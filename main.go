package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"outlier_scout/config"
	"outlier_scout/extension"
	"outlier_scout/httputil"
	"outlier_scout/logging"
	"outlier_scout/models"
	"outlier_scout/scheduler"
	"outlier_scout/scraper"
	"outlier_scout/server"
	"outlier_scout/services"
	"outlier_scout/storage"
	"outlier_scout/transcript"
	"outlier_scout/workers"
)

var (
	serve             = flag.Bool("serve", false, "Run the HTTP trigger server")
	daemon            = flag.Bool("daemon", false, "Run scheduled scouts over the configured channel list")
	cleanup           = flag.Bool("cleanup", false, "Repair thumbnails, then remove duplicate outliers")
	dedupe            = flag.Bool("dedupe", false, "Remove duplicate outliers")
	fixThumbnails     = flag.Bool("fix-thumbnails", false, "Rewrite broken thumbnails")
	pruneLowViews     = flag.Bool("prune-low-views", false, "Delete outliers under the view floor")
	transcriptID      = flag.String("transcript", "", "Print the transcript of a video as JSON")
	downloadExtension = flag.Bool("download-extension", false, "Download and unpack the ranking extension")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <channel_url_or_comma_separated_list>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogPath, logging.DefaultMaxSize)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clients := httputil.NewClients()

	switch {
	case *transcriptID != "":
		runTranscript(ctx, cfg, clients)
		return
	case *downloadExtension:
		if err := extension.Download(ctx, clients.Media, extension.DownloadURL(cfg.Browser.ExtensionID), cfg.Browser.ExtensionPath); err != nil {
			log.Printf("Error downloading extension: %v", err)
			log.Printf("Download a CRX manually and extract it to %s", cfg.Browser.ExtensionPath)
			os.Exit(1)
		}
		return
	}

	maintenance := *cleanup || *dedupe || *fixThumbnails || *pruneLowViews

	// The default mode needs channels; check before touching any store.
	var urls []string
	if !maintenance && !*serve && !*daemon {
		urls, err = scrapeTargets(flag.Args())
		if err != nil {
			flag.Usage()
			os.Exit(2)
		}
	}

	store, closeStore, err := openStore(ctx, cfg, clients)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer closeStore()

	if maintenance {
		if err := runMaintenance(ctx, cfg, services.NewMaintenance(store)); err != nil {
			log.Fatalf("Maintenance failed: %v", err)
		}
		return
	}

	history, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer history.Close()
	log.Printf("Run history database: %s", cfg.DBPath)

	orchestrator := scraper.NewOrchestrator(func(ctx context.Context) (scraper.Renderer, error) {
		session, err := scraper.OpenSession(cfg.Browser, cfg.Scout)
		if err != nil {
			return nil, err
		}
		return session, nil
	}, services.NewUpsertClient(store), scraper.OptionsFromConfig(cfg.Scout), cfg.Scout.TabDelay)
	orchestrator.SetHistory(history)

	if cfg.S3.Bucket != "" {
		uploader, err := storage.NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			log.Fatalf("Failed to set up S3: %v", err)
		}
		orchestrator.SetMirror(workers.NewThumbnailMirror(clients.Media, uploader))
		log.Printf("Mirroring thumbnails to bucket %s", cfg.S3.Bucket)
	}

	switch {
	case *serve:
		gin.SetMode(gin.ReleaseMode)
		fetcher := transcript.NewFetcher(transcript.NewYouTubeSource(clients.Media), cfg.Transcript.Language)
		router := server.NewRouter(server.NewHandler(orchestrator, fetcher, history), cfg.Server.CORSOrigins)
		if err := server.Serve(ctx, cfg.Server.Port, router); err != nil {
			log.Fatalf("Server error: %v", err)
		}

	case *daemon:
		sched := scheduler.New(cfg.Scheduler, cfg.Channels, orchestrator)
		if err := sched.Start(ctx); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
		log.Printf("Daemon running over %d channels. Press Ctrl+C to stop.", len(cfg.Channels))
		<-ctx.Done()
		log.Println("Shutting down...")
		sched.Stop()

	default:
		summary, err := orchestrator.Run(ctx, models.TriggerCLI, urls)
		if err != nil {
			log.Fatalf("Scout failed: %v", err)
		}
		log.Printf("Batch complete: %d channels, %d failed, %d outliers found, %d saved",
			summary.Channels, summary.Failed, summary.Found, summary.Saved)
	}
}

var errNoChannelArg = errors.New("no channel url given")

// scrapeTargets returns the channel urls named by the positional arguments,
// each of which may itself be a comma-separated list.
func scrapeTargets(args []string) ([]string, error) {
	urls := scraper.SplitChannelList(strings.Join(args, ","))
	if len(urls) == 0 {
		return nil, errNoChannelArg
	}
	return urls, nil
}

// openStore prefers a direct database connection when one is configured.
func openStore(ctx context.Context, cfg *config.Config, clients *httputil.Clients) (services.Store, func(), error) {
	if cfg.Supabase.DBURL != "" {
		pg, err := storage.NewPostgresStore(ctx, cfg.Supabase.DBURL)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Supabase.DBURL))
		return pg, pg.Close, nil
	}

	if cfg.Supabase.URL == "" || cfg.Supabase.ServiceKey == "" {
		return nil, nil, fmt.Errorf("set SUPABASE_URL and SUPABASE_SERVICE_KEY, or SUPABASE_DB_URL")
	}
	log.Printf("Using Supabase REST: %s", cfg.Supabase.URL)
	return storage.NewSupabaseStore(&cfg.Supabase, clients.API), func() {}, nil
}

func runMaintenance(ctx context.Context, cfg *config.Config, m *services.Maintenance) error {
	if *cleanup {
		_, err := m.Cleanup(ctx)
		return err
	}
	if *fixThumbnails {
		if _, err := m.RepairThumbnails(ctx); err != nil {
			return err
		}
	}
	if *dedupe {
		if _, err := m.Dedupe(ctx); err != nil {
			return err
		}
	}
	if *pruneLowViews {
		if _, err := m.PruneLowViews(ctx, cfg.Scout.PruneMinViews); err != nil {
			return err
		}
	}
	return nil
}

func runTranscript(ctx context.Context, cfg *config.Config, clients *httputil.Clients) {
	fetcher := transcript.NewFetcher(transcript.NewYouTubeSource(clients.Media), cfg.Transcript.Language)
	env := fetcher.Envelope(ctx, *transcriptID)
	if err := json.NewEncoder(os.Stdout).Encode(env); err != nil {
		log.Fatalf("Failed to write transcript: %v", err)
	}
}

// maskConnectionString hides the password in a connection string for logging.
func maskConnectionString(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil || u.User == nil {
		return connStr
	}
	return u.Redacted()
}
