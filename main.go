// Command occupancy-report replays a detection feed from an overhead cafe
// camera, stabilizes tracker identities, logs confirmed table sessions to
// SQLite, and writes the run's report artifacts (customer log, dashboard,
// heatmap) at the end.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cafesense/occupancy.report/internal/api"
	"github.com/cafesense/occupancy.report/internal/config"
	"github.com/cafesense/occupancy.report/internal/db"
	"github.com/cafesense/occupancy.report/internal/detect"
	"github.com/cafesense/occupancy.report/internal/monitoring"
	"github.com/cafesense/occupancy.report/internal/report"
	"github.com/cafesense/occupancy.report/internal/timeutil"
	"github.com/cafesense/occupancy.report/internal/version"
	"github.com/cafesense/occupancy.report/internal/vision"
)

var (
	detectionsPath = flag.String("detections", "", "Detection feed (JSONL), or '-' for stdin")
	tablesPath     = flag.String("tables", "tables.json", "Table outline config (JSON)")
	tuningPath     = flag.String("tuning", "", "Optional tuning config (JSON); defaults apply when omitted")
	dbPath         = flag.String("db", "occupancy.db", "SQLite database path")
	migrationsDir  = flag.String("migrations", "migrations", "Schema migrations directory")
	outDir         = flag.String("out", "report_out", "Directory for end-of-run report artifacts")
	listen         = flag.String("listen", ":8080", "Status API listen address; empty disables the server")
	frameWidth     = flag.Int("frame-width", 1920, "Frame width in pixels")
	frameHeight    = flag.Int("frame-height", 1080, "Frame height in pixels")
	showVersion    = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if err := run(); err != nil {
		monitoring.Logf("fatal: %v", err)
		os.Exit(1)
	}
}

func run() error {
	if *detectionsPath == "" {
		return errors.New("a detection feed is required (-detections)")
	}
	if *frameWidth <= 0 || *frameHeight <= 0 {
		return fmt.Errorf("frame dimensions must be positive, got %dx%d", *frameWidth, *frameHeight)
	}

	tuning := &config.TuningConfig{}
	if *tuningPath != "" {
		loaded, err := config.LoadTuningConfig(*tuningPath)
		if err != nil {
			return fmt.Errorf("failed to load tuning config: %w", err)
		}
		tuning = loaded
	}

	tables, err := config.LoadTables(*tablesPath)
	if err != nil {
		return fmt.Errorf("failed to load table config: %w", err)
	}
	monitoring.Logf("loaded %d table outlines from %s", len(tables), *tablesPath)

	feed, feedName, closeFeed, err := openFeed(*detectionsPath)
	if err != nil {
		return err
	}
	defer closeFeed()

	reader, err := detect.NewReader(feed, tuning.GetAssumedFPS())
	if err != nil {
		return fmt.Errorf("failed to open detection feed: %w", err)
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()
	if err := database.MigrateUp(*migrationsDir); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	runID, err := database.CreateRun(feedName, tuning.GetAssumedFPS(), *frameWidth, *frameHeight)
	if err != nil {
		return err
	}
	monitoring.Logf("run %s started", runID)

	pipeline := vision.NewPipeline(vision.PipelineConfig{
		FrameWidth:  *frameWidth,
		FrameHeight: *frameHeight,
		HeatRadius:  tuning.GetHeatRadiusPx(),
		Stabilizer: vision.StabilizerConfig{
			MergeMaxDistancePx:     tuning.GetMergeMaxDistancePx(),
			MergeMinVelocityCosine: tuning.GetMergeMinVelocityCosine(),
			MergeMaxColorDistance:  tuning.GetMergeMaxColorDistance(),
			GhostTTLSeconds:        tuning.GetGhostTTLSeconds(),
		},
		Sessions: vision.SessionConfig{
			StayThresholdSeconds: tuning.GetStayThresholdSeconds(),
			PatienceSeconds:      tuning.GetPatienceSeconds(),
		},
		Tables: tables,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var httpServer *http.Server
	if *listen != "" {
		srv := api.NewServer(pipeline, database, runID, timeutil.RealClock{})
		httpServer = &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(srv.ServeMux()),
		}
		go func() {
			monitoring.Logf("status API listening on %s", *listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				monitoring.Logf("status API stopped: %v", err)
			}
		}()
	}

	err = replay(ctx, reader, pipeline, database, runID)
	if err != nil {
		return err
	}
	if reader.DerivedTimestamps() {
		monitoring.Logf("feed had no timestamps; video time derived at %.2f fps", tuning.GetAssumedFPS())
	}

	for _, rec := range pipeline.Flush() {
		if err := database.RecordSession(runID, rec); err != nil {
			monitoring.Logf("failed to record session: %v", err)
		}
	}
	for _, sum := range pipeline.Summaries() {
		if err := database.RecordIdentitySummary(runID, sum); err != nil {
			monitoring.Logf("failed to record identity summary: %v", err)
		}
	}
	if err := database.FinishRun(runID, pipeline.Frames(), pipeline.VideoSeconds()); err != nil {
		monitoring.Logf("failed to finish run: %v", err)
	}

	if err := writeArtifacts(database, runID, pipeline); err != nil {
		return err
	}

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			monitoring.Logf("status API shutdown: %v", err)
		}
	}

	monitoring.Logf("run %s finished: %d frames, %.2fs of video, %d confirmed sessions",
		runID, pipeline.Frames(), pipeline.VideoSeconds(), pipeline.Status().SessionsLogged)
	return nil
}

// replay feeds frames to the pipeline until the feed ends or ctx is
// cancelled. Cancellation is checked at frame boundaries so a partial run
// still produces consistent artifacts.
func replay(ctx context.Context, reader *detect.Reader, pipeline *vision.Pipeline, database *db.DB, runID string) error {
	for {
		if err := ctx.Err(); err != nil {
			monitoring.Logf("interrupted after %d frames", pipeline.Frames())
			return nil
		}

		frame, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		for _, rec := range pipeline.ProcessFrame(frame) {
			if err := database.RecordSession(runID, rec); err != nil {
				monitoring.Logf("failed to record session: %v", err)
			}
		}
	}
}

func openFeed(path string) (io.Reader, string, func(), error) {
	if path == "-" {
		return os.Stdin, "stdin", func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to open detection feed: %w", err)
	}
	return f, filepath.Base(path), func() { f.Close() }, nil
}

func writeArtifacts(database *db.DB, runID string, pipeline *vision.Pipeline) error {
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	totals, err := database.TableTotals(runID)
	if err != nil {
		return err
	}
	summaries := pipeline.Summaries()

	logPath := filepath.Join(*outDir, "customer_log.txt")
	if err := report.SaveCustomerLog(logPath, pipeline.VideoSeconds(), summaries, totals); err != nil {
		return err
	}
	monitoring.Logf("wrote %s", logPath)

	dashPath := filepath.Join(*outDir, "dashboard.html")
	if err := report.SaveDashboard(dashPath, summaries, totals); err != nil {
		return err
	}
	monitoring.Logf("wrote %s", dashPath)

	heatPath := filepath.Join(*outDir, "heatmap.png")
	if err := report.SaveHeatmapPNG(heatPath, pipeline.Heatmap()); err != nil {
		return err
	}
	monitoring.Logf("wrote %s", heatPath)
	return nil
}
