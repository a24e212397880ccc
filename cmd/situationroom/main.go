package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jacob-sheng/iran-situation-room/internal/config"
	"github.com/jacob-sheng/iran-situation-room/internal/database"
	"github.com/jacob-sheng/iran-situation-room/internal/hotspot"
	"github.com/jacob-sheng/iran-situation-room/internal/intel"
	"github.com/jacob-sheng/iran-situation-room/internal/logging"
	"github.com/jacob-sheng/iran-situation-room/internal/pipeline"
	"github.com/jacob-sheng/iran-situation-room/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "situationroom",
	Short:   "Live intel map state from news feeds",
	Long:    "situationroom aggregates RSS feeds, extracts located intel signals with an LLM, verifies places and fuses them into map state.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine; the API key may already be in the environment.
		_ = godotenv.Load()

		level := "info"
		format := "console"

		// Skip config loading for init and version
		if cmd.Name() != "init" && cmd.Name() != "version" {
			path, err := config.ResolveConfigPath(configPath)
			if err != nil {
				return err
			}
			cfg, err = config.Load(path)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			level, format = cfg.Logging.Level, cfg.Logging.Format
		}
		if verbose {
			level = "debug"
		}
		logging.Init(logging.Config{Level: level, Format: format})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(hotspotsCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("situationroom", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/situationroom/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure feeds, the model endpoint and seed units.")
		fmt.Println("Put the API key in SITUATIONROOM_API_KEY or a .env file.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Geocode cache:")
		fmt.Printf("  Cached locations: %d\n", stats.CachedLocations)
		fmt.Printf("  Verified: %d\n", stats.VerifiedLocations)

		fmt.Println("\nState:")
		info, err := db.LatestSnapshotInfo(ctx)
		if err != nil {
			return fmt.Errorf("getting snapshot: %w", err)
		}
		if info == nil {
			fmt.Println("  No snapshot yet. Run 'situationroom refresh'.")
		} else {
			fmt.Printf("  Latest snapshot: #%d at %s\n", info.ID, info.TakenAt)
			fmt.Printf("  News items: %d\n", info.NewsCount)
			fmt.Printf("  Units: %d\n", info.UnitCount)
		}
		fmt.Printf("  Snapshots kept: %d\n", stats.Snapshots)

		fmt.Println("\nRefresh runs:")
		fmt.Printf("  Total: %d (%d failed)\n", stats.RefreshRuns, stats.FailedRuns)
		runs, err := db.RecentRuns(ctx, 5)
		if err != nil {
			return fmt.Errorf("getting runs: %w", err)
		}
		for _, r := range runs {
			outcome := fmt.Sprintf("+%d of %d fetched, %d moves", r.Added, r.Fetched, r.Moves)
			switch {
			case r.Error != nil:
				outcome = "error: " + *r.Error
			case r.Stale:
				outcome = "superseded"
			case r.FinishedAt == nil:
				outcome = "unfinished"
			}
			fmt.Printf("  %s  %-8s %s\n", r.StartedAt.Local().Format(time.DateTime), r.Scope, outcome)
		}
		return nil
	},
}

// --- refresh command ---

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch and fuse one intel batch, then store a snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		p, err := pipeline.New(ctx, cfg, db)
		if err != nil {
			return err
		}
		defer p.Close()

		result := p.Run(ctx)
		for _, step := range result.Steps {
			if step.Err != nil {
				fmt.Printf("  %-9s FAILED: %v\n", step.Name, step.Err)
			} else {
				fmt.Printf("  %-9s %s\n", step.Name, step.Summary)
			}
		}
		if err := result.Err(); err != nil {
			return err
		}

		fmt.Println("\nRefresh complete! Run 'situationroom serve' to view the situation.")
		return nil
	},
}

// --- hotspots command ---

var hotspotsCmd = &cobra.Command{
	Use:   "hotspots",
	Short: "Print ranked hotspots from the latest snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		state, err := db.LatestSnapshot(cmd.Context())
		if err != nil {
			return fmt.Errorf("loading snapshot: %w", err)
		}
		if state == nil {
			fmt.Println("No snapshot yet. Run 'situationroom refresh' first.")
			return nil
		}

		hs := hotspot.Derive(state.News, pipeline.HotspotOptions(cfg))
		if len(hs) == 0 {
			fmt.Println("No located activity.")
			return nil
		}
		for i, h := range hs {
			fmt.Printf("%2d. %-28s score %6.2f  %3d items  (%.2f, %.2f)\n",
				i+1, h.Label, h.Score, h.Count, h.Center.Lat(), h.Center.Lon())
		}
		return nil
	},
}

// --- verify command ---

var verifyCmd = &cobra.Command{
	Use:   "verify NAME COUNTRY LON LAT",
	Short: "Verify one location against the geocoder",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		lon, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("invalid longitude %q: %w", args[2], err)
		}
		lat, err := strconv.ParseFloat(args[3], 64)
		if err != nil {
			return fmt.Errorf("invalid latitude %q: %w", args[3], err)
		}
		if !intel.ValidLonLat(lon, lat) {
			return fmt.Errorf("coordinates out of range: %g, %g", lon, lat)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		verifier, err := pipeline.NewVerifier(cmd.Context(), cfg, db)
		if err != nil {
			return err
		}

		res := verifier.Verify(cmd.Context(), intel.Location{
			Name:        args[0],
			Country:     args[1],
			Coordinates: intel.Coordinates{lon, lat},
		})
		status := "unverified"
		if res.Verified {
			status = "verified"
		}
		fmt.Printf("%s, %s: %s\n", res.Location.Name, res.Location.Country, status)
		fmt.Printf("  Coordinates: %.5f, %.5f (lon, lat)\n", res.Location.Coordinates.Lon(), res.Location.Coordinates.Lat())
		return nil
	},
}

// --- serve command ---

var (
	servePort     int
	serveInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server with periodic refreshes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		p, err := pipeline.New(ctx, cfg, db)
		if err != nil {
			return err
		}
		defer p.Close()

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		interval := cfg.Server.RefreshInterval
		if cmd.Flags().Changed("interval") {
			interval = serveInterval
		}
		done := make(chan struct{})
		go func() {
			defer close(done)
			if interval > 0 {
				refreshLoop(ctx, p, interval)
			}
		}()

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		err = server.Serve(ctx, p, port)
		stop()
		<-done
		return err
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
	serveCmd.Flags().DurationVar(&serveInterval, "interval", 15*time.Minute, "Refresh interval (0 disables periodic refresh)")
}

// refreshLoop refreshes immediately and then every interval, skipping a
// tick while a refresh started over HTTP is still running.
func refreshLoop(ctx context.Context, p *pipeline.Pipeline, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res, err := p.TryRun(ctx)
		switch {
		case errors.Is(err, pipeline.ErrRunning):
			logging.Debug().Msg("Scheduled refresh skipped, another refresh is running")
		case err != nil:
			logging.Error().Err(err).Msg("Scheduled refresh failed")
		case res.Err() != nil && ctx.Err() == nil:
			logging.Error().Err(res.Err()).Msg("Scheduled refresh failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(cfg.DBPath())
}
