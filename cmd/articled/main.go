package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"articlehub/internal/article"
	"articlehub/internal/config"
	"articlehub/internal/model"
	"articlehub/internal/server"
	"articlehub/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	cfg    = config.NewConfig()
)

var rootCmd = &cobra.Command{
	Use:   "articled",
	Short: "articled - article storage, timelines and imports",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return cfg.Validate()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the background workers",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		b, err := openBackends(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("Failed to init backends", zap.Error(err))
		}
		defer b.Close()

		svc := newService(b)

		importer := worker.NewImporter(worker.NewImportQueue(b.rdb), svc, logger)
		go importer.Start(ctx)

		hostname, _ := os.Hostname()
		projector := worker.NewProjector(b.rdb, cfg.EventStream, hostname, b.graph, logger)
		go projector.Start(ctx)

		sweeper := worker.NewSweeper(b.blobs, b.docs, orphanHandler(b, cfg.SweepDelete), cfg.SweepInterval, logger)
		go sweeper.Start(ctx)

		if b.badger != nil {
			go b.badger.RunGC(ctx, 5*time.Minute)
		}

		srv := web.NewServer(svc, logger)
		go func() {
			if err := srv.Start(cfg.HTTPPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Web server failed", zap.Error(err))
				cancel()
			}
		}()

		logger.Info("Server running.", zap.String("port", cfg.HTTPPort))
		<-ctx.Done()
		logger.Info("Shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			logger.Warn("Web server shutdown", zap.Error(err))
		}
		logger.Info("Goodbye!")
	},
}

var (
	importCollection string
	importTags       []string
	importNow        bool
)

var importCmd = &cobra.Command{
	Use:   "import [url]",
	Short: "Queue a URL for import, or import it immediately with --now",
	Long: "By default only Redis is touched, so this is safe while the server runs. " +
		"--now opens every backend; with the badger backend, stop the server first.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		job := worker.ImportJob{URL: args[0], CollectionID: importCollection, Tags: importTags}

		if !importNow {
			if err := queueImport(ctx, cfg.RedisAddr, job); err != nil {
				logger.Fatal("Failed to queue import", zap.Error(err))
			}
			logger.Info("Import queued", zap.String("url", job.URL))
			return
		}

		b, err := openBackends(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("Failed to init backends", zap.Error(err))
		}
		defer b.Close()

		out, err := worker.NewImporter(worker.NewImportQueue(b.rdb), newService(b), logger).Import(ctx, job)
		if err != nil {
			logger.Fatal("Import failed", zap.Error(err))
		}
		fmt.Println(out.ID)
	},
}

// queueImport pushes job for the server's importer. Client mode: only Redis is
// opened, leaving the payload store's lock to the server.
func queueImport(ctx context.Context, redisAddr string, job worker.ImportJob) error {
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()
	return worker.NewImportQueue(rdb).Push(ctx, job)
}

// seedFile is the document accepted by the seed command.
type seedFile struct {
	Collections []model.Collection   `json:"collections"`
	Users       []model.User         `json:"users"`
	Articles    []model.ArticleInput `json:"articles"`
}

var seedCmd = &cobra.Command{
	Use:   "seed [file.json]",
	Short: "Load collections, users, articles and likes from a JSON file",
	Long: "Opens every backend. With the badger backend, stop the server first: " +
		"badger allows one process per data directory.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			logger.Fatal("Failed to read seed file", zap.Error(err))
		}
		var seed seedFile
		if err := json.Unmarshal(raw, &seed); err != nil {
			logger.Fatal("Failed to parse seed file", zap.Error(err))
		}

		b, err := openBackends(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("Failed to init backends", zap.Error(err))
		}
		defer b.Close()

		if err := runSeed(ctx, b, newService(b), seed); err != nil {
			logger.Fatal("Seed failed", zap.Error(err))
		}
		logger.Info("Seed complete",
			zap.Int("collections", len(seed.Collections)),
			zap.Int("users", len(seed.Users)),
			zap.Int("articles", len(seed.Articles)))
	},
}

// runSeed loads seed into the stores. Articles get fresh ids on create, so
// an id given in the file only serves as a reference for users' likes.
func runSeed(ctx context.Context, b *backends, svc *article.Service, seed seedFile) error {
	for _, c := range seed.Collections {
		if err := b.docs.PutCollection(ctx, c); err != nil {
			return fmt.Errorf("collection %s: %w", c.ID, err)
		}
	}

	ids := make(map[string]string, len(seed.Articles))
	for _, in := range seed.Articles {
		out, err := svc.CreateArticle(ctx, in, time.Now())
		if err != nil {
			return fmt.Errorf("article %q: %w", in.Title, err)
		}
		if in.ID != "" {
			ids[in.ID] = out.ID
		}
		// Seeding does not wait for the projector.
		if err := b.graph.EnsureArticle(ctx, out.ID, out.CollectionID); err != nil {
			return fmt.Errorf("graph article %s: %w", out.ID, err)
		}
	}

	for _, u := range seed.Users {
		liked := make([]string, 0, len(u.LikedArticles))
		for _, ref := range u.LikedArticles {
			if id, ok := ids[ref]; ok {
				ref = id
			}
			liked = append(liked, ref)
		}
		u.LikedArticles = liked

		if err := b.docs.PutUser(ctx, u); err != nil {
			return fmt.Errorf("user %s: %w", u.ID, err)
		}
		for _, id := range u.LikedArticles {
			if err := b.graph.RecordLike(ctx, u.ID, id); err != nil {
				return fmt.Errorf("like %s -> %s: %w", u.ID, id, err)
			}
		}
	}
	return nil
}

var (
	sweepDelete bool
	sweepGrace  time.Duration
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Report, or with --delete remove, payload blobs no article references",
	Long: "Runs two sweeps separated by --grace. Only blobs unreferenced on both " +
		"passes are orphans. With the badger backend, stop the server first.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		b, err := openBackends(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("Failed to init backends", zap.Error(err))
		}
		defer b.Close()

		sweeper := worker.NewSweeper(b.blobs, b.docs, orphanHandler(b, sweepDelete), sweepGrace, logger)
		first, err := sweeper.SweepOnce(ctx)
		if err != nil {
			logger.Fatal("Sweep failed", zap.Error(err))
		}
		logger.Info("First pass", zap.Int("blobs", first.Blobs), zap.Int("suspects", first.Suspects))
		if first.Suspects == 0 {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(sweepGrace):
		}

		second, err := sweeper.SweepOnce(ctx)
		if err != nil {
			logger.Fatal("Sweep failed", zap.Error(err))
		}
		for _, locator := range second.Orphans {
			fmt.Println(locator)
		}
		logger.Info("Sweep complete",
			zap.Int("orphans", len(second.Orphans)),
			zap.Int("failed", second.Failed),
			zap.Bool("deleted", sweepDelete))
	},
}

func newService(b *backends) *article.Service {
	return article.NewService(b.docs, b.blobs, b.graph, b.events, logger)
}

func orphanHandler(b *backends, remove bool) worker.OrphanHandler {
	if remove {
		return worker.DeleteOrphans(b.blobs, logger)
	}
	return worker.LogOrphans(logger)
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

func main() {
	var err error
	logger, err = newLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "Address of Redis server")
	flags.StringVar(&cfg.BadgerPath, "badger", cfg.BadgerPath, "Path to BadgerDB data directory")
	flags.StringVar(&cfg.DocumentBackend, "documents", cfg.DocumentBackend, "Document backend (redis or mongo)")
	flags.StringVar(&cfg.BlobBackend, "blobs", cfg.BlobBackend, "Payload backend (badger or s3)")
	flags.StringVar(&cfg.GraphBackend, "graph", cfg.GraphBackend, "Graph backend (redis or neo4j)")

	serveCmd.Flags().StringVar(&cfg.HTTPPort, "port", cfg.HTTPPort, "HTTP listen port")

	importCmd.Flags().StringVar(&importCollection, "collection", "", "Collection to file the article under")
	importCmd.Flags().StringSliceVar(&importTags, "tags", nil, "Comma separated tags")
	importCmd.Flags().BoolVar(&importNow, "now", false, "Import synchronously instead of queueing")

	sweepCmd.Flags().BoolVar(&sweepDelete, "delete", cfg.SweepDelete, "Delete confirmed orphans")
	sweepCmd.Flags().DurationVar(&sweepGrace, "grace", 30*time.Second, "Wait between the two passes")

	rootCmd.AddCommand(serveCmd, importCmd, seedCmd, sweepCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
