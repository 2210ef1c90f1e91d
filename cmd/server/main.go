package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fredhutch/phiscan/internal/api"
	"github.com/fredhutch/phiscan/internal/config"
	"github.com/fredhutch/phiscan/internal/engine"
	"github.com/fredhutch/phiscan/internal/modeladapter"
	"github.com/fredhutch/phiscan/internal/queue"
	"github.com/fredhutch/phiscan/internal/risk"
	s3source "github.com/fredhutch/phiscan/internal/sources/s3"
	"github.com/fredhutch/phiscan/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	runWorker := flag.Bool("worker", true, "run an embedded batch worker")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.New(cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connecting to database: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("migrating database: %v", err)
	}

	storedDefs, err := db.EnabledDefs(ctx)
	if err != nil {
		log.Fatalf("loading stored patterns: %v", err)
	}
	lib, err := cfg.BuildLibrary(storedDefs)
	if err != nil {
		log.Fatalf("building pattern library: %v", err)
	}

	adapter := buildAdapter(cfg, logger)
	scorer := risk.NewScorer(cfg.Risk)
	eng := engine.New(lib.Snapshot(), adapter, scorer, engine.Config{Workers: cfg.Engine.Workers}, logger)

	jobs, err := queue.New(queue.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatalf("connecting to redis: %v", err)
	}
	defer jobs.Close()

	if *runWorker {
		source, err := s3source.New(ctx, s3source.Config{
			Region:        cfg.S3.Region,
			AssumeRoleARN: cfg.S3.AssumeRoleARN,
			ExternalID:    cfg.S3.ExternalID,
		})
		if err != nil {
			log.Fatalf("initializing s3 source: %v", err)
		}

		worker := queue.NewWorker(queue.WorkerConfig{
			ID:                cfg.Worker.ID,
			PollInterval:      cfg.Worker.PollInterval,
			HeartbeatInterval: cfg.Worker.HeartbeatInterval,
			MaxObjectBytes:    cfg.Worker.MaxObjectBytes,
		}, jobs, eng, sourceAdapter{source}, db)
		go worker.Run(ctx)
	}

	server := api.New(cfg, eng,
		api.WithStore(db),
		api.WithQueue(jobs),
		api.WithLogger(logger),
	)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func buildAdapter(cfg *config.Config, logger *slog.Logger) *modeladapter.Adapter {
	var (
		ner modeladapter.EntityRecognizer
		zs  modeladapter.ZeroShotClassifier
	)
	if cfg.Models.NER.Enabled {
		ner = modeladapter.NewHTTPNERClient(cfg.Models.NER.URL)
	}
	if cfg.Models.ZeroShot.Enabled {
		zs = modeladapter.NewHTTPZeroShotClient(cfg.Models.ZeroShot.URL, cfg.Models.ZeroShot.Labels)
	}
	return modeladapter.New(ner, zs, modeladapter.Config{
		MaxConcurrent: cfg.Models.MaxConcurrent,
		CallTimeout:   cfg.Models.CallTimeout,
	}, logger)
}

// sourceAdapter bridges the S3 client to the worker's source interface.
type sourceAdapter struct {
	src *s3source.Source
}

func (a sourceAdapter) List(ctx context.Context, bucket, prefix string) ([]queue.ObjectRef, error) {
	objects, err := a.src.List(ctx, bucket, prefix)
	if err != nil {
		return nil, err
	}
	refs := make([]queue.ObjectRef, len(objects))
	for i, obj := range objects {
		refs[i] = queue.ObjectRef{Key: obj.Key, Size: obj.Size}
	}
	return refs, nil
}

func (a sourceAdapter) Fetch(ctx context.Context, bucket, key string, maxBytes int64) ([]byte, error) {
	return a.src.Fetch(ctx, bucket, key, maxBytes)
}
