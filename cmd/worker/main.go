package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"qrcheckin/internal/annotate"
	"qrcheckin/internal/config"
	"qrcheckin/internal/history"
	"qrcheckin/internal/kv"
	"qrcheckin/internal/queue"
	"qrcheckin/internal/workflow"
)

// Worker consumes annotation jobs from the Redis queue and amends stored
// records with resolved venue names. Only useful with the Redis store, so
// both processes see the same substrate.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	kvRedis := kv.NewRedis(cfg.RedisAddr, "checkin:")
	if !kvRedis.Healthy(ctx) {
		log.Fatalf("redis not reachable at %s", cfg.RedisAddr)
	}

	records := history.NewStore(kvRedis)
	annotator := annotate.New(cfg.AnnotatorURL, cfg.AnnotatorSkip)
	q := queue.NewRedisQueue(kvRedis.Client, "checkin:annotations")

	worker := workflow.NewAnnotationWorker(records, annotator, q)

	log.Println("worker started, waiting for annotation jobs...")
	if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("worker failed: %v", err)
	}
	log.Println("worker stopped")
}
