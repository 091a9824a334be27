package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"attendance/internal/config"
	"attendance/internal/digest"
	"attendance/internal/mailer"
	"attendance/internal/queue"
	"attendance/internal/store"
)

// Worker owns the digest lifecycle: a cron scheduler publishes one job per
// configured timeslot, and the consume loop below runs each job against the
// ledger. Manual triggers from the api process arrive on the same queue.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "attendance:digests")
	}

	loc, err := time.LoadLocation(cfg.DigestTimezone)
	if err != nil {
		log.Printf("invalid DIGEST_TZ %q: %v, using UTC", cfg.DigestTimezone, err)
		loc = time.UTC
	}

	smtpMailer := mailer.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom)
	svc := digest.NewService(digest.NewRepository(db.Client), smtpMailer, loc)

	// Without mail credentials the digest feature is a no-op: no scheduler,
	// and queued jobs are skipped with a log line. The process stays up.
	if cfg.MailConfigured() {
		sched, err := digest.NewScheduler(cfg.DigestSlots, loc, q)
		if err != nil {
			log.Fatalf("scheduler init failed: %v", err)
		}
		sched.Start()
		defer func() { <-sched.Stop().Done() }()
	} else {
		log.Println("mail credentials not configured; digest scheduler disabled")
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for digest jobs...")
	for msg := range messages {
		if msg.Type != queue.TypeDigest {
			continue
		}
		slot := string(msg.Body)
		if !cfg.MailConfigured() {
			log.Printf("digest[%s]: skipped, mail credentials not configured", slot)
			continue
		}

		sum := svc.Run(ctx, slot)
		log.Printf("digest[%s]: done, hods=%d sent=%d skipped=%d failed=%d",
			sum.Slot, sum.HODs, sum.Sent, sum.Skipped, sum.Failed)
	}

	log.Println("worker stopped")
}
