package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"checkin/internal/checkin"
	"checkin/internal/config"
	"checkin/internal/member"
	"checkin/internal/queue"
	"checkin/internal/store"
)

// Worker consumes admitted check-ins and records welcome follow-ups for
// first-time visitors, so the hospitality team can reach out after the
// service. It runs against Postgres regardless of the API's store backend.
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

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "checkin:admitted")
	}

	members := member.NewPostgresDirectory(db.Client)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for admitted check-ins...")
	for msg := range messages {
		if msg.Type != "checkin" {
			continue
		}

		var rec checkin.AttendanceRecord
		if err := json.Unmarshal(msg.Body, &rec); err != nil {
			log.Printf("skipping undecodable message: %v", err)
			continue
		}

		if !rec.IsFirstTimer {
			continue
		}

		if err := members.RecordFollowUp(ctx, rec.MemberID, rec.SessionID); err != nil {
			log.Printf("follow-up for member %s failed: %v", rec.MemberID, err)
			continue
		}
		log.Printf("welcome follow-up recorded for first timer %s (session %s)", rec.MemberID, rec.SessionID)
	}

	log.Println("worker stopped")
}
