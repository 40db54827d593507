package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ai-research-be/pkg/events"
	pkgNats "ai-research-be/pkg/nats"

	"github.com/joho/godotenv"
)

// Tails research progress events off JetStream. Useful for watching a round
// from a terminal without a WebSocket client.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	var (
		natsURL = flag.String("nats", envOr("NATS_URL", "nats://localhost:4222"), "NATS server URL")
		session = flag.String("session", "", "session id to follow (empty = all sessions)")
		durable = flag.String("durable", "progress-tail", "durable consumer name")
	)
	flag.Parse()

	sub, err := pkgNats.NewSubscriber(*natsURL)
	if err != nil {
		log.Fatalf("Error: failed to connect to NATS: %v", err)
	}
	defer sub.Close()

	subject := "events.research.progress.>"
	if *session != "" {
		subject = "events.research.progress." + *session
	}

	err = sub.Subscribe(subject, *durable, func(_ context.Context, event events.Event) error {
		line, err := json.Marshal(event.Payload())
		if err != nil {
			return err
		}
		log.Printf("%s %s", event.EventType(), line)
		return nil
	})
	if err != nil {
		log.Fatalf("Error: subscribe failed: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
