package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ai-docqa-be/pkg/events"
	natsbus "ai-docqa-be/pkg/nats"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
)

// Tails the document event stream from NATS. Useful for watching ingestion
// progress across instances without attaching a websocket client.
//
// Usage: go run ./cmd/listen_events [subject]
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	subject := "events.>"
	if len(os.Args) > 1 {
		subject = os.Args[1]
	}

	sub, err := natsbus.NewSubscriber(natsURL)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer sub.Close()

	header := color.New(color.FgCyan, color.Bold)
	header.Printf("Listening on %s (%s)...\n", subject, natsURL)

	err = sub.Subscribe(subject, "event-tail", func(ctx context.Context, event events.Event) error {
		pretty, _ := json.MarshalIndent(event.Payload(), "", "  ")
		color.Green("[%s] %s", event.Timestamp().Format("15:04:05"), event.EventType())
		fmt.Println(string(pretty))
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to subscribe: %v", err)
	}

	// Block until interrupted
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	header.Println("Shutting down.")
}
