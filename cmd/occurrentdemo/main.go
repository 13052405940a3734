// Command occurrentdemo appends a small burst of CloudEvents to a stream
// and, concurrently, runs a subscription that prints every matching event
// as it is delivered through the change feed. It exists to exercise the
// store and the subscription engine end-to-end against a real PostgreSQL
// database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/occurrent-go/occurrent/cloudevent"
	"github.com/occurrent-go/occurrent/eventstore"
	"github.com/occurrent-go/occurrent/eventstore/postgresengine"
	"github.com/occurrent-go/occurrent/subscription"
	"github.com/occurrent-go/occurrent/subscription/position"
)

const demoSource = "urn:occurrent:demo"

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("creating pgx pool: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("connecting to database: %v", err)
	}

	store, err := postgresengine.NewEventStoreFromPGXPool(pool)
	if err != nil {
		log.Fatalf("creating event store: %v", err)
	}

	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("ensuring schema: %v", err)
	}

	if err := store.EnsureChangeFeedTrigger(ctx, cfg.ChangeFeed.Channel); err != nil {
		log.Fatalf("ensuring change feed trigger: %v", err)
	}

	positions := position.NewInMemoryStorage()

	engine := subscription.NewEngine(store, cfg.Database.DSN, cfg.ChangeFeed.Channel,
		subscription.WithPositionStorage(positions))

	filter := subscription.Type(subscription.OpEq, "com.occurrent.demo.order-placed")

	handle, err := engine.Subscribe(ctx, "demo-printer", filter, subscription.StartAtNow(),
		func(_ context.Context, event cloudevent.Event) error {
			log.Printf("received event id=%s type=%s subject=%s", event.ID, event.Type, event.Subject)
			return nil
		})
	if err != nil {
		log.Fatalf("subscribing: %v", err)
	}
	defer func() { _ = handle.Cancel() }()

	go appendDemoEvents(ctx, store, cfg)

	log.Printf("occurrentdemo running against %s, press Ctrl+C to stop", cfg.Database.DSN)

	select {
	case sig := <-sigChan:
		log.Printf("received signal %v, shutting down", sig)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := engine.Shutdown(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}

func appendDemoEvents(ctx context.Context, store postgresengine.EventStore, cfg Config) {
	condition := eventstore.AnyStreamVersion()

	for i := 0; i < cfg.Demo.Events; i++ {
		event, err := cloudevent.New(uuid.NewString(), demoSource, "com.occurrent.demo.order-placed").
			WithTime(time.Now().UTC()).
			WithSubject(cfg.Demo.StreamID).
			WithDataContentType("application/json").
			WithData([]byte(fmt.Sprintf(`{"sequence":%d}`, i))).
			Build()
		if err != nil {
			log.Printf("building demo event: %v", err)
			return
		}

		if err := store.Append(ctx, cfg.Demo.StreamID, condition, event); err != nil {
			log.Printf("appending demo event: %v", err)
			return
		}

		condition = eventstore.AnyStreamVersion()

		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return
		}
	}
}
