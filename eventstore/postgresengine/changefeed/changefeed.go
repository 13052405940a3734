// Package changefeed implements the change feed adapter (spec §4.5) on top
// of PostgreSQL's LISTEN/NOTIFY: a trigger notifies a channel with the
// sequence number of every newly appended event; the feed treats that
// number purely as a wake-up signal and recovers the actual rows (in order,
// exactly once) by polling postgresengine.EventStore.ReadChangeFeedSince
// from its last-known position. That polling-on-notify design is what makes
// reopening after a dropped connection trivial: the feed simply repeats the
// same catch-up query with the position it already has.
package changefeed

import (
	"context"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/occurrent-go/occurrent/cloudevent"
	"github.com/occurrent-go/occurrent/eventstore/postgresengine"
)

const defaultBatchSize = 256

// Matcher decides whether an event should be delivered to a feed's
// consumer. A nil Matcher matches everything.
type Matcher func(cloudevent.Event) bool

// Feed is a single open change feed cursor. Create one with Open; consume
// Events and Errors until Close.
type Feed struct {
	store        postgresengine.EventStore
	listener     *pq.Listener
	channel      string
	matcher      Matcher
	rawPredicate string

	events chan cloudevent.Event
	errs   chan error

	mu       sync.Mutex
	position string
	closed   bool

	stop chan struct{}
	done chan struct{}
}

// Open starts a feed on channel (previously wired to the events table via
// store.EnsureChangeFeedTrigger), resuming from afterPosition (the empty
// string means "from the beginning"). dsn is a dedicated connection string
// for the LISTEN connection pq.Listener owns internally.
//
// rawPredicate, when non-empty, is pushed down into every catch-up query as
// a literal SQL boolean expression (the vendor-native form of
// subscription.Filter.Raw); matcher is applied in Go afterward (a no-op
// matcher is used once rawPredicate has already done the filtering).
func Open(ctx context.Context, dsn string, store postgresengine.EventStore, channel string, afterPosition string, rawPredicate string, matcher Matcher) (*Feed, error) {
	f := &Feed{
		store:        store,
		channel:      channel,
		matcher:      matcher,
		rawPredicate: rawPredicate,
		events:       make(chan cloudevent.Event, defaultBatchSize),
		errs:         make(chan error, 1),
		position:     afterPosition,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}

	reconnected := make(chan struct{}, 1)

	f.listener = pq.NewListener(dsn, 10*time.Second, time.Minute, func(event pq.ListenerEventType, err error) {
		if event == pq.ListenerEventReconnected || event == pq.ListenerEventConnected {
			select {
			case reconnected <- struct{}{}:
			default:
			}
		}

		if err != nil {
			select {
			case f.errs <- err:
			default:
			}
		}
	})

	if err := f.listener.Listen(channel); err != nil {
		f.listener.Close()
		return nil, err
	}

	go f.run(ctx, reconnected)

	return f, nil
}

// Events returns the channel new, filter-matching events are delivered on,
// each carrying its resume token as the cloudevent.ExtensionStreamPosition
// extension.
func (f *Feed) Events() <-chan cloudevent.Event {
	return f.events
}

// Errors returns the channel transient LISTEN-connection errors are
// reported on; the feed keeps running (pq.Listener reconnects internally)
// after reporting one.
func (f *Feed) Errors() <-chan error {
	return f.errs
}

// Position returns the resume token of the last event the feed has
// processed, whether delivered or skipped by the matcher (or the feed's
// starting position if nothing has been processed yet).
func (f *Feed) Position() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.position
}

// Close stops the feed and releases its LISTEN connection. Idempotent.
func (f *Feed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	close(f.stop)
	<-f.done

	return f.listener.Close()
}

func (f *Feed) run(ctx context.Context, reconnected <-chan struct{}) {
	defer close(f.done)

	f.catchUp(ctx)

	for {
		select {
		case <-f.stop:
			return
		case <-ctx.Done():
			return
		case <-reconnected:
			f.catchUp(ctx)
		case notification := <-f.listener.Notify:
			_ = notification // payload is a wake-up signal only, see package doc
			f.catchUp(ctx)
		}
	}
}

func (f *Feed) catchUp(ctx context.Context) {
	for {
		f.mu.Lock()
		position := f.position
		f.mu.Unlock()

		feedEvents, err := f.store.ReadChangeFeedSince(ctx, position, defaultBatchSize, f.rawPredicate)
		if err != nil {
			select {
			case f.errs <- err:
			default:
			}

			return
		}

		if len(feedEvents) == 0 {
			return
		}

		for _, fe := range feedEvents {
			if f.matcher == nil || f.matcher(fe.Event) {
				select {
				case f.events <- fe.Event:
				case <-f.stop:
					return
				case <-ctx.Done():
					return
				}
			}

			f.mu.Lock()
			f.position = fe.Position
			f.mu.Unlock()
		}

		if len(feedEvents) < defaultBatchSize {
			return
		}
	}
}
