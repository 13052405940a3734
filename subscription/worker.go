package subscription

import (
	"context"
	"time"

	"github.com/occurrent-go/occurrent/cloudevent"
	"github.com/occurrent-go/occurrent/eventstore/postgresengine/changefeed"
)

// worker delivers one subscription's events serially, retrying a failing
// Action with exponential backoff and optionally persisting progress.
type worker struct {
	id     string
	engine *Engine
	feed   *changefeed.Feed
	action Action

	persistPredicate PersistPredicate
	sincePersist     int

	stop chan struct{}
	done chan struct{}
}

func (w *worker) run(ctx context.Context) {
	defer close(w.done)
	defer w.feed.Close()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case err, ok := <-w.feed.Errors():
			if !ok {
				return
			}
			w.engine.logger.Warn("subscription change feed error", "subscription", w.id, "error", err)
		case event, ok := <-w.feed.Events():
			if !ok {
				return
			}
			if !w.deliver(ctx, event) {
				return
			}
		}
	}
}

// deliver invokes the Action with unbounded exponential-backoff retry on
// error, re-invoking with the same event and never advancing position
// between attempts. Returns false if the worker was told to stop while
// waiting for a retry.
func (w *worker) deliver(ctx context.Context, event cloudevent.Event) bool {
	for attempt := 1; ; attempt++ {
		err := w.action(ctx, event)
		if err == nil {
			break
		}

		w.engine.logger.Warn("subscription callback failed, retrying",
			"subscription", w.id, "attempt", attempt, "error", err)

		delay := w.engine.backoff.Next(attempt)

		select {
		case <-time.After(delay):
		case <-w.stop:
			return false
		case <-ctx.Done():
			return false
		}
	}

	w.sincePersist++

	if w.engine.positions != nil && w.persistPredicate(w.sincePersist) {
		pos, _ := event.StreamPosition()

		if err := w.engine.positions.Save(ctx, w.id, pos); err != nil {
			w.engine.logger.Error("subscription position persistence failed",
				"subscription", w.id, "error", err)
		} else {
			w.sincePersist = 0
		}
	}

	return true
}

func (w *worker) stopAndWait() {
	close(w.stop)
	<-w.done
}

func (w *worker) stopWithTimeout(timeout time.Duration) {
	close(w.stop)

	select {
	case <-w.done:
	case <-time.After(timeout):
	}
}
