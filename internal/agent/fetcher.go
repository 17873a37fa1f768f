package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/puddle/v2"
	"go.uber.org/zap"

	"github.com/appconfd/appconfd/internal/source"
)

// fetcher performs on-demand fetches through a bounded pool of
// upstream workers. Each worker keeps its own session per profile
// so session tokens stay sequential; a worker is destroyed on
// error and rebuilt on the next acquire.
type fetcher struct {
	pool      *puddle.Pool[*fetchWorker]
	closeOnce sync.Once
	log       *zap.Logger
}

type fetchWorker struct {
	source   source.Source
	sessions map[source.ProfileRef]source.Session
}

func newFetcher(src source.Source, maxSessions int, log *zap.Logger) (*fetcher, error) {
	if maxSessions <= 0 {
		maxSessions = 1
	}

	constructor := func(context.Context) (*fetchWorker, error) {
		return &fetchWorker{
			source:   src,
			sessions: make(map[source.ProfileRef]source.Session),
		}, nil
	}

	destructor := func(w *fetchWorker) {
		for _, session := range w.sessions {
			session.Close()
		}
	}

	pool, err := puddle.NewPool(&puddle.Config[*fetchWorker]{
		Constructor: constructor,
		Destructor:  destructor,
		MaxSize:     int32(maxSessions),
	})
	if err != nil {
		return nil, fmt.Errorf("creating fetch pool: %w", err)
	}

	return &fetcher{
		pool: pool,
		log:  log.Named("fetcher"),
	}, nil
}

// Fetch acquires a worker and fetches the latest document for the
// given profile. ok mirrors source.Session: false means the
// profile did not change since the worker's previous fetch.
func (f *fetcher) Fetch(ctx context.Context, ref source.ProfileRef) (source.Document, bool, error) {
	resource, err := f.pool.Acquire(ctx)
	if err != nil {
		return source.Document{}, false, fmt.Errorf("error acquiring fetch worker: %w", err)
	}

	doc, ok, err := resource.Value().fetch(ctx, ref)
	if err != nil {
		f.log.Debug("destroying fetch worker due to error", zap.Error(err))
		resource.Destroy()
		return source.Document{}, false, err
	}

	resource.Release()

	return doc, ok, nil
}

func (f *fetcher) Close() {
	f.closeOnce.Do(f.pool.Close)
}

func (w *fetchWorker) fetch(ctx context.Context, ref source.ProfileRef) (source.Document, bool, error) {
	session, ok := w.sessions[ref]
	if !ok {
		var err error

		session, err = w.source.Open(ctx, ref)
		if err != nil {
			return source.Document{}, false, err
		}

		w.sessions[ref] = session
	}

	doc, changed, err := session.Fetch(ctx)
	if err != nil {
		session.Close()
		delete(w.sessions, ref)
		return source.Document{}, false, err
	}

	return doc, changed, nil
}
