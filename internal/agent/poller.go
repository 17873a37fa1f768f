package agent

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/appconfd/appconfd/internal/cache"
	"github.com/appconfd/appconfd/internal/source"
	"github.com/appconfd/appconfd/internal/validate"
)

// poller keeps one subscribed profile fresh in the store. It owns
// a dedicated session so poll tokens stay sequential.
type poller struct {
	ref       source.ProfileRef
	source    source.Source
	store     *cache.Store
	validator *validate.Validator
	interval  time.Duration
	log       *zap.Logger
}

func newPoller(
	ref source.ProfileRef,
	src source.Source,
	store *cache.Store,
	validator *validate.Validator,
	interval time.Duration,
	log *zap.Logger,
) *poller {
	return &poller{
		ref:       ref,
		source:    src,
		store:     store,
		validator: validator,
		interval:  interval,
		log:       log.Named("poller").With(zap.String("profile", ref.String())),
	}
}

// run polls until the context is cancelled. The first poll happens
// immediately so subscribed profiles are served from the cache as
// soon as the upstream answers.
func (p *poller) run(ctx context.Context) {
	var session source.Session

	defer func() {
		if session != nil {
			session.Close()
		}
	}()

	for {
		if session == nil {
			var err error

			session, err = p.source.Open(ctx, p.ref)
			if err != nil {
				p.log.Warn("failed to open session", zap.Error(err))
			}
		}

		if session != nil {
			if err := p.poll(ctx, session); err != nil {
				p.log.Warn("poll failed", zap.Error(err))

				// drop the session; tokens may no longer be valid
				session.Close()
				session = nil
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.jitteredInterval()):
		}
	}
}

func (p *poller) poll(ctx context.Context, session source.Session) error {
	doc, changed, err := session.Fetch(ctx)
	if err != nil {
		return err
	}

	if !changed {
		// refresh the cached entry's age so Get does not trigger
		// a redundant on-demand fetch
		if entry, ok := p.store.Get(p.ref); ok {
			p.store.Put(p.ref, entry)
		}
		return nil
	}

	if p.validator != nil {
		if err := p.validator.Validate(doc.Data); err != nil {
			// keep serving the previous version
			p.log.Warn("rejecting invalid payload", zap.Error(err))
			return nil
		}
	}

	p.store.Put(p.ref, cache.Entry{
		Data:        doc.Data,
		Version:     doc.Version,
		ContentType: doc.ContentType,
	})

	p.log.Info("configuration updated", zap.String("version", doc.Version))

	return nil
}

// jitteredInterval spreads polls across +-10% of the base interval
// so subscribed profiles do not thundering-herd the upstream.
func (p *poller) jitteredInterval() time.Duration {
	jitter := 0.9 + 0.2*rand.Float64()
	return time.Duration(float64(p.interval) * jitter)
}
