// Package agent implements the local caching agent: it polls
// subscribed configuration profiles, validates and caches their
// payloads, and answers data plane lookups, falling back to stale
// data when the upstream is unavailable.
package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/appconfd/appconfd/internal/cache"
	"github.com/appconfd/appconfd/internal/source"
	"github.com/appconfd/appconfd/internal/validate"
)

// AgentParams defines the dependencies for the agent.
type AgentParams struct {
	fx.In

	// Context is the context to use for background polling.
	Context context.Context

	// Config is the agent configuration.
	Config Config

	// Source is the upstream source to pull from.
	Source source.Source

	// Log is the logger to use for the agent.
	Log *zap.Logger
}

type Agent struct {
	config     Config
	source     source.Source
	store      *cache.Store
	fetcher    *fetcher
	validators map[source.ProfileRef]*validate.Validator
	clientID   string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	log *zap.Logger
}

func New(params AgentParams) (*Agent, error) {
	log := params.Log.Named("agent")

	fetcher, err := newFetcher(params.Source, params.Config.MaxSessions, log)
	if err != nil {
		return nil, err
	}

	validators, err := loadValidators(params.Config)
	if err != nil {
		return nil, err
	}

	clientID := uuid.NewString()

	return &Agent{
		config:     params.Config,
		source:     params.Source,
		store:      cache.New(params.Config.CacheTTL),
		fetcher:    fetcher,
		validators: validators,
		clientID:   clientID,
		ctx:        source.ContextWithClientID(params.Context, clientID),
		log:        log,
	}, nil
}

func NewLifecycleAgent(params AgentParams, lc fx.Lifecycle) (*Agent, error) {
	agent, err := New(params)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return agent.Start()
		},
		OnStop: func(ctx context.Context) error {
			return agent.Shutdown(ctx)
		},
	})

	return agent, nil
}

// Start launches one poller per subscribed profile.
func (a *Agent) Start() error {
	refs := make([]source.ProfileRef, 0, len(a.config.Profiles))
	for _, profile := range a.config.Profiles {
		ref, err := source.ParseProfileRef(profile)
		if err != nil {
			return err
		}
		refs = append(refs, ref)
	}

	ctx, cancel := context.WithCancel(a.ctx)
	a.cancel = cancel

	for _, ref := range refs {
		p := newPoller(ref, a.source, a.store, a.validators[ref], a.config.PollInterval, a.log)

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			p.run(ctx)
		}()
	}

	a.log.Info("agent started",
		zap.String("client_id", a.clientID),
		zap.Stringer("source", a.config.Source),
		zap.Int("profiles", len(refs)),
	)

	return nil
}

// Shutdown stops all pollers and waits for them to finish.
func (a *Agent) Shutdown(context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}

	a.wg.Wait()
	a.fetcher.Close()

	return nil
}

// Get returns the current document for the given profile. Fresh
// cache entries are served directly; otherwise the upstream is
// consulted, and a stale entry is served when it fails.
func (a *Agent) Get(ctx context.Context, ref source.ProfileRef) (cache.Entry, error) {
	if entry, ok := a.store.Fresh(ref); ok {
		return entry, nil
	}

	ctx = source.ContextWithClientID(ctx, a.clientID)

	doc, changed, err := a.fetcher.Fetch(ctx, ref)
	if err != nil {
		if errors.Is(err, source.ErrNotFound) {
			return cache.Entry{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}

		if entry, ok := a.store.Get(ref); ok {
			a.log.Warn("serving stale configuration",
				zap.String("profile", ref.String()),
				zap.Error(err),
			)
			return entry, nil
		}

		return cache.Entry{}, fmt.Errorf("%w: %s", ErrUpstream, err)
	}

	if !changed {
		// unchanged upstream; refresh the cached entry's age
		if entry, ok := a.store.Get(ref); ok {
			return a.store.Put(ref, entry), nil
		}

		return cache.Entry{}, fmt.Errorf("%w: upstream reported no change but nothing is cached", ErrUpstream)
	}

	if validator := a.validators[ref]; validator != nil {
		if err := validator.Validate(doc.Data); err != nil {
			if entry, ok := a.store.Get(ref); ok {
				a.log.Warn("rejecting invalid payload, serving previous version",
					zap.String("profile", ref.String()),
					zap.Error(err),
				)
				return entry, nil
			}

			return cache.Entry{}, fmt.Errorf("%w: %s", ErrInvalidPayload, err)
		}
	}

	return a.store.Put(ref, cache.Entry{
		Data:        doc.Data,
		Version:     doc.Version,
		ContentType: doc.ContentType,
	}), nil
}

// loadValidators reads the optional JSON schema validator for each
// subscribed profile from the schema directory.
func loadValidators(config Config) (map[source.ProfileRef]*validate.Validator, error) {
	validators := make(map[source.ProfileRef]*validate.Validator)

	if config.SchemaDir == "" {
		return validators, nil
	}

	for _, profile := range config.Profiles {
		ref, err := source.ParseProfileRef(profile)
		if err != nil {
			return nil, err
		}

		path := filepath.Join(config.SchemaDir, ref.Application, ref.Environment, ref.Configuration+".schema.json")

		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading schema for %s: %w", ref, err)
		}

		validator, err := validate.NewFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("schema for %s: %w", ref, err)
		}

		validators[ref] = validator
	}

	return validators, nil
}
