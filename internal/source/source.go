// Package source provides upstream configuration sources for the
// caching agent. A source opens one session per configuration
// profile; the session tracks whatever state the upstream needs
// between polls (session tokens, etags, previous content).
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound indicates that the upstream has no such profile.
var ErrNotFound = errors.New("configuration profile not found")

// ProfileRef identifies a configuration profile by its
// application, environment and configuration profile names.
type ProfileRef struct {
	Application   string
	Environment   string
	Configuration string
}

func (r ProfileRef) String() string {
	return r.Application + "/" + r.Environment + "/" + r.Configuration
}

// ParseProfileRef parses an "application/environment/configuration"
// triple.
func ParseProfileRef(s string) (ProfileRef, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return ProfileRef{}, fmt.Errorf("invalid profile %q: want application/environment/configuration", s)
	}

	for _, part := range parts {
		if part == "" {
			return ProfileRef{}, fmt.Errorf("invalid profile %q: empty component", s)
		}
	}

	return ProfileRef{
		Application:   parts[0],
		Environment:   parts[1],
		Configuration: parts[2],
	}, nil
}

type clientIDKey struct{}

// ContextWithClientID tags ctx with the agent's client id so
// sources can attribute upstream calls to it.
func ContextWithClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientIDKey{}, id)
}

// ClientIDFromContext returns the client id carried by ctx, if any.
func ClientIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(clientIDKey{}).(string)
	return id, ok && id != ""
}

// Document is a configuration payload as delivered by a source.
type Document struct {
	// Data is the raw payload.
	Data []byte

	// Version identifies the deployed configuration version.
	Version string

	// ContentType is the payload media type.
	ContentType string
}

// Session is a stateful subscription to a single profile. Fetch
// returns the latest document; ok is false when the profile has
// not changed since the previous fetch.
type Session interface {
	Fetch(ctx context.Context) (doc Document, ok bool, err error)

	Close() error
}

// Source opens sessions for configuration profiles.
type Source interface {
	Open(ctx context.Context, ref ProfileRef) (Session, error)
}
