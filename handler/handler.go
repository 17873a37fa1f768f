package handler

import (
	"context"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/appconfd/appconfd/internal/cache"
	"github.com/appconfd/appconfd/internal/source"
)

// VersionHeader carries the deployed configuration version on
// data plane responses.
const VersionHeader = "Configuration-Version"

// Getter returns the current configuration document for a profile.
type Getter interface {
	Get(ctx context.Context, ref source.ProfileRef) (cache.Entry, error)
}

// ConfigHandlerParams defines the dependencies for the handler.
type ConfigHandlerParams struct {
	fx.In

	Agent Getter
	Log   *zap.Logger
}

func NewConfigHandler(params ConfigHandlerParams) *ConfigHandler {
	return &ConfigHandler{
		agent: params.Agent,
		log:   params.Log,
	}
}

// ConfigHandler serves cached configuration documents over the
// agent's local data plane endpoint.
type ConfigHandler struct {
	agent Getter
	log   *zap.Logger
}

func (h *ConfigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
	)

	ref := source.ProfileRef{
		Application:   r.PathValue("application"),
		Environment:   r.PathValue("environment"),
		Configuration: r.PathValue("configuration"),
	}

	if ref.Application == "" || ref.Environment == "" || ref.Configuration == "" {
		log.Debug("missing profile identifier")
		writeError(w, http.StatusBadRequest, "missing profile identifier")
		return
	}

	entry, err := h.agent.Get(r.Context(), ref)
	if err != nil {
		log.Debug("failed to get configuration", zap.Error(err))
		writeError(w, errorStatusCode(err), err.Error())
		return
	}

	contentType := entry.ContentType
	if contentType == "" {
		contentType = "application/json"
	}

	w.Header().Set("Content-Type", contentType)
	if entry.Version != "" {
		w.Header().Set(VersionHeader, entry.Version)
	}

	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(entry.Data); err != nil {
		log.Debug("failed to write response", zap.Error(err))
	}
}
