package handler

import (
	"net/http"

	"github.com/appconfd/appconfd/internal/server"
)

func NewConfigurationRoute(handler *ConfigHandler) server.HttpHandlerResult {
	return server.AsHttpHandler("GET /applications/{application}/environments/{environment}/configurations/{configuration}", handler)
}

func NewHealthRoute() server.HttpHandlerResult {
	return server.AsHttpHandler("GET /health", http.HandlerFunc(HealthHandler))
}
