// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes wires the ingestion and query handlers, the API-key and
// recovery middleware, and the Prometheus exposition endpoint onto a Gin
// engine.
package routes

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stratum-io/stratum/internal/api"
	"github.com/stratum-io/stratum/internal/api/middleware"
	"github.com/stratum-io/stratum/internal/ingest"
	"github.com/stratum-io/stratum/pkg/extensions"
)

// Setup attaches the full Stratum HTTP surface to router: panic recovery
// first, then auth, then the ingestion and query handlers, plus /metrics.
func Setup(router *gin.Engine, ingestHandler *ingest.Handler, apiHandler *api.Handler, authProvider extensions.AuthProvider, logger *slog.Logger) {
	router.Use(middleware.Recover(logger))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	apiHandler.RegisterHealth(router)

	authenticated := router.Group("/")
	authenticated.Use(middleware.Auth(authProvider))
	{
		ingestHandler.Register(authenticated)
		apiHandler.Register(authenticated)
	}
}
