/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "time"

    "github.com/HamedShams/jira-lens/internal/config"
    "github.com/gin-gonic/gin"
    "github.com/rs/zerolog"
)

// NewRouter wires the API. scan may be nil when the watch scan is disabled.
func NewRouter(cfg config.Config, log zerolog.Logger, svc service, scan scanner) *gin.Engine {
    if cfg.AppEnv != "dev" { gin.SetMode(gin.ReleaseMode) }
    r := gin.New()
    r.Use(gin.Recovery())
    r.Use(func(c *gin.Context){
        start := time.Now()
        c.Next()
        log.Info().Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Dur("took", time.Since(start)).Msg("http")
    })

    h := NewHandlers(cfg, log, svc, scan)

    r.GET("/healthz", h.Healthz)
    api := r.Group("/api")
    api.GET("/issues/:key/membership", h.Membership)
    api.GET("/issues/:key/classification", h.Classification)
    api.GET("/issues/:key/copy", h.Copy)
    api.POST("/page", h.Page)
    api.POST("/scope/reset", h.ResetScope)

    r.GET("/admin/last-run", h.LastRun)
    r.POST("/admin/run", h.RunNow)
    return r
}
