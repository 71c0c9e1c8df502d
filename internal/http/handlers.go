/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "context"
    "errors"
    "net/http"

    "github.com/HamedShams/jira-lens/internal/badge"
    "github.com/HamedShams/jira-lens/internal/config"
    "github.com/HamedShams/jira-lens/internal/domain"
    "github.com/HamedShams/jira-lens/internal/repo"
    "github.com/HamedShams/jira-lens/internal/services"
    "github.com/gin-gonic/gin"
    "github.com/rs/zerolog"
)

type service interface {
    Membership(ctx context.Context, rawKey, rawBoard string) (domain.Resolution, error)
    Classification(ctx context.Context, rawKey string) (domain.ClassificationResult, error)
    Page(ctx context.Context, pageURL string) (services.PageResult, error)
    Copy(ctx context.Context, rawKey string) (services.CopyText, error)
    ResetScope()
}

type scanner interface {
    RunNow(ctx context.Context) error
    LastRun(ctx context.Context) (*repo.LastRun, error)
}

type Handlers struct {
    cfg  config.Config
    log  zerolog.Logger
    svc  service
    scan scanner
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc service, scan scanner) *Handlers {
    return &Handlers{cfg: cfg, log: log, svc: svc, scan: scan}
}

type membershipView struct {
    Key        domain.IssueKey   `json:"key"`
    Resolution domain.Resolution `json:"resolution"`
    Badge      *badge.Badge      `json:"badge"`
}

type classificationView struct {
    Key    domain.IssueKey              `json:"key"`
    Result *domain.ClassificationResult `json:"result"`
    Card   []badge.Badge                `json:"card_badges"`
    Detail *badge.Badge                 `json:"detail_badge"`
}

func newMembershipView(key domain.IssueKey, res domain.Resolution) membershipView {
    v := membershipView{Key: key, Resolution: res}
    // no board context: nothing to show
    if res.BoardID != "" { b := badge.Membership(res.Status); v.Badge = &b }
    return v
}

func newClassificationView(key domain.IssueKey, r *domain.ClassificationResult) classificationView {
    v := classificationView{Key: key, Result: r, Card: []badge.Badge{}}
    if r == nil { return v }
    if c := badge.Card(*r); c != nil { v.Card = c }
    if d, ok := badge.Detail(*r); ok { v.Detail = &d }
    return v
}

func (h *Handlers) writeError(c *gin.Context, err error) {
    switch {
    case errors.Is(err, domain.ErrMalformedKey):
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    default:
        var nf *domain.NotFoundError
        if errors.As(err, &nf) { c.JSON(http.StatusNotFound, gin.H{"error": err.Error()}); return }
        h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
        c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
    }
}

func (h *Handlers) Healthz(c *gin.Context) {
    c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) Membership(c *gin.Context) {
    res, err := h.svc.Membership(c.Request.Context(), c.Param("key"), c.Query("boardId"))
    if err != nil { h.writeError(c, err); return }
    c.JSON(http.StatusOK, newMembershipView(domain.IssueKey(c.Param("key")), res))
}

func (h *Handlers) Classification(c *gin.Context) {
    key := domain.IssueKey(c.Param("key"))
    r, err := h.svc.Classification(c.Request.Context(), c.Param("key"))
    if errors.Is(err, domain.ErrUnavailable) {
        // silent degrade: the client shows no badge
        c.JSON(http.StatusOK, newClassificationView(key, nil))
        return
    }
    if err != nil { h.writeError(c, err); return }
    c.JSON(http.StatusOK, newClassificationView(key, &r))
}

func (h *Handlers) Copy(c *gin.Context) {
    out, err := h.svc.Copy(c.Request.Context(), c.Param("key"))
    if err != nil { h.writeError(c, err); return }
    c.JSON(http.StatusOK, out)
}

func (h *Handlers) Page(c *gin.Context) {
    var req struct {
        URL string `json:"url" binding:"required"`
    }
    if err := c.ShouldBindJSON(&req); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }
    res, err := h.svc.Page(c.Request.Context(), req.URL)
    if err != nil { h.writeError(c, err); return }
    c.JSON(http.StatusOK, gin.H{
        "key":            res.Key,
        "membership":     newMembershipView(res.Key, res.Membership),
        "classification": newClassificationView(res.Key, res.Classification),
    })
}

func (h *Handlers) ResetScope(c *gin.Context) {
    h.svc.ResetScope()
    c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) LastRun(c *gin.Context) {
    if h.scan == nil { c.JSON(http.StatusNotFound, gin.H{"error": "scan disabled"}); return }
    lr, err := h.scan.LastRun(c.Request.Context())
    if err != nil { h.writeError(c, err); return }
    c.JSON(http.StatusOK, lr)
}

func (h *Handlers) RunNow(c *gin.Context) {
    if h.scan == nil { c.JSON(http.StatusNotFound, gin.H{"error": "scan disabled"}); return }
    // Run in background detached from the HTTP request to avoid context cancellation
    go func(){
        if err := h.scan.RunNow(context.Background()); err != nil {
            h.log.Error().Err(err).Msg("manual scan failed")
        }
    }()
    c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}
