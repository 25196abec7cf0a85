package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/courtlens/courtlens/internal/captcha"
	"github.com/courtlens/courtlens/internal/config"
	"github.com/courtlens/courtlens/internal/court"
	"github.com/courtlens/courtlens/internal/querylog"
	"github.com/courtlens/courtlens/internal/resolver"
	"github.com/courtlens/courtlens/pkg/logger"
)

// User-facing messages with a fixed wording.
const (
	msgMissingFields = "Please provide all required fields."
)

// maxBulkQueries bounds one bulk request.
const maxBulkQueries = 10

// Handlers holds all HTTP handlers.
type Handlers struct {
	resolver resolver.Resolver
	store    *querylog.Store
	sessions *captcha.SessionStore
	pdf      *court.PDFFetcher
	logger   *logger.Logger
	cfg      *config.Config
}

// NewHandlers creates a new handlers instance.
func NewHandlers(res resolver.Resolver, store *querylog.Store, sessions *captcha.SessionStore, pdf *court.PDFFetcher, logger *logger.Logger, cfg *config.Config) *Handlers {
	return &Handlers{
		resolver: res,
		store:    store,
		sessions: sessions,
		pdf:      pdf,
		logger:   logger,
		cfg:      cfg,
	}
}

// SearchCase handles a single case lookup. Every query that reaches the
// resolver is logged exactly once, before the response is written; queries
// rejected by validation never reach the resolver and are not logged.
func (h *Handlers) SearchCase(c *gin.Context) {
	var req resolver.CaseQuery
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingFields})
		return
	}

	q, err := resolver.Validate(req)
	if err != nil {
		h.logger.Debug("request rejected", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingFields})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.FetchTimeout)
	defer cancel()

	outcome := h.resolver.Resolve(ctx, q)
	h.store.Append(q, outcome)
	h.respond(c, outcome)
}

// respond maps a resolver outcome onto the HTTP surface. Raw upstream
// documents never leave the service; they live only in the query log.
func (h *Handlers) respond(c *gin.Context, outcome resolver.Outcome) {
	switch outcome.Kind {
	case resolver.KindFound:
		record := *outcome.Record
		record.RawResponse = ""
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    record,
		})
	case resolver.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": outcome.Message,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": outcome.Message,
			"kind":  outcome.Kind,
		})
	}
}

// BulkSearch resolves up to maxBulkQueries lookups concurrently, bounded by
// the configured parallelism. Each query is validated, resolved, and logged
// independently; one bad query fails the whole request shape-wise, matching
// single-lookup validation.
func (h *Handlers) BulkSearch(c *gin.Context) {
	var req struct {
		Queries []resolver.CaseQuery `json:"queries"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Queries) == 0 || len(req.Queries) > maxBulkQueries {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   msgMissingFields,
		})
		return
	}

	for _, q := range req.Queries {
		if _, err := resolver.Validate(q); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   msgMissingFields,
			})
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.FetchTimeout)
	defer cancel()

	outcomes := make([]resolver.Outcome, len(req.Queries))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, h.cfg.MaxConcurrentSearches)

	for i, query := range req.Queries {
		wg.Add(1)
		go func(index int, q resolver.CaseQuery) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			outcome := h.resolver.Resolve(ctx, q)
			h.store.Append(q, outcome)
			outcomes[index] = outcome
		}(i, query)
	}
	wg.Wait()

	results := make([]gin.H, 0, len(outcomes))
	for i, outcome := range outcomes {
		entry := gin.H{"query": req.Queries[i]}
		switch outcome.Kind {
		case resolver.KindFound:
			record := *outcome.Record
			record.RawResponse = ""
			entry["success"] = true
			entry["data"] = record
		case resolver.KindNotFound:
			entry["success"] = false
			entry["message"] = outcome.Message
		default:
			entry["success"] = false
			entry["error"] = outcome.Message
			entry["kind"] = outcome.Kind
		}
		results = append(results, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"results": results,
	})
}

// ListQueries returns the full query log as a JSON array, newest first.
// Outcomes are sanitized: stored raw documents stay in the database.
func (h *Handlers) ListQueries(c *gin.Context) {
	entries, err := h.store.List()
	if err != nil {
		h.logger.Error("failed to list query log", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to read query log",
		})
		return
	}

	sanitized := make([]querylog.LogEntry, 0, len(entries))
	for _, e := range entries {
		sanitized = append(sanitized, e.Sanitized())
	}
	c.JSON(http.StatusOK, sanitized)
}

// NewCaptcha issues a fresh challenge session for interactive clients.
func (h *Handlers) NewCaptcha(c *gin.Context) {
	sess := h.sessions.IssueCode()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    sess,
	})
}

// GetCaptcha returns a session's challenge: the code as JSON, or the parked
// image bytes for manual solving.
func (h *Handlers) GetCaptcha(c *gin.Context) {
	sess, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "CAPTCHA not found",
		})
		return
	}

	if sess.Kind == captcha.KindImage {
		c.Data(http.StatusOK, "image/png", sess.Image)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    sess,
	})
}

// SolveCaptcha accepts a manual answer for a parked image challenge.
func (h *Handlers) SolveCaptcha(c *gin.Context) {
	var req struct {
		Solution string `json:"solution" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request",
		})
		return
	}

	if !h.sessions.Solve(c.Param("id"), req.Solution) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "CAPTCHA not found",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "CAPTCHA solution saved",
	})
}

// VerifyCaptcha checks an answer against a code session. A correct answer
// consumes the session.
func (h *Handlers) VerifyCaptcha(c *gin.Context) {
	var req struct {
		SessionID string `json:"sessionId" binding:"required"`
		Answer    string `json:"answer" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request",
		})
		return
	}

	if !h.sessions.Verify(req.SessionID, req.Answer) {
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"message": "Incorrect or expired CAPTCHA",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "CAPTCHA verified",
	})
}

// OrderPDF streams an order PDF through the service. Only court-site URLs
// are fetched.
func (h *Handlers) OrderPDF(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Missing required parameter: url",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.PDFFetchTimeout)
	defer cancel()

	data, contentType, err := h.pdf.Fetch(ctx, rawURL)
	if err != nil {
		if errors.Is(err, court.ErrForeignHost) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "URL is not on the court site",
			})
			return
		}
		h.logger.Error("pdf fetch failed", "url", rawURL, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   "Failed to fetch document",
		})
		return
	}
	c.Data(http.StatusOK, contentType, data)
}

// HealthCheck reports service liveness and its dependencies' reachability.
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"database":   h.store.Healthy(),
		"strategy":   h.cfg.ResolverStrategy,
		"challenges": h.sessions.Count(),
		"time":       time.Now().Unix(),
	})
}
