package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"

	"github.com/celerix-dev/negmarket/internal/filter"
	"github.com/celerix-dev/negmarket/internal/i18n"
	"github.com/celerix-dev/negmarket/internal/market"
	"github.com/celerix-dev/negmarket/pkg/engine"
	"github.com/celerix-dev/negmarket/pkg/schema"
	"github.com/celerix-dev/negmarket/pkg/sdk"
)

type Handler struct {
	Market       sdk.Market
	I18n         *i18n.Catalog
	PriceCeiling int64
	// Locale answers requests that name no language.
	Locale string
}

// Register mounts the marketplace routes on g.
func (h *Handler) Register(g gin.IRoutes) {
	g.GET("/listings", h.Search)
	g.GET("/listings/featured", h.Featured)
	g.GET("/listings/:id", h.GetListing)
	g.GET("/facets", h.Facets)
	g.GET("/accounts/:account", h.GetAccount)
	g.GET("/accounts/:account/summary", h.GetSummary)
	g.POST("/accounts/:account/purchases", h.Purchase)
	g.POST("/accounts/:account/uploads", h.Upload)
	g.GET("/notification", h.GetNotification)
}

// CORS allows the browser front end to call the API from another origin.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Accept-Language")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

type searchParams struct {
	Text     string `form:"q"`
	Category string `form:"category"`
	Stage    string `form:"stage"`
	MaxPrice *int64 `form:"max_price"`
	Sort     string `form:"sort"`
}

func (h *Handler) Search(c *gin.Context) {
	var p searchParams
	if err := c.ShouldBindQuery(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	key, ok := filter.ParseSortKey(p.Sort)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown sort %q", p.Sort)})
		return
	}

	q := schema.NewQuery(h.PriceCeiling)
	q.Text = p.Text
	if p.Category != "" {
		q.Category = schema.Category(p.Category)
	}
	if p.Stage != "" {
		q.Stage = schema.FailureStage(p.Stage)
	}
	if p.MaxPrice != nil {
		q.PriceCeiling = *p.MaxPrice
	}

	hits, err := h.Market.Search(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, filter.Sort(hits, key))
}

func (h *Handler) Featured(c *gin.Context) {
	hits, err := h.Market.Featured(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, hits)
}

func (h *Handler) GetListing(c *gin.Context) {
	l, err := h.Market.Listing(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *Handler) Facets(c *gin.Context) {
	c.JSON(http.StatusOK, filter.Facets())
}

func (h *Handler) GetAccount(c *gin.Context) {
	acct, err := h.Market.Account(c.Request.Context(), c.Param("account"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, acct)
}

func (h *Handler) GetSummary(c *gin.Context) {
	sum, err := h.Market.Summary(c.Request.Context(), c.Param("account"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *Handler) Purchase(c *gin.Context) {
	var input struct {
		ListingID string `json:"listing_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.Market.Purchase(c.Request.Context(), c.Param("account"), input.ListingID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Upload(c *gin.Context) {
	var draft schema.UploadDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := h.Market.SubmitUpload(c.Request.Context(), c.Param("account"), draft)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *Handler) GetNotification(c *gin.Context) {
	n, ok, err := h.Market.Notification(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}

	lang := h.lang(c)
	c.JSON(http.StatusOK, gin.H{
		"id":         n.ID,
		"key":        n.Key,
		"subject":    n.Subject,
		"severity":   n.Severity,
		"message":    h.I18n.Render(lang, n),
		"lang":       lang.String(),
		"expires_in": time.Until(n.ExpiresAt).Milliseconds(),
	})
}

// lang picks the response language from ?lang=, then Accept-Language, then
// the configured locale.
func (h *Handler) lang(c *gin.Context) language.Tag {
	if l := c.Query("lang"); l != "" {
		return h.I18n.Match(l)
	}
	if accept := c.GetHeader("Accept-Language"); accept != "" {
		return h.I18n.Match(accept)
	}
	return h.I18n.Match(h.Locale)
}

// fail maps marketplace errors to HTTP statuses.
func (h *Handler) fail(c *gin.Context, err error) {
	var ice *engine.InsufficientCreditsError
	switch {
	case errors.As(err, &ice):
		lang := h.lang(c)
		shortfall := ice.Price - ice.Balance
		message := fmt.Sprintf("%s. %s %d %s.",
			h.I18n.T(lang, schema.KeyInsufficientCredits),
			h.I18n.T(lang, "common.need_more"), shortfall,
			h.I18n.T(lang, "common.more_credits"))
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":     err.Error(),
			"code":      sdk.CodeInsufficientCredits,
			"balance":   ice.Balance,
			"price":     ice.Price,
			"shortfall": shortfall,
			"message":   message,
		})
	case errors.Is(err, engine.ErrInsufficientCredits):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error(), "code": sdk.CodeInsufficientCredits})
	case errors.Is(err, engine.ErrListingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": sdk.CodeListingNotFound})
	case errors.Is(err, engine.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": sdk.CodeAccountNotFound})
	case errors.Is(err, market.ErrUploadCanceled), errors.Is(err, market.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "code": sdk.CodeUploadCanceled})
	case errors.Is(err, sdk.ErrBadRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": sdk.CodeBadRequest})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "code": sdk.CodeInternal})
	}
}
