package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"signalboard/internal/models"
	"signalboard/internal/repository"
)

// ScanService is the slice of the lifecycle manager the HTTP surface needs.
type ScanService interface {
	Scan(ctx context.Context) bool
	GenerateInstantSignal(ctx context.Context, symbol string, style models.Style) (*models.Signal, error)
}

type SignalHandler struct {
	Repo    repository.Repository
	Scanner ScanService
}

func (h *SignalHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/signals")
	group.GET("", h.listSignals)
	group.GET("/:id", h.getSignal)
	group.POST("", h.createSignal)
	group.PATCH("/:id", h.updateSignal)
	group.DELETE("/:id", h.deleteSignal)
	group.POST("/instant", h.instantSignal)

	r.POST("/api/v1/scan", h.triggerScan)
	r.GET("/api/v1/market-data", h.listMarketData)
}

func (h *SignalHandler) listSignals(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)

	params := repository.ListSignalsParams{Limit: limit, Offset: offset}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := models.Status(strings.ToUpper(raw))
		if !models.ValidStatus(status) {
			Error(c, http.StatusBadRequest, "invalid value for field status", map[string]any{"field": "status"})
			return
		}
		params.Status = &status
	}
	if pair := strings.TrimSpace(c.Query("pair")); pair != "" {
		params.Pair = &pair
	}

	items, err := h.Repo.ListSignals(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, toSignalViews(items), paginationMeta(limit, offset, int64(len(items))))
}

func (h *SignalHandler) getSignal(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	item, err := h.Repo.GetSignal(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			Error(c, http.StatusNotFound, "signal not found", nil)
			return
		}
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, toSignalView(item), nil)
}

type createSignalRequest struct {
	Pair       string  `json:"pair" binding:"required"`
	Direction  string  `json:"direction" binding:"required,oneof=BUY SELL"`
	EntryPrice string  `json:"entryPrice" binding:"required"`
	StopLoss   string  `json:"stopLoss" binding:"required"`
	TakeProfit string  `json:"takeProfit" binding:"required"`
	Analysis   string  `json:"analysis"`
	ImageURL   *string `json:"imageUrl"`
	IsPremium  bool    `json:"isPremium"`
	Style      string  `json:"style" binding:"omitempty,oneof=SCALPING DAILY SWING"`
	Category   string  `json:"category" binding:"omitempty,oneof=CRYPTO FOREX STOCKS"`
}

func (h *SignalHandler) createSignal(c *gin.Context) {
	var req createSignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	entry, ok := priceField(c, "entryPrice", req.EntryPrice)
	if !ok {
		return
	}
	stop, ok := priceField(c, "stopLoss", req.StopLoss)
	if !ok {
		return
	}
	target, ok := priceField(c, "takeProfit", req.TakeProfit)
	if !ok {
		return
	}

	item := &models.Signal{
		Pair:       strings.ToUpper(strings.TrimSpace(req.Pair)),
		Direction:  models.Direction(req.Direction),
		EntryPrice: entry,
		StopLoss:   stop,
		TakeProfit: target,
		Analysis:   req.Analysis,
		ImageURL:   req.ImageURL,
		IsPremium:  req.IsPremium,
		Style:      models.Style(req.Style),
		Category:   models.Category(req.Category),
	}
	repository.ApplySignalDefaults(item, time.Now())
	if err := h.Repo.CreateSignal(c.Request.Context(), item); err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Created(c, toSignalView(item))
}

type updateSignalRequest struct {
	Pair       *string `json:"pair"`
	Direction  *string `json:"direction" binding:"omitempty,oneof=BUY SELL"`
	EntryPrice *string `json:"entryPrice"`
	StopLoss   *string `json:"stopLoss"`
	TakeProfit *string `json:"takeProfit"`
	Status     *string `json:"status" binding:"omitempty,oneof=ACTIVE HIT_TP HIT_SL CLOSED"`
	Analysis   *string `json:"analysis"`
	ImageURL   *string `json:"imageUrl"`
	IsPremium  *bool   `json:"isPremium"`
	Style      *string `json:"style" binding:"omitempty,oneof=SCALPING DAILY SWING"`
	Category   *string `json:"category" binding:"omitempty,oneof=CRYPTO FOREX STOCKS"`
	ResultPips *string `json:"resultPips"`
}

func (h *SignalHandler) updateSignal(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req updateSignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	updates := repository.SignalUpdate{
		Pair:     req.Pair,
		Analysis: req.Analysis,
		ImageURL: req.ImageURL,
	}
	if req.Direction != nil {
		d := models.Direction(*req.Direction)
		updates.Direction = &d
	}
	if req.EntryPrice != nil {
		v, ok := priceField(c, "entryPrice", *req.EntryPrice)
		if !ok {
			return
		}
		updates.EntryPrice = &v
	}
	if req.StopLoss != nil {
		v, ok := priceField(c, "stopLoss", *req.StopLoss)
		if !ok {
			return
		}
		updates.StopLoss = &v
	}
	if req.TakeProfit != nil {
		v, ok := priceField(c, "takeProfit", *req.TakeProfit)
		if !ok {
			return
		}
		updates.TakeProfit = &v
	}
	if req.Status != nil {
		status := models.Status(*req.Status)
		current, err := h.Repo.GetSignal(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				Error(c, http.StatusNotFound, "signal not found", nil)
				return
			}
			Error(c, http.StatusInternalServerError, err.Error(), nil)
			return
		}
		// A closed signal stays closed; only ACTIVE signals change status.
		if current.Status.Terminal() && status != current.Status {
			Error(c, http.StatusBadRequest, "signal status is final", map[string]any{"field": "status"})
			return
		}
		updates.Status = &status
		if status.Terminal() && !current.Status.Terminal() {
			now := time.Now()
			updates.ClosedAt = &now
		}
	}
	if req.IsPremium != nil {
		updates.IsPremium = req.IsPremium
	}
	if req.Style != nil {
		style := models.Style(*req.Style)
		updates.Style = &style
	}
	if req.Category != nil {
		cat := models.Category(*req.Category)
		updates.Category = &cat
	}
	if req.ResultPips != nil {
		v, ok := priceField(c, "resultPips", *req.ResultPips)
		if !ok {
			return
		}
		updates.ResultPips = &v
	}

	item, err := h.Repo.UpdateSignal(c.Request.Context(), id, updates)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			Error(c, http.StatusNotFound, "signal not found", nil)
			return
		}
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, toSignalView(item), nil)
}

func (h *SignalHandler) deleteSignal(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.Repo.DeleteSignal(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			Error(c, http.StatusNotFound, "signal not found", nil)
			return
		}
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"deleted": id}, nil)
}

type instantSignalRequest struct {
	Pair  string `json:"pair" binding:"required"`
	Style string `json:"style" binding:"omitempty,oneof=SCALPING DAILY SWING"`
}

func (h *SignalHandler) instantSignal(c *gin.Context) {
	var req instantSignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if h.Scanner == nil {
		Error(c, http.StatusServiceUnavailable, "scanner unavailable", nil)
		return
	}
	item, err := h.Scanner.GenerateInstantSignal(c.Request.Context(),
		strings.ToUpper(strings.TrimSpace(req.Pair)), models.Style(req.Style))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Created(c, toSignalView(item))
}

func (h *SignalHandler) triggerScan(c *gin.Context) {
	if h.Scanner == nil {
		Error(c, http.StatusServiceUnavailable, "scanner unavailable", nil)
		return
	}
	// Detached from the request: a scan outlives the HTTP call.
	go h.Scanner.Scan(context.Background())
	Accepted(c, "scan triggered")
}

// listMarketData returns all cached market rows, or a single row when the
// symbol query is set. Pair symbols contain a slash, so a path parameter
// cannot carry them.
func (h *SignalHandler) listMarketData(c *gin.Context) {
	if symbol := strings.ToUpper(strings.TrimSpace(c.Query("symbol"))); symbol != "" {
		item, err := h.Repo.GetMarketData(c.Request.Context(), symbol)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				Error(c, http.StatusNotFound, "no market data for symbol", nil)
				return
			}
			Error(c, http.StatusInternalServerError, err.Error(), nil)
			return
		}
		Ok(c, toMarketDataView(item), nil)
		return
	}

	items, err := h.Repo.ListMarketData(c.Request.Context())
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	views := make([]marketDataView, 0, len(items))
	for i := range items {
		views = append(views, toMarketDataView(&items[i]))
	}
	Ok(c, views, nil)
}

func idParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid value for field id", map[string]any{"field": "id"})
		return 0, false
	}
	return id, true
}

func priceField(c *gin.Context, field, raw string) (decimal.Decimal, bool) {
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid value for field "+field, map[string]any{"field": field})
		return decimal.Decimal{}, false
	}
	return v, true
}
