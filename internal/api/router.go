package api

import (
	"errors"
	"net/http"
	"strconv"

	"mahjong-ledger/internal/model"
	"mahjong-ledger/internal/service"
	"mahjong-ledger/internal/ws"
	appErr "mahjong-ledger/pkg/errors"
	"mahjong-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type Handler struct {
	services *service.Container
}

func RegisterRoutes(r *gin.Engine, services *service.Container) {
	handler := &Handler{services: services}
	wsHandler := ws.NewHandler(services.Feed)

	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{"message": "pong"})
	})

	v1 := r.Group("/mahjong/v1")
	{
		v1.GET("/players", handler.ListPlayers)
		v1.POST("/players", handler.RegisterPlayer)

		v1.GET("/weeks", handler.ListWeeks)
		v1.GET("/weeks/current", handler.GetCurrentWeek)
		v1.GET("/weeks/close/preview", handler.PreviewCloseWeek)
		v1.POST("/weeks/close", handler.CloseWeek)

		v1.GET("/transactions", handler.ListTransactions)
		v1.POST("/transactions/session", handler.PostSessionScore)
		v1.POST("/transactions/payinout", handler.PostPayInOut)
		v1.POST("/transactions/:id/revert", handler.RevertTransaction)

		v1.GET("/dashboard", handler.GetDashboard)
		v1.GET("/pool", handler.GetPool)
	}

	r.GET("/ws/ledger", wsHandler.HandleLedgerWS)
}

type registerPlayerBody struct {
	Name string `json:"name" binding:"required"`
}

type sessionScoreBody struct {
	PlayerID    int64           `json:"playerId" binding:"required"`
	Weekday     string          `json:"weekday" binding:"required"`
	Value       decimal.Decimal `json:"value"`
	Description string          `json:"description"`
}

type payInOutBody struct {
	PlayerID    int64           `json:"playerId" binding:"required"`
	Value       decimal.Decimal `json:"value"`
	Description string          `json:"description"`
}

func (h *Handler) ListPlayers(c *gin.Context) {
	players, err := h.services.Player.List(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"items": players})
}

func (h *Handler) RegisterPlayer(c *gin.Context) {
	var body registerPlayerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	player, err := h.services.Player.Create(c.Request.Context(), body.Name)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, appErr.ErrValidation):
			status = http.StatusBadRequest
		case errors.Is(err, appErr.ErrDuplicatePlayerName):
			status = http.StatusConflict
		}
		response.Error(c, status, err.Error())
		return
	}

	response.Success(c, player)
}

func (h *Handler) ListWeeks(c *gin.Context) {
	weeks, err := h.services.Week.List(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"items": weeks})
}

func (h *Handler) GetCurrentWeek(c *gin.Context) {
	week, err := h.services.Week.CurrentWeek(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, week)
}

func (h *Handler) PreviewCloseWeek(c *gin.Context) {
	preview, err := h.services.Week.SettlePreview(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, preview)
}

func (h *Handler) CloseWeek(c *gin.Context) {
	next, err := h.services.Week.Settle(c.Request.Context())
	if err != nil {
		var unbalanced *appErr.UnbalancedWeekError
		if errors.As(err, &unbalanced) {
			response.JSON(c, http.StatusConflict, gin.H{"imbalances": unbalanced.Imbalances}, err.Error())
			return
		}
		status := http.StatusInternalServerError
		if errors.Is(err, appErr.ErrWeekNotFound) {
			status = http.StatusNotFound
		}
		response.Error(c, status, err.Error())
		return
	}

	response.SuccessWithMsg(c, next, "week settled")
}

func (h *Handler) ListTransactions(c *gin.Context) {
	excludeReverted := c.Query("excludeReverted") == "true"

	rows, err := h.services.Ledger.ListCurrentWeek(c.Request.Context(), excludeReverted)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"items": rows})
}

func (h *Handler) PostSessionScore(c *gin.Context) {
	var body sessionScoreBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	weekday, ok := model.ParseWeekday(body.Weekday)
	if !ok {
		response.Error(c, http.StatusBadRequest, "invalid weekday")
		return
	}

	txn, err := h.services.Ledger.RecordSession(c.Request.Context(), body.PlayerID, weekday, body.Value, body.Description)
	if err != nil {
		response.Error(c, recordErrorStatus(err), err.Error())
		return
	}
	response.Success(c, txn)
}

func (h *Handler) PostPayInOut(c *gin.Context) {
	var body payInOutBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	txn, err := h.services.Ledger.RecordPayInOut(c.Request.Context(), body.PlayerID, body.Value, body.Description)
	if err != nil {
		response.Error(c, recordErrorStatus(err), err.Error())
		return
	}
	response.Success(c, txn)
}

func (h *Handler) RevertTransaction(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "invalid transaction id")
		return
	}

	compensating, err := h.services.Ledger.Revert(c.Request.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, appErr.ErrTransactionNotFound):
			status = http.StatusNotFound
		case errors.Is(err, appErr.ErrAlreadyReverted), errors.Is(err, appErr.ErrStaleWeek):
			status = http.StatusConflict
		}
		response.Error(c, status, err.Error())
		return
	}

	response.Success(c, compensating)
}

func (h *Handler) GetDashboard(c *gin.Context) {
	snapshot, err := h.services.Dashboard.Snapshot(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, snapshot)
}

func (h *Handler) GetPool(c *gin.Context) {
	pool, err := h.services.Week.Pool(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, pool)
}

func recordErrorStatus(err error) int {
	switch {
	case errors.Is(err, appErr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, appErr.ErrPlayerNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
