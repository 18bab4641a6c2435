package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/JoeShih716/go-block-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-block-ledger/internal/app/core/usecase"
)

// requestTimeout 等待結算 worker 回覆的上限
const requestTimeout = 30 * time.Second

type createAccountRequest struct {
	ID      string `json:"id" binding:"required"`
	Balance uint64 `json:"balance"`
}

type transferRequest struct {
	From   string `json:"from" binding:"required"`
	To     string `json:"to" binding:"required"`
	Amount uint64 `json:"amount"`
}

type blockResponse struct {
	Height    uint64            `json:"height"`
	SealedAt  time.Time         `json:"sealed_at"`
	Transfers []domain.Transfer `json:"transfers"`
}

// Server 帳本的 HTTP API
type Server struct {
	core   *usecase.CoreUseCase
	logger zerolog.Logger
}

func NewServer(core *usecase.CoreUseCase, logger zerolog.Logger) *Server {
	return &Server{
		core:   core,
		logger: logger.With().Str("component", "http").Logger(),
	}
}

// Handler 建立 gin router
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/balance/:id", s.getBalance)
	r.POST("/account", s.createAccount)
	r.POST("/transfer", s.transfer)
	r.POST("/tick", s.tick)
	r.GET("/blocks/:height", s.getBlock)
	return r
}

func (s *Server) getBalance(c *gin.Context) {
	id := c.Param("id")
	balance, err := s.core.GetAccountBalance(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "balance": balance})
}

func (s *Server) createAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	ref, err := s.core.CreateAccount(ctx, req.ID, req.Balance)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ref_id": ref.String(), "message": "Account created"})
}

func (s *Server) transfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	ref, err := s.core.Transfer(ctx, req.From, req.To, req.Amount)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ref_id": ref.String(), "message": "Transfer complete"})
}

func (s *Server) tick(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	sealed, err := s.core.Tick(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if sealed == nil {
		c.JSON(http.StatusOK, gin.H{"sealed": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sealed": true, "block": toBlockResponse(*sealed)})
}

func (s *Server) getBlock(c *gin.Context) {
	var height uint64
	if param := c.Param("height"); param != "latest" {
		h, err := strconv.ParseUint(param, 10, 64)
		if err != nil || h == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "height must be a positive integer or \"latest\""})
			return
		}
		height = h
	}

	block, err := s.core.GetBlock(c.Request.Context(), height)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBlockResponse(block))
}

func toBlockResponse(b domain.Block) blockResponse {
	return blockResponse{
		Height:    b.Height,
		SealedAt:  b.SealedAt,
		Transfers: b.Transfers,
	}
}

// writeError 將 domain 錯誤轉成 HTTP 狀態碼
func (s *Server) writeError(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrAccountNotFound), errors.Is(err, domain.ErrBlockNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrAccountExists):
		code = http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientFunds):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidAmount):
		code = http.StatusBadRequest
	case errors.Is(err, domain.ErrLedgerClosed):
		code = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	}
}
