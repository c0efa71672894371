// Package gateway exposes a read-only HTTP view of the ledger. It serves
// queries only; transactions go through the consensus engine.
package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"onchainlottery/internal/state"
)

// Ledger is the read surface the gateway needs from the application.
type Ledger interface {
	Height() int64
	AccountBalance(addr string) uint64
	LotteryIDs() []uint64
	LotteryByID(id uint64) (state.Lottery, bool)
	TicketFor(lotteryID uint64, buyer string) (state.UserTicket, bool)
}

// New builds the gin router. The caller owns the listener lifecycle.
func New(ledger Ledger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"height": ledger.Height()})
	})

	v1 := r.Group("/v1")
	v1.GET("/lotteries", func(c *gin.Context) {
		ids := ledger.LotteryIDs()
		out := make([]state.Lottery, 0, len(ids))
		for _, id := range ids {
			if l, ok := ledger.LotteryByID(id); ok {
				out = append(out, l)
			}
		}
		c.JSON(http.StatusOK, gin.H{"lotteries": out})
	})
	v1.GET("/lotteries/:id", func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "lottery id must be a u64"})
			return
		}
		l, ok := ledger.LotteryByID(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "lottery not found"})
			return
		}
		c.JSON(http.StatusOK, l)
	})
	v1.GET("/lotteries/:id/tickets/:buyer", func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "lottery id must be a u64"})
			return
		}
		tk, ok := ledger.TicketFor(id, c.Param("buyer"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
			return
		}
		c.JSON(http.StatusOK, tk)
	})
	v1.GET("/accounts/:addr", func(c *gin.Context) {
		addr := c.Param("addr")
		c.JSON(http.StatusOK, gin.H{
			"address": addr,
			"balance": ledger.AccountBalance(addr),
		})
	})

	return r
}

func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Infof("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
