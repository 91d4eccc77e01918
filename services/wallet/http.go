package wallet

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"affiliatehub/pkg/db/pagination"
	"affiliatehub/pkg/errutil"
	"affiliatehub/pkg/middleware"
)

func registerRoutes(engine *gin.Engine, svc *Service) {
	v1 := engine.Group("/v1", middleware.RequireUser())
	v1.GET("/wallet/balance", svc.handleBalance)
	v1.GET("/wallet/transactions", svc.handleTransactions)
}

func (s *Service) handleBalance(c *gin.Context) {
	balance, err := s.GetBalance(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, balance)
}

func (s *Service) handleTransactions(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		_ = c.Error(errutil.BadRequest("invalid pagination", err))
		return
	}

	entries, pageInfo, err := s.ListTransactions(c.Request.Context(), middleware.UserID(c), page)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entries, "page_info": pageInfo})
}
