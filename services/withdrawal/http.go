package withdrawal

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	"affiliatehub/pkg/errutil"
	"affiliatehub/pkg/middleware"
)

func registerRoutes(engine *gin.Engine, svc *Service) {
	v1 := engine.Group("/v1", middleware.RequireUser())
	v1.POST("/withdrawals", svc.handleSubmit)
	v1.GET("/withdrawals", svc.handleListMine)

	admin := engine.Group("/v1/admin", middleware.RequireUser())
	admin.GET("/withdrawals", svc.handleListPending)
	admin.POST("/withdrawals/:request_id/review", svc.handleReview)
}

func (s *Service) handleSubmit(c *gin.Context) {
	var params SubmitParams
	if err := c.ShouldBindJSON(&params); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	request, err := s.Submit(c.Request.Context(), middleware.UserID(c), params)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, request)
}

func (s *Service) handleListMine(c *gin.Context) {
	requests, err := s.ListByUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": requests})
}

func (s *Service) handleListPending(c *gin.Context) {
	requests, err := s.ListPending(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": requests})
}

type reviewRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}

func (s *Service) handleReview(c *gin.Context) {
	requestID, err := snowflake.ParseString(c.Param("request_id"))
	if err != nil {
		_ = c.Error(errutil.BadRequest("invalid request id", err))
		return
	}

	var body reviewRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	request, err := s.Review(c.Request.Context(), requestID, body.Approve, body.Note)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, request)
}
