package reward

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	"affiliatehub/pkg/errutil"
	"affiliatehub/pkg/middleware"
)

func registerRoutes(engine *gin.Engine, svc *Service) {
	v1 := engine.Group("/v1", middleware.RequireUser())
	v1.POST("/offers/:offer_id/claims", svc.handleClaim)
	v1.GET("/offers/:offer_id/completion", svc.handleGetCompletion)
	v1.POST("/submissions/progress", svc.handleProgress)
}

func (s *Service) handleClaim(c *gin.Context) {
	offerID, err := snowflake.ParseString(c.Param("offer_id"))
	if err != nil {
		_ = c.Error(errutil.BadRequest("invalid offer id", err))
		return
	}

	var sub Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	result, err := s.Claim(c.Request.Context(), middleware.UserID(c), offerID, sub)
	if err != nil {
		_ = c.Error(err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyClaimed {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

func (s *Service) handleGetCompletion(c *gin.Context) {
	offerID, err := snowflake.ParseString(c.Param("offer_id"))
	if err != nil {
		_ = c.Error(errutil.BadRequest("invalid offer id", err))
		return
	}

	found, err := s.GetCompletion(c.Request.Context(), middleware.UserID(c), offerID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, found)
}

// handleProgress scores a draft submission without claiming anything,
// so clients can show a live completion meter.
func (s *Service) handleProgress(c *gin.Context) {
	var sub Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"progress": Progress(sub)})
}
