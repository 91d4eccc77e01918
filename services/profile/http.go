package profile

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"affiliatehub/pkg/errutil"
	"affiliatehub/pkg/middleware"
)

func registerRoutes(engine *gin.Engine, svc *Service) {
	v1 := engine.Group("/v1", middleware.RequireUser())
	v1.GET("/profile", svc.handleGet)
	v1.PATCH("/profile", svc.handleUpdate)
}

func (s *Service) handleGet(c *gin.Context) {
	p, err := s.GetProfile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, p)
}

func (s *Service) handleUpdate(c *gin.Context) {
	var params UpdateProfileParams
	if err := c.ShouldBindJSON(&params); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	p, err := s.UpdateProfile(c.Request.Context(), middleware.UserID(c), params)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, p)
}
