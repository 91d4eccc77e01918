package resource

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	"affiliatehub/pkg/errutil"
	"affiliatehub/pkg/middleware"
)

func registerRoutes(engine *gin.Engine, svc *Service) {
	v1 := engine.Group("/v1")
	v1.GET("/help", svc.handleListArticles)
	v1.GET("/help/:slug", svc.handleGetArticle)

	authed := engine.Group("/v1", middleware.RequireUser())
	authed.GET("/resources", svc.handleListResources)
	authed.GET("/resources/:resource_id/download", svc.handleDownloadURL)

	admin := engine.Group("/v1/admin", middleware.RequireUser())
	admin.POST("/resources", svc.handleRegisterResource)
}

func (s *Service) handleListResources(c *gin.Context) {
	resources, err := s.ListResources(c.Request.Context(), c.Query("category"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resources})
}

func (s *Service) handleDownloadURL(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("resource_id"))
	if err != nil {
		_ = c.Error(errutil.BadRequest("invalid resource id", err))
		return
	}

	downloadURL, err := s.ResourceDownloadURL(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": downloadURL})
}

func (s *Service) handleRegisterResource(c *gin.Context) {
	var params RegisterResourceParams
	if err := c.ShouldBindJSON(&params); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	res, err := s.RegisterResource(c.Request.Context(), params)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

func (s *Service) handleListArticles(c *gin.Context) {
	articles, err := s.ListArticles(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": articles})
}

func (s *Service) handleGetArticle(c *gin.Context) {
	article, err := s.GetArticle(c.Request.Context(), c.Param("slug"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, article)
}
