package offer

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	"affiliatehub/pkg/errutil"
)

func registerRoutes(engine *gin.Engine, svc *Service) {
	v1 := engine.Group("/v1")
	v1.GET("/offers", svc.handleList)
	v1.GET("/offers/:offer_id", svc.handleGet)
}

func (s *Service) handleList(c *gin.Context) {
	offers, err := s.ListOffers(c.Request.Context(), Kind(c.Query("kind")))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": offers})
}

func (s *Service) handleGet(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("offer_id"))
	if err != nil {
		_ = c.Error(errutil.BadRequest("invalid offer id", err))
		return
	}

	found, err := s.GetOffer(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, found)
}
