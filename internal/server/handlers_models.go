package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jamesbond008/mungers-mind/internal/lattice"
)

func (a *App) listModels(c *gin.Context) {
	models := lattice.Filter(c.Query("query"), c.Query("category"))
	c.JSON(http.StatusOK, gin.H{
		"models":     models,
		"categories": lattice.Categories(),
		"count":      len(models),
	})
}
