package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (a *App) listTranscript(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	entries := a.transcripts.List(user.ID)
	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

func (a *App) getTranscriptEntry(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	entry, found := a.transcripts.Get(user.ID, c.Param("entry_id"))
	if !found {
		writeError(c, http.StatusNotFound, "Transcript entry not found")
		return
	}
	c.JSON(http.StatusOK, entry)
}
