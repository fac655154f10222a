package server

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// exportTranscriptCSV streams the caller's full transcript as a CSV
// download. Cited models are flattened to a semicolon list so the file
// opens cleanly in a spreadsheet.
func (a *App) exportTranscriptCSV(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	var out bytes.Buffer
	writer := csv.NewWriter(&out)
	if err := writer.Write([]string{
		"entry_id",
		"role",
		"text",
		"models",
		"created_at_utc",
	}); err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to build CSV header")
		return
	}

	for _, entry := range a.transcripts.List(user.ID) {
		var modelNames []string
		if entry.Payload != nil {
			for _, model := range entry.Payload.Models {
				modelNames = append(modelNames, model.Label)
			}
		}
		if err := writer.Write([]string{
			entry.ID,
			string(entry.Role),
			entry.Text,
			strings.Join(modelNames, "; "),
			entry.CreatedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			writeError(c, http.StatusInternalServerError, "Failed to write CSV rows")
			return
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to flush CSV")
		return
	}

	filename := fmt.Sprintf(
		"mungers_mind_transcript_%s.csv",
		time.Now().UTC().Format("20060102_150405"),
	)
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.String(http.StatusOK, out.String())
}
