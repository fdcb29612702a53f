package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/livepen/internal/domain/session"
)

// QueryResult is one node matched in the headless DOM
type QueryResult struct {
	Text string `json:"text"`
	HTML string `json:"html"`
}

// Query evaluates an XPath expression against the headless DOM
func (h *Handlers) Query(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	expr := c.Query("xpath")
	if expr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "xpath parameter required"})
		return
	}

	snapshot, err := s.Snapshot()
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, session.ErrNoHeadless) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	doc, err := htmlquery.Parse(strings.NewReader(snapshot))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "parse failed: " + err.Error()})
		return
	}

	nodes, err := htmlquery.QueryAll(doc, expr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "xpath query failed: " + err.Error()})
		return
	}

	results := make([]QueryResult, 0, len(nodes))
	for _, node := range nodes {
		results = append(results, QueryResult{
			Text: strings.TrimSpace(htmlquery.InnerText(node)),
			HTML: h.sanitizer.Sanitize(htmlquery.OutputHTML(node, true)),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"elements": results,
		"count":    len(results),
	})
}
