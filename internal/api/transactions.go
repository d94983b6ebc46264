package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// multiAddressRequest is the wire shape of POST /v1/transactions/multi-address
// (spec.md §4.4, §4.7).
type multiAddressRequest struct {
	Addresses []string   `json:"addresses"`
	Kinds     []string   `json:"kinds"`
	Tokens    []string   `json:"tokens"`
	MinValue  string     `json:"min_value"`
	Since     *time.Time `json:"since"`
	Until     *time.Time `json:"until"`
	Page      int        `json:"page"`
	Limit     int        `json:"limit"`
}

// postMultiAddress handles POST /v1/transactions/multi-address: the union-
// merge lookup across up to query.MaxAddresses addresses (spec.md §4.4).
func (s *Server) postMultiAddress(c *gin.Context) {
	var body multiAddressRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	req := toQueryRequest(body)

	started := time.Now()
	page, err := s.query.Lookup(c.Request.Context(), req)
	if err != nil {
		failFromError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"transactions":  page.Transactions,
			"address_stats": page.Stats,
			"query_time_ms": time.Since(started).Milliseconds(),
		},
		"pagination": gin.H{
			"page":        page.Page,
			"limit":       page.Limit,
			"total":       page.Total,
			"total_pages": page.TotalPages,
		},
	})
}
