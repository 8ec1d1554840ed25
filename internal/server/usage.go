package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type recordDailyUsageRequest struct {
	Date string `json:"date"`
}

func (s *Server) GetUsageStatistics(c *gin.Context) {
	startDate, err := parseOptionalDate(s.calendar, c.Query("start_date"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	endDate, err := parseOptionalDate(s.calendar, c.Query("end_date"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	records, err := s.usagesvc.GetUsageStatistics(c.Request.Context(), tenantIDFromContext(c), startDate, endDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": records})
}

func (s *Server) GetCurrentUsage(c *gin.Context) {
	snapshot, err := s.usagesvc.GetCurrentUsage(c.Request.Context(), tenantIDFromContext(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) GenerateUsageReport(c *gin.Context) {
	startRaw := strings.TrimSpace(c.Query("start_date"))
	endRaw := strings.TrimSpace(c.Query("end_date"))
	if startRaw == "" {
		AbortWithError(c, newValidationError("start_date", "required", "start_date is required"))
		return
	}
	if endRaw == "" {
		AbortWithError(c, newValidationError("end_date", "required", "end_date is required"))
		return
	}

	startDate, err := s.calendar.ParseDate(startRaw)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	endDate, err := s.calendar.ParseDate(endRaw)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	report, err := s.usagesvc.GenerateUsageReport(c.Request.Context(), tenantIDFromContext(c), startDate, endDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (s *Server) CheckQuota(c *gin.Context) {
	status, err := s.usagesvc.CheckQuota(c.Request.Context(), tenantIDFromContext(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// RecordDailyUsage aggregates one day on demand. An empty body or date
// aggregates the current day.
func (s *Server) RecordDailyUsage(c *gin.Context) {
	var req recordDailyUsageRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	date := s.clock.Now()
	if strings.TrimSpace(req.Date) != "" {
		parsed, err := s.calendar.ParseDate(req.Date)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		date = parsed
	}

	record, err := s.usagesvc.RecordDailyUsage(c.Request.Context(), tenantIDFromContext(c), date)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}
