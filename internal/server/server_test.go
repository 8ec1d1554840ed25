package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	activitydomain "github.com/smallbiznis/wadesk/internal/activity/domain"
	activityrepo "github.com/smallbiznis/wadesk/internal/activity/repository"
	"github.com/smallbiznis/wadesk/internal/clock"
	"github.com/smallbiznis/wadesk/internal/config"
	"github.com/smallbiznis/wadesk/internal/observability"
	"github.com/smallbiznis/wadesk/internal/ratelimit"
	"github.com/smallbiznis/wadesk/internal/testutil"
	usagedomain "github.com/smallbiznis/wadesk/internal/usage/domain"
	usagerepo "github.com/smallbiznis/wadesk/internal/usage/repository"
	usageservice "github.com/smallbiznis/wadesk/internal/usage/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testServer struct {
	engine *gin.Engine
	db     *gorm.DB
	node   *snowflake.Node
	now    time.Time
}

func newTestServer(t *testing.T, limiter *ratelimit.AggregationLimiter) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	models := append(activitydomain.Models(), &usagedomain.UsageRecord{})
	db := testutil.OpenSQLite(t, models...)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	now := time.Date(2024, 3, 5, 14, 32, 0, 0, time.UTC)
	clk := clock.NewFakeClock(now)
	cal := usagedomain.NewCalendar(time.UTC)

	svc := usageservice.NewService(usageservice.ServiceParam{
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Calendar: cal,
		Activity: activityrepo.New(db),
		Usage:    usagerepo.New(db),
	})

	engine := NewEngine(EngineParams{
		ObsConfig: observability.Config{Environment: "test"},
		Log:       zap.NewNop(),
	})
	NewServer(ServerParams{
		Gin:      engine,
		Cfg:      config.Config{Environment: "test"},
		Log:      zap.NewNop(),
		Clock:    clk,
		Calendar: cal,
		Usagesvc: svc,
		Limiter:  limiter,
	})

	return testServer{engine: engine, db: db, node: node, now: now}
}

func (ts testServer) seedTenant(t *testing.T, tier string) snowflake.ID {
	t.Helper()
	id := ts.node.Generate()
	require.NoError(t, ts.db.Create(&activitydomain.Tenant{ID: id, Name: "acme", Plan: tier}).Error)
	return id
}

func (ts testServer) seedMessage(t *testing.T, tenantID snowflake.ID, direction string, bot bool, at time.Time) {
	t.Helper()
	require.NoError(t, ts.db.Create(&activitydomain.Message{
		ID:            ts.node.Generate(),
		TenantID:      tenantID,
		Direction:     direction,
		IsBotResponse: bot,
		Content:       "hi",
		CreatedAt:     at.UTC(),
	}).Error)
}

func (ts testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestListPlans(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/plans", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []struct {
			Tier   string `json:"tier"`
			Limits struct {
				MaxMessagesPerMonth int64 `json:"max_messages_per_month"`
			} `json:"limits"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 4)
	assert.Equal(t, "free", resp.Data[0].Tier)
	assert.Equal(t, int64(100000), resp.Data[3].Limits.MaxMessagesPerMonth)
}

func TestInvalidTenantID(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/tenants/abc/usage/current", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_tenant", payload.Errors[0].Code)
	assert.Equal(t, "tenant", payload.Errors[0].Field)
}

func TestCurrentUsageTenantNotFound(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/tenants/"+ts.node.Generate().String()+"/usage/current", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Type)
}

func TestCurrentUsage(t *testing.T) {
	ts := newTestServer(t, nil)
	tenantID := ts.seedTenant(t, "premium")
	ts.seedMessage(t, tenantID, activitydomain.DirectionOutbound, true, ts.now.Add(-time.Hour))
	ts.seedMessage(t, tenantID, activitydomain.DirectionInbound, false, ts.now.Add(-48*time.Hour))

	rec := ts.do(t, http.MethodGet, "/api/v1/tenants/"+tenantID.String()+"/usage/current", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot usagedomain.CurrentUsageSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, "premium", snapshot.Plan)
	assert.Equal(t, int64(1), snapshot.MessagesToday)
	assert.Equal(t, int64(2), snapshot.MessagesThisMonth)
	assert.Equal(t, int64(1), snapshot.AIRequestsToday)
	assert.Equal(t, int64(10000), snapshot.PlanLimits.MaxMessagesPerMonth)
}

func TestCurrentUsageUnknownPlan(t *testing.T) {
	ts := newTestServer(t, nil)
	tenantID := ts.seedTenant(t, "platinum")

	rec := ts.do(t, http.MethodGet, "/api/v1/tenants/"+tenantID.String()+"/usage/current", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "unknown_plan", decodeError(t, rec).Type)
}

func TestRecordDailyUsageThenList(t *testing.T) {
	ts := newTestServer(t, nil)
	tenantID := ts.seedTenant(t, "basic")
	ts.seedMessage(t, tenantID, activitydomain.DirectionOutbound, false, ts.now.Add(-time.Hour))
	ts.seedMessage(t, tenantID, activitydomain.DirectionOutbound, false, ts.now.Add(-2*time.Hour))
	ts.seedMessage(t, tenantID, activitydomain.DirectionInbound, false, ts.now.Add(-3*time.Hour))
	base := "/api/v1/tenants/" + tenantID.String() + "/usage"

	rec := ts.do(t, http.MethodPost, base+"/daily", `{"date":"2024-03-05"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var record usagedomain.UsageRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, int64(2), record.MessagesSent)
	assert.Equal(t, int64(1), record.MessagesReceived)
	assert.True(t, record.Date.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)))

	// An empty body aggregates the same day again without a second row.
	rec = ts.do(t, http.MethodPost, base+"/daily", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, base+"?start_date=2024-03-05&end_date=2024-03-05", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []usagedomain.UsageRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, int64(2), list.Data[0].MessagesSent)
}

func TestRecordDailyUsageInvalidBody(t *testing.T) {
	ts := newTestServer(t, nil)
	tenantID := ts.seedTenant(t, "free")

	rec := ts.do(t, http.MethodPost, "/api/v1/tenants/"+tenantID.String()+"/usage/daily", `{"date":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec).Errors[0].Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/tenants/"+tenantID.String()+"/usage/daily", `{"date":"yesterday"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_date", decodeError(t, rec).Errors[0].Code)
}

func TestUsageStatisticsEmpty(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/tenants/"+ts.node.Generate().String()+"/usage", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())
}

func TestUsageReport(t *testing.T) {
	ts := newTestServer(t, nil)
	tenantID := ts.seedTenant(t, "basic")
	days := []struct {
		day            int
		sent, recv, ai int64
	}{
		{1, 20, 15, 10},
		{2, 30, 25, 15},
		{3, 10, 8, 5},
	}
	for _, d := range days {
		date := time.Date(2024, 3, d.day, 0, 0, 0, 0, time.UTC)
		require.NoError(t, ts.db.Create(&usagedomain.UsageRecord{
			ID:               ts.node.Generate(),
			TenantID:         tenantID,
			Date:             date,
			MessagesSent:     d.sent,
			MessagesReceived: d.recv,
			AIRequests:       d.ai,
		}).Error)
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/tenants/"+tenantID.String()+"/usage/report?start_date=2024-03-01&end_date=2024-03-03", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report usagedomain.UsageReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, int64(108), report.Summary.TotalMessages)
	assert.Equal(t, int64(30), report.Summary.TotalAIRequests)
	assert.Equal(t, int64(36), report.Summary.AvgDailyMessages)
	assert.Equal(t, int64(55), report.Summary.PeakDayMessages)
	require.NotNil(t, report.Summary.PeakDay)
	assert.True(t, report.Summary.PeakDay.Equal(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)))
	assert.Len(t, report.DailyBreakdown, 3)
}

func TestUsageReportValidation(t *testing.T) {
	ts := newTestServer(t, nil)
	base := "/api/v1/tenants/" + ts.node.Generate().String() + "/usage/report"

	rec := ts.do(t, http.MethodGet, base+"?start_date=2024-03-01", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "end_date", decodeError(t, rec).Errors[0].Field)

	rec = ts.do(t, http.MethodGet, base+"?start_date=2024-03-01&end_date=2024-3-05", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_date", decodeError(t, rec).Errors[0].Code)
}

func TestUsageReportInvertedRangeIsEmpty(t *testing.T) {
	ts := newTestServer(t, nil)
	tenantID := ts.seedTenant(t, "free")
	base := "/api/v1/tenants/" + tenantID.String() + "/usage/report"

	rec := ts.do(t, http.MethodGet, base+"?start_date=2024-03-05&end_date=2024-03-01", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report usagedomain.UsageReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Zero(t, report.Summary.TotalMessages)
	assert.Nil(t, report.Summary.PeakDay)
	assert.NotNil(t, report.DailyBreakdown)
	assert.Empty(t, report.DailyBreakdown)
	assert.Contains(t, rec.Body.String(), `"daily_breakdown":[]`)
}

func TestCheckQuota(t *testing.T) {
	ts := newTestServer(t, nil)
	tenantID := ts.seedTenant(t, "free")
	for i := 0; i < 3; i++ {
		ts.seedMessage(t, tenantID, activitydomain.DirectionOutbound, true, ts.now.Add(-time.Duration(i+1)*time.Minute))
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/tenants/"+tenantID.String()+"/usage/quota", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status usagedomain.QuotaStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Exceeded)
	require.Len(t, status.Quotas, 3)
	assert.Equal(t, usagedomain.QuotaMessages, status.Quotas[0].Quota)
	assert.Equal(t, int64(3), status.Quotas[0].Used)
	assert.Equal(t, int64(97), status.Quotas[0].Remaining)
}

func TestAggregateRateLimit(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter, err := ratelimit.NewAggregationLimiter(config.Config{AggregateRate: 0.01, AggregateBurst: 1}, client)
	require.NoError(t, err)

	ts := newTestServer(t, limiter)
	tenantID := ts.seedTenant(t, "free")
	path := "/api/v1/tenants/" + tenantID.String() + "/usage/daily"

	rec := ts.do(t, http.MethodPost, path, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))

	rec = ts.do(t, http.MethodPost, path, "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decodeError(t, rec).Type)
	assert.Equal(t, "100", rec.Header().Get("Retry-After"))
}

func TestNoRoute(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/unknown", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Type)
}
