package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/smallbiznis/wadesk/internal/activity/domain"
	"github.com/smallbiznis/wadesk/internal/clock"
	obsmetrics "github.com/smallbiznis/wadesk/internal/observability/metrics"
	"github.com/smallbiznis/wadesk/internal/plan"
	usagedomain "github.com/smallbiznis/wadesk/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const bytesPerMB = 1024 * 1024

type ServiceParam struct {
	fx.In

	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Calendar usagedomain.Calendar
	Activity activitydomain.Repository
	Usage    usagedomain.Repository
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log *zap.Logger

	genID     *snowflake.Node
	clock     clock.Clock
	calendar  usagedomain.Calendar
	activity  activitydomain.Repository
	usagerepo usagedomain.Repository
	metrics   *obsmetrics.Metrics
}

func NewService(p ServiceParam) usagedomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		log: p.Log.Named("usage.service"),

		genID:     p.GenID,
		clock:     clk,
		calendar:  p.Calendar,
		activity:  p.Activity,
		usagerepo: p.Usage,
		metrics:   p.Metrics,
	}
}

// RecordDailyUsage recomputes the tenant's counts for the day containing date
// and stores them, replacing any earlier aggregate of that day. Calling it
// again with unchanged activity leaves the stored row unchanged.
func (s *Service) RecordDailyUsage(ctx context.Context, tenantID snowflake.ID, date time.Time) (*usagedomain.UsageRecord, error) {
	if tenantID == 0 {
		return nil, usagedomain.ErrInvalidTenant
	}
	if date.IsZero() {
		return nil, usagedomain.ErrInvalidDate
	}

	started := time.Now()
	record, err := s.recordDailyUsage(ctx, tenantID, date)
	if err != nil {
		s.metrics.RecordAggregation(ctx, "error", time.Since(started))
		return nil, err
	}
	s.metrics.RecordAggregation(ctx, "ok", time.Since(started))
	return record, nil
}

func (s *Service) recordDailyUsage(ctx context.Context, tenantID snowflake.ID, date time.Time) (*usagedomain.UsageRecord, error) {
	dayStart, dayEnd := s.calendar.DayWindow(date)
	log := s.log.With(
		zap.String("tenant_id", tenantID.String()),
		zap.Time("date", dayStart),
	)

	window := activitydomain.MessageFilter{TenantID: tenantID, From: dayStart, To: dayEnd}

	outbound := window
	outbound.Direction = activitydomain.DirectionOutbound
	sent, err := s.activity.CountMessages(ctx, outbound)
	if err != nil {
		log.Error("failed to count outbound messages", zap.Error(err))
		return nil, fmt.Errorf("count outbound messages: %w", err)
	}

	inbound := window
	inbound.Direction = activitydomain.DirectionInbound
	received, err := s.activity.CountMessages(ctx, inbound)
	if err != nil {
		log.Error("failed to count inbound messages", zap.Error(err))
		return nil, fmt.Errorf("count inbound messages: %w", err)
	}

	bot := window
	bot.BotOnly = true
	aiRequests, err := s.activity.CountMessages(ctx, bot)
	if err != nil {
		log.Error("failed to count bot responses", zap.Error(err))
		return nil, fmt.Errorf("count bot responses: %w", err)
	}

	kbQueries, err := s.activity.CountProcessedDocuments(ctx, tenantID, dayStart, dayEnd)
	if err != nil {
		log.Error("failed to count processed documents", zap.Error(err))
		return nil, fmt.Errorf("count processed documents: %w", err)
	}

	// Connection state is not historical: re-aggregating a past day records
	// the connections that are connected now.
	connections, err := s.activity.CountConnectedConnections(ctx, tenantID)
	if err != nil {
		log.Error("failed to count active connections", zap.Error(err))
		return nil, fmt.Errorf("count active connections: %w", err)
	}

	now := s.clock.Now().UTC()
	stored, err := s.usagerepo.Upsert(ctx, &usagedomain.UsageRecord{
		ID:                   s.genID.Generate(),
		TenantID:             tenantID,
		Date:                 dayStart,
		MessagesSent:         sent,
		MessagesReceived:     received,
		AIRequests:           aiRequests,
		KnowledgeBaseQueries: kbQueries,
		ActiveConnections:    connections,
		CreatedAt:            now,
		UpdatedAt:            now,
	})
	if err != nil {
		log.Error("failed to upsert usage record", zap.Error(err))
		return nil, fmt.Errorf("upsert usage record: %w", err)
	}

	log.Debug("daily usage recorded",
		zap.Int64("messages_sent", stored.MessagesSent),
		zap.Int64("messages_received", stored.MessagesReceived),
		zap.Int64("ai_requests", stored.AIRequests),
	)
	return stored, nil
}

// GetUsageStatistics lists stored daily records oldest first. Both bounds are
// optional and inclusive. An unknown tenant yields an empty slice.
func (s *Service) GetUsageStatistics(ctx context.Context, tenantID snowflake.ID, startDate, endDate *time.Time) ([]usagedomain.UsageRecord, error) {
	records, err := s.usagerepo.ListRange(ctx, tenantID, startDate, endDate)
	if err != nil {
		s.log.Error("failed to list usage records",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("list usage records: %w", err)
	}
	if records == nil {
		records = []usagedomain.UsageRecord{}
	}
	return records, nil
}

// GetCurrentUsage counts live activity for today and month to date. It never
// reads stored daily records.
func (s *Service) GetCurrentUsage(ctx context.Context, tenantID snowflake.ID) (usagedomain.CurrentUsageSnapshot, error) {
	if tenantID == 0 {
		return usagedomain.CurrentUsageSnapshot{}, usagedomain.ErrInvalidTenant
	}
	log := s.log.With(zap.String("tenant_id", tenantID.String()))

	tenant, err := s.activity.FindTenant(ctx, tenantID)
	if err != nil {
		log.Error("failed to load tenant", zap.Error(err))
		return usagedomain.CurrentUsageSnapshot{}, fmt.Errorf("load tenant: %w", err)
	}
	if tenant == nil {
		log.Warn("tenant not found")
		return usagedomain.CurrentUsageSnapshot{}, usagedomain.ErrTenantNotFound
	}

	limits, err := plan.LimitsFor(tenant.Plan)
	if err != nil {
		log.Error("tenant has unknown plan", zap.String("plan", tenant.Plan), zap.Error(err))
		return usagedomain.CurrentUsageSnapshot{}, err
	}

	now := s.clock.Now()
	startOfToday := s.calendar.StartOfDay(now)
	startOfMonth := s.calendar.StartOfMonth(now)

	snapshot := usagedomain.CurrentUsageSnapshot{
		TenantID:   tenantID,
		Plan:       tenant.Plan,
		PlanLimits: limits,
		AsOf:       now.UTC(),
	}

	liveCounts := []struct {
		name   string
		filter activitydomain.MessageFilter
		dst    *int64
	}{
		{"messages_today", activitydomain.MessageFilter{TenantID: tenantID, From: startOfToday}, &snapshot.MessagesToday},
		{"messages_this_month", activitydomain.MessageFilter{TenantID: tenantID, From: startOfMonth}, &snapshot.MessagesThisMonth},
		{"ai_requests_today", activitydomain.MessageFilter{TenantID: tenantID, From: startOfToday, BotOnly: true}, &snapshot.AIRequestsToday},
		{"ai_requests_this_month", activitydomain.MessageFilter{TenantID: tenantID, From: startOfMonth, BotOnly: true}, &snapshot.AIRequestsThisMonth},
	}
	for _, c := range liveCounts {
		count, err := s.activity.CountMessages(ctx, c.filter)
		if err != nil {
			log.Error("failed to count live messages", zap.String("counter", c.name), zap.Error(err))
			return usagedomain.CurrentUsageSnapshot{}, fmt.Errorf("count %s: %w", c.name, err)
		}
		*c.dst = count
	}

	totalBytes, err := s.activity.SumDocumentBytes(ctx, tenantID)
	if err != nil {
		log.Error("failed to sum document sizes", zap.Error(err))
		return usagedomain.CurrentUsageSnapshot{}, fmt.Errorf("sum document sizes: %w", err)
	}
	snapshot.StorageUsedMB = storageMB(totalBytes)

	s.metrics.RecordCurrentUsageQuery(ctx, tenant.Plan)
	return snapshot, nil
}

// GenerateUsageReport summarizes stored records dated within
// [startDate, endDate]. An empty or inverted range yields a zero report with
// no peak day.
func (s *Service) GenerateUsageReport(ctx context.Context, tenantID snowflake.ID, startDate, endDate time.Time) (usagedomain.UsageReport, error) {
	if startDate.IsZero() || endDate.IsZero() {
		return usagedomain.UsageReport{}, usagedomain.ErrInvalidDate
	}
	if endDate.Before(startDate) {
		return buildReport(tenantID, startDate, endDate, nil), nil
	}

	records, err := s.usagerepo.ListRange(ctx, tenantID, &startDate, &endDate)
	if err != nil {
		s.log.Error("failed to load usage records for report",
			zap.String("tenant_id", tenantID.String()),
			zap.Time("start_date", startDate),
			zap.Time("end_date", endDate),
			zap.Error(err),
		)
		return usagedomain.UsageReport{}, fmt.Errorf("list usage records: %w", err)
	}

	s.metrics.RecordReport(ctx)
	return buildReport(tenantID, startDate, endDate, records), nil
}

func buildReport(tenantID snowflake.ID, startDate, endDate time.Time, records []usagedomain.UsageRecord) usagedomain.UsageReport {
	report := usagedomain.UsageReport{
		TenantID:       tenantID,
		StartDate:      startDate.UTC(),
		EndDate:        endDate.UTC(),
		DailyBreakdown: make([]usagedomain.DailyUsage, 0, len(records)),
	}

	summary := &report.Summary
	for _, record := range records {
		dayTotal := record.TotalMessages()
		summary.TotalMessages += dayTotal
		summary.TotalAIRequests += record.AIRequests

		// Strictly greater keeps the earliest day on ties.
		if summary.PeakDay == nil || dayTotal > summary.PeakDayMessages {
			day := record.Date.UTC()
			summary.PeakDay = &day
			summary.PeakDayMessages = dayTotal
		}

		report.DailyBreakdown = append(report.DailyBreakdown, usagedomain.DailyUsage{
			Date:             record.Date.UTC(),
			MessagesSent:     record.MessagesSent,
			MessagesReceived: record.MessagesReceived,
			AIRequests:       record.AIRequests,
		})
	}

	if len(records) > 0 {
		summary.AvgDailyMessages = int64(math.Round(float64(summary.TotalMessages) / float64(len(records))))
	}
	return report
}

// CheckQuota compares month-to-date usage with the tenant's plan ceilings.
func (s *Service) CheckQuota(ctx context.Context, tenantID snowflake.ID) (usagedomain.QuotaStatus, error) {
	current, err := s.GetCurrentUsage(ctx, tenantID)
	if err != nil {
		return usagedomain.QuotaStatus{}, err
	}

	status := usagedomain.QuotaStatus{
		TenantID: tenantID,
		Plan:     current.Plan,
		AsOf:     current.AsOf,
		Quotas: []usagedomain.QuotaUsage{
			quotaUsage(usagedomain.QuotaMessages, current.MessagesThisMonth, current.PlanLimits.MaxMessagesPerMonth),
			quotaUsage(usagedomain.QuotaAIRequests, current.AIRequestsThisMonth, current.PlanLimits.MaxAIRequestsPerMonth),
			quotaUsage(usagedomain.QuotaStorageMB, current.StorageUsedMB, current.PlanLimits.MaxStorageMB),
		},
	}
	for _, q := range status.Quotas {
		if q.Exceeded {
			status.Exceeded = true
			s.metrics.RecordQuotaExceeded(ctx, current.Plan, q.Quota)
		}
	}
	if status.Exceeded {
		s.log.Info("tenant quota exceeded",
			zap.String("tenant_id", tenantID.String()),
			zap.String("plan", current.Plan),
		)
	}
	return status, nil
}

func quotaUsage(name string, used, limit int64) usagedomain.QuotaUsage {
	q := usagedomain.QuotaUsage{
		Quota:     name,
		Used:      used,
		Limit:     limit,
		Remaining: limit - used,
		Exceeded:  used >= limit,
	}
	if q.Remaining < 0 {
		q.Remaining = 0
	}
	if limit > 0 {
		q.PercentUsed = math.Round(float64(used)*10000/float64(limit)) / 100
	}
	return q
}

// storageMB rounds up so any stored byte counts as a whole megabyte.
func storageMB(totalBytes int64) int64 {
	if totalBytes <= 0 {
		return 0
	}
	return (totalBytes + bytesPerMB - 1) / bytesPerMB
}
