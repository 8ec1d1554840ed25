package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/smallbiznis/wadesk/internal/activity/domain"
	"github.com/smallbiznis/wadesk/internal/clock"
	usagedomain "github.com/smallbiznis/wadesk/internal/usage/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type activityMock struct {
	mock.Mock
}

func (m *activityMock) FindTenant(ctx context.Context, tenantID snowflake.ID) (*activitydomain.Tenant, error) {
	args := m.Called(ctx, tenantID)
	tenant, _ := args.Get(0).(*activitydomain.Tenant)
	return tenant, args.Error(1)
}

func (m *activityMock) ListTenantIDs(ctx context.Context, afterID snowflake.ID, limit int) ([]snowflake.ID, error) {
	args := m.Called(ctx, afterID, limit)
	ids, _ := args.Get(0).([]snowflake.ID)
	return ids, args.Error(1)
}

func (m *activityMock) CountMessages(ctx context.Context, filter activitydomain.MessageFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *activityMock) CountProcessedDocuments(ctx context.Context, tenantID snowflake.ID, from, to time.Time) (int64, error) {
	args := m.Called(ctx, tenantID, from, to)
	return args.Get(0).(int64), args.Error(1)
}

func (m *activityMock) SumDocumentBytes(ctx context.Context, tenantID snowflake.ID) (int64, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *activityMock) CountConnectedConnections(ctx context.Context, tenantID snowflake.ID) (int64, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(int64), args.Error(1)
}

type usageRepoMock struct {
	mock.Mock
}

func (m *usageRepoMock) Upsert(ctx context.Context, record *usagedomain.UsageRecord) (*usagedomain.UsageRecord, error) {
	args := m.Called(ctx, record)
	stored, _ := args.Get(0).(*usagedomain.UsageRecord)
	return stored, args.Error(1)
}

func (m *usageRepoMock) ListRange(ctx context.Context, tenantID snowflake.ID, start, end *time.Time) ([]usagedomain.UsageRecord, error) {
	args := m.Called(ctx, tenantID, start, end)
	records, _ := args.Get(0).([]usagedomain.UsageRecord)
	return records, args.Error(1)
}

func newMockedService(t *testing.T, activity *activityMock, usage *usageRepoMock) (usagedomain.Service, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.ErrorLevel)
	svc := NewService(ServiceParam{
		Log:      zap.New(core),
		GenID:    mustNode(t),
		Clock:    clock.NewFakeClock(time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)),
		Calendar: usagedomain.NewCalendar(time.UTC),
		Activity: activity,
		Usage:    usage,
	})
	return svc, logs
}

func TestRecordDailyUsagePropagatesStorageFailure(t *testing.T) {
	boom := errors.New("connection reset")
	activity := &activityMock{}
	activity.On("CountMessages", mock.Anything, mock.Anything).Return(int64(0), boom).Once()
	usage := &usageRepoMock{}

	svc, logs := newMockedService(t, activity, usage)
	_, err := svc.RecordDailyUsage(context.Background(), 42, time.Now())

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, logs.Len())
	usage.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	activity.AssertExpectations(t)
}

func TestRecordDailyUsagePropagatesUpsertFailure(t *testing.T) {
	boom := errors.New("unique violation")
	activity := &activityMock{}
	activity.On("CountMessages", mock.Anything, mock.Anything).Return(int64(1), nil)
	activity.On("CountProcessedDocuments", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(int64(0), nil)
	activity.On("CountConnectedConnections", mock.Anything, mock.Anything).Return(int64(0), nil)
	usage := &usageRepoMock{}
	usage.On("Upsert", mock.Anything, mock.MatchedBy(func(r *usagedomain.UsageRecord) bool {
		return r.Date.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)) && r.MessagesSent == 1
	})).Return(nil, boom)

	svc, logs := newMockedService(t, activity, usage)
	_, err := svc.RecordDailyUsage(context.Background(), 42, time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, logs.FilterMessage("failed to upsert usage record").Len())
	usage.AssertExpectations(t)
}

func TestGetUsageStatisticsPropagatesFailure(t *testing.T) {
	boom := errors.New("timeout")
	usage := &usageRepoMock{}
	usage.On("ListRange", mock.Anything, snowflake.ID(7), mock.Anything, mock.Anything).Return(nil, boom)

	svc, logs := newMockedService(t, &activityMock{}, usage)
	records, err := svc.GetUsageStatistics(context.Background(), 7, nil, nil)

	assert.ErrorIs(t, err, boom)
	assert.Nil(t, records)
	assert.Equal(t, 1, logs.Len())
}

func TestGetCurrentUsagePropagatesTenantLookupFailure(t *testing.T) {
	boom := errors.New("db down")
	activity := &activityMock{}
	activity.On("FindTenant", mock.Anything, snowflake.ID(9)).Return(nil, boom)

	svc, _ := newMockedService(t, activity, &usageRepoMock{})
	_, err := svc.GetCurrentUsage(context.Background(), 9)

	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, usagedomain.ErrTenantNotFound))
}
