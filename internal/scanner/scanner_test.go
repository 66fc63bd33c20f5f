package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/motorly/fleet-alerts/internal/models"
)

type MockDocumentSource struct {
	mock.Mock
}

func (m *MockDocumentSource) ExpiringWithin(ctx context.Context, now time.Time, horizon time.Duration) ([]models.Document, error) {
	args := m.Called(ctx, now, horizon)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Document), args.Error(1)
}

func (m *MockDocumentSource) ExpiringWithinForUser(ctx context.Context, userID string, now time.Time, horizon time.Duration) ([]models.Document, error) {
	args := m.Called(ctx, userID, now, horizon)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Document), args.Error(1)
}

type MockSubscriptionSource struct {
	mock.Mock
}

func (m *MockSubscriptionSource) ByUser(ctx context.Context, userID string) ([]models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Subscription), args.Error(1)
}

func (m *MockSubscriptionSource) Delete(ctx context.Context, endpoint string) error {
	args := m.Called(ctx, endpoint)
	return args.Error(0)
}

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) SendBatch(ctx context.Context, subs []models.Subscription, payload models.NotificationPayload) models.BatchResult {
	args := m.Called(ctx, subs, payload)
	return args.Get(0).(models.BatchResult)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) MarkIfFirst(ctx context.Context, documentID string, now time.Time) (bool, error) {
	args := m.Called(ctx, documentID, now)
	return args.Bool(0), args.Error(1)
}

var testNow = time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

func docExpiringIn(id string, days int) models.Document {
	expiry := testNow.Add(time.Duration(days) * 24 * time.Hour)
	return models.Document{
		ID:         id,
		VehicleID:  "veh-1",
		UserID:     "user-1",
		Type:       models.DocumentInsurance,
		ExpiryDate: &expiry,
		IsActive:   true,
	}
}

func newTestScanner(docs *MockDocumentSource, subs *MockSubscriptionSource, disp *MockDispatcher, ledger SentLedger) *Scanner {
	return NewScanner(docs, subs, disp, ledger, 30, "https://app.example.com", zap.NewNop())
}

func TestDaysUntil(t *testing.T) {
	cases := []struct {
		name   string
		expiry time.Time
		want   int
	}{
		{"exactly 7 days", testNow.Add(7 * 24 * time.Hour), 7},
		{"6.5 days rounds up", testNow.Add(6*24*time.Hour + 12*time.Hour), 7},
		{"already expired", testNow.Add(-5 * 24 * time.Hour), -5},
		{"later today", testNow.Add(2 * time.Hour), 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DaysUntil(tc.expiry, testNow))
		})
	}
}

func TestScan_ThresholdEquality(t *testing.T) {
	subs := []models.Subscription{{Endpoint: "https://push/1", UserID: "user-1"}}

	cases := []struct {
		days       int
		shouldSend bool
	}{
		{30, true},
		{15, true},
		{7, true},
		{3, true},
		{1, true},
		{20, false}, // inside the horizon but not a threshold day
		{14, false},
		{2, false},
		{29, false},
		{-5, false}, // already expired; the store window normally excludes this
	}

	for _, tc := range cases {
		mockDocs := new(MockDocumentSource)
		mockSubs := new(MockSubscriptionSource)
		mockDisp := new(MockDispatcher)

		doc := docExpiringIn("doc-1", tc.days)
		mockDocs.On("ExpiringWithin", mock.Anything, testNow, mock.Anything).
			Return([]models.Document{doc}, nil)
		if tc.shouldSend {
			mockSubs.On("ByUser", mock.Anything, "user-1").Return(subs, nil)
			mockDisp.On("SendBatch", mock.Anything, subs, mock.Anything).
				Return(models.BatchResult{Successful: 1})
		}

		s := newTestScanner(mockDocs, mockSubs, mockDisp, nil)
		report, err := s.Scan(context.Background(), testNow)

		assert.NoError(t, err)
		assert.Equal(t, 1, report.DocumentsChecked, "days=%d", tc.days)
		if tc.shouldSend {
			assert.Equal(t, 1, report.NotificationsSent, "days=%d", tc.days)
		} else {
			assert.Equal(t, 0, report.NotificationsSent, "days=%d", tc.days)
			mockDisp.AssertNotCalled(t, "SendBatch", mock.Anything, mock.Anything, mock.Anything)
		}
		mockDisp.AssertExpectations(t)
	}
}

func TestScan_OwnerWithoutSubscriptionsIsSkipped(t *testing.T) {
	mockDocs := new(MockDocumentSource)
	mockSubs := new(MockSubscriptionSource)
	mockDisp := new(MockDispatcher)

	mockDocs.On("ExpiringWithin", mock.Anything, testNow, mock.Anything).
		Return([]models.Document{docExpiringIn("doc-1", 7)}, nil)
	mockSubs.On("ByUser", mock.Anything, "user-1").Return([]models.Subscription{}, nil)

	s := newTestScanner(mockDocs, mockSubs, mockDisp, nil)
	report, err := s.Scan(context.Background(), testNow)

	assert.NoError(t, err)
	assert.Equal(t, 1, report.DocumentsChecked)
	assert.Equal(t, 0, report.NotificationsSent)
	assert.Equal(t, 0, report.NotificationsFailed)
	mockDisp.AssertNotCalled(t, "SendBatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestScan_PartialFailurePrunesGoneEndpoint(t *testing.T) {
	// One delivery succeeds, the other reports the endpoint permanently
	// gone: the gone subscription is deleted, the healthy one survives.
	mockDocs := new(MockDocumentSource)
	mockSubs := new(MockSubscriptionSource)
	mockDisp := new(MockDispatcher)

	subs := []models.Subscription{
		{Endpoint: "https://push/healthy", UserID: "user-1"},
		{Endpoint: "https://push/gone", UserID: "user-1"},
	}
	mockDocs.On("ExpiringWithin", mock.Anything, testNow, mock.Anything).
		Return([]models.Document{docExpiringIn("doc-1", 7)}, nil)
	mockSubs.On("ByUser", mock.Anything, "user-1").Return(subs, nil)
	mockDisp.On("SendBatch", mock.Anything, subs, mock.Anything).
		Return(models.BatchResult{Successful: 1, Expired: []string{"https://push/gone"}})
	mockSubs.On("Delete", mock.Anything, "https://push/gone").Return(nil)

	s := newTestScanner(mockDocs, mockSubs, mockDisp, nil)
	report, err := s.Scan(context.Background(), testNow)

	assert.NoError(t, err)
	assert.Equal(t, 1, report.NotificationsSent)
	assert.Equal(t, 0, report.NotificationsFailed)
	mockSubs.AssertCalled(t, "Delete", mock.Anything, "https://push/gone")
	mockSubs.AssertNotCalled(t, "Delete", mock.Anything, "https://push/healthy")
}

func TestScan_PayloadUrgencyTiers(t *testing.T) {
	subs := []models.Subscription{{Endpoint: "https://push/1", UserID: "user-1"}}

	cases := []struct {
		days               int
		requireInteraction bool
		icon               string
	}{
		{1, true, models.AlertIcon},
		{3, true, models.AlertIcon},
		{7, false, models.DefaultIcon},
		{30, false, models.DefaultIcon},
	}

	for _, tc := range cases {
		mockDocs := new(MockDocumentSource)
		mockSubs := new(MockSubscriptionSource)
		mockDisp := new(MockDispatcher)

		mockDocs.On("ExpiringWithin", mock.Anything, testNow, mock.Anything).
			Return([]models.Document{docExpiringIn("doc-9", tc.days)}, nil)
		mockSubs.On("ByUser", mock.Anything, "user-1").Return(subs, nil)

		var got models.NotificationPayload
		mockDisp.On("SendBatch", mock.Anything, subs, mock.Anything).
			Run(func(args mock.Arguments) {
				got = args.Get(2).(models.NotificationPayload)
			}).
			Return(models.BatchResult{Successful: 1})

		s := newTestScanner(mockDocs, mockSubs, mockDisp, nil)
		_, err := s.Scan(context.Background(), testNow)
		assert.NoError(t, err)

		assert.Equal(t, tc.requireInteraction, got.RequireInteraction, "days=%d", tc.days)
		assert.Equal(t, tc.icon, got.Icon, "days=%d", tc.days)
		assert.Equal(t, "document-expiry-doc-9", got.Tag, "days=%d", tc.days)
		assert.Equal(t, "doc-9", got.Data.DocumentID)
		assert.NotEmpty(t, got.Title)
		assert.NotEmpty(t, got.Body)
	}
}

func TestScan_LedgerSkipsSameDayRerun(t *testing.T) {
	mockDocs := new(MockDocumentSource)
	mockSubs := new(MockSubscriptionSource)
	mockDisp := new(MockDispatcher)
	mockLedger := new(MockLedger)

	subs := []models.Subscription{{Endpoint: "https://push/1", UserID: "user-1"}}
	mockDocs.On("ExpiringWithin", mock.Anything, testNow, mock.Anything).
		Return([]models.Document{docExpiringIn("doc-1", 3)}, nil)
	mockSubs.On("ByUser", mock.Anything, "user-1").Return(subs, nil)
	mockLedger.On("MarkIfFirst", mock.Anything, "doc-1", testNow).Return(false, nil)

	s := newTestScanner(mockDocs, mockSubs, mockDisp, mockLedger)
	report, err := s.Scan(context.Background(), testNow)

	assert.NoError(t, err)
	assert.Equal(t, 0, report.NotificationsSent)
	mockDisp.AssertNotCalled(t, "SendBatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestScan_LedgerFailureDegradesToDelivery(t *testing.T) {
	mockDocs := new(MockDocumentSource)
	mockSubs := new(MockSubscriptionSource)
	mockDisp := new(MockDispatcher)
	mockLedger := new(MockLedger)

	subs := []models.Subscription{{Endpoint: "https://push/1", UserID: "user-1"}}
	mockDocs.On("ExpiringWithin", mock.Anything, testNow, mock.Anything).
		Return([]models.Document{docExpiringIn("doc-1", 3)}, nil)
	mockSubs.On("ByUser", mock.Anything, "user-1").Return(subs, nil)
	mockLedger.On("MarkIfFirst", mock.Anything, "doc-1", testNow).
		Return(false, errors.New("redis down"))
	mockDisp.On("SendBatch", mock.Anything, subs, mock.Anything).
		Return(models.BatchResult{Successful: 1})

	s := newTestScanner(mockDocs, mockSubs, mockDisp, mockLedger)
	report, err := s.Scan(context.Background(), testNow)

	assert.NoError(t, err)
	assert.Equal(t, 1, report.NotificationsSent)
}

func TestScan_DocumentStoreFailureAbortsPass(t *testing.T) {
	mockDocs := new(MockDocumentSource)
	mockSubs := new(MockSubscriptionSource)
	mockDisp := new(MockDispatcher)

	mockDocs.On("ExpiringWithin", mock.Anything, testNow, mock.Anything).
		Return(nil, errors.New("connection refused"))

	s := newTestScanner(mockDocs, mockSubs, mockDisp, nil)
	_, err := s.Scan(context.Background(), testNow)

	assert.Error(t, err)
	mockDisp.AssertNotCalled(t, "SendBatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestScanUser_ScopedQuery(t *testing.T) {
	mockDocs := new(MockDocumentSource)
	mockSubs := new(MockSubscriptionSource)
	mockDisp := new(MockDispatcher)

	subs := []models.Subscription{{Endpoint: "https://push/1", UserID: "user-1"}}
	mockDocs.On("ExpiringWithinForUser", mock.Anything, "user-1", testNow, mock.Anything).
		Return([]models.Document{docExpiringIn("doc-1", 15)}, nil)
	mockSubs.On("ByUser", mock.Anything, "user-1").Return(subs, nil)
	mockDisp.On("SendBatch", mock.Anything, subs, mock.Anything).
		Return(models.BatchResult{Successful: 1})

	s := newTestScanner(mockDocs, mockSubs, mockDisp, nil)
	report, err := s.ScanUser(context.Background(), "user-1", testNow)

	assert.NoError(t, err)
	assert.Equal(t, 1, report.DocumentsChecked)
	assert.Equal(t, 1, report.NotificationsSent)
	mockDocs.AssertNotCalled(t, "ExpiringWithin", mock.Anything, mock.Anything, mock.Anything)
}
