// Package scanner decides which vehicle documents get an expiry notification
// today and drives delivery for each eligible one.
package scanner

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/motorly/fleet-alerts/internal/models"
)

// Thresholds is the closed set of day-distances that trigger a notification.
// Eligibility is strict equality against this set: a document 20 days out
// produces nothing. Escalating reminders without daily nagging.
var Thresholds = []int{30, 15, 7, 3, 1}

type DocumentSource interface {
	ExpiringWithin(ctx context.Context, now time.Time, horizon time.Duration) ([]models.Document, error)
	ExpiringWithinForUser(ctx context.Context, userID string, now time.Time, horizon time.Duration) ([]models.Document, error)
}

type SubscriptionSource interface {
	ByUser(ctx context.Context, userID string) ([]models.Subscription, error)
	Delete(ctx context.Context, endpoint string) error
}

type Dispatcher interface {
	SendBatch(ctx context.Context, subs []models.Subscription, payload models.NotificationPayload) models.BatchResult
}

// SentLedger guards same-day re-runs. Ledger failures degrade to
// threshold-equality-only dedup rather than blocking the scan.
type SentLedger interface {
	MarkIfFirst(ctx context.Context, documentID string, now time.Time) (bool, error)
}

type Scanner struct {
	documents     DocumentSource
	subscriptions SubscriptionSource
	dispatcher    Dispatcher
	ledger        SentLedger
	horizonDays   int
	baseURL       string
	log           *zap.Logger
}

func NewScanner(
	documents DocumentSource,
	subscriptions SubscriptionSource,
	dispatcher Dispatcher,
	ledger SentLedger,
	horizonDays int,
	baseURL string,
	log *zap.Logger,
) *Scanner {
	return &Scanner{
		documents:     documents,
		subscriptions: subscriptions,
		dispatcher:    dispatcher,
		ledger:        ledger,
		horizonDays:   horizonDays,
		baseURL:       baseURL,
		log:           log,
	}
}

// Scan runs one global pass: every active document expiring within the
// horizon, across all users. A document-store failure aborts the pass.
func (s *Scanner) Scan(ctx context.Context, now time.Time) (models.ScanReport, error) {
	horizon := time.Duration(s.horizonDays) * 24 * time.Hour
	docs, err := s.documents.ExpiringWithin(ctx, now, horizon)
	if err != nil {
		return models.ScanReport{}, fmt.Errorf("load expiring documents: %w", err)
	}
	return s.process(ctx, docs, now), nil
}

// ScanUser runs the same pass scoped to one user's documents.
func (s *Scanner) ScanUser(ctx context.Context, userID string, now time.Time) (models.ScanReport, error) {
	horizon := time.Duration(s.horizonDays) * 24 * time.Hour
	docs, err := s.documents.ExpiringWithinForUser(ctx, userID, now, horizon)
	if err != nil {
		return models.ScanReport{}, fmt.Errorf("load expiring documents for user %s: %w", userID, err)
	}
	return s.process(ctx, docs, now), nil
}

func (s *Scanner) process(ctx context.Context, docs []models.Document, now time.Time) models.ScanReport {
	report := models.ScanReport{DocumentsChecked: len(docs)}

	for _, doc := range docs {
		if doc.ExpiryDate == nil {
			continue
		}
		days := DaysUntil(*doc.ExpiryDate, now)
		if !notifyToday(days) {
			continue
		}

		subs, err := s.subscriptions.ByUser(ctx, doc.UserID)
		if err != nil {
			s.log.Error("subscription lookup failed",
				zap.String("document_id", doc.ID),
				zap.String("user_id", doc.UserID),
				zap.Error(err))
			report.NotificationsFailed++
			continue
		}
		// Owners without a registered device get nothing; not an error.
		if len(subs) == 0 {
			continue
		}

		if s.ledger != nil {
			first, err := s.ledger.MarkIfFirst(ctx, doc.ID, now)
			if err != nil {
				s.log.Warn("sent ledger unavailable, proceeding without same-day dedup",
					zap.String("document_id", doc.ID),
					zap.Error(err))
			} else if !first {
				s.log.Info("already notified today, skipping",
					zap.String("document_id", doc.ID))
				continue
			}
		}

		payload := s.buildPayload(doc, days)
		res := s.dispatcher.SendBatch(ctx, subs, payload)
		report.NotificationsSent += res.Successful
		report.NotificationsFailed += res.Failed

		for _, endpoint := range res.Expired {
			if err := s.subscriptions.Delete(ctx, endpoint); err != nil {
				s.log.Error("failed to prune expired subscription",
					zap.String("user_id", doc.UserID),
					zap.Error(err))
			}
		}
	}

	return report
}

// DaysUntil computes the day distance as ceil((expiry - now) / 24h).
// A document expiring later today counts as 1 day out only once the
// remaining time rounds up past zero.
func DaysUntil(expiry, now time.Time) int {
	return int(math.Ceil(expiry.Sub(now).Hours() / 24))
}

func notifyToday(days int) bool {
	for _, t := range Thresholds {
		if days == t {
			return true
		}
	}
	return false
}

var typeLabels = map[models.DocumentType]string{
	models.DocumentInsurance:    "Insurance",
	models.DocumentRegistration: "Registration",
	models.DocumentInspection:   "Inspection certificate",
	models.DocumentPermit:       "Permit",
	models.DocumentEmissions:    "Emissions certificate",
}

func (s *Scanner) buildPayload(doc models.Document, days int) models.NotificationPayload {
	label, ok := typeLabels[doc.Type]
	if !ok {
		label = "Document"
	}

	when := fmt.Sprintf("in %d days", days)
	if days == 1 {
		when = "tomorrow"
	}

	p := models.NewPayload("", fmt.Sprintf("The %s for one of your vehicles expires %s. Renew it before it lapses.", label, when))
	switch {
	case days <= 3:
		p.Title = fmt.Sprintf("Urgent: %s expires %s", label, when)
		p.Icon = models.AlertIcon
		p.RequireInteraction = true
	case days <= 7:
		p.Title = fmt.Sprintf("%s expires %s", label, when)
	default:
		p.Title = fmt.Sprintf("Upcoming: %s expires %s", label, when)
	}

	p.Tag = "document-expiry-" + doc.ID
	p.Data = models.PayloadData{
		URL:        fmt.Sprintf("%s/vehicles/%s/documents/%s", s.baseURL, doc.VehicleID, doc.ID),
		DocumentID: doc.ID,
		UserID:     doc.UserID,
	}
	return p
}
