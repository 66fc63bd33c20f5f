package models

import "time"

// DocumentType is the closed set of vehicle document kinds tracked for expiry.
type DocumentType string

const (
	DocumentInsurance    DocumentType = "insurance"
	DocumentRegistration DocumentType = "registration"
	DocumentInspection   DocumentType = "inspection"
	DocumentPermit       DocumentType = "permit"
	DocumentEmissions    DocumentType = "emissions"
)

// Subscription is one browser push endpoint belonging to one user.
// A user may hold any number of subscriptions (one per device/browser).
type Subscription struct {
	Endpoint  string    `json:"endpoint" db:"endpoint"`
	P256dh    string    `json:"p256dh" db:"p256dh"`
	Auth      string    `json:"auth" db:"auth"`
	UserID    string    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Document is a time-bounded vehicle document. Only active documents with a
// non-null expiry date participate in expiry scanning.
type Document struct {
	ID         string       `json:"id" db:"id"`
	VehicleID  string       `json:"vehicle_id" db:"vehicle_id"`
	UserID     string       `json:"user_id" db:"user_id"`
	Type       DocumentType `json:"type" db:"type"`
	ExpiryDate *time.Time   `json:"expiry_date" db:"expiry_date"`
	IsActive   bool         `json:"is_active" db:"is_active"`
}

// Default asset paths baked into every payload unless overridden.
const (
	DefaultIcon  = "/icons/icon-192.png"
	DefaultBadge = "/icons/badge-72.png"
	AlertIcon    = "/icons/icon-alert-192.png"
)

// PayloadData is the opaque bag the service worker uses for deep-linking.
type PayloadData struct {
	URL        string `json:"url"`
	DocumentID string `json:"documentId,omitempty"`
	UserID     string `json:"userId,omitempty"`
}

// NotificationPayload is the push message body. Built fresh per scan pass,
// never persisted.
type NotificationPayload struct {
	Title              string      `json:"title"`
	Body               string      `json:"body"`
	Icon               string      `json:"icon"`
	Badge              string      `json:"badge"`
	Tag                string      `json:"tag,omitempty"`
	RequireInteraction bool        `json:"requireInteraction"`
	Data               PayloadData `json:"data"`
}

// NewPayload fills in the asset defaults the clients expect.
func NewPayload(title, body string) NotificationPayload {
	return NotificationPayload{
		Title: title,
		Body:  body,
		Icon:  DefaultIcon,
		Badge: DefaultBadge,
	}
}

// BatchResult aggregates one fan-out over a recipient's endpoints.
// Expired holds the endpoints the transport reported permanently gone;
// the caller is responsible for deleting them.
type BatchResult struct {
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Expired    []string `json:"expired,omitempty"`
}

// ScanReport summarizes one expiry-scan pass.
type ScanReport struct {
	DocumentsChecked    int `json:"documentsChecked"`
	NotificationsSent   int `json:"notificationsSent"`
	NotificationsFailed int `json:"notificationsFailed"`
}

// JobResult records one job run inside a dispatcher invocation.
type JobResult struct {
	Job        string      `json:"job"`
	Status     string      `json:"status"`
	StatusCode int         `json:"statusCode"`
	Data       interface{} `json:"data,omitempty"`
}

// DispatchReport is the master dispatcher's aggregate response body.
type DispatchReport struct {
	Success      bool        `json:"success"`
	Hour         int         `json:"hour"`
	JobsExecuted int         `json:"jobsExecuted"`
	Results      []JobResult `json:"results"`
	Message      string      `json:"message,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
}

// SendPushRequest is the ad-hoc push API body. Exactly one of UserID or
// Broadcast must be set.
type SendPushRequest struct {
	UserID    string `json:"user_id"`
	Broadcast bool   `json:"broadcast"`
	Title     string `json:"title" binding:"required"`
	Body      string `json:"body" binding:"required"`
	URL       string `json:"url"`
}

// PushMessage is what travels over the queue for an ad-hoc send.
type PushMessage struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id,omitempty"`
	Broadcast     bool      `json:"broadcast"`
	Title         string    `json:"title"`
	Body          string    `json:"body"`
	URL           string    `json:"url,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// SubscribeRequest registers one endpoint for the authenticated user.
type SubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	P256dh   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
}

// UnsubscribeRequest removes one endpoint for the authenticated user.
type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message"`
}

// NotificationResponse acknowledges a queued ad-hoc push.
type NotificationResponse struct {
	NotificationID string    `json:"notification_id"`
	Status         string    `json:"status"`
	QueuedAt       time.Time `json:"queued_at"`
}

// ScanResponse is the body returned by the scan trigger endpoints.
type ScanResponse struct {
	Success             bool      `json:"success"`
	DocumentsChecked    int       `json:"documentsChecked"`
	NotificationsSent   int       `json:"notificationsSent"`
	NotificationsFailed int       `json:"notificationsFailed"`
	Timestamp           time.Time `json:"timestamp"`
}
