package api

import (
	"time"

	"github.com/airenas/tolka/internal/pkg/persistence"
)

// Param names used by the HTTP layer
const (
	PrmJobID      = "jobID"
	PrmUserID     = "userID"
	PrmTranslator = "translatorID"
)

// CreateRequest is the booking creation payload
type CreateRequest struct {
	UserID       string    `json:"user_id"`
	LanguageID   string    `json:"from_language_id"`
	Immediate    bool      `json:"immediate"`
	Due          time.Time `json:"due,omitempty"`
	Duration     int       `json:"duration"`
	Gender       string    `json:"gender,omitempty"`
	Certified    string    `json:"certified,omitempty"`
	PhoneType    bool      `json:"customer_phone_type"`
	PhysicalType bool      `json:"customer_physical_type"`
	Town         string    `json:"town,omitempty"`
	UserEmail    string    `json:"user_email,omitempty"`
	ByAdmin      bool      `json:"by_admin,omitempty"`
}

// UpdateRequest is the administrative job update payload
type UpdateRequest struct {
	JobID        string    `json:"job_id"`
	AdminID      string    `json:"admin_id"`
	Status       string    `json:"status,omitempty"`
	Due          time.Time `json:"due,omitempty"`
	LanguageID   string    `json:"from_language_id,omitempty"`
	TranslatorID string    `json:"translator_id,omitempty"`
	AdminComment string    `json:"admin_comments,omitempty"`
	SessionTime  string    `json:"session_time,omitempty"`
}

// UserJobs is a user's open bookings split by urgency
type UserJobs struct {
	Emergency []*persistence.Job `json:"emergencyJobs"`
	Normal    []*persistence.Job `json:"normalJobs"`
}

// JobResponse is what mutating operations return
type JobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
