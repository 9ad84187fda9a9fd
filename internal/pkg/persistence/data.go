package persistence

import (
	"database/sql"
	"time"
)

type (

	// Job is a single interpretation booking request
	Job struct {
		ID            string
		UserID        string
		LanguageID    string
		Immediate     bool
		Duration      int // minutes
		Gender        sql.NullString
		Certified     sql.NullString
		Due           time.Time
		Created       time.Time
		WillExpireAt  time.Time
		Status        string
		JobType       string
		PhoneType     bool
		PhysicalType  bool
		Town          string
		UserEmail     sql.NullString // overrides the customer's account email when set
		AdminComments string
		SessionTime   string
		EndAt         sql.NullTime
		WithdrawAt    sql.NullTime

		Ignore          bool
		IgnoreExpired   bool
		IgnoreFeedback  bool
		Flagged         bool
		ManuallyHandled bool
		ByAdmin         bool

		Version int32
	}

	// Assignment is one translator's claim on a job, active or historical
	Assignment struct {
		ID          string
		JobID       string
		UserID      string
		Created     time.Time
		CancelAt    sql.NullTime
		CompletedAt sql.NullTime
		CompletedBy sql.NullString
	}

	// User is a customer or translator row
	User struct {
		ID              string
		Email           string
		Name            string
		Mobile          string
		Role            string
		Active          bool
		ConsumerType    string
		TranslatorType  string
		TranslatorLevel string
		Gender          string
		Town            string
		Languages       []string

		NotGetEmergency    bool
		NotGetNighttime    bool
		NotGetNotification bool
	}

	// SentRecord tracks one delivered notification.
	// It guarantees a recipient is not notified twice for the same event
	SentRecord struct {
		JobID   string
		MsgType string
		Email   string
		Created time.Time
	}
)

// ActiveOf returns the assignment with neither cancel nor complete time set
func ActiveOf(assignments []*Assignment) *Assignment {
	for _, a := range assignments {
		if !a.CancelAt.Valid && !a.CompletedAt.Valid {
			return a
		}
	}
	return nil
}

// LastCompletedOf returns the most recently completed assignment
func LastCompletedOf(assignments []*Assignment) *Assignment {
	var res *Assignment
	for _, a := range assignments {
		if a.CompletedAt.Valid && (res == nil || a.CompletedAt.Time.After(res.CompletedAt.Time)) {
			res = a
		}
	}
	return res
}

// ContactEmail returns the job's override email or the customer's account
// email, together with the recipient name
func (j *Job) ContactEmail(customer *User) (string, string) {
	name := ""
	if customer != nil {
		name = customer.Name
	}
	if j.UserEmail.Valid && j.UserEmail.String != "" {
		return j.UserEmail.String, name
	}
	if customer == nil {
		return "", name
	}
	return customer.Email, name
}
