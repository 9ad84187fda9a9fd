package postgres

import (
	"context"
	"fmt"
	"time"
)

// Sent email bookkeeping. A row in sent_emails means the (job, msgType,
// recipient) triple is being or has been delivered - the inform worker locks
// before sending so retries never email anyone twice

// LockEmailTable marks the email as being sent. Fails when it already was
func (db *DB) LockEmailTable(ctx context.Context, jobID, msgType, email string) error {
	rows, err := db.pool.Exec(ctx, `INSERT INTO sent_emails(job_id, msg_type, email, status, created)
	VALUES($1, $2, $3, 1, $4) ON CONFLICT (job_id, msg_type, email) DO NOTHING`,
		jobID, msgType, email, time.Now())
	if err != nil {
		return fmt.Errorf("can't lock email: %w", err)
	}
	if rows.RowsAffected() != 1 {
		return fmt.Errorf("email for '%s/%s' already sent or sending", jobID, msgType)
	}
	return nil
}

// UnLockEmailTable releases the lock. Zero value drops the row so a retry
// may send again, non-zero marks delivery done
func (db *DB) UnLockEmailTable(ctx context.Context, jobID, msgType, email string, value *int) error {
	if value == nil || *value == 0 {
		if _, err := db.pool.Exec(ctx, `DELETE FROM sent_emails
			WHERE job_id = $1 and msg_type = $2 and email = $3 and status = 1`,
			jobID, msgType, email); err != nil {
			return fmt.Errorf("can't unlock email: %w", err)
		}
		return nil
	}
	if _, err := db.pool.Exec(ctx, `UPDATE sent_emails SET status = $4
		WHERE job_id = $1 and msg_type = $2 and email = $3`,
		jobID, msgType, email, *value); err != nil {
		return fmt.Errorf("can't unlock email: %w", err)
	}
	return nil
}

// ClearSentRecords drops the job's sent markers so a reopened booking
// notifies everyone afresh
func (db *DB) ClearSentRecords(ctx context.Context, jobID string) error {
	if _, err := db.pool.Exec(ctx, `DELETE FROM sent_emails WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("can't clear sent records: %w", err)
	}
	return nil
}
