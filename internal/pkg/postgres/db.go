package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/airenas/tolka/internal/pkg/booking"
	"github.com/airenas/tolka/internal/pkg/persistence"
	"github.com/airenas/tolka/internal/pkg/status"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB provides operations with postgresql
type DB struct {
	pool *pgxpool.Pool
}

// NewDB creates DB instance
func NewDB(pool *pgxpool.Pool) (*DB, error) {
	if pool == nil {
		return nil, fmt.Errorf("no pool")
	}
	return &DB{pool: pool}, nil
}

const jobFields = `id, user_id, language_id, immediate, duration, gender, certified, due, created,
	will_expire_at, status, job_type, phone_type, physical_type, town, user_email, admin_comments,
	session_time, end_at, withdraw_at, ignore_flag, ignore_expired, ignore_feedback, flagged,
	manually_handled, by_admin, version`

func scanJob(row pgx.Row) (*persistence.Job, error) {
	var res persistence.Job
	err := row.Scan(&res.ID, &res.UserID, &res.LanguageID, &res.Immediate, &res.Duration,
		&res.Gender, &res.Certified, &res.Due, &res.Created, &res.WillExpireAt, &res.Status,
		&res.JobType, &res.PhoneType, &res.PhysicalType, &res.Town, &res.UserEmail,
		&res.AdminComments, &res.SessionTime, &res.EndAt, &res.WithdrawAt, &res.Ignore,
		&res.IgnoreExpired, &res.IgnoreFeedback, &res.Flagged, &res.ManuallyHandled,
		&res.ByAdmin, &res.Version)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func scanJobs(rows pgx.Rows) ([]*persistence.Job, error) {
	defer rows.Close()
	res := []*persistence.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("can't scan job: %w", err)
		}
		res = append(res, j)
	}
	return res, rows.Err()
}

// LoadJob loads one job from DB
func (db *DB) LoadJob(ctx context.Context, id string) (*persistence.Job, error) {
	res, err := scanJob(db.pool.QueryRow(ctx, `SELECT `+jobFields+` FROM jobs WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("job '%s': %w", id, booking.ErrNotFound)
		}
		return nil, fmt.Errorf("can't load job: %w", err)
	}
	return res, nil
}

// InsertJob inserts job into DB
func (db *DB) InsertJob(ctx context.Context, job *persistence.Job) error {
	rows, err := db.pool.Query(ctx, `INSERT INTO jobs(`+jobFields+`)
	VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
		$20, $21, $22, $23, $24, $25, $26, $27)`,
		job.ID, job.UserID, job.LanguageID, job.Immediate, job.Duration, job.Gender, job.Certified,
		job.Due, job.Created, job.WillExpireAt, job.Status, job.JobType, job.PhoneType,
		job.PhysicalType, job.Town, job.UserEmail, job.AdminComments, job.SessionTime, job.EndAt,
		job.WithdrawAt, job.Ignore, job.IgnoreExpired, job.IgnoreFeedback, job.Flagged,
		job.ManuallyHandled, job.ByAdmin, job.Version)
	if err != nil {
		return fmt.Errorf("can't insert job: %w", err)
	}
	defer rows.Close()
	return nil
}

// UpdateJob updates job in DB guarded by the version column
func (db *DB) UpdateJob(ctx context.Context, job *persistence.Job) error {
	rows, err := db.pool.Exec(ctx, `UPDATE jobs SET
	language_id = $3,
	due = $4,
	will_expire_at = $5,
	status = $6,
	admin_comments = $7,
	session_time = $8,
	end_at = $9,
	withdraw_at = $10,
	created = $11,
	ignore_expired = $12,
	manually_handled = $13,
	updated = $14,
	version = $2 + 1
	WHERE id = $1 and version = $2`, job.ID, job.Version, job.LanguageID, job.Due,
		job.WillExpireAt, job.Status, job.AdminComments, job.SessionTime, job.EndAt,
		job.WithdrawAt, job.Created, job.IgnoreExpired, job.ManuallyHandled, time.Now())
	if err != nil {
		return fmt.Errorf("can't update job: %w", err)
	}
	if rows.RowsAffected() != 1 {
		return fmt.Errorf("job '%s' version %d: %w", job.ID, job.Version, booking.ErrInvalidState)
	}
	job.Version++
	return nil
}

// ListJobsByStatus loads all jobs in one status
func (db *DB) ListJobsByStatus(ctx context.Context, st string) ([]*persistence.Job, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+jobFields+` FROM jobs WHERE status = $1 ORDER BY due`, st)
	if err != nil {
		return nil, fmt.Errorf("can't load jobs: %w", err)
	}
	return scanJobs(rows)
}

// ListJobsForUser loads the customer's jobs in the wanted statuses
func (db *DB) ListJobsForUser(ctx context.Context, userID string, statuses []string) ([]*persistence.Job, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+jobFields+` FROM jobs
		WHERE user_id = $1 and status = ANY($2) ORDER BY due`, userID, statuses)
	if err != nil {
		return nil, fmt.Errorf("can't load jobs: %w", err)
	}
	return scanJobs(rows)
}

// ListJobsForTranslator loads jobs the translator actively holds
func (db *DB) ListJobsForTranslator(ctx context.Context, userID string, statuses []string) ([]*persistence.Job, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+prefixed(jobFields, "j.")+` FROM jobs j
		JOIN assignments a ON a.job_id = j.id
		WHERE a.user_id = $1 and a.cancel_at IS NULL and j.status = ANY($2) ORDER BY j.due`, userID, statuses)
	if err != nil {
		return nil, fmt.Errorf("can't load jobs: %w", err)
	}
	return scanJobs(rows)
}

// ListExpiredPending loads unaccepted jobs whose expiry has passed
func (db *DB) ListExpiredPending(ctx context.Context, at time.Time) ([]*persistence.Job, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+jobFields+` FROM jobs
		WHERE status = $1 and will_expire_at <= $2 and ignore_expired = FALSE ORDER BY will_expire_at`,
		status.Pending.String(), at)
	if err != nil {
		return nil, fmt.Errorf("can't load jobs: %w", err)
	}
	return scanJobs(rows)
}

const assignmentFields = `id, job_id, user_id, created, cancel_at, completed_at, completed_by`

func scanAssignments(rows pgx.Rows) ([]*persistence.Assignment, error) {
	defer rows.Close()
	res := []*persistence.Assignment{}
	for rows.Next() {
		var a persistence.Assignment
		if err := rows.Scan(&a.ID, &a.JobID, &a.UserID, &a.Created, &a.CancelAt,
			&a.CompletedAt, &a.CompletedBy); err != nil {
			return nil, fmt.Errorf("can't scan assignment: %w", err)
		}
		res = append(res, &a)
	}
	return res, rows.Err()
}

// LoadAssignments loads the job's assignment history
func (db *DB) LoadAssignments(ctx context.Context, jobID string) ([]*persistence.Assignment, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+assignmentFields+` FROM assignments
		WHERE job_id = $1 ORDER BY created`, jobID)
	if err != nil {
		return nil, fmt.Errorf("can't load assignments: %w", err)
	}
	return scanAssignments(rows)
}

// ActiveJobsForTranslator loads jobs with a live assignment held by the translator
func (db *DB) ActiveJobsForTranslator(ctx context.Context, userID string) ([]*persistence.Job, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+prefixed(jobFields, "j.")+` FROM jobs j
		JOIN assignments a ON a.job_id = j.id
		WHERE a.user_id = $1 and a.cancel_at IS NULL and a.completed_at IS NULL`, userID)
	if err != nil {
		return nil, fmt.Errorf("can't load jobs: %w", err)
	}
	return scanJobs(rows)
}

// Assign atomically creates the assignment and flips the job to assigned.
// Exactly one of concurrent calls sees the pending version row
func (db *DB) Assign(ctx context.Context, job *persistence.Job, a *persistence.Assignment) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("can't begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	rows, err := tx.Exec(ctx, `UPDATE jobs SET status = $3, updated = $4, version = $2 + 1
		WHERE id = $1 and version = $2 and status = $5`,
		job.ID, job.Version, status.Assigned.String(), time.Now(),
		status.Pending.String())
	if err != nil {
		return fmt.Errorf("can't update job: %w", err)
	}
	if rows.RowsAffected() != 1 {
		return fmt.Errorf("job '%s' not pending anymore: %w", job.ID, booking.ErrInvalidState)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO assignments(`+assignmentFields+`)
		VALUES($1, $2, $3, $4, $5, $6, $7)`, a.ID, a.JobID, a.UserID, a.Created,
		a.CancelAt, a.CompletedAt, a.CompletedBy); err != nil {
		return fmt.Errorf("can't insert assignment: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("can't commit: %w", err)
	}
	job.Version++
	return nil
}

// Reassign cancels the old assignment and creates the new one in one tx
func (db *DB) Reassign(ctx context.Context, cancel, create *persistence.Assignment) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("can't begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if cancel != nil {
		if _, err := tx.Exec(ctx, `UPDATE assignments SET cancel_at = $2 WHERE id = $1`,
			cancel.ID, cancel.CancelAt); err != nil {
			return fmt.Errorf("can't cancel assignment: %w", err)
		}
	}
	if _, err := tx.Exec(ctx, `INSERT INTO assignments(`+assignmentFields+`)
		VALUES($1, $2, $3, $4, $5, $6, $7)`, create.ID, create.JobID, create.UserID,
		create.Created, create.CancelAt, create.CompletedAt, create.CompletedBy); err != nil {
		return fmt.Errorf("can't insert assignment: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("can't commit: %w", err)
	}
	return nil
}

// InsertAssignment inserts assignment into DB
func (db *DB) InsertAssignment(ctx context.Context, a *persistence.Assignment) error {
	rows, err := db.pool.Query(ctx, `INSERT INTO assignments(`+assignmentFields+`)
	VALUES($1, $2, $3, $4, $5, $6, $7)`, a.ID, a.JobID, a.UserID, a.Created, a.CancelAt,
		a.CompletedAt, a.CompletedBy)
	if err != nil {
		return fmt.Errorf("can't insert assignment: %w", err)
	}
	defer rows.Close()
	return nil
}

// UpdateAssignment updates cancellation/completion marks
func (db *DB) UpdateAssignment(ctx context.Context, a *persistence.Assignment) error {
	rows, err := db.pool.Exec(ctx, `UPDATE assignments SET
	cancel_at = $2,
	completed_at = $3,
	completed_by = $4
	WHERE id = $1`, a.ID, a.CancelAt, a.CompletedAt, a.CompletedBy)
	if err != nil {
		return fmt.Errorf("can't update assignment: %w", err)
	}
	if rows.RowsAffected() != 1 {
		return fmt.Errorf("assignment '%s': %w", a.ID, booking.ErrNotFound)
	}
	return nil
}

// DeleteAssignment drops the translator-job link
func (db *DB) DeleteAssignment(ctx context.Context, id string) error {
	if _, err := db.pool.Exec(ctx, `DELETE FROM assignments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("can't delete assignment: %w", err)
	}
	return nil
}

const userFields = `id, email, name, mobile, role, active, consumer_type, translator_type,
	translator_level, gender, town, languages, not_get_emergency, not_get_nighttime,
	not_get_notification`

func scanUser(row pgx.Row) (*persistence.User, error) {
	var res persistence.User
	err := row.Scan(&res.ID, &res.Email, &res.Name, &res.Mobile, &res.Role, &res.Active,
		&res.ConsumerType, &res.TranslatorType, &res.TranslatorLevel, &res.Gender, &res.Town,
		&res.Languages, &res.NotGetEmergency, &res.NotGetNighttime, &res.NotGetNotification)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// LoadUser loads one user from DB
func (db *DB) LoadUser(ctx context.Context, id string) (*persistence.User, error) {
	res, err := scanUser(db.pool.QueryRow(ctx, `SELECT `+userFields+` FROM users WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("user '%s': %w", id, booking.ErrNotFound)
		}
		return nil, fmt.Errorf("can't load user: %w", err)
	}
	return res, nil
}

// ListActiveTranslators loads the candidate pool for matching
func (db *DB) ListActiveTranslators(ctx context.Context) ([]*persistence.User, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+userFields+` FROM users
		WHERE role = 'translator' and active = TRUE`)
	if err != nil {
		return nil, fmt.Errorf("can't load users: %w", err)
	}
	defer rows.Close()
	res := []*persistence.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("can't scan user: %w", err)
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// LoadBlacklist returns translator ids the customer refuses to work with
func (db *DB) LoadBlacklist(ctx context.Context, customerID string) ([]string, error) {
	rows, err := db.pool.Query(ctx, `SELECT translator_id FROM blacklist WHERE customer_id = $1`, customerID)
	if err != nil {
		return nil, fmt.Errorf("can't load blacklist: %w", err)
	}
	defer rows.Close()
	res := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("can't scan blacklist: %w", err)
		}
		res = append(res, id)
	}
	return res, rows.Err()
}

// SpecificTranslator returns the targeted translator id, empty if the job is open
func (db *DB) SpecificTranslator(ctx context.Context, jobID string) (string, error) {
	var res string
	err := db.pool.QueryRow(ctx, `SELECT translator_id FROM specific_jobs WHERE job_id = $1`, jobID).Scan(&res)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("can't load specific job: %w", err)
	}
	return res, nil
}

// SameCoverageArea - two users share a town
func (db *DB) SameCoverageArea(ctx context.Context, userIDA, userIDB string) (bool, error) {
	var res bool
	err := db.pool.QueryRow(ctx, `SELECT EXISTS (SELECT FROM users u1
		JOIN users u2 ON u1.town = u2.town
		WHERE u1.id = $1 and u2.id = $2 and u1.town <> '')`, userIDA, userIDB).Scan(&res)
	if err != nil {
		return false, fmt.Errorf("can't check towns: %w", err)
	}
	return res, nil
}

// LanguageNameFor resolves the language display name
func (db *DB) LanguageNameFor(ctx context.Context, id string) (string, error) {
	var res string
	err := db.pool.QueryRow(ctx, `SELECT name FROM languages WHERE id = $1`, id).Scan(&res)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", fmt.Errorf("language '%s': %w", id, booking.ErrNotFound)
		}
		return "", fmt.Errorf("can't load language: %w", err)
	}
	return res, nil
}

// Live returns no error if db is reachable and initialized
func (db *DB) Live(ctx context.Context) error {
	var exists bool
	if err := db.pool.QueryRow(ctx, `SELECT EXISTS (SELECT FROM pg_tables WHERE tablename = 'gue_jobs')`).Scan(&exists); err != nil {
		return fmt.Errorf("can't check table: %w", err)
	}
	if !exists {
		return fmt.Errorf("no migration done")
	}
	return nil
}

func prefixed(fields, prefix string) string {
	parts := strings.Split(fields, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
