// internal/repository/repository.go
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kyc-workers/internal/models"
)

var (
	ErrDriverNotFound = errors.New("driver not found")
	ErrNoReference    = errors.New("no reference document")
)

// DB is the subset of *sql.DB the repository needs.
type DB interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type Repository struct {
	db  DB
	now func() time.Time
}

func New(db DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

func (r *Repository) GetDriver(ctx context.Context, driverID string) (*models.Driver, error) {
	var d models.Driver
	var email, phone, photo sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, phone, status,
		       verification_status, kyc_status, kyc_retry_count, profile_photo_path, created_at
		FROM drivers
		WHERE id = $1`, driverID).Scan(
		&d.ID, &d.FirstName, &d.LastName, &email, &phone, &d.Status,
		&d.VerificationStatus, &d.KYCStatus, &d.KYCRetryCount, &photo, &d.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDriverNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get driver %s: %w", driverID, err)
	}
	d.Email = email.String
	d.Phone = phone.String
	d.ProfilePhotoPath = photo.String
	return &d, nil
}

// GetReferenceDocument returns the oldest license or photo document for the driver.
func (r *Repository) GetReferenceDocument(ctx context.Context, driverID string) (*models.DriverDocument, error) {
	var doc models.DriverDocument
	err := r.db.QueryRowContext(ctx, `
		SELECT id, driver_id, document_type, file_path, uploaded_at
		FROM driver_documents
		WHERE driver_id = $1 AND document_type IN ('license', 'photo')
		ORDER BY uploaded_at ASC, id ASC
		LIMIT 1`, driverID).Scan(&doc.ID, &doc.DriverID, &doc.Type, &doc.FilePath, &doc.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoReference
	}
	if err != nil {
		return nil, fmt.Errorf("get reference document for %s: %w", driverID, err)
	}
	return &doc, nil
}

func (r *Repository) ListActiveAdmins(ctx context.Context) ([]models.Admin, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email
		FROM admins
		WHERE is_active = TRUE
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var admins []models.Admin
	for rows.Next() {
		var a models.Admin
		var email sql.NullString
		if err := rows.Scan(&a.ID, &a.Name, &email); err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		a.Email = email.String
		admins = append(admins, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}

// MarkReviewing moves the driver from pending to reviewing. It reports false
// when the driver was not pending, which makes replays a no-op.
func (r *Repository) MarkReviewing(ctx context.Context, driverID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE drivers
		SET verification_status = $2, updated_at = $3
		WHERE id = $1 AND verification_status = $4`,
		driverID, models.VerificationReviewing, r.now().UTC(), models.VerificationPending)
	if err != nil {
		return false, fmt.Errorf("mark driver %s reviewing: %w", driverID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark driver %s reviewing: %w", driverID, err)
	}
	return n > 0, nil
}

// InsertVerificationResult appends a result row. ID and CreatedAt are
// assigned when empty.
func (r *Repository) InsertVerificationResult(ctx context.Context, res *models.VerificationResult) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = r.now().UTC()
	}
	c := res.Components
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO verification_results
			(id, driver_id, final_score, facial_score, document_score, background_score,
			 reference_score, consistency_score, substituted, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		res.ID, res.DriverID, res.FinalScore, c.Facial, c.Document, c.Background,
		c.Reference, c.Consistency, res.Substituted, res.Reason, res.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert verification result: %w", err)
	}
	return nil
}

func (r *Repository) InsertNotification(ctx context.Context, n *models.NotificationDispatch) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = r.now().UTC()
	}
	data, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("marshal notification data: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO notifications
			(id, recipient_id, recipient_type, category, priority, title, message, data, action_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		n.ID, n.RecipientID, n.RecipientType, n.Category, n.Priority, n.Title, n.Message,
		string(data), n.ActionURL, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification for %s: %w", n.RecipientID, err)
	}
	return nil
}

func (r *Repository) RecordCompletionFailure(ctx context.Context, f *models.CompletionFailure) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = r.now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO kyc_completion_failures (id, driver_id, attempts, failure_reason, job_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		f.ID, f.DriverID, f.Attempts, f.FailureReason, f.JobKey, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("record completion failure: %w", err)
	}
	return nil
}
