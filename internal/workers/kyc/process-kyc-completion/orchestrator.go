// internal/workers/kyc/process-kyc-completion/orchestrator.go
package processkyccompletion

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	kycerrors "kyc-workers/internal/common/errors"
	"kyc-workers/internal/common/logger"
	"kyc-workers/internal/common/metrics"
	"kyc-workers/internal/models"
	"kyc-workers/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type DriverStore interface {
	GetDriver(ctx context.Context, driverID string) (*models.Driver, error)
	ListActiveAdmins(ctx context.Context) ([]models.Admin, error)
	MarkReviewing(ctx context.Context, driverID string) (bool, error)
}

type AuditRecorder interface {
	IndexDocument(ctx context.Context, index, id string, doc interface{}) error
}

type Mailer interface {
	SendText(ctx context.Context, to []string, subject, body string) (string, error)
}

const (
	reviewTitle        = "KYC Submission Ready for Review"
	emailSubjectDriver = "Your KYC submission is under review"
	emailSubjectAdmins = "Driver KYC submission awaiting review"
)

type Orchestrator struct {
	config     *Config
	store      DriverStore
	audit      AuditRecorder
	dispatcher Dispatcher
	mailer     Mailer
	logger     logger.Logger
	now        func() time.Time
}

// NewOrchestrator accepts a nil mailer when email is disabled.
func NewOrchestrator(config *Config, store DriverStore, audit AuditRecorder, dispatcher Dispatcher, mailer Mailer, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		config:     config,
		store:      store,
		audit:      audit,
		dispatcher: dispatcher,
		mailer:     mailer,
		logger:     log,
		now:        time.Now,
	}
}

// ReviewURL is the admin deep link for a driver's review page.
func ReviewURL(baseURL, driverID string) string {
	return strings.TrimRight(baseURL, "/") + "/admin/drivers/" + url.PathEscape(driverID) + "/review"
}

// Process reacts to one completion event. Notification and email failures
// are collected in the report. Any other failure is returned for the retry
// envelope. Replaying an event is safe: the status transition only applies
// to pending drivers, though notifications are sent again.
func (o *Orchestrator) Process(ctx context.Context, event models.CompletionEvent) (*Report, error) {
	driver, err := o.store.GetDriver(ctx, event.DriverID)
	if errors.Is(err, repository.ErrDriverNotFound) {
		return nil, kycerrors.NewDriverNotFoundError(event.DriverID)
	}
	if err != nil {
		return nil, kycerrors.NewDriverLookupFailedError(err)
	}

	report := &Report{DriverID: driver.ID}

	auditID, err := o.recordAudit(ctx, driver, event)
	if err != nil {
		return nil, kycerrors.NewAuditRecordFailedError(err)
	}
	report.AuditID = auditID

	admins, err := o.store.ListActiveAdmins(ctx)
	if err != nil {
		return nil, kycerrors.NewAdminLookupFailedError(err)
	}

	report.AdminsNotified, report.NotificationFailures = o.notifyAdmins(ctx, driver, admins)

	if o.config.EmailEnabled && o.mailer != nil {
		report.EmailsSent, report.EmailFailures = o.sendEmails(ctx, driver)
	}

	transitioned, err := o.store.MarkReviewing(ctx, driver.ID)
	if err != nil {
		return nil, kycerrors.NewStatusTransitionFailedError(driver.ID, err)
	}
	report.Transitioned = transitioned
	if !transitioned {
		o.logger.Info("driver not pending, status left unchanged", map[string]interface{}{
			"driverId":           driver.ID,
			"verificationStatus": driver.VerificationStatus,
		})
	}

	o.logger.Info("kyc completion processed", map[string]interface{}{
		"driverId":             driver.ID,
		"auditId":              report.AuditID,
		"adminsNotified":       report.AdminsNotified,
		"notificationFailures": len(report.NotificationFailures),
		"emailsSent":           report.EmailsSent,
		"emailFailures":        len(report.EmailFailures),
		"transitioned":         transitioned,
	})
	return report, nil
}

func (o *Orchestrator) recordAudit(ctx context.Context, driver *models.Driver, event models.CompletionEvent) (string, error) {
	// A stable id per event keeps redelivered events from piling up audit documents.
	id := uuid.NewString()
	if event.EventID != "" {
		id = driver.ID + "-" + event.EventID
	}
	doc := map[string]interface{}{
		"type":               "kyc_completion",
		"driverId":           driver.ID,
		"eventId":            event.EventID,
		"verificationStatus": driver.VerificationStatus,
		"kycStatus":          driver.KYCStatus,
		"completionData":     event.CompletionData,
		"recordedAt":         o.now().UTC().Format(time.RFC3339),
	}
	if err := o.audit.IndexDocument(ctx, o.config.AuditIndex, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (o *Orchestrator) buildDispatch(driver *models.Driver, admin models.Admin) *models.NotificationDispatch {
	name := driver.FullName()
	return &models.NotificationDispatch{
		RecipientID:   admin.ID,
		RecipientType: models.RecipientAdmin,
		Category:      models.CategoryKYCReview,
		Priority:      models.PriorityHigh,
		Title:         reviewTitle,
		Message:       fmt.Sprintf("Driver %s has completed KYC verification and is ready for review.", name),
		Data: map[string]interface{}{
			"driverId":    driver.ID,
			"driverName":  name,
			"driverEmail": driver.Email,
		},
		ActionURL: ReviewURL(o.config.AdminBaseURL, driver.ID),
	}
}

// notifyAdmins sends one notification per admin. Each delivery is isolated:
// a failure or panic for one admin is recorded and the rest carry on.
func (o *Orchestrator) notifyAdmins(ctx context.Context, driver *models.Driver, admins []models.Admin) (int, []RecipientFailure) {
	if len(admins) == 0 {
		o.logger.Warn("no active administrators to notify", map[string]interface{}{"driverId": driver.ID})
		return 0, nil
	}

	limit := o.config.MaxConcurrency
	if limit <= 0 {
		limit = 1
	}

	var (
		mu       sync.Mutex
		sent     int
		failures []RecipientFailure
		g        errgroup.Group
	)
	g.SetLimit(limit)
	channel := o.dispatcher.Channel()

	for _, admin := range admins {
		admin := admin
		g.Go(func() error {
			err := o.dispatchOne(ctx, o.buildDispatch(driver, admin))

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, RecipientFailure{Recipient: admin.ID, Channel: channel, Error: err.Error()})
				metrics.KYCNotificationsDispatched.WithLabelValues(channel, "failed").Inc()
				o.logger.Error("admin notification failed", map[string]interface{}{
					"driverId": driver.ID,
					"adminId":  admin.ID,
					"channel":  channel,
					"error":    err,
				})
				return nil
			}
			sent++
			metrics.KYCNotificationsDispatched.WithLabelValues(channel, "sent").Inc()
			return nil
		})
	}
	_ = g.Wait()
	return sent, failures
}

func (o *Orchestrator) dispatchOne(ctx context.Context, n *models.NotificationDispatch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatcher panic: %v", r)
		}
	}()
	return o.dispatcher.Dispatch(ctx, n)
}

func (o *Orchestrator) mailOne(ctx context.Context, to []string, subject, body string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mailer panic: %v", r)
		}
	}()
	_, err = o.mailer.SendText(ctx, to, subject, body)
	return err
}

func (o *Orchestrator) sendEmails(ctx context.Context, driver *models.Driver) (int, []RecipientFailure) {
	var sent int
	var failures []RecipientFailure
	link := ReviewURL(o.config.AdminBaseURL, driver.ID)

	send := func(recipient string, to []string, subject, body string) {
		if err := o.mailOne(ctx, to, subject, body); err != nil {
			failures = append(failures, RecipientFailure{Recipient: recipient, Channel: "email", Error: err.Error()})
			metrics.KYCNotificationsDispatched.WithLabelValues("email", "failed").Inc()
			o.logger.Error("kyc email failed", map[string]interface{}{
				"driverId":  driver.ID,
				"recipient": recipient,
				"error":     err,
			})
			return
		}
		sent++
		metrics.KYCNotificationsDispatched.WithLabelValues("email", "sent").Inc()
	}

	if driver.Email != "" {
		send("driver", []string{driver.Email}, emailSubjectDriver, fmt.Sprintf(
			"Hello %s,\n\nThanks for completing your verification. Our team is reviewing your documents and will be in touch soon.\n",
			driver.FullName()))
	} else {
		o.logger.Warn("driver has no email address, skipping driver email", map[string]interface{}{"driverId": driver.ID})
	}

	if len(o.config.AdminDistributionList) > 0 {
		send("admin_distribution_list", o.config.AdminDistributionList, emailSubjectAdmins, fmt.Sprintf(
			"Driver %s (%s) has completed KYC verification.\n\nReview: %s\n",
			driver.FullName(), driver.ID, link))
	}
	return sent, failures
}
