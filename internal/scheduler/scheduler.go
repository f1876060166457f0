// Package scheduler runs periodic maintenance jobs inside the server process.
package scheduler

import (
	"context" // Shutdown signalling
	"fmt"     // Message formatting
	"time"    // Job clocks

	"biosculpture/internal/domain"  // Importing domain models
	"biosculpture/internal/metrics" // Job counters
	"biosculpture/internal/service" // Shared side effects

	"github.com/robfig/cron/v3"  // Cron scheduler
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// Job is one unit of scheduled work returning how many rows it touched
type Job func(db *gorm.DB, now time.Time) (int, error)

// Scheduler wraps a cron runner bound to the database
type Scheduler struct {
	cron *cron.Cron
	db   *gorm.DB
}

// New registers every job; Start must be called to run them
func New(db *gorm.DB) (*Scheduler, error) {
	logger := cron.PrintfLogger(logrus.StandardLogger())
	s := &Scheduler{
		cron: cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		db:   db,
	}
	jobs := []struct {
		spec string
		name string
		job  Job
	}{
		{"@every 1m", "social_due", NotifyDuePosts},
		{"@hourly", "coupon_expiry", ExpireCoupons},
		{"@hourly", "certification_expiry", ExpireCertifications},
		{"@daily", "affiliate_tiers", PromoteAffiliates},
	}
	for _, j := range jobs {
		if _, err := s.cron.AddFunc(j.spec, s.wrap(j.name, j.job)); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", j.name, err)
		}
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
	logrus.WithField("jobs", len(s.cron.Entries())).Info("Scheduler started")
}

// Stop prevents new runs; the returned context is done once running jobs finish
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// wrap adapts a Job to cron with logging and metrics
func (s *Scheduler) wrap(name string, job Job) func() {
	return func() {
		start := time.Now()
		n, err := job(s.db, start.UTC())
		metrics.RecordJob(name, err)
		entry := logrus.WithFields(logrus.Fields{
			"job":         name,
			"affected":    n,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if err != nil {
			entry.WithError(err).Error("Scheduled job failed")
			return
		}
		if n > 0 {
			entry.Info("Scheduled job completed")
		}
	}
}

// NotifyDuePosts tells admins about scheduled social posts whose time has come, once per post
func NotifyDuePosts(db *gorm.DB, now time.Time) (int, error) {
	var posts []domain.SocialMediaPost
	if err := db.Where("status = ? AND scheduled_at <= ? AND due_notified_at IS NULL", domain.PostScheduled, now).
		Order("scheduled_at").Find(&posts).Error; err != nil {
		return 0, err
	}
	count := 0
	for _, p := range posts {
		err := db.Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&domain.SocialMediaPost{}).
				Where("id = ? AND due_notified_at IS NULL", p.ID).
				Update("due_notified_at", now)
			if res.Error != nil || res.RowsAffected == 0 {
				return res.Error
			}
			count++
			_, err := service.NotifyAdmins(tx, service.NotifySocial,
				fmt.Sprintf("%s post due: %s", p.Platform, p.Title),
				"A scheduled social media post is ready to publish.",
				fmt.Sprintf("/admin/social/%d", p.ID))
			return err
		})
		if err != nil {
			return count, err
		}
	}
	return count, nil
}

// ExpireCoupons deactivates coupons past their expiry
func ExpireCoupons(db *gorm.DB, now time.Time) (int, error) {
	res := db.Model(&domain.Coupon{}).
		Where("active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, now).
		Update("active", false)
	return int(res.RowsAffected), res.Error
}

// ExpireCertifications marks lapsed active certifications expired and notifies their holders
func ExpireCertifications(db *gorm.DB, now time.Time) (int, error) {
	var certs []domain.Certification
	if err := db.Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", domain.CertActive, now).
		Find(&certs).Error; err != nil {
		return 0, err
	}
	for i, c := range certs {
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&domain.Certification{}).Where("id = ?", c.ID).Update("status", domain.CertExpired).Error; err != nil {
				return err
			}
			return service.Notify(tx, c.UserID, service.NotifyCertification, "Certification expired",
				fmt.Sprintf("Your %s certification (%s) has expired.", c.Title, c.CertificateNumber), "/certifications")
		})
		if err != nil {
			return i, err
		}
	}
	return len(certs), nil
}

// PromoteAffiliates re-evaluates the tier of every approved affiliate
func PromoteAffiliates(db *gorm.DB, _ time.Time) (int, error) {
	var affiliates []domain.Affiliate
	if err := db.Where("status = ?", domain.AffiliateApproved).Find(&affiliates).Error; err != nil {
		return 0, err
	}
	promoted := 0
	for i := range affiliates {
		var ok bool
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			ok, err = service.PromoteAffiliate(tx, &affiliates[i])
			return err
		})
		if err != nil {
			return promoted, err
		}
		if ok {
			promoted++
		}
	}
	return promoted, nil
}
