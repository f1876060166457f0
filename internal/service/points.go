// Package service holds database side effects shared by the HTTP handlers and scheduled jobs.
package service

import (
	"biosculpture/internal/domain"  // Importing domain models
	"biosculpture/internal/metrics" // Business counters

	"github.com/shopspring/decimal" // Money amounts
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

// Reference describes the entity a ledger entry relates to
type Reference struct {
	Type string
	ID   uint
}

// AwardPoints credits userID according to the active configuration for action and returns the points granted
func AwardPoints(tx *gorm.DB, userID uint, action string, amount decimal.Decimal, reason string, ref Reference) (int, error) {
	var configs []domain.PointsConfiguration
	if err := tx.Where("action = ? AND active = ?", action, true).Find(&configs).Error; err != nil {
		return 0, err
	}
	points := domain.SelectConfiguration(configs, action, amount).Earned(amount)
	if points <= 0 {
		return 0, nil // No rule or nothing earned
	}
	entry := domain.PointsTransaction{
		UserID:        userID,
		Points:        points,
		Type:          domain.PointsEarned,
		Action:        action,
		Reason:        reason,
		ReferenceType: ref.Type,
		ReferenceID:   ref.ID,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return 0, err
	}
	if err := tx.Model(&domain.User{}).Where("id = ?", userID).
		Update("points_balance", gorm.Expr("points_balance + ?", points)).Error; err != nil {
		return 0, err
	}
	metrics.RecordPoints(action, points)
	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"action":  action,
		"points":  points,
	}).Info("Points awarded")
	return points, nil
}

// SpendPoints debits points when the balance covers them
func SpendPoints(tx *gorm.DB, userID uint, points int, reason string, ref Reference) error {
	res := tx.Model(&domain.User{}).
		Where("id = ? AND points_balance >= ?", userID, points).
		Update("points_balance", gorm.Expr("points_balance - ?", points))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Rule("insufficient points")
	}
	return tx.Create(&domain.PointsTransaction{
		UserID:        userID,
		Points:        -points,
		Type:          domain.PointsRedeemed,
		Reason:        reason,
		ReferenceType: ref.Type,
		ReferenceID:   ref.ID,
	}).Error
}

// AdjustPoints applies a signed manual correction; the balance may not go negative
func AdjustPoints(tx *gorm.DB, userID uint, points int, reason string) error {
	if points == 0 {
		return domain.Rule("points must not be zero")
	}
	q := tx.Model(&domain.User{}).Where("id = ?", userID)
	if points < 0 {
		q = q.Where("points_balance >= ?", -points)
	}
	res := q.Update("points_balance", gorm.Expr("points_balance + ?", points))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := tx.Model(&domain.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrNotFound
		}
		return domain.Rule("adjustment would make the balance negative")
	}
	return tx.Create(&domain.PointsTransaction{
		UserID: userID,
		Points: points,
		Type:   domain.PointsAdjusted,
		Reason: reason,
	}).Error
}
