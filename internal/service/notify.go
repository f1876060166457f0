package service

import (
	"biosculpture/internal/domain" // Importing domain models

	"gorm.io/gorm" // GORM ORM library
)

// Notification types
const (
	NotifyOrder         = "order"
	NotifyComment       = "comment"
	NotifyReview        = "review"
	NotifySalon         = "salon"
	NotifyAffiliate     = "affiliate"
	NotifyCertification = "certification"
	NotifySocial        = "social"
	NotifyAnnouncement  = "announcement"
)

// Notify stores an in-app notification for one user
func Notify(tx *gorm.DB, userID uint, typ, title, message, link string) error {
	return tx.Create(&domain.Notification{
		UserID:  userID,
		Type:    typ,
		Title:   title,
		Message: message,
		Link:    link,
	}).Error
}

// NotifyAdmins notifies every admin and superadmin and returns how many were notified
func NotifyAdmins(tx *gorm.DB, typ, title, message, link string) (int, error) {
	var ids []uint
	if err := tx.Model(&domain.User{}).
		Where("role IN ?", []string{domain.RoleAdmin, domain.RoleSuperAdmin}).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	return len(ids), notifyMany(tx, ids, typ, title, message, link)
}

// Broadcast notifies every registered user and returns how many were notified
func Broadcast(tx *gorm.DB, typ, title, message, link string) (int, error) {
	var ids []uint
	if err := tx.Model(&domain.User{}).Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	return len(ids), notifyMany(tx, ids, typ, title, message, link)
}

func notifyMany(tx *gorm.DB, ids []uint, typ, title, message, link string) error {
	if len(ids) == 0 {
		return nil
	}
	rows := make([]domain.Notification, len(ids))
	for i, id := range ids {
		rows[i] = domain.Notification{UserID: id, Type: typ, Title: title, Message: message, Link: link}
	}
	return tx.CreateInBatches(rows, 200).Error
}
