package scheduler

import (
	"fmt"
	"testing"
	"time"

	"biosculpture/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(domain.Models()...))
	return db
}

func TestNotifyDuePostsOnce(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.Create(&domain.User{Email: "admin@example.com", Password: "x", Role: domain.RoleAdmin}).Error)
	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	require.NoError(t, db.Create(&domain.SocialMediaPost{Title: "Launch", Platform: "INSTAGRAM", Status: domain.PostScheduled, ScheduledAt: &past}).Error)
	require.NoError(t, db.Create(&domain.SocialMediaPost{Title: "Later", Platform: "X", Status: domain.PostScheduled, ScheduledAt: &future}).Error)
	require.NoError(t, db.Create(&domain.SocialMediaPost{Title: "Draft", Platform: "X", Status: domain.PostDraft, ScheduledAt: &past}).Error)

	n, err := NotifyDuePosts(db, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = NotifyDuePosts(db, now)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	var notes int64
	db.Model(&domain.Notification{}).Count(&notes)
	assert.Equal(t, int64(1), notes)
}

func TestExpireCoupons(t *testing.T) {
	db := testDB(t)
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	require.NoError(t, db.Create(&domain.Coupon{Code: "OLD", Type: domain.CouponFixed, Value: decimal.NewFromInt(5), ExpiresAt: &past, Active: true}).Error)
	require.NoError(t, db.Create(&domain.Coupon{Code: "NEW", Type: domain.CouponFixed, Value: decimal.NewFromInt(5), ExpiresAt: &future, Active: true}).Error)
	require.NoError(t, db.Create(&domain.Coupon{Code: "FOREVER", Type: domain.CouponFixed, Value: decimal.NewFromInt(5), Active: true}).Error)

	n, err := ExpireCoupons(db, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var old domain.Coupon
	db.Where("code = ?", "OLD").First(&old)
	assert.False(t, old.Active)
}

func TestExpireCertifications(t *testing.T) {
	db := testDB(t)
	u := domain.User{Email: "tech@example.com", Password: "x", Role: domain.RoleUser}
	require.NoError(t, db.Create(&u).Error)
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	require.NoError(t, db.Create(&domain.Certification{UserID: u.ID, Title: "Gel", CertificateNumber: "C-1", IssuedAt: past.AddDate(-1, 0, 0), ExpiresAt: &past, Status: domain.CertActive}).Error)
	require.NoError(t, db.Create(&domain.Certification{UserID: u.ID, Title: "Gel", CertificateNumber: "C-2", IssuedAt: past, Status: domain.CertActive}).Error)

	n, err := ExpireCertifications(db, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var c domain.Certification
	db.Where("certificate_number = ?", "C-1").First(&c)
	assert.Equal(t, domain.CertExpired, c.Status)
}

func seedGoldAffiliate(t *testing.T, db *gorm.DB) domain.Affiliate {
	owner := domain.User{Email: "aff@example.com", Password: "x", Role: domain.RoleUser}
	require.NoError(t, db.Create(&owner).Error)
	aff := domain.Affiliate{UserID: owner.ID, Code: "A1", Status: domain.AffiliateApproved, Tier: domain.TierBronze, CommissionRate: decimal.RequireFromString("0.05")}
	require.NoError(t, db.Create(&aff).Error)
	for i := 0; i < 25; i++ {
		u := domain.User{Email: fmt.Sprintf("r%d@example.com", i), Password: "x", Role: domain.RoleUser}
		require.NoError(t, db.Create(&u).Error)
		ref := domain.Referral{AffiliateID: aff.ID, ReferredUserID: u.ID, Status: domain.ReferralConverted}
		require.NoError(t, db.Create(&ref).Error)
		require.NoError(t, db.Create(&domain.Commission{
			AffiliateID: aff.ID, ReferralID: ref.ID, OrderID: uint(i + 1),
			OrderTotal: decimal.NewFromInt(250), Rate: aff.CommissionRate, Amount: decimal.RequireFromString("12.5"),
			Status: domain.CommissionPaid,
		}).Error)
	}
	return aff
}

func TestPromoteAffiliatesJob(t *testing.T) {
	db := testDB(t)
	aff := seedGoldAffiliate(t, db)

	n, err := PromoteAffiliates(db, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var stored domain.Affiliate
	db.First(&stored, aff.ID)
	assert.Equal(t, domain.TierGold, stored.Tier)
}

func TestPromoteAffiliatesCountsCommittedOnly(t *testing.T) {
	db := testDB(t)
	aff := seedGoldAffiliate(t, db)
	// The promotion notice cannot be written, so the promotion rolls back
	require.NoError(t, db.Migrator().DropTable(&domain.Notification{}))

	n, err := PromoteAffiliates(db, time.Now())
	assert.Error(t, err)
	assert.Zero(t, n)

	var stored domain.Affiliate
	db.First(&stored, aff.ID)
	assert.Equal(t, domain.TierBronze, stored.Tier)
}

func TestNewRegistersJobs(t *testing.T) {
	s, err := New(testDB(t))
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 4)
}
