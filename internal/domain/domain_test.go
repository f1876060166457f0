package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	assert.Equal(t, "gel-nails-101", Slugify("  Gel Nails: 101! "))
	assert.Equal(t, "bio-sculpture", Slugify("Bio---Sculpture"))
	assert.Equal(t, "", Slugify("!!!"))
}

func TestUniqueSlug(t *testing.T) {
	taken := map[string]bool{"post-copy": true, "post-copy-2": true}
	slug, err := UniqueSlug(func(n int) string { return CopySlug("post", n) }, func(s string) (bool, error) {
		return taken[s], nil
	})
	assert.NoError(t, err)
	assert.Equal(t, "post-copy-3", slug)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(OrderPending, OrderPaid))
	assert.True(t, CanTransition(OrderPaid, OrderCancelled))
	assert.True(t, CanTransition(OrderShipped, OrderDelivered))
	assert.False(t, CanTransition(OrderShipped, OrderCancelled))
	assert.False(t, CanTransition(OrderDelivered, OrderPending))
}

func TestShippingFor(t *testing.T) {
	flat, free := dec("8"), dec("75")
	assert.True(t, ShippingFor(dec("80"), flat, free, false).IsZero())
	assert.True(t, ShippingFor(dec("74.99"), flat, free, false).Equal(flat))
	assert.True(t, ShippingFor(dec("10"), flat, free, true).IsZero())
}

func TestDescendantIDsAndCycles(t *testing.T) {
	one, two := uint(1), uint(2)
	cats := []Category{{ID: 1}, {ID: 2, ParentID: &one}, {ID: 3, ParentID: &two}, {ID: 4}}
	assert.ElementsMatch(t, []uint{1, 2, 3}, DescendantIDs(cats, 1))
	assert.True(t, CreatesCycle(cats, 1, 3))
	assert.False(t, CreatesCycle(cats, 3, 4))
}

func TestThreadComments(t *testing.T) {
	one := uint(1)
	roots := ThreadComments([]Comment{
		{ID: 1, Content: "root"},
		{ID: 2, ParentID: &one, Content: "reply"},
		{ID: 3, Content: "other"},
	})
	assert.Len(t, roots, 2)
	assert.Len(t, roots[0].Replies, 1)
	assert.Equal(t, "reply", roots[0].Replies[0].Content)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]int{5, 4, 4, 0})
	assert.Equal(t, 3, s.TotalCount)
	assert.Equal(t, 4.3, s.AverageRating)
	assert.Equal(t, 2, s.Histogram[4])
}

func TestRoleAllows(t *testing.T) {
	editor := Role{Name: RoleEditor, Permissions: []string{PermBlogs}}
	assert.True(t, editor.Allows(PermBlogs))
	assert.False(t, editor.Allows(PermCoupons))
	assert.True(t, (&Role{Name: RoleAdmin, Permissions: []string{PermAll}}).Allows(PermCoupons))
	assert.True(t, (&Role{Name: RoleSuperAdmin}).Allows(PermUsers))
	assert.True(t, ValidPermission(PermAll))
	assert.True(t, ValidPermission(PermSalons))
	assert.False(t, ValidPermission("salons:delete"))
}

func TestPointsSelectionAndEarning(t *testing.T) {
	cfgs := DefaultPointsConfigurations()
	low := SelectConfiguration(cfgs, ActionPurchase, dec("100"))
	high := SelectConfiguration(cfgs, ActionPurchase, dec("200"))
	assert.Equal(t, 100, low.Earned(dec("100.90")))
	assert.Equal(t, 300, high.Earned(dec("200")))
	assert.Equal(t, 25, SelectConfiguration(cfgs, ActionReview, dec("0")).Earned(dec("0")))

	cfgs[2].Active = false
	assert.Nil(t, SelectConfiguration(cfgs, ActionReview, dec("0")))
	var none *PointsConfiguration
	assert.Equal(t, 0, none.Earned(dec("10")))
}

func TestBreakdown(t *testing.T) {
	d1 := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)
	d3 := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	txs := []PointsTransaction{
		{Points: 100, Type: PointsEarned, CreatedAt: d1},
		{Points: -40, Type: PointsRedeemed, CreatedAt: d2},
		{Points: 5, Type: PointsAdjusted, CreatedAt: d3},
	}
	months := Breakdown(txs, "month")
	assert.Equal(t, []PointsBucket{
		{Period: "2026-03", Earned: 100, Redeemed: 40, Net: 60},
		{Period: "2026-04", Adjusted: 5, Net: 5},
	}, months)

	assert.Len(t, Breakdown(txs, "day"), 3)
	assert.Equal(t, "2026-W10", PeriodKey(d1, "week"))
}

func TestCertificationValidAt(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	assert.True(t, (&Certification{Status: CertActive}).ValidAt(now))
	assert.False(t, (&Certification{Status: CertActive, ExpiresAt: &past}).ValidAt(now))
	assert.False(t, (&Certification{Status: CertRevoked}).ValidAt(now))
}

func TestSocialPlanValidation(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	ok := SocialMediaPost{Platform: "INSTAGRAM", Status: PostScheduled, ScheduledAt: &future}
	assert.NoError(t, ok.ValidatePlan(now))
	bad := SocialMediaPost{Platform: "INSTAGRAM", Status: PostScheduled}
	assert.Error(t, bad.ValidatePlan(now))
	assert.Error(t, (&SocialMediaPost{Platform: "MYSPACE", Status: PostDraft}).ValidatePlan(now))
}

func TestSalonFullAddress(t *testing.T) {
	s := Salon{Address: "1 Main St", City: "Cape Town", Country: "South Africa"}
	assert.Equal(t, "1 Main St, Cape Town, South Africa", s.FullAddress())
}
