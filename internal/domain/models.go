package domain

// Models lists every persisted model in dependency order for AutoMigrate
func Models() []any {
	return []any{
		&Role{}, &User{}, &BannedEmail{},
		&Category{}, &Product{},
		&Cart{}, &CartItem{},
		&Coupon{}, &Order{}, &OrderItem{}, &CouponUsage{},
		&Blog{}, &Comment{}, &Page{},
		&Review{},
		&PointsConfiguration{}, &PointsTransaction{}, &Reward{}, &Redemption{},
		&Affiliate{}, &AffiliateClick{}, &Referral{}, &Commission{},
		&Salon{}, &SocialMediaPost{}, &FileAsset{},
		&AuditLog{}, &Notification{}, &Certification{},
	}
}
