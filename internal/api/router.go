package api

import (
	"biosculpture/internal/config"     // Application configuration
	"biosculpture/internal/domain"     // Permission names
	"biosculpture/internal/geocode"    // Address lookup
	"biosculpture/internal/metrics"    // Prometheus exposition
	"biosculpture/internal/middleware" // Auth, permissions, logging and rate limiting

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/gorm"                 // GORM ORM library
)

// Deps holds everything the handlers need
type Deps struct {
	DB       *gorm.DB
	Redis    *redis.Client // Nil disables caching
	Config   *config.Config
	Geocoder geocode.Geocoder
	Verifier IdentityVerifier        // Nil disables Google sign-in
	Limiter  *middleware.RateLimiter // Shared by the rate limited routes
}

// NewRouter builds the gin engine with every route registered
func NewRouter(d Deps) *gin.Engine {
	cfg := d.Config
	if d.Geocoder == nil {
		d.Geocoder = geocode.New(cfg.GeocoderURL, cfg.GeocoderKey)
	}
	if d.Limiter == nil {
		d.Limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	db, rdb, ttl := d.DB, d.Redis, cfg.CacheTTL

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), debugErrors(!cfg.IsProd))
	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		logrus.WithError(err).Warn("Invalid trusted proxies, trusting none")
		_ = r.SetTrustedProxies(nil)
	}
	r.MaxMultipartMemory = 8 << 20

	r.GET("/health", HealthHandler(db, rdb))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.Group("/uploads", uploadHeaders).Static("", cfg.UploadDir)

	limited := d.Limiter.Middleware()
	jwtAuth := middleware.JWTAuthMiddleware(cfg.JWTSecret)

	// Public storefront
	api := r.Group("/api")
	{
		api.POST("/auth/register", limited, RegisterHandler(db, rdb, cfg))
		api.POST("/auth/login", limited, LoginHandler(db, cfg))
		api.POST("/auth/google", limited, GoogleLoginHandler(db, cfg, d.Verifier))

		api.GET("/categories", ListCategoriesHandler(db, rdb, ttl))
		api.GET("/categories/:slug", GetCategoryHandler(db))
		api.GET("/products", ListProductsHandler(db, rdb, ttl))
		api.GET("/products/:slug", GetProductHandler(db))
		api.GET("/products/:slug/reviews", ListProductReviewsHandler(db))

		api.GET("/blogs", ListBlogsHandler(db, rdb, ttl))
		api.GET("/blogs/:slug", GetBlogHandler(db))
		api.GET("/blogs/:slug/comments", ListBlogCommentsHandler(db))
		api.POST("/blogs/:slug/comments", limited, middleware.OptionalJWTMiddleware(cfg.JWTSecret), CreateCommentHandler(db))

		api.GET("/rewards", ListRewardsHandler(db))
		api.GET("/affiliates/click/:code", limited, TrackClickHandler(db, cfg.StorefrontURL))
		api.GET("/salons", ListSalonsHandler(db))
		api.GET("/salons/:id", GetSalonHandler(db))
		api.GET("/gallery", GalleryHandler(db))
		api.GET("/pages/:slug", GetPageHandler(db))
		api.GET("/certifications/verify/:number", VerifyCertificationHandler(db))
	}

	// Signed-in customers
	authed := r.Group("/api", jwtAuth)
	{
		authed.GET("/me", MeHandler(db))
		authed.PATCH("/me", UpdateMeHandler(db))
		authed.PUT("/me/password", ChangePasswordHandler(db))

		authed.GET("/cart", GetCartHandler(db))
		authed.DELETE("/cart", ClearCartHandler(db))
		authed.POST("/cart/items", AddCartItemHandler(db))
		authed.PATCH("/cart/items/:id", UpdateCartItemHandler(db))
		authed.DELETE("/cart/items/:id", RemoveCartItemHandler(db))

		authed.POST("/coupons/validate", ValidateCouponHandler(db))
		authed.POST("/orders", CheckoutHandler(db, cfg))
		authed.GET("/orders", ListMyOrdersHandler(db))
		authed.GET("/orders/:id", GetMyOrderHandler(db))
		authed.POST("/orders/:id/cancel", CancelMyOrderHandler(db))

		authed.POST("/products/:slug/reviews", limited, CreateReviewHandler(db))

		authed.GET("/points", GetPointsHandler(db))
		authed.GET("/points/breakdown", PointsBreakdownHandler(db))
		authed.POST("/rewards/:id/redeem", RedeemRewardHandler(db))
		authed.GET("/redemptions", ListMyRedemptionsHandler(db))

		authed.POST("/affiliate", ApplyAffiliateHandler(db))
		authed.GET("/affiliate", GetMyAffiliateHandler(db))
		authed.GET("/affiliate/referrals", ListMyReferralsHandler(db))
		authed.GET("/affiliate/commissions", ListMyCommissionsHandler(db))
		authed.GET("/affiliate/analytics", MyAffiliateAnalyticsHandler(db))

		authed.POST("/salons", SubmitSalonHandler(db, d.Geocoder))
		authed.GET("/salons/mine", ListMySalonsHandler(db))
		authed.PATCH("/salons/:id", UpdateMySalonHandler(db, d.Geocoder))

		authed.GET("/certifications", ListMyCertificationsHandler(db))

		authed.GET("/notifications", ListNotificationsHandler(db))
		authed.POST("/notifications/read-all", MarkAllNotificationsReadHandler(db))
		authed.POST("/notifications/:id/read", MarkNotificationReadHandler(db))
	}

	// Back office
	admin := r.Group("/api/admin", jwtAuth)
	perm := func(p string) *gin.RouterGroup {
		return admin.Group("", middleware.RequirePermission(db, p))
	}

	users := perm(domain.PermUsers)
	{
		users.GET("/users", ListUsersHandler(db, rdb, ttl))
		users.GET("/users/:id", GetUserHandler(db))
		users.PATCH("/users/:id", UpdateUserHandler(db, rdb))
		users.DELETE("/users/:id", DeleteUserHandler(db, rdb))
		users.GET("/banned-emails", ListBannedEmailsHandler(db))
		users.POST("/banned-emails", BanEmailHandler(db))
		users.DELETE("/banned-emails/:id", UnbanEmailHandler(db))
		users.POST("/notifications", SendNotificationHandler(db))
	}

	roles := admin.Group("/roles", middleware.RequireRole(db, domain.RoleSuperAdmin))
	{
		roles.GET("", ListRolesHandler(db))
		roles.POST("", CreateRoleHandler(db))
		roles.PATCH("/:id", UpdateRoleHandler(db))
		roles.DELETE("/:id", DeleteRoleHandler(db))
	}

	perm(domain.PermAudit).GET("/audit-logs", ListAuditLogsHandler(db))

	products := perm(domain.PermProducts)
	{
		products.GET("/categories", AdminListCategoriesHandler(db))
		products.POST("/categories", CreateCategoryHandler(db, rdb))
		products.PATCH("/categories/:id", UpdateCategoryHandler(db, rdb))
		products.DELETE("/categories/:id", DeleteCategoryHandler(db, rdb))
		products.GET("/products", AdminListProductsHandler(db))
		products.GET("/products/:id", AdminGetProductHandler(db))
		products.POST("/products", CreateProductHandler(db, rdb))
		products.PATCH("/products/:id", UpdateProductHandler(db, rdb))
		products.DELETE("/products/:id", DeleteProductHandler(db, rdb))
	}

	orders := perm(domain.PermOrders)
	{
		orders.GET("/orders", AdminListOrdersHandler(db))
		orders.GET("/orders/:id", AdminGetOrderHandler(db))
		orders.PATCH("/orders/:id/status", UpdateOrderStatusHandler(db))
	}

	coupons := perm(domain.PermCoupons)
	{
		coupons.GET("/coupons", ListCouponsHandler(db))
		coupons.GET("/coupons/analytics", CouponsOverviewHandler(db))
		coupons.POST("/coupons", CreateCouponHandler(db))
		coupons.GET("/coupons/:id", GetCouponHandler(db))
		coupons.PATCH("/coupons/:id", UpdateCouponHandler(db))
		coupons.DELETE("/coupons/:id", DeleteCouponHandler(db))
		coupons.POST("/coupons/:id/duplicate", DuplicateCouponHandler(db))
		coupons.GET("/coupons/:id/analytics", CouponAnalyticsHandler(db))
	}

	blogs := perm(domain.PermBlogs)
	{
		blogs.GET("/blogs", AdminListBlogsHandler(db))
		blogs.GET("/blogs/:id", AdminGetBlogHandler(db))
		blogs.POST("/blogs", CreateBlogHandler(db, rdb))
		blogs.PATCH("/blogs/:id", UpdateBlogHandler(db, rdb))
		blogs.DELETE("/blogs/:id", DeleteBlogHandler(db, rdb))
		blogs.POST("/blogs/:id/duplicate", DuplicateBlogHandler(db))
	}

	comments := perm(domain.PermComments)
	{
		comments.GET("/comments", AdminListCommentsHandler(db))
		comments.PATCH("/comments/:id/status", ModerateCommentHandler(db))
		comments.DELETE("/comments/:id", DeleteCommentHandler(db))
	}

	reviews := perm(domain.PermReviews)
	{
		reviews.GET("/reviews", AdminListReviewsHandler(db))
		reviews.PATCH("/reviews/:id/status", ModerateReviewHandler(db))
		reviews.DELETE("/reviews/:id", DeleteReviewHandler(db))
	}

	pages := perm(domain.PermPages)
	{
		pages.GET("/pages", AdminListPagesHandler(db))
		pages.GET("/pages/:id", AdminGetPageHandler(db))
		pages.POST("/pages", CreatePageHandler(db))
		pages.PATCH("/pages/:id", UpdatePageHandler(db))
		pages.DELETE("/pages/:id", DeletePageHandler(db))
	}

	rewards := perm(domain.PermRewards)
	{
		rewards.GET("/points-configurations", ListPointsConfigsHandler(db))
		rewards.POST("/points-configurations", CreatePointsConfigHandler(db))
		rewards.PATCH("/points-configurations/:id", UpdatePointsConfigHandler(db))
		rewards.DELETE("/points-configurations/:id", DeletePointsConfigHandler(db))
		rewards.GET("/rewards", ListAllRewardsHandler(db))
		rewards.POST("/rewards", CreateRewardHandler(db))
		rewards.PATCH("/rewards/:id", UpdateRewardHandler(db))
		rewards.DELETE("/rewards/:id", DeleteRewardHandler(db))
		rewards.GET("/redemptions", AdminListRedemptionsHandler(db))
		rewards.POST("/users/:id/points", AdjustPointsHandler(db))
	}

	affiliates := perm(domain.PermAffiliates)
	{
		affiliates.GET("/affiliates", AdminListAffiliatesHandler(db))
		affiliates.GET("/affiliates/:id", AdminGetAffiliateHandler(db))
		affiliates.PATCH("/affiliates/:id", UpdateAffiliateHandler(db))
		affiliates.POST("/affiliates/:id/promote", PromoteAffiliateHandler(db))
		affiliates.GET("/affiliates/:id/analytics", AdminAffiliateAnalyticsHandler(db))
		affiliates.GET("/commissions", AdminListCommissionsHandler(db))
		affiliates.PATCH("/commissions/:id/status", UpdateCommissionStatusHandler(db))
	}

	salons := perm(domain.PermSalons)
	{
		salons.GET("/salons", AdminListSalonsHandler(db))
		salons.PATCH("/salons/:id/status", UpdateSalonStatusHandler(db))
		salons.POST("/salons/:id/geocode", GeocodeSalonHandler(db, d.Geocoder))
		salons.DELETE("/salons/:id", DeleteSalonHandler(db))
	}

	social := perm(domain.PermSocial)
	{
		social.GET("/social-posts", ListSocialPostsHandler(db))
		social.GET("/social-posts/:id", GetSocialPostHandler(db))
		social.POST("/social-posts", CreateSocialPostHandler(db))
		social.PATCH("/social-posts/:id", UpdateSocialPostHandler(db))
		social.DELETE("/social-posts/:id", DeleteSocialPostHandler(db))
		social.POST("/social-posts/:id/posted", MarkPostedHandler(db))
	}

	files := perm(domain.PermFiles)
	{
		files.POST("/files", UploadFileHandler(db, cfg))
		files.GET("/files", ListFilesHandler(db))
		files.GET("/files/folders", ListFoldersHandler(db))
		files.PATCH("/files/:id", UpdateFileHandler(db))
		files.DELETE("/files/:id", DeleteFileHandler(db, cfg))
	}

	certs := perm(domain.PermCertifications)
	{
		certs.GET("/certifications", AdminListCertificationsHandler(db))
		certs.GET("/certifications/:id", AdminGetCertificationHandler(db))
		certs.POST("/certifications", IssueCertificationHandler(db))
		certs.PATCH("/certifications/:id", UpdateCertificationHandler(db))
		certs.DELETE("/certifications/:id", DeleteCertificationHandler(db))
	}

	return r
}
