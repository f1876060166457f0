package api

import (
	"errors"   // Error inspection
	"fmt"      // Message formatting
	"net/http" // HTTP status codes
	"strings"  // String manipulation
	"time"     // Order numbers

	"biosculpture/internal/config"  // Configuration
	"biosculpture/internal/domain"  // Importing domain models
	"biosculpture/internal/metrics" // Business counters
	"biosculpture/internal/service" // Shared side effects
	"biosculpture/internal/utils"   // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Money amounts
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

// CheckoutRequest carries the shipping details and an optional coupon
type CheckoutRequest struct {
	CouponCode  string `json:"coupon_code"`
	ShipName    string `json:"ship_name" binding:"required"`
	ShipAddress string `json:"ship_address" binding:"required"`
	ShipCity    string `json:"ship_city" binding:"required"`
	ShipPostal  string `json:"ship_postal"`
	ShipCountry string `json:"ship_country" binding:"required"`
	ShipPhone   string `json:"ship_phone"`
	Notes       string `json:"notes"`
}

// newOrderNumber returns a readable unique order reference
func newOrderNumber(now time.Time) (string, error) {
	code, err := utils.RandomCode(6)
	if err != nil {
		return "", err
	}
	return "BS-" + now.UTC().Format("20060102") + "-" + code, nil
}

// evaluateCoupon loads code and checks it against the user's history and cart lines
func evaluateCoupon(tx *gorm.DB, code string, userID uint, lines []domain.CouponLine) (*domain.Coupon, domain.CouponResult, error) {
	var coupon domain.Coupon
	if err := tx.Where("code = ?", domain.NormalizeCode(code)).First(&coupon).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.CouponResult{}, domain.Rule("invalid coupon code")
		}
		return nil, domain.CouponResult{}, err
	}
	in := domain.CouponContext{Now: time.Now().UTC(), UserID: userID, Lines: lines}
	if err := tx.Model(&domain.CouponUsage{}).Where("coupon_id = ? AND user_id = ?", coupon.ID, userID).Count(&in.UserUses).Error; err != nil {
		return nil, domain.CouponResult{}, err
	}
	if err := tx.Model(&domain.Order{}).Where("user_id = ? AND status <> ?", userID, domain.OrderCancelled).Count(&in.PriorOrders).Error; err != nil {
		return nil, domain.CouponResult{}, err
	}
	res, err := coupon.Evaluate(in)
	return &coupon, res, err
}

// CheckoutHandler turns the caller's cart into a pending order in one transaction
func CheckoutHandler(db *gorm.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		userID := currentUserID(c)
		var order domain.Order
		couponType := ""
		err := db.Transaction(func(tx *gorm.DB) error {
			var user domain.User
			if err := tx.First(&user, userID).Error; err != nil {
				return err
			}
			cart, err := loadCart(tx, userID)
			if err != nil {
				return err
			}
			if len(cart.Items) == 0 {
				return domain.Rule("cart is empty")
			}

			subtotal := decimal.Zero
			items := make([]domain.OrderItem, 0, len(cart.Items))
			for _, it := range cart.Items {
				if err := checkAvailable(&it.Product, it.Quantity); err != nil {
					return err
				}
				line := it.Product.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
				subtotal = subtotal.Add(line)
				items = append(items, domain.OrderItem{
					ProductID:   it.ProductID,
					ProductName: it.Product.Name,
					SKU:         it.Product.SKU,
					UnitPrice:   it.Product.Price,
					Quantity:    it.Quantity,
					LineTotal:   line,
				})
			}

			discount := decimal.Zero
			freeShipping := false
			var coupon *domain.Coupon
			if strings.TrimSpace(req.CouponCode) != "" {
				var res domain.CouponResult
				if coupon, res, err = evaluateCoupon(tx, req.CouponCode, userID, couponLines(cart.Items)); err != nil {
					return err
				}
				discount, freeShipping = res.Discount, res.FreeShipping
			}
			merchandise := subtotal.Sub(discount)
			shipping := domain.ShippingFor(merchandise, cfg.ShippingFlatRate, cfg.FreeShippingThreshold, freeShipping)

			number, err := newOrderNumber(time.Now())
			if err != nil {
				return err
			}
			order = domain.Order{
				Number:      number,
				UserID:      userID,
				Status:      domain.OrderPending,
				Subtotal:    domain.RoundMoney(subtotal),
				Discount:    discount,
				Shipping:    shipping,
				Total:       domain.RoundMoney(merchandise.Add(shipping)),
				ShipName:    strings.TrimSpace(req.ShipName),
				ShipAddress: strings.TrimSpace(req.ShipAddress),
				ShipCity:    strings.TrimSpace(req.ShipCity),
				ShipPostal:  strings.TrimSpace(req.ShipPostal),
				ShipCountry: strings.TrimSpace(req.ShipCountry),
				ShipPhone:   strings.TrimSpace(req.ShipPhone),
				Notes:       req.Notes,
				Items:       items,
			}
			if coupon != nil {
				order.CouponID = &coupon.ID
				order.CouponCode = coupon.Code
			}
			if err := tx.Create(&order).Error; err != nil {
				return err
			}

			// Conditional decrements guard against concurrent checkouts
			for _, it := range items {
				res := tx.Model(&domain.Product{}).Where("id = ? AND stock >= ?", it.ProductID, it.Quantity).
					Update("stock", gorm.Expr("stock - ?", it.Quantity))
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return domain.Rule("%s is out of stock", it.ProductName)
				}
			}
			if coupon != nil {
				res := tx.Model(&domain.Coupon{}).
					Where("id = ? AND active = ? AND (usage_limit = 0 OR used_count < usage_limit)", coupon.ID, true).
					Update("used_count", gorm.Expr("used_count + 1"))
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return domain.Rule("coupon usage limit reached")
				}
				if err := tx.Create(&domain.CouponUsage{CouponID: coupon.ID, UserID: userID, OrderID: order.ID, Discount: discount}).Error; err != nil {
					return err
				}
				couponType = coupon.Type
			}

			commission, err := service.CommissionFor(tx, &user, order.ID, merchandise)
			if err != nil {
				return err
			}
			if commission != nil {
				if err := tx.Create(commission).Error; err != nil {
					return err
				}
			}
			if err := tx.Where("cart_id = ?", cart.ID).Delete(&domain.CartItem{}).Error; err != nil {
				return err
			}
			return service.Notify(tx, userID, service.NotifyOrder, "Order "+order.Number+" received",
				fmt.Sprintf("We received your order totalling %s.", order.Total.StringFixed(2)), fmt.Sprintf("/orders/%d", order.ID))
		})
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"user_id": userID,
				"coupon":  req.CouponCode,
				"error":   err.Error(),
			}).Warn("Checkout failed")
			respondError(c, err, "Checkout failed")
			return
		}
		metrics.RecordOrder(couponType)
		logrus.WithFields(logrus.Fields{
			"order_id": order.ID,
			"number":   order.Number,
			"user_id":  userID,
			"total":    order.Total.StringFixed(2),
			"coupon":   order.CouponCode,
		}).Info("Order placed")
		c.JSON(http.StatusCreated, gin.H{"order": order})
	}
}

// listOrders applies paging to query and writes the response
func listOrders(c *gin.Context, query *gorm.DB) {
	p := utils.ParsePage(c)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, err, "Failed to count orders")
		return
	}
	var orders []domain.Order
	if err := query.Preload("Items").Order("created_at desc, id desc").Offset(p.Offset()).Limit(p.PageSize).Find(&orders).Error; err != nil {
		respondError(c, err, "Failed to fetch orders")
		return
	}
	c.JSON(http.StatusOK, utils.Paginated("orders", orders, p, total))
}

// ListMyOrdersHandler returns the caller's orders
func ListMyOrdersHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := db.Model(&domain.Order{}).Where("user_id = ?", currentUserID(c))
		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", status)
		}
		listOrders(c, query)
	}
}

// GetMyOrderHandler returns one of the caller's orders
func GetMyOrderHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var order domain.Order
		if err := db.Preload("Items").Where("id = ? AND user_id = ?", id, currentUserID(c)).First(&order).Error; err != nil {
			notFound(c, "Order")
			return
		}
		c.JSON(http.StatusOK, gin.H{"order": order})
	}
}

// CancelMyOrderHandler lets a customer cancel a pending order
func CancelMyOrderHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var order domain.Order
		if err := db.Preload("Items").Where("id = ? AND user_id = ?", id, currentUserID(c)).First(&order).Error; err != nil {
			notFound(c, "Order")
			return
		}
		if order.Status != domain.OrderPending {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Only pending orders can be cancelled"})
			return
		}
		if err := db.Transaction(func(tx *gorm.DB) error {
			return service.TransitionOrder(tx, &order, domain.OrderCancelled)
		}); err != nil {
			respondError(c, err, "Failed to cancel order")
			return
		}
		c.JSON(http.StatusOK, gin.H{"order": order})
	}
}

// AdminListOrdersHandler returns all orders filtered by status and user
func AdminListOrdersHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := db.Model(&domain.Order{})
		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", status)
		}
		if userID, ok := queryUint(c, "user_id"); ok {
			query = query.Where("user_id = ?", userID)
		}
		if q := c.Query("q"); q != "" {
			query = query.Where("number LIKE ? OR ship_name LIKE ?", likePattern(q), likePattern(q))
		}
		listOrders(c, query)
	}
}

// AdminGetOrderHandler returns any order with its customer
func AdminGetOrderHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var order domain.Order
		if err := db.Preload("Items").First(&order, id).Error; err != nil {
			notFound(c, "Order")
			return
		}
		var customer domain.User
		db.First(&customer, order.UserID)
		var commission *domain.Commission
		var com domain.Commission
		if err := db.Where("order_id = ?", order.ID).First(&com).Error; err == nil {
			commission = &com
		}
		c.JSON(http.StatusOK, gin.H{"order": order, "customer": customer, "commission": commission})
	}
}

// OrderStatusRequest is the body of a status change
type OrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateOrderStatusHandler advances an order along its lifecycle
func UpdateOrderStatusHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req OrderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		var order domain.Order
		if err := db.Preload("Items").First(&order, id).Error; err != nil {
			notFound(c, "Order")
			return
		}
		from := order.Status
		to := strings.ToUpper(req.Status)
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := service.TransitionOrder(tx, &order, to); err != nil {
				return err
			}
			return recordAudit(tx, c, "status", "order", order.ID, gin.H{"from": from, "to": to})
		})
		if err != nil {
			respondError(c, err, "Failed to update order")
			return
		}
		c.JSON(http.StatusOK, gin.H{"order": order})
	}
}
