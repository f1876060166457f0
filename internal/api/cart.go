package api

import (
	"errors"   // Error inspection
	"net/http" // HTTP status codes

	"biosculpture/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Money amounts
	"gorm.io/gorm"                  // GORM ORM library
)

// CartLine is a cart item with its computed total
type CartLine struct {
	domain.CartItem
	LineTotal decimal.Decimal `json:"line_total"`
}

// loadCart returns the user's cart with products, creating an empty one on first use
func loadCart(tx *gorm.DB, userID uint) (*domain.Cart, error) {
	cart := domain.Cart{UserID: userID}
	if err := tx.Where("user_id = ?", userID).FirstOrCreate(&cart).Error; err != nil {
		return nil, err
	}
	if err := tx.Preload("Product").Where("cart_id = ?", cart.ID).Order("id").Find(&cart.Items).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// cartResponse renders a cart with line totals and subtotal
func cartResponse(cart *domain.Cart) gin.H {
	lines := make([]CartLine, len(cart.Items))
	subtotal := decimal.Zero
	count := 0
	for i, item := range cart.Items {
		total := item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		lines[i] = CartLine{CartItem: item, LineTotal: total}
		subtotal = subtotal.Add(total)
		count += item.Quantity
	}
	return gin.H{
		"id":         cart.ID,
		"items":      lines,
		"item_count": count,
		"subtotal":   domain.RoundMoney(subtotal),
	}
}

// couponLines converts cart items into coupon evaluation lines
func couponLines(items []domain.CartItem) []domain.CouponLine {
	out := make([]domain.CouponLine, len(items))
	for i, item := range items {
		line := domain.CouponLine{
			ProductID: item.ProductID,
			Subtotal:  item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))),
		}
		if item.Product.CategoryID != nil {
			line.CategoryID = *item.Product.CategoryID
		}
		out[i] = line
	}
	return out
}

// checkAvailable verifies quantity of product can be bought
func checkAvailable(p *domain.Product, quantity int) error {
	if !p.Active {
		return domain.Rule("%s is not available", p.Name)
	}
	if quantity > p.Stock {
		return domain.Rule("only %d of %s in stock", p.Stock, p.Name)
	}
	return nil
}

// GetCartHandler returns the caller's cart
func GetCartHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		cart, err := loadCart(db, currentUserID(c))
		if err != nil {
			respondError(c, err, "Failed to load cart")
			return
		}
		c.JSON(http.StatusOK, gin.H{"cart": cartResponse(cart)})
	}
}

// AddCartItemRequest adds quantity of a product
type AddCartItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,gt=0"`
}

// AddCartItemHandler adds a product to the cart, merging with an existing line
func AddCartItemHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddCartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		var cart *domain.Cart
		err := db.Transaction(func(tx *gorm.DB) error {
			var product domain.Product
			if err := tx.First(&product, req.ProductID).Error; err != nil {
				return err
			}
			var err error
			if cart, err = loadCart(tx, currentUserID(c)); err != nil {
				return err
			}
			var item domain.CartItem
			err = tx.Where("cart_id = ? AND product_id = ?", cart.ID, product.ID).First(&item).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := checkAvailable(&product, req.Quantity); err != nil {
					return err
				}
				item = domain.CartItem{CartID: cart.ID, ProductID: product.ID, Quantity: req.Quantity}
				if err := tx.Create(&item).Error; err != nil {
					return err
				}
			case err != nil:
				return err
			default:
				if err := checkAvailable(&product, item.Quantity+req.Quantity); err != nil {
					return err
				}
				if err := tx.Model(&item).Update("quantity", item.Quantity+req.Quantity).Error; err != nil {
					return err
				}
			}
			cart, err = loadCart(tx, currentUserID(c))
			return err
		})
		if err != nil {
			respondError(c, err, "Failed to add to cart")
			return
		}
		c.JSON(http.StatusOK, gin.H{"cart": cartResponse(cart)})
	}
}

// UpdateCartItemRequest sets a line quantity; zero removes it
type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// UpdateCartItemHandler changes the quantity of one line
func UpdateCartItemHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req UpdateCartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		if *req.Quantity < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quantity cannot be negative"})
			return
		}
		var cart *domain.Cart
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			if cart, err = loadCart(tx, currentUserID(c)); err != nil {
				return err
			}
			var item domain.CartItem
			if err := tx.Preload("Product").Where("id = ? AND cart_id = ?", id, cart.ID).First(&item).Error; err != nil {
				return err
			}
			if *req.Quantity == 0 {
				err = tx.Delete(&item).Error
			} else if err = checkAvailable(&item.Product, *req.Quantity); err == nil {
				err = tx.Model(&item).Update("quantity", *req.Quantity).Error
			}
			if err != nil {
				return err
			}
			cart, err = loadCart(tx, currentUserID(c))
			return err
		})
		if err != nil {
			respondError(c, err, "Failed to update cart")
			return
		}
		c.JSON(http.StatusOK, gin.H{"cart": cartResponse(cart)})
	}
}

// RemoveCartItemHandler deletes one line
func RemoveCartItemHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var cart *domain.Cart
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			if cart, err = loadCart(tx, currentUserID(c)); err != nil {
				return err
			}
			res := tx.Where("id = ? AND cart_id = ?", id, cart.ID).Delete(&domain.CartItem{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return domain.ErrNotFound
			}
			cart, err = loadCart(tx, currentUserID(c))
			return err
		})
		if err != nil {
			respondError(c, err, "Failed to update cart")
			return
		}
		c.JSON(http.StatusOK, gin.H{"cart": cartResponse(cart)})
	}
}

// ClearCartHandler empties the cart
func ClearCartHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		cart, err := loadCart(db, currentUserID(c))
		if err == nil {
			err = db.Where("cart_id = ?", cart.ID).Delete(&domain.CartItem{}).Error
		}
		if err != nil {
			respondError(c, err, "Failed to clear cart")
			return
		}
		cart.Items = nil
		c.JSON(http.StatusOK, gin.H{"cart": cartResponse(cart)})
	}
}
