package api

import (
	"net/http"
	"testing"

	"biosculpture/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shipTo = CheckoutRequest{ShipName: "Ana", ShipAddress: "1 Main St", ShipCity: "Lisbon", ShipCountry: "PT"}

func (e *testEnv) stock(id uint) int {
	var p domain.Product
	require.NoError(e.t, e.db.First(&p, id).Error)
	return p.Stock
}

func TestCheckoutPlacesOrder(t *testing.T) {
	e := newEnv(t)
	customer := e.user("c@example.com", domain.RoleUser)
	tok := e.token(customer)
	gel := e.product("builder-gel", 20, 5)

	w := e.do("POST", "/api/cart/items", AddCartItemRequest{ProductID: gel.ID, Quantity: 2}, tok)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do("POST", "/api/orders", shipTo, tok)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode[struct {
		Order domain.Order `json:"order"`
	}](t, w).Order
	assert.Equal(t, domain.OrderPending, order.Status)
	assert.True(t, decimal.NewFromInt(40).Equal(order.Subtotal))
	assert.True(t, decimal.NewFromInt(10).Equal(order.Shipping))
	assert.True(t, decimal.NewFromInt(50).Equal(order.Total))
	require.Len(t, order.Items, 1)
	assert.Equal(t, 3, e.stock(gel.ID))

	// The cart is emptied
	w = e.do("GET", "/api/cart", nil, tok)
	cart := decode[map[string]map[string]any](t, w)["cart"]
	assert.Equal(t, float64(0), cart["item_count"])

	w = e.do("POST", "/api/orders", shipTo, tok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCartRejectsQuantityAboveStock(t *testing.T) {
	e := newEnv(t)
	tok := e.token(e.user("c@example.com", domain.RoleUser))
	gel := e.product("gel", 20, 1)

	w := e.do("POST", "/api/cart/items", AddCartItemRequest{ProductID: gel.ID, Quantity: 2}, tok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do("POST", "/api/cart/items", AddCartItemRequest{ProductID: 999, Quantity: 1}, tok)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckoutWithExhaustedCouponLeavesStock(t *testing.T) {
	e := newEnv(t)
	tok := e.token(e.user("c@example.com", domain.RoleUser))
	gel := e.product("gel", 30, 4)
	coupon := domain.Coupon{Code: "ONCE", Type: domain.CouponFixed, Value: decimal.NewFromInt(5), UsageLimit: 1, UsedCount: 1,
		Active: true, ProductIDs: []uint{}, CategoryIDs: []uint{}}
	require.NoError(t, e.db.Create(&coupon).Error)

	require.Equal(t, http.StatusOK, e.do("POST", "/api/cart/items", AddCartItemRequest{ProductID: gel.ID, Quantity: 1}, tok).Code)
	req := shipTo
	req.CouponCode = "once"
	w := e.do("POST", "/api/orders", req, tok)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, 4, e.stock(gel.ID))

	var orders int64
	e.db.Model(&domain.Order{}).Count(&orders)
	assert.Zero(t, orders)
}

func TestCheckoutAppliesPercentageCoupon(t *testing.T) {
	e := newEnv(t)
	tok := e.token(e.user("c@example.com", domain.RoleUser))
	gel := e.product("gel", 60, 4)
	coupon := domain.Coupon{Code: "TENOFF", Type: domain.CouponPercentage, Value: decimal.NewFromInt(10), Active: true,
		ProductIDs: []uint{}, CategoryIDs: []uint{}}
	require.NoError(t, e.db.Create(&coupon).Error)
	require.Equal(t, http.StatusOK, e.do("POST", "/api/cart/items", AddCartItemRequest{ProductID: gel.ID, Quantity: 2}, tok).Code)

	w := e.do("POST", "/api/coupons/validate", ValidateCouponRequest{Code: "tenoff"}, tok)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	req := shipTo
	req.CouponCode = "TENOFF"
	w = e.do("POST", "/api/orders", req, tok)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode[struct {
		Order domain.Order `json:"order"`
	}](t, w).Order
	assert.True(t, decimal.NewFromInt(12).Equal(order.Discount), order.Discount.String())
	// 108 after discount clears the free shipping threshold
	assert.True(t, order.Shipping.IsZero())
	assert.True(t, decimal.NewFromInt(108).Equal(order.Total))

	require.NoError(t, e.db.First(&coupon, coupon.ID).Error)
	assert.Equal(t, 1, coupon.UsedCount)
}

func TestOrderLifecycleAwardsPointsOnDelivery(t *testing.T) {
	e := newEnv(t)
	customer := e.user("c@example.com", domain.RoleUser)
	admin := e.user("a@example.com", domain.RoleAdmin)
	tok, adminTok := e.token(customer), e.token(admin)
	gel := e.product("gel", 25, 10)

	require.Equal(t, http.StatusOK, e.do("POST", "/api/cart/items", AddCartItemRequest{ProductID: gel.ID, Quantity: 2}, tok).Code)
	w := e.do("POST", "/api/orders", shipTo, tok)
	require.Equal(t, http.StatusCreated, w.Code)
	order := decode[struct {
		Order domain.Order `json:"order"`
	}](t, w).Order
	path := "/api/admin/orders/" + itoa(order.ID) + "/status"

	assert.Equal(t, http.StatusBadRequest, e.do("PATCH", path, OrderStatusRequest{Status: "delivered"}, adminTok).Code)
	for _, s := range []string{"paid", "shipped", "delivered"} {
		w = e.do("PATCH", path, OrderStatusRequest{Status: s}, adminTok)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	var u domain.User
	require.NoError(t, e.db.First(&u, customer.ID).Error)
	assert.Equal(t, 50, u.PointsBalance) // One point per unit spent on 50

	assert.Equal(t, http.StatusBadRequest, e.do("POST", "/api/orders/"+itoa(order.ID)+"/cancel", nil, tok).Code)
}

func TestCancelRestocks(t *testing.T) {
	e := newEnv(t)
	tok := e.token(e.user("c@example.com", domain.RoleUser))
	gel := e.product("gel", 25, 3)
	require.Equal(t, http.StatusOK, e.do("POST", "/api/cart/items", AddCartItemRequest{ProductID: gel.ID, Quantity: 3}, tok).Code)
	w := e.do("POST", "/api/orders", shipTo, tok)
	require.Equal(t, http.StatusCreated, w.Code)
	order := decode[struct {
		Order domain.Order `json:"order"`
	}](t, w).Order
	assert.Equal(t, 0, e.stock(gel.ID))

	w = e.do("POST", "/api/orders/"+itoa(order.ID)+"/cancel", nil, tok)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 3, e.stock(gel.ID))

	other := e.token(e.user("other@example.com", domain.RoleUser))
	assert.Equal(t, http.StatusNotFound, e.do("GET", "/api/orders/"+itoa(order.ID), nil, other).Code)
}

func TestCouponAdministration(t *testing.T) {
	e := newEnv(t)
	adminTok := e.token(e.user("a@example.com", domain.RoleAdmin))
	code, typ, value := "spring", domain.CouponPercentage, decimal.NewFromInt(15)

	w := e.do("POST", "/api/admin/coupons", CouponRequest{Code: &code, Type: &typ, Value: &value}, adminTok)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[struct {
		Coupon domain.Coupon `json:"coupon"`
	}](t, w).Coupon
	assert.Equal(t, "SPRING", created.Code)

	assert.Equal(t, http.StatusConflict, e.do("POST", "/api/admin/coupons", CouponRequest{Code: &code, Type: &typ, Value: &value}, adminTok).Code)

	over := decimal.NewFromInt(150)
	assert.Equal(t, http.StatusBadRequest, e.do("PATCH", "/api/admin/coupons/"+itoa(created.ID), CouponRequest{Value: &over}, adminTok).Code)

	w = e.do("POST", "/api/admin/coupons/"+itoa(created.ID)+"/duplicate", nil, adminTok)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	clone := decode[struct {
		Coupon domain.Coupon `json:"coupon"`
	}](t, w).Coupon
	assert.Equal(t, "SPRING-COPY", clone.Code)
	assert.False(t, clone.Active)
	assert.Zero(t, clone.UsedCount)

	assert.Equal(t, http.StatusOK, e.do("GET", "/api/admin/coupons/analytics", nil, adminTok).Code)
	assert.Equal(t, http.StatusOK, e.do("GET", "/api/admin/coupons/"+itoa(created.ID)+"/analytics", nil, adminTok).Code)
	assert.Equal(t, http.StatusOK, e.do("DELETE", "/api/admin/coupons/"+itoa(clone.ID), nil, adminTok).Code)
}
