package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"biosculpture/internal/domain"
	"biosculpture/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func init() { gin.SetMode(gin.TestMode) }

func testDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Role{}, &domain.User{}))
	for _, r := range domain.DefaultRoles() {
		require.NoError(t, db.Create(&r).Error)
	}
	return db
}

func TestJWTAuthMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/p", JWTAuthMiddleware("s"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.GetUint("userID")})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/p", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, _ := utils.GenerateJWT(9, "user", "s", time.Hour)
	req := httptest.NewRequest("GET", "/p", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":9}`, w.Body.String())
}

func TestOptionalJWTMiddlewareLetsGuestsThrough(t *testing.T) {
	r := gin.New()
	r.GET("/p", OptionalJWTMiddleware("s"), func(c *gin.Context) {
		_, ok := c.Get("userID")
		c.JSON(http.StatusOK, gin.H{"authenticated": ok})
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/p", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	r.ServeHTTP(w, req)
	assert.JSONEq(t, `{"authenticated":false}`, w.Body.String())
}

func TestRequirePermission(t *testing.T) {
	db := testDB(t)
	editor := domain.User{Email: "ed@example.com", Password: "x", Role: domain.RoleEditor}
	require.NoError(t, db.Create(&editor).Error)

	r := gin.New()
	setUser := func(c *gin.Context) { c.Set("userID", editor.ID) }
	r.GET("/blogs", setUser, RequirePermission(db, domain.PermBlogs), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/coupons", setUser, RequirePermission(db, domain.PermCoupons), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/roles", setUser, RequireRole(db, domain.RoleSuperAdmin), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/anon", RequirePermission(db, domain.PermBlogs), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for path, want := range map[string]int{
		"/blogs":   http.StatusNoContent,
		"/coupons": http.StatusForbidden,
		"/roles":   http.StatusForbidden,
		"/anon":    http.StatusUnauthorized,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, want, w.Code, path)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	r := gin.New()
	r.GET("/p", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/p", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	rl.Cleanup(0)
	assert.Empty(t, rl.limiters)
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/p", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/p", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest("GET", "/p", nil)
	req.Header.Set("X-Request-ID", "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))
}
