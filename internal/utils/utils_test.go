package utils

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT(42, "admin", "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "admin", claims.Role)

	_, err = ParseJWT(token, "other-secret")
	assert.Error(t, err)
}

func TestJWTExpired(t *testing.T) {
	token, err := GenerateJWT(1, "user", "secret", -time.Minute)
	require.NoError(t, err)
	_, err = ParseJWT(token, "secret")
	assert.Error(t, err)
}

func TestParsePage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Request = httptest.NewRequest("GET", "/?page=3&page_size=10", nil)
	p := ParsePage(c)
	assert.Equal(t, Page{Page: 3, PageSize: 10}, p)
	assert.Equal(t, 20, p.Offset())
	assert.Equal(t, 3, p.TotalPages(21))

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?page=-1&page_size=1000", nil)
	assert.Equal(t, Page{Page: 1, PageSize: 20}, ParsePage(c))
}

func TestRandomCode(t *testing.T) {
	code, err := RandomCode(12)
	require.NoError(t, err)
	assert.Len(t, code, 12)
	for _, r := range code {
		assert.True(t, strings.ContainsRune(codeAlphabet, r))
	}
}

func TestHashVisitorStable(t *testing.T) {
	assert.Equal(t, HashVisitor("1.2.3.4", "ua"), HashVisitor("1.2.3.4", "ua"))
	assert.NotEqual(t, HashVisitor("1.2.3.4", "ua"), HashVisitor("1.2.3.4u", "a"))
}

func TestCacheDisabledWithNilClient(t *testing.T) {
	ctx := context.Background()
	var dest map[string]int
	found, err := GetCache(ctx, nil, "k", &dest)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, SetCache(ctx, nil, "k", 1, time.Second))
	assert.NoError(t, DeleteCache(ctx, nil, "k"))
	assert.NoError(t, DeleteCachePrefix(ctx, nil, "k"))
}
