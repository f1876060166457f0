package api

import (
	"net/http"
	"testing"

	"biosculpture/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func (e *testEnv) notifications(userID uint) int64 {
	var n int64
	require.NoError(e.t, e.db.Model(&domain.Notification{}).Where("user_id = ?", userID).Count(&n).Error)
	return n
}

type blogBody struct {
	Blog domain.Blog `json:"blog"`
}

func TestBlogPublishAndDuplicate(t *testing.T) {
	e := newEnv(t)
	editorTok := e.token(e.user("e@example.com", domain.RoleEditor))

	w := e.do("POST", "/api/admin/blogs", BlogRequest{
		Title:   strPtr("Spring Nail Trends"),
		Content: strPtr("Pastels are back."),
		Tags:    []string{"Trends", " spring "},
		Status:  strPtr("published"),
	}, editorTok)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	blog := decode[blogBody](t, w).Blog
	assert.Equal(t, "spring-nail-trends", blog.Slug)
	assert.Equal(t, []string{"trends", "spring"}, blog.Tags)
	require.NotNil(t, blog.PublishedAt)

	w = e.do("GET", "/api/blogs?tag=trends", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Blogs []domain.Blog `json:"blogs"`
		Total int64         `json:"total"`
	}](t, w)
	assert.Equal(t, int64(1), list.Total)

	w = e.do("GET", "/api/blogs/spring-nail-trends", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[blogBody](t, w).Blog.ViewCount)

	dup := "/api/admin/blogs/" + itoa(blog.ID) + "/duplicate"
	w = e.do("POST", dup, nil, editorTok)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode[blogBody](t, w).Blog
	assert.Equal(t, "spring-nail-trends-copy", first.Slug)
	assert.Equal(t, "Spring Nail Trends (Copy)", first.Title)
	assert.Equal(t, domain.StatusDraft, first.Status)
	assert.Nil(t, first.PublishedAt)

	w = e.do("POST", dup, nil, editorTok)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "spring-nail-trends-copy-2", decode[blogBody](t, w).Blog.Slug)

	// Drafts stay hidden from the storefront
	assert.Equal(t, http.StatusNotFound, e.do("GET", "/api/blogs/spring-nail-trends-copy", nil, "").Code)
	assert.Equal(t, http.StatusConflict, e.do("POST", "/api/admin/blogs", BlogRequest{Title: strPtr("Spring Nail Trends")}, editorTok).Code)
}

func TestCommentModeration(t *testing.T) {
	e := newEnv(t)
	admin := e.user("a@example.com", domain.RoleAdmin)
	reader := e.user("r@example.com", domain.RoleUser)
	adminTok := e.token(admin)
	blog := domain.Blog{Title: "Care", Slug: "care", Status: domain.StatusPublished, Tags: []string{}, AuthorID: admin.ID}
	require.NoError(t, e.db.Create(&blog).Error)

	// Guests must identify themselves
	w := e.do("POST", "/api/blogs/care/comments", CommentRequest{Content: "Nice"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do("POST", "/api/blogs/care/comments", CommentRequest{Content: "Very helpful"}, e.token(reader))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	comment := decode[struct {
		Comment domain.Comment `json:"comment"`
	}](t, w).Comment
	assert.Equal(t, domain.StatusPending, comment.Status)
	assert.Equal(t, int64(1), e.notifications(admin.ID))

	w = e.do("GET", "/api/blogs/care/comments", nil, "")
	assert.Equal(t, float64(0), decode[map[string]any](t, w)["total"])

	assert.Equal(t, http.StatusBadRequest, e.do("PATCH", "/api/admin/comments/"+itoa(comment.ID)+"/status", StatusRequest{Status: "hidden"}, adminTok).Code)
	w = e.do("PATCH", "/api/admin/comments/"+itoa(comment.ID)+"/status", StatusRequest{Status: "approved"}, adminTok)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(1), e.notifications(reader.ID))

	// Replies attach to approved parents only
	w = e.do("POST", "/api/blogs/care/comments", CommentRequest{Content: "Thanks", ParentID: &comment.ID, AuthorName: "Guest", AuthorEmail: "g@example.com"}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reply := decode[struct {
		Comment domain.Comment `json:"comment"`
	}](t, w).Comment
	require.NoError(t, e.db.Model(&reply).Update("status", domain.StatusApproved).Error)

	w = e.do("GET", "/api/blogs/care/comments", nil, "")
	thread := decode[struct {
		Comments []domain.Comment `json:"comments"`
		Total    int              `json:"total"`
	}](t, w)
	assert.Equal(t, 2, thread.Total)
	require.Len(t, thread.Comments, 1)
	require.Len(t, thread.Comments[0].Replies, 1)

	require.NoError(t, e.db.Create(&domain.BannedEmail{Email: "troll@example.com"}).Error)
	w = e.do("POST", "/api/blogs/care/comments", CommentRequest{Content: "Spam", AuthorName: "Troll", AuthorEmail: "troll@example.com"}, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do("DELETE", "/api/admin/comments/"+itoa(comment.ID), nil, adminTok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode[map[string]any](t, w)["removed"])
}

func TestReviewApprovalAwardsPointsOnce(t *testing.T) {
	e := newEnv(t)
	admin := e.user("a@example.com", domain.RoleAdmin)
	customer := e.user("c@example.com", domain.RoleUser)
	adminTok, tok := e.token(admin), e.token(customer)
	e.product("cuticle-oil", 12, 5)

	assert.Equal(t, http.StatusBadRequest, e.do("POST", "/api/products/cuticle-oil/reviews", ReviewRequest{Rating: 6}, tok).Code)
	w := e.do("POST", "/api/products/cuticle-oil/reviews", ReviewRequest{Rating: 5, Title: "Love it"}, tok)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	review := decode[struct {
		Review domain.Review `json:"review"`
	}](t, w).Review
	assert.False(t, review.VerifiedPurchase)
	assert.Equal(t, http.StatusConflict, e.do("POST", "/api/products/cuticle-oil/reviews", ReviewRequest{Rating: 4}, tok).Code)

	path := "/api/admin/reviews/" + itoa(review.ID) + "/status"
	w = e.do("PATCH", path, StatusRequest{Status: "approved"}, adminTok)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(25), decode[map[string]any](t, w)["points_awarded"])

	require.Equal(t, http.StatusOK, e.do("PATCH", path, StatusRequest{Status: "pending"}, adminTok).Code)
	w = e.do("PATCH", path, StatusRequest{Status: "approved"}, adminTok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode[map[string]any](t, w)["points_awarded"])

	var u domain.User
	require.NoError(t, e.db.First(&u, customer.ID).Error)
	assert.Equal(t, 25, u.PointsBalance)

	w = e.do("GET", "/api/products/cuticle-oil/reviews", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, w)["total"])
}

func TestPagesPublishedOnly(t *testing.T) {
	e := newEnv(t)
	editorTok := e.token(e.user("e@example.com", domain.RoleEditor))

	w := e.do("POST", "/api/admin/pages", PageRequest{Title: strPtr("About Us"), Content: strPtr("<p>Since 1989</p>")}, editorTok)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	page := decode[struct {
		Page domain.Page `json:"page"`
	}](t, w).Page
	assert.Equal(t, "about-us", page.Slug)
	assert.Equal(t, http.StatusNotFound, e.do("GET", "/api/pages/about-us", nil, "").Code)

	require.Equal(t, http.StatusOK, e.do("PATCH", "/api/admin/pages/"+itoa(page.ID), PageRequest{Status: strPtr("published")}, editorTok).Code)
	assert.Equal(t, http.StatusOK, e.do("GET", "/api/pages/about-us", nil, "").Code)
}
