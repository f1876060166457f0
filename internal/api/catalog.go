package api

import (
	"errors"   // Error inspection
	"net/http" // HTTP status codes
	"strings"  // String manipulation
	"time"     // Cache TTL

	"biosculpture/internal/domain" // Importing domain models
	"biosculpture/internal/utils"  // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Money amounts
	"gorm.io/gorm"                  // GORM ORM library
)

const catalogCachePrefix = "catalog:"

// ListCategoriesHandler returns active categories in display order
func ListCategoriesHandler(db *gorm.DB, rdb *redis.Client, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		cacheKey := catalogCachePrefix + "categories"
		if serveCached(c, rdb, cacheKey) {
			return
		}
		var categories []domain.Category
		if err := db.Where("active = ?", true).Order("sort_order, name").Find(&categories).Error; err != nil {
			respondError(c, err, "Failed to fetch categories")
			return
		}
		respData := gin.H{"categories": categories}
		storeCached(c, rdb, cacheKey, respData, ttl)
		c.JSON(http.StatusOK, respData)
	}
}

// GetCategoryHandler returns an active category, its children and every descendant id
func GetCategoryHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var category domain.Category
		if err := db.Where("slug = ? AND active = ?", c.Param("slug"), true).First(&category).Error; err != nil {
			notFound(c, "Category")
			return
		}
		var all []domain.Category
		if err := db.Select("id", "parent_id").Find(&all).Error; err != nil {
			respondError(c, err, "Failed to fetch categories")
			return
		}
		var children []domain.Category
		db.Where("parent_id = ? AND active = ?", category.ID, true).Order("sort_order, name").Find(&children)
		c.JSON(http.StatusOK, gin.H{
			"category":       category,
			"children":       children,
			"descendant_ids": domain.DescendantIDs(all, category.ID),
		})
	}
}

// categoryScope returns the ids of the category with slug and everything beneath it
func categoryScope(db *gorm.DB, slug string) ([]uint, error) {
	var root domain.Category
	if err := db.Where("slug = ?", slug).First(&root).Error; err != nil {
		return nil, err
	}
	var all []domain.Category
	if err := db.Select("id", "parent_id").Find(&all).Error; err != nil {
		return nil, err
	}
	return domain.DescendantIDs(all, root.ID), nil
}

// productSorts maps the sort query value onto an ORDER BY clause
var productSorts = map[string]string{
	"newest":     "created_at desc, id desc",
	"price_asc":  "price asc, id",
	"price_desc": "price desc, id",
	"name":       "name asc, id",
}

// ListProductsHandler returns active products with catalog filters, cached per query
func ListProductsHandler(db *gorm.DB, rdb *redis.Client, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		cacheKey := catalogCachePrefix + "products:" + c.Request.URL.RawQuery
		if serveCached(c, rdb, cacheKey) {
			return
		}
		p := utils.ParsePage(c)
		query := db.Model(&domain.Product{}).Where("active = ?", true)
		if slug := c.Query("category"); slug != "" {
			ids, err := categoryScope(db, slug)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				notFound(c, "Category")
				return
			}
			if err != nil {
				respondError(c, err, "Failed to fetch products")
				return
			}
			query = query.Where("category_id IN ?", ids)
		}
		if q := c.Query("q"); q != "" {
			query = query.Where("name LIKE ? OR description LIKE ? OR sku LIKE ?", likePattern(q), likePattern(q), likePattern(q))
		}
		if c.Query("featured") == "true" {
			query = query.Where("featured = ?", true)
		}
		minPrice, err := queryDecimal(c, "min_price")
		if err != nil {
			respondError(c, err, "Invalid price filter")
			return
		}
		if minPrice != nil {
			query = query.Where("price >= ?", *minPrice)
		}
		maxPrice, err := queryDecimal(c, "max_price")
		if err != nil {
			respondError(c, err, "Invalid price filter")
			return
		}
		if maxPrice != nil {
			query = query.Where("price <= ?", *maxPrice)
		}
		order, ok := productSorts[c.DefaultQuery("sort", "newest")]
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "sort must be newest, price_asc, price_desc or name"})
			return
		}
		var total int64
		if err := query.Count(&total).Error; err != nil {
			respondError(c, err, "Failed to count products")
			return
		}
		var products []domain.Product
		if err := query.Preload("Category").Order(order).Offset(p.Offset()).Limit(p.PageSize).Find(&products).Error; err != nil {
			respondError(c, err, "Failed to fetch products")
			return
		}
		respData := utils.Paginated("products", products, p, total)
		storeCached(c, rdb, cacheKey, respData, ttl)
		c.JSON(http.StatusOK, respData)
	}
}

// reviewSummary aggregates the approved ratings of a product
func reviewSummary(db *gorm.DB, productID uint) (domain.ReviewSummary, error) {
	var ratings []int
	err := db.Model(&domain.Review{}).Where("product_id = ? AND status = ?", productID, domain.StatusApproved).Pluck("rating", &ratings).Error
	return domain.Summarize(ratings), err
}

// GetProductHandler returns an active product with its review summary
func GetProductHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var product domain.Product
		if err := db.Preload("Category").Where("slug = ? AND active = ?", c.Param("slug"), true).First(&product).Error; err != nil {
			notFound(c, "Product")
			return
		}
		summary, err := reviewSummary(db, product.ID)
		if err != nil {
			respondError(c, err, "Failed to fetch reviews")
			return
		}
		c.JSON(http.StatusOK, gin.H{"product": product, "reviews": summary})
	}
}

// CategoryRequest holds category fields; nil leaves a field unchanged
type CategoryRequest struct {
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	Description *string `json:"description"`
	ImageURL    *string `json:"image_url"`
	ParentID    *uint   `json:"parent_id"` // Zero clears the parent
	SortOrder   *int    `json:"sort_order"`
	Active      *bool   `json:"active"`
}

// apply copies the set fields onto cat
func (r *CategoryRequest) apply(tx *gorm.DB, cat *domain.Category) error {
	if r.Name != nil {
		cat.Name = strings.TrimSpace(*r.Name)
	}
	if r.Slug != nil {
		cat.Slug = domain.Slugify(*r.Slug)
	} else if cat.Slug == "" {
		cat.Slug = domain.Slugify(cat.Name)
	}
	if r.Description != nil {
		cat.Description = *r.Description
	}
	if r.ImageURL != nil {
		cat.ImageURL = *r.ImageURL
	}
	if r.SortOrder != nil {
		cat.SortOrder = *r.SortOrder
	}
	if r.Active != nil {
		cat.Active = *r.Active
	}
	if r.ParentID != nil {
		if *r.ParentID == 0 {
			cat.ParentID = nil
		} else {
			var all []domain.Category
			if err := tx.Select("id", "parent_id").Find(&all).Error; err != nil {
				return err
			}
			found := false
			for _, other := range all {
				found = found || other.ID == *r.ParentID
			}
			if !found {
				return domain.Rule("parent category does not exist")
			}
			if cat.ID != 0 && domain.CreatesCycle(all, cat.ID, *r.ParentID) {
				return domain.Rule("a category cannot be nested under itself or its descendants")
			}
			parent := *r.ParentID
			cat.ParentID = &parent
		}
	}
	if cat.Name == "" || cat.Slug == "" {
		return domain.Rule("name is required")
	}
	return nil
}

// AdminListCategoriesHandler returns every category including inactive ones
func AdminListCategoriesHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var categories []domain.Category
		if err := db.Order("sort_order, name").Find(&categories).Error; err != nil {
			respondError(c, err, "Failed to fetch categories")
			return
		}
		c.JSON(http.StatusOK, gin.H{"categories": categories})
	}
}

// CreateCategoryHandler adds a category
func CreateCategoryHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CategoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		category := domain.Category{Active: true}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := req.apply(tx, &category); err != nil {
				return err
			}
			if err := tx.Create(&category).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "create", "category", category.ID, gin.H{"name": category.Name, "slug": category.Slug})
		})
		if err != nil {
			respondError(c, err, "Failed to create category")
			return
		}
		invalidate(c, rdb, catalogCachePrefix)
		c.JSON(http.StatusCreated, gin.H{"category": category})
	}
}

// UpdateCategoryHandler edits a category
func UpdateCategoryHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req CategoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		var category domain.Category
		if err := db.First(&category, id).Error; err != nil {
			notFound(c, "Category")
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := req.apply(tx, &category); err != nil {
				return err
			}
			if err := tx.Save(&category).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "update", "category", category.ID, req)
		})
		if err != nil {
			respondError(c, err, "Failed to update category")
			return
		}
		invalidate(c, rdb, catalogCachePrefix)
		c.JSON(http.StatusOK, gin.H{"category": category})
	}
}

// DeleteCategoryHandler removes a category that no product or child category references
func DeleteCategoryHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var category domain.Category
		if err := db.First(&category, id).Error; err != nil {
			notFound(c, "Category")
			return
		}
		var products, children int64
		db.Model(&domain.Product{}).Where("category_id = ?", id).Count(&products)
		db.Model(&domain.Category{}).Where("parent_id = ?", id).Count(&children)
		if products > 0 || children > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "Category is still in use", "products": products, "children": children})
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(&category).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "delete", "category", id, gin.H{"slug": category.Slug})
		})
		if err != nil {
			respondError(c, err, "Failed to delete category")
			return
		}
		invalidate(c, rdb, catalogCachePrefix)
		c.JSON(http.StatusOK, gin.H{"message": "Category deleted"})
	}
}

// ProductRequest holds product fields; nil leaves a field unchanged
type ProductRequest struct {
	Name           *string          `json:"name"`
	Slug           *string          `json:"slug"`
	SKU            *string          `json:"sku"`
	Description    *string          `json:"description"`
	Price          *decimal.Decimal `json:"price"`
	CompareAtPrice *decimal.Decimal `json:"compare_at_price"`
	Stock          *int             `json:"stock"`
	Active         *bool            `json:"active"`
	Featured       *bool            `json:"featured"`
	CategoryID     *uint            `json:"category_id"` // Zero clears the category
	Images         []string         `json:"images"`
}

// apply copies the set fields onto p and validates the result
func (r *ProductRequest) apply(tx *gorm.DB, p *domain.Product) error {
	if r.Name != nil {
		p.Name = strings.TrimSpace(*r.Name)
	}
	if r.Slug != nil {
		p.Slug = domain.Slugify(*r.Slug)
	} else if p.Slug == "" {
		p.Slug = domain.Slugify(p.Name)
	}
	if r.SKU != nil {
		p.SKU = strings.ToUpper(strings.TrimSpace(*r.SKU))
	}
	if r.Description != nil {
		p.Description = *r.Description
	}
	if r.Price != nil {
		p.Price = domain.RoundMoney(*r.Price)
	}
	if r.CompareAtPrice != nil {
		if r.CompareAtPrice.IsZero() {
			p.CompareAtPrice = nil
		} else {
			v := domain.RoundMoney(*r.CompareAtPrice)
			p.CompareAtPrice = &v
		}
	}
	if r.Stock != nil {
		p.Stock = *r.Stock
	}
	if r.Active != nil {
		p.Active = *r.Active
	}
	if r.Featured != nil {
		p.Featured = *r.Featured
	}
	if r.Images != nil {
		p.Images = r.Images
	}
	if r.CategoryID != nil {
		if *r.CategoryID == 0 {
			p.CategoryID = nil
		} else {
			var n int64
			if err := tx.Model(&domain.Category{}).Where("id = ?", *r.CategoryID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return domain.Rule("category does not exist")
			}
			cid := *r.CategoryID
			p.CategoryID = &cid
		}
	}
	switch {
	case p.Name == "" || p.Slug == "":
		return domain.Rule("name is required")
	case p.SKU == "":
		return domain.Rule("sku is required")
	case !p.Price.IsPositive():
		return domain.Rule("price must be greater than zero")
	case p.Stock < 0:
		return domain.Rule("stock cannot be negative")
	case p.CompareAtPrice != nil && p.CompareAtPrice.LessThan(p.Price):
		return domain.Rule("compare_at_price must not be below price")
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	return nil
}

// AdminListProductsHandler returns every product including inactive ones
func AdminListProductsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := utils.ParsePage(c)
		query := db.Model(&domain.Product{})
		if q := c.Query("q"); q != "" {
			query = query.Where("name LIKE ? OR sku LIKE ?", likePattern(q), likePattern(q))
		}
		if cid, ok := queryUint(c, "category_id"); ok {
			query = query.Where("category_id = ?", cid)
		}
		if active := c.Query("active"); active != "" {
			query = query.Where("active = ?", active == "true")
		}
		if c.Query("low_stock") == "true" {
			query = query.Where("stock <= ?", 5)
		}
		var total int64
		if err := query.Count(&total).Error; err != nil {
			respondError(c, err, "Failed to count products")
			return
		}
		var products []domain.Product
		if err := query.Preload("Category").Order("id desc").Offset(p.Offset()).Limit(p.PageSize).Find(&products).Error; err != nil {
			respondError(c, err, "Failed to fetch products")
			return
		}
		c.JSON(http.StatusOK, utils.Paginated("products", products, p, total))
	}
}

// AdminGetProductHandler returns any product by id
func AdminGetProductHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var product domain.Product
		if err := db.Preload("Category").First(&product, id).Error; err != nil {
			notFound(c, "Product")
			return
		}
		c.JSON(http.StatusOK, gin.H{"product": product})
	}
}

// CreateProductHandler adds a product
func CreateProductHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		product := domain.Product{Active: true}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := req.apply(tx, &product); err != nil {
				return err
			}
			if err := tx.Create(&product).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "create", "product", product.ID, gin.H{"name": product.Name, "sku": product.SKU})
		})
		if err != nil {
			respondError(c, err, "Failed to create product")
			return
		}
		invalidate(c, rdb, catalogCachePrefix)
		c.JSON(http.StatusCreated, gin.H{"product": product})
	}
}

// UpdateProductHandler edits a product
func UpdateProductHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req ProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		var product domain.Product
		if err := db.First(&product, id).Error; err != nil {
			notFound(c, "Product")
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := req.apply(tx, &product); err != nil {
				return err
			}
			product.Category = nil
			if err := tx.Save(&product).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "update", "product", product.ID, req)
		})
		if err != nil {
			respondError(c, err, "Failed to update product")
			return
		}
		invalidate(c, rdb, catalogCachePrefix)
		c.JSON(http.StatusOK, gin.H{"product": product})
	}
}

// DeleteProductHandler removes a product and its cart lines; order items keep their snapshot
func DeleteProductHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var product domain.Product
		if err := db.First(&product, id).Error; err != nil {
			notFound(c, "Product")
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("product_id = ?", id).Delete(&domain.CartItem{}).Error; err != nil {
				return err
			}
			if err := tx.Where("product_id = ?", id).Delete(&domain.Review{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&product).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "delete", "product", id, gin.H{"sku": product.SKU})
		})
		if err != nil {
			respondError(c, err, "Failed to delete product")
			return
		}
		invalidate(c, rdb, catalogCachePrefix)
		c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
	}
}
