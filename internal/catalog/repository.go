package catalog

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/talkincode/storefront/internal/domain"
	"gorm.io/gorm"
)

const (
	SortNewest    = "newest"
	SortPriceLow  = "price_low"
	SortPriceHigh = "price_high"
	SortRating    = "rating"
)

// whitelist of orderings; unknown keys fall back to newest
var sortOrders = map[string]string{
	SortNewest:    "created_at DESC, id DESC",
	SortPriceLow:  "price ASC, id ASC",
	SortPriceHigh: "price DESC, id DESC",
	SortRating:    "rating DESC, id DESC",
}

// ProductQuery filters for the catalog listing
type ProductQuery struct {
	CategorySlug string
	Query        string
	Sort         string
	Page         string
}

// ProductPage is one page of active products
type ProductPage struct {
	Page
	Products []domain.Product
	Category *domain.Category
}

// Repository reads the catalog
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *gorm.DB {
	return r.db
}

func (r *Repository) activeProducts(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&domain.Product{}).Where("catalog_product.is_active = ?", true)
}

// LikeEscape is appended to every LIKE built from ContainsPattern
const LikeEscape = ` ESCAPE '\'`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern turns q into a LIKE pattern matching q as a literal substring
func ContainsPattern(q string) string {
	return "%" + likeEscaper.Replace(q) + "%"
}

// applySearch matches q case-insensitively against product name, description and category name
func (r *Repository) applySearch(db *gorm.DB, q string) *gorm.DB {
	q = strings.TrimSpace(q)
	if q == "" {
		return db
	}
	op, col := "LIKE", func(name string) string { return "LOWER(" + name + ")" }
	like := ContainsPattern(strings.ToLower(q))
	if strings.EqualFold(db.Name(), "postgres") {
		op, col = "ILIKE", func(name string) string { return name }
		like = ContainsPattern(q)
	}
	match := func(name string) string { return col(name) + " " + op + " ?" + LikeEscape }

	categories := r.db.Model(&domain.Category{}).Select("id").Where(match("name"), like)
	return db.Where("("+match("catalog_product.name")+" OR "+match("catalog_product.description")+" OR catalog_product.category_id IN (?))",
		like, like, categories)
}

func sortOrder(key string) string {
	if order, ok := sortOrders[key]; ok {
		return order
	}
	return sortOrders[SortNewest]
}

func (r *Repository) paginate(db *gorm.DB, rawPage string, order string) (*ProductPage, error) {
	db = db.Session(&gorm.Session{})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, errors.Wrap(err, "count products")
	}
	page := NewPage(rawPage, total, DefaultPageSize)

	var rows []domain.Product
	if err := db.Preload("Category").
		Order(order).
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "query products")
	}
	return &ProductPage{Page: page, Products: rows}, nil
}

// ListProducts returns one page of active products matching q
func (r *Repository) ListProducts(ctx context.Context, q ProductQuery) (*ProductPage, error) {
	db := r.activeProducts(ctx)

	var category *domain.Category
	if slug := strings.TrimSpace(q.CategorySlug); slug != "" {
		c, err := r.CategoryBySlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		category = c
		db = db.Where("catalog_product.category_id = ?", c.ID)
	}
	db = r.applySearch(db, q.Query)

	result, err := r.paginate(db, q.Page, sortOrder(q.Sort))
	if err != nil {
		return nil, err
	}
	result.Category = category
	return result, nil
}

// CategoryProducts returns one page of the active products of the category identified by slug
func (r *Repository) CategoryProducts(ctx context.Context, slug string, rawPage string) (*ProductPage, error) {
	category, err := r.CategoryBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	db := r.activeProducts(ctx).Where("catalog_product.category_id = ?", category.ID)
	result, err := r.paginate(db, rawPage, sortOrder(SortNewest))
	if err != nil {
		return nil, err
	}
	result.Category = category
	return result, nil
}

// Search is the unpaginated variant of ListProducts; a blank query matches nothing
func (r *Repository) Search(ctx context.Context, q string) ([]domain.Product, error) {
	if strings.TrimSpace(q) == "" {
		return []domain.Product{}, nil
	}
	var rows []domain.Product
	err := r.applySearch(r.activeProducts(ctx), q).
		Preload("Category").
		Order(sortOrder(SortNewest)).
		Find(&rows).Error
	return rows, errors.Wrap(err, "search products")
}

func (r *Repository) Featured(ctx context.Context, limit int) ([]domain.Product, error) {
	var rows []domain.Product
	err := r.activeProducts(ctx).
		Where("featured = ?", true).
		Preload("Category").
		Order(sortOrder(SortNewest)).
		Limit(limit).
		Find(&rows).Error
	return rows, errors.Wrap(err, "featured products")
}

func (r *Repository) Latest(ctx context.Context, limit int) ([]domain.Product, error) {
	var rows []domain.Product
	err := r.activeProducts(ctx).
		Preload("Category").
		Order(sortOrder(SortNewest)).
		Limit(limit).
		Find(&rows).Error
	return rows, errors.Wrap(err, "latest products")
}

// Categories lists categories by name; limit <= 0 means all
func (r *Repository) Categories(ctx context.Context, limit int) ([]domain.Category, error) {
	var rows []domain.Category
	q := r.db.WithContext(ctx).Order("name ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, errors.Wrap(err, "list categories")
}

func (r *Repository) CategoryBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	var c domain.Category
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFound("category", slug)
	}
	if err != nil {
		return nil, errors.Wrap(err, "query category")
	}
	return &c, nil
}

// ProductBySlug loads a product with its category and gallery. activeOnly hides deactivated products.
func (r *Repository) ProductBySlug(ctx context.Context, slug string, activeOnly bool) (*domain.Product, error) {
	return r.findProduct(ctx, activeOnly, "slug = ?", slug, withImages)
}

func (r *Repository) ProductByID(ctx context.Context, id int64, activeOnly bool) (*domain.Product, error) {
	return r.findProduct(ctx, activeOnly, "id = ?", id)
}

func withImages(db *gorm.DB) *gorm.DB {
	return db.Preload("Images", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	})
}

func (r *Repository) findProduct(ctx context.Context, activeOnly bool, cond string, key interface{}, scopes ...func(*gorm.DB) *gorm.DB) (*domain.Product, error) {
	q := r.db.WithContext(ctx).Preload("Category").Scopes(scopes...).Where(cond, key)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var p domain.Product
	err := q.First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFound("product", key)
	}
	if err != nil {
		return nil, errors.Wrap(err, "query product")
	}
	return &p, nil
}

// Related returns other active products from the same category
func (r *Repository) Related(ctx context.Context, p *domain.Product, limit int) ([]domain.Product, error) {
	var rows []domain.Product
	err := r.activeProducts(ctx).
		Where("category_id = ? AND id <> ?", p.CategoryID, p.ID).
		Order(sortOrder(SortNewest)).
		Limit(limit).
		Find(&rows).Error
	return rows, errors.Wrap(err, "related products")
}

// Reviews returns the newest reviews of a product with their authors
func (r *Repository) Reviews(ctx context.Context, productID int64, limit int) ([]domain.Review, error) {
	var rows []domain.Review
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("product_id = ?", productID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, errors.Wrap(err, "query reviews")
}
