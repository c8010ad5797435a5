package storefront

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/storefront/internal/catalog"
)

func (h *Handler) home(c echo.Context) error {
	ctx := c.Request().Context()
	featured, err := h.catalog.Featured(ctx, homeFeaturedLimit)
	if err != nil {
		return err
	}
	categories, err := h.catalog.Categories(ctx, homeCategoriesLimit)
	if err != nil {
		return err
	}
	latest, err := h.catalog.Latest(ctx, homeLatestLimit)
	if err != nil {
		return err
	}
	return h.render(c, http.StatusOK, "home.html", echo.Map{
		"Featured":   featured,
		"Categories": categories,
		"Latest":     latest,
	})
}

func (h *Handler) productList(c echo.Context) error {
	ctx := c.Request().Context()
	q := catalog.ProductQuery{
		CategorySlug: c.QueryParam("category"),
		Query:        c.QueryParam("q"),
		Sort:         c.QueryParam("sort"),
		Page:         c.QueryParam("page"),
	}
	result, err := h.catalog.ListProducts(ctx, q)
	if err != nil {
		return err
	}
	categories, err := h.catalog.Categories(ctx, 0)
	if err != nil {
		return err
	}
	return h.render(c, http.StatusOK, "product_list.html", echo.Map{
		"Result":       result,
		"Categories":   categories,
		"Query":        strings.TrimSpace(q.Query),
		"Sort":         q.Sort,
		"CategorySlug": q.CategorySlug,
		"Params":       c.QueryParams(),
	})
}

func (h *Handler) productDetail(c echo.Context) error {
	ctx := c.Request().Context()
	product, err := h.catalog.ProductBySlug(ctx, c.Param("slug"), true)
	if err != nil {
		return err
	}
	reviews, err := h.catalog.Reviews(ctx, product.ID, detailReviewsLimit)
	if err != nil {
		return err
	}
	related, err := h.catalog.Related(ctx, product, detailRelatedLimit)
	if err != nil {
		return err
	}
	return h.render(c, http.StatusOK, "product_detail.html", echo.Map{
		"Product":   product,
		"Reviews":   reviews,
		"Related":   related,
		"CanReview": currentUser(c) != nil,
	})
}

func (h *Handler) categoryProducts(c echo.Context) error {
	result, err := h.catalog.CategoryProducts(c.Request().Context(), c.Param("slug"), c.QueryParam("page"))
	if err != nil {
		return err
	}
	return h.render(c, http.StatusOK, "category.html", echo.Map{
		"Result": result,
		"Params": c.QueryParams(),
	})
}

func (h *Handler) search(c echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("q"))
	products, err := h.catalog.Search(c.Request().Context(), query)
	if err != nil {
		return err
	}
	return h.render(c, http.StatusOK, "search.html", echo.Map{
		"Query":    query,
		"Products": products,
	})
}
