package adminapi

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/gocarina/gocsv"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"github.com/talkincode/storefront/internal/catalog"
	"github.com/talkincode/storefront/internal/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	exportSheet     = "Sheet1"
	maxImportSize   = 8 << 20
	importFormField = "file"
)

// productRecord is one product row of a csv/xlsx transfer
type productRecord struct {
	Slug             string `csv:"slug"`
	Name             string `csv:"name"`
	Category         string `csv:"category"`
	Price            string `csv:"price"`
	OldPrice         string `csv:"old_price"`
	Stock            string `csv:"stock"`
	IsActive         string `csv:"is_active"`
	Featured         string `csv:"featured"`
	Rating           string `csv:"rating"`
	ShortDescription string `csv:"short_description"`
	Description      string `csv:"description"`
	ImageURL         string `csv:"image_url"`
}

var exportHeaders = []string{
	"slug", "name", "category", "price", "old_price", "stock",
	"is_active", "featured", "rating", "short_description", "description", "image_url",
}

// ImportResult summarises a csv import
type ImportResult struct {
	Created int           `json:"created"`
	Updated int           `json:"updated"`
	Errors  []ImportError `json:"errors"`
}

type ImportError struct {
	Row     int    `json:"row"`
	Slug    string `json:"slug"`
	Message string `json:"message"`
}

func newProductRecord(p *domain.Product) productRecord {
	rec := productRecord{
		Slug:             p.Slug,
		Name:             p.Name,
		Price:            p.Price.StringFixed(2),
		Stock:            strconv.Itoa(p.Stock),
		IsActive:         strconv.FormatBool(p.IsActive),
		Featured:         strconv.FormatBool(p.Featured),
		Rating:           p.Rating.StringFixed(1),
		ShortDescription: p.ShortDescription,
		Description:      p.Description,
		ImageURL:         p.ImageURL,
	}
	if p.Category != nil {
		rec.Category = p.Category.Name
	}
	if p.OldPrice.Valid {
		rec.OldPrice = p.OldPrice.Decimal.StringFixed(2)
	}
	return rec
}

func (r *productRecord) values() []string {
	return []string{
		r.Slug, r.Name, r.Category, r.Price, r.OldPrice, r.Stock,
		r.IsActive, r.Featured, r.Rating, r.ShortDescription, r.Description, r.ImageURL,
	}
}

func exportRecords(c echo.Context) ([]productRecord, error) {
	var rows []domain.Product
	if err := GetDB(c).Preload("Category").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]productRecord, len(rows))
	for i := range rows {
		records[i] = newProductRecord(&rows[i])
	}
	return records, nil
}

func exportFilename(ext string) string {
	return fmt.Sprintf("products-%s.%s", time.Now().Format("20060102-150405"), ext)
}

func attachment(c echo.Context, filename string) {
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
}

// cellName converts zero based column/row indexes into an A1 reference
func cellName(col, row int) string {
	name := ""
	for col >= 0 {
		name = string(rune('A'+col%26)) + name
		col = col/26 - 1
	}
	return name + strconv.Itoa(row+1)
}

func exportProductsXLSX(c echo.Context) error {
	records, err := exportRecords(c)
	if err != nil {
		return handleServiceError(c, err, "Failed to export products")
	}

	xlsx := excelize.NewFile()
	for col, header := range exportHeaders {
		xlsx.SetCellValue(exportSheet, cellName(col, 0), header)
	}
	for i := range records {
		for col, v := range records[i].values() {
			xlsx.SetCellValue(exportSheet, cellName(col, i+1), v)
		}
	}

	var buf bytes.Buffer
	if err := xlsx.Write(&buf); err != nil {
		return fail(c, http.StatusInternalServerError, "EXPORT_FAILED", "Failed to write workbook", err.Error())
	}
	attachment(c, exportFilename("xlsx"))
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func exportProductsCSV(c echo.Context) error {
	records, err := exportRecords(c)
	if err != nil {
		return handleServiceError(c, err, "Failed to export products")
	}
	data, err := gocsv.MarshalBytes(&records)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "EXPORT_FAILED", "Failed to write csv", err.Error())
	}
	attachment(c, exportFilename("csv"))
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", data)
}

// importProducts upserts products by slug from an uploaded csv. Rows that fail are
// reported and skipped; the rest are applied.
func importProducts(c echo.Context) error {
	fh, err := c.FormFile(importFormField)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Missing csv upload field 'file'", nil)
	}
	if fh.Size > maxImportSize {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "File too large", nil)
	}
	src, err := fh.Open()
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to read upload", err.Error())
	}
	defer src.Close()

	var records []*productRecord
	if err := gocsv.Unmarshal(src, &records); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_CSV", "Unable to parse csv", err.Error())
	}

	result := &ImportResult{Errors: []ImportError{}}
	db := GetDB(c)
	for i, rec := range records {
		// header is row 1
		row := i + 2
		createdRow, err := upsertProductRecord(c, db, rec)
		if err != nil {
			result.Errors = append(result.Errors, ImportError{Row: row, Slug: rec.Slug, Message: importMessage(err)})
			continue
		}
		if createdRow {
			result.Created++
		} else {
			result.Updated++
		}
	}
	zap.L().Info("products imported",
		zap.String("namespace", "adminapi"),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("failed", len(result.Errors)))
	return ok(c, result)
}

func importMessage(err error) string {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		parts := make([]string, 0, len(verr.Fields))
		for _, field := range exportHeaders {
			if msg, found := verr.Fields[field]; found {
				parts = append(parts, field+": "+msg)
			}
		}
		return strings.Join(parts, "; ")
	}
	return err.Error()
}

func parseRecordDecimal(verr *domain.ValidationError, field, raw string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		verr.Add(field, "not a decimal number")
		return decimal.Zero, false
	}
	return d.Round(2), true
}

// upsertProductRecord reports true when a new product was created
func upsertProductRecord(c echo.Context, db *gorm.DB, rec *productRecord) (bool, error) {
	ctx := c.Request().Context()
	verr := &domain.ValidationError{}
	name := strings.TrimSpace(rec.Name)
	if name == "" {
		verr.Add("name", "required")
	}
	price, okPrice := parseRecordDecimal(verr, "price", rec.Price)
	if okPrice && !price.IsPositive() {
		verr.Add("price", "must be greater than 0")
	}
	var oldPrice decimal.NullDecimal
	if strings.TrimSpace(rec.OldPrice) != "" {
		if d, parsed := parseRecordDecimal(verr, "old_price", rec.OldPrice); parsed {
			oldPrice = decimal.NewNullDecimal(d)
		}
	}
	stock, err := cast.ToIntE(strings.TrimSpace(rec.Stock))
	if err != nil || stock < 0 {
		verr.Add("stock", "must be a non-negative integer")
	}

	var category domain.Category
	categoryName := strings.TrimSpace(rec.Category)
	if categoryName == "" {
		verr.Add("category", "required")
	} else if err := db.Where("name = ? OR slug = ?", categoryName, categoryName).First(&category).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, err
		}
		verr.Add("category", "unknown category")
	}
	if verr.HasErrors() {
		return false, verr
	}

	// file slugs follow the same rule as generated ones, so "My Product" matches my-product
	var product domain.Product
	slug := catalog.Slugify(rec.Slug)
	isNew := true
	if slug != "" {
		err := db.Where("slug = ?", slug).First(&product).Error
		switch {
		case err == nil:
			isNew = false
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return false, err
		}
	}
	if isNew {
		product = domain.Product{IsActive: true}
		source := slug
		if source == "" {
			source = name
		}
		product.Slug, err = catalog.UniqueSlug(ctx, db, &domain.Product{}, source, 0)
		if err != nil {
			return false, err
		}
	}

	product.Name = name
	product.CategoryID = category.ID
	product.Price = price
	product.OldPrice = oldPrice
	product.Stock = stock
	if v := strings.TrimSpace(rec.IsActive); v != "" {
		product.IsActive = cast.ToBool(v)
	}
	product.Featured = cast.ToBool(strings.TrimSpace(rec.Featured))
	product.ShortDescription = strings.TrimSpace(rec.ShortDescription)
	product.Description = strings.TrimSpace(rec.Description)
	product.ImageURL = strings.TrimSpace(rec.ImageURL)

	if isNew {
		return true, db.Create(&product).Error
	}
	return false, db.Omit("rating").Save(&product).Error
}
