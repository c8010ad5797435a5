package review

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/asaskevich/EventBus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/storefront/internal/catalog"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/storetest"
	"gorm.io/gorm"
)

func TestSubmissionValidate(t *testing.T) {
	tests := []struct {
		name   string
		sub    Submission
		fields []string
	}{
		{"ok", Submission{Rating: 5, Title: "Great", Comment: "Loved it"}, nil},
		{"rating low", Submission{Rating: 0, Title: "x", Comment: "y"}, []string{"rating"}},
		{"rating high", Submission{Rating: 6, Title: "x", Comment: "y"}, []string{"rating"}},
		{"blank text", Submission{Rating: 3, Title: "  ", Comment: ""}, []string{"title", "comment"}},
		{"long title", Submission{Rating: 3, Title: strings.Repeat("a", 201), Comment: "y"}, []string{"title"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sub.Validate()
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			for _, f := range tt.fields {
				assert.Contains(t, verr.Fields, f)
			}
			assert.Len(t, verr.Fields, len(tt.fields))
		})
	}

	assert.NoError(t, Submission{Rating: 1, Title: strings.Repeat("é", 200), Comment: "y"}.Validate())
}

func TestSubmissionMessages(t *testing.T) {
	err := Submission{Rating: 0, Title: " ", Comment: "\t"}.Validate()
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, map[string]string{
		"rating":  "rating must be between 1 and 5",
		"title":   "title is required",
		"comment": "comment is required",
	}, verr.Fields)

	err = Submission{Rating: 6, Title: strings.Repeat("a", 201), Comment: "ok"}.Validate()
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, map[string]string{
		"rating": "rating must be between 1 and 5",
		"title":  "title must be at most 200 characters",
	}, verr.Fields)
}

type fixture struct {
	db      *gorm.DB
	svc     *Service
	product *domain.Product
	alice   *domain.User
	bob     *domain.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := storetest.NewDB(t)
	c := storetest.Category(t, db, "Books", "books")
	bus := EventBus.New()
	require.NoError(t, catalog.NewRatingUpdater(db).Subscribe(bus))
	return &fixture{
		db:      db,
		svc:     NewService(db, bus),
		product: storetest.Product(t, db, c, "Mystery Novel", "mystery-novel", storetest.Rating("4.8")),
		alice:   storetest.User(t, db, "alice"),
		bob:     storetest.User(t, db, "bob"),
	}
}

func (f *fixture) rating(t *testing.T) string {
	t.Helper()
	var p domain.Product
	require.NoError(t, f.db.First(&p, f.product.ID).Error)
	return p.Rating.StringFixed(1)
}

func TestSubmitUpdatesRating(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	assert.Equal(t, "4.8", f.rating(t))

	r, err := f.svc.Submit(ctx, "mystery-novel", f.alice.ID, Submission{Rating: 5, Title: " Great ", Comment: "Loved it"})
	require.NoError(t, err)
	assert.NotZero(t, r.ID)
	assert.Equal(t, "Great", r.Title)
	assert.Equal(t, "5.0", f.rating(t))

	_, err = f.svc.Submit(ctx, "mystery-novel", f.bob.ID, Submission{Rating: 2, Title: "Meh", Comment: "Slow start"})
	require.NoError(t, err)
	assert.Equal(t, "3.5", f.rating(t))
}

func TestSubmitDuplicate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, "mystery-novel", f.alice.ID, Submission{Rating: 4, Title: "Good", Comment: "Nice"})
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, "mystery-novel", f.alice.ID, Submission{Rating: 1, Title: "Changed", Comment: "Mind"})
	assert.True(t, domain.IsDuplicateReview(err))

	var count int64
	require.NoError(t, f.db.Model(&domain.Review{}).Where("product_id = ?", f.product.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, "4.0", f.rating(t))
}

func TestSubmitRejects(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, "missing", f.alice.ID, Submission{Rating: 4, Title: "x", Comment: "y"})
	assert.True(t, domain.IsNotFound(err))

	_, err = f.svc.Submit(ctx, "mystery-novel", f.alice.ID, Submission{Rating: 9, Title: "x", Comment: "y"})
	assert.True(t, domain.IsValidation(err))

	var count int64
	require.NoError(t, f.db.Model(&domain.Review{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Equal(t, "4.8", f.rating(t))
}

func TestSubmitInactiveProduct(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.db.Model(f.product).Update("is_active", false).Error)
	_, err := f.svc.Submit(context.Background(), "mystery-novel", f.alice.ID, Submission{Rating: 4, Title: "x", Comment: "y"})
	assert.True(t, domain.IsNotFound(err))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, isUniqueViolation(errors.New("UNIQUE constraint failed: catalog_review.product_id")))
	assert.True(t, isUniqueViolation(errors.New(`ERROR: duplicate key value violates unique constraint`)))
	assert.False(t, isUniqueViolation(errors.New("connection refused")))
}
