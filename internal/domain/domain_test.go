package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCartTotals(t *testing.T) {
	cart := Cart{Items: []CartItem{
		{Quantity: 3, Product: &Product{Price: decimal.RequireFromString("10.00")}},
		{Quantity: 1, Product: &Product{Price: decimal.RequireFromString("25.00")}},
	}}
	assert.Equal(t, 4, cart.TotalItems())
	assert.Equal(t, "55.00", cart.TotalPrice().StringFixed(2))

	empty := Cart{}
	assert.Equal(t, 0, empty.TotalItems())
	assert.True(t, empty.TotalPrice().IsZero())
}

func TestCartBeforeCreateOwner(t *testing.T) {
	uid := int64(7)
	key := "abc"
	empty := ""

	assert.NoError(t, (&Cart{UserID: &uid}).BeforeCreate(nil))
	assert.NoError(t, (&Cart{SessionKey: &key}).BeforeCreate(nil))
	assert.ErrorIs(t, (&Cart{}).BeforeCreate(nil), ErrCartOwner)
	assert.ErrorIs(t, (&Cart{SessionKey: &empty}).BeforeCreate(nil), ErrCartOwner)
	assert.ErrorIs(t, (&Cart{UserID: &uid, SessionKey: &key}).BeforeCreate(nil), ErrCartOwner)
}

func TestProductDiscountPercent(t *testing.T) {
	p := Product{Price: decimal.RequireFromString("999.99")}
	assert.Equal(t, 0, p.DiscountPercent())

	p.OldPrice = decimal.NewNullDecimal(decimal.RequireFromString("1199.99"))
	assert.Equal(t, 17, p.DiscountPercent())

	p.OldPrice = decimal.NewNullDecimal(decimal.RequireFromString("500.00"))
	assert.Equal(t, 0, p.DiscountPercent())
}

func newOffer(kind string, discount string) Offer {
	now := time.Now()
	return Offer{
		Code:          "TEST",
		DiscountType:  kind,
		Discount:      decimal.RequireFromString(discount),
		MinimumAmount: decimal.RequireFromString("50.00"),
		ValidFrom:     now.Add(-time.Hour),
		ValidTo:       now.Add(time.Hour),
		UsageLimit:    10,
		IsActive:      true,
	}
}

func TestOfferIsUsable(t *testing.T) {
	now := time.Now()
	subtotal := decimal.RequireFromString("80.00")

	tests := []struct {
		name   string
		mutate func(o *Offer)
		amount decimal.Decimal
		want   bool
	}{
		{"usable", func(o *Offer) {}, subtotal, true},
		{"inactive", func(o *Offer) { o.IsActive = false }, subtotal, false},
		{"not started", func(o *Offer) { o.ValidFrom = now.Add(time.Hour) }, subtotal, false},
		{"expired", func(o *Offer) { o.ValidTo = now.Add(-time.Minute) }, subtotal, false},
		{"exhausted", func(o *Offer) { o.UsedCount = 10 }, subtotal, false},
		{"below minimum", func(o *Offer) {}, decimal.RequireFromString("49.99"), false},
		{"at minimum", func(o *Offer) {}, decimal.RequireFromString("50.00"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newOffer(DiscountPercentage, "10")
			tt.mutate(&o)
			assert.Equal(t, tt.want, o.IsUsable(now, tt.amount))
		})
	}
}

func TestOfferDiscountFor(t *testing.T) {
	pct := newOffer(DiscountPercentage, "20")
	assert.Equal(t, "25.00", pct.DiscountFor(decimal.RequireFromString("125.00")).StringFixed(2))

	fixed := newOffer(DiscountFixed, "50")
	assert.Equal(t, "50.00", fixed.DiscountFor(decimal.RequireFromString("220.00")).StringFixed(2))
	assert.Equal(t, "30.00", fixed.DiscountFor(decimal.RequireFromString("30.00")).StringFixed(2))

	unknown := newOffer("bogus", "5")
	assert.True(t, unknown.DiscountFor(decimal.RequireFromString("30.00")).IsZero())
}

func TestOfferUsageStatus(t *testing.T) {
	o := newOffer(DiscountFixed, "5")
	o.UsageLimit = 4

	for used, want := range map[int][2]string{
		0: {"0/4 (0%)", "green"},
		3: {"3/4 (75%)", "orange"},
		4: {"4/4 (100%)", "red"},
	} {
		o.UsedCount = used
		text, color := o.UsageStatus()
		assert.Equal(t, want[0], text, fmt.Sprintf("used=%d", used))
		assert.Equal(t, want[1], color)
	}

	o.UsageLimit = 0
	assert.Equal(t, 0, o.UsagePercent())
}

func TestErrorsClassify(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", &InsufficientStockError{ProductID: 1, Requested: 5, Available: 2})
	assert.True(t, IsInsufficientStock(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.Contains(t, wrapped.Error(), "only 2 in stock")

	assert.True(t, IsNotFound(NewNotFound("product", "x")))
	assert.True(t, IsDuplicateReview(&DuplicateReviewError{ProductID: 1, UserID: 2}))

	verr := NewValidationError("rating", "required")
	verr.Add("title", "too long")
	assert.True(t, IsValidation(verr))
	assert.True(t, verr.HasErrors())
	assert.Equal(t, "validation failed: rating: required; title: too long", verr.Error())
}
