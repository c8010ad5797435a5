package catalog

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/asaskevich/EventBus"
	"github.com/montanaflynn/stats"
	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/talkincode/storefront/internal/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RecomputeRating stores the mean review rating (one decimal place) on the product.
// A product without reviews keeps its current rating.
func RecomputeRating(ctx context.Context, db *gorm.DB, productID int64) (decimal.Decimal, bool, error) {
	var ratings []float64
	if err := db.WithContext(ctx).Model(&domain.Review{}).
		Where("product_id = ?", productID).
		Pluck("rating", &ratings).Error; err != nil {
		return decimal.Zero, false, errors.Wrap(err, "load review ratings")
	}
	if len(ratings) == 0 {
		return decimal.Zero, false, nil
	}
	mean, err := stats.Mean(stats.Float64Data(ratings))
	if err != nil {
		return decimal.Zero, false, errors.Wrap(err, "mean rating")
	}
	// round the binary mean itself so 4.25 gives 4.2, as fixed-point formatting does
	rating, err := decimal.NewFromString(strconv.FormatFloat(mean, 'f', 1, 64))
	if err != nil {
		return decimal.Zero, false, errors.Wrap(err, "format rating")
	}
	if err := db.WithContext(ctx).Model(&domain.Product{}).
		Where("id = ?", productID).
		Update("rating", rating).Error; err != nil {
		return decimal.Zero, false, errors.Wrap(err, "update product rating")
	}
	return rating, true, nil
}

// RatingUpdater keeps Product.Rating in line with the review ledger. It reacts to
// review submissions and can reconcile the whole catalog.
type RatingUpdater struct {
	db *gorm.DB
}

func NewRatingUpdater(db *gorm.DB) *RatingUpdater {
	return &RatingUpdater{db: db}
}

// Subscribe registers the updater for review submissions. Handlers run synchronously
// in the publisher's goroutine.
func (u *RatingUpdater) Subscribe(bus EventBus.BusSubscriber) error {
	return bus.Subscribe(domain.TopicReviewSubmitted, u.OnReviewSubmitted)
}

func (u *RatingUpdater) Unsubscribe(bus EventBus.BusSubscriber) error {
	return bus.Unsubscribe(domain.TopicReviewSubmitted, u.OnReviewSubmitted)
}

func (u *RatingUpdater) OnReviewSubmitted(productID int64) {
	rating, updated, err := RecomputeRating(context.Background(), u.db, productID)
	if err != nil {
		zap.L().Error("rating recompute failed",
			zap.String("namespace", "catalog"),
			zap.Int64("product_id", productID),
			zap.Error(err))
		return
	}
	if updated {
		zap.L().Debug("rating recomputed",
			zap.String("namespace", "catalog"),
			zap.Int64("product_id", productID),
			zap.String("rating", rating.String()))
	}
}

// ReconcileAll recomputes the rating of every reviewed product on a pool of workers.
// Returns the number of products updated.
func (u *RatingUpdater) ReconcileAll(ctx context.Context, workers int) (int, error) {
	if workers <= 0 {
		workers = 4
	}
	var ids []int64
	if err := u.db.WithContext(ctx).Model(&domain.Review{}).
		Distinct("product_id").
		Pluck("product_id", &ids).Error; err != nil {
		return 0, errors.Wrap(err, "list reviewed products")
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return 0, errors.Wrap(err, "create worker pool")
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		updated  int64
		firstErr error
		errOnce  sync.Once
	)
	for _, id := range ids {
		productID := id
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			_, ok, err := RecomputeRating(ctx, u.db, productID)
			if err != nil {
				errOnce.Do(func() { firstErr = err })
				return
			}
			if ok {
				atomic.AddInt64(&updated, 1)
			}
		})
		if submitErr != nil {
			wg.Done()
			errOnce.Do(func() { firstErr = submitErr })
		}
	}
	wg.Wait()
	return int(updated), firstErr
}
