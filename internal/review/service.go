package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/asaskevich/EventBus"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/pkg/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const MaxTitleLength = 200

// Submission is the user supplied part of a review
type Submission struct {
	Rating  int    `json:"rating" validate:"min=1,max=5"`
	Title   string `json:"title" validate:"required,max=200"`
	Comment string `json:"comment" validate:"required"`
}

var submissionMessages = map[string]string{
	"rating":         fmt.Sprintf("rating must be between %d and %d", domain.MinReviewRating, domain.MaxReviewRating),
	"title.required": "title is required",
	"title.max":      fmt.Sprintf("title must be at most %d characters", MaxTitleLength),
	"comment":        "comment is required",
}

// Validate checks rating bounds and required text fields, ignoring surrounding blanks
func (s Submission) Validate() error {
	s.Title = strings.TrimSpace(s.Title)
	s.Comment = strings.TrimSpace(s.Comment)
	return domain.ValidateStruct(s, submissionMessages)
}

// Service records reviews and announces them on the bus
type Service struct {
	db  *gorm.DB
	bus EventBus.BusPublisher
}

func NewService(db *gorm.DB, bus EventBus.BusPublisher) *Service {
	return &Service{db: db, bus: bus}
}

// Submit stores the user's review of the active product identified by slug.
// Subscribers of domain.TopicReviewSubmitted run after the review is committed.
func (s *Service) Submit(ctx context.Context, productSlug string, userID int64, sub Submission) (*domain.Review, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	var review *domain.Review
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product domain.Product
		err := tx.Where("slug = ? AND is_active = ?", productSlug, true).First(&product).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.NewNotFound("product", productSlug)
		}
		if err != nil {
			return fmt.Errorf("query product: %w", err)
		}

		var count int64
		if err := tx.Model(&domain.Review{}).
			Where("product_id = ? AND user_id = ?", product.ID, userID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("query reviews: %w", err)
		}
		if count > 0 {
			return &domain.DuplicateReviewError{ProductID: product.ID, UserID: userID}
		}

		review = &domain.Review{
			ID:        common.UUIDint64(),
			ProductID: product.ID,
			UserID:    userID,
			Rating:    sub.Rating,
			Title:     strings.TrimSpace(sub.Title),
			Comment:   strings.TrimSpace(sub.Comment),
		}
		if err := tx.Create(review).Error; err != nil {
			// a concurrent submission won the unique index
			if isUniqueViolation(err) {
				return &domain.DuplicateReviewError{ProductID: product.ID, UserID: userID}
			}
			return fmt.Errorf("create review: %w", err)
		}
		review.Product = &product
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("review submitted",
		zap.String("namespace", "review"),
		zap.Int64("product_id", review.ProductID),
		zap.Int64("user_id", userID),
		zap.Int("rating", review.Rating))

	if s.bus != nil {
		s.bus.Publish(domain.TopicReviewSubmitted, review.ProductID)
	}
	return review, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "duplicate key")
}
