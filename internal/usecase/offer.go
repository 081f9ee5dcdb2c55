package usecase

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"offer-wizard/internal/domain"
)

// OfferAPI is the slice of the platform client the offer service consumes.
type OfferAPI interface {
	Property(ctx context.Context, propertyID string) (domain.Property, error)
	CMAAnalysis(ctx context.Context, propertyID string) (domain.CMAAnalysis, error)
	OfferPrice(ctx context.Context, propertyID string) (domain.OfferPrice, error)
	SaveOfferPrice(ctx context.Context, propertyID string, price float64) error
}

// OfferService assembles the wizard's final recommendation and persists
// user adjustments to the offer price.
type OfferService struct {
	api OfferAPI
}

func NewOfferService(api OfferAPI) (*OfferService, error) {
	if api == nil {
		return nil, errors.New("usecase: offer api must not be nil")
	}
	return &OfferService{api: api}, nil
}

// Recommendation fans out to the property context, the comparable analysis,
// and the price recommendation, and returns them assembled.
func (s *OfferService) Recommendation(ctx context.Context, propertyID string) (domain.OfferRecommendation, error) {
	var rec domain.OfferRecommendation

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rec.Property, err = s.api.Property(gctx, propertyID)
		return err
	})
	g.Go(func() error {
		var err error
		rec.Analysis, err = s.api.CMAAnalysis(gctx, propertyID)
		return err
	})
	g.Go(func() error {
		var err error
		rec.Price, err = s.api.OfferPrice(gctx, propertyID)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.OfferRecommendation{}, apiError("recommendation_error", err)
	}
	return rec, nil
}

// SaveAdjustedPrice persists a user-chosen offer price. Non-positive prices
// never reach the network.
func (s *OfferService) SaveAdjustedPrice(ctx context.Context, propertyID string, price float64) error {
	if price <= 0 {
		return newError(ErrorInvalidInput, "offer_price_not_positive", nil)
	}
	if err := s.api.SaveOfferPrice(ctx, propertyID, price); err != nil {
		return apiError("offer_price_save_error", err)
	}
	return nil
}
