package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/internal/repository"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

type feeStructureRepository interface {
	FindByID(ctx context.Context, id string) (*models.FeeStructure, error)
	List(ctx context.Context, filter models.FeeStructureFilter) ([]models.FeeStructure, int, error)
	Create(ctx context.Context, fee *models.FeeStructure) error
	Update(ctx context.Context, fee *models.FeeStructure) error
}

// FeeCatalogService manages fee structures. Reads are cached; the billing
// write path reads fees from the database directly.
type FeeCatalogService struct {
	repo            feeStructureRepository
	cache           *CacheService
	validator       *validator.Validate
	logger          *zap.Logger
	defaultCurrency string
	ttl             time.Duration
	now             func() time.Time
}

// NewFeeCatalogService constructs a FeeCatalogService.
func NewFeeCatalogService(repo feeStructureRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger, defaultCurrency string, ttl time.Duration) *FeeCatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultCurrency == "" {
		defaultCurrency = "IDR"
	}
	return &FeeCatalogService{
		repo:            repo,
		cache:           cache,
		validator:       validate,
		logger:          logger,
		defaultCurrency: defaultCurrency,
		ttl:             ttl,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Get returns a fee structure, consulting the cache first.
func (s *FeeCatalogService) Get(ctx context.Context, id string) (*models.FeeStructure, bool, error) {
	key := feeCacheKey(id)
	var cached models.FeeStructure
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	fee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrFeeStructureNotFound) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "fee structure not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee structure")
	}
	s.cache.Set(ctx, key, fee, s.ttl)
	return fee, false, nil
}

// List returns fee structures with pagination metadata.
func (s *FeeCatalogService) List(ctx context.Context, filter models.FeeStructureFilter) ([]models.FeeStructure, *models.Pagination, error) {
	if filter.Type != nil && *filter.Type != models.FeeTypeExam && *filter.Type != models.FeeTypeCertificate {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown fee type")
	}
	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)
	fees, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fee structures")
	}
	return fees, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Create adds a fee structure to the catalog.
func (s *FeeCatalogService) Create(ctx context.Context, req dto.CreateFeeStructureRequest) (*models.FeeStructure, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee structure payload")
	}
	if err := validateFeeAmount(req.Amount.String(), req.Amount.IsPositive(), req.Amount.Equal(req.Amount.Round(models.MoneyScale))); err != nil {
		return nil, err
	}

	now := s.now()
	fee := &models.FeeStructure{
		Name:        strings.TrimSpace(req.Name),
		Type:        models.FeeType(req.Type),
		Amount:      req.Amount,
		Currency:    s.defaultCurrency,
		Description: trimOptional(req.Description),
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Currency != "" {
		fee.Currency = req.Currency
	}
	if req.Active != nil {
		fee.Active = *req.Active
	}

	if err := s.repo.Create(ctx, fee); err != nil {
		if errors.Is(err, repository.ErrDuplicateFeeStructure) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "fee structure with this name and type already exists")
		}
		s.logger.Error("create fee structure failed", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create fee structure")
	}
	return fee, nil
}

// Update changes a fee structure. Assessments already priced keep their amount.
func (s *FeeCatalogService) Update(ctx context.Context, id string, req dto.UpdateFeeStructureRequest) (*models.FeeStructure, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee structure payload")
	}
	fee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrFeeStructureNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee structure not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee structure")
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "name must not be empty")
		}
		fee.Name = name
	}
	if req.Amount != nil {
		amount := *req.Amount
		if err := validateFeeAmount(amount.String(), amount.IsPositive(), amount.Equal(amount.Round(models.MoneyScale))); err != nil {
			return nil, err
		}
		fee.Amount = amount
	}
	if req.Currency != nil {
		fee.Currency = *req.Currency
	}
	if req.Description != nil {
		fee.Description = trimOptional(req.Description)
	}
	if req.Active != nil {
		fee.Active = *req.Active
	}
	fee.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, fee); err != nil {
		switch {
		case errors.Is(err, repository.ErrFeeStructureNotFound):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee structure not found")
		case errors.Is(err, repository.ErrDuplicateFeeStructure):
			return nil, appErrors.Clone(appErrors.ErrConflict, "fee structure with this name and type already exists")
		}
		s.logger.Error("update fee structure failed", zap.String("fee_structure_id", id), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update fee structure")
	}
	s.cache.Delete(ctx, feeCacheKey(id))
	return fee, nil
}

func validateFeeAmount(raw string, positive, twoDecimals bool) error {
	if !positive {
		return appErrors.Clone(appErrors.ErrValidation, "amount must be positive")
	}
	if !twoDecimals {
		return appErrors.Clone(appErrors.ErrValidation, "amount "+raw+" has more than two decimal places")
	}
	return nil
}
