package service

import (
	"context"
	"strings"
	"sync"

	"github.com/liliang-cn/fixdoc/internal/domain"
	"go.uber.org/zap"
)

// CatalogService maintains the registry of known device types, brands and models
type CatalogService struct {
	store  domain.CatalogStore
	mu     sync.Mutex
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store domain.CatalogStore, logger *zap.Logger) *CatalogService {
	return &CatalogService{store: store, logger: logger.Named("catalog")}
}

// Update registers brand and model under deviceType. It reports whether the
// catalog changed; repeating a call with the same values is a no-op.
func (s *CatalogService) Update(ctx context.Context, deviceType, brand, model string) (bool, error) {
	deviceType = strings.TrimSpace(deviceType)
	brand = strings.TrimSpace(brand)
	model = strings.TrimSpace(model)
	if deviceType == "" || brand == "" {
		return false, domain.Errorf(domain.ErrValidation, "device type and brand are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cat, err := s.store.Get(ctx, deviceType)
	if err != nil {
		return false, err
	}

	if cat == nil {
		cat = &domain.DeviceCategory{Name: deviceType}
		cat.AddDevice(brand, model)
		if err := s.store.Create(ctx, cat); err != nil {
			return false, err
		}
		s.logger.Info("created device category", zap.String("device_type", deviceType))
		return true, nil
	}

	if !cat.AddDevice(brand, model) {
		return false, nil
	}
	if err := s.store.Save(ctx, cat); err != nil {
		return false, err
	}
	s.logger.Info("updated device category", zap.String("device_type", deviceType), zap.String("brand", brand))
	return true, nil
}

// List returns every device category
func (s *CatalogService) List(ctx context.Context) (*domain.DeviceList, error) {
	cats, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.DeviceList{Devices: cats, TotalCount: len(cats)}, nil
}

// Get returns the category for deviceType
func (s *CatalogService) Get(ctx context.Context, deviceType string) (*domain.DeviceCategory, error) {
	cat, err := s.store.Get(ctx, deviceType)
	if err != nil {
		return nil, err
	}
	if cat == nil {
		return nil, domain.Errorf(domain.ErrNotFound, "device type %q", deviceType)
	}
	return cat, nil
}
