package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/singleflight"
)

type CatalogService struct {
	categories repository.CategoryRepository
	products   repository.ProductRepository
	cache      cache.ProductCache
	sfg        singleflight.Group // Prevents cache stampede
}

func NewCatalogService(categories repository.CategoryRepository, products repository.ProductRepository, productCache cache.ProductCache) *CatalogService {
	return &CatalogService{
		categories: categories,
		products:   products,
		cache:      productCache,
	}
}

type CategoryInput struct {
	Name        string
	Description string
}

type CategoryPatch struct {
	Name        *string
	Description *string
}

type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Images      []string
	Category    primitive.ObjectID
}

type ProductPatch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	Images      []string
	Category    *primitive.ObjectID
}

func (s *CatalogService) CreateCategory(ctx context.Context, actor primitive.ObjectID, in CategoryInput) (*domain.Category, error) {
	name := domain.NormalizeCategoryName(in.Name)
	if name == "" {
		return nil, domain.InvalidInput("category name is required")
	}
	if err := s.ensureNameFree(ctx, name, primitive.NilObjectID); err != nil {
		return nil, err
	}

	category := &domain.Category{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		CreatedBy:   actor,
	}
	if err := s.categories.Create(ctx, category); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.Conflict("category %q already exists", name)
		}
		return nil, err
	}
	return category, nil
}

func (s *CatalogService) ListCategories(ctx context.Context, q domain.PageQuery) (*domain.PageResult[domain.Category], error) {
	items, total, err := s.categories.List(ctx, q)
	if err != nil {
		return nil, err
	}
	return domain.NewPageResult(items, total, q), nil
}

func (s *CatalogService) GetCategory(ctx context.Context, id primitive.ObjectID) (*domain.Category, error) {
	category, err := s.categories.GetActive(ctx, id)
	if err != nil {
		return nil, notFound(err, "category not found")
	}
	return category, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id primitive.ObjectID, patch CategoryPatch) (*domain.Category, error) {
	category, err := s.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := domain.NormalizeCategoryName(*patch.Name)
		if name == "" {
			return nil, domain.InvalidInput("category name cannot be empty")
		}
		if name != category.Name {
			if err := s.ensureNameFree(ctx, name, category.ID); err != nil {
				return nil, err
			}
		}
		category.Name = name
	}
	if patch.Description != nil {
		category.Description = strings.TrimSpace(*patch.Description)
	}

	if err := s.categories.Update(ctx, category); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.Conflict("category %q already exists", category.Name)
		}
		return nil, notFound(err, "category not found")
	}
	return category, nil
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id primitive.ObjectID) error {
	if err := s.categories.Deactivate(ctx, id); err != nil {
		return notFound(err, "category not found")
	}
	return nil
}

func (s *CatalogService) ensureNameFree(ctx context.Context, name string, self primitive.ObjectID) error {
	existing, err := s.categories.FindActiveByName(ctx, name)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != self:
		return domain.Conflict("category %q already exists", name)
	}
	return nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, actor primitive.ObjectID, in ProductInput) (*domain.Product, error) {
	product := &domain.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		Stock:       in.Stock,
		Images:      in.Images,
		Category:    in.Category,
		CreatedBy:   actor,
	}
	if err := s.validateProduct(ctx, product); err != nil {
		return nil, err
	}

	if err := s.products.Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *CatalogService) ListProducts(ctx context.Context, f domain.ProductFilter, q domain.PageQuery) (*domain.PageResult[domain.Product], error) {
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return nil, domain.InvalidInput("minimum price exceeds maximum price")
	}
	items, total, err := s.products.List(ctx, f, q)
	if err != nil {
		return nil, err
	}
	return domain.NewPageResult(items, total, q), nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id primitive.ObjectID) (*domain.Product, error) {
	key := id.Hex()
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		if cached := readCache(ctx, s.cache, key); cached != nil {
			return cached, nil
		}

		gen, cacheable := cacheGeneration(ctx, s.cache, key)
		product, err := s.products.GetActive(ctx, id)
		if err != nil {
			return nil, notFound(err, "product not found")
		}
		if cacheable {
			fillCache(s.cache, key, gen, product)
		}
		return product, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Product), nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id primitive.ObjectID, patch ProductPatch) (*domain.Product, error) {
	product, err := s.products.GetActive(ctx, id)
	if err != nil {
		return nil, notFound(err, "product not found")
	}

	changes := domain.ProductChanges{
		Price:    patch.Price,
		Stock:    patch.Stock,
		Images:   patch.Images,
		Category: patch.Category,
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		changes.Name = &name
	}
	if patch.Description != nil {
		description := strings.TrimSpace(*patch.Description)
		changes.Description = &description
	}
	// validate the merged view; only the patched fields are written
	changes.Apply(product)
	if err := s.validateProduct(ctx, product); err != nil {
		return nil, err
	}
	if changes.Images != nil {
		changes.Images = product.Images
	}

	updated, err := s.products.Update(ctx, id, changes)
	if err != nil {
		return nil, notFound(err, "product not found")
	}
	invalidateCache(s.cache, id.Hex())
	return updated, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id primitive.ObjectID) error {
	if err := s.products.Deactivate(ctx, id); err != nil {
		return notFound(err, "product not found")
	}
	invalidateCache(s.cache, id.Hex())
	return nil
}

func (s *CatalogService) validateProduct(ctx context.Context, p *domain.Product) error {
	var details []string
	if p.Name == "" {
		details = append(details, "name is required")
	}
	if p.Description == "" {
		details = append(details, "description is required")
	}
	if p.Price.IsNegative() {
		details = append(details, "price must not be negative")
	}
	if p.Stock < 0 {
		details = append(details, "stock must not be negative")
	}
	images := p.Images[:0:0]
	for _, img := range p.Images {
		if img = strings.TrimSpace(img); img != "" {
			images = append(images, img)
		}
	}
	p.Images = images
	if len(p.Images) == 0 {
		details = append(details, "at least one image is required")
	}
	if p.Category.IsZero() {
		details = append(details, "category is required")
	}
	if len(details) > 0 {
		return domain.InvalidInput("invalid product").WithDetails(details...)
	}

	if _, err := s.categories.GetActive(ctx, p.Category); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.InvalidInput("category %s does not exist or is inactive", p.Category.Hex())
		}
		return fmt.Errorf("check category: %w", err)
	}
	return nil
}
