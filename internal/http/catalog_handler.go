package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/service"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CatalogService interface {
	CreateCategory(ctx context.Context, actor primitive.ObjectID, in service.CategoryInput) (*domain.Category, error)
	ListCategories(ctx context.Context, q domain.PageQuery) (*domain.PageResult[domain.Category], error)
	GetCategory(ctx context.Context, id primitive.ObjectID) (*domain.Category, error)
	UpdateCategory(ctx context.Context, id primitive.ObjectID, patch service.CategoryPatch) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id primitive.ObjectID) error

	CreateProduct(ctx context.Context, actor primitive.ObjectID, in service.ProductInput) (*domain.Product, error)
	ListProducts(ctx context.Context, f domain.ProductFilter, q domain.PageQuery) (*domain.PageResult[domain.Product], error)
	GetProduct(ctx context.Context, id primitive.ObjectID) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id primitive.ObjectID, patch service.ProductPatch) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id primitive.ObjectID) error
}

type CatalogHandler struct {
	svc     CatalogService
	timeout time.Duration
}

func NewCatalogHandler(svc CatalogService, timeout time.Duration) *CatalogHandler {
	return &CatalogHandler{svc: svc, timeout: timeout}
}

type CategoryRequestDTO struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type ProductRequestDTO struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
	Images      []string         `json:"images"`
	CategoryID  *string          `json:"categoryId"`
}

func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CategoryRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	category, err := h.svc.CreateCategory(ctx, identityFrom(r.Context()).UserID, service.CategoryInput{
		Name:        deref(req.Name),
		Description: deref(req.Description),
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, "Category created successfully", category)
}

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q, err := parsePage(r, categorySorts)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	page, err := h.svc.ListCategories(ctx, q)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Categories fetched successfully", page)
}

func (h *CatalogHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := pathID(r, "categoryId")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	category, err := h.svc.GetCategory(ctx, id)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Category fetched successfully", category)
}

func (h *CatalogHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := pathID(r, "categoryId")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	var req CategoryRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	category, err := h.svc.UpdateCategory(ctx, id, service.CategoryPatch{Name: req.Name, Description: req.Description})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Category updated successfully", category)
}

func (h *CatalogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := pathID(r, "categoryId")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if err := h.svc.DeleteCategory(ctx, id); err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Category deleted successfully", nil)
}

func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ProductRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	if req.Price == nil || req.Stock == nil || req.CategoryID == nil {
		respondErr(w, r, domain.InvalidInput("name, description, price, stock, images and categoryId are required"))
		return
	}
	categoryID, err := parseID(*req.CategoryID, "categoryId")
	if err != nil {
		respondErr(w, r, err)
		return
	}

	product, err := h.svc.CreateProduct(ctx, identityFrom(r.Context()).UserID, service.ProductInput{
		Name:        deref(req.Name),
		Description: deref(req.Description),
		Price:       *req.Price,
		Stock:       *req.Stock,
		Images:      req.Images,
		Category:    categoryID,
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, "Product created successfully", product)
}

func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q, err := parsePage(r, productSorts)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	f, err := parseProductFilter(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	page, err := h.svc.ListProducts(ctx, f, q)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Products fetched successfully", page)
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := pathID(r, "productId")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	product, err := h.svc.GetProduct(ctx, id)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Product fetched successfully", product)
}

func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := pathID(r, "productId")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	var req ProductRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	patch := service.ProductPatch{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Images:      req.Images,
	}
	if req.CategoryID != nil {
		categoryID, err := parseID(*req.CategoryID, "categoryId")
		if err != nil {
			respondErr(w, r, err)
			return
		}
		patch.Category = &categoryID
	}

	product, err := h.svc.UpdateProduct(ctx, id, patch)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Product updated successfully", product)
}

func (h *CatalogHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := pathID(r, "productId")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if err := h.svc.DeleteProduct(ctx, id); err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Product deleted successfully", nil)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
