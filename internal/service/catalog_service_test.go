package service

import (
	"context"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
)

type mockCategoryRepository struct {
	categories map[uuid.UUID]*domain.Category
	inUse      map[uuid.UUID]bool
}

func newMockCategoryRepository() *mockCategoryRepository {
	return &mockCategoryRepository{
		categories: make(map[uuid.UUID]*domain.Category),
		inUse:      make(map[uuid.UUID]bool),
	}
}

func (m *mockCategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	for _, existing := range m.categories {
		if existing.Name == category.Name {
			return repository.ErrCategoryAlreadyExists
		}
	}
	m.categories[category.ID] = category
	return nil
}

func (m *mockCategoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	categories := []*domain.Category{}
	for _, c := range m.categories {
		categories = append(categories, c)
	}
	return categories, nil
}

func (m *mockCategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	category, ok := m.categories[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	return category, nil
}

func (m *mockCategoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.categories[id]; !ok {
		return repository.ErrCategoryNotFound
	}
	if m.inUse[id] {
		return repository.ErrCategoryHasProducts
	}
	delete(m.categories, id)
	return nil
}

func seedCategory(categories *mockCategoryRepository) *domain.Category {
	category := &domain.Category{
		ID:        uuid.New(),
		Name:      "Gadgets " + uuid.New().String(),
		CreatedAt: time.Now(),
	}
	categories.categories[category.ID] = category
	return category
}

func TestCreateProductValidation(t *testing.T) {
	products := newMockProductRepository()
	categories := newMockCategoryRepository()
	svc := NewCatalogService(products, categories)
	ctx := context.Background()

	category := seedCategory(categories)

	tests := []struct {
		name    string
		price   float64
		stock   int
		wantErr error
	}{
		{"valid", 0.01, 0, nil},
		{"zero price", 0, 5, ErrInvalidPrice},
		{"negative price", -1.50, 5, ErrInvalidPrice},
		{"sub cent price", 0.001, 5, ErrInvalidPrice},
		{"negative stock", 9.99, -1, ErrInvalidStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateProduct(ctx, "Widget", "", tt.price, category.ID, "", tt.stock)
			if err != tt.wantErr {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCreateProductRequiresCategory(t *testing.T) {
	products := newMockProductRepository()
	categories := newMockCategoryRepository()
	svc := NewCatalogService(products, categories)

	_, err := svc.CreateProduct(context.Background(), "Widget", "", 5.00, uuid.New(), "", 3)
	if err != repository.ErrCategoryNotFound {
		t.Errorf("expected ErrCategoryNotFound, got %v", err)
	}
	if len(products.products) != 0 {
		t.Errorf("expected no product created, got %d", len(products.products))
	}
}

func TestUpdateProductValidation(t *testing.T) {
	products := newMockProductRepository()
	categories := newMockCategoryRepository()
	svc := NewCatalogService(products, categories)
	ctx := context.Background()

	category := seedCategory(categories)
	product, err := svc.CreateProduct(ctx, "Widget", "", 5.00, category.ID, "", 3)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	product.Price = 0
	if err := svc.UpdateProduct(ctx, product); err != ErrInvalidPrice {
		t.Errorf("expected ErrInvalidPrice, got %v", err)
	}

	product.Price = 6.50
	product.Stock = -2
	if err := svc.UpdateProduct(ctx, product); err != ErrInvalidStock {
		t.Errorf("expected ErrInvalidStock, got %v", err)
	}

	product.Stock = 7
	if err := svc.UpdateProduct(ctx, product); err != nil {
		t.Errorf("expected valid update to succeed, got %v", err)
	}
	if products.products[product.ID].Stock != 7 {
		t.Errorf("expected stock 7, got %d", products.products[product.ID].Stock)
	}
}

func TestCreateCategoryDuplicateName(t *testing.T) {
	products := newMockProductRepository()
	categories := newMockCategoryRepository()
	svc := NewCatalogService(products, categories)
	ctx := context.Background()

	if _, err := svc.CreateCategory(ctx, "Snacks", ""); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.CreateCategory(ctx, "Snacks", "again"); err != repository.ErrCategoryAlreadyExists {
		t.Errorf("expected ErrCategoryAlreadyExists, got %v", err)
	}
}

func TestDeleteCategoryWithProducts(t *testing.T) {
	products := newMockProductRepository()
	categories := newMockCategoryRepository()
	svc := NewCatalogService(products, categories)

	category := seedCategory(categories)
	categories.inUse[category.ID] = true

	if err := svc.DeleteCategory(context.Background(), category.ID); err != repository.ErrCategoryHasProducts {
		t.Errorf("expected ErrCategoryHasProducts, got %v", err)
	}
}
