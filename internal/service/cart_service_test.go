package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Mock repositories for testing
type mockProductRepository struct {
	products map[uuid.UUID]*domain.Product
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{products: make(map[uuid.UUID]*domain.Product)}
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	if _, ok := m.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return product, nil
}

func (m *mockProductRepository) List(ctx context.Context, categoryID *uuid.UUID, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error) {
	products := []*domain.Product{}
	for _, p := range m.products {
		if categoryID == nil || p.CategoryID == *categoryID {
			products = append(products, p)
		}
	}
	return products, len(products), nil
}

func (m *mockProductRepository) Search(ctx context.Context, query string, page, pageSize int) ([]*domain.Product, int, error) {
	return m.List(ctx, nil, page, pageSize, "", repository.SortOrderDesc)
}

type mockCartRepository struct {
	items    map[uuid.UUID]*domain.CartItem
	products *mockProductRepository
}

func newMockCartRepository(products *mockProductRepository) *mockCartRepository {
	return &mockCartRepository{
		items:    make(map[uuid.UUID]*domain.CartItem),
		products: products,
	}
}

func (m *mockCartRepository) ListLines(ctx context.Context, userID uuid.UUID) ([]domain.CartLine, error) {
	lines := []domain.CartLine{}
	for _, item := range m.items {
		if item.UserID != userID {
			continue
		}
		product, ok := m.products.products[item.ProductID]
		if !ok {
			continue
		}
		lines = append(lines, domain.CartLine{
			ItemID:      item.ID,
			ProductID:   item.ProductID,
			ProductName: product.Name,
			UnitPrice:   product.Price,
			Quantity:    item.Quantity,
			Stock:       product.Stock,
			LineTotal:   product.Price * float64(item.Quantity),
		})
	}
	return lines, nil
}

func (m *mockCartRepository) FindItem(ctx context.Context, itemID, userID uuid.UUID) (*domain.CartItem, error) {
	item, ok := m.items[itemID]
	if !ok || item.UserID != userID {
		return nil, repository.ErrCartItemNotFound
	}
	return item, nil
}

func (m *mockCartRepository) FindItemByProduct(ctx context.Context, userID, productID uuid.UUID) (*domain.CartItem, error) {
	for _, item := range m.items {
		if item.UserID == userID && item.ProductID == productID {
			return item, nil
		}
	}
	return nil, repository.ErrCartItemNotFound
}

func (m *mockCartRepository) Upsert(ctx context.Context, item *domain.CartItem) error {
	for _, existing := range m.items {
		if existing.UserID == item.UserID && existing.ProductID == item.ProductID {
			existing.Quantity += item.Quantity
			existing.UpdatedAt = item.UpdatedAt
			return nil
		}
	}
	copied := *item
	m.items[item.ID] = &copied
	return nil
}

func (m *mockCartRepository) UpdateQuantity(ctx context.Context, itemID, userID uuid.UUID, quantity int) error {
	item, ok := m.items[itemID]
	if !ok || item.UserID != userID {
		return repository.ErrCartItemNotFound
	}
	item.Quantity = quantity
	return nil
}

func (m *mockCartRepository) Delete(ctx context.Context, itemID, userID uuid.UUID) error {
	item, ok := m.items[itemID]
	if !ok || item.UserID != userID {
		return repository.ErrCartItemNotFound
	}
	delete(m.items, itemID)
	return nil
}

func (m *mockCartRepository) Clear(ctx context.Context, userID uuid.UUID) error {
	for id, item := range m.items {
		if item.UserID == userID {
			delete(m.items, id)
		}
	}
	return nil
}

func seedProduct(products *mockProductRepository, price float64, stock int) *domain.Product {
	product := &domain.Product{
		ID:        uuid.New(),
		Name:      "Test Product",
		Price:     price,
		Stock:     stock,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	products.products[product.ID] = product
	return product
}

// Property: adding the same product twice merges into one line with the
// summed quantity, as long as the sum fits in stock
func TestProperty_AddingSameProductMergesLines(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("adds of the same product merge by summing quantity", prop.ForAll(
		func(q1, q2 int) bool {
			products := newMockProductRepository()
			carts := newMockCartRepository(products)
			svc := NewCartService(carts, products)
			ctx := context.Background()
			userID := uuid.New()

			product := seedProduct(products, 9.99, q1+q2)

			if _, err := svc.AddItem(ctx, userID, product.ID, q1); err != nil {
				t.Logf("FAIL: first add: %v", err)
				return false
			}
			view, err := svc.AddItem(ctx, userID, product.ID, q2)
			if err != nil {
				t.Logf("FAIL: second add: %v", err)
				return false
			}

			if len(view.Lines) != 1 {
				t.Logf("FAIL: expected 1 line, got %d", len(view.Lines))
				return false
			}
			if view.Lines[0].Quantity != q1+q2 {
				t.Logf("FAIL: expected quantity %d, got %d", q1+q2, view.Lines[0].Quantity)
				return false
			}
			return true
		},
		gen.IntRange(1, 50),
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}

// Property: the cart total is always the sum of line totals at current prices
func TestProperty_CartTotalIsSumOfLineTotals(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("cart total equals sum of unitPrice*quantity", prop.ForAll(
		func(quantities []int) bool {
			products := newMockProductRepository()
			carts := newMockCartRepository(products)
			svc := NewCartService(carts, products)
			ctx := context.Background()
			userID := uuid.New()

			expected := 0.0
			for i, q := range quantities {
				if q < 1 {
					q = 1
				}
				price := float64(i+1) * 2.5
				product := seedProduct(products, price, q)
				if _, err := svc.AddItem(ctx, userID, product.ID, q); err != nil {
					t.Logf("FAIL: add: %v", err)
					return false
				}
				expected += price * float64(q)
			}

			view, err := svc.View(ctx, userID)
			if err != nil {
				t.Logf("FAIL: view: %v", err)
				return false
			}
			if view.Total != expected {
				t.Logf("FAIL: expected total %f, got %f", expected, view.Total)
				return false
			}
			return true
		},
		gen.SliceOfN(4, gen.IntRange(1, 20)),
	))

	properties.TestingRun(t)
}

func TestAddItemInsufficientStock(t *testing.T) {
	products := newMockProductRepository()
	carts := newMockCartRepository(products)
	svc := NewCartService(carts, products)
	ctx := context.Background()
	userID := uuid.New()

	product := seedProduct(products, 5.00, 3)

	if _, err := svc.AddItem(ctx, userID, product.ID, 2); err != nil {
		t.Fatalf("first add failed: %v", err)
	}

	// 2 already in cart + 2 more would exceed stock of 3
	_, err := svc.AddItem(ctx, userID, product.ID, 2)
	var stockErr *repository.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.Requested != 4 || stockErr.Available != 3 {
		t.Errorf("expected requested=4 available=3, got requested=%d available=%d", stockErr.Requested, stockErr.Available)
	}

	// Cart must be unchanged
	view, err := svc.View(ctx, userID)
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}
	if len(view.Lines) != 1 || view.Lines[0].Quantity != 2 {
		t.Errorf("expected cart unchanged with quantity 2, got %+v", view.Lines)
	}
}

func TestUpdateItemInsufficientStockLeavesLineUnchanged(t *testing.T) {
	products := newMockProductRepository()
	carts := newMockCartRepository(products)
	svc := NewCartService(carts, products)
	ctx := context.Background()
	userID := uuid.New()

	product := seedProduct(products, 5.00, 2)

	view, err := svc.AddItem(ctx, userID, product.ID, 2)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	itemID := view.Lines[0].ItemID

	_, err = svc.UpdateItem(ctx, userID, itemID, 5)
	var stockErr *repository.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}

	view, err = svc.View(ctx, userID)
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}
	if view.Lines[0].Quantity != 2 {
		t.Errorf("expected line quantity to remain 2, got %d", view.Lines[0].Quantity)
	}
}

func TestAddItemUnknownProduct(t *testing.T) {
	products := newMockProductRepository()
	carts := newMockCartRepository(products)
	svc := NewCartService(carts, products)

	_, err := svc.AddItem(context.Background(), uuid.New(), uuid.New(), 1)
	if err != repository.ErrProductNotFound {
		t.Errorf("expected ErrProductNotFound, got %v", err)
	}
}

func TestAddItemRejectsZeroQuantity(t *testing.T) {
	products := newMockProductRepository()
	carts := newMockCartRepository(products)
	svc := NewCartService(carts, products)

	product := seedProduct(products, 5.00, 10)

	for _, q := range []int{0, -1} {
		if _, err := svc.AddItem(context.Background(), uuid.New(), product.ID, q); err != ErrInvalidQuantity {
			t.Errorf("quantity %d: expected ErrInvalidQuantity, got %v", q, err)
		}
	}
}

func TestUpdateItemNotFound(t *testing.T) {
	products := newMockProductRepository()
	carts := newMockCartRepository(products)
	svc := NewCartService(carts, products)

	_, err := svc.UpdateItem(context.Background(), uuid.New(), uuid.New(), 2)
	if err != repository.ErrCartItemNotFound {
		t.Errorf("expected ErrCartItemNotFound, got %v", err)
	}
}

func TestRemoveItemNotOwnLine(t *testing.T) {
	products := newMockProductRepository()
	carts := newMockCartRepository(products)
	svc := NewCartService(carts, products)
	ctx := context.Background()

	owner := uuid.New()
	other := uuid.New()

	product := seedProduct(products, 5.00, 10)
	view, err := svc.AddItem(ctx, owner, product.ID, 1)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	// Another user cannot address the owner's line
	if _, err := svc.RemoveItem(ctx, other, view.Lines[0].ItemID); err != repository.ErrCartItemNotFound {
		t.Errorf("expected ErrCartItemNotFound for foreign line, got %v", err)
	}
}

func TestClearIsIdempotent(t *testing.T) {
	products := newMockProductRepository()
	carts := newMockCartRepository(products)
	svc := NewCartService(carts, products)
	ctx := context.Background()
	userID := uuid.New()

	product := seedProduct(products, 5.00, 10)
	if _, err := svc.AddItem(ctx, userID, product.ID, 3); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if err := svc.Clear(ctx, userID); err != nil {
		t.Fatalf("first clear failed: %v", err)
	}
	// Clearing an already-empty cart is a no-op and succeeds
	if err := svc.Clear(ctx, userID); err != nil {
		t.Fatalf("second clear failed: %v", err)
	}

	view, err := svc.View(ctx, userID)
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}
	if len(view.Lines) != 0 || view.Total != 0 {
		t.Errorf("expected empty cart, got %+v", view)
	}
}

func TestViewUsesLivePrices(t *testing.T) {
	products := newMockProductRepository()
	carts := newMockCartRepository(products)
	svc := NewCartService(carts, products)
	ctx := context.Background()
	userID := uuid.New()

	product := seedProduct(products, 10.00, 10)
	if _, err := svc.AddItem(ctx, userID, product.ID, 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	// Price change after adding must be reflected in the cart view
	product.Price = 15.00

	view, err := svc.View(ctx, userID)
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}
	if view.Total != 30.00 {
		t.Errorf("expected live total 30.00, got %f", view.Total)
	}
}
