// Package testutil holds an in-memory product store. Stock and reservation
// writes made through a dbtest.Tx apply when it commits.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dax-side/ecommerce-microservices-api/pkg/db/dbtest"
	"github.com/dax-side/ecommerce-microservices-api/services/product/internal/domain"
	"github.com/dax-side/ecommerce-microservices-api/services/product/internal/repository"
	"github.com/jackc/pgx/v5"
)

type ProductRepo struct {
	mu           sync.Mutex
	products     map[string]*domain.Product
	deleted      map[string]bool
	reservations map[string][]domain.StockLine
	now          time.Time

	ListErr error
}

var _ repository.ProductRepository = (*ProductRepo)(nil)

func NewProductRepo(products ...domain.Product) *ProductRepo {
	r := &ProductRepo{
		products:     make(map[string]*domain.Product),
		deleted:      make(map[string]bool),
		reservations: make(map[string][]domain.StockLine),
		now:          time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	for _, p := range products {
		r.Put(p)
	}
	return r
}

func (r *ProductRepo) tick() time.Time {
	r.now = r.now.Add(time.Second)
	return r.now
}

func (r *ProductRepo) Put(p domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.tick()
		p.UpdatedAt = p.CreatedAt
	}
	r.products[p.ID] = &p
}

// Stock reads committed stock, including that of deleted products.
func (r *ProductRepo) Stock(id string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.products[id]; ok {
		return p.Stock
	}
	return -1
}

func (r *ProductRepo) Reserved(orderID string) []domain.StockLine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.StockLine(nil), r.reservations[orderID]...)
}

func (r *ProductRepo) Create(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p.CreatedAt = r.tick()
	p.UpdatedAt = p.CreatedAt
	stored := *p
	r.products[p.ID] = &stored
	return nil
}

func (r *ProductRepo) live(id string) (*domain.Product, bool) {
	p, ok := r.products[id]
	if !ok || r.deleted[id] {
		return nil, false
	}
	return p, true
}

func (r *ProductRepo) GetByID(_ context.Context, id string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.live(id)
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	c := *p
	return &c, nil
}

func (r *ProductRepo) List(_ context.Context, f domain.ListFilter) ([]domain.Product, int64, error) {
	if r.ListErr != nil {
		return nil, 0, r.ListErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []domain.Product
	for id, p := range r.products {
		if r.deleted[id] {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.Search != "" &&
			!strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) &&
			!strings.Contains(strings.ToLower(p.Description), strings.ToLower(f.Search)) {
			continue
		}
		matched = append(matched, *p)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := min((f.Page-1)*f.Limit, len(matched))
	end := min(start+f.Limit, len(matched))

	return append([]domain.Product{}, matched[start:end]...), total, nil
}

func (r *ProductRepo) Update(_ context.Context, id string, in *domain.UpdateProductInput) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.live(id)
	if !ok {
		return nil, repository.ErrProductNotFound
	}

	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.Category != nil {
		p.Category = *in.Category
	}
	if in.ImageURL != nil {
		p.ImageURL = *in.ImageURL
	}
	p.UpdatedAt = r.tick()

	c := *p
	return &c, nil
}

func (r *ProductRepo) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.live(id); !ok {
		return repository.ErrProductNotFound
	}
	r.deleted[id] = true
	return nil
}

func (r *ProductRepo) DecreaseStock(_ context.Context, tx pgx.Tx, id string, quantity int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.live(id)
	if !ok {
		return 0, repository.ErrProductNotFound
	}
	if p.Stock < quantity {
		return p.Stock, repository.ErrInsufficientStock
	}

	dbtest.OnCommit(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.products[id].Stock -= quantity
	})
	return p.Stock - quantity, nil
}

func (r *ProductRepo) IncreaseStock(_ context.Context, tx pgx.Tx, id string, quantity int64) error {
	r.mu.Lock()
	_, ok := r.products[id]
	r.mu.Unlock()
	if !ok {
		return repository.ErrProductNotFound
	}

	dbtest.OnCommit(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.products[id].Stock += quantity
	})
	return nil
}

func (r *ProductRepo) SaveReservations(_ context.Context, tx pgx.Tx, orderID string, lines []domain.StockLine) error {
	saved := append([]domain.StockLine(nil), lines...)
	dbtest.OnCommit(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.reservations[orderID] = append(r.reservations[orderID], saved...)
	})
	return nil
}

func (r *ProductRepo) TakeReservations(_ context.Context, tx pgx.Tx, orderID string) ([]domain.StockLine, error) {
	r.mu.Lock()
	lines := append([]domain.StockLine(nil), r.reservations[orderID]...)
	r.mu.Unlock()

	dbtest.OnCommit(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.reservations, orderID)
	})
	return lines, nil
}
