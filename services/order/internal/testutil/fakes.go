// Package testutil holds in-memory stand-ins for the order service's
// store and product client. Writes become visible when the dbtest.Tx they
// were made through commits.
package testutil

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dax-side/ecommerce-microservices-api/pkg/apperr"
	"github.com/dax-side/ecommerce-microservices-api/pkg/db/dbtest"
	"github.com/dax-side/ecommerce-microservices-api/services/order/internal/domain"
	"github.com/dax-side/ecommerce-microservices-api/services/order/internal/repository"
	"github.com/jackc/pgx/v5"
)

type OrderRepo struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
	seq    map[string]int
	next   int
	now    time.Time

	CreateErr error
	ListErr   error
}

var _ repository.OrderRepository = (*OrderRepo)(nil)

func NewOrderRepo() *OrderRepo {
	return &OrderRepo{
		orders: make(map[string]*domain.Order),
		seq:    make(map[string]int),
		now:    time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (r *OrderRepo) tick() time.Time {
	r.now = r.now.Add(time.Second)
	return r.now
}

// Put stores order directly, bypassing transactions.
func (r *OrderRepo) Put(order domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.CreatedAt.IsZero() {
		order.CreatedAt = r.tick()
		order.UpdatedAt = order.CreatedAt
	}
	r.orders[order.ID] = &order
	r.next++
	r.seq[order.ID] = r.next
}

func (r *OrderRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

func (r *OrderRepo) Create(_ context.Context, tx pgx.Tx, order *domain.Order) error {
	if r.CreateErr != nil {
		return r.CreateErr
	}

	r.mu.Lock()
	order.CreatedAt = r.tick()
	order.UpdatedAt = order.CreatedAt
	r.mu.Unlock()

	stored := cloneOrder(order)
	dbtest.OnCommit(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.orders[stored.ID] = stored
		r.next++
		r.seq[stored.ID] = r.next
	})
	return nil
}

func (r *OrderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (r *OrderRepo) GetForUpdate(ctx context.Context, _ pgx.Tx, id string) (*domain.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *OrderRepo) GetItems(_ context.Context, id string) ([]domain.OrderItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return append([]domain.OrderItem(nil), o.Items...), nil
}

func (r *OrderRepo) List(_ context.Context, f domain.ListFilter) ([]domain.Order, int64, error) {
	if r.ListErr != nil {
		return nil, 0, r.ListErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*domain.Order
	for _, o := range r.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		matched = append(matched, o)
	}
	sort.Slice(matched, func(i, j int) bool {
		return r.seq[matched[i].ID] > r.seq[matched[j].ID]
	})

	total := int64(len(matched))
	start := (f.Page - 1) * f.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := min(start+f.Limit, len(matched))

	out := make([]domain.Order, 0, end-start)
	for _, o := range matched[start:end] {
		out = append(out, *cloneOrder(o))
	}
	return out, total, nil
}

func (r *OrderRepo) UpdateStatus(_ context.Context, tx pgx.Tx, id string, status domain.OrderStatus) (time.Time, error) {
	r.mu.Lock()
	if _, ok := r.orders[id]; !ok {
		r.mu.Unlock()
		return time.Time{}, repository.ErrOrderNotFound
	}
	at := r.tick()
	r.mu.Unlock()

	dbtest.OnCommit(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if o, ok := r.orders[id]; ok {
			o.Status = status
			o.UpdatedAt = at
		}
	})
	return at, nil
}

func (r *OrderRepo) Delete(_ context.Context, tx pgx.Tx, id string) (*domain.Order, error) {
	r.mu.Lock()
	o, ok := r.orders[id]
	r.mu.Unlock()
	if !ok {
		return nil, repository.ErrOrderNotFound
	}

	dbtest.OnCommit(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.orders, id)
		delete(r.seq, id)
	})
	return cloneOrder(o), nil
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.OrderItem(nil), o.Items...)
	return &c
}

type Products struct {
	mu       sync.Mutex
	products map[string]domain.Product
	errs     map[string]error
	calls    map[string]int
	total    atomic.Int64

	// Delay holds every lookup, letting tests observe concurrency.
	Delay time.Duration
}

func NewProducts(products ...domain.Product) *Products {
	p := &Products{
		products: make(map[string]domain.Product),
		errs:     make(map[string]error),
		calls:    make(map[string]int),
	}
	for _, prod := range products {
		p.products[prod.ID] = prod
	}
	return p
}

func (p *Products) Fail(id string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[id] = err
}

func (p *Products) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p.total.Add(1)

	p.mu.Lock()
	p.calls[id]++
	prod, ok := p.products[id]
	err := p.errs[id]
	p.mu.Unlock()

	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("product %s not found", id)
	}
	return &prod, nil
}

func (p *Products) Calls(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[id]
}

func (p *Products) TotalCalls() int64 {
	return p.total.Load()
}
