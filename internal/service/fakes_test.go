package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memDB is an in-memory stand-in for the Mongo store. WithTransaction
// serializes transactions and restores a snapshot when fn fails.
type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users      map[primitive.ObjectID]domain.User
	addresses  map[primitive.ObjectID]domain.Address
	categories map[primitive.ObjectID]domain.Category
	products   map[primitive.ObjectID]domain.Product
	carts      map[primitive.ObjectID]domain.Cart
	orders     map[primitive.ObjectID]domain.Order
	payments   map[primitive.ObjectID]domain.Payment
	ratings    map[primitive.ObjectID]domain.Rating
	outbox     map[string]domain.OutboxEvent

	// fail makes the named operation return the error, e.g. "outbox.Insert".
	fail  map[string]error
	clock time.Time
}

func newMemDB() *memDB {
	return &memDB{
		users:      map[primitive.ObjectID]domain.User{},
		addresses:  map[primitive.ObjectID]domain.Address{},
		categories: map[primitive.ObjectID]domain.Category{},
		products:   map[primitive.ObjectID]domain.Product{},
		carts:      map[primitive.ObjectID]domain.Cart{},
		orders:     map[primitive.ObjectID]domain.Order{},
		payments:   map[primitive.ObjectID]domain.Payment{},
		ratings:    map[primitive.ObjectID]domain.Rating{},
		outbox:     map[string]domain.OutboxEvent{},
		fail:       map[string]error{},
		clock:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// now must be called with mu held. Every call advances the clock so
// createdAt ordering is deterministic.
func (db *memDB) now() time.Time {
	db.clock = db.clock.Add(time.Millisecond)
	return db.clock
}

func (db *memDB) check(op string) error {
	return db.fail[op]
}

type snapshot struct {
	users      map[primitive.ObjectID]domain.User
	addresses  map[primitive.ObjectID]domain.Address
	categories map[primitive.ObjectID]domain.Category
	products   map[primitive.ObjectID]domain.Product
	carts      map[primitive.ObjectID]domain.Cart
	orders     map[primitive.ObjectID]domain.Order
	payments   map[primitive.ObjectID]domain.Payment
	ratings    map[primitive.ObjectID]domain.Rating
	outbox     map[string]domain.OutboxEvent
}

func cloneMap[K comparable, V any](m map[K]V, clone func(V) V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		if clone != nil {
			v = clone(v)
		}
		out[k] = v
	}
	return out
}

func cloneCart(c domain.Cart) domain.Cart {
	c.Items = append([]domain.CartItem(nil), c.Items...)
	return c
}

func cloneOrder(o domain.Order) domain.Order {
	o.OrderItems = append([]domain.OrderItem(nil), o.OrderItems...)
	return o
}

func cloneProduct(p domain.Product) domain.Product {
	p.Images = append([]string(nil), p.Images...)
	return p
}

func (db *memDB) snapshot() snapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	return snapshot{
		users:      cloneMap(db.users, nil),
		addresses:  cloneMap(db.addresses, nil),
		categories: cloneMap(db.categories, nil),
		products:   cloneMap(db.products, cloneProduct),
		carts:      cloneMap(db.carts, cloneCart),
		orders:     cloneMap(db.orders, cloneOrder),
		payments:   cloneMap(db.payments, nil),
		ratings:    cloneMap(db.ratings, nil),
		outbox:     cloneMap(db.outbox, nil),
	}
}

func (db *memDB) restore(s snapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users, db.addresses, db.categories = s.users, s.addresses, s.categories
	db.products, db.carts, db.orders = s.products, s.carts, s.orders
	db.payments, db.ratings, db.outbox = s.payments, s.ratings, s.outbox
}

func (db *memDB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	snap := db.snapshot()
	if err := fn(ctx); err != nil {
		db.restore(snap)
		return err
	}
	return nil
}

func (db *memDB) outboxEvents() []domain.OutboxEvent {
	db.mu.Lock()
	defer db.mu.Unlock()
	events := make([]domain.OutboxEvent, 0, len(db.outbox))
	for _, e := range db.outbox {
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt.Before(events[j].CreatedAt) })
	return events
}

func (db *memDB) product(id primitive.ObjectID) domain.Product {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.products[id]
}

func paginate[T any](items []T, q domain.PageQuery) []T {
	start := int(q.Skip())
	if start >= len(items) {
		return []T{}
	}
	end := start + q.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// users

type fakeUsers struct{ db *memDB }

func (r fakeUsers) Create(_ context.Context, u *domain.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.users {
		if existing.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.CreatedAt = r.db.now()
	u.UpdatedAt = u.CreatedAt
	r.db.users[u.ID] = *u
	return nil
}

func (r fakeUsers) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r fakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r fakeUsers) Summaries(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]domain.UserSummary, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := map[primitive.ObjectID]domain.UserSummary{}
	for _, id := range ids {
		if u, ok := r.db.users[id]; ok {
			out[id] = u.Summary()
		}
	}
	return out, nil
}

func (r fakeUsers) update(id primitive.ObjectID, fn func(*domain.User)) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	fn(&u)
	u.UpdatedAt = r.db.now()
	r.db.users[id] = u
	return &u, nil
}

func (r fakeUsers) UpdatePassword(_ context.Context, id primitive.ObjectID, hash string) error {
	_, err := r.update(id, func(u *domain.User) { u.PasswordHash = hash })
	return err
}

func (r fakeUsers) UpdateFullName(_ context.Context, id primitive.ObjectID, fullName string) (*domain.User, error) {
	return r.update(id, func(u *domain.User) { u.FullName = fullName })
}

func (r fakeUsers) MarkEmailVerified(_ context.Context, id primitive.ObjectID) error {
	_, err := r.update(id, func(u *domain.User) { u.IsEmailVerified = true })
	return err
}

func (r fakeUsers) BumpRefreshVersion(_ context.Context, id primitive.ObjectID) (int64, error) {
	u, err := r.update(id, func(u *domain.User) { u.RefreshTokenVersion++ })
	if err != nil {
		return 0, err
	}
	return u.RefreshTokenVersion, nil
}

func (r fakeUsers) RotateRefreshVersion(_ context.Context, id primitive.ObjectID, expected int64) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok || u.RefreshTokenVersion != expected {
		return 0, repository.ErrStaleWrite
	}
	u.RefreshTokenVersion++
	r.db.users[id] = u
	return u.RefreshTokenVersion, nil
}

// addresses

type fakeAddresses struct{ db *memDB }

func (r fakeAddresses) Create(_ context.Context, a *domain.Address) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	a.CreatedAt = r.db.now()
	a.UpdatedAt = a.CreatedAt
	r.db.addresses[a.ID] = *a
	return nil
}

func (r fakeAddresses) ListByUser(_ context.Context, userID primitive.ObjectID) ([]domain.Address, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Address
	for _, a := range r.db.addresses {
		if a.User == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r fakeAddresses) GetForUser(_ context.Context, id, userID primitive.ObjectID) (*domain.Address, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.addresses[id]
	if !ok || a.User != userID {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r fakeAddresses) Update(_ context.Context, a *domain.Address) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.addresses[a.ID]
	if !ok || cur.User != a.User {
		return repository.ErrNotFound
	}
	cur.ShippingAddress = a.ShippingAddress
	cur.UpdatedAt = r.db.now()
	r.db.addresses[a.ID] = cur
	return nil
}

func (r fakeAddresses) Delete(_ context.Context, id, userID primitive.ObjectID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.addresses[id]
	if !ok || a.User != userID {
		return repository.ErrNotFound
	}
	delete(r.db.addresses, id)
	return nil
}

func (r fakeAddresses) ClearDefault(_ context.Context, userID primitive.ObjectID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, a := range r.db.addresses {
		if a.User == userID && a.IsDefault {
			a.IsDefault = false
			r.db.addresses[id] = a
		}
	}
	return nil
}

func (r fakeAddresses) SetDefault(_ context.Context, id, userID primitive.ObjectID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.addresses[id]
	if !ok || a.User != userID {
		return repository.ErrNotFound
	}
	a.IsDefault = true
	r.db.addresses[id] = a
	return nil
}

// categories

type fakeCategories struct{ db *memDB }

func (r fakeCategories) Create(_ context.Context, c *domain.Category) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.categories {
		if existing.IsActive && existing.Name == c.Name {
			return repository.ErrDuplicate
		}
	}
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	c.IsActive = true
	c.CreatedAt = r.db.now()
	c.UpdatedAt = c.CreatedAt
	r.db.categories[c.ID] = *c
	return nil
}

func (r fakeCategories) GetActive(_ context.Context, id primitive.ObjectID) (*domain.Category, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.categories[id]
	if !ok || !c.IsActive {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r fakeCategories) FindActiveByName(_ context.Context, name string) (*domain.Category, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range r.db.categories {
		if c.IsActive && c.Name == name {
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r fakeCategories) List(_ context.Context, q domain.PageQuery) ([]domain.Category, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Category
	for _, c := range r.db.categories {
		if c.IsActive {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, q), int64(len(out)), nil
}

func (r fakeCategories) Update(_ context.Context, c *domain.Category) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.categories[c.ID]
	if !ok || !cur.IsActive {
		return repository.ErrNotFound
	}
	cur.Name, cur.Description = c.Name, c.Description
	cur.UpdatedAt = r.db.now()
	r.db.categories[c.ID] = cur
	return nil
}

func (r fakeCategories) Deactivate(_ context.Context, id primitive.ObjectID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.categories[id]
	if !ok || !c.IsActive {
		return repository.ErrNotFound
	}
	c.IsActive = false
	r.db.categories[id] = c
	return nil
}

// products

type fakeProducts struct{ db *memDB }

func (r fakeProducts) Create(_ context.Context, p *domain.Product) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	p.IsActive = true
	p.CreatedAt = r.db.now()
	p.UpdatedAt = p.CreatedAt
	r.db.products[p.ID] = cloneProduct(*p)
	return nil
}

func (r fakeProducts) GetActive(_ context.Context, id primitive.ObjectID) (*domain.Product, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.products[id]
	if !ok || !p.IsActive {
		return nil, repository.ErrNotFound
	}
	p = cloneProduct(p)
	return &p, nil
}

func (r fakeProducts) GetMany(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*domain.Product, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := map[primitive.ObjectID]*domain.Product{}
	for _, id := range ids {
		if p, ok := r.db.products[id]; ok {
			p = cloneProduct(p)
			out[id] = &p
		}
	}
	return out, nil
}

func (r fakeProducts) List(_ context.Context, f domain.ProductFilter, q domain.PageQuery) ([]domain.Product, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Product
	for _, p := range r.db.products {
		switch {
		case !p.IsActive:
		case f.Category != nil && p.Category != *f.Category:
		case f.MinPrice != nil && p.Price.LessThan(*f.MinPrice):
		case f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice):
		default:
			out = append(out, cloneProduct(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		less := out[i].CreatedAt.Before(out[j].CreatedAt)
		if q.SortField == "price" {
			less = out[i].Price.LessThan(out[j].Price)
		}
		if q.SortDesc {
			return !less
		}
		return less
	})
	return paginate(out, q), int64(len(out)), nil
}

func (r fakeProducts) Update(_ context.Context, id primitive.ObjectID, changes domain.ProductChanges) (*domain.Product, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.products[id]
	if !ok || !cur.IsActive {
		return nil, repository.ErrNotFound
	}
	changes.Apply(&cur)
	cur.UpdatedAt = r.db.now()
	cur = cloneProduct(cur)
	r.db.products[id] = cur
	out := cloneProduct(cur)
	return &out, nil
}

func (r fakeProducts) Deactivate(_ context.Context, id primitive.ObjectID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.products[id]
	if !ok || !p.IsActive {
		return repository.ErrNotFound
	}
	p.IsActive = false
	r.db.products[id] = p
	return nil
}

func (r fakeProducts) DecrementStock(_ context.Context, id primitive.ObjectID, qty int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.products[id]
	if !ok || !p.IsActive || p.Stock < qty {
		return repository.ErrInsufficientStock
	}
	p.Stock -= qty
	r.db.products[id] = p
	return nil
}

func (r fakeProducts) IncrementStock(_ context.Context, id primitive.ObjectID, qty int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Stock += qty
	r.db.products[id] = p
	return nil
}

func (r fakeProducts) SetRatingStats(_ context.Context, id primitive.ObjectID, stats domain.RatingStats) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.AvgRating, p.RatingCnt = stats.AvgRating, stats.RatingCnt
	r.db.products[id] = p
	return nil
}

// carts

type fakeCarts struct{ db *memDB }

func (r fakeCarts) GetByUser(_ context.Context, userID primitive.ObjectID) (*domain.Cart, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range r.db.carts {
		if c.User == userID {
			c = cloneCart(c)
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r fakeCarts) Save(_ context.Context, c *domain.Cart) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.check("carts.Save"); err != nil {
		return err
	}
	now := r.db.now()
	if c.ID.IsZero() {
		for _, existing := range r.db.carts {
			if existing.User == c.User {
				return repository.ErrStaleWrite
			}
		}
		c.ID = primitive.NewObjectID()
		c.Version = 1
		c.CreatedAt, c.UpdatedAt = now, now
		r.db.carts[c.ID] = cloneCart(*c)
		return nil
	}
	cur, ok := r.db.carts[c.ID]
	if !ok || cur.Version != c.Version {
		return repository.ErrStaleWrite
	}
	c.Version++
	c.UpdatedAt = now
	r.db.carts[c.ID] = cloneCart(*c)
	return nil
}

func (r fakeCarts) Delete(_ context.Context, c *domain.Cart) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.carts[c.ID]
	if !ok || cur.Version != c.Version {
		return repository.ErrStaleWrite
	}
	delete(r.db.carts, c.ID)
	return nil
}

// orders

type fakeOrders struct{ db *memDB }

func (r fakeOrders) Create(_ context.Context, o *domain.Order) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	o.CreatedAt = r.db.now()
	o.UpdatedAt = o.CreatedAt
	r.db.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (r fakeOrders) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	o = cloneOrder(o)
	return &o, nil
}

func (r fakeOrders) GetForUser(ctx context.Context, id, userID primitive.ObjectID) (*domain.Order, error) {
	o, err := r.GetByID(ctx, id)
	if err != nil || o.User != userID {
		return nil, repository.ErrNotFound
	}
	return o, nil
}

func (r fakeOrders) sorted(keep func(domain.Order) bool) []domain.Order {
	var out []domain.Order
	for _, o := range r.db.orders {
		if keep(o) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r fakeOrders) ListByUser(_ context.Context, userID primitive.ObjectID) ([]domain.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.sorted(func(o domain.Order) bool { return o.User == userID }), nil
}

func (r fakeOrders) List(_ context.Context, q domain.PageQuery) ([]domain.Order, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	all := r.sorted(func(domain.Order) bool { return true })
	return paginate(all, q), int64(len(all)), nil
}

func (r fakeOrders) UpdateStatus(_ context.Context, id primitive.ObjectID, from, to domain.OrderStatus, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok || o.OrderStatus != from {
		return repository.ErrStaleWrite
	}
	o.OrderStatus, o.UpdatedAt = to, at
	switch to {
	case domain.OrderStatusDelivered:
		o.DeliveredAt = &at
	case domain.OrderStatusCancelled:
		o.CancelledAt = &at
	}
	r.db.orders[id] = o
	return nil
}

func (r fakeOrders) SetPaymentStatus(_ context.Context, id primitive.ObjectID, status domain.PaymentStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	o.PaymentStatus = status
	r.db.orders[id] = o
	return nil
}

func (r fakeOrders) MarkPaid(_ context.Context, id primitive.ObjectID, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	o.PaymentStatus, o.IsPaid, o.PaidAt = domain.PaymentStatusSuccess, true, &at
	r.db.orders[id] = o
	return nil
}

// payments

type fakePayments struct{ db *memDB }

func (r fakePayments) Create(_ context.Context, p *domain.Payment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.payments {
		if existing.Order == p.Order {
			return repository.ErrDuplicate
		}
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	p.CreatedAt = r.db.now()
	p.UpdatedAt = p.CreatedAt
	r.db.payments[p.ID] = *p
	return nil
}

func (r fakePayments) find(match func(domain.Payment) bool) (*domain.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.payments {
		if match(p) {
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r fakePayments) GetByOrder(_ context.Context, orderID primitive.ObjectID) (*domain.Payment, error) {
	return r.find(func(p domain.Payment) bool { return p.Order == orderID })
}

func (r fakePayments) GetForUser(_ context.Context, id, userID primitive.ObjectID) (*domain.Payment, error) {
	return r.find(func(p domain.Payment) bool { return p.ID == id && p.User == userID })
}

func (r fakePayments) FindForVerification(_ context.Context, orderID, userID primitive.ObjectID, providerPaymentID string) (*domain.Payment, error) {
	return r.find(func(p domain.Payment) bool {
		return p.Order == orderID && p.User == userID && p.ProviderPaymentID == providerPaymentID
	})
}

func (r fakePayments) UpdateStatus(_ context.Context, id primitive.ObjectID, from, to domain.PaymentStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.payments[id]
	if !ok || p.Status != from {
		return repository.ErrStaleWrite
	}
	p.Status = to
	r.db.payments[id] = p
	return nil
}

func (r fakePayments) Reinitiate(_ context.Context, p *domain.Payment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.payments[p.ID]
	if !ok || cur.Status != domain.PaymentStatusFailed {
		return repository.ErrStaleWrite
	}
	p.Status = domain.PaymentStatusPending
	r.db.payments[p.ID] = *p
	return nil
}

// ratings

type fakeRatings struct{ db *memDB }

func (r fakeRatings) Create(_ context.Context, rt *domain.Rating) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.ratings {
		if existing.User == rt.User && existing.Product == rt.Product {
			return repository.ErrDuplicate
		}
	}
	if rt.ID.IsZero() {
		rt.ID = primitive.NewObjectID()
	}
	rt.CreatedAt = r.db.now()
	rt.UpdatedAt = rt.CreatedAt
	r.db.ratings[rt.ID] = *rt
	return nil
}

func (r fakeRatings) GetForUser(_ context.Context, id, userID primitive.ObjectID) (*domain.Rating, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rt, ok := r.db.ratings[id]
	if !ok || rt.User != userID {
		return nil, repository.ErrNotFound
	}
	return &rt, nil
}

func (r fakeRatings) Update(_ context.Context, rt *domain.Rating) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.ratings[rt.ID]
	if !ok || cur.User != rt.User {
		return repository.ErrNotFound
	}
	cur.Rating, cur.Review = rt.Rating, rt.Review
	r.db.ratings[rt.ID] = cur
	return nil
}

func (r fakeRatings) Delete(_ context.Context, id, userID primitive.ObjectID) (*domain.Rating, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rt, ok := r.db.ratings[id]
	if !ok || rt.User != userID {
		return nil, repository.ErrNotFound
	}
	delete(r.db.ratings, id)
	return &rt, nil
}

func (r fakeRatings) ListByProduct(_ context.Context, productID primitive.ObjectID) ([]domain.Rating, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Rating
	for _, rt := range r.db.ratings {
		if rt.Product == productID {
			out = append(out, rt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r fakeRatings) Stats(_ context.Context, productID primitive.ObjectID) (domain.RatingStats, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var sum, n int
	for _, rt := range r.db.ratings {
		if rt.Product == productID {
			sum += rt.Rating
			n++
		}
	}
	if n == 0 {
		return domain.RatingStats{}, nil
	}
	return domain.RatingStats{AvgRating: float64(sum) / float64(n), RatingCnt: n}, nil
}

// outbox

type fakeOutbox struct{ db *memDB }

func (r fakeOutbox) Insert(_ context.Context, e *domain.OutboxEvent) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.check("outbox.Insert"); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	r.db.outbox[e.ID] = *e
	return nil
}

func (r fakeOutbox) GetUnprocessed(_ context.Context, limit int) ([]*domain.OutboxEvent, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*domain.OutboxEvent
	for _, e := range r.db.outbox {
		if e.ProcessedAt == nil && len(out) < limit {
			e := e
			out = append(out, &e)
		}
	}
	return out, nil
}

func (r fakeOutbox) MarkProcessed(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.outbox[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := r.db.now()
	e.ProcessedAt = &now
	r.db.outbox[id] = e
	return nil
}

func (r fakeOutbox) PurgeProcessed(_ context.Context, before time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for id, e := range r.db.outbox {
		if e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(r.db.outbox, id)
			n++
		}
	}
	return n, nil
}

// mapCache is a cache.Cache that records deletions.
type mapCache[T any] struct {
	mu      sync.Mutex
	items   map[string]T
	gens    map[string]int64
	deleted []string
}

func newMapCache[T any]() *mapCache[T] {
	return &mapCache[T]{items: map[string]T{}, gens: map[string]int64{}}
}

func (c *mapCache[T]) Generation(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[key], nil
}

func (c *mapCache[T]) Get(_ context.Context, key string) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return &v, nil
}

func (c *mapCache[T]) Set(_ context.Context, key string, gen int64, value *T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key] != gen {
		return cache.ErrStaleGeneration
	}
	c.items[key] = *value
	return nil
}

func (c *mapCache[T]) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	c.gens[key]++
	c.deleted = append(c.deleted, key)
	return nil
}

func (c *mapCache[T]) wasDeleted(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.deleted {
		if k == key {
			return true
		}
	}
	return false
}

// recordingSender captures outgoing mail.
type recordingSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *recordingSender) Send(_ context.Context, to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, to+"\n"+subject+"\n"+body)
	return s.err
}

func (s *recordingSender) lastToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return ""
	}
	last := s.sent[len(s.sent)-1]
	i := strings.Index(last, "?token=")
	if i < 0 {
		return ""
	}
	token := last[i+len("?token="):]
	if j := strings.IndexByte(token, '\n'); j >= 0 {
		token = token[:j]
	}
	return token
}
