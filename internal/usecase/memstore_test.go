package usecase

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

// テスト用のインメモリDB。
// WithinTxは1本ずつ実行し、fnがエラーなら開始前の状態に戻す。
type memStore struct {
	mu sync.Mutex

	orders      map[int64]model.Order
	items       map[int64][]model.OrderItem
	products    map[int64]model.Product
	users       map[int64]model.User
	companies   map[int64]model.LogisticsCompany
	messages    []model.Message
	audits      []model.AuditLog
	adjustments []model.InventoryAdjustment

	nextID int64

	//注入用の失敗
	failAudit       error
	failOrderCreate error
}

func newMemStore() *memStore {
	return &memStore{
		orders:    map[int64]model.Order{},
		items:     map[int64][]model.OrderItem{},
		products:  map[int64]model.Product{},
		users:     map[int64]model.User{},
		companies: map[int64]model.LogisticsCompany{},
		nextID:    10000,
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

type memSnapshot struct {
	orders      map[int64]model.Order
	items       map[int64][]model.OrderItem
	products    map[int64]model.Product
	users       map[int64]model.User
	companies   map[int64]model.LogisticsCompany
	messages    []model.Message
	audits      []model.AuditLog
	adjustments []model.InventoryAdjustment
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() memSnapshot {
	items := make(map[int64][]model.OrderItem, len(s.items))
	for k, v := range s.items {
		items[k] = append([]model.OrderItem(nil), v...)
	}
	return memSnapshot{
		orders:      cloneMap(s.orders),
		items:       items,
		products:    cloneMap(s.products),
		users:       cloneMap(s.users),
		companies:   cloneMap(s.companies),
		messages:    append([]model.Message(nil), s.messages...),
		audits:      append([]model.AuditLog(nil), s.audits...),
		adjustments: append([]model.InventoryAdjustment(nil), s.adjustments...),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.orders = snap.orders
	s.items = snap.items
	s.products = snap.products
	s.users = snap.users
	s.companies = snap.companies
	s.messages = snap.messages
	s.audits = snap.audits
	s.adjustments = snap.adjustments
}

func (s *memStore) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(memRepos{s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// Txを通した排他をせず、文ごとにだけロックするTransactionManager。
// 実DBと同じく、読んでから書くまでの間に他の呼び出しが割り込める。
// ロールバックはしないので、失敗時に書き込みが残らない操作（Claim）だけに使う
type statementTx struct{ s *memStore }

func (t statementTx) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return fn(statementRepos{memRepos{t.s}})
}

type statementRepos struct{ memRepos }

func (r statementRepos) Orders() repo.OrderRepository {
	return lockedOrders{OrderRepository: memOrders{r.s}, mu: &r.s.mu}
}

func (r statementRepos) OrderItems() repo.OrderItemRepository {
	return lockedOrderItems{OrderItemRepository: memOrderItems{r.s}, mu: &r.s.mu}
}

type lockedOrders struct {
	repo.OrderRepository
	mu *sync.Mutex
}

func (o lockedOrders) FindByID(ctx context.Context, id int64) (model.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.OrderRepository.FindByID(ctx, id)
}

func (o lockedOrders) ClaimIfUnassigned(ctx context.Context, orderID int64, courierID int64) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.OrderRepository.ClaimIfUnassigned(ctx, orderID, courierID)
}

type lockedOrderItems struct {
	repo.OrderItemRepository
	mu *sync.Mutex
}

func (i lockedOrderItems) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.OrderItemRepository.ListByOrderID(ctx, orderID)
}

func (i lockedOrderItems) ListByOrderIDs(ctx context.Context, orderIDs []int64) (map[int64][]model.OrderItem, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.OrderItemRepository.ListByOrderIDs(ctx, orderIDs)
}

// テストから直接読む
func (s *memStore) order(id int64) model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id]
}

func (s *memStore) product(id int64) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id]
}

func (s *memStore) user(id int64) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

func (s *memStore) auditActions() []model.AuditAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.AuditAction, 0, len(s.audits))
	for _, a := range s.audits {
		out = append(out, a.Action)
	}
	return out
}

func (s *memStore) messagesOf(orderID int64) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Message
	for _, m := range s.messages {
		if m.OrderID == orderID {
			out = append(out, m)
		}
	}
	return out
}

type memRepos struct{ s *memStore }

func (r memRepos) Orders() repo.OrderRepository               { return memOrders{r.s} }
func (r memRepos) OrderItems() repo.OrderItemRepository       { return memOrderItems{r.s} }
func (r memRepos) Products() repo.ProductRepository           { return memProducts{r.s} }
func (r memRepos) Inventory() repo.InventoryRepository        { return memInventory{r.s} }
func (r memRepos) Users() repo.UserRepository                 { return memUsers{r.s} }
func (r memRepos) Companies() repo.LogisticsCompanyRepository { return memCompanies{r.s} }
func (r memRepos) Messages() repo.MessageRepository           { return memMessages{r.s} }
func (r memRepos) AuditLogs() repo.AuditLogRepository         { return memAudits{r.s} }

func sortedOrders(m map[int64]model.Order, keep func(model.Order) bool) []model.Order {
	out := make([]model.Order, 0)
	for _, o := range m {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func pageOf[T any](all []T, page int, limit int) []T {
	start := (page - 1) * limit
	if start >= len(all) {
		return []T{}
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

// ---- orders

type memOrders struct{ s *memStore }

func (m memOrders) FindByID(ctx context.Context, id int64) (model.Order, error) {
	o, ok := m.s.orders[id]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (m memOrders) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	all := sortedOrders(m.s.orders, func(o model.Order) bool { return o.UserID == userID })
	return pageOf(all, page, limit), int64(len(all)), nil
}

func (m memOrders) Create(ctx context.Context, o model.Order) (int64, error) {
	if m.s.failOrderCreate != nil {
		return 0, m.s.failOrderCreate
	}
	for _, existing := range m.s.orders {
		if existing.UserID == o.UserID && existing.IdempotencyKey == o.IdempotencyKey {
			return 0, repo.ErrDuplicateKey
		}
	}
	o.ID = m.s.id()
	m.s.orders[o.ID] = o
	return o.ID, nil
}

func (m memOrders) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error) {
	for _, o := range m.s.orders {
		if o.UserID == userID && o.IdempotencyKey == key {
			return o, true, nil
		}
	}
	return model.Order{}, false, nil
}

func (m memOrders) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	all := sortedOrders(m.s.orders, func(o model.Order) bool {
		if f.Status != "" && string(o.Status) != f.Status {
			return false
		}
		if f.DeliveryStatus != "" && string(o.DeliveryStatus) != f.DeliveryStatus {
			return false
		}
		if f.RefundStatus != "" && string(o.RefundStatus) != f.RefundStatus {
			return false
		}
		if f.UserID != nil && o.UserID != *f.UserID {
			return false
		}
		if f.CourierID != nil && (o.CourierID == nil || *o.CourierID != *f.CourierID) {
			return false
		}
		return true
	})
	return pageOf(all, f.Page, f.Limit), int64(len(all)), nil
}

func claimable(o model.Order) bool {
	return o.CourierID == nil &&
		o.DeliveryMethod == model.DeliveryMethodDelivery &&
		o.DeliveryStatus == model.DeliveryStatusPending &&
		o.Status != model.OrderStatusCancelled && o.Status != model.OrderStatusFailed
}

func (m memOrders) ListAvailable(ctx context.Context, page int, limit int) ([]model.Order, int64, error) {
	all := sortedOrders(m.s.orders, claimable)
	return pageOf(all, page, limit), int64(len(all)), nil
}

func (m memOrders) ListByCourierID(ctx context.Context, courierID int64, activeOnly bool) ([]model.Order, error) {
	return sortedOrders(m.s.orders, func(o model.Order) bool {
		if o.CourierID == nil || *o.CourierID != courierID {
			return false
		}
		return !activeOnly || o.DeliveryStatus.InTransit()
	}), nil
}

func (m memOrders) ClaimIfUnassigned(ctx context.Context, orderID int64, courierID int64) (bool, error) {
	o, ok := m.s.orders[orderID]
	if !ok || !claimable(o) {
		return false, nil
	}
	o.CourierID = &courierID
	o.DeliveryStatus = model.DeliveryStatusOnWay
	m.s.orders[orderID] = o
	return true, nil
}

func (m memOrders) AssignCourier(ctx context.Context, orderID int64, courierID int64, onlyIfUnassigned bool) (bool, error) {
	o, ok := m.s.orders[orderID]
	if !ok || o.DeliveryMethod != model.DeliveryMethodDelivery || o.DeliveryStatus.Terminal() {
		return false, nil
	}
	if onlyIfUnassigned && o.CourierID != nil {
		return false, nil
	}
	o.CourierID = &courierID
	o.DeliveryStatus = model.DeliveryStatusAssigned
	m.s.orders[orderID] = o
	return true, nil
}

func (m memOrders) CompleteDelivery(ctx context.Context, orderID int64, courierID int64, c repo.DeliveryCompletion) (bool, error) {
	o, ok := m.s.orders[orderID]
	if !ok || o.CourierID == nil || *o.CourierID != courierID || !o.DeliveryStatus.InTransit() {
		return false, nil
	}
	lat, lng, at := c.Lat, c.Lng, c.At
	o.DeliveryStatus = model.DeliveryStatusDelivered
	o.Status = model.OrderStatusFulfilled
	o.DeliveryLat = &lat
	o.DeliveryLng = &lng
	o.ProofURL = c.ProofURL
	o.DeliveryTime = &at
	o.FundsReleased = true
	o.FundsReleaseAt = &at
	m.s.orders[orderID] = o
	return true, nil
}

func (m memOrders) TransitionRefund(ctx context.Context, orderID int64, from []model.RefundStatus, to model.RefundStatus, status *model.OrderStatus) (bool, error) {
	o, ok := m.s.orders[orderID]
	if !ok {
		return false, nil
	}
	match := false
	for _, f := range from {
		if o.RefundStatus == f {
			match = true
		}
	}
	if !match {
		return false, nil
	}
	o.RefundStatus = to
	if status != nil {
		o.Status = *status
	}
	m.s.orders[orderID] = o
	return true, nil
}

func (m memOrders) UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	o, ok := m.s.orders[orderID]
	if !ok {
		return repo.ErrNotFound
	}
	o.Status = status
	m.s.orders[orderID] = o
	return nil
}

func (m memOrders) UpdateDeliveryStatus(ctx context.Context, orderID int64, status model.DeliveryStatus) error {
	o, ok := m.s.orders[orderID]
	if !ok {
		return repo.ErrNotFound
	}
	o.DeliveryStatus = status
	m.s.orders[orderID] = o
	return nil
}

// ---- order items

type memOrderItems struct{ s *memStore }

func (m memOrderItems) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	for _, it := range items {
		it.ID = m.s.id()
		it.OrderID = orderID
		m.s.items[orderID] = append(m.s.items[orderID], it)
	}
	return nil
}

func (m memOrderItems) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	return append([]model.OrderItem{}, m.s.items[orderID]...), nil
}

func (m memOrderItems) ListByOrderIDs(ctx context.Context, orderIDs []int64) (map[int64][]model.OrderItem, error) {
	out := make(map[int64][]model.OrderItem, len(orderIDs))
	for _, id := range orderIDs {
		if items := m.s.items[id]; len(items) > 0 {
			out[id] = append([]model.OrderItem{}, items...)
		}
	}
	return out, nil
}

// ---- products

type memProducts struct{ s *memStore }

func (m memProducts) ListPublic(ctx context.Context, page int, limit int, now time.Time) ([]model.Product, int64, error) {
	all := make([]model.Product, 0)
	for _, p := range m.s.products {
		if p.IsVisible() {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		bi, bj := all[i].IsBoosted(now), all[j].IsBoosted(now)
		if bi != bj {
			return bi
		}
		return all[i].ID > all[j].ID
	})
	return pageOf(all, page, limit), int64(len(all)), nil
}

func (m memProducts) FindByID(ctx context.Context, id int64) (model.Product, error) {
	p, ok := m.s.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (m memProducts) Create(ctx context.Context, p model.Product) (model.Product, error) {
	p.ID = m.s.id()
	m.s.products[p.ID] = p
	return p, nil
}

func (m memProducts) SetActive(ctx context.Context, ids []int64, active bool) (int64, error) {
	var n int64
	for _, id := range ids {
		p, ok := m.s.products[id]
		if !ok || p.IsDeleted {
			continue
		}
		p.IsActive = active
		m.s.products[id] = p
		n++
	}
	return n, nil
}

func (m memProducts) SoftDelete(ctx context.Context, id int64) error {
	p, ok := m.s.products[id]
	if !ok {
		return repo.ErrNotFound
	}
	p.IsDeleted = true
	p.IsActive = false
	m.s.products[id] = p
	return nil
}

// ---- inventory

type memInventory struct{ s *memStore }

func (m memInventory) SetStock(ctx context.Context, productID int64, newStock int64) error {
	p, ok := m.s.products[productID]
	if !ok {
		return repo.ErrNotFound
	}
	p.Stock = newStock
	m.s.products[productID] = p
	return nil
}

func (m memInventory) ReserveStock(ctx context.Context, productID int64, qty int64) (bool, error) {
	p, ok := m.s.products[productID]
	if !ok || !p.IsVisible() || qty <= 0 || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	m.s.products[productID] = p
	return true, nil
}

func (m memInventory) Restock(ctx context.Context, adj model.InventoryAdjustment) error {
	p, ok := m.s.products[adj.ProductID]
	if !ok {
		return repo.ErrNotFound
	}
	p.Stock += adj.Delta
	m.s.products[adj.ProductID] = p
	return m.CreateAdjustment(ctx, adj)
}

func (m memInventory) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	adj.ID = m.s.id()
	m.s.adjustments = append(m.s.adjustments, adj)
	return nil
}

// ---- users

type memUsers struct{ s *memStore }

func (m memUsers) Create(ctx context.Context, u *model.User) error {
	u.ID = m.s.id()
	m.s.users[u.ID] = *u
	return nil
}

func (m memUsers) FindByID(ctx context.Context, id int64) (*model.User, error) {
	u, ok := m.s.users[id]
	if !ok {
		return nil, repo.ErrUserNotFound
	}
	return &u, nil
}

func (m memUsers) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, u := range m.s.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, repo.ErrUserNotFound
}

func (m memUsers) update(id int64, fn func(u *model.User)) error {
	u, ok := m.s.users[id]
	if !ok {
		return repo.ErrUserNotFound
	}
	fn(&u)
	m.s.users[id] = u
	return nil
}

func (m memUsers) TouchLastLogin(ctx context.Context, id int64) error {
	now := time.Now()
	return m.update(id, func(u *model.User) { u.LastLoginAt = &now })
}

func (m memUsers) IncrementTokenVersion(ctx context.Context, id int64) error {
	return m.update(id, func(u *model.User) { u.TokenVersion++ })
}

func (m memUsers) UpdateRole(ctx context.Context, id int64, role model.Role) error {
	return m.update(id, func(u *model.User) {
		u.Role = role
		u.TokenVersion++
	})
}

func (m memUsers) SetVerified(ctx context.Context, id int64, verified bool) error {
	return m.update(id, func(u *model.User) { u.IsVerified = verified })
}

func (m memUsers) Deactivate(ctx context.Context, id int64) error {
	return m.update(id, func(u *model.User) {
		u.IsActive = false
		u.WorkerOfID = nil
	})
}

func (m memUsers) JoinCompanyIfUnaffiliated(ctx context.Context, userID int64, companyID int64) (bool, error) {
	u, ok := m.s.users[userID]
	if !ok || u.WorkerOfID != nil {
		return false, nil
	}
	u.WorkerOfID = &companyID
	m.s.users[userID] = u
	return true, nil
}

func (m memUsers) LeaveCompany(ctx context.Context, userID int64, companyID int64) (bool, error) {
	u, ok := m.s.users[userID]
	if !ok || u.WorkerOfID == nil || *u.WorkerOfID != companyID {
		return false, nil
	}
	u.WorkerOfID = nil
	m.s.users[userID] = u
	return true, nil
}

func (m memUsers) ListWorkers(ctx context.Context, companyID int64) ([]model.User, error) {
	out := make([]model.User, 0)
	for _, u := range m.s.users {
		if u.WorkerOfID != nil && *u.WorkerOfID == companyID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- companies

type memCompanies struct{ s *memStore }

func (m memCompanies) FindByID(ctx context.Context, id int64) (model.LogisticsCompany, error) {
	c, ok := m.s.companies[id]
	if !ok {
		return model.LogisticsCompany{}, repo.ErrNotFound
	}
	return c, nil
}

func (m memCompanies) FindByOwnerID(ctx context.Context, ownerID int64) (model.LogisticsCompany, error) {
	for _, c := range m.s.companies {
		if c.OwnerID == ownerID {
			return c, nil
		}
	}
	return model.LogisticsCompany{}, repo.ErrNotFound
}

func (m memCompanies) Create(ctx context.Context, c model.LogisticsCompany) (model.LogisticsCompany, error) {
	c.ID = m.s.id()
	m.s.companies[c.ID] = c
	return c, nil
}

// ---- messages / audit

type memMessages struct{ s *memStore }

func (m memMessages) Create(ctx context.Context, msg model.Message) (model.Message, error) {
	msg.ID = m.s.id()
	m.s.messages = append(m.s.messages, msg)
	return msg, nil
}

func (m memMessages) ListByOrderID(ctx context.Context, orderID int64) ([]model.Message, error) {
	out := make([]model.Message, 0)
	for _, msg := range m.s.messages {
		if msg.OrderID == orderID {
			out = append(out, msg)
		}
	}
	return out, nil
}

type memAudits struct{ s *memStore }

func (m memAudits) Create(ctx context.Context, log model.AuditLog) error {
	if m.s.failAudit != nil {
		return m.s.failAudit
	}
	log.ID = m.s.id()
	m.s.audits = append(m.s.audits, log)
	return nil
}

func (m memAudits) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := make([]model.AuditLog, 0)
	for _, a := range m.s.audits {
		if len(f.Actions) > 0 && !slices.Contains(f.Actions, a.Action) {
			continue
		}
		if f.ResourceType != nil && a.ResourceType != *f.ResourceType {
			continue
		}
		if f.ResourceID != nil && a.ResourceID != *f.ResourceID {
			continue
		}
		if f.ActorUserID != nil && a.ActorUserID != *f.ActorUserID {
			continue
		}
		out = append(out, a)
	}
	return pageOf(out, f.Offset/max(f.Limit, 1)+1, max(f.Limit, 1)), nil
}

// ---- view cache

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	gens map[string]int64
	dels []string
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}, gens: map[string]int64{}}
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	return b, ok, nil
}

func (c *memCache) Generation(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[key], nil
}

func (c *memCache) SetIfGeneration(ctx context.Context, key string, value []byte, gen int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key] != gen {
		return false, nil
	}
	c.data[key] = value
	return true, nil
}

func (c *memCache) Invalidate(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
		c.gens[k]++
		c.dels = append(c.dels, k)
	}
	return nil
}

// テストの事前状態用（世代を見ない）
func (c *memCache) put(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}
