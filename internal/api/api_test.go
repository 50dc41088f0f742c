package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/distriplus/backend/internal/auth"
	"github.com/distriplus/backend/internal/domain/client"
	"github.com/distriplus/backend/internal/domain/order"
	"github.com/distriplus/backend/internal/domain/pagination"
	"github.com/distriplus/backend/internal/domain/product"
	"github.com/distriplus/backend/internal/domain/user"
)

// In-memory stores backing the full service stack for handler tests.

type memClients struct {
	m map[string]*client.Client
}

func (s *memClients) GetByID(_ context.Context, id string) (*client.Client, error) {
	c, ok := s.m[id]
	if !ok {
		return nil, client.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *memClients) Create(_ context.Context, c *client.Client) error {
	for _, existing := range s.m {
		if existing.CUIT != "" && existing.CUIT == c.CUIT {
			return &client.DuplicateCUITError{CUIT: c.CUIT}
		}
	}
	cp := *c
	s.m[c.ID] = &cp
	return nil
}

func (s *memClients) Update(_ context.Context, id string, u client.Update) (*client.Client, error) {
	c, ok := s.m[id]
	if !ok {
		return nil, client.ErrNotFound
	}
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Entry != nil {
		c.ChangeHistory = append(c.ChangeHistory, *u.Entry)
	}
	cp := *c
	return &cp, nil
}

func (s *memClients) List(_ context.Context, filter client.ListFilter) (pagination.Page[client.Client], error) {
	var out []client.Client
	for _, c := range s.m {
		out = append(out, *c)
	}
	return pagination.Page[client.Client]{
		Data: out, Page: filter.Page, Limit: filter.Limit, TotalDocuments: len(out), TotalPages: 1,
	}, nil
}

type memProducts struct {
	m map[string]*product.Product
}

func (s *memProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := s.m[id]
	if !ok {
		return nil, &product.NotFoundError{ProductID: id}
	}
	cp := *p
	return &cp, nil
}

func (s *memProducts) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := s.m[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *memProducts) Create(_ context.Context, p *product.Product) error {
	for _, existing := range s.m {
		if existing.CodeBar != "" && existing.CodeBar == p.CodeBar {
			return &product.DuplicateBarcodeError{CodeBar: p.CodeBar}
		}
	}
	cp := *p
	s.m[p.ID] = &cp
	return nil
}

func (s *memProducts) Update(_ context.Context, id string, u product.Update) (*product.Product, error) {
	p, ok := s.m[id]
	if !ok {
		return nil, &product.NotFoundError{ProductID: id}
	}
	if u.PriceSell != nil {
		p.PriceSell = *u.PriceSell
	}
	if u.Entry != nil {
		p.ChangeHistory = append(p.ChangeHistory, *u.Entry)
	}
	cp := *p
	return &cp, nil
}

func (s *memProducts) List(_ context.Context, filter product.ListFilter) (pagination.Page[product.Product], error) {
	var out []product.Product
	for _, p := range s.m {
		out = append(out, *p)
	}
	return pagination.Page[product.Product]{
		Data: out, Page: filter.Page, Limit: filter.Limit, TotalDocuments: len(out), TotalPages: 1,
	}, nil
}

func (s *memProducts) DecrementStock(_ context.Context, id string, qty int) (bool, error) {
	p, ok := s.m[id]
	if !ok || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	return true, nil
}

func (s *memProducts) IncrementStock(_ context.Context, quantities map[string]int) error {
	for id, qty := range quantities {
		if p, ok := s.m[id]; ok {
			p.Stock += qty
		}
	}
	return nil
}

type memOrders struct {
	m map[string]*order.Order
}

func (s *memOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := s.m[id]
	if !ok {
		return nil, &order.NotFoundError{OrderID: id}
	}
	cp := *o
	return &cp, nil
}

func (s *memOrders) Create(_ context.Context, o *order.Order) error {
	cp := *o
	s.m[o.ID] = &cp
	return nil
}

func (s *memOrders) Update(_ context.Context, id string, u order.Update) (*order.Order, error) {
	o, ok := s.m[id]
	if !ok {
		return nil, &order.NotFoundError{OrderID: id}
	}
	if u.Items != nil {
		o.Items = *u.Items
	}
	if u.SubTotal != nil {
		o.SubTotal = *u.SubTotal
	}
	if u.TotalAmount != nil {
		o.TotalAmount = *u.TotalAmount
	}
	if u.IncreasePct != nil {
		o.IncreasePct = u.IncreasePct
	}
	if u.DiscountPct != nil {
		o.DiscountPct = u.DiscountPct
	}
	if u.DiscountAmount != nil {
		o.DiscountAmount = u.DiscountAmount
	}
	if u.SuggestedPriceRate != nil {
		o.SuggestedPriceRate = u.SuggestedPriceRate
	}
	if u.Entry != nil {
		o.ChangeHistory = append(o.ChangeHistory, *u.Entry)
	}
	cp := *o
	return &cp, nil
}

func (s *memOrders) List(_ context.Context, filter order.ListFilter) (pagination.Page[order.Summary], error) {
	return pagination.Page[order.Summary]{Data: []order.Summary{}, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *memOrders) Aggregate(context.Context, time.Time, time.Time) (*order.Aggregation, error) {
	return &order.Aggregation{}, nil
}

func (s *memOrders) Export(context.Context, time.Time, time.Time) ([]order.ExportOrder, error) {
	return nil, nil
}

type memUsers struct {
	m map[string]*user.User
}

func (s *memUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	for _, u := range s.m {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound
}

func (s *memUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	u, ok := s.m[email]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memUsers) Create(_ context.Context, u *user.User) error {
	if _, ok := s.m[u.Email]; ok {
		return &user.DuplicateEmailError{Email: u.Email}
	}
	cp := *u
	s.m[u.Email] = &cp
	return nil
}

func (s *memUsers) List(context.Context) ([]user.User, error) {
	var out []user.User
	for _, u := range s.m {
		cp := *u
		cp.PasswordHash = ""
		cp.RefreshToken = ""
		out = append(out, cp)
	}
	return out, nil
}

func (s *memUsers) UpdatePassword(_ context.Context, email, passwordHash string) error {
	u, ok := s.m[email]
	if !ok {
		return user.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (s *memUsers) SetRefreshToken(_ context.Context, email, token string) error {
	u, ok := s.m[email]
	if !ok {
		return user.ErrNotFound
	}
	u.RefreshToken = token
	return nil
}

type passTx struct{}

func (passTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type seqCounter struct {
	n int
}

func (c *seqCounter) NextInvoiceNumber(context.Context) (string, error) {
	c.n++
	return fmt.Sprintf("F%06d", c.n), nil
}

// fixture wires the whole service stack over in-memory stores.
type fixture struct {
	router   http.Handler
	clients  *memClients
	products *memProducts
	orders   *memOrders
	users    *memUsers
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		clients:  &memClients{m: make(map[string]*client.Client)},
		products: &memProducts{m: make(map[string]*product.Product)},
		orders:   &memOrders{m: make(map[string]*order.Order)},
		users:    &memUsers{m: make(map[string]*user.User)},
	}

	tokens := auth.NewTokenManager("access-secret", "refresh-secret", time.Hour, 2*time.Hour)
	h := NewHandler(
		zap.NewNop(),
		auth.NewService(f.users, tokens),
		user.NewService(f.users),
		client.NewService(f.clients),
		product.NewService(f.products),
		order.NewService(passTx{}, f.clients, f.products, f.orders, &seqCounter{}),
	)
	f.router = h.Router()
	return f
}

// signIn creates an account through the service stack and returns a live
// access token for it.
func (f *fixture) signIn(t *testing.T, email string, role user.Role) string {
	t.Helper()

	_, err := user.NewService(f.users).Create(context.Background(), user.CreateRequest{
		Email: email, Password: "hunter2-hunter2", Name: "Test", Lastname: "User", Role: role,
	})
	require.NoError(t, err)

	rec := f.request(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": email, "password": "hunter2-hunter2",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var pair auth.TokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	return pair.AccessToken
}

func (f *fixture) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) seedProduct(id string, priceSell string, stock int) {
	f.products.m[id] = &product.Product{
		ID:        id,
		Name:      "PRODUCTO " + id,
		Category:  "ALMACEN",
		PriceSell: decimal.RequireFromString(priceSell),
		Stock:     stock,
		Status:    "active",
	}
}

func (f *fixture) seedClient(id string) {
	f.clients.m[id] = &client.Client{
		ID:           id,
		Name:         "CLIENTE " + id,
		IvaCondition: client.IvaConsumidorFinal,
		Status:       "active",
	}
}

func TestRouter_RequiresAuth(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/api/v1/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.request(t, http.MethodGet, "/api/v1/products", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/api/v2/nothing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no route")
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "vendedor@test.local", user.RoleUser)

	rec := f.request(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "vendedor@test.local", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.request(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "not-an-email", "password": "whatever",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUsers_AdminOnly(t *testing.T) {
	f := newFixture(t)
	adminToken := f.signIn(t, "admin@test.local", user.RoleAdmin)
	userToken := f.signIn(t, "vendedor@test.local", user.RoleUser)

	rec := f.request(t, http.MethodGet, "/api/v1/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.request(t, http.MethodGet, "/api/v1/users", adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateClient(t *testing.T) {
	f := newFixture(t)
	token := f.signIn(t, "vendedor@test.local", user.RoleUser)

	rec := f.request(t, http.MethodPost, "/api/v1/clients", token, map[string]any{
		"name": "almacen la nueva",
		"cuit": "20-11111111-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created clientResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "ALMACEN LA NUEVA", created.Name)
	assert.Equal(t, string(client.IvaConsumidorFinal), created.IvaCondition)

	// Same CUIT again conflicts.
	rec = f.request(t, http.MethodPost, "/api/v1/clients", token, map[string]any{
		"name": "otro almacen",
		"cuit": "20-11111111-1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateClient_Validation(t *testing.T) {
	f := newFixture(t)
	token := f.signIn(t, "vendedor@test.local", user.RoleUser)

	rec := f.request(t, http.MethodPost, "/api/v1/clients", token, map[string]any{
		"email": "sin-nombre@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.request(t, http.MethodPost, "/api/v1/clients", token, map[string]any{
		"name":         "cliente",
		"ivaCondition": "ALGO_RARO",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)
	token := f.signIn(t, "vendedor@test.local", user.RoleUser)
	f.seedClient("c1")
	f.seedProduct("p1", "10.00", 5)

	rec := f.request(t, http.MethodPost, "/api/v1/orders", token, map[string]any{
		"clientId": "c1",
		"items":    []map[string]any{{"productId": "p1", "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.TotalAmount.Equal(decimal.RequireFromString("20")))
	assert.Equal(t, 3, f.products.m["p1"].Stock)
}

func TestCreateOrder_Errors(t *testing.T) {
	f := newFixture(t)
	token := f.signIn(t, "vendedor@test.local", user.RoleUser)
	f.seedClient("c1")
	f.seedProduct("p1", "10.00", 1)

	rec := f.request(t, http.MethodPost, "/api/v1/orders", token, map[string]any{
		"clientId": "c1",
		"items":    []map[string]any{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.request(t, http.MethodPost, "/api/v1/orders", token, map[string]any{
		"clientId": "nope",
		"items":    []map[string]any{{"productId": "p1", "quantity": 1}},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.request(t, http.MethodPost, "/api/v1/orders", token, map[string]any{
		"clientId": "c1",
		"items":    []map[string]any{{"productId": "p1", "quantity": 3}},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdjustPrices_NoValues(t *testing.T) {
	f := newFixture(t)
	token := f.signIn(t, "vendedor@test.local", user.RoleUser)
	f.seedClient("c1")
	f.seedProduct("p1", "10.00", 5)

	rec := f.request(t, http.MethodPost, "/api/v1/orders", token, map[string]any{
		"clientId": "c1",
		"items":    []map[string]any{{"productId": "p1", "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = f.request(t, http.MethodPatch, "/api/v1/orders/"+created.ID+"/prices", token, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdjustPrices_NegativePercentage(t *testing.T) {
	f := newFixture(t)
	token := f.signIn(t, "vendedor@test.local", user.RoleUser)
	f.seedClient("c1")
	f.seedProduct("p1", "10.00", 5)

	rec := f.request(t, http.MethodPost, "/api/v1/orders", token, map[string]any{
		"clientId": "c1",
		"items":    []map[string]any{{"productId": "p1", "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = f.request(t, http.MethodPatch, "/api/v1/orders/"+created.ID+"/prices", token, map[string]any{
		"increase": "-150",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.request(t, http.MethodGet, "/api/v1/orders/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var after orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &after))
	assert.False(t, after.TotalAmount.IsNegative())
	assert.True(t, created.TotalAmount.Equal(after.TotalAmount))
}

func TestGetProduct_NotFound(t *testing.T) {
	f := newFixture(t)
	token := f.signIn(t, "vendedor@test.local", user.RoleUser)

	rec := f.request(t, http.MethodGet, "/api/v1/products/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
