package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distriplus/backend/internal/domain/pagination"
)

type mockRepo struct {
	byID    map[string]*Client
	created *Client
	lastUpd *Update
	listed  *ListFilter
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*Client, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepo) Create(_ context.Context, c *Client) error {
	m.created = c
	return nil
}

func (m *mockRepo) Update(_ context.Context, id string, u Update) (*Client, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	m.lastUpd = &u
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Email != nil {
		c.Email = *u.Email
	}
	if u.Status != nil {
		c.Status = *u.Status
	}
	if u.Entry != nil {
		c.ChangeHistory = append(c.ChangeHistory, *u.Entry)
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepo) List(_ context.Context, filter ListFilter) (pagination.Page[Client], error) {
	m.listed = &filter
	return pagination.Page[Client]{}, nil
}

func TestCreate_UppercasesIdentityFields(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	c, err := svc.Create(context.Background(), CreateRequest{
		Name:         "almacen sur",
		BusinessName: "almacen sur s.r.l.",
		CommerceName: "lo de pedro",
		Email:        "Pedro@Example.com",
		CUIT:         "20-12345678-9",
	}, "admin@test")

	require.NoError(t, err)
	assert.Equal(t, "ALMACEN SUR", c.Name)
	assert.Equal(t, "ALMACEN SUR S.R.L.", c.BusinessName)
	assert.Equal(t, "LO DE PEDRO", c.CommerceName)
	assert.Equal(t, "Pedro@Example.com", c.Email, "email casing preserved")
	assert.Equal(t, IvaConsumidorFinal, c.IvaCondition, "default VAT standing")
	assert.Equal(t, "active", c.Status)
	assert.NotEmpty(t, c.ID)

	require.Len(t, c.ChangeHistory, 1)
	assert.Equal(t, "admin@test", c.ChangeHistory[0].User)
	assert.Same(t, c, repo.created)
}

func TestCreate_KeepsExplicitIvaCondition(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	c, err := svc.Create(context.Background(), CreateRequest{
		Name:         "kiosco norte",
		IvaCondition: IvaMonotributo,
	}, "admin@test")

	require.NoError(t, err)
	assert.Equal(t, IvaMonotributo, c.IvaCondition)
}

func TestUpdate_NotFound(t *testing.T) {
	svc := NewService(&mockRepo{})

	_, err := svc.Update(context.Background(), "ghost", UpdateRequest{}, "admin@test")

	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_RecordsOnlyChangedFields(t *testing.T) {
	repo := &mockRepo{byID: map[string]*Client{
		"c1": {ID: "c1", Name: "ALMACEN SUR", Email: "old@test", Status: "active"},
	}}
	svc := NewService(repo)

	name := "almacen sur" // uppercases to the current value, no change
	email := "new@test"
	c, err := svc.Update(context.Background(), "c1", UpdateRequest{
		Name:  &name,
		Email: &email,
	}, "admin@test")

	require.NoError(t, err)
	assert.Equal(t, "new@test", c.Email)
	require.Len(t, c.ChangeHistory, 1)
	require.Len(t, c.ChangeHistory[0].Changes, 1)
	change := c.ChangeHistory[0].Changes[0]
	assert.Equal(t, "email", change.Field)
	assert.Equal(t, "old@test", change.Before)
	assert.Equal(t, "new@test", change.After)
}

func TestUpdate_NoChangeAppendsNoEntry(t *testing.T) {
	repo := &mockRepo{byID: map[string]*Client{
		"c1": {ID: "c1", Name: "ALMACEN SUR", Status: "active"},
	}}
	svc := NewService(repo)

	name := "ALMACEN SUR"
	c, err := svc.Update(context.Background(), "c1", UpdateRequest{Name: &name}, "admin@test")

	require.NoError(t, err)
	assert.Empty(t, c.ChangeHistory)
	require.NotNil(t, repo.lastUpd)
	assert.Nil(t, repo.lastUpd.Entry)
}

func TestList_NormalizesPagination(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	_, err := svc.List(context.Background(), ListFilter{
		Params: pagination.Params{Page: 0, Limit: 1000},
	})

	require.NoError(t, err)
	require.NotNil(t, repo.listed)
	assert.Equal(t, 1, repo.listed.Page)
	assert.Equal(t, maxPageSize, repo.listed.Limit)
}
