package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/girderhq/api/pkg/domain/authz"
	"github.com/girderhq/api/pkg/domain/contract"
	"github.com/girderhq/api/pkg/domain/shared"
	"github.com/girderhq/api/pkg/logger"
)

type memContractRepo struct {
	contracts map[shared.ID]*contract.Contract
	payments  map[shared.ID][]*contract.Payment
}

func newMemContractRepo() *memContractRepo {
	return &memContractRepo{
		contracts: make(map[shared.ID]*contract.Contract),
		payments:  make(map[shared.ID][]*contract.Payment),
	}
}

func (r *memContractRepo) Create(_ context.Context, c *contract.Contract) error {
	r.contracts[c.ID()] = c
	return nil
}

func (r *memContractRepo) GetByID(_ context.Context, id shared.ID) (*contract.Contract, error) {
	if c, ok := r.contracts[id]; ok {
		return c, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memContractRepo) List(_ context.Context, f contract.Filter) ([]*contract.Contract, int64, error) {
	var out []*contract.Contract
	for _, c := range r.contracts {
		if !c.TenantID().Equals(f.TenantID) {
			continue
		}
		if f.Status != "" && string(c.Status()) != f.Status {
			continue
		}
		out = append(out, c)
	}
	return out, int64(len(out)), nil
}

func (r *memContractRepo) Update(_ context.Context, c *contract.Contract) error {
	r.contracts[c.ID()] = c
	return nil
}

func (r *memContractRepo) AddPayment(_ context.Context, p *contract.Payment) error {
	r.payments[p.ContractID()] = append(r.payments[p.ContractID()], p)
	return nil
}

func (r *memContractRepo) ListPayments(_ context.Context, contractID shared.ID) ([]*contract.Payment, error) {
	return r.payments[contractID], nil
}

func newContractFixture(t *testing.T) (*ContractService, *ProjectService) {
	t.Helper()
	log := logger.NewDefault()
	projects := NewProjectService(newMemProjectRepo(), log)
	return NewContractService(newMemContractRepo(), projects, log), projects
}

func TestContractService_Create(t *testing.T) {
	ctx := context.Background()
	svc, projects := newContractFixture(t)
	rc := testRequestContext(shared.NewID())

	t.Run("standalone contract", func(t *testing.T) {
		c, err := svc.Create(ctx, rc, CreateContractInput{Title: "Steel supply", Vendor: "Ironworks", ValueCents: 12_500_00})
		require.NoError(t, err)
		assert.True(t, c.TenantID().Equals(rc.TenantID()))
		assert.Equal(t, contract.StatusDraft, c.Status())
		assert.Nil(t, c.ProjectID())
	})

	t.Run("contract linked to a same-tenant project", func(t *testing.T) {
		p, err := projects.Create(ctx, rc, CreateProjectInput{Name: "North Tower"})
		require.NoError(t, err)

		c, err := svc.Create(ctx, rc, CreateContractInput{ProjectID: p.ID().String(), Title: "Crane rental"})
		require.NoError(t, err)
		require.NotNil(t, c.ProjectID())
		assert.True(t, c.ProjectID().Equals(p.ID()))
	})

	t.Run("foreign project link reads as not found", func(t *testing.T) {
		p, err := projects.Create(ctx, rc, CreateProjectInput{Name: "South Wing"})
		require.NoError(t, err)

		other := testRequestContext(shared.NewID())
		_, err = svc.Create(ctx, other, CreateContractInput{ProjectID: p.ID().String(), Title: "Sneaky link"})
		assert.ErrorIs(t, err, authz.ErrResourceNotFound)
	})
}

func TestContractService_Payments(t *testing.T) {
	ctx := context.Background()
	svc, _ := newContractFixture(t)
	rc := testRequestContext(shared.NewID())

	c, err := svc.Create(ctx, rc, CreateContractInput{Title: "Electrical works", ValueCents: 80_000_00})
	require.NoError(t, err)

	t.Run("payment is stamped with tenant and recorder", func(t *testing.T) {
		p, err := svc.RecordPayment(ctx, rc, c.ID().String(), RecordPaymentInput{AmountCents: 10_000_00, Reference: "INV-001"})
		require.NoError(t, err)
		assert.True(t, p.TenantID().Equals(rc.TenantID()))
		assert.True(t, p.ContractID().Equals(c.ID()))
		assert.Equal(t, rc.Principal().ID(), p.RecordedBy())

		payments, err := svc.ListPayments(ctx, rc, c.ID().String())
		require.NoError(t, err)
		assert.Len(t, payments, 1)
	})

	t.Run("cross-tenant payment reads as not found", func(t *testing.T) {
		other := testRequestContext(shared.NewID())
		_, err := svc.RecordPayment(ctx, other, c.ID().String(), RecordPaymentInput{AmountCents: 500})
		assert.ErrorIs(t, err, authz.ErrResourceNotFound)

		_, err = svc.ListPayments(ctx, other, c.ID().String())
		assert.ErrorIs(t, err, authz.ErrResourceNotFound)
	})

	t.Run("non-positive amount is rejected", func(t *testing.T) {
		_, err := svc.RecordPayment(ctx, rc, c.ID().String(), RecordPaymentInput{AmountCents: 0})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestContractService_Get_ScopesToTenant(t *testing.T) {
	ctx := context.Background()
	svc, _ := newContractFixture(t)
	rc := testRequestContext(shared.NewID())

	c, err := svc.Create(ctx, rc, CreateContractInput{Title: "Scaffolding"})
	require.NoError(t, err)

	other := testRequestContext(shared.NewID())
	_, err = svc.Get(ctx, other, c.ID().String())
	assert.ErrorIs(t, err, authz.ErrResourceNotFound)
}
