package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/girderhq/api/pkg/domain/authz"
	"github.com/girderhq/api/pkg/domain/notification"
	"github.com/girderhq/api/pkg/domain/rfi"
	"github.com/girderhq/api/pkg/domain/shared"
	"github.com/girderhq/api/pkg/logger"
)

type memRFIRepo struct {
	rfis map[shared.ID]*rfi.RFI
}

func newMemRFIRepo() *memRFIRepo {
	return &memRFIRepo{rfis: make(map[shared.ID]*rfi.RFI)}
}

func (r *memRFIRepo) Create(_ context.Context, q *rfi.RFI) error {
	r.rfis[q.ID()] = q
	return nil
}

func (r *memRFIRepo) GetByID(_ context.Context, id shared.ID) (*rfi.RFI, error) {
	if q, ok := r.rfis[id]; ok {
		return q, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memRFIRepo) List(_ context.Context, f rfi.Filter) ([]*rfi.RFI, int64, error) {
	var out []*rfi.RFI
	for _, q := range r.rfis {
		if !q.TenantID().Equals(f.TenantID) {
			continue
		}
		if f.Status != "" && string(q.Status()) != f.Status {
			continue
		}
		out = append(out, q)
	}
	return out, int64(len(out)), nil
}

func (r *memRFIRepo) Update(_ context.Context, q *rfi.RFI) error {
	r.rfis[q.ID()] = q
	return nil
}

type rfiFixture struct {
	svc      *RFIService
	notifier *captureNotifier
	rc       *authz.RequestContext
	project  string
}

func newRFIFixture(t *testing.T) *rfiFixture {
	t.Helper()

	log := logger.NewDefault()
	projects := NewProjectService(newMemProjectRepo(), log)
	notifier := &captureNotifier{}
	svc := NewRFIService(newMemRFIRepo(), projects, notifier, log)

	rc := testRequestContext(shared.NewID())
	p, err := projects.Create(context.Background(), rc, CreateProjectInput{Name: "North Tower"})
	require.NoError(t, err)

	return &rfiFixture{svc: svc, notifier: notifier, rc: rc, project: p.ID().String()}
}

func TestRFIService_Create(t *testing.T) {
	ctx := context.Background()
	fx := newRFIFixture(t)

	q, err := fx.svc.Create(ctx, fx.rc, CreateRFIInput{
		ProjectID: fx.project,
		Subject:   "Beam height clearance",
		Question:  "Drawing A-102 conflicts with the mechanical plan. Which governs?",
	})
	require.NoError(t, err)
	assert.Equal(t, rfi.StatusOpen, q.Status())
	assert.True(t, q.TenantID().Equals(fx.rc.TenantID()))
	assert.Equal(t, fx.rc.Principal().ID(), q.RaisedBy())

	// Foreign project reference reads as not found.
	other := testRequestContext(shared.NewID())
	_, err = fx.svc.Create(ctx, other, CreateRFIInput{ProjectID: fx.project, Subject: "x", Question: "y"})
	assert.ErrorIs(t, err, authz.ErrResourceNotFound)
}

func TestRFIService_Respond(t *testing.T) {
	ctx := context.Background()

	t.Run("answer notifies whoever raised it", func(t *testing.T) {
		fx := newRFIFixture(t)
		q, err := fx.svc.Create(ctx, fx.rc, CreateRFIInput{
			ProjectID: fx.project,
			Subject:   "Concrete mix",
			Question:  "Is C35 acceptable for the slab?",
		})
		require.NoError(t, err)

		answered, err := fx.svc.Respond(ctx, fx.rc, q.ID().String(), RespondInput{Answer: "Yes, per the structural note."})
		require.NoError(t, err)
		assert.Equal(t, rfi.StatusAnswered, answered.Status())
		require.NotNil(t, answered.AnsweredBy())
		assert.True(t, answered.AnsweredBy().Equals(fx.rc.Principal().ID()))

		require.Len(t, fx.notifier.payloads, 1)
		p := fx.notifier.payloads[0]
		assert.Equal(t, q.RaisedBy().String(), p.UserID)
		assert.Equal(t, string(notification.KindRFIAnswered), p.Kind)
	})

	t.Run("cross-tenant answer reads as not found", func(t *testing.T) {
		fx := newRFIFixture(t)
		q, err := fx.svc.Create(ctx, fx.rc, CreateRFIInput{ProjectID: fx.project, Subject: "Rebar spacing", Question: "200mm or 150mm?"})
		require.NoError(t, err)

		other := testRequestContext(shared.NewID())
		_, err = fx.svc.Respond(ctx, other, q.ID().String(), RespondInput{Answer: "150mm"})
		assert.ErrorIs(t, err, authz.ErrResourceNotFound)
		assert.Empty(t, fx.notifier.payloads)
	})

	t.Run("empty answer is a validation error", func(t *testing.T) {
		fx := newRFIFixture(t)
		q, err := fx.svc.Create(ctx, fx.rc, CreateRFIInput{ProjectID: fx.project, Subject: "Window spec", Question: "Double or triple glazing?"})
		require.NoError(t, err)

		_, err = fx.svc.Respond(ctx, fx.rc, q.ID().String(), RespondInput{Answer: "   "})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}
