package service

import (
	"context"
	"strings"
	"testing"

	"procurement/internal/model"
	"procurement/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// --- In-memory fakes ---

type memoryRequestRepo struct {
	requests   map[uuid.UUID]*model.PurchaseRequest
	lastQuery  repository.RequestQuery
	queryHits  []model.PurchaseRequest
	queryTotal int64
}

func newMemoryRequestRepo() *memoryRequestRepo {
	return &memoryRequestRepo{requests: make(map[uuid.UUID]*model.PurchaseRequest)}
}

func cloneRequest(r *model.PurchaseRequest) *model.PurchaseRequest {
	cp := *r
	cp.Lines = append([]model.PurchaseRequestLine(nil), r.Lines...)
	return &cp
}

func (m *memoryRequestRepo) Create(ctx context.Context, req *model.PurchaseRequest) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	for i := range req.Lines {
		if req.Lines[i].ID == uuid.Nil {
			req.Lines[i].ID = uuid.New()
		}
		req.Lines[i].RequestID = req.ID
	}
	m.requests[req.ID] = cloneRequest(req)
	return nil
}

func (m *memoryRequestRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error) {
	req, ok := m.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return cloneRequest(req), nil
}

func (m *memoryRequestRepo) FindByIDWithDetails(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error) {
	return m.FindByID(ctx, id)
}

func (m *memoryRequestRepo) Save(ctx context.Context, req *model.PurchaseRequest) error {
	if _, ok := m.requests[req.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.requests[req.ID] = cloneRequest(req)
	return nil
}

func (m *memoryRequestRepo) MaxRequestNo(ctx context.Context, prefix string) (string, error) {
	max := ""
	for _, req := range m.requests {
		if strings.HasPrefix(req.RequestNo, prefix) && req.RequestNo > max {
			max = req.RequestNo
		}
	}
	return max, nil
}

func (m *memoryRequestRepo) ExistsByRequestNo(ctx context.Context, requestNo string) (bool, error) {
	for _, req := range m.requests {
		if req.RequestNo == requestNo {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryRequestRepo) Query(ctx context.Context, q repository.RequestQuery) ([]model.PurchaseRequest, int64, error) {
	m.lastQuery = q
	return m.queryHits, m.queryTotal, nil
}

type memoryAuditRepo struct {
	entries []model.AuditLog
}

func (m *memoryAuditRepo) Log(ctx context.Context, entry *model.AuditLog) error {
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryAuditRepo) List(ctx context.Context, page, limit int) ([]model.AuditLog, int64, error) {
	return m.entries, int64(len(m.entries)), nil
}

// passthroughTxManager runs the unit of work without a real transaction.
type passthroughTxManager struct{}

func (passthroughTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

type recordingPublisher struct {
	events []string
}

func (p *recordingPublisher) Publish(event string, data interface{}) {
	p.events = append(p.events, event)
}

// --- Fixture ---

type requestServiceFixture struct {
	service   PurchaseRequestService
	repo      *memoryRequestRepo
	audit     *memoryAuditRepo
	publisher *recordingPublisher
	productID uuid.UUID
	unitID    uuid.UUID
	requester uuid.UUID
}

func newRequestServiceFixture(t *testing.T) *requestServiceFixture {
	t.Helper()

	productID, unitID := uuid.New(), uuid.New()
	repo := newMemoryRequestRepo()
	audit := &memoryAuditRepo{}
	publisher := &recordingPublisher{}

	gateway := NewReferenceValidationGateway(newFakeCatalog(productID), newFakeCatalog(unitID))
	allocator := NewRequestNumberAllocator(repo)
	svc := NewPurchaseRequestService(repo, gateway, allocator, audit, passthroughTxManager{}, publisher)

	return &requestServiceFixture{
		service:   svc,
		repo:      repo,
		audit:     audit,
		publisher: publisher,
		productID: productID,
		unitID:    unitID,
		requester: uuid.New(),
	}
}

func (f *requestServiceFixture) validCreateDTO() CreatePurchaseRequestDTO {
	return CreatePurchaseRequestDTO{
		RequestDate: "2025-03-10",
		Description: "Office restock",
		Lines: []RequestLineInput{
			{
				ProductID: f.productID.String(),
				UnitID:    f.unitID.String(),
				Quantity:  decimal.NewFromInt(5),
				Notes:     "urgent",
			},
		},
	}
}

// --- Create ---

func TestCreateAssignsSequentialNumbers(t *testing.T) {
	f := newRequestServiceFixture(t)
	ctx := context.Background()

	first, err := f.service.Create(ctx, f.requester.String(), f.validCreateDTO())
	require.NoError(t, err)
	second, err := f.service.Create(ctx, f.requester.String(), f.validCreateDTO())
	require.NoError(t, err)

	assert.Equal(t, "PR-000001", first.RequestNo)
	assert.Equal(t, "PR-000002", second.RequestNo)
	assert.Equal(t, string(model.RequestStatusDraft), first.Status)
	assert.Nil(t, first.SubmittedAt)
	assert.Nil(t, first.ApprovedBy)
	assert.Nil(t, first.ApprovedAt)
	assert.Empty(t, first.RejectionReason)
	assert.Len(t, first.Lines, 1)
	assert.Equal(t, "5", first.Lines[0].Quantity)
}

func TestCreateWritesAuditAndBroadcasts(t *testing.T) {
	f := newRequestServiceFixture(t)

	view, err := f.service.Create(context.Background(), f.requester.String(), f.validCreateDTO())

	require.NoError(t, err)
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, model.ActionCreatePurchaseRequest, f.audit.entries[0].Action)
	assert.Equal(t, view.RequestNo, f.audit.entries[0].EntityName)
	assert.Equal(t, []string{"purchase_request.created"}, f.publisher.events)
}

func TestCreateRejectsInvalidRequester(t *testing.T) {
	f := newRequestServiceFixture(t)

	_, err := f.service.Create(context.Background(), "not-a-uuid", f.validCreateDTO())

	var validationErr *model.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestCreateRejectsMalformedDate(t *testing.T) {
	f := newRequestServiceFixture(t)
	dto := f.validCreateDTO()
	dto.RequestDate = "10/03/2025"

	_, err := f.service.Create(context.Background(), f.requester.String(), dto)

	var validationErr *model.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestCreateRequiresAtLeastOneLine(t *testing.T) {
	f := newRequestServiceFixture(t)
	dto := f.validCreateDTO()
	dto.Lines = nil

	_, err := f.service.Create(context.Background(), f.requester.String(), dto)

	var validationErr *model.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Empty(t, f.repo.requests)
}

func TestCreateRejectsNonPositiveQuantity(t *testing.T) {
	f := newRequestServiceFixture(t)
	dto := f.validCreateDTO()
	dto.Lines[0].Quantity = decimal.Zero

	_, err := f.service.Create(context.Background(), f.requester.String(), dto)

	var validationErr *model.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestCreateRejectsOverlongDescription(t *testing.T) {
	f := newRequestServiceFixture(t)
	dto := f.validCreateDTO()
	dto.Description = strings.Repeat("x", 501)

	_, err := f.service.Create(context.Background(), f.requester.String(), dto)

	var validationErr *model.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestCreateRejectsOverlongLineNotes(t *testing.T) {
	f := newRequestServiceFixture(t)
	dto := f.validCreateDTO()
	dto.Lines[0].Notes = strings.Repeat("x", 201)

	_, err := f.service.Create(context.Background(), f.requester.String(), dto)

	var validationErr *model.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestCreateRejectsUnknownProduct(t *testing.T) {
	f := newRequestServiceFixture(t)
	dto := f.validCreateDTO()
	dto.Lines[0].ProductID = uuid.NewString()

	_, err := f.service.Create(context.Background(), f.requester.String(), dto)

	var refErr *model.ReferenceNotFoundError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "product", refErr.Kind)
	assert.Empty(t, f.repo.requests)
	assert.Empty(t, f.audit.entries)
	assert.Empty(t, f.publisher.events)
}

func TestCreateRejectsUnknownUnit(t *testing.T) {
	f := newRequestServiceFixture(t)
	dto := f.validCreateDTO()
	dto.Lines[0].UnitID = uuid.NewString()

	_, err := f.service.Create(context.Background(), f.requester.String(), dto)

	var refErr *model.ReferenceNotFoundError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "unit", refErr.Kind)
}

// --- Lifecycle ---

func TestSubmitApproveLifecycle(t *testing.T) {
	f := newRequestServiceFixture(t)
	ctx := context.Background()
	approver := uuid.New()

	created, err := f.service.Create(ctx, f.requester.String(), f.validCreateDTO())
	require.NoError(t, err)

	submitted, err := f.service.Submit(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, string(model.RequestStatusSubmitted), submitted.Status)
	require.NotNil(t, submitted.SubmittedAt)

	approved, err := f.service.Approve(ctx, created.ID, approver.String())
	require.NoError(t, err)
	assert.Equal(t, string(model.RequestStatusApproved), approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, approver.String(), *approved.ApprovedBy)
	require.NotNil(t, approved.ApprovedAt)

	// Approved is a sink: no further transitions.
	_, err = f.service.Cancel(ctx, created.ID)
	var transitionErr *model.InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, model.RequestStatusApproved, transitionErr.Status)

	assert.Equal(t, []string{
		"purchase_request.created",
		"purchase_request.submit",
		"purchase_request.approve",
	}, f.publisher.events)
}

func TestRejectRequiresReason(t *testing.T) {
	f := newRequestServiceFixture(t)
	ctx := context.Background()

	created, err := f.service.Create(ctx, f.requester.String(), f.validCreateDTO())
	require.NoError(t, err)
	_, err = f.service.Submit(ctx, created.ID)
	require.NoError(t, err)

	_, err = f.service.Reject(ctx, created.ID, "   ")
	var validationErr *model.ValidationError
	require.ErrorAs(t, err, &validationErr)

	rejected, err := f.service.Reject(ctx, created.ID, "  over budget ")
	require.NoError(t, err)
	assert.Equal(t, string(model.RequestStatusRejected), rejected.Status)
	assert.Equal(t, "over budget", rejected.RejectionReason)
}

func TestRejectBlankReasonCheckedBeforeStateMachine(t *testing.T) {
	f := newRequestServiceFixture(t)
	ctx := context.Background()

	created, err := f.service.Create(ctx, f.requester.String(), f.validCreateDTO())
	require.NoError(t, err)

	// A Draft cannot be rejected, but the missing reason is reported first.
	_, err = f.service.Reject(ctx, created.ID, "")

	var validationErr *model.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestCancelFromSubmitted(t *testing.T) {
	f := newRequestServiceFixture(t)
	ctx := context.Background()

	created, err := f.service.Create(ctx, f.requester.String(), f.validCreateDTO())
	require.NoError(t, err)
	_, err = f.service.Submit(ctx, created.ID)
	require.NoError(t, err)

	cancelled, err := f.service.Cancel(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, string(model.RequestStatusCancelled), cancelled.Status)
}

func TestSubmitTwiceIsRejected(t *testing.T) {
	f := newRequestServiceFixture(t)
	ctx := context.Background()

	created, err := f.service.Create(ctx, f.requester.String(), f.validCreateDTO())
	require.NoError(t, err)
	_, err = f.service.Submit(ctx, created.ID)
	require.NoError(t, err)

	_, err = f.service.Submit(ctx, created.ID)

	var transitionErr *model.InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, model.RequestStatusSubmitted, transitionErr.Status)
	assert.Equal(t, model.EventSubmit, transitionErr.Event)
}

func TestSubmitUnknownRequest(t *testing.T) {
	f := newRequestServiceFixture(t)

	_, err := f.service.Submit(context.Background(), uuid.NewString())
	var notFoundErr *model.NotFoundError
	require.ErrorAs(t, err, &notFoundErr)

	// Malformed ids read as not-found too.
	_, err = f.service.Submit(context.Background(), "nope")
	require.ErrorAs(t, err, &notFoundErr)
}

func TestTransitionAuditTrail(t *testing.T) {
	f := newRequestServiceFixture(t)
	ctx := context.Background()

	created, err := f.service.Create(ctx, f.requester.String(), f.validCreateDTO())
	require.NoError(t, err)
	_, err = f.service.Submit(ctx, created.ID)
	require.NoError(t, err)
	_, err = f.service.Reject(ctx, created.ID, "duplicate request")
	require.NoError(t, err)

	require.Len(t, f.audit.entries, 3)
	assert.Equal(t, model.ActionCreatePurchaseRequest, f.audit.entries[0].Action)
	assert.Equal(t, model.ActionSubmitPurchaseRequest, f.audit.entries[1].Action)
	assert.Equal(t, model.ActionRejectPurchaseRequest, f.audit.entries[2].Action)
}

// --- List ---

func TestListNormalizesPagingAndSort(t *testing.T) {
	f := newRequestServiceFixture(t)

	page, err := f.service.List(context.Background(), RequestFilter{
		Page:     0,
		PageSize: 500,
		Sort:     "bogus",
	})

	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 100, page.PageSize)
	assert.Equal(t, 0, f.repo.lastQuery.Offset)
	assert.Equal(t, 100, f.repo.lastQuery.Limit)
	assert.Equal(t, "created_at desc", f.repo.lastQuery.OrderBy)
}

func TestListDefaultsPageSize(t *testing.T) {
	f := newRequestServiceFixture(t)

	page, err := f.service.List(context.Background(), RequestFilter{Page: 3})

	require.NoError(t, err)
	assert.Equal(t, 20, page.PageSize)
	assert.Equal(t, 40, f.repo.lastQuery.Offset)
}

func TestListWhitelistedSortKeys(t *testing.T) {
	f := newRequestServiceFixture(t)
	ctx := context.Background()

	tests := []struct {
		sort string
		want string
	}{
		{"requestNumber", "request_no asc"},
		{"-requestNumber", "request_no desc"},
		{"requestDate", "request_date asc"},
		{"-requestDate", "request_date desc"},
		{"status", "status asc"},
		{"-status", "status desc"},
		{"createdAt", "created_at asc"},
		{"", "created_at desc"},
		{"request_no; DROP TABLE", "created_at desc"},
	}

	for _, tt := range tests {
		_, err := f.service.List(ctx, RequestFilter{Sort: tt.sort})
		require.NoError(t, err)
		assert.Equal(t, tt.want, f.repo.lastQuery.OrderBy, "sort key %q", tt.sort)
	}
}

func TestListRejectsBadFilterInputs(t *testing.T) {
	f := newRequestServiceFixture(t)
	ctx := context.Background()

	var validationErr *model.ValidationError

	_, err := f.service.List(ctx, RequestFilter{RequestedBy: "not-a-uuid"})
	require.ErrorAs(t, err, &validationErr)

	_, err = f.service.List(ctx, RequestFilter{FromDate: "March 1"})
	require.ErrorAs(t, err, &validationErr)

	_, err = f.service.List(ctx, RequestFilter{ToDate: "2025-13-99"})
	require.ErrorAs(t, err, &validationErr)
}

func TestListPassesFiltersThrough(t *testing.T) {
	f := newRequestServiceFixture(t)
	requestedBy := uuid.New()
	f.repo.queryTotal = 7

	page, err := f.service.List(context.Background(), RequestFilter{
		Search:      "restock",
		Status:      "SUBMITTED",
		RequestedBy: requestedBy.String(),
		FromDate:    "2025-03-01",
		ToDate:      "2025-03-31",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(7), page.Total)
	assert.Equal(t, "restock", f.repo.lastQuery.Search)
	assert.Equal(t, model.RequestStatusSubmitted, f.repo.lastQuery.Status)
	require.NotNil(t, f.repo.lastQuery.RequestedBy)
	assert.Equal(t, requestedBy, *f.repo.lastQuery.RequestedBy)
	require.NotNil(t, f.repo.lastQuery.FromDate)
	require.NotNil(t, f.repo.lastQuery.ToDate)
}

// --- Get ---

func TestGetUnknownRequest(t *testing.T) {
	f := newRequestServiceFixture(t)

	_, err := f.service.Get(context.Background(), uuid.NewString())

	var notFoundErr *model.NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
}

func TestGetReturnsView(t *testing.T) {
	f := newRequestServiceFixture(t)
	ctx := context.Background()

	created, err := f.service.Create(ctx, f.requester.String(), f.validCreateDTO())
	require.NoError(t, err)

	got, err := f.service.Get(ctx, created.ID)

	require.NoError(t, err)
	assert.Equal(t, created.RequestNo, got.RequestNo)
	assert.Equal(t, "2025-03-10", got.RequestDate)
	assert.Equal(t, "Office restock", got.Description)
}
