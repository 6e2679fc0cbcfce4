package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"procurement/internal/model"
	"procurement/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	dateLayout = "2006-01-02"

	maxDescriptionLen = 500
	maxLineNotesLen   = 200

	defaultPageSize = 20
	maxPageSize     = 100
)

// --- DTOs ---

type RequestLineInput struct {
	ProductID    string          `json:"product_id" binding:"required"`
	UnitID       string          `json:"unit_id" binding:"required"`
	Quantity     decimal.Decimal `json:"quantity" binding:"required"`
	RequiredDate string          `json:"required_date"` // optional, YYYY-MM-DD
	Notes        string          `json:"notes"`
}

type CreatePurchaseRequestDTO struct {
	RequestDate string             `json:"request_date" binding:"required"` // YYYY-MM-DD
	Description string             `json:"description"`
	Lines       []RequestLineInput `json:"lines" binding:"required,min=1,dive"`
}

// RequestFilter holds raw list parameters; List normalizes them.
type RequestFilter struct {
	Search      string
	Status      string
	RequestedBy string
	UserName    string
	FromDate    string
	ToDate      string
	Sort        string
	Page        int
	PageSize    int
}

type RequestLineView struct {
	ID           string  `json:"id"`
	ProductID    string  `json:"product_id"`
	ProductName  string  `json:"product_name"`
	UnitID       string  `json:"unit_id"`
	UnitCode     string  `json:"unit_code"`
	UnitName     string  `json:"unit_name"`
	Quantity     string  `json:"quantity"`
	RequiredDate *string `json:"required_date"`
	Notes        string  `json:"notes"`
}

type PurchaseRequestView struct {
	ID              string            `json:"id"`
	RequestNo       string            `json:"request_no"`
	RequestedBy     string            `json:"requested_by"`
	RequesterName   string            `json:"requester_name"`
	RequestDate     string            `json:"request_date"`
	Status          string            `json:"status"`
	Description     string            `json:"description"`
	SubmittedAt     *string           `json:"submitted_at"`
	ApprovedBy      *string           `json:"approved_by"`
	ApproverName    string            `json:"approver_name"`
	ApprovedAt      *string           `json:"approved_at"`
	RejectionReason string            `json:"rejection_reason"`
	Lines           []RequestLineView `json:"lines"`
	CreatedAt       string            `json:"created_at"`
}

// RequestPage is the envelope List returns: total counts the whole filtered
// set independent of paging.
type RequestPage struct {
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
	Total    int64                 `json:"total"`
	Items    []PurchaseRequestView `json:"items"`
}

// --- Interface ---

type PurchaseRequestService interface {
	Create(ctx context.Context, requesterID string, req CreatePurchaseRequestDTO) (PurchaseRequestView, error)
	Submit(ctx context.Context, id string) (PurchaseRequestView, error)
	Approve(ctx context.Context, id string, approverID string) (PurchaseRequestView, error)
	Reject(ctx context.Context, id string, reason string) (PurchaseRequestView, error)
	Cancel(ctx context.Context, id string) (PurchaseRequestView, error)
	Get(ctx context.Context, id string) (PurchaseRequestView, error)
	List(ctx context.Context, filter RequestFilter) (RequestPage, error)
}

// EventPublisher pushes lifecycle events to connected clients. Optional.
type EventPublisher interface {
	Publish(event string, data interface{})
}

type purchaseRequestService struct {
	requestRepo repository.PurchaseRequestRepository
	gateway     *ReferenceValidationGateway
	allocator   *RequestNumberAllocator
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	publisher   EventPublisher
}

func NewPurchaseRequestService(
	requestRepo repository.PurchaseRequestRepository,
	gateway *ReferenceValidationGateway,
	allocator *RequestNumberAllocator,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	publisher EventPublisher,
) PurchaseRequestService {
	return &purchaseRequestService{
		requestRepo: requestRepo,
		gateway:     gateway,
		allocator:   allocator,
		auditRepo:   auditRepo,
		txManager:   txManager,
		publisher:   publisher,
	}
}

// --- Commands ---

func (s *purchaseRequestService) Create(ctx context.Context, requesterID string, req CreatePurchaseRequestDTO) (PurchaseRequestView, error) {
	requester, err := uuid.Parse(requesterID)
	if err != nil {
		return PurchaseRequestView{}, model.NewValidationError("invalid requester id: %s", requesterID)
	}

	requestDate, err := time.Parse(dateLayout, req.RequestDate)
	if err != nil {
		return PurchaseRequestView{}, model.NewValidationError("invalid request_date %q: expected YYYY-MM-DD", req.RequestDate)
	}

	description := strings.TrimSpace(req.Description)
	if len(description) > maxDescriptionLen {
		return PurchaseRequestView{}, model.NewValidationError("description exceeds %d characters", maxDescriptionLen)
	}

	if len(req.Lines) == 0 {
		return PurchaseRequestView{}, model.NewValidationError("purchase request must have at least one line")
	}

	lines := make([]model.PurchaseRequestLine, 0, len(req.Lines))
	productIDs := make([]uuid.UUID, 0, len(req.Lines))
	unitIDs := make([]uuid.UUID, 0, len(req.Lines))
	for i, lineReq := range req.Lines {
		productID, parseErr := uuid.Parse(lineReq.ProductID)
		if parseErr != nil {
			return PurchaseRequestView{}, model.NewValidationError("line %d: invalid product_id", i+1)
		}
		unitID, parseErr := uuid.Parse(lineReq.UnitID)
		if parseErr != nil {
			return PurchaseRequestView{}, model.NewValidationError("line %d: invalid unit_id", i+1)
		}
		if !lineReq.Quantity.IsPositive() {
			return PurchaseRequestView{}, model.NewValidationError("line %d: quantity must be greater than zero", i+1)
		}

		notes := strings.TrimSpace(lineReq.Notes)
		if len(notes) > maxLineNotesLen {
			return PurchaseRequestView{}, model.NewValidationError("line %d: notes exceed %d characters", i+1, maxLineNotesLen)
		}

		var requiredDate *time.Time
		if lineReq.RequiredDate != "" {
			parsed, dateErr := time.Parse(dateLayout, lineReq.RequiredDate)
			if dateErr != nil {
				return PurchaseRequestView{}, model.NewValidationError("line %d: invalid required_date %q", i+1, lineReq.RequiredDate)
			}
			requiredDate = &parsed
		}

		productIDs = append(productIDs, productID)
		unitIDs = append(unitIDs, unitID)
		lines = append(lines, model.PurchaseRequestLine{
			ProductID:    productID,
			UnitID:       unitID,
			Quantity:     lineReq.Quantity,
			RequiredDate: requiredDate,
			Notes:        notes,
		})
	}

	request := model.PurchaseRequest{
		RequestedBy: requester,
		RequestDate: requestDate,
		Status:      model.RequestStatusDraft,
		Description: description,
		Lines:       lines,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.gateway.EnsureProductsExist(txCtx, productIDs); err != nil {
			return err
		}
		if err := s.gateway.EnsureUnitsExist(txCtx, unitIDs); err != nil {
			return err
		}

		requestNo, allocErr := s.allocator.Allocate(txCtx)
		if allocErr != nil {
			return allocErr
		}
		request.RequestNo = requestNo

		if createErr := s.requestRepo.Create(txCtx, &request); createErr != nil {
			return fmt.Errorf("failed to create purchase request: %w", createErr)
		}

		return s.writeAudit(txCtx, &requester, model.ActionCreatePurchaseRequest, &request, map[string]interface{}{
			"request_no": request.RequestNo,
			"line_count": len(request.Lines),
		})
	})
	if err != nil {
		return PurchaseRequestView{}, err
	}

	view, err := s.loadView(ctx, request.ID)
	if err != nil {
		return PurchaseRequestView{}, err
	}

	s.broadcast("purchase_request.created", view)
	return view, nil
}

func (s *purchaseRequestService) Submit(ctx context.Context, id string) (PurchaseRequestView, error) {
	return s.applyEvent(ctx, id, model.EventSubmit, model.ActionSubmitPurchaseRequest, nil, func(now time.Time) model.TransitionEffects {
		return model.TransitionEffects{Now: now}
	})
}

func (s *purchaseRequestService) Approve(ctx context.Context, id string, approverID string) (PurchaseRequestView, error) {
	approver, err := uuid.Parse(approverID)
	if err != nil {
		return PurchaseRequestView{}, model.NewValidationError("invalid approver id: %s", approverID)
	}
	return s.applyEvent(ctx, id, model.EventApprove, model.ActionApprovePurchaseRequest, &approver, func(now time.Time) model.TransitionEffects {
		return model.TransitionEffects{Now: now, ApproverID: &approver}
	})
}

func (s *purchaseRequestService) Reject(ctx context.Context, id string, reason string) (PurchaseRequestView, error) {
	// The reason is required before the state machine is consulted.
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return PurchaseRequestView{}, model.NewValidationError("rejection reason is required")
	}
	return s.applyEvent(ctx, id, model.EventReject, model.ActionRejectPurchaseRequest, nil, func(now time.Time) model.TransitionEffects {
		return model.TransitionEffects{Now: now, Reason: reason}
	})
}

func (s *purchaseRequestService) Cancel(ctx context.Context, id string) (PurchaseRequestView, error) {
	return s.applyEvent(ctx, id, model.EventCancel, model.ActionCancelPurchaseRequest, nil, func(now time.Time) model.TransitionEffects {
		return model.TransitionEffects{Now: now}
	})
}

// applyEvent runs one load-decide-write unit of work: the aggregate is either
// unchanged or fully updated with all side-effect fields set together.
func (s *purchaseRequestService) applyEvent(
	ctx context.Context,
	id string,
	event model.RequestEvent,
	auditAction string,
	actorID *uuid.UUID,
	effects func(now time.Time) model.TransitionEffects,
) (PurchaseRequestView, error) {
	requestID, err := uuid.Parse(id)
	if err != nil {
		return PurchaseRequestView{}, &model.NotFoundError{Entity: "purchase request", ID: id}
	}

	var request *model.PurchaseRequest
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		found, findErr := s.requestRepo.FindByID(txCtx, requestID)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return &model.NotFoundError{Entity: "purchase request", ID: id}
			}
			return fmt.Errorf("failed to load purchase request: %w", findErr)
		}
		request = found

		if applyErr := request.Apply(event, effects(time.Now())); applyErr != nil {
			return applyErr
		}

		if saveErr := s.requestRepo.Save(txCtx, request); saveErr != nil {
			return fmt.Errorf("failed to update purchase request: %w", saveErr)
		}

		actor := actorID
		if actor == nil {
			actor = &request.RequestedBy
		}
		return s.writeAudit(txCtx, actor, auditAction, request, map[string]interface{}{
			"request_no": request.RequestNo,
			"status":     request.Status,
		})
	})
	if err != nil {
		return PurchaseRequestView{}, err
	}

	view, err := s.loadView(ctx, request.ID)
	if err != nil {
		return PurchaseRequestView{}, err
	}

	s.broadcast("purchase_request."+strings.ToLower(string(event)), view)
	return view, nil
}

// --- Queries ---

func (s *purchaseRequestService) Get(ctx context.Context, id string) (PurchaseRequestView, error) {
	requestID, err := uuid.Parse(id)
	if err != nil {
		return PurchaseRequestView{}, &model.NotFoundError{Entity: "purchase request", ID: id}
	}
	return s.loadView(ctx, requestID)
}

// sortColumns whitelists the exposed sort keys. Anything else falls back to
// newest-first by creation time.
var sortColumns = map[string]string{
	"requestNumber":  "request_no asc",
	"-requestNumber": "request_no desc",
	"requestDate":    "request_date asc",
	"-requestDate":   "request_date desc",
	"status":         "status asc",
	"-status":        "status desc",
	"createdAt":      "created_at asc",
}

const defaultOrder = "created_at desc"

func (s *purchaseRequestService) List(ctx context.Context, filter RequestFilter) (RequestPage, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	orderBy, ok := sortColumns[filter.Sort]
	if !ok {
		orderBy = defaultOrder
	}

	query := repository.RequestQuery{
		Search:   filter.Search,
		Status:   model.RequestStatus(filter.Status),
		UserName: filter.UserName,
		OrderBy:  orderBy,
		Offset:   (page - 1) * pageSize,
		Limit:    pageSize,
	}

	if filter.RequestedBy != "" {
		requestedBy, err := uuid.Parse(filter.RequestedBy)
		if err != nil {
			return RequestPage{}, model.NewValidationError("invalid requested_by filter: %s", filter.RequestedBy)
		}
		query.RequestedBy = &requestedBy
	}
	if filter.FromDate != "" {
		from, err := time.Parse(dateLayout, filter.FromDate)
		if err != nil {
			return RequestPage{}, model.NewValidationError("invalid from_date %q: expected YYYY-MM-DD", filter.FromDate)
		}
		query.FromDate = &from
	}
	if filter.ToDate != "" {
		to, err := time.Parse(dateLayout, filter.ToDate)
		if err != nil {
			return RequestPage{}, model.NewValidationError("invalid to_date %q: expected YYYY-MM-DD", filter.ToDate)
		}
		query.ToDate = &to
	}

	requests, total, err := s.requestRepo.Query(ctx, query)
	if err != nil {
		return RequestPage{}, fmt.Errorf("failed to query purchase requests: %w", err)
	}

	items := make([]PurchaseRequestView, 0, len(requests))
	for i := range requests {
		items = append(items, toRequestView(&requests[i]))
	}

	return RequestPage{
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		Items:    items,
	}, nil
}

// --- Helpers ---

func (s *purchaseRequestService) loadView(ctx context.Context, id uuid.UUID) (PurchaseRequestView, error) {
	request, err := s.requestRepo.FindByIDWithDetails(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return PurchaseRequestView{}, &model.NotFoundError{Entity: "purchase request", ID: id.String()}
		}
		return PurchaseRequestView{}, fmt.Errorf("failed to load purchase request: %w", err)
	}
	return toRequestView(request), nil
}

func (s *purchaseRequestService) writeAudit(ctx context.Context, actorID *uuid.UUID, action string, request *model.PurchaseRequest, payload map[string]interface{}) error {
	details, _ := json.Marshal(payload)
	entry := &model.AuditLog{
		UserID:     actorID,
		Action:     action,
		EntityID:   request.ID.String(),
		EntityName: request.RequestNo,
		Details:    string(details),
	}
	if err := s.auditRepo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (s *purchaseRequestService) broadcast(event string, view PurchaseRequestView) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(event, view)
}

func toRequestView(r *model.PurchaseRequest) PurchaseRequestView {
	view := PurchaseRequestView{
		ID:              r.ID.String(),
		RequestNo:       r.RequestNo,
		RequestedBy:     r.RequestedBy.String(),
		RequestDate:     r.RequestDate.Format(dateLayout),
		Status:          string(r.Status),
		Description:     r.Description,
		RejectionReason: r.RejectionReason,
		Lines:           make([]RequestLineView, 0, len(r.Lines)),
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
	}

	if r.Requester != nil {
		view.RequesterName = r.Requester.Username
	}
	if r.SubmittedAt != nil {
		ts := r.SubmittedAt.Format(time.RFC3339)
		view.SubmittedAt = &ts
	}
	if r.ApprovedBy != nil {
		id := r.ApprovedBy.String()
		view.ApprovedBy = &id
	}
	if r.Approver != nil {
		view.ApproverName = r.Approver.Username
	}
	if r.ApprovedAt != nil {
		ts := r.ApprovedAt.Format(time.RFC3339)
		view.ApprovedAt = &ts
	}

	for _, line := range r.Lines {
		lineView := RequestLineView{
			ID:          line.ID.String(),
			ProductID:   line.ProductID.String(),
			ProductName: line.Product.Name,
			UnitID:      line.UnitID.String(),
			UnitCode:    line.Unit.Code,
			UnitName:    line.Unit.Name,
			Quantity:    line.Quantity.String(),
			Notes:       line.Notes,
		}
		if line.RequiredDate != nil {
			d := line.RequiredDate.Format(dateLayout)
			lineView.RequiredDate = &d
		}
		view.Lines = append(view.Lines, lineView)
	}

	return view
}
