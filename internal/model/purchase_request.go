package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RequestStatus is the lifecycle status of a purchase request.
type RequestStatus string

const (
	RequestStatusDraft     RequestStatus = "DRAFT"
	RequestStatusSubmitted RequestStatus = "SUBMITTED"
	RequestStatusApproved  RequestStatus = "APPROVED"
	RequestStatusRejected  RequestStatus = "REJECTED"
	RequestStatusCancelled RequestStatus = "CANCELLED"
)

// RequestEvent is a named transition applied to a purchase request.
type RequestEvent string

const (
	EventSubmit  RequestEvent = "SUBMIT"
	EventApprove RequestEvent = "APPROVE"
	EventReject  RequestEvent = "REJECT"
	EventCancel  RequestEvent = "CANCEL"
)

// PurchaseRequest is a multi-line request for goods moving through the
// approval workflow. Draft is the only creatable status; every other status
// is reached via Apply. Side-effect fields (SubmittedAt, ApprovedBy,
// ApprovedAt, RejectionReason) are set only by the matching transition and
// never cleared.
type PurchaseRequest struct {
	ID              uuid.UUID             `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequestNo       string                `gorm:"type:varchar(20);uniqueIndex;not null" json:"request_no"` // PR-######
	RequestedBy     uuid.UUID             `gorm:"type:uuid;not null;index" json:"requested_by"`
	Requester       *User                 `gorm:"foreignKey:RequestedBy" json:"requester,omitempty"`
	RequestDate     time.Time             `gorm:"type:date;not null;index" json:"request_date"`
	Status          RequestStatus         `gorm:"type:varchar(20);not null;default:'DRAFT';index" json:"status"`
	Description     string                `gorm:"type:varchar(500)" json:"description"`
	SubmittedAt     *time.Time            `json:"submitted_at"`
	ApprovedBy      *uuid.UUID            `gorm:"type:uuid" json:"approved_by"`
	Approver        *User                 `gorm:"foreignKey:ApprovedBy" json:"approver,omitempty"`
	ApprovedAt      *time.Time            `json:"approved_at"`
	RejectionReason string                `gorm:"type:text" json:"rejection_reason"`
	Lines           []PurchaseRequestLine `gorm:"foreignKey:RequestID" json:"lines"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// PurchaseRequestLine is one product/quantity/unit entry owned by exactly one
// request. Lines are fixed at creation; there is no add/remove afterwards.
type PurchaseRequestLine struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequestID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"request_id"`
	ProductID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	Product      Product         `gorm:"foreignKey:ProductID" json:"-"`
	UnitID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"unit_id"`
	Unit         Unit            `gorm:"foreignKey:UnitID" json:"-"`
	Quantity     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	RequiredDate *time.Time      `gorm:"type:date" json:"required_date"`
	Notes        string          `gorm:"type:varchar(200)" json:"notes"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TransitionEffects carries the side-effect inputs a transition may consume.
type TransitionEffects struct {
	Now        time.Time
	ApproverID *uuid.UUID
	Reason     string
}

// transitions is the full table of legal (status, event) pairs. Draft can
// only be submitted; rejecting or cancelling a Draft is intentionally not a
// path. Approved, Rejected and Cancelled are sinks.
var transitions = map[RequestStatus]map[RequestEvent]RequestStatus{
	RequestStatusDraft: {
		EventSubmit: RequestStatusSubmitted,
	},
	RequestStatusSubmitted: {
		EventApprove: RequestStatusApproved,
		EventReject:  RequestStatusRejected,
		EventCancel:  RequestStatusCancelled,
	},
	RequestStatusApproved:  {},
	RequestStatusRejected:  {},
	RequestStatusCancelled: {},
}

// NextStatus resolves the transition table for (current, event).
func NextStatus(current RequestStatus, event RequestEvent) (RequestStatus, error) {
	next, ok := transitions[current][event]
	if !ok {
		return "", &InvalidTransitionError{Status: current, Event: event}
	}
	return next, nil
}

// Apply advances the request along the transition table, setting the
// side-effect fields that belong to the event. On an illegal pair the
// aggregate is left unmodified.
func (r *PurchaseRequest) Apply(event RequestEvent, fx TransitionEffects) error {
	next, err := NextStatus(r.Status, event)
	if err != nil {
		return err
	}

	switch event {
	case EventSubmit:
		now := fx.Now
		r.SubmittedAt = &now
	case EventApprove:
		now := fx.Now
		r.ApprovedBy = fx.ApproverID
		r.ApprovedAt = &now
	case EventReject:
		r.RejectionReason = fx.Reason
	}

	r.Status = next
	return nil
}
