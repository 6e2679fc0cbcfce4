package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStatus(t *testing.T) {
	tests := []struct {
		name    string
		current RequestStatus
		event   RequestEvent
		want    RequestStatus
		wantErr bool
	}{
		{"draft submit", RequestStatusDraft, EventSubmit, RequestStatusSubmitted, false},
		{"draft approve", RequestStatusDraft, EventApprove, "", true},
		{"draft reject", RequestStatusDraft, EventReject, "", true},
		{"draft cancel", RequestStatusDraft, EventCancel, "", true},
		{"submitted submit", RequestStatusSubmitted, EventSubmit, "", true},
		{"submitted approve", RequestStatusSubmitted, EventApprove, RequestStatusApproved, false},
		{"submitted reject", RequestStatusSubmitted, EventReject, RequestStatusRejected, false},
		{"submitted cancel", RequestStatusSubmitted, EventCancel, RequestStatusCancelled, false},
		{"approved submit", RequestStatusApproved, EventSubmit, "", true},
		{"approved approve", RequestStatusApproved, EventApprove, "", true},
		{"approved reject", RequestStatusApproved, EventReject, "", true},
		{"approved cancel", RequestStatusApproved, EventCancel, "", true},
		{"rejected submit", RequestStatusRejected, EventSubmit, "", true},
		{"rejected approve", RequestStatusRejected, EventApprove, "", true},
		{"rejected reject", RequestStatusRejected, EventReject, "", true},
		{"rejected cancel", RequestStatusRejected, EventCancel, "", true},
		{"cancelled submit", RequestStatusCancelled, EventSubmit, "", true},
		{"cancelled approve", RequestStatusCancelled, EventApprove, "", true},
		{"cancelled reject", RequestStatusCancelled, EventReject, "", true},
		{"cancelled cancel", RequestStatusCancelled, EventCancel, "", true},
		{"unknown status", RequestStatus("PENDING"), EventSubmit, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextStatus(tt.current, tt.event)
			if tt.wantErr {
				require.Error(t, err)
				var transitionErr *InvalidTransitionError
				require.ErrorAs(t, err, &transitionErr)
				assert.Equal(t, tt.current, transitionErr.Status)
				assert.Equal(t, tt.event, transitionErr.Event)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplySubmitSetsSubmittedAt(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	req := &PurchaseRequest{Status: RequestStatusDraft}

	err := req.Apply(EventSubmit, TransitionEffects{Now: now})

	require.NoError(t, err)
	assert.Equal(t, RequestStatusSubmitted, req.Status)
	require.NotNil(t, req.SubmittedAt)
	assert.Equal(t, now, *req.SubmittedAt)
	assert.Nil(t, req.ApprovedAt)
	assert.Nil(t, req.ApprovedBy)
	assert.Empty(t, req.RejectionReason)
}

func TestApplyApproveStampsApprover(t *testing.T) {
	now := time.Date(2025, 3, 11, 14, 0, 0, 0, time.UTC)
	approver := uuid.New()
	req := &PurchaseRequest{Status: RequestStatusSubmitted}

	err := req.Apply(EventApprove, TransitionEffects{Now: now, ApproverID: &approver})

	require.NoError(t, err)
	assert.Equal(t, RequestStatusApproved, req.Status)
	require.NotNil(t, req.ApprovedBy)
	assert.Equal(t, approver, *req.ApprovedBy)
	require.NotNil(t, req.ApprovedAt)
	assert.Equal(t, now, *req.ApprovedAt)
}

func TestApplyRejectRecordsReason(t *testing.T) {
	req := &PurchaseRequest{Status: RequestStatusSubmitted}

	err := req.Apply(EventReject, TransitionEffects{Now: time.Now(), Reason: "over budget"})

	require.NoError(t, err)
	assert.Equal(t, RequestStatusRejected, req.Status)
	assert.Equal(t, "over budget", req.RejectionReason)
	assert.Nil(t, req.ApprovedBy)
	assert.Nil(t, req.ApprovedAt)
}

func TestApplyCancelLeavesSideEffectFieldsAlone(t *testing.T) {
	submitted := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	req := &PurchaseRequest{Status: RequestStatusSubmitted, SubmittedAt: &submitted}

	err := req.Apply(EventCancel, TransitionEffects{Now: time.Now()})

	require.NoError(t, err)
	assert.Equal(t, RequestStatusCancelled, req.Status)
	require.NotNil(t, req.SubmittedAt)
	assert.Equal(t, submitted, *req.SubmittedAt)
}

func TestApplyIllegalEventLeavesAggregateUnmodified(t *testing.T) {
	approver := uuid.New()
	req := &PurchaseRequest{Status: RequestStatusDraft}

	err := req.Apply(EventApprove, TransitionEffects{Now: time.Now(), ApproverID: &approver})

	require.Error(t, err)
	assert.Equal(t, RequestStatusDraft, req.Status)
	assert.Nil(t, req.ApprovedBy)
	assert.Nil(t, req.ApprovedAt)
}
