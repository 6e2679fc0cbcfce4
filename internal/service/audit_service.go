package service

import (
	"context"
	"time"

	"procurement/internal/repository"
)

type AuditLogResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	Action     string `json:"action"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
	Details    string `json:"details"`
	CreatedAt  string `json:"created_at"`
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, page, limit int) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	auditRepo repository.AuditRepository
}

func NewAuditService(auditRepo repository.AuditRepository) AuditService {
	return &auditService{auditRepo: auditRepo}
}

// GetAuditLogs retrieves paginated audit records with acting users resolved
func (s *auditService) GetAuditLogs(ctx context.Context, page, limit int) ([]AuditLogResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	logs, total, err := s.auditRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]AuditLogResponse, 0, len(logs))
	for _, entry := range logs {
		resp := AuditLogResponse{
			ID:         entry.ID.String(),
			Action:     entry.Action,
			EntityID:   entry.EntityID,
			EntityName: entry.EntityName,
			Details:    entry.Details,
			CreatedAt:  entry.CreatedAt.Format(time.RFC3339),
		}
		if entry.UserID != nil {
			resp.UserID = entry.UserID.String()
		}
		if entry.User != nil {
			resp.Username = entry.User.Username
		}
		responses = append(responses, resp)
	}

	return responses, total, nil
}
