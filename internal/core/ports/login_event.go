package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/avcrm/identity/internal/core/domain"
)

// LoginRecorder accepts successful-login events for asynchronous storage.
// Record must not block the login path.
type LoginRecorder interface {
	Record(event domain.LoginEvent)
}

// LoginEventRepository stores the login audit trail.
type LoginEventRepository interface {
	Insert(ctx context.Context, event *domain.LoginEvent) error
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.LoginEvent, error)
}
