package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adityamehra/shopkart-backend/pkg/db/models"
	"github.com/adityamehra/shopkart-backend/pkg/enums"
	"github.com/adityamehra/shopkart-backend/pkg/pagination"
)

// Repository defines persistence operations for the order aggregate.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	List(ctx context.Context, userID *uuid.UUID, params pagination.Params, filters ListFilters) ([]models.Order, int64, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateIfPaymentPending(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error)
	AppendTimeline(ctx context.Context, entry *models.OrderTimelineEntry) error
	UpdateApprovalIfPending(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error)
}

// StatusUpdate pairs a status change with its timeline note and actor.
type StatusUpdate struct {
	Status enums.OrderStatus
	Note   string
	Actor  string
}
