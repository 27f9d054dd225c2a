package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/adityamehra/shopkart-backend/internal/coupons"
	"github.com/adityamehra/shopkart-backend/internal/pricing"
	"github.com/adityamehra/shopkart-backend/internal/products"
	"github.com/adityamehra/shopkart-backend/pkg/db/models"
	"github.com/adityamehra/shopkart-backend/pkg/enums"
	pkgerrors "github.com/adityamehra/shopkart-backend/pkg/errors"
	"github.com/adityamehra/shopkart-backend/pkg/pagination"
)

const (
	actorUser    = "user"
	actorAdmin   = "admin"
	actorGateway = "gateway"

	orderNumberAttempts = 3
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartAccess interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	EmptyForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

type couponAccess interface {
	ResolveForUser(ctx context.Context, code string, userID uuid.UUID) (*models.Coupon, error)
	ConfirmRedemption(ctx context.Context, tx *gorm.DB, input coupons.RedemptionInput) error
}

type catalogAccess interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	DecrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, size string, qty int) error
}

// Service defines order lifecycle operations.
type Service interface {
	Checkout(ctx context.Context, input CheckoutInput) (*models.Order, error)
	Get(ctx context.Context, orderID, requesterID uuid.UUID, role enums.UserRole) (*models.Order, error)
	List(ctx context.Context, userID *uuid.UUID, params pagination.Params, filters ListFilters) ([]Summary, pagination.Meta, error)
	Approve(ctx context.Context, orderID, adminID uuid.UUID, remarks string) (*models.Order, error)
	Reject(ctx context.Context, orderID, adminID uuid.UUID, remarks string) (*models.Order, error)
	Cancel(ctx context.Context, orderID, requesterID uuid.UUID, role enums.UserRole) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error)
	SetShipping(ctx context.Context, orderID uuid.UUID, input ShippingInput) (*models.Order, error)
	MarkDelivered(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// ServiceParams bundles the dependencies required to build an order service.
type ServiceParams struct {
	Repo       Repository
	Tx         txRunner
	Cart       cartAccess
	Coupons    couponAccess
	Catalog    catalogAccess
	Calculator *pricing.Calculator
}

type service struct {
	repo    Repository
	tx      txRunner
	cart    cartAccess
	coupons couponAccess
	catalog catalogAccess
	calc    *pricing.Calculator
	now     func() time.Time
}

// NewService builds an order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Cart == nil {
		return nil, fmt.Errorf("cart access required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupon access required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog access required")
	}
	if params.Calculator == nil {
		return nil, fmt.Errorf("pricing calculator required")
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		cart:    params.Cart,
		coupons: params.Coupons,
		catalog: params.Catalog,
		calc:    params.Calculator,
		now:     time.Now,
	}, nil
}

// Checkout creates an order from the caller's cart. Online orders start
// pending; the cart and coupon are settled when payment is confirmed. COD
// orders have no payment confirmation step, so they go straight to
// awaiting_approval and settle the cart and coupon at creation.
func (s *service) Checkout(ctx context.Context, input CheckoutInput) (*models.Order, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method must be online or cod")
	}
	if field := input.Address.Validate(); field != "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("address %s is required", field))
	}

	cart, err := s.cart.Get(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	items, subtotal, err := s.snapshotItems(ctx, cart)
	if err != nil {
		return nil, err
	}

	var coupon *models.Coupon
	if strings.TrimSpace(input.CouponCode) != "" {
		coupon, err = s.coupons.ResolveForUser(ctx, input.CouponCode, input.UserID)
		if err != nil {
			return nil, err
		}
	}

	quote, err := s.calc.Quote(subtotal, coupon, input.PaymentMethod)
	if err != nil {
		return nil, err
	}

	status := enums.OrderStatusPending
	if input.PaymentMethod == enums.PaymentMethodCOD {
		status = enums.OrderStatusAwaitingApproval
	}

	order := &models.Order{
		UserID:         input.UserID,
		Items:          items,
		Address:        input.Address.Normalized(),
		PaymentMethod:  input.PaymentMethod,
		Subtotal:       quote.Subtotal,
		Discount:       quote.Discount,
		ShippingFee:    quote.ShippingFee,
		AdvancePayment: quote.AdvancePayment,
		TotalAmount:    quote.TotalAmount,
		CouponDiscount: quote.CouponDiscount,
		PaymentStatus:  enums.PaymentStatusPending,
		Status:         status,
		ApprovalStatus: enums.ApprovalStatusPending,
	}
	if coupon != nil {
		code := coupon.Code
		order.CouponCode = &code
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if err := s.createWithFreshNumber(ctx, repo, order); err != nil {
			return err
		}

		entry := &models.OrderTimelineEntry{
			OrderID: order.ID,
			Status:  status,
			Note:    "order placed",
			Actor:   actorUser,
		}
		if err := repo.AppendTimeline(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append timeline")
		}

		if input.PaymentMethod == enums.PaymentMethodCOD {
			if coupon != nil {
				err := s.coupons.ConfirmRedemption(ctx, tx, coupons.RedemptionInput{
					CouponID:       coupon.ID,
					UserID:         input.UserID,
					OrderID:        order.ID,
					DiscountAmount: quote.CouponDiscount,
					OrderAmount:    quote.TotalAmount,
				})
				if err != nil {
					return err
				}
			}
			if err := s.cart.EmptyForUser(ctx, tx, input.UserID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.reload(ctx, order.ID)
}

func (s *service) snapshotItems(ctx context.Context, cart *models.Cart) ([]models.OrderItem, decimal.Decimal, error) {
	items := make([]models.OrderItem, 0, len(cart.Items))
	subtotal := decimal.Zero

	for _, line := range cart.Items {
		product, err := s.catalog.Get(ctx, line.ProductID)
		if err != nil {
			return nil, decimal.Zero, err
		}
		if !product.Active {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("%s is no longer available", product.Name))
		}
		if available := products.AvailableForSize(product, line.Size); line.Quantity > available {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("insufficient stock for %s size %s", product.Name, line.Size))
		}

		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		var image *string
		if len(product.Images) > 0 {
			first := product.Images[0]
			image = &first
		}
		var color *string
		for _, v := range product.Variants {
			if strings.EqualFold(v.Size, line.Size) {
				color = v.Color
				break
			}
		}

		items = append(items, models.OrderItem{
			ProductID:  product.ID,
			Name:       product.Name,
			Image:      image,
			Size:       line.Size,
			Color:      color,
			Quantity:   line.Quantity,
			UnitPrice:  product.Price,
			TotalPrice: lineTotal,
		})
		subtotal = subtotal.Add(lineTotal)
	}
	return items, subtotal, nil
}

func (s *service) createWithFreshNumber(ctx context.Context, repo Repository, order *models.Order) error {
	var lastErr error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		order.OrderNumber = NewOrderNumber(s.now())
		if _, err := repo.Create(ctx, order); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				lastErr = err
				continue
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}
		return nil
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, lastErr, "allocate order number")
}

func (s *service) Get(ctx context.Context, orderID, requesterID uuid.UUID, role enums.UserRole) (*models.Order, error) {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if role != enums.UserRoleAdmin && order.UserID != requesterID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, userID *uuid.UUID, params pagination.Params, filters ListFilters) ([]Summary, pagination.Meta, error) {
	rows, total, err := s.repo.List(ctx, userID, params, filters)
	if err != nil {
		return nil, pagination.Meta{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}

	summaries := make([]Summary, 0, len(rows))
	for _, order := range rows {
		count := 0
		for _, item := range order.Items {
			count += item.Quantity
		}
		summaries = append(summaries, Summary{
			ID:            order.ID,
			OrderNumber:   order.OrderNumber,
			CreatedAt:     order.CreatedAt,
			ItemCount:     count,
			TotalAmount:   order.TotalAmount,
			PaymentMethod: order.PaymentMethod,
			PaymentStatus: order.PaymentStatus,
			Status:        order.Status,
			Approval:      order.ApprovalStatus,
		})
	}
	return summaries, pagination.MetaFor(params, total), nil
}

// Approve confirms a paid order and commits inventory. The approval
// sub-record flips pending to approved exactly once; a second call conflicts.
func (s *service) Approve(ctx context.Context, orderID, adminID uuid.UUID, remarks string) (*models.Order, error) {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusAwaitingApproval {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order in status %s cannot be approved", order.Status))
	}

	now := s.now()
	updates := map[string]any{
		"approval_status": enums.ApprovalStatusApproved,
		"approved_by":     adminID,
		"approval_at":     now,
		"status":          enums.OrderStatusConfirmed,
	}
	if strings.TrimSpace(remarks) != "" {
		updates["approval_remarks"] = strings.TrimSpace(remarks)
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ok, err := repo.UpdateApprovalIfPending(ctx, orderID, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "approve order")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "order approval already processed")
		}

		for _, item := range order.Items {
			if err := s.catalog.DecrementStock(ctx, tx, item.ProductID, item.Size, item.Quantity); err != nil {
				return err
			}
		}

		return repo.AppendTimeline(ctx, &models.OrderTimelineEntry{
			OrderID: orderID,
			Status:  enums.OrderStatusConfirmed,
			Note:    "order approved",
			Actor:   actorAdmin,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, orderID)
}

// Reject declines a pending approval. Remarks are mandatory so the customer
// always sees a reason.
func (s *service) Reject(ctx context.Context, orderID, adminID uuid.UUID, remarks string) (*models.Order, error) {
	remarks = strings.TrimSpace(remarks)
	if remarks == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection remarks are required")
	}

	if _, err := s.findOrder(ctx, orderID); err != nil {
		return nil, err
	}

	now := s.now()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ok, err := repo.UpdateApprovalIfPending(ctx, orderID, map[string]any{
			"approval_status":  enums.ApprovalStatusRejected,
			"approved_by":      adminID,
			"approval_at":      now,
			"approval_remarks": remarks,
			"status":           enums.OrderStatusRejected,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reject order")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "order approval already processed")
		}

		return repo.AppendTimeline(ctx, &models.OrderTimelineEntry{
			OrderID: orderID,
			Status:  enums.OrderStatusRejected,
			Note:    "order rejected: " + remarks,
			Actor:   actorAdmin,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, orderID)
}

// Cancel stops an ongoing order. Customers may only cancel their own orders
// and only from the awaiting_approval/confirmed states.
func (s *service) Cancel(ctx context.Context, orderID, requesterID uuid.UUID, role enums.UserRole) (*models.Order, error) {
	order, err := s.Get(ctx, orderID, requesterID, role)
	if err != nil {
		return nil, err
	}
	if !cancellableStatuses[order.Status] {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order in status %s cannot be cancelled", order.Status))
	}

	actor := actorUser
	if role == enums.UserRoleAdmin {
		actor = actorAdmin
	}
	now := s.now()

	err = s.applyTransition(ctx, orderID, map[string]any{
		"status":       enums.OrderStatusCancelled,
		"cancelled_at": now,
	}, StatusUpdate{
		Status: enums.OrderStatusCancelled,
		Note:   "order cancelled",
		Actor:  actor,
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, orderID)
}

// UpdateStatus applies an admin-driven transition, validated against the
// lifecycle edge set.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(order.Status, status) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move order from %s to %s", order.Status, status))
	}

	err = s.applyTransition(ctx, orderID, map[string]any{"status": status}, StatusUpdate{
		Status: status,
		Note:   "status updated to " + status.String(),
		Actor:  actorAdmin,
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, orderID)
}

// SetShipping stores tracking details and marks the order shipped.
func (s *service) SetShipping(ctx context.Context, orderID uuid.UUID, input ShippingInput) (*models.Order, error) {
	tracking := strings.TrimSpace(input.TrackingNumber)
	if tracking == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking number is required")
	}
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusConfirmed && order.Status != enums.OrderStatusProcessing {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order in status %s cannot be shipped", order.Status))
	}

	updates := map[string]any{
		"status":          enums.OrderStatusShipped,
		"tracking_number": tracking,
	}
	if carrier := strings.TrimSpace(input.Carrier); carrier != "" {
		updates["carrier"] = carrier
	}

	err = s.applyTransition(ctx, orderID, updates, StatusUpdate{
		Status: enums.OrderStatusShipped,
		Note:   "shipped with tracking " + tracking,
		Actor:  actorAdmin,
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, orderID)
}

// MarkDelivered completes the order. Payment status is forced to completed so
// a delivered COD order never reads as unpaid.
func (s *service) MarkDelivered(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order in status %s cannot be delivered", order.Status))
	}

	now := s.now()
	err = s.applyTransition(ctx, orderID, map[string]any{
		"status":         enums.OrderStatusDelivered,
		"payment_status": enums.PaymentStatusCompleted,
		"delivered_at":   now,
	}, StatusUpdate{
		Status: enums.OrderStatusDelivered,
		Note:   "order delivered",
		Actor:  actorAdmin,
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, orderID)
}

// applyTransition updates order fields and appends the timeline entry in one
// transaction so the audit trail never diverges from the state.
func (s *service) applyTransition(ctx context.Context, orderID uuid.UUID, updates map[string]any, change StatusUpdate) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Update(ctx, orderID, updates); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order")
		}
		return repo.AppendTimeline(ctx, &models.OrderTimelineEntry{
			OrderID: orderID,
			Status:  change.Status,
			Note:    change.Note,
			Actor:   change.Actor,
		})
	})
}

func (s *service) findOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find order")
	}
	return order, nil
}

func (s *service) reload(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
	}
	return order, nil
}
