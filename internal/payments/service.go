package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/adityamehra/shopkart-backend/internal/coupons"
	"github.com/adityamehra/shopkart-backend/internal/orders"
	"github.com/adityamehra/shopkart-backend/internal/pricing"
	"github.com/adityamehra/shopkart-backend/pkg/cashfree"
	"github.com/adityamehra/shopkart-backend/pkg/config"
	"github.com/adityamehra/shopkart-backend/pkg/db/models"
	"github.com/adityamehra/shopkart-backend/pkg/enums"
	pkgerrors "github.com/adityamehra/shopkart-backend/pkg/errors"
	"github.com/adityamehra/shopkart-backend/pkg/logger"
)

const actorGateway = "gateway"

type gateway interface {
	CreateOrder(ctx context.Context, params cashfree.OrderCreateParams) (*cashfree.Order, error)
	GetOrder(ctx context.Context, orderID string) (*cashfree.Order, error)
	CreateRefund(ctx context.Context, orderID string, params cashfree.RefundCreateParams) (*cashfree.Refund, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartAccess interface {
	EmptyForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

type couponAccess interface {
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	ConfirmRedemption(ctx context.Context, tx *gorm.DB, input coupons.RedemptionInput) error
}

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Session is the client-facing handle for completing an online payment.
type Session struct {
	OrderID          uuid.UUID       `json:"order_id"`
	OrderNumber      string          `json:"order_number"`
	GatewayOrderID   string          `json:"gateway_order_id"`
	PaymentSessionID string          `json:"payment_session_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Environment      string          `json:"environment"`
}

// Service defines payment session, reconciliation and refund operations.
type Service interface {
	CreateSession(ctx context.Context, order *models.Order) (*Session, error)
	OpenSession(ctx context.Context, orderID, requesterID uuid.UUID) (*Session, error)
	HandleWebhook(ctx context.Context, event *cashfree.WebhookEvent) error
	VerifyStatus(ctx context.Context, orderID, requesterID uuid.UUID, role enums.UserRole) (*models.Order, error)
	VerifyByNumber(ctx context.Context, orderNumber string, requesterID uuid.UUID, role enums.UserRole) (*models.Order, error)
	Refund(ctx context.Context, orderID uuid.UUID, note string) (*models.Order, error)
}

// ServiceParams bundles the dependencies required to build a payment service.
type ServiceParams struct {
	Repo       orders.Repository
	Tx         txRunner
	Users      userReader
	Cart       cartAccess
	Coupons    couponAccess
	Gateway    gateway
	Calculator *pricing.Calculator
	Cashfree   config.CashfreeConfig
	Log        *logger.Logger
}

type service struct {
	repo    orders.Repository
	tx      txRunner
	users   userReader
	cart    cartAccess
	coupons couponAccess
	gateway gateway
	calc    *pricing.Calculator
	cfg     config.CashfreeConfig
	log     *logger.Logger
	now     func() time.Time
}

// NewService builds a payment service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user reader required")
	}
	if params.Cart == nil {
		return nil, fmt.Errorf("cart access required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupon access required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Calculator == nil {
		return nil, fmt.Errorf("pricing calculator required")
	}
	if params.Log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		users:   params.Users,
		cart:    params.Cart,
		coupons: params.Coupons,
		gateway: params.Gateway,
		calc:    params.Calculator,
		cfg:     params.Cashfree,
		log:     params.Log,
		now:     time.Now,
	}, nil
}

// CreateSession registers the order with the gateway and returns the payment
// session the client completes. If the gateway call fails the tentative order
// is removed so a retry starts from a clean cart.
func (s *service) CreateSession(ctx context.Context, order *models.Order) (*Session, error) {
	if order.PaymentMethod != enums.PaymentMethodOnline {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment session requires an online order")
	}
	if order.PaymentStatus != enums.PaymentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order payment is not pending")
	}

	user, err := s.users.FindByID(ctx, order.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load customer")
	}

	amount := s.calc.GatewayAmount(order.TotalAmount)
	params := cashfree.OrderCreateParams{
		OrderID:       order.OrderNumber,
		OrderAmount:   amount.InexactFloat64(),
		OrderCurrency: "INR",
		Customer: cashfree.CustomerDetails{
			CustomerID:    user.ID.String(),
			CustomerName:  user.Name,
			CustomerEmail: user.Email,
			CustomerPhone: user.Phone,
		},
		OrderNote: "order " + order.OrderNumber,
	}
	if s.cfg.ReturnURL != "" {
		params.OrderMeta = &cashfree.OrderMeta{ReturnURL: s.cfg.ReturnURL}
	}

	gwOrder, err := s.gateway.CreateOrder(ctx, params)
	if err != nil {
		if delErr := s.repo.Delete(ctx, order.ID); delErr != nil {
			s.log.Error(ctx, "rollback of unpaid order failed", delErr)
		}
		return nil, err
	}

	err = s.repo.Update(ctx, order.ID, map[string]any{
		"gateway_order_id":   gwOrder.OrderID,
		"payment_session_id": gwOrder.PaymentSessionID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store gateway session")
	}

	return &Session{
		OrderID:          order.ID,
		OrderNumber:      order.OrderNumber,
		GatewayOrderID:   gwOrder.OrderID,
		PaymentSessionID: gwOrder.PaymentSessionID,
		Amount:           amount,
		Currency:         "INR",
		Environment:      s.cfg.Environment(),
	}, nil
}

// OpenSession loads a pending online order owned by the requester and opens
// a fresh gateway session for it. Used when the client abandoned the hosted
// payment page and wants to pay again.
func (s *service) OpenSession(ctx context.Context, orderID, requesterID uuid.UUID) (*Session, error) {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != requesterID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return s.CreateSession(ctx, order)
}

// HandleWebhook applies one gateway notification. Unknown orders and replayed
// events are acknowledged without error so the gateway stops retrying.
func (s *service) HandleWebhook(ctx context.Context, event *cashfree.WebhookEvent) error {
	order, err := s.repo.FindByGatewayOrderID(ctx, event.Data.Order.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn(s.log.WithField(ctx, "gateway_order_id", event.Data.Order.OrderID),
				"webhook for unknown order acknowledged")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find order for webhook")
	}

	paymentID := event.Data.Payment.CFPaymentID.String()
	if order.GatewayPaymentID != nil && *order.GatewayPaymentID == paymentID {
		return nil
	}

	switch event.Type {
	case cashfree.EventPaymentSuccess:
		return s.confirmPayment(ctx, order, paymentID)
	case cashfree.EventPaymentFailed, cashfree.EventPaymentUserDropped:
		reason := event.Data.Payment.PaymentMessage
		if reason == "" {
			reason = event.Data.Payment.PaymentStatus
		}
		return s.failPayment(ctx, order, paymentID, reason)
	default:
		s.log.Info(s.log.WithField(ctx, "event_type", event.Type), "ignoring unhandled webhook event")
		return nil
	}
}

// VerifyStatus reconciles an order's payment with the gateway. Gateway
// outages degrade to the locally known state instead of failing the call.
func (s *service) VerifyStatus(ctx context.Context, orderID, requesterID uuid.UUID, role enums.UserRole) (*models.Order, error) {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if role != enums.UserRoleAdmin && order.UserID != requesterID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.PaymentMethod != enums.PaymentMethodOnline ||
		order.PaymentStatus != enums.PaymentStatusPending ||
		order.GatewayOrderID == nil {
		return order, nil
	}

	gwOrder, err := s.gateway.GetOrder(ctx, *order.GatewayOrderID)
	if err != nil {
		s.log.Warn(s.log.WithOrderNumber(ctx, order.OrderNumber),
			"gateway status check failed, reporting local state")
		return order, nil
	}

	switch gwOrder.OrderStatus {
	case cashfree.OrderStatusPaid:
		if err := s.confirmPayment(ctx, order, ""); err != nil {
			return nil, err
		}
	case cashfree.OrderStatusExpired, cashfree.OrderStatusTerminated:
		if err := s.failPayment(ctx, order, "", "gateway order "+gwOrder.OrderStatus); err != nil {
			return nil, err
		}
	default:
		return order, nil
	}
	return s.findOrder(ctx, orderID)
}

// VerifyByNumber resolves an order by its human-readable number and runs the
// same reconciliation as VerifyStatus. This backs the redirect-landing poll
// where the client only knows the order number.
func (s *service) VerifyByNumber(ctx context.Context, orderNumber string, requesterID uuid.UUID, role enums.UserRole) (*models.Order, error) {
	order, err := s.repo.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find order")
	}
	return s.VerifyStatus(ctx, order.ID, requesterID, role)
}

// Refund returns the captured amount for a completed payment and marks the
// order refunded.
func (s *service) Refund(ctx context.Context, orderID uuid.UUID, note string) (*models.Order, error) {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != enums.PaymentMethodOnline {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "only online payments can be refunded through the gateway")
	}
	if order.PaymentStatus != enums.PaymentStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only completed payments can be refunded")
	}
	if order.GatewayOrderID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no gateway reference")
	}

	_, err = s.gateway.CreateRefund(ctx, *order.GatewayOrderID, cashfree.RefundCreateParams{
		RefundID:     "RF-" + order.OrderNumber,
		RefundAmount: s.calc.GatewayAmount(order.TotalAmount).InexactFloat64(),
		RefundNote:   note,
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		updates := map[string]any{
			"payment_status": enums.PaymentStatusRefunded,
			"refunded_at":    now,
		}
		if orders.CanTransition(order.Status, enums.OrderStatusRefunded) {
			updates["status"] = enums.OrderStatusRefunded
		}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order refunded")
		}
		return repo.AppendTimeline(ctx, &models.OrderTimelineEntry{
			OrderID: order.ID,
			Status:  enums.OrderStatusRefunded,
			Note:    "refund issued",
			Actor:   "admin",
		})
	})
	if err != nil {
		return nil, err
	}
	return s.findOrder(ctx, orderID)
}

// confirmPayment settles an online payment exactly once. The conditional
// update on payment_status='pending' makes the webhook and poll paths
// mutually exclusive.
func (s *service) confirmPayment(ctx context.Context, order *models.Order, paymentID string) error {
	updates := map[string]any{
		"payment_status": enums.PaymentStatusCompleted,
	}
	if paymentID != "" {
		updates["gateway_payment_id"] = paymentID
	}
	if order.Status == enums.OrderStatusPending {
		updates["status"] = enums.OrderStatusAwaitingApproval
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ok, err := repo.UpdateIfPaymentPending(ctx, order.ID, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "confirm payment")
		}
		if !ok {
			return nil
		}

		err = repo.AppendTimeline(ctx, &models.OrderTimelineEntry{
			OrderID: order.ID,
			Status:  enums.OrderStatusAwaitingApproval,
			Note:    "payment completed",
			Actor:   actorGateway,
		})
		if err != nil {
			return err
		}

		if order.CouponCode != nil {
			if err := s.settleCoupon(ctx, tx, order); err != nil {
				return err
			}
		}
		return s.cart.EmptyForUser(ctx, tx, order.UserID)
	})
}

// settleCoupon records the redemption reserved at checkout. A usage-limit
// conflict at this point means the payment is already captured, so the
// conflict is logged rather than failing the confirmation.
func (s *service) settleCoupon(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	coupon, err := s.coupons.FindByCode(ctx, *order.CouponCode)
	if err != nil {
		s.log.Error(s.log.WithOrderNumber(ctx, order.OrderNumber), "coupon lookup at settlement failed", err)
		return nil
	}
	err = s.coupons.ConfirmRedemption(ctx, tx, coupons.RedemptionInput{
		CouponID:       coupon.ID,
		UserID:         order.UserID,
		OrderID:        order.ID,
		DiscountAmount: order.CouponDiscount,
		OrderAmount:    order.TotalAmount,
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
			s.log.Warn(s.log.WithOrderNumber(ctx, order.OrderNumber),
				"coupon limit exhausted after payment capture")
			return nil
		}
		return err
	}
	return nil
}

func (s *service) failPayment(ctx context.Context, order *models.Order, paymentID, reason string) error {
	updates := map[string]any{
		"payment_status": enums.PaymentStatusFailed,
		"status":         enums.OrderStatusCancelled,
		"cancelled_at":   s.now(),
	}
	if paymentID != "" {
		updates["gateway_payment_id"] = paymentID
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ok, err := repo.UpdateIfPaymentPending(ctx, order.ID, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fail payment")
		}
		if !ok {
			return nil
		}

		note := "payment failed"
		if reason != "" {
			note = "payment failed: " + reason
		}
		return repo.AppendTimeline(ctx, &models.OrderTimelineEntry{
			OrderID: order.ID,
			Status:  enums.OrderStatusCancelled,
			Note:    note,
			Actor:   actorGateway,
		})
	})
}

func (s *service) findOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find order")
	}
	return order, nil
}
