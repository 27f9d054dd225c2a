package payments

import (
	"context"
	"encoding/json"
	"io"
	"testing"

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
	"github.com/adityamehra/shopkart-backend/pkg/pagination"
)

type stubOrdersRepo struct {
	orders   map[uuid.UUID]*models.Order
	timeline []models.OrderTimelineEntry
	deleted  []uuid.UUID
}

func newStubOrdersRepo() *stubOrdersRepo {
	return &stubOrdersRepo{orders: make(map[uuid.UUID]*models.Order)}
}

func (s *stubOrdersRepo) add(order *models.Order) *models.Order {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.orders[order.ID] = order
	return order
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubOrdersRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	return s.add(order), nil
}

func (s *stubOrdersRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(s.orders, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if order, ok := s.orders[id]; ok {
		return order, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrdersRepo) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	for _, order := range s.orders {
		if order.OrderNumber == orderNumber {
			return order, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrdersRepo) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	for _, order := range s.orders {
		if order.GatewayOrderID != nil && *order.GatewayOrderID == gatewayOrderID {
			return order, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrdersRepo) List(ctx context.Context, userID *uuid.UUID, params pagination.Params, filters orders.ListFilters) ([]models.Order, int64, error) {
	return nil, 0, nil
}

func (s *stubOrdersRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	order, ok := s.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.apply(order, updates)
	return nil
}

func (s *stubOrdersRepo) UpdateIfPaymentPending(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error) {
	order, ok := s.orders[id]
	if !ok || order.PaymentStatus != enums.PaymentStatusPending {
		return false, nil
	}
	s.apply(order, updates)
	return true, nil
}

func (s *stubOrdersRepo) UpdateApprovalIfPending(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error) {
	order, ok := s.orders[id]
	if !ok || order.ApprovalStatus != enums.ApprovalStatusPending {
		return false, nil
	}
	s.apply(order, updates)
	return true, nil
}

func (s *stubOrdersRepo) AppendTimeline(ctx context.Context, entry *models.OrderTimelineEntry) error {
	s.timeline = append(s.timeline, *entry)
	return nil
}

func (s *stubOrdersRepo) apply(order *models.Order, updates map[string]any) {
	for key, value := range updates {
		switch key {
		case "status":
			order.Status = value.(enums.OrderStatus)
		case "payment_status":
			order.PaymentStatus = value.(enums.PaymentStatus)
		case "gateway_order_id":
			id := value.(string)
			order.GatewayOrderID = &id
		case "payment_session_id":
			id := value.(string)
			order.PaymentSessionID = &id
		case "gateway_payment_id":
			id := value.(string)
			order.GatewayPaymentID = &id
		}
	}
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubUserReader struct {
	user *models.User
}

func (s *stubUserReader) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.user, nil
}

type stubCartAccess struct {
	emptied []uuid.UUID
}

func (s *stubCartAccess) EmptyForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	s.emptied = append(s.emptied, userID)
	return nil
}

type stubCouponAccess struct {
	coupon    *models.Coupon
	confirmed []coupons.RedemptionInput
}

func (s *stubCouponAccess) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	if s.coupon == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}
	return s.coupon, nil
}

func (s *stubCouponAccess) ConfirmRedemption(ctx context.Context, tx *gorm.DB, input coupons.RedemptionInput) error {
	s.confirmed = append(s.confirmed, input)
	return nil
}

type stubGateway struct {
	createErr    error
	created      []cashfree.OrderCreateParams
	getErr       error
	refunds      []cashfree.RefundCreateParams
	refundErr    error
	sessionID    string
	cfOrderID    string
	statusByID   map[string]string
	lastGetOrder string
}

func (s *stubGateway) CreateOrder(ctx context.Context, params cashfree.OrderCreateParams) (*cashfree.Order, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = append(s.created, params)
	return &cashfree.Order{
		CFOrderID:        s.cfOrderID,
		OrderID:          params.OrderID,
		OrderAmount:      params.OrderAmount,
		OrderCurrency:    params.OrderCurrency,
		OrderStatus:      cashfree.OrderStatusActive,
		PaymentSessionID: s.sessionID,
	}, nil
}

func (s *stubGateway) GetOrder(ctx context.Context, orderID string) (*cashfree.Order, error) {
	s.lastGetOrder = orderID
	if s.getErr != nil {
		return nil, s.getErr
	}
	status := cashfree.OrderStatusActive
	if s.statusByID != nil {
		if found, ok := s.statusByID[orderID]; ok {
			status = found
		}
	}
	return &cashfree.Order{OrderID: orderID, OrderStatus: status}, nil
}

func (s *stubGateway) CreateRefund(ctx context.Context, orderID string, params cashfree.RefundCreateParams) (*cashfree.Refund, error) {
	if s.refundErr != nil {
		return nil, s.refundErr
	}
	s.refunds = append(s.refunds, params)
	return &cashfree.Refund{RefundID: params.RefundID, OrderID: orderID, RefundStatus: "SUCCESS"}, nil
}

type fixture struct {
	repo    *stubOrdersRepo
	users   *stubUserReader
	cart    *stubCartAccess
	coupons *stubCouponAccess
	gateway *stubGateway
	service Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo: newStubOrdersRepo(),
		users: &stubUserReader{user: &models.User{
			ID:    uuid.New(),
			Name:  "Asha Rao",
			Email: "asha@example.com",
			Phone: "+919812345678",
		}},
		cart:    &stubCartAccess{},
		coupons: &stubCouponAccess{},
		gateway: &stubGateway{sessionID: "session_abc", cfOrderID: "cf_1001"},
	}
	svc, err := NewService(ServiceParams{
		Repo:       f.repo,
		Tx:         stubTxRunner{},
		Users:      f.users,
		Cart:       f.cart,
		Coupons:    f.coupons,
		Gateway:    f.gateway,
		Calculator: pricing.NewCalculator(config.CheckoutConfig{CODShippingFee: 199, CODAdvancePayment: 300, GatewayMinAmount: 1}),
		Cashfree:   config.CashfreeConfig{Env: "sandbox", ReturnURL: "https://shop.example.com/payment/return"},
		Log:        logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.service = svc
	return f
}

func (f *fixture) addOnlineOrder(total int64) *models.Order {
	return f.repo.add(&models.Order{
		OrderNumber:   "SK-20260828-000042",
		UserID:        f.users.user.ID,
		PaymentMethod: enums.PaymentMethodOnline,
		PaymentStatus: enums.PaymentStatusPending,
		Status:        enums.OrderStatusPending,
		TotalAmount:   decimal.NewFromInt(total),
	})
}

func successEvent(gatewayOrderID, paymentID string) *cashfree.WebhookEvent {
	return &cashfree.WebhookEvent{
		Type: cashfree.EventPaymentSuccess,
		Data: cashfree.WebhookEventData{
			Order:   cashfree.WebhookOrder{OrderID: gatewayOrderID},
			Payment: cashfree.WebhookPayment{CFPaymentID: json.Number(paymentID), PaymentStatus: cashfree.PaymentStatusSuccess},
		},
	}
}

func assertCode(t *testing.T, err error, want pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s", want)
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	if typed.Code() != want {
		t.Fatalf("expected code %s, got %s (%v)", want, typed.Code(), err)
	}
}

func TestCreateSessionStoresGatewayRefs(t *testing.T) {
	f := newFixture(t)
	order := f.addOnlineOrder(5000)

	session, err := f.service.CreateSession(context.Background(), order)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if session.PaymentSessionID != "session_abc" {
		t.Fatalf("unexpected session id %q", session.PaymentSessionID)
	}
	if !session.Amount.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("unexpected amount %s", session.Amount)
	}
	if session.Environment != "sandbox" {
		t.Fatalf("unexpected environment %q", session.Environment)
	}

	stored := f.repo.orders[order.ID]
	if stored.GatewayOrderID == nil || *stored.GatewayOrderID != order.OrderNumber {
		t.Fatalf("gateway order id not stored: %+v", stored.GatewayOrderID)
	}
	if stored.PaymentSessionID == nil || *stored.PaymentSessionID != "session_abc" {
		t.Fatalf("payment session id not stored: %+v", stored.PaymentSessionID)
	}
	if len(f.gateway.created) != 1 || f.gateway.created[0].Customer.CustomerEmail != "asha@example.com" {
		t.Fatalf("unexpected gateway params %+v", f.gateway.created)
	}
}

func TestCreateSessionFloorsGatewayAmount(t *testing.T) {
	f := newFixture(t)
	order := f.addOnlineOrder(0)

	session, err := f.service.CreateSession(context.Background(), order)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if !session.Amount.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected floored amount 1, got %s", session.Amount)
	}
}

func TestCreateSessionRollsBackOnGatewayError(t *testing.T) {
	f := newFixture(t)
	f.gateway.createErr = pkgerrors.New(pkgerrors.CodeDependency, "cashfree unavailable")
	order := f.addOnlineOrder(5000)

	_, err := f.service.CreateSession(context.Background(), order)
	assertCode(t, err, pkgerrors.CodeDependency)

	if len(f.repo.deleted) != 1 || f.repo.deleted[0] != order.ID {
		t.Fatal("tentative order must be removed when the gateway call fails")
	}
}

func TestCreateSessionRejectsCOD(t *testing.T) {
	f := newFixture(t)
	order := f.repo.add(&models.Order{
		UserID:        f.users.user.ID,
		PaymentMethod: enums.PaymentMethodCOD,
		PaymentStatus: enums.PaymentStatusPending,
	})

	_, err := f.service.CreateSession(context.Background(), order)
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestWebhookSuccessConfirmsOnce(t *testing.T) {
	f := newFixture(t)
	order := f.addOnlineOrder(4500)
	gatewayID := order.OrderNumber
	order.GatewayOrderID = &gatewayID
	code := "SAVE10"
	order.CouponCode = &code
	order.CouponDiscount = decimal.NewFromInt(500)
	f.coupons.coupon = &models.Coupon{ID: uuid.New(), Code: code}

	event := successEvent(gatewayID, "9021345")
	if err := f.service.HandleWebhook(context.Background(), event); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}

	stored := f.repo.orders[order.ID]
	if stored.PaymentStatus != enums.PaymentStatusCompleted {
		t.Fatalf("expected payment completed, got %s", stored.PaymentStatus)
	}
	if stored.Status != enums.OrderStatusAwaitingApproval {
		t.Fatalf("expected awaiting_approval, got %s", stored.Status)
	}
	if stored.GatewayPaymentID == nil || *stored.GatewayPaymentID != "9021345" {
		t.Fatalf("gateway payment id not stored: %+v", stored.GatewayPaymentID)
	}
	if len(f.cart.emptied) != 1 {
		t.Fatal("cart must be emptied on payment confirmation")
	}
	if len(f.coupons.confirmed) != 1 || f.coupons.confirmed[0].OrderID != order.ID {
		t.Fatal("coupon redemption must be recorded on payment confirmation")
	}

	// replayed delivery is acknowledged without repeating side effects
	if err := f.service.HandleWebhook(context.Background(), event); err != nil {
		t.Fatalf("replayed HandleWebhook: %v", err)
	}
	if len(f.cart.emptied) != 1 || len(f.coupons.confirmed) != 1 {
		t.Fatal("replayed webhook must not repeat side effects")
	}
}

func TestWebhookFailureCancelsOrder(t *testing.T) {
	f := newFixture(t)
	order := f.addOnlineOrder(4500)
	gatewayID := order.OrderNumber
	order.GatewayOrderID = &gatewayID

	event := &cashfree.WebhookEvent{
		Type: cashfree.EventPaymentFailed,
		Data: cashfree.WebhookEventData{
			Order: cashfree.WebhookOrder{OrderID: gatewayID},
			Payment: cashfree.WebhookPayment{
				CFPaymentID:    json.Number("9021346"),
				PaymentStatus:  cashfree.PaymentStatusFailed,
				PaymentMessage: "insufficient funds",
			},
		},
	}
	if err := f.service.HandleWebhook(context.Background(), event); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}

	stored := f.repo.orders[order.ID]
	if stored.PaymentStatus != enums.PaymentStatusFailed {
		t.Fatalf("expected payment failed, got %s", stored.PaymentStatus)
	}
	if stored.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", stored.Status)
	}
	if len(f.repo.timeline) != 1 || f.repo.timeline[0].Note != "payment failed: insufficient funds" {
		t.Fatalf("unexpected timeline %+v", f.repo.timeline)
	}
}

func TestWebhookUnknownOrderAcknowledged(t *testing.T) {
	f := newFixture(t)
	if err := f.service.HandleWebhook(context.Background(), successEvent("SK-20260828-999999", "1")); err != nil {
		t.Fatalf("unknown order webhook must be acknowledged: %v", err)
	}
}

func TestVerifyStatusReconcilesPaidOrder(t *testing.T) {
	f := newFixture(t)
	order := f.addOnlineOrder(4500)
	gatewayID := order.OrderNumber
	order.GatewayOrderID = &gatewayID
	f.gateway.statusByID = map[string]string{gatewayID: cashfree.OrderStatusPaid}

	updated, err := f.service.VerifyStatus(context.Background(), order.ID, order.UserID, enums.UserRoleCustomer)
	if err != nil {
		t.Fatalf("VerifyStatus: %v", err)
	}
	if updated.PaymentStatus != enums.PaymentStatusCompleted {
		t.Fatalf("expected payment completed, got %s", updated.PaymentStatus)
	}
	if updated.Status != enums.OrderStatusAwaitingApproval {
		t.Fatalf("expected awaiting_approval, got %s", updated.Status)
	}
}

func TestVerifyStatusDegradesOnGatewayError(t *testing.T) {
	f := newFixture(t)
	order := f.addOnlineOrder(4500)
	gatewayID := order.OrderNumber
	order.GatewayOrderID = &gatewayID
	f.gateway.getErr = pkgerrors.New(pkgerrors.CodeDependency, "cashfree unavailable")

	updated, err := f.service.VerifyStatus(context.Background(), order.ID, order.UserID, enums.UserRoleCustomer)
	if err != nil {
		t.Fatalf("VerifyStatus must degrade to local state: %v", err)
	}
	if updated.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("expected pending, got %s", updated.PaymentStatus)
	}
}

func TestVerifyStatusHidesForeignOrders(t *testing.T) {
	f := newFixture(t)
	order := f.addOnlineOrder(4500)

	_, err := f.service.VerifyStatus(context.Background(), order.ID, uuid.New(), enums.UserRoleCustomer)
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestRefund(t *testing.T) {
	f := newFixture(t)
	order := f.addOnlineOrder(4500)
	gatewayID := order.OrderNumber
	order.GatewayOrderID = &gatewayID
	order.PaymentStatus = enums.PaymentStatusCompleted
	order.Status = enums.OrderStatusDelivered

	updated, err := f.service.Refund(context.Background(), order.ID, "damaged in transit")
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if updated.PaymentStatus != enums.PaymentStatusRefunded {
		t.Fatalf("expected payment refunded, got %s", updated.PaymentStatus)
	}
	if updated.Status != enums.OrderStatusRefunded {
		t.Fatalf("expected refunded, got %s", updated.Status)
	}
	if len(f.gateway.refunds) != 1 || f.gateway.refunds[0].RefundID != "RF-"+order.OrderNumber {
		t.Fatalf("unexpected refunds %+v", f.gateway.refunds)
	}
}

func TestRefundRequiresCompletedPayment(t *testing.T) {
	f := newFixture(t)
	order := f.addOnlineOrder(4500)

	_, err := f.service.Refund(context.Background(), order.ID, "")
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestOpenSessionChecksOwnership(t *testing.T) {
	f := newFixture(t)
	order := f.addOnlineOrder(2500)

	_, err := f.service.OpenSession(context.Background(), order.ID, uuid.New())
	assertCode(t, err, pkgerrors.CodeNotFound)

	session, err := f.service.OpenSession(context.Background(), order.ID, order.UserID)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if session.PaymentSessionID != "session_abc" {
		t.Fatalf("expected gateway session id, got %q", session.PaymentSessionID)
	}
}

func TestVerifyByNumberResolvesOrder(t *testing.T) {
	f := newFixture(t)
	order := f.addOnlineOrder(4500)
	gatewayID := order.OrderNumber
	order.GatewayOrderID = &gatewayID
	f.gateway.statusByID = map[string]string{gatewayID: cashfree.OrderStatusPaid}

	updated, err := f.service.VerifyByNumber(context.Background(), order.OrderNumber, order.UserID, enums.UserRoleCustomer)
	if err != nil {
		t.Fatalf("VerifyByNumber: %v", err)
	}
	if updated.PaymentStatus != enums.PaymentStatusCompleted {
		t.Fatalf("expected payment completed, got %s", updated.PaymentStatus)
	}

	_, err = f.service.VerifyByNumber(context.Background(), "SK-20260828-999999", order.UserID, enums.UserRoleCustomer)
	assertCode(t, err, pkgerrors.CodeNotFound)
}
