package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"payment-orchestrator/internal/apperr"
	"payment-orchestrator/internal/domain"
	"payment-orchestrator/internal/gateway"
	applog "payment-orchestrator/internal/log"
	"payment-orchestrator/internal/repo"
)

const maxCheckCodeAttempts = 5

type ChargeDocument struct {
	ID      string          `json:"id" validate:"required,max=128"`
	Object  string          `json:"object" validate:"max=64"`
	Service string          `json:"service" validate:"required,max=64"`
	Meta    json.RawMessage `json:"meta,omitempty"`
}

type ChargeRequest struct {
	Gateway     string          `json:"gateway" validate:"required,max=64"`
	Amount      int64           `json:"amount" validate:"gt=0"`
	Currency    string          `json:"currency" validate:"required,len=3,alpha"`
	UserID      string          `json:"user_id" validate:"max=64"`
	RedirectURL string          `json:"redirect_url" validate:"omitempty,url"`
	CancelURL   string          `json:"cancel_url" validate:"omitempty,url"`
	Description string          `json:"description" validate:"max=255"`
	Document    *ChargeDocument `json:"document" validate:"omitempty"`
}

type ChargeOutcome struct {
	OrderID uuid.UUID
	Gateway string
	Data    map[string]any
}

type ChargeService interface {
	Charge(ctx context.Context, requestID string, req ChargeRequest) (*ChargeOutcome, error)
}

type ChargeOption func(*chargeService)

// WithCheckCodeGenerator replaces the random check code source.
func WithCheckCodeGenerator(fn func() string) ChargeOption {
	return func(s *chargeService) { s.newCheckCode = fn }
}

func WithClock(now func() time.Time) ChargeOption {
	return func(s *chargeService) { s.now = now }
}

type chargeService struct {
	resolver     AdapterResolver
	orders       repo.OrderRepo
	audit        Auditor
	logger       *zap.SugaredLogger
	validate     *validator.Validate
	newCheckCode func() string
	now          func() time.Time
}

func NewChargeService(
	resolver AdapterResolver,
	orders repo.OrderRepo,
	audit Auditor,
	logger *zap.SugaredLogger,
	opts ...ChargeOption,
) ChargeService {
	s := &chargeService{
		resolver:     resolver,
		orders:       orders,
		audit:        audit,
		logger:       logger,
		validate:     newValidator(),
		newCheckCode: randomCheckCode,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func randomCheckCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *chargeService) Charge(ctx context.Context, requestID string, req ChargeRequest) (*ChargeOutcome, error) {
	req.Gateway = strings.TrimSpace(req.Gateway)
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	s.audit.Request(ctx, req.Gateway, requestID, req)

	adapter, err := s.resolver.Resolve(ctx, req.Gateway)
	if err != nil {
		if errors.Is(err, gateway.ErrUnknownGateway) || errors.Is(err, gateway.ErrAdapterNotInstantiable) {
			s.audit.RequestError(ctx, req.Gateway, nil, requestID, err.Error(), req)
			return nil, apperr.GatewayErr(err.Error(), err)
		}
		return nil, apperr.Wrap(fmt.Errorf("resolve %s: %w", req.Gateway, err))
	}

	order, err := s.createOrder(ctx, req, adapter.Statuses().New())
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	logger := s.logger.With(applog.OrderID(order.ID), "gateway", req.Gateway, "request_id", requestID)

	res, err := adapter.Charge(ctx, order, gateway.ChargeInput{
		RedirectURL: req.RedirectURL,
		CancelURL:   req.CancelURL,
		Description: req.Description,
	})
	if err != nil {
		msg := chargeFailureMessage(err)
		logger.Warnw("charge failed", "err", err)
		s.audit.RequestError(ctx, req.Gateway, &order.ID, requestID, err.Error(), req)
		return nil, apperr.GatewayErr(msg, err)
	}

	logger.Infow("charge created", "document_id", res.DocumentID)
	return &ChargeOutcome{OrderID: order.ID, Gateway: req.Gateway, Data: res.Payload()}, nil
}

// createOrder persists the order in the adapter's new status before the adapter runs,
// regenerating the check code on collision. A charge that never returns leaves the order
// there without a document, where the lost-order sweep finds it.
func (s *chargeService) createOrder(ctx context.Context, req ChargeRequest, status int) (*domain.PaymentOrder, error) {
	now := s.now()
	order := &domain.PaymentOrder{
		ID:        uuid.New(),
		Type:      domain.OrderPayIn,
		Gateway:   req.Gateway,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Status:    status,
		UserID:    req.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if d := req.Document; d != nil {
		order.Service = d.Service
		order.ServiceRef = d.ID
		raw, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("json.Marshal document: %w", err)
		}
		order.Document = raw
	}

	for attempt := 1; ; attempt++ {
		order.CheckCode = s.newCheckCode()
		err := s.orders.CreateOrder(ctx, order)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, repo.ErrDuplicateCheckCode) || attempt >= maxCheckCodeAttempts {
			return nil, fmt.Errorf("create order: %w", err)
		}
		s.logger.Warnw("check code collision, regenerating", "attempt", attempt)
	}
}

func chargeFailureMessage(err error) string {
	if errors.Is(err, gateway.ErrTimeout) {
		return "Payment provider did not respond in time."
	}
	var pe *gateway.ProviderError
	if errors.As(err, &pe) {
		return "Payment provider rejected the charge: " + pe.Error()
	}
	return err.Error()
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.InvalidErr("The given data was invalid.", nil)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := strings.TrimPrefix(fe.Namespace(), "ChargeRequest.")
		fields[name] = fieldMessage(fe)
	}
	return apperr.InvalidErr("The given data was invalid.", fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	case "alpha":
		return "must contain letters only"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "url":
		return "must be a valid URL"
	default:
		return "is invalid"
	}
}
