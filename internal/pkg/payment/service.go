package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/luminapay/schoolpay/app/models"
	"github.com/luminapay/schoolpay/app/repository"
	"github.com/luminapay/schoolpay/internal/pkg/apperr"
	"github.com/luminapay/schoolpay/internal/pkg/config"
	"github.com/luminapay/schoolpay/internal/pkg/gateway"
	"github.com/luminapay/schoolpay/internal/pkg/security"
	"github.com/luminapay/schoolpay/internal/pkg/validate"
)

const (
	MessageInitiated        = "Payment initiated"
	MessageInitiatedSuccess = "Payment initiated successfully"
	MessageInitiationFailed = "Payment initiation failed"
)

// Gateway opens collect requests at the payment provider.
type Gateway interface {
	CreateCollectRequest(ctx context.Context, in gateway.CollectRequest) (*gateway.CollectResponse, error)
}

// Settings carries the gateway credentials used to sign collect requests.
type Settings struct {
	SchoolID    string
	PGKey       string
	TokenSecret string
	TokenTTL    time.Duration
	Timeout     time.Duration
}

// SettingsFromConfig extracts the payment settings.
func SettingsFromConfig(cfg config.Config) Settings {
	return Settings{
		SchoolID:    cfg.Gateway.SchoolID,
		PGKey:       cfg.Gateway.PGKey,
		TokenSecret: cfg.Gateway.TokenSecret,
		TokenTTL:    cfg.Gateway.TokenTTL,
		Timeout:     cfg.Gateway.Timeout,
	}
}

// CreateInput is the body of a create-payment request.
type CreateInput struct {
	SchoolID      string  `json:"school_id" validate:"required,max=64"`
	TrusteeID     string  `json:"trustee_id" validate:"required,max=64"`
	StudentName   string  `json:"student_name" validate:"required,max=150"`
	StudentID     string  `json:"student_id" validate:"required,max=64"`
	StudentEmail  string  `json:"student_email" validate:"required,email,max=200"`
	GatewayName   string  `json:"gateway_name" validate:"required,max=100"`
	OrderAmount   float64 `json:"order_amount" validate:"gt=0"`
	CustomOrderID string  `json:"custom_order_id,omitempty" validate:"omitempty,max=191"`
}

// CreateResult is returned after the gateway accepted the collect request.
type CreateResult struct {
	Success    bool   `json:"success"`
	OrderID    string `json:"order_id"`
	PaymentURL string `json:"payment_url"`
	Message    string `json:"message"`
}

// Service creates payment orders and hands them to the gateway.
type Service struct {
	orders   repository.OrderRepository
	statuses repository.OrderStatusRepository
	gateway  Gateway
	settings Settings
	now      func() time.Time
	log      *logrus.Entry
}

// NewService creates a payment service.
func NewService(orders repository.OrderRepository, statuses repository.OrderStatusRepository, gw Gateway, settings Settings) *Service {
	if settings.TokenTTL <= 0 {
		settings.TokenTTL = time.Hour
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 15 * time.Second
	}
	return &Service{
		orders:   orders,
		statuses: statuses,
		gateway:  gw,
		settings: settings,
		now:      time.Now,
		log:      logrus.WithField("component", "payment"),
	}
}

// Create persists the order, signs the gateway token and requests a payment
// URL. When the gateway fails the order is kept with a failed status.
func (s *Service) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	in.normalize()
	if err := validate.Check(in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if in.CustomOrderID == "" {
		in.CustomOrderID = models.GenerateCustomOrderID(now)
	}

	order := &models.Order{
		SchoolID:  in.SchoolID,
		TrusteeID: in.TrusteeID,
		StudentInfo: models.StudentInfo{
			Name:  in.StudentName,
			ID:    in.StudentID,
			Email: in.StudentEmail,
		},
		GatewayName:   in.GatewayName,
		CustomOrderID: in.CustomOrderID,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Validation("custom_order_id already exists", apperr.WithFields(map[string]string{
				"custom_order_id": "custom_order_id already exists",
			}))
		}
		return nil, apperr.Persistence(err, "failed to create order")
	}

	resp, err := s.requestCollect(ctx, order, in.OrderAmount)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"order_id": order.CustomOrderID,
			"gateway":  order.GatewayName,
		}).WithError(err).Warn("payment initiation failed")

		if serr := s.statuses.Create(ctx, &models.OrderStatus{
			CollectID:      order.ID,
			OrderAmount:    in.OrderAmount,
			Status:         models.PaymentStatusFailed,
			PaymentMessage: MessageInitiationFailed,
			ErrorMessage:   err.Error(),
			PaymentTime:    now,
		}); serr != nil {
			s.log.WithField("order_id", order.CustomOrderID).WithError(serr).Error("failed to record failed payment status")
		}
		return nil, apperr.Upstream(err, MessageInitiationFailed)
	}

	if err := s.statuses.Create(ctx, &models.OrderStatus{
		CollectID:         order.ID,
		OrderAmount:       in.OrderAmount,
		TransactionAmount: 0,
		Status:            models.PaymentStatusPending,
		PaymentMessage:    MessageInitiated,
		PaymentTime:       now,
	}); err != nil {
		return nil, apperr.Persistence(err, "failed to create order status")
	}

	s.log.WithFields(logrus.Fields{
		"order_id": order.CustomOrderID,
		"school":   order.SchoolID,
		"amount":   in.OrderAmount,
	}).Info("payment initiated")

	return &CreateResult{
		Success:    true,
		OrderID:    order.CustomOrderID,
		PaymentURL: resp.PaymentURL,
		Message:    MessageInitiatedSuccess,
	}, nil
}

func (s *Service) requestCollect(ctx context.Context, order *models.Order, amount float64) (*gateway.CollectResponse, error) {
	schoolID := s.settings.SchoolID
	if schoolID == "" {
		schoolID = order.SchoolID
	}

	token, err := security.SignGatewayToken(security.GatewayClaims{
		SchoolID:    schoolID,
		PGKey:       s.settings.PGKey,
		OrderID:     order.CustomOrderID,
		OrderAmount: amount,
		StudentInfo: security.GatewayStudent{
			Name:  order.StudentInfo.Name,
			ID:    order.StudentInfo.ID,
			Email: order.StudentInfo.Email,
		},
		Gateway: order.GatewayName,
	}, s.settings.TokenTTL, s.settings.TokenSecret)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	return s.gateway.CreateCollectRequest(callCtx, gateway.CollectRequest{
		Token:   token,
		OrderID: order.CustomOrderID,
		Amount:  amount,
		Gateway: order.GatewayName,
	})
}

func (in *CreateInput) normalize() {
	in.SchoolID = strings.TrimSpace(in.SchoolID)
	in.TrusteeID = strings.TrimSpace(in.TrusteeID)
	in.StudentName = strings.TrimSpace(in.StudentName)
	in.StudentID = strings.TrimSpace(in.StudentID)
	in.StudentEmail = strings.TrimSpace(in.StudentEmail)
	in.GatewayName = strings.TrimSpace(in.GatewayName)
	in.CustomOrderID = strings.TrimSpace(in.CustomOrderID)
}
