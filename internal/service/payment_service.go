package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

type PaymentService struct {
	tx       repository.TxRunner
	orders   repository.OrderRepository
	payments repository.PaymentRepository
	outbox   repository.OutboxRepository
	secret   []byte
	now      func() time.Time
	newID    func(domain.PaymentProvider) string
}

func NewPaymentService(tx repository.TxRunner, orders repository.OrderRepository, payments repository.PaymentRepository, outbox repository.OutboxRepository, secret []byte) *PaymentService {
	return &PaymentService{
		tx:       tx,
		orders:   orders,
		payments: payments,
		outbox:   outbox,
		secret:   secret,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    providerPaymentID,
	}
}

type InitiatePaymentInput struct {
	Provider domain.PaymentProvider
	Currency string
}

type VerifyPaymentInput struct {
	ProviderPaymentID string
	ProviderOrderID   string
	Signature         string
}

// InitiatePayment opens the single payment of an order. A FAILED payment is
// reset to PENDING under a new provider id; any other existing payment conflicts.
func (s *PaymentService) InitiatePayment(ctx context.Context, userID, orderID primitive.ObjectID, in InitiatePaymentInput) (*domain.Payment, error) {
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	var payment *domain.Payment
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetForUser(ctx, orderID, userID)
		if err != nil {
			return notFound(err, "order not found")
		}
		if order.PaymentStatus == domain.PaymentStatusSuccess {
			return domain.Conflict("order is already paid")
		}
		if order.OrderStatus == domain.OrderStatusCancelled {
			return domain.Conflict("order is cancelled")
		}
		if !in.Provider.IsValid() {
			return domain.InvalidInput("unsupported payment provider %q", in.Provider)
		}
		if !currencyPattern.MatchString(currency) {
			return domain.InvalidInput("currency must be a 3-letter ISO code")
		}

		existing, err := s.payments.GetByOrder(ctx, orderID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			payment = &domain.Payment{
				User:              userID,
				Order:             orderID,
				Provider:          in.Provider,
				Amount:            order.TotalAmount,
				Currency:          currency,
				Status:            domain.PaymentStatusPending,
				ProviderPaymentID: s.newID(in.Provider),
			}
			if err := s.payments.Create(ctx, payment); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					return domain.Conflict("payment already initiated for this order")
				}
				return err
			}
		case err != nil:
			return err
		case existing.Status == domain.PaymentStatusFailed:
			payment = existing
			payment.Provider = in.Provider
			payment.Amount = order.TotalAmount
			payment.Currency = currency
			payment.ProviderPaymentID = s.newID(in.Provider)
			if err := s.payments.Reinitiate(ctx, payment); err != nil {
				if errors.Is(err, repository.ErrStaleWrite) {
					return domain.Conflict("payment was modified concurrently, try again")
				}
				return err
			}
		default:
			return domain.Conflict("payment already initiated for this order")
		}

		return s.orders.SetPaymentStatus(ctx, orderID, domain.PaymentStatusPending)
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// VerifyPayment checks the provider signature. A mismatch marks the payment
// FAILED and leaves the order untouched; a match marks payment and order paid
// in one transaction, unless the order was cancelled in the meantime.
func (s *PaymentService) VerifyPayment(ctx context.Context, userID, orderID primitive.ObjectID, in VerifyPaymentInput) (*domain.Payment, error) {
	if in.ProviderPaymentID == "" || in.ProviderOrderID == "" || in.Signature == "" {
		return nil, domain.InvalidInput("providerPaymentId, providerOrderId and signature are required")
	}

	payment, err := s.payments.FindForVerification(ctx, orderID, userID, in.ProviderPaymentID)
	if err != nil {
		return nil, notFound(err, "payment not found")
	}
	if payment.Status == domain.PaymentStatusSuccess {
		return nil, domain.Conflict("payment is already verified")
	}

	if !VerifySignature(s.secret, in.ProviderOrderID, in.ProviderPaymentID, in.Signature) {
		if payment.Status != domain.PaymentStatusFailed {
			if err := s.payments.UpdateStatus(ctx, payment.ID, payment.Status, domain.PaymentStatusFailed); err != nil && !errors.Is(err, repository.ErrStaleWrite) {
				return nil, err
			}
		}
		slog.WarnContext(ctx, "payment signature mismatch", "payment_id", payment.ID.Hex(), "order_id", orderID.Hex())
		return nil, domain.VerificationFailed("payment verification failed")
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return notFound(err, "order not found")
		}
		if order.OrderStatus == domain.OrderStatusCancelled {
			return domain.Conflict("order is cancelled")
		}
		if err := s.payments.UpdateStatus(ctx, payment.ID, payment.Status, domain.PaymentStatusSuccess); err != nil {
			if errors.Is(err, repository.ErrStaleWrite) {
				return domain.Conflict("payment was modified concurrently, try again")
			}
			return err
		}
		now := s.now()
		if err := s.orders.MarkPaid(ctx, orderID, now); err != nil {
			return notFound(err, "order not found")
		}
		order.PaymentStatus, order.IsPaid, order.PaidAt = domain.PaymentStatusSuccess, true, &now
		event, err := orderEvent(domain.EventPaymentSucceeded, order, false, now)
		if err != nil {
			return err
		}
		return s.outbox.Insert(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	payment.Status = domain.PaymentStatusSuccess
	return payment, nil
}

func (s *PaymentService) GetPaymentStatus(ctx context.Context, userID, paymentID primitive.ObjectID) (domain.PaymentStatus, error) {
	payment, err := s.payments.GetForUser(ctx, paymentID, userID)
	if err != nil {
		return "", notFound(err, "payment not found")
	}
	return payment.Status, nil
}

// ComputeSignature returns hex(HMAC-SHA256(secret, providerOrderID + "|" + providerPaymentID)).
func ComputeSignature(secret []byte, providerOrderID, providerPaymentID string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(providerOrderID + "|" + providerPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares in constant time.
func VerifySignature(secret []byte, providerOrderID, providerPaymentID, signature string) bool {
	expected := ComputeSignature(secret, providerOrderID, providerPaymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func providerPaymentID(p domain.PaymentProvider) string {
	return strings.ToLower(string(p)) + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
