package shop

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"
)

// PaymentEvent is the normalized form every provider webhook reduces to.
type PaymentEvent struct {
	Provider  string
	Reference string // order id
	Status    string // one of the order statuses
	Amount    float64
	TxID      string
}

var (
	ErrBadSignature = errors.New("shop: webhook signature mismatch")
	ErrIgnoredEvent = errors.New("shop: event carries no payment outcome")
)

// applyPaymentEvent updates the referenced order and notifies the customer on
// a terminal status.
func (s *Service) applyPaymentEvent(ctx context.Context, ev PaymentEvent) (*Order, error) {
	o, err := s.findOrderByReference(ctx, ev.Reference)
	if err != nil {
		return nil, err
	}
	o, err = s.UpdateOrderStatus(ctx, o.ID, ev.Status, ev.TxID)
	if err != nil {
		return nil, err
	}
	switch ev.Status {
	case StatusPaid:
		s.notify(ctx, o, "Pago confirmado", "Tu pago fue aprobado. Pronto despachamos tu pedido.")
	case StatusFailed:
		s.notify(ctx, o, "Pago rechazado", "El pago no pudo procesarse. Puedes intentarlo de nuevo.")
	}
	s.logger.Info("payment event applied",
		"provider", ev.Provider, "order", o.ID, "status", ev.Status, "tx", ev.TxID)
	return o, nil
}

// --- Wompi ---

type wompiEvent struct {
	Event string `json:"event"`
	Data  struct {
		Transaction struct {
			ID            string `json:"id"`
			Reference     string `json:"reference"`
			Status        string `json:"status"`
			AmountInCents int64  `json:"amount_in_cents"`
		} `json:"transaction"`
	} `json:"data"`
	Signature struct {
		Checksum string `json:"checksum"`
	} `json:"signature"`
	Timestamp int64 `json:"timestamp"`
}

// parseWompiEvent verifies the event checksum (HMAC-SHA256 over
// id+status+amount+timestamp) and normalizes the transaction.
func parseWompiEvent(body []byte, secret string) (PaymentEvent, error) {
	var ev wompiEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return PaymentEvent{}, fmt.Errorf("wompi payload: %w", err)
	}
	tx := ev.Data.Transaction
	if secret != "" {
		mac := hmac.New(sha256.New, []byte(secret))
		fmt.Fprintf(mac, "%s%s%d%d", tx.ID, tx.Status, tx.AmountInCents, ev.Timestamp)
		want := hex.EncodeToString(mac.Sum(nil))
		if !hmac.Equal([]byte(want), []byte(strings.ToLower(ev.Signature.Checksum))) {
			return PaymentEvent{}, ErrBadSignature
		}
	}
	status, ok := wompiStatus(tx.Status)
	if !ok {
		return PaymentEvent{}, ErrIgnoredEvent
	}
	return PaymentEvent{
		Provider:  "wompi",
		Reference: tx.Reference,
		Status:    status,
		Amount:    float64(tx.AmountInCents) / 100,
		TxID:      tx.ID,
	}, nil
}

func wompiStatus(s string) (string, bool) {
	switch strings.ToUpper(s) {
	case "APPROVED":
		return StatusPaid, true
	case "DECLINED", "ERROR":
		return StatusFailed, true
	case "VOIDED":
		return StatusVoided, true
	default: // PENDING and friends
		return "", false
	}
}

// --- PSE ---

type pseEvent struct {
	Reference     string  `json:"reference"`
	State         string  `json:"state"`
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
}

// parsePSEEvent normalizes the bank redirect confirmation. PSE sends no
// signature; the endpoint relies on the opaque order reference.
func parsePSEEvent(body []byte) (PaymentEvent, error) {
	var ev pseEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return PaymentEvent{}, fmt.Errorf("pse payload: %w", err)
	}
	var status string
	switch strings.ToUpper(ev.State) {
	case "OK", "APPROVED":
		status = StatusPaid
	case "FAILED", "NOT_AUTHORIZED":
		status = StatusFailed
	default:
		return PaymentEvent{}, ErrIgnoredEvent
	}
	return PaymentEvent{
		Provider:  "pse",
		Reference: ev.Reference,
		Status:    status,
		Amount:    ev.Amount,
		TxID:      ev.TransactionID,
	}, nil
}

// --- Stripe ---

// parseStripeEvent verifies the Stripe-Signature header when a webhook secret
// is configured and normalizes checkout/payment-intent outcomes.
func parseStripeEvent(body []byte, sigHeader, secret string) (PaymentEvent, error) {
	var ev stripe.Event
	if secret != "" {
		verified, err := webhook.ConstructEvent(body, sigHeader, secret)
		if err != nil {
			return PaymentEvent{}, ErrBadSignature
		}
		ev = verified
	} else if err := json.Unmarshal(body, &ev); err != nil {
		return PaymentEvent{}, fmt.Errorf("stripe payload: %w", err)
	}

	switch ev.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
			return PaymentEvent{}, fmt.Errorf("stripe session: %w", err)
		}
		return PaymentEvent{
			Provider:  "stripe",
			Reference: sess.ClientReferenceID,
			Status:    StatusPaid,
			Amount:    float64(sess.AmountTotal) / 100,
			TxID:      sess.ID,
		}, nil
	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return PaymentEvent{}, fmt.Errorf("stripe intent: %w", err)
		}
		ref := pi.Metadata["order_id"]
		return PaymentEvent{
			Provider:  "stripe",
			Reference: ref,
			Status:    StatusFailed,
			Amount:    float64(pi.Amount) / 100,
			TxID:      pi.ID,
		}, nil
	default:
		return PaymentEvent{}, ErrIgnoredEvent
	}
}
