package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/MemberPay/app/models"
	"github.com/ManuelReschke/MemberPay/app/repository"
	"github.com/ManuelReschke/MemberPay/internal/pkg/membership"
	"github.com/ManuelReschke/MemberPay/internal/pkg/metrics"
	"github.com/ManuelReschke/MemberPay/internal/pkg/signature"
)

const (
	activationAttempts   = 3
	reasonAmountMismatch = "amount_mismatch"
	reasonProviderFailed = "provider_failure"
)

var errOrderNotPending = errors.New("billing: order left pending state")

// Processor turns verified provider callbacks into order and membership
// changes exactly once per order.
type Processor struct {
	tx        repository.Transactor
	orders    repository.OrderRepository
	events    repository.CallbackEventRepository
	activator Activator
	verifiers map[string]signature.Verifier
	archiver  Archiver
	now       func() time.Time
}

// ProcessorOption customizes a Processor.
type ProcessorOption func(*Processor)

// WithArchiver stores every verified callback body through a.
func WithArchiver(a Archiver) ProcessorOption {
	return func(p *Processor) { p.archiver = a }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) { p.now = now }
}

// NewProcessor wires a callback processor. verifiers is keyed by provider.
func NewProcessor(repos *repository.Repositories, activator Activator, verifiers map[string]signature.Verifier, opts ...ProcessorOption) *Processor {
	p := &Processor{
		tx:        repos.Tx,
		orders:    repos.Order,
		events:    repos.CallbackEvent,
		activator: activator,
		verifiers: verifiers,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HandleCallback processes one raw provider notification and returns the
// acknowledgement the provider expects. A negative ack makes the provider
// deliver again; it is only returned when nothing was committed or when
// retrying is safe.
func (p *Processor) HandleCallback(ctx context.Context, provider string, raw []byte) Ack {
	verifier, ok := p.verifiers[provider]
	if !ok || verifier == nil {
		log.Errorf("[Callback] no verifier configured for provider %q", provider)
		metrics.CallbacksTotal.WithLabelValues(provider, metrics.OutcomeMalformed).Inc()
		return FailAck(provider, "unsupported provider")
	}

	params, err := ParseParams(provider, raw)
	if err != nil {
		log.Warnf("[Callback] %s: unparseable body: %v", provider, err)
		metrics.CallbacksTotal.WithLabelValues(provider, metrics.OutcomeMalformed).Inc()
		return FailAck(provider, "malformed")
	}

	if err := verifier.Verify(params); err != nil {
		log.Warnf("[Callback] %s: rejected notification for %q: %v", provider, params["out_trade_no"], err)
		metrics.CallbacksTotal.WithLabelValues(provider, metrics.OutcomeInvalidSignature).Inc()
		metrics.SecurityAlertsTotal.WithLabelValues(metrics.AlertInvalidSignature).Inc()
		return FailAck(provider, "invalid signature")
	}

	n, err := Normalize(provider, params, raw)
	if err != nil {
		err = &MalformedNotificationError{Provider: provider, Err: err}
		log.Errorf("[Callback] %v", err)
		metrics.CallbacksTotal.WithLabelValues(provider, metrics.OutcomeMalformed).Inc()
		return FailAck(provider, "malformed")
	}

	order, err := p.lookup(ctx, n)
	if err != nil {
		return answer(n, err)
	}

	event := p.recordEvent(ctx, n)
	p.archive(ctx, n, raw)

	err = p.process(ctx, order, n)
	if event != nil {
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		if markErr := p.events.MarkProcessed(ctx, event.ID, msg); markErr != nil {
			log.Warnf("[Callback] mark event %d processed: %v", event.ID, markErr)
		}
	}

	return answer(n, err)
}

func answer(n *Notification, err error) Ack {
	metrics.CallbacksTotal.WithLabelValues(n.Provider, outcomeLabel(err)).Inc()
	if acknowledged(err) {
		return SuccessAck(n.Provider)
	}
	log.Errorf("[Callback] %s order %s: %v", n.Provider, n.OrderID, err)
	return FailAck(n.Provider, "retry")
}

func outcomeLabel(err error) string {
	var unknown *UnknownOrderError
	var mismatch *AmountMismatchError
	switch {
	case err == nil:
		return metrics.OutcomeProcessed
	case errors.Is(err, ErrDuplicateCallback):
		return metrics.OutcomeDuplicate
	case errors.As(err, &unknown):
		return metrics.OutcomeUnknownOrder
	case errors.As(err, &mismatch):
		return metrics.OutcomeAmountMismatch
	default:
		return metrics.OutcomeError
	}
}

func (p *Processor) recordEvent(ctx context.Context, n *Notification) *models.PaymentCallbackEvent {
	created, stored, err := p.events.CreateIfNotExists(ctx, &models.PaymentCallbackEvent{
		Provider:    n.Provider,
		EventID:     n.EventID,
		OrderID:     n.OrderID,
		PayloadHash: n.PayloadHash,
		Payload:     n.Raw,
	})
	if err != nil {
		log.Warnf("[Callback] audit insert for %s/%s failed: %v", n.Provider, n.EventID, err)
		return nil
	}
	if !created {
		log.Infof("[Callback] %s event %s seen before", n.Provider, n.EventID)
	}
	return stored
}

func (p *Processor) archive(ctx context.Context, n *Notification, raw []byte) {
	if p.archiver == nil {
		return
	}
	if err := p.archiver.Archive(ctx, n.Provider, n.OrderID, raw); err != nil {
		log.Warnf("[Callback] archive of %s/%s failed: %v", n.Provider, n.OrderID, err)
	}
}

// lookup loads the order a notification refers to. Unknown orders are
// answered without writing anything.
func (p *Processor) lookup(ctx context.Context, n *Notification) (*models.PaymentOrder, error) {
	order, err := p.orders.GetByOrderID(ctx, n.OrderID)
	if err != nil {
		if repository.IsNotFound(err) {
			uerr := &UnknownOrderError{OrderID: n.OrderID}
			log.Warnf("[Callback] %s: %v", n.Provider, uerr)
			return nil, uerr
		}
		return nil, fmt.Errorf("load order %s: %w", n.OrderID, err)
	}
	return order, nil
}

func (p *Processor) process(ctx context.Context, order *models.PaymentOrder, n *Notification) error {
	if n.Outcome == OutcomeRefund {
		return p.refund(ctx, order)
	}

	if !order.IsPending() {
		if n.Outcome == OutcomeSuccess && order.Status != models.OrderStatusCompleted {
			p.latePayment(order, n)
		}
		return ErrDuplicateCallback
	}

	switch n.Outcome {
	case OutcomePending:
		log.Infof("[Callback] %s order %s still %s", n.Provider, order.OrderID, n.ProviderStatus)
		return nil
	case OutcomeFailure:
		return p.fail(ctx, order, n, reasonProviderFailed)
	case OutcomeSuccess:
		if n.Amount != order.Amount {
			return p.amountMismatch(ctx, order, n)
		}
		return p.complete(ctx, order, n)
	default:
		return fmt.Errorf("unhandled outcome %q", n.Outcome)
	}
}

// complete claims the order with a success transaction, moves it to
// completed and activates the membership in one database transaction.
func (p *Processor) complete(ctx context.Context, order *models.PaymentOrder, n *Notification) error {
	var err error
	for attempt := 1; attempt <= activationAttempts; attempt++ {
		err = p.tx.Exec(ctx, func(ctx context.Context) error {
			txn := models.NewSuccessTransaction(order.OrderID, n.Provider, n.ProviderTransactionID, n.Amount, n.Raw)
			if err := p.orders.InsertTransaction(ctx, txn); err != nil {
				return err
			}
			done, err := p.orders.Complete(ctx, order.OrderID, n.ProviderTransactionID, p.now())
			if err != nil {
				return err
			}
			if !done {
				return errOrderNotPending
			}
			_, err = p.activator.Activate(ctx, order)
			return err
		})
		if !errors.Is(err, membership.ErrConcurrentMembershipChange) {
			break
		}
		log.Warnf("[Callback] membership of user %d changed concurrently, retrying order %s (%d/%d)",
			order.UserID, order.OrderID, attempt, activationAttempts)
	}

	switch {
	case err == nil:
		log.Infof("[Callback] %s order %s completed (user %d, %s x%d)",
			n.Provider, order.OrderID, order.UserID, order.MembershipPlan, order.MembershipDuration)
		return nil
	case errors.Is(err, repository.ErrDuplicateKey), errors.Is(err, errOrderNotPending):
		current, rerr := p.orders.GetByOrderID(ctx, order.OrderID)
		if rerr != nil {
			return fmt.Errorf("re-read order %s: %w", order.OrderID, rerr)
		}
		switch {
		case current.IsPending():
			p.reusedTransaction(current, n)
		case current.Status != models.OrderStatusCompleted:
			p.latePayment(current, n)
		}
		log.Infof("[Callback] %s order %s already %s", n.Provider, order.OrderID, current.Status)
		return ErrDuplicateCallback
	default:
		return err
	}
}

func (p *Processor) fail(ctx context.Context, order *models.PaymentOrder, n *Notification, reason string) error {
	return p.tx.Exec(ctx, func(ctx context.Context) error {
		done, err := p.orders.MarkFailed(ctx, order.OrderID, reason)
		if err != nil {
			return err
		}
		if !done {
			return ErrDuplicateCallback
		}
		log.Infof("[Callback] %s order %s failed: %s (%s)", n.Provider, order.OrderID, reason, n.ProviderStatus)
		return p.orders.InsertTransaction(ctx, models.NewFailureTransaction(
			order.OrderID, n.Provider, n.ProviderTransactionID, n.Amount, reason, n.Raw))
	})
}

func (p *Processor) amountMismatch(ctx context.Context, order *models.PaymentOrder, n *Notification) error {
	mismatch := &AmountMismatchError{OrderID: order.OrderID, Expected: order.Amount, Paid: n.Amount}
	log.Errorf("[Security] %s: %v (provider txn %s, user %d)", n.Provider, mismatch, n.ProviderTransactionID, order.UserID)
	metrics.SecurityAlertsTotal.WithLabelValues(metrics.AlertAmountMismatch).Inc()

	if err := p.fail(ctx, order, n, reasonAmountMismatch); err != nil && !errors.Is(err, ErrDuplicateCallback) {
		return err
	}
	return mismatch
}

func (p *Processor) refund(ctx context.Context, order *models.PaymentOrder) error {
	switch order.Status {
	case models.OrderStatusCompleted:
		done, err := p.orders.MarkRefunded(ctx, order.OrderID)
		if err != nil {
			return err
		}
		if !done {
			return ErrDuplicateCallback
		}
		log.Warnf("[Callback] order %s refunded; membership of user %d left unchanged for manual review", order.OrderID, order.UserID)
		return nil
	case models.OrderStatusRefunded:
		return ErrDuplicateCallback
	default:
		log.Warnf("[Callback] refund notification for order %s in status %s ignored", order.OrderID, order.Status)
		return ErrDuplicateCallback
	}
}

func (p *Processor) latePayment(order *models.PaymentOrder, n *Notification) {
	log.Errorf("[Security] %s reported payment %s for order %s in status %s; manual refund required",
		n.Provider, n.ProviderTransactionID, order.OrderID, order.Status)
	metrics.SecurityAlertsTotal.WithLabelValues(metrics.AlertLatePayment).Inc()
}

func (p *Processor) reusedTransaction(order *models.PaymentOrder, n *Notification) {
	log.Errorf("[Security] %s transaction %s already settled another order; order %s stays %s",
		n.Provider, n.ProviderTransactionID, order.OrderID, order.Status)
	metrics.SecurityAlertsTotal.WithLabelValues(metrics.AlertTransactionReused).Inc()
}
