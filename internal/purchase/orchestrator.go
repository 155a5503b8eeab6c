// Package purchase drives a watch-list entry through the registrar ordering
// workflow: cart, item, checkout, payment-mean resolution, payment.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/benithors/dotgrab/internal/domain"
	"github.com/benithors/dotgrab/internal/gateway"
	"github.com/benithors/dotgrab/internal/metrics"
	"github.com/benithors/dotgrab/internal/outcome"
)

// State is the furthest point of the workflow an entry reached.
type State string

const (
	StateStart               State = "start"
	StateCartCreated         State = "cart_created"
	StateItemAdded           State = "item_added"
	StateOrderCreated        State = "order_created"
	StatePaymentMeanResolved State = "payment_mean_resolved"
	StatePaid                State = "paid"
)

// Workflow step names, used for errors, logs and metrics.
const (
	StepPrecheck      = "precheck"
	StepCreateCart    = "create-cart"
	StepAddDomain     = "add-domain"
	StepCheckout      = "checkout"
	StepPaymentMeans  = "payment-means"
	StepPaymentMeanID = "payment-mean-id"
	StepPay           = "pay"
)

var (
	ErrNoPaymentMeans   = errors.New("no registered payment means")
	ErrNoPaymentMeanIDs = errors.New("no registered payment mean id")
)

// StepError is returned by Process when a step failed in a way that should
// stop the run.
type StepError struct {
	Domain string
	Step   string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Domain, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Precheck answers whether a domain is currently registered. It lets a run
// skip cart creation for names that have not dropped yet.
type Precheck interface {
	Registered(ctx context.Context, domain string) (bool, error)
}

type Options struct {
	// PaymentMean is the preferred payment mean type (creditCard, paypal, ...).
	PaymentMean string
	Precheck    Precheck
	Metrics     *metrics.Run
	Logger      *log.Entry
}

type Orchestrator struct {
	gw      gateway.Gateway
	opts    Options
	log     *log.Entry
	metrics *metrics.Run
}

func NewOrchestrator(gw gateway.Gateway, opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = log.New().WithField("component", "purchase")
	}
	return &Orchestrator{gw: gw, opts: opts, log: opts.Logger, metrics: opts.Metrics}
}

// Process runs one watch-list entry through the workflow and returns its
// record. The error is non-nil only for failures after which the run should
// stop; an unavailable domain is not an error.
func (o *Orchestrator) Process(ctx context.Context, entry string) (outcome.Record, error) {
	rec := outcome.Record{Domain: entry, State: string(StateStart)}
	logger := o.log.WithField("domain", entry)

	name, err := domain.Normalize(entry)
	if err != nil {
		logger.WithError(err).Warn("skipping invalid watch-list entry")
		return unavailable(rec, "invalid domain: "+err.Error()), nil
	}
	rec.Name = name
	logger = logger.WithField("name", name)
	logger.Info("checking domain")

	if o.opts.Precheck != nil {
		start := time.Now()
		registered, err := o.opts.Precheck.Registered(ctx, name)
		o.observe(StepPrecheck, start, err)
		switch {
		case err != nil:
			logger.WithError(err).Debug("precheck inconclusive, asking the registrar")
		case registered:
			logger.Debug("still registered, skipping cart")
			return unavailable(rec, "still registered"), nil
		}
	}

	var cartID string
	err = o.call(StepCreateCart, func() (err error) {
		cartID, err = o.gw.CreateCart(ctx)
		return err
	})
	if err != nil {
		return o.fail(logger, rec, StepCreateCart, "cart creation failed", err)
	}
	rec.State = string(StateCartCreated)
	logger = logger.WithField("cart_id", cartID)

	var item *gateway.CartItem
	err = o.call(StepAddDomain, func() (err error) {
		item, err = o.gw.AddDomain(ctx, cartID, name)
		return err
	})
	if err != nil {
		logger.WithField("detail", gateway.Detail(err)).Debug("domain not orderable")
		return unavailable(rec, gateway.Detail(err)), nil
	}
	rec.State = string(StateItemAdded)
	if !HasOffer(item) {
		logger.Debug("no registration offer")
		return unavailable(rec, "no offer"), nil
	}

	var order gateway.SalesOrder
	err = o.call(StepCheckout, func() (err error) {
		order, err = o.gw.Checkout(ctx, cartID)
		return err
	})
	if err != nil {
		return o.fail(logger, rec, StepCheckout, "checkout failed", err)
	}
	rec.State = string(StateOrderCreated)
	rec.OrderID = order.OrderID
	rec.OrderURL = order.URL
	rec.Price = order.PriceText
	logger = logger.WithFields(log.Fields{"order_id": order.OrderID, "order_url": order.URL})
	logger.Infof("Available domain name. Order #%d (%s) has been generated.", order.OrderID, order.PriceText)

	var means []gateway.PaymentMean
	err = o.call(StepPaymentMeans, func() (err error) {
		means, err = o.gw.PaymentMeans(ctx, order.OrderID)
		return err
	})
	if err != nil {
		return o.fail(logger, rec, StepPaymentMeans, "payment means lookup failed", err)
	}
	if len(means) == 0 {
		return o.fail(logger, rec, StepPaymentMeans, "", ErrNoPaymentMeans)
	}
	mean := ChoosePaymentMean(o.opts.PaymentMean, means)
	if o.opts.PaymentMean != "" && mean != o.opts.PaymentMean {
		logger.WithField("preferred", o.opts.PaymentMean).Warnf("preferred payment mean not registered, using %s", mean)
	}

	var ids []int64
	err = o.call(StepPaymentMeanID, func() (err error) {
		ids, err = o.gw.PaymentMeanIDs(ctx, mean)
		return err
	})
	if err != nil {
		return o.fail(logger, rec, StepPaymentMeanID, "payment mean id lookup failed", err)
	}
	if len(ids) == 0 {
		return o.fail(logger, rec, StepPaymentMeanID, "", fmt.Errorf("%w for %s", ErrNoPaymentMeanIDs, mean))
	}
	rec.State = string(StatePaymentMeanResolved)
	rec.PaymentMean = mean
	logger.WithFields(log.Fields{"payment_mean": mean, "description": describe(means, mean)}).Debug("payment mean resolved")

	err = o.call(StepPay, func() error {
		return o.gw.Pay(ctx, order.OrderID, mean, ids[0])
	})
	if err != nil {
		return o.fail(logger, rec, StepPay, "payment failed", err)
	}
	rec.State = string(StatePaid)
	rec.Status = outcome.StatusPurchased
	logger.WithField("payment_mean", mean).Info("Payment successful. Congratulations on purchasing a new domain name!")
	return rec, nil
}

func (o *Orchestrator) call(step string, fn func() error) error {
	start := time.Now()
	err := fn()
	o.observe(step, start, err)
	return err
}

func (o *Orchestrator) observe(step string, start time.Time, err error) {
	if o.metrics != nil {
		o.metrics.RecordStep(step, time.Since(start), err)
	}
}

// fail marks rec failed. With an empty prefix the error text is the reason.
func (o *Orchestrator) fail(logger *log.Entry, rec outcome.Record, step, prefix string, err error) (outcome.Record, error) {
	rec.Status = outcome.StatusFailed
	if prefix == "" {
		rec.Reason = err.Error()
	} else {
		rec.Reason = prefix + ": " + gateway.Detail(err)
	}
	logger.WithError(err).WithField("step", step).Error(rec.Reason)
	return rec, &StepError{Domain: rec.Domain, Step: step, Err: err}
}

func unavailable(rec outcome.Record, reason string) outcome.Record {
	rec.Status = outcome.StatusUnavailable
	rec.Reason = reason
	return rec
}

func describe(means []gateway.PaymentMean, mean string) string {
	for _, m := range means {
		if m.PaymentMean == mean {
			return m.Description
		}
	}
	return ""
}
