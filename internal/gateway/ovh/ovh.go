package ovh

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/eapache/go-resiliency/retrier"
	"github.com/ovh/go-ovh/ovh"
	log "github.com/sirupsen/logrus"

	"github.com/benithors/dotgrab/internal/gateway"
)

const (
	DefaultEndpoint   = "ovh-eu"
	DefaultSubsidiary = "FR"
)

type Options struct {
	Endpoint          string // endpoint name (ovh-eu, ovh-ca, ...) or base URL
	ApplicationKey    string
	ApplicationSecret string
	ConsumerKey       string
	Subsidiary        string

	// Timeout bounds every single API call, retries excluded.
	Timeout time.Duration
	// Retries and Backoff apply to read-only calls only.
	Retries int
	Backoff time.Duration

	Logger *log.Entry
}

type Client struct {
	opts  Options
	api   *ovh.Client
	retry *retrier.Retrier
	log   *log.Entry
}

var _ gateway.Gateway = (*Client)(nil)

func NewClient(opts Options) (*Client, error) {
	opts.Endpoint = strings.TrimSpace(opts.Endpoint)
	opts.ApplicationKey = strings.TrimSpace(opts.ApplicationKey)
	opts.ApplicationSecret = strings.TrimSpace(opts.ApplicationSecret)
	opts.ConsumerKey = strings.TrimSpace(opts.ConsumerKey)
	if opts.ApplicationKey == "" || opts.ApplicationSecret == "" {
		return nil, fmt.Errorf("ovh: missing application key or secret")
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Subsidiary == "" {
		opts.Subsidiary = DefaultSubsidiary
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = log.New().WithField("component", "ovh")
	}

	api, err := ovh.NewClient(opts.Endpoint, opts.ApplicationKey, opts.ApplicationSecret, opts.ConsumerKey)
	if err != nil {
		return nil, fmt.Errorf("ovh: %w", err)
	}

	return &Client{
		opts:  opts,
		api:   api,
		retry: retrier.New(retrier.ExponentialBackoff(opts.Retries, opts.Backoff), transientClassifier{}),
		log:   opts.Logger,
	}, nil
}

func (c *Client) Name() string { return "ovh" }

func (c *Client) CreateCart(ctx context.Context) (string, error) {
	var cart struct {
		CartID string `json:"cartId"`
	}
	err := c.post(ctx, "create-cart", "/order/cart", map[string]string{"ovhSubsidiary": c.opts.Subsidiary}, &cart, false)
	if err != nil {
		return "", err
	}
	if cart.CartID == "" {
		return "", &gateway.RemoteError{Op: "create-cart", Err: gateway.ErrEmptyCart}
	}

	if err := c.post(ctx, "assign-cart", "/order/cart/"+url.PathEscape(cart.CartID)+"/assign", nil, nil, true); err != nil {
		return "", err
	}
	return cart.CartID, nil
}

func (c *Client) AddDomain(ctx context.Context, cartID, domain string) (*gateway.CartItem, error) {
	var item *cartItemResponse
	err := c.post(ctx, "add-domain", "/order/cart/"+url.PathEscape(cartID)+"/domain", map[string]string{"domain": domain}, &item, true)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	return &gateway.CartItem{
		ItemID:   item.ItemID,
		Domain:   item.Settings.Domain,
		OfferID:  item.OfferID,
		PlanCode: item.Settings.PlanCode,
	}, nil
}

func (c *Client) Checkout(ctx context.Context, cartID string) (gateway.SalesOrder, error) {
	var order checkoutResponse
	body := map[string]bool{"autoPayWithPreferredPaymentMethod": false}
	if err := c.post(ctx, "checkout", "/order/cart/"+url.PathEscape(cartID)+"/checkout", body, &order, true); err != nil {
		return gateway.SalesOrder{}, err
	}
	return gateway.SalesOrder{
		OrderID:   order.OrderID,
		PriceText: order.Prices.WithTax.Text,
		URL:       order.URL,
	}, nil
}

func (c *Client) PaymentMeans(ctx context.Context, orderID int64) ([]gateway.PaymentMean, error) {
	var raw []paymentMeanResponse
	if err := c.get(ctx, "payment-means", fmt.Sprintf("/me/order/%d/availableRegisteredPaymentMean", orderID), &raw); err != nil {
		return nil, err
	}
	out := make([]gateway.PaymentMean, 0, len(raw))
	for _, p := range raw {
		out = append(out, gateway.PaymentMean{PaymentMean: p.PaymentMean, Description: p.PaymentSubType})
	}
	return out, nil
}

func (c *Client) PaymentMeanIDs(ctx context.Context, paymentMean string) ([]int64, error) {
	var ids []int64
	if err := c.get(ctx, "payment-mean-ids", "/me/paymentMean/"+url.PathEscape(paymentMean), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *Client) Pay(ctx context.Context, orderID int64, paymentMean string, paymentMeanID int64) error {
	body := struct {
		PaymentMean   string `json:"paymentMean"`
		PaymentMeanID int64  `json:"paymentMeanId"`
	}{paymentMean, paymentMeanID}
	return c.post(ctx, "pay", fmt.Sprintf("/me/order/%d/payWithRegisteredPaymentMean", orderID), body, nil, true)
}

// post is never retried: carts, checkouts and payments must not be submitted twice.
func (c *Client) post(ctx context.Context, op, path string, body, out any, auth bool) error {
	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	start := time.Now()
	var err error
	if auth {
		err = c.api.PostWithContext(callCtx, path, body, out)
	} else {
		err = c.api.PostUnAuthWithContext(callCtx, path, body, out)
	}
	c.log.WithFields(log.Fields{"op": op, "path": path, "duration": time.Since(start)}).Debug("ovh call")
	if err != nil {
		return wrap(op, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, op, path string, out any) error {
	attempt := 0
	err := c.retry.RunCtx(ctx, func(ctx context.Context) error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()

		err := c.api.GetWithContext(callCtx, path, out)
		if err != nil && attempt <= c.opts.Retries && isTransient(err) {
			c.log.WithError(err).WithFields(log.Fields{"op": op, "attempt": attempt}).Warn("ovh call failed, retrying")
		}
		return err
	})
	if err != nil {
		return wrap(op, err)
	}
	return nil
}

func wrap(op string, err error) error {
	var apiErr *ovh.APIError
	if errors.As(err, &apiErr) {
		return &gateway.RemoteError{Op: op, Status: apiErr.Code, Err: &apiError{apiErr}}
	}
	return &gateway.RemoteError{Op: op, Err: err}
}

// apiError renders an OVH error as its message plus the query id support asks for.
type apiError struct{ err *ovh.APIError }

func (e *apiError) Error() string {
	msg := strings.TrimSpace(e.err.Message)
	if msg == "" {
		return e.err.Error()
	}
	if e.err.QueryID != "" {
		return fmt.Sprintf("%s (query id %s)", msg, e.err.QueryID)
	}
	return msg
}

func (e *apiError) Unwrap() error { return e.err }

type transientClassifier struct{}

func (transientClassifier) Classify(err error) retrier.Action {
	if err == nil {
		return retrier.Succeed
	}
	if isTransient(err) {
		return retrier.Retry
	}
	return retrier.Fail
}

// isTransient reports whether a failed read is worth repeating: transport
// errors and per-call timeouts, rate limiting, and registrar-side 5xx.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *ovh.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	return true
}

type cartItemResponse struct {
	ItemID   int64  `json:"itemId"`
	CartID   string `json:"cartId"`
	OfferID  string `json:"offerId"`
	Settings struct {
		Domain   string `json:"domain"`
		PlanCode string `json:"planCode"`
	} `json:"settings"`
}

type checkoutResponse struct {
	OrderID int64  `json:"orderId"`
	URL     string `json:"url"`
	Prices  struct {
		WithTax struct {
			Text         string  `json:"text"`
			Value        float64 `json:"value"`
			CurrencyCode string  `json:"currencyCode"`
		} `json:"withTax"`
	} `json:"prices"`
}

type paymentMeanResponse struct {
	PaymentMean    string `json:"paymentMean"`
	PaymentSubType string `json:"paymentSubType"`
}
