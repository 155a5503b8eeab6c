// Package gateway describes the remote ordering API the purchase workflow
// drives. Implementations live in subpackages.
package gateway

import (
	"context"
	"errors"
	"fmt"
)

type Gateway interface {
	Name() string

	// CreateCart creates a fresh cart and assigns it to the authenticated account.
	CreateCart(ctx context.Context) (string, error)
	// AddDomain puts a domain registration item into the cart. A nil item
	// means the registrar returned nothing usable.
	AddDomain(ctx context.Context, cartID, domain string) (*CartItem, error)
	// Checkout turns the cart into a sales order.
	Checkout(ctx context.Context, cartID string) (SalesOrder, error)
	// PaymentMeans lists the registered payment means usable for an order,
	// in the order the registrar returns them.
	PaymentMeans(ctx context.Context, orderID int64) ([]PaymentMean, error)
	// PaymentMeanIDs lists the stored instances of a payment mean type.
	PaymentMeanIDs(ctx context.Context, paymentMean string) ([]int64, error)
	// Pay pays an order with an already registered payment mean.
	Pay(ctx context.Context, orderID int64, paymentMean string, paymentMeanID int64) error
}

type CartItem struct {
	ItemID   int64
	Domain   string
	OfferID  string
	PlanCode string
}

type SalesOrder struct {
	OrderID   int64
	PriceText string // tax-inclusive total, human readable (e.g. "8.39 €")
	URL       string
}

type PaymentMean struct {
	PaymentMean string
	Description string
}

var ErrEmptyCart = errors.New("registrar returned no cart id")

// RemoteError is returned by gateway implementations for any failed remote
// call. Detail is the registrar's human-readable message.
type RemoteError struct {
	Op     string
	Status int // HTTP status when known, 0 for transport errors
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: http %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Detail returns the remote message without the operation prefix.
func (e *RemoteError) Detail() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// Detail extracts the human-readable remote message from err.
func Detail(err error) string {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Detail()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
