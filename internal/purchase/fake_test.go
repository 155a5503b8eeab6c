package purchase

import (
	"context"
	"fmt"

	"github.com/benithors/dotgrab/internal/gateway"
)

// fakeGateway serves one offer per domain listed in offers; everything else
// is rejected by AddDomain. Errors can be injected per step.
type fakeGateway struct {
	offers map[string]gateway.CartItem
	means  []gateway.PaymentMean
	ids    map[string][]int64

	createErr   error
	addErr      error
	checkoutErr error
	meansErr    error
	idsErr      error
	payErr      error

	carts   int
	calls   []string
	paid    []paidOrder
	nextOrd int64
	cartDom map[string]string
}

type paidOrder struct {
	OrderID int64
	Mean    string
	MeanID  int64
}

var _ gateway.Gateway = (*fakeGateway)(nil)

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		offers:  map[string]gateway.CartItem{},
		means:   []gateway.PaymentMean{{PaymentMean: "creditCard", Description: "visa"}, {PaymentMean: "paypal", Description: "paypal"}},
		ids:     map[string][]int64{"creditCard": {101, 102}, "paypal": {201}},
		nextOrd: 1000,
		cartDom: map[string]string{},
	}
}

func (f *fakeGateway) withOffer(name string) *fakeGateway {
	f.offers[name] = gateway.CartItem{ItemID: 1, Domain: name, OfferID: "offer-" + name, PlanCode: "com-create-default"}
	return f
}

func (f *fakeGateway) Name() string { return "fake" }

func (f *fakeGateway) CreateCart(ctx context.Context) (string, error) {
	f.calls = append(f.calls, "create-cart")
	if f.createErr != nil {
		return "", f.createErr
	}
	f.carts++
	return fmt.Sprintf("cart-%d", f.carts), nil
}

func (f *fakeGateway) AddDomain(ctx context.Context, cartID, domain string) (*gateway.CartItem, error) {
	f.calls = append(f.calls, "add-domain:"+domain)
	if f.addErr != nil {
		return nil, f.addErr
	}
	item, ok := f.offers[domain]
	if !ok {
		return nil, &gateway.RemoteError{Op: "add-domain", Status: 400, Err: fmt.Errorf("domain %s is not available", domain)}
	}
	f.cartDom[cartID] = domain
	return &item, nil
}

func (f *fakeGateway) Checkout(ctx context.Context, cartID string) (gateway.SalesOrder, error) {
	f.calls = append(f.calls, "checkout")
	if f.checkoutErr != nil {
		return gateway.SalesOrder{}, f.checkoutErr
	}
	f.nextOrd++
	return gateway.SalesOrder{OrderID: f.nextOrd, PriceText: "8.39 €", URL: fmt.Sprintf("https://order.example/%d", f.nextOrd)}, nil
}

func (f *fakeGateway) PaymentMeans(ctx context.Context, orderID int64) ([]gateway.PaymentMean, error) {
	f.calls = append(f.calls, "payment-means")
	if f.meansErr != nil {
		return nil, f.meansErr
	}
	return f.means, nil
}

func (f *fakeGateway) PaymentMeanIDs(ctx context.Context, paymentMean string) ([]int64, error) {
	f.calls = append(f.calls, "payment-mean-ids:"+paymentMean)
	if f.idsErr != nil {
		return nil, f.idsErr
	}
	return f.ids[paymentMean], nil
}

func (f *fakeGateway) Pay(ctx context.Context, orderID int64, paymentMean string, paymentMeanID int64) error {
	f.calls = append(f.calls, "pay")
	if f.payErr != nil {
		return f.payErr
	}
	f.paid = append(f.paid, paidOrder{OrderID: orderID, Mean: paymentMean, MeanID: paymentMeanID})
	return nil
}

func (f *fakeGateway) count(call string) int {
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

type fakePrecheck struct {
	registered map[string]bool
	err        error
}

func (p fakePrecheck) Registered(ctx context.Context, domain string) (bool, error) {
	return p.registered[domain], p.err
}
