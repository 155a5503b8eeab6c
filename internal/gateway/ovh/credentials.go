package ovh

import (
	"context"
	"fmt"

	"github.com/ovh/go-ovh/ovh"
)

// Validation is a pending consumer-key request. The key only becomes usable
// once the account owner has visited ValidationURL.
type Validation struct {
	ValidationURL string
	ConsumerKey   string
}

// RequestConsumerKey asks for a new consumer key with read/write access to
// the whole API, which the order and payment endpoints need.
func (c *Client) RequestConsumerKey() (Validation, error) {
	ck := c.api.NewCkRequest()
	ck.AddRecursiveRules(ovh.ReadWrite, "/")

	state, err := ck.Do()
	if err != nil {
		return Validation{}, wrap("request-consumer-key", err)
	}
	return Validation{ValidationURL: state.ValidationURL, ConsumerKey: state.ConsumerKey}, nil
}

type Account struct {
	Nichandle string `json:"nichandle"`
	FirstName string `json:"firstname"`
	Email     string `json:"email"`
}

// Me returns the account bound to the current consumer key.
func (c *Client) Me(ctx context.Context) (Account, error) {
	var me Account
	if err := c.get(ctx, "me", "/me", &me); err != nil {
		return Account{}, err
	}
	if me.Nichandle == "" && me.FirstName == "" {
		return Account{}, fmt.Errorf("ovh: empty account for current consumer key")
	}
	return me, nil
}
