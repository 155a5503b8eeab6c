package purchase

import (
	"context"
	"errors"
)

// Prechecks asks each precheck in turn and returns the first answer. It
// errors only when none of them could answer.
type Prechecks []Precheck

func (p Prechecks) Registered(ctx context.Context, name string) (bool, error) {
	var errs []error
	for _, pc := range p {
		registered, err := pc.Registered(ctx, name)
		if err == nil {
			return registered, nil
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return false, errors.New("no precheck configured")
	}
	return false, errors.Join(errs...)
}
