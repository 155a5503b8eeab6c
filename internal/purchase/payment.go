package purchase

import (
	"strings"

	"github.com/benithors/dotgrab/internal/gateway"
)

// ChoosePaymentMean returns preference when it is one of the available
// means, otherwise the first available mean in registrar order. available
// must not be empty.
func ChoosePaymentMean(preference string, available []gateway.PaymentMean) string {
	if preference != "" {
		for _, p := range available {
			if p.PaymentMean == preference {
				return preference
			}
		}
	}
	return available[0].PaymentMean
}

// HasOffer reports whether an add-to-cart result is a purchasable
// registration. Only "create" plans count; transfer or trade plans returned
// for a taken name do not.
func HasOffer(item *gateway.CartItem) bool {
	if item == nil {
		return false
	}
	return strings.Contains(strings.ToLower(item.PlanCode), "create")
}
