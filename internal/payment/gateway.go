package payment

import "context"

// Verifier confirms that a client-reported payment was captured by the
// gateway. Only the opaque identifiers it checks are ever stored on an order.
type Verifier interface {
	VerifyPayment(ctx context.Context, paymentID, gatewayOrderID, signature string) (bool, error)
}
