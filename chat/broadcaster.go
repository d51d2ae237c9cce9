package chat

import "github.com/wavechat/wavechat/router"

// Broadcaster hands a payload to the delivery layer for the given
// destinations. Delivery is fire-and-forget: there is no acknowledgment
// and a copy missed by a briefly disconnected session is not resent.
// Implemented by ws.Hub; declared here so the services do not import the
// transport.
type Broadcaster interface {
	Deliver(dests []router.Destination, payload interface{})
}
