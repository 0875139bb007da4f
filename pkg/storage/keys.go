package storage

import "fmt"

// Pebble key schema. Events embed the order id so both per-order and
// per-user scans are single prefix iterations:
//
//   ord:<userID>:<orderID>            → Order
//   evt:<userID>:<orderID>:<eventID>  → OrderEvent
//   cred:<userID>                     → Credentials
const (
	prefixOrder = "ord:"
	prefixEvent = "evt:"
	prefixCred  = "cred:"
)

func orderKey(userID, orderID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixOrder, userID, orderID))
}

func orderPrefix(userID string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixOrder, userID))
}

func eventKey(userID, orderID, eventID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s:%s", prefixEvent, userID, orderID, eventID))
}

func eventOrderPrefix(userID, orderID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s:", prefixEvent, userID, orderID))
}

func eventUserPrefix(userID string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixEvent, userID))
}

func credKey(userID string) []byte {
	return []byte(prefixCred + userID)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
