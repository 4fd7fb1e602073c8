package events

// Topic constants for domain events emitted by the ordering engine.
const (
	TopicOrderCreated = "order.created"
)

// OrderCreated is the payload of TopicOrderCreated.
type OrderCreated struct {
	OrderID       string `json:"orderId"`
	FoodtruckID   string `json:"foodtruckId"`
	Status        string `json:"status"`
	CustomerEmail string `json:"customerEmail"`
	CustomerName  string `json:"customerName"`
	PickupTime    string `json:"pickupTime"`
	SubtotalCents int64  `json:"subtotalCents"`
	DiscountCents int64  `json:"discountCents"`
	TotalCents    int64  `json:"totalCents"`
}

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{TopicOrderCreated}
}
