package usecase

// Published to RabbitMQ on order lifecycle changes.
type OrderEventMsg struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	Total   string `json:"total"`
	Email   string `json:"email,omitempty"`
}

// Sent by the admin panel on Kafka when an operator changes an order status.
type OrderStatusChangedMsg struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"` // e.g. "SHIPPED", "CANCELLED"
}
