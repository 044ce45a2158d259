package orders

const (
	TopicOrderCreated = "shipment.order.created"
	TopicOrderShipped = "shipment.order.shipped"
	TopicOrderStuck   = "shipment.order.stuck"
)

// Partition key = order_id so every event for one order stays ordered.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
