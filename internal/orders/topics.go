package orders

const (
	TopicOrderCreated = "pos.order.created"
	TopicOrderStatus  = "pos.order.status"
	TopicStockLow     = "pos.stock.low"
)

// Partition key = order_id so every event of one order keeps its ordering.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
