package events

const (
	TopicStockChanged      = "stock.changed"
	TopicPlateAvailability = "catalog.plate.availability"
	TopicOrderCreated      = "order.created"
	TopicOrderConfirmed    = "order.confirmed"
	TopicOrderCancelled    = "order.cancelled"
)

// Partition key = order_id (atau ingredient_id utk stock.changed),
// supaya event utk satu entitas maintain urutan.
func PartitionKey(id string) []byte { return []byte(id) }
