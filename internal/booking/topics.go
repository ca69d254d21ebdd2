package booking

const (
	TopicBookingCreated = "booking.created"
	TopicBookingStatus  = "booking.status"
	TopicStockReserved  = "booking.stock.reserved"
	TopicStockRejected  = "booking.stock.rejected"
	TopicStockReleased  = "booking.stock.released"
	TopicAudit          = "booking.audit"
)

// Partition key = booking_id so all events of one booking keep their order.
func PartitionKey(bookingID string) []byte { return []byte(bookingID) }
