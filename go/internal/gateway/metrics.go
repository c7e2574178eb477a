package gateway

// MetricsCollector receives gateway counters
type MetricsCollector interface {
	ConnectionOpened(authenticated bool)
	ConnectionClosed(authenticated bool)
	MessageReceived(msgType string)
	MessageDropped(reason string)
	MessageBroadcast(msgType string, recipients int)
	StaleConnection()
}

// Drop reasons reported to MessageDropped
const (
	DropAnonymous    = "anonymous"
	DropInvalidJSON  = "invalid_json"
	DropInvalidState = "invalid_state"
	DropInvalidData  = "invalid_data"
	DropUnknownType  = "unknown_type"
)

// NoOpMetrics discards everything
type NoOpMetrics struct{}

func (NoOpMetrics) ConnectionOpened(bool) {}
func (NoOpMetrics) ConnectionClosed(bool) {}
func (NoOpMetrics) MessageReceived(string) {}
func (NoOpMetrics) MessageDropped(string) {}
func (NoOpMetrics) MessageBroadcast(string, int) {}
func (NoOpMetrics) StaleConnection() {}
