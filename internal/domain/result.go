package domain

// ResultCodeSuccess and ResultCodeFailure are the venue response codes.
// Any code other than ResultCodeFailure counts as success.
const (
	ResultCodeSuccess = 0
	ResultCodeFailure = -1
)

// ExecutionResult outcome of a single venue call that moves funds.
type ExecutionResult struct {
	Code    int
	Message string
	// OrderID venue order or withdrawal identifier, empty on failure.
	OrderID string
}

// OK reports whether the venue accepted the call.
func (r ExecutionResult) OK() bool {
	return r.Code != ResultCodeFailure
}

// Succeeded builds a successful result.
func Succeeded(id, msg string) ExecutionResult {
	return ExecutionResult{Code: ResultCodeSuccess, Message: msg, OrderID: id}
}

// Failed builds a failed result carrying the venue message.
func Failed(msg string) ExecutionResult {
	return ExecutionResult{Code: ResultCodeFailure, Message: msg}
}
