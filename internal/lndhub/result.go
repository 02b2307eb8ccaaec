package lndhub

import "encoding/json"

// In-band error codes of the LndHub API.
const (
	CodeBadAuth       = 1
	CodeNoPermission  = 2
	CodeServerError   = 6
	CodeInvoiceFailed = 7
	CodeBadArguments  = 8
	CodePaymentFailed = 10
)

// ExternalError is the LndHub error envelope. Clients read it from a 200
// response body.
type ExternalError struct {
	Error   bool   `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Result is either an envelope to send as is or an ExternalError. Both
// serialize to a plain JSON body.
type Result struct {
	envelope interface{}
	err      *ExternalError
}

func Ok(envelope interface{}) Result {
	return Result{envelope: envelope}
}

func Fail(code int, message string) Result {
	return Result{err: &ExternalError{Error: true, Code: code, Message: message}}
}

func (r Result) IsError() bool {
	return r.err != nil
}

// Err returns the error envelope, nil for an Ok result.
func (r Result) Err() *ExternalError {
	return r.err
}

// Envelope returns the success payload, nil for a failed result.
func (r Result) Envelope() interface{} {
	return r.envelope
}

func (r Result) MarshalJSON() ([]byte, error) {
	if r.err != nil {
		return json.Marshal(r.err)
	}
	return json.Marshal(r.envelope)
}
