package protoo

import (
	"encoding/json"
	"fmt"
)

// Message is a protoo request, response or notification.
type Message struct {
	Request      bool            `json:"request,omitempty"`
	Response     bool            `json:"response,omitempty"`
	Notification bool            `json:"notification,omitempty"`
	Id           uint32          `json:"id,omitempty"`
	Method       string          `json:"method,omitempty"`
	Ok           bool            `json:"ok,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	ErrorCode    int             `json:"errorCode,omitempty"`
	ErrorReason  string          `json:"errorReason,omitempty"`
}

func createRequest(id uint32, method string, data json.RawMessage) Message {
	return Message{Request: true, Id: id, Method: method, Data: data}
}

func createSuccessResponse(request Message, data json.RawMessage) Message {
	return Message{Response: true, Id: request.Id, Ok: true, Data: data}
}

func createErrorResponse(request Message, code int, reason string) Message {
	return Message{Response: true, Id: request.Id, ErrorCode: code, ErrorReason: reason}
}

func createNotification(method string, data json.RawMessage) Message {
	return Message{Notification: true, Method: method, Data: data}
}

// marshalData encodes data; nil becomes an empty object.
func marshalData(data interface{}) (json.RawMessage, error) {
	switch v := data.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		if len(v) == 0 {
			return json.RawMessage("{}"), nil
		}
		return v, nil
	}
	return json.Marshal(data)
}

// ResponseError is the error response of a request.
type ResponseError struct {
	Code   int
	Reason string
}

// NewResponseError returns a ResponseError. A RequestHandler returns it to
// answer with a given error code.
func NewResponseError(code int, reason string) error {
	return ResponseError{Code: code, Reason: reason}
}

func (e ResponseError) Error() string {
	return fmt.Sprintf("protoo: request failed [errorCode:%d, errorReason:%s]", e.Code, e.Reason)
}
