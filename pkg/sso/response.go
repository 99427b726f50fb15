package sso

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

func (s Status) Valid() bool {
	return s == StatusSuccess || s == StatusError
}

// Context is the opaque per-user blob a contextual provider stores.
type Context = map[string]any

var ErrMalformedEnvelope = errors.New("malformed envelope")

// Response is the envelope every call produces. It is immutable; accessors
// that return maps return copies.
type Response struct {
	call         Call
	status       Status
	data         map[string]any
	errorMessage string
	errorCode    int
	hasCode      bool
}

// NewResponse builds an envelope from its parts. An unknown status is
// rejected with InvalidStatusForResponse. For error envelopes the message and
// code are lifted from data["message"] and data["code"] when present.
func NewResponse(
	call Call,
	status Status,
	data map[string]any,
) (
	*Response,
	error,
) {
	if !status.Valid() {
		return nil, &CallError{
			Call:    call,
			Kind:    InvalidStatusForResponse,
			Message: fmt.Sprintf("%s: %s", InvalidStatusForResponse.Message(), status),
		}
	}

	r := &Response{
		call:   call,
		status: status,
		data:   cloneData(data),
	}
	if status == StatusError {
		if msg, ok := r.data["message"].(string); ok {
			r.errorMessage = msg
		}
		r.errorCode, r.hasCode = toCode(r.data["code"])
	}
	return r, nil
}

// Success builds a success envelope.
func Success(call Call, data map[string]any) *Response {
	return &Response{
		call:   call,
		status: StatusSuccess,
		data:   cloneData(data),
	}
}

// Failure builds an error envelope with an explicit message and code. Extra
// data is kept alongside the message and code.
func Failure(
	call Call,
	message string,
	code int,
	data map[string]any,
) *Response {
	d := cloneData(data)
	d["message"] = message
	d["code"] = code
	return &Response{
		call:         call,
		status:       StatusError,
		data:         d,
		errorMessage: message,
		errorCode:    code,
		hasCode:      true,
	}
}

// ErrorResponse renders a taxonomy error as an error envelope.
func ErrorResponse(err *CallError) *Response {
	return Failure(err.Call, err.Message, err.Kind.Code(), nil)
}

func (r *Response) Call() Call {
	return r.call
}

func (r *Response) Status() Status {
	return r.status
}

func (r *Response) IsSuccess() bool {
	return r.status == StatusSuccess
}

func (r *Response) IsError() bool {
	return r.status == StatusError
}

// Data returns a copy of the envelope data.
func (r *Response) Data() map[string]any {
	return cloneData(r.data)
}

// ErrorMessage returns the message of an error envelope, or "" on success.
func (r *Response) ErrorMessage() string {
	return r.errorMessage
}

// ErrorCode returns the code of an error envelope. The boolean is false when
// the envelope is a success or carried no code.
func (r *Response) ErrorCode() (int, bool) {
	return r.errorCode, r.hasCode
}

// Is reports whether the envelope is an error of the given kind.
func (r *Response) Is(kind Kind) bool {
	return r.IsError() && r.hasCode && r.errorCode == kind.Code()
}

// Err returns the envelope's failure as a *CallError, or nil on success.
// Codes outside the taxonomy are returned with their raw value as the kind.
func (r *Response) Err() error {
	if !r.IsError() {
		return nil
	}
	return &CallError{
		Call:    r.call,
		Kind:    Kind(r.errorCode),
		Message: r.errorMessage,
	}
}

// Get returns data[key], or nil when absent. Maps and slices are copies.
func (r *Response) Get(key string) any {
	return cloneValue(r.data[key])
}

// GetString returns data[key] when it is a string.
func (r *Response) GetString(key string) string {
	s, _ := r.data[key].(string)
	return s
}

// Metadata returns data["metadata"][key]. It returns nil when the metadata is
// missing or not a mapping.
func (r *Response) Metadata(key string) any {
	md, ok := r.data["metadata"].(map[string]any)
	if !ok {
		return nil
	}
	return cloneValue(md[key])
}

// ToWireMap renders the canonical wire shape.
func (r *Response) ToWireMap() map[string]any {
	data := cloneData(r.data)
	if r.IsError() {
		data["message"] = r.errorMessage
		if r.hasCode {
			data["code"] = r.errorCode
		}
	}
	return map[string]any{
		"status": string(r.status),
		"data":   data,
		"call":   string(r.call),
	}
}

// FromWireMap rebuilds an envelope from its wire shape.
func FromWireMap(m map[string]any) (*Response, error) {
	status, ok := m["status"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: missing status", ErrMalformedEnvelope)
	}
	name, _ := m["call"].(string)
	call, ok := ParseCall(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown call %q", ErrMalformedEnvelope, name)
	}

	var data map[string]any
	switch d := m["data"].(type) {
	case nil:
	case map[string]any:
		data = d
	default:
		return nil, fmt.Errorf("%w: data is %T", ErrMalformedEnvelope, m["data"])
	}

	return NewResponse(call, Status(status), data)
}

func (r *Response) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToWireMap())
}

func (r *Response) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if m == nil {
		return fmt.Errorf("%w: not an object", ErrMalformedEnvelope)
	}

	res, err := FromWireMap(m)
	if err != nil {
		return err
	}
	*r = *res
	return nil
}

func cloneData(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	return cloneValue(data).(map[string]any)
}

// cloneValue copies nested maps and slices so no caller shares them with
// an envelope.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if t == nil {
			return t
		}
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = cloneValue(inner)
		}
		return out
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = cloneValue(inner)
		}
		return out
	case map[string]string:
		return maps.Clone(t)
	case []string:
		return slices.Clone(t)
	default:
		return v
	}
}

func toCode(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}
