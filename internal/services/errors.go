package services

import (
	"fmt"
	"strings"
)

// FieldError carries field-level detail for a rejected request.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError rejects a malformed donation intent or settings payload
// before any gateway call is made.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// GatewayAuthError signals a credential or configuration failure while
// acquiring an access token.
type GatewayAuthError struct {
	Reason string
	Err    error
}

func (e *GatewayAuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("M-Pesa authentication failed: %s: %v", e.Reason, e.Err)
	}
	return "M-Pesa authentication failed: " + e.Reason
}

func (e *GatewayAuthError) Unwrap() error { return e.Err }

// GatewayRequestError signals an STK push or status query rejected by the
// provider. The donation stays pending: the push may still have reached
// the subscriber's phone.
type GatewayRequestError struct {
	Op  string
	Err error
}

func (e *GatewayRequestError) Error() string {
	return fmt.Sprintf("M-Pesa %s failed: %v", e.Op, e.Err)
}

func (e *GatewayRequestError) Unwrap() error { return e.Err }

// AuthorizationError rejects a non-admin actor attempting a privileged
// operation.
type AuthorizationError struct {
	Action string
}

func (e *AuthorizationError) Error() string {
	return "not authorized to " + e.Action
}
