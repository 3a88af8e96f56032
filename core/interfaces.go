package core

import "context"

// Operation represents a modifying backend storage operation, one of Create, Update, Delete
type Operation string

// all modifying database operations
const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// Notifier is an interface to receive database notifications.
//
// Notify is called after a modifying operation has been committed. The payload is
// the JSON representation of the affected record. Implementations must not block
// the request for longer than it takes to hand the notification over.
type Notifier interface {
	Notify(ctx context.Context, resource string, operation Operation, payload []byte)
}
