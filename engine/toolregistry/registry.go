// Package toolregistry is the out-of-scope tool-registry collaborator
// described in §6: a lookup service returning tool metadata and a callable
// handler. This engine never defines or executes tools itself — it only
// speaks the Registry interface and classifies the errors tools return.
package toolregistry

import (
	"context"
	"errors"
	"time"

	"github.com/SimbaBuilds/NL-To-Automation/engine/core"
)

// ErrorClass taxonomizes a tool failure so the executor and operators can
// reason about it without string-matching error messages. Only
// ErrorClassUsageLimit changes executor control
// flow (abort-remaining-actions, §4.2 step 2e); the other classes change
// nothing, and the ActionResult keeps only the error text, not the class.
type ErrorClass string

const (
	ErrorClassAuth       ErrorClass = "auth"
	ErrorClassRateLimit  ErrorClass = "rate_limit"
	ErrorClassUsageLimit ErrorClass = "usage_limit"
	ErrorClassTransient  ErrorClass = "transient"
	ErrorClassPermanent  ErrorClass = "permanent"
)

// ErrUsageLimitExceeded is the sentinel the executor checks for with
// errors.Is to detect the usage-limit abort condition (§4.2 step 2e,
// §7 "Usage-limit sentinel from tool").
var ErrUsageLimitExceeded = errors.New("tool usage limit exceeded")

// Error wraps a tool failure with its classification. Is reports a match
// against ErrUsageLimitExceeded when Class is ErrorClassUsageLimit so
// callers can use the idiomatic errors.Is(err, toolregistry.ErrUsageLimitExceeded).
type Error struct {
	Class ErrorClass
	Tool  string
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Class) + " error from tool " + e.Tool
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target == ErrUsageLimitExceeded && e.Class == ErrorClassUsageLimit
}

// Descriptor is the tool metadata returned by get_by_name (§6).
type Descriptor struct {
	Name             string
	Description      string
	Tags             []string
	ParametersSchema map[string]any
	ReturnsSchema    map[string]any
}

// ExecuteOptions carries per-invocation overrides. A zero Timeout is not
// defaulted here: the client then sends no timeout to the registry. The
// executor always passes its action timeout (30s unless configured).
type ExecuteOptions struct {
	Timeout time.Duration
}

// Registry is the collaborator interface this engine depends on. A real
// implementation talks to the out-of-scope tool-registry service; tests use
// a fake.
type Registry interface {
	GetByName(ctx context.Context, name string) (Descriptor, error)
	Execute(ctx context.Context, name string, params map[string]any, ownerID core.ID, opts ExecuteOptions) (any, error)
}
