/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

// Package coordinator is the entry point agents use to share tasks, messages
// and project state. It fronts either the semantic backend (everything in the
// vector index) or the ledger backend (SQL records, optionally mirrored into
// the index for fuzzy search), and records an activity trail for every write.
package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hortator-ai/conclave/api/v1alpha1"
	"github.com/hortator-ai/conclave/internal/activity"
	"github.com/hortator-ai/conclave/internal/ledger"
	"github.com/hortator-ai/conclave/internal/llm"
	"github.com/hortator-ai/conclave/internal/semantic"
	"github.com/hortator-ai/conclave/internal/telemetry"
	"github.com/hortator-ai/conclave/internal/vectorstore"
)

var (
	// ErrUnknownBackend is returned by New for a backend other than
	// "semantic" or "ledger".
	ErrUnknownBackend = errors.New("unknown coordination backend")

	// ErrUnsupported is returned for operations the configured backend
	// cannot serve, such as conditional updates on the semantic backend.
	ErrUnsupported = errors.New("operation not supported by the configured backend")

	// ErrInvalid marks caller errors: unknown statuses, empty agents.
	ErrInvalid = errors.New("invalid argument")
)

var tracer = telemetry.Tracer("coordinator")

// TaskStore is implemented by semantic.Tasks and ledger.Tasks.
type TaskStore interface {
	Save(ctx context.Context, agent, description string, status v1alpha1.TaskStatus, deps []string, metadata map[string]any) (string, error)
	Get(ctx context.Context, id string) (v1alpha1.Task, error)
	ListByAgent(ctx context.Context, agent string, status v1alpha1.TaskStatus) ([]v1alpha1.Task, error)
	UpdateStatus(ctx context.Context, id string, status v1alpha1.TaskStatus, result string) error
}

// ConditionalTaskStore updates a task only while it still has the expected
// status.
type ConditionalTaskStore interface {
	UpdateStatusIf(ctx context.Context, id string, expected, next v1alpha1.TaskStatus, result string) error
}

// MessageBus is implemented by semantic.Bus and ledger.Bus.
type MessageBus interface {
	Send(ctx context.Context, from, to, message string, typ v1alpha1.MessageType, data any) (string, error)
	Receive(ctx context.Context, agent string) ([]v1alpha1.Communication, error)
}

// MessageDeliverer is a MessageBus that returns the message as stored,
// timestamp included. ledger.Bus implements it.
type MessageDeliverer interface {
	Deliver(ctx context.Context, from, to, message string, typ v1alpha1.MessageType, data any) (v1alpha1.Communication, error)
}

// StateStore is implemented by semantic.States and ledger.States.
type StateStore interface {
	Save(ctx context.Context, state v1alpha1.ProjectState) (v1alpha1.ProjectState, error)
	Current(ctx context.Context) (*v1alpha1.ProjectState, error)
}

// VersionedStateStore appends a snapshot only when the newest stored
// snapshot has the expected version.
type VersionedStateStore interface {
	SaveIfVersion(ctx context.Context, state v1alpha1.ProjectState, version int64) (v1alpha1.ProjectState, error)
	History(ctx context.Context, limit int) ([]v1alpha1.ProjectState, error)
}

// Invoker is the model client; *llm.Client implements it.
type Invoker interface {
	Invoke(ctx context.Context, model string, messages []llm.Message, opts ...llm.CallOption) (llm.Result, error)
}

// ActivityReader lists recorded activity; activity.SQL implements it.
type ActivityReader interface {
	Recent(ctx context.Context, agent string, limit int) ([]activity.Entry, error)
}

// Coordinator routes operations to the configured stores.
type Coordinator struct {
	Backend string

	Tasks  TaskStore
	Bus    MessageBus
	States StateStore

	// Index and Messages serve fuzzy search. In semantic mode they are the
	// primary stores; in ledger mode they are set only when mirroring.
	Index    *semantic.Tasks
	Messages *semantic.Bus
	// Mirror copies ledger writes into Index and Messages.
	Mirror bool

	LLM          Invoker
	DefaultModel string
	CallOptions  []llm.CallOption
	// Prices, when set, adds an estimated USD cost to each ask.
	Prices *llm.PriceMap

	Activity activity.Logger
	Log      logr.Logger

	// Health checks each backing service; keys name the dependency.
	Health map[string]func(context.Context) error
}

// IsNotFound reports whether err means the requested record does not exist
// in either backend.
func IsNotFound(err error) bool {
	return errors.Is(err, ledger.ErrNotFound) || errors.Is(err, vectorstore.ErrNotFound)
}

// IsConflict reports whether err is a failed conditional write.
func IsConflict(err error) bool {
	return errors.Is(err, ledger.ErrConflict)
}

// observe opens a span and returns the func that closes it and records the
// operation metrics. Callers defer it with a pointer to their named error.
func (c *Coordinator) observe(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	attrs = append(attrs, attribute.String("conclave.backend", c.Backend))
	ctx, span := tracer.Start(ctx, "coordinator."+op, trace.WithAttributes(attrs...))
	start := time.Now()
	return ctx, func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		result := "success"
		switch {
		case err == nil:
		case IsConflict(err):
			result = "conflict"
		case IsNotFound(err):
			result = "not_found"
		default:
			result = "error"
		}
		operationsTotal.WithLabelValues(op, c.Backend, result).Inc()
		operationDuration.WithLabelValues(op, c.Backend).Observe(time.Since(start).Seconds())
		telemetry.EndSpan(span, err)
	}
}

// record appends an activity entry. Failures are logged and dropped so the
// trail never fails the operation it describes.
func (c *Coordinator) record(ctx context.Context, agent, action string, opErr error, details map[string]any) {
	if c.Activity == nil {
		return
	}
	e := activity.Entry{Agent: agent, Action: action, Level: activity.LevelInfo, Details: details}
	if opErr != nil {
		e.Level = activity.LevelError
		if e.Details == nil {
			e.Details = map[string]any{}
		}
		e.Details["error"] = opErr.Error()
	}
	if err := c.Activity.Log(ctx, e); err != nil {
		activityDroppedTotal.Inc()
		c.Log.Error(err, "Dropping activity entry", "agent", agent, "action", action)
	}
}

// mirroring reports whether ledger writes should be copied to the index.
func (c *Coordinator) mirroring() bool {
	return c.Mirror && c.Index != nil
}

// taskWritten reloads a task after a successful write to mirror it and to
// attribute the activity entry to its agent, then records the entry. agent
// may be empty when the caller only knows the id.
func (c *Coordinator) taskWritten(ctx context.Context, id, agent, action string, opErr error, details map[string]any) {
	if agent == "" {
		agent = taskAgent(id)
	}
	if opErr == nil && (c.mirroring() || (c.Activity != nil && c.Activity != activity.Discard)) {
		task, err := c.Tasks.Get(ctx, id)
		if err != nil {
			c.Log.Error(err, "Reloading task after write failed", "id", id)
		} else {
			agent = task.Agent
			c.mirrorTask(ctx, task)
		}
	}
	c.record(ctx, agent, action, opErr, details)
}

func (c *Coordinator) mirrorTask(ctx context.Context, task v1alpha1.Task) {
	if !c.mirroring() {
		return
	}
	if err := c.Index.Put(ctx, task); err != nil {
		mirrorFailuresTotal.WithLabelValues("task").Inc()
		c.Log.Error(err, "Mirroring task into the vector index failed", "id", task.ID)
	}
}

func (c *Coordinator) mirrorMessage(ctx context.Context, msg v1alpha1.Communication) {
	if !c.Mirror || c.Messages == nil {
		return
	}
	if err := c.Messages.Put(ctx, msg); err != nil {
		mirrorFailuresTotal.WithLabelValues("message").Inc()
		c.Log.Error(err, "Mirroring message into the vector index failed", "id", msg.ID)
	}
}

// Ping runs every health check and joins their errors.
func (c *Coordinator) Ping(ctx context.Context) error {
	var errs []error
	for name, check := range c.Health {
		if err := check(ctx); err != nil {
			errs = append(errs, errors.New(name+": "+err.Error()))
		}
	}
	return errors.Join(errs...)
}

// Recent returns recorded activity, newest first. It needs a SQL activity
// sink.
func (c *Coordinator) Recent(ctx context.Context, agent string, limit int) ([]activity.Entry, error) {
	r, ok := c.Activity.(ActivityReader)
	if !ok {
		return nil, ErrUnsupported
	}
	return r.Recent(ctx, agent, limit)
}
