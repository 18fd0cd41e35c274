// Package validators runs declarative field checks against a request. Every
// field is checked by an ordered list of rules. Plain rule failures are
// collected into one validation error, typed errors that aren't validation
// errors (401, 403, 404, ...) abort the whole request immediately.
package validators

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"bitwise74/account-api/pkg/apperr"

	"github.com/sourcegraph/conc/pool"
)

type Location string

const (
	Body   Location = "body"
	Header Location = "headers"
	Params Location = "params"
)

// Rule checks a single value. It returns the value the next rule should see,
// which lets sanitizers like Trim rewrite the field.
type Rule func(ctx context.Context, v any, r *Request) (any, error)

type Field struct {
	Name string
	In   Location
	// Optional fields are skipped entirely when absent from the request
	Optional bool
	// Sensitive fields never echo their value back in errors
	Sensitive bool
	Rules     []Rule
}

// Schema is checked field by field. Fields run concurrently, the rules of a
// single field run in order and stop at the first failure.
type Schema []Field

// Request is the view of an HTTP request the rules work on. It's shared by
// every stage of a route so values stored by one guard are visible to the
// next.
type Request struct {
	Header http.Header
	Params map[string]string

	mu     sync.RWMutex
	body   map[string]any
	locals map[string]any
}

func NewRequest(body map[string]any, header http.Header, params map[string]string) *Request {
	if body == nil {
		body = map[string]any{}
	}

	return &Request{
		Header: header,
		Params: params,
		body:   body,
		locals: map[string]any{},
	}
}

// BodyValue returns a top level body field
func (r *Request) BodyValue(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.body[name]
	return v, ok
}

// Body returns a copy of the (sanitized) body
func (r *Request) Body() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cp := make(map[string]any, len(r.body))
	for k, v := range r.body {
		cp[k] = v
	}

	return cp
}

// ReplaceBody swaps the body, used by filter stages
func (r *Request) ReplaceBody(body map[string]any) {
	r.mu.Lock()
	r.body = body
	r.mu.Unlock()
}

func (r *Request) setBody(name string, v any) {
	r.mu.Lock()
	r.body[name] = v
	r.mu.Unlock()
}

// Set stores a value for later stages, like a decoded token
func (r *Request) Set(key string, v any) {
	r.mu.Lock()
	r.locals[key] = v
	r.mu.Unlock()
}

func (r *Request) Get(key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.locals[key]
	return v, ok
}

// Locals returns a copy of everything stored with Set
func (r *Request) Locals() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cp := make(map[string]any, len(r.locals))
	for k, v := range r.locals {
		cp[k] = v
	}

	return cp
}

func (r *Request) lookup(f Field) (any, bool) {
	switch f.In {
	case Header:
		v := r.Header.Get(f.Name)
		return v, v != ""
	case Params:
		v, ok := r.Params[f.Name]
		return v, ok && v != ""
	default:
		return r.BodyValue(f.Name)
	}
}

type Outcome int

const (
	Proceed Outcome = iota
	Aggregate
	Abort
)

// Result is what a schema run decided. Fields is set for Aggregate, Err for
// Abort.
type Result struct {
	Outcome Outcome
	Fields  map[string]apperr.FieldError
	Err     *apperr.Error
}

// Error returns nil on Proceed, otherwise the error to hand to the error
// handler
func (r Result) Error() error {
	switch r.Outcome {
	case Aggregate:
		return apperr.Validation(r.Fields)
	case Abort:
		return r.Err
	}

	return nil
}

type Engine struct {
	// MaxConcurrency bounds how many fields are checked at once. Zero means
	// no limit.
	MaxConcurrency int
}

func NewEngine(maxConcurrency int) *Engine {
	return &Engine{MaxConcurrency: maxConcurrency}
}

// Run checks every field of s against r. All fields are awaited before a
// decision is made, except that the first aborting error cancels whatever
// hasn't finished yet.
func (e *Engine) Run(ctx context.Context, s Schema, r *Request) Result {
	var (
		mu     sync.Mutex
		fields = map[string]apperr.FieldError{}
	)

	p := pool.New().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
	if e.MaxConcurrency > 0 {
		p = p.WithMaxGoroutines(e.MaxConcurrency)
	}

	for _, f := range s {
		p.Go(func(ctx context.Context) error {
			if ctx.Err() != nil {
				return nil
			}

			fe, err := e.runField(ctx, f, r)
			if err != nil {
				return err
			}

			if fe != nil {
				mu.Lock()
				fields[f.Name] = *fe
				mu.Unlock()
			}

			return nil
		})
	}

	if err := p.Wait(); err != nil {
		var ae *apperr.Error
		if !errors.As(err, &ae) {
			ae = apperr.Internal(err)
		}

		return Result{Outcome: Abort, Err: ae}
	}

	// The caller went away while fields were being checked
	if err := ctx.Err(); err != nil {
		return Result{Outcome: Abort, Err: apperr.Unavailable(err)}
	}

	if len(fields) > 0 {
		return Result{Outcome: Aggregate, Fields: fields}
	}

	return Result{Outcome: Proceed}
}

// runField returns a field error for plain failures and a non-nil error only
// when the request must abort
func (e *Engine) runField(ctx context.Context, f Field, r *Request) (*apperr.FieldError, error) {
	v, present := r.lookup(f)
	if !present && f.Optional {
		return nil, nil
	}

	for _, rule := range f.Rules {
		if ctx.Err() != nil {
			return nil, nil
		}

		next, err := rule(ctx, v, r)
		if err != nil {
			if ae, ok := apperr.As(err); ok && ae.Aborts() {
				return nil, ae
			}

			fe := &apperr.FieldError{
				Message:  err.Error(),
				Location: string(f.In),
			}
			if ae, ok := apperr.As(err); ok {
				fe.Message = ae.Message
			}
			if !f.Sensitive {
				fe.Value = v
			}

			return fe, nil
		}

		v = next
	}

	if f.In == Body && present {
		r.setBody(f.Name, v)
	}

	return nil, nil
}
