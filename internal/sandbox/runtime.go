package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/jsforge/backend/internal/engine"
)

// Runtime wraps a goja VM with security controls
type Runtime struct {
	vm     *goja.Runtime
	config Config
	mu     sync.Mutex

	// Console output
	console   []LogEntry
	consoleMu sync.Mutex

	// Timer callbacks queued by the running script
	timers []timerTask
}

// timerTask is one setTimeout registration
type timerTask struct {
	fn    goja.Callable
	delay time.Duration
}

// New creates a sandboxed runtime
func New(config Config) (*Runtime, error) {
	vm := goja.New()

	r := &Runtime{
		vm:      vm,
		config:  config,
		console: []LogEntry{},
	}

	if config.MaxCallStackSize > 0 {
		vm.SetMaxCallStackSize(config.MaxCallStackSize)
	}

	if err := r.setupGlobals(); err != nil {
		return nil, err
	}

	return r, nil
}

// Run executes script under the given context and limits. It satisfies
// the engine Runner contract: the returned value is an *Output.
func (r *Runtime) Run(ctx context.Context, script string, limits engine.RunLimits) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Clear per-run state
	r.consoleMu.Lock()
	r.console = []LogEntry{}
	r.consoleMu.Unlock()
	r.timers = nil
	r.vm.ClearInterrupt()

	// Interrupt the VM when the context ends
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				r.vm.Interrupt("execution timeout exceeded")
			} else {
				r.vm.Interrupt("execution cancelled")
			}
		case <-done:
		}
	}()

	val, err := r.vm.RunString(script)
	if err == nil {
		err = r.drainTimers(ctx, limits)
	}

	close(done)
	r.vm.ClearInterrupt()

	if err != nil {
		return nil, err
	}

	value, err := r.settleValue(val, limits)
	if err != nil {
		return nil, err
	}

	out := &Output{Value: value}

	r.consoleMu.Lock()
	out.Console = append([]LogEntry{}, r.console...)
	r.consoleMu.Unlock()

	return out, nil
}

// drainTimers runs queued setTimeout callbacks in delay order, bounded by
// the async wait budget and the callback count limit. Callbacks may queue
// further timers; those join the same drain.
func (r *Runtime) drainTimers(ctx context.Context, limits engine.RunLimits) error {
	if len(r.timers) == 0 {
		return nil
	}

	budget := limits.AsyncWaitTime
	if budget <= 0 {
		budget = 100 * time.Millisecond
	}
	deadline := time.Now().Add(budget)

	processed := 0
	for len(r.timers) > 0 {
		if limits.LoopIterationLimit > 0 && processed >= limits.LoopIterationLimit {
			return nil
		}

		sort.SliceStable(r.timers, func(i, j int) bool {
			return r.timers[i].delay < r.timers[j].delay
		})
		task := r.timers[0]
		r.timers = r.timers[1:]

		// Drop timers that would outlive the async budget
		if task.delay > time.Until(deadline) {
			return nil
		}
		if task.delay > 0 {
			timer := time.NewTimer(task.delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}

		if _, err := task.fn(goja.Undefined()); err != nil {
			return err
		}
		processed++
	}

	return nil
}

// settleValue exports the script result, unwrapping a returned promise
// from its settled state.
func (r *Runtime) settleValue(val goja.Value, limits engine.RunLimits) (any, error) {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, nil
	}

	if p, ok := val.Export().(*goja.Promise); ok {
		switch p.State() {
		case goja.PromiseStateFulfilled:
			return exportValue(p.Result()), nil
		case goja.PromiseStateRejected:
			return nil, fmt.Errorf("unhandled promise rejection: %s", p.Result().String())
		default:
			return nil, fmt.Errorf("promise did not settle within timeout (%s)", limits.PromiseTimeout)
		}
	}

	return val.Export(), nil
}

// setupGlobals configures global objects and security
func (r *Runtime) setupGlobals() error {
	// Remove dangerous globals
	r.vm.Set("require", goja.Undefined())
	r.vm.Set("process", goja.Undefined())
	r.vm.Set("module", goja.Undefined())
	r.vm.Set("exports", goja.Undefined())

	// Setup console if enabled
	if r.config.EnableConsole {
		console := r.vm.NewObject()
		console.Set("log", r.makeConsoleFunc("log"))
		console.Set("warn", r.makeConsoleFunc("warn"))
		console.Set("error", r.makeConsoleFunc("error"))
		console.Set("info", r.makeConsoleFunc("info"))
		console.Set("debug", r.makeConsoleFunc("debug"))
		r.vm.Set("console", console)
	}

	// setTimeout queues the callback for the post-script drain
	r.vm.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			return goja.Undefined()
		}
		delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
		r.timers = append(r.timers, timerTask{fn: fn, delay: delay})
		return r.vm.ToValue(len(r.timers))
	})
	r.vm.Set("clearTimeout", func(call goja.FunctionCall) goja.Value {
		return goja.Undefined()
	})

	// setInterval would never terminate; it runs at most once
	r.vm.Set("setInterval", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			return goja.Undefined()
		}
		delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
		r.timers = append(r.timers, timerTask{fn: fn, delay: delay})
		return r.vm.ToValue(len(r.timers))
	})
	r.vm.Set("clearInterval", func(call goja.FunctionCall) goja.Value {
		return goja.Undefined()
	})

	return nil
}

// makeConsoleFunc creates a console function
func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		var msg string
		for i, arg := range call.Arguments {
			if i > 0 {
				msg += " "
			}
			msg += arg.String()
		}

		r.consoleMu.Lock()
		r.console = append(r.console, LogEntry{
			Level:   level,
			Message: msg,
			Time:    time.Now(),
		})
		r.consoleMu.Unlock()

		return goja.Undefined()
	}
}

// exportValue converts a goja value to a Go value
func exportValue(val goja.Value) any {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}

// Reset clears the runtime state
func (r *Runtime) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.vm = goja.New()
	if r.config.MaxCallStackSize > 0 {
		r.vm.SetMaxCallStackSize(r.config.MaxCallStackSize)
	}
	r.console = []LogEntry{}
	r.timers = nil
	return r.setupGlobals()
}

// Close releases resources
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.vm = nil
	r.console = nil
	r.timers = nil
	return nil
}
