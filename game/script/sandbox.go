// Package script runs JavaScript turn hooks inside a pool of sandboxed goja
// VMs. A hook script sees the current turn as the global `turn` object
// ({npc, session, typed, outcome, lines}); assignments to `turn.typed` and
// `turn.lines` are copied back. A script whose last expression is `false`
// stops the remaining hooks of the event.
package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dop251/goja"
	"github.com/kasuganosora/npctalk/server/plugin/hook"
	"go.uber.org/zap"
)

// ErrTimeout is returned when a script exceeds the execution time limit.
var ErrTimeout = errors.New("script: execution timed out")

// ErrPanic is returned when a script crashes the VM.
var ErrPanic = errors.New("script: uncaught exception")

// VMPool is a thread-safe pool of pre-initialised goja runtimes.
type VMPool struct {
	pool    chan *goja.Runtime
	timeout time.Duration
	logger  *zap.Logger
}

// NewVMPool creates a VMPool with the given concurrency size and per-script timeout.
func NewVMPool(size int, timeout time.Duration, logger *zap.Logger) *VMPool {
	if size <= 0 {
		size = 4
	}
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	p := &VMPool{
		pool:    make(chan *goja.Runtime, size),
		timeout: timeout,
		logger:  logger,
	}
	for i := 0; i < size; i++ {
		p.pool <- newSafeVM()
	}
	return p
}

// Run executes prog inside a pooled VM with data bound as `turn`.
// It returns the exported value of the last expression.
func (p *VMPool) Run(ctx context.Context, prog *goja.Program, data *hook.TurnData) (any, error) {
	select {
	case vm := <-p.pool:
		// returnToPool is cleared by runVM when the VM is tainted by an
		// interrupt and must be discarded rather than returned to the pool.
		returnToPool := true
		defer func() {
			if returnToPool {
				p.pool <- vm
			}
		}()
		return p.runVM(vm, prog, data, &returnToPool)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *VMPool) runVM(vm *goja.Runtime, prog *goja.Program, data *hook.TurnData, returnToPool *bool) (any, error) {
	turn := bindTurn(vm, data)

	timer := time.AfterFunc(p.timeout, func() {
		vm.Interrupt(ErrTimeout)
	})
	defer func() {
		timer.Stop()
		if *returnToPool {
			vm.ClearInterrupt()
		}
	}()

	var result goja.Value
	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				runErr = ErrPanic
			}
		}()
		result, runErr = vm.RunProgram(prog)
	}()

	if runErr != nil {
		var interrupted *goja.InterruptedError
		if errors.As(runErr, &interrupted) {
			// VM is tainted after an interrupt; discard it and add a fresh one.
			*returnToPool = false
			p.pool <- newSafeVM()
			return nil, ErrTimeout
		}
		var ex *goja.Exception
		if errors.As(runErr, &ex) {
			return nil, errors.New(ex.Error())
		}
		return nil, runErr
	}

	if err := readTurn(vm, turn, data); err != nil {
		return nil, err
	}
	if result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
		return nil, nil
	}
	return result.Export(), nil
}

// newSafeVM creates a goja Runtime with dangerous globals removed.
func newSafeVM() *goja.Runtime {
	vm := goja.New()
	for _, name := range []string{"require", "process", "fetch", "XMLHttpRequest", "eval", "Function"} {
		_ = vm.Set(name, goja.Undefined())
	}
	return vm
}

// bindTurn exposes data to the VM as the global `turn`.
func bindTurn(vm *goja.Runtime, data *hook.TurnData) *goja.Object {
	lines := make([]any, len(data.Lines))
	for i, l := range data.Lines {
		lines[i] = l
	}
	turn := vm.NewObject()
	_ = turn.Set("npc", data.NPC)
	_ = turn.Set("session", data.SessionID)
	_ = turn.Set("typed", data.Typed)
	_ = turn.Set("outcome", data.Outcome)
	_ = turn.Set("lines", vm.NewArray(lines...))
	_ = vm.Set("turn", turn)
	return turn
}

// readTurn copies the writable fields of `turn` back into data.
func readTurn(vm *goja.Runtime, turn *goja.Object, data *hook.TurnData) error {
	if v := turn.Get("typed"); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
		data.Typed = v.String()
	} else {
		data.Typed = ""
	}

	v := turn.Get("lines")
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		data.Lines = nil
		return nil
	}
	var lines []string
	if err := vm.ExportTo(v, &lines); err != nil {
		return fmt.Errorf("script: turn.lines: %w", err)
	}
	data.Lines = lines
	return nil
}

// Sandbox wraps a VMPool and turns scripts into hook handlers.
type Sandbox struct {
	pool   *VMPool
	logger *zap.Logger
}

// NewSandbox creates a Sandbox backed by a VMPool.
func NewSandbox(size int, timeout time.Duration, logger *zap.Logger) *Sandbox {
	return &Sandbox{
		pool:   NewVMPool(size, timeout, logger),
		logger: logger,
	}
}

// Compile parses src once so every turn reuses the program.
func Compile(name, src string) (*goja.Program, error) {
	prog, err := goja.Compile(name, src, true)
	if err != nil {
		return nil, fmt.Errorf("script: compile %s: %w", name, err)
	}
	return prog, nil
}

// Hook compiles src into a hook handler.
func (sb *Sandbox) Hook(name, src string) (hook.HookFn, error) {
	prog, err := Compile(name, src)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, event string, data *hook.TurnData) error {
		out, err := sb.pool.Run(ctx, prog, data)
		if err != nil {
			sb.logger.Warn("script hook error",
				zap.String("script", name),
				zap.String("event", event),
				zap.Error(err))
			return err
		}
		if b, ok := out.(bool); ok && !b {
			return hook.ErrInterrupt
		}
		return nil
	}, nil
}

// HookFile reads a script file and compiles it with Hook.
func (sb *Sandbox) HookFile(path string) (hook.HookFn, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("script: read %s: %w", path, err)
	}
	return sb.Hook(filepath.Base(path), string(src))
}
