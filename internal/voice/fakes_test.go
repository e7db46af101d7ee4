package voice

import (
	"context"
	"fmt"
	"sync"

	"github.com/liuscraft/orion-voice/internal/engine"
	"github.com/liuscraft/orion-voice/internal/permission"
)

type fakeEngine struct {
	factory *fakeFactory

	mu       sync.Mutex
	listener engine.Listener
	started  []engine.StartParams
	finished []string
	canceled []string
	shutdown bool

	startErr    error
	finishErr   error
	cancelErr   error
	shutdownErr error
	// onFinish 在 Finish 内部同步触发，模拟引擎刷出剩余结果
	onFinish func(l engine.Listener, sessionID string)
}

func (e *fakeEngine) SetListener(l engine.Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listener = l
}

func (e *fakeEngine) Listener() engine.Listener {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.listener
}

func (e *fakeEngine) StartListening(p engine.StartParams) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started = append(e.started, p)
	return e.startErr
}

func (e *fakeEngine) Finish(id string) error {
	e.mu.Lock()
	e.finished = append(e.finished, id)
	hook, l, err := e.onFinish, e.listener, e.finishErr
	e.mu.Unlock()
	if hook != nil {
		hook(l, id)
	}
	return err
}

func (e *fakeEngine) Cancel(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.canceled = append(e.canceled, id)
	return e.cancelErr
}

func (e *fakeEngine) Shutdown() error {
	e.mu.Lock()
	already := e.shutdown
	e.shutdown = true
	e.mu.Unlock()
	if !already {
		e.factory.release()
	}
	return e.shutdownErr
}

func (e *fakeEngine) IsShutdown() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shutdown
}

type fakeFactory struct {
	mu       sync.Mutex
	engines  []*fakeEngine
	params   []engine.Params
	live     int
	maxLive  int
	failures []error

	available    bool
	availableErr error
	availPanic   bool

	// configure 在新引擎返回前调整其行为
	configure func(e *fakeEngine)
}

func (f *fakeFactory) CreateEngine(_ context.Context, params engine.Params) (engine.Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params = append(f.params, params)
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return nil, err
	}
	e := &fakeEngine{factory: f}
	if f.configure != nil {
		f.configure(e)
	}
	f.engines = append(f.engines, e)
	f.live++
	if f.live > f.maxLive {
		f.maxLive = f.live
	}
	return e, nil
}

func (f *fakeFactory) Available(context.Context) (bool, error) {
	if f.availPanic {
		panic("capability probe exploded")
	}
	return f.available, f.availableErr
}

func (f *fakeFactory) release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live--
}

func (f *fakeFactory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.engines)
}

func (f *fakeFactory) Last() *fakeEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.engines) == 0 {
		return nil
	}
	return f.engines[len(f.engines)-1]
}

func (f *fakeFactory) Live() (live, maxLive int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live, f.maxLive
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("session-%d", n)
	}
}

func newTestController(factory *fakeFactory, granted bool) (*Controller, *Recorder) {
	rec := NewRecorder()
	gate := permission.NewGate(permission.Static(granted))
	return NewController(factory, gate, rec, WithIDGenerator(sequentialIDs())), rec
}
