package voice

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/liuscraft/orion-voice/internal/engine"
	"github.com/liuscraft/orion-voice/internal/logging"
	"github.com/liuscraft/orion-voice/internal/permission"
)

func TestStartSpeechForcesLocaleAndStartsListening(t *testing.T) {
	factory := &fakeFactory{}
	c, rec := newTestController(factory, true)
	ctx := context.Background()

	if err := c.StartSpeech(ctx, "en-US"); err != nil {
		t.Fatalf("StartSpeech() error = %v", err)
	}
	if len(factory.params) != 1 {
		t.Fatalf("CreateEngine called %d times", len(factory.params))
	}
	if p := factory.params[0]; p.Language != engine.LanguageZhCN || p.Region != engine.RegionCN || p.Online != engine.OnlineModeOffline {
		t.Errorf("params = %+v", p)
	}
	eng := factory.Last()
	if len(eng.started) != 1 {
		t.Fatalf("StartListening called %d times", len(eng.started))
	}
	sp := eng.started[0]
	if sp.SessionID != "session-1" || sp.Audio.SampleRate != 16000 || sp.Options.MaxAudioDuration.Milliseconds() != 60000 {
		t.Errorf("start params = %+v", sp)
	}
	if c.State() != StateListening {
		t.Errorf("state = %s, want Listening", c.State())
	}
	if c.IsRecognizing() {
		t.Error("recognizing before onStart")
	}

	eng.Listener().OnStart("session-1", "started")
	if !c.IsRecognizing() {
		t.Error("recognizing should be true after onStart")
	}
	if names := rec.Names(); !slices.Equal(names, []EventName{EventSpeechStart}) {
		t.Errorf("events = %v", names)
	}
}

func TestStartSpeechPermissionDenied(t *testing.T) {
	factory := &fakeFactory{}
	c, rec := newTestController(factory, false)

	err := c.StartSpeech(context.Background(), "zh-CN")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsKind(err, KindPermissionDenied) {
		t.Errorf("kind = %v", err)
	}
	payload := ErrorPayload(err)
	if payload == "" || !strings.Contains(payload, "authResults") {
		t.Errorf("payload = %q, want raw auth result", payload)
	}
	if factory.Created() != 0 {
		t.Error("engine created despite denial")
	}
	if c.IsRecognizing() {
		t.Error("recognizing after denial")
	}
	if c.State() != StateIdle {
		t.Errorf("state = %s", c.State())
	}
	if len(rec.Events()) != 0 {
		t.Errorf("events = %v", rec.Names())
	}
}

func TestStartSpeechPermissionRequestError(t *testing.T) {
	factory := &fakeFactory{}
	gate := permission.NewGate(permission.RequesterFunc(func(context.Context, []string) (permission.AuthResult, error) {
		return permission.AuthResult{}, errors.New("prompt dismissed")
	}))
	c := NewController(factory, gate, NewRecorder())

	err := c.StartSpeech(context.Background(), "")
	if !IsKind(err, KindPermissionDenied) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(ErrorPayload(err), "prompt dismissed") {
		t.Errorf("payload = %q", ErrorPayload(err))
	}
}

func TestStartSpeechBusyThenRetry(t *testing.T) {
	factory := &fakeFactory{failures: []error{engine.NewError(engine.CodeBusy, "engine busy")}}
	c, _ := newTestController(factory, true)
	ctx := context.Background()

	err := c.StartSpeech(ctx, "zh-CN")
	if !IsKind(err, KindEngineCreationFailed) {
		t.Fatalf("err = %v", err)
	}
	var voiceErr *Error
	if !errors.As(err, &voiceErr) || voiceErr.Code() != 1002200006 {
		t.Fatalf("code = %v", err)
	}
	if got := ErrorPayload(err); got != `{"code":1002200006,"message":"engine busy"}` {
		t.Errorf("payload = %s", got)
	}
	if !engine.IsCode(err, engine.CodeBusy) {
		t.Error("engine error not reachable through Unwrap")
	}
	if c.State() != StateIdle {
		t.Errorf("state after failure = %s", c.State())
	}

	if err := c.StartSpeech(ctx, "zh-CN"); err != nil {
		t.Fatalf("retry error = %v", err)
	}
	if c.State() != StateListening {
		t.Errorf("state after retry = %s", c.State())
	}
}

func TestStartSpeechListeningFailure(t *testing.T) {
	factory := &fakeFactory{configure: func(e *fakeEngine) {
		e.startErr = engine.NewError(engine.CodeStartFailed, "audio init timeout")
	}}
	c, rec := newTestController(factory, true)

	err := c.StartSpeech(context.Background(), "zh-CN")
	if err == nil || ErrorPayload(err) != `{"code":1002200002,"message":"audio init timeout"}` {
		t.Fatalf("err = %v", err)
	}
	if !factory.Last().IsShutdown() {
		t.Error("engine not released after failed start")
	}
	if live, _ := factory.Live(); live != 0 {
		t.Errorf("live engines = %d", live)
	}
	if c.State() != StateIdle || c.SessionID() != "" {
		t.Errorf("state = %s session = %q", c.State(), c.SessionID())
	}
	if names := rec.Names(); !slices.Equal(names, []EventName{EventSpeechError}) {
		t.Errorf("events = %v", names)
	}
}

func TestAtMostOneLiveEngine(t *testing.T) {
	factory := &fakeFactory{}
	c, _ := newTestController(factory, true)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := c.StartSpeech(ctx, "zh-CN"); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
	}
	_ = c.StopSpeech(ctx)
	_ = c.StartSpeech(ctx, "zh-CN")
	_ = c.CancelSpeech(ctx)
	_ = c.DestroySpeech(ctx)
	_ = c.StartSpeech(ctx, "zh-CN")

	live, maxLive := factory.Live()
	if maxLive != 1 {
		t.Errorf("max live engines = %d, want 1", maxLive)
	}
	if live != 1 {
		t.Errorf("live engines = %d, want 1", live)
	}
	for _, eng := range factory.engines[:len(factory.engines)-1] {
		if !eng.IsShutdown() {
			t.Error("replaced engine not shut down")
		}
	}
}

func TestSessionIDFreshPerStart(t *testing.T) {
	factory := &fakeFactory{}
	c, _ := newTestController(factory, true)
	ctx := context.Background()

	_ = c.StartSpeech(ctx, "zh-CN")
	first := c.SessionID()
	_ = c.StartSpeech(ctx, "zh-CN")
	second := c.SessionID()

	if first == "" || first == second {
		t.Errorf("session ids = %q, %q", first, second)
	}
}

func TestReplacedSessionIsSilenced(t *testing.T) {
	factory := &fakeFactory{}
	c, rec := newTestController(factory, true)
	ctx := context.Background()

	_ = c.StartSpeech(ctx, "zh-CN")
	old := factory.Last()
	old.Listener().OnStart("session-1", "")
	_ = c.StartSpeech(ctx, "zh-CN")

	if c.IsRecognizing() {
		t.Error("recognizing carried over to the new session")
	}
	rec.Reset()
	old.Listener().OnResult("session-1", engine.Result{Text: "stale", IsFinal: true})
	old.Listener().OnComplete("session-1", "")

	if len(rec.Events()) != 0 {
		t.Errorf("replaced session produced %v", rec.Names())
	}
	if c.State() != StateListening {
		t.Errorf("state = %s", c.State())
	}
}

func TestStopSpeechEmitsEndOnce(t *testing.T) {
	factory := &fakeFactory{configure: func(e *fakeEngine) {
		e.onFinish = func(l engine.Listener, id string) {
			l.OnResult(id, engine.Result{Text: "打开灯", IsFinal: true})
			l.OnComplete(id, "finished")
		}
	}}
	c, rec := newTestController(factory, true)
	ctx := context.Background()

	_ = c.StartSpeech(ctx, "zh-CN")
	factory.Last().Listener().OnStart("session-1", "")

	if err := c.StopSpeech(ctx); err != nil {
		t.Fatalf("StopSpeech() error = %v", err)
	}
	want := []EventName{EventSpeechStart, EventSpeechPartialResults, EventSpeechResults, EventSpeechEnd}
	if got := rec.Names(); !slices.Equal(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	if c.IsRecognizing() {
		t.Error("recognizing after stop")
	}
	if c.State() != StateIdle {
		t.Errorf("state = %s", c.State())
	}
	if got := factory.Last().finished; !slices.Equal(got, []string{"session-1"}) {
		t.Errorf("finished = %v", got)
	}
}

func TestStopSpeechWithoutCompletionEmitsEnd(t *testing.T) {
	factory := &fakeFactory{}
	c, rec := newTestController(factory, true)
	ctx := context.Background()

	_ = c.StartSpeech(ctx, "zh-CN")
	if err := c.StopSpeech(ctx); err != nil {
		t.Fatalf("StopSpeech() error = %v", err)
	}
	events := rec.Events()
	if len(events) != 1 || events[0].Name() != EventSpeechEnd {
		t.Fatalf("events = %v", rec.Names())
	}
	if p := events[0].Payload().(EndPayload); p.SessionID != "session-1" {
		t.Errorf("payload = %+v", p)
	}
}

func TestCancelSpeechFailureReportsEndError(t *testing.T) {
	factory := &fakeFactory{configure: func(e *fakeEngine) {
		e.cancelErr = engine.NewError(engine.CodeCancelFailed, "cancel rejected")
	}}
	c, rec := newTestController(factory, true)
	ctx := context.Background()

	_ = c.StartSpeech(ctx, "zh-CN")
	factory.Last().Listener().OnStart("session-1", "")

	err := c.CancelSpeech(ctx)
	if !IsKind(err, KindEngineOperationFailed) {
		t.Fatalf("err = %v", err)
	}
	if c.IsRecognizing() {
		t.Error("recognizing after failed cancel")
	}
	events := rec.Events()
	last := events[len(events)-1]
	if last.Name() != EventSpeechEnd {
		t.Fatalf("last event = %s", last.Name())
	}
	if p := last.Payload().(EndPayload); p.Error != `{"code":1002200005,"message":"cancel rejected"}` {
		t.Errorf("payload = %+v", p)
	}
	if c.State() != StateIdle {
		t.Errorf("state = %s", c.State())
	}
}

func TestLifecycleWithoutEngine(t *testing.T) {
	ctx := context.Background()
	ops := map[string]func(*Controller) error{
		"stop":    func(c *Controller) error { return c.StopSpeech(ctx) },
		"cancel":  func(c *Controller) error { return c.CancelSpeech(ctx) },
		"destroy": func(c *Controller) error { return c.DestroySpeech(ctx) },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			c, rec := newTestController(&fakeFactory{}, true)
			err := op(c)
			if !IsKind(err, KindEngineOperationFailed) || !errors.Is(err, ErrNoEngine) {
				t.Fatalf("err = %v", err)
			}
			if ErrorPayload(err) == "" {
				t.Error("empty error payload")
			}
			if c.IsRecognizing() {
				t.Error("recognizing")
			}
			if name == "destroy" {
				return
			}
			events := rec.Events()
			if len(events) != 1 || events[0].Name() != EventSpeechEnd {
				t.Fatalf("events = %v", rec.Names())
			}
			if p := events[0].Payload().(EndPayload); p.Error == "" {
				t.Errorf("payload = %+v", p)
			}
		})
	}
}

func TestDestroySpeechAlwaysResetsFlag(t *testing.T) {
	factory := &fakeFactory{configure: func(e *fakeEngine) {
		e.shutdownErr = engine.NewError(engine.CodeShuttingDown, "already shutting down")
	}}
	c, rec := newTestController(factory, true)
	ctx := context.Background()

	_ = c.StartSpeech(ctx, "zh-CN")
	eng := factory.Last()
	eng.Listener().OnStart("session-1", "")

	err := c.DestroySpeech(ctx)
	if !IsKind(err, KindEngineOperationFailed) {
		t.Fatalf("err = %v", err)
	}
	if c.IsRecognizing() {
		t.Error("recognizing after destroy")
	}
	if c.State() != StateDestroyed || c.SessionID() != "" {
		t.Errorf("state = %s session = %q", c.State(), c.SessionID())
	}

	rec.Reset()
	eng.Listener().OnResult("session-1", engine.Result{Text: "late"})
	if len(rec.Events()) != 0 {
		t.Errorf("destroyed session produced %v", rec.Names())
	}

	factory.configure = nil
	if err := c.StartSpeech(ctx, "zh-CN"); err != nil {
		t.Fatalf("start after destroy: %v", err)
	}
	if c.State() != StateListening {
		t.Errorf("state = %s", c.State())
	}
}

func TestNaturalCompletionReturnsToIdle(t *testing.T) {
	factory := &fakeFactory{}
	c, rec := newTestController(factory, true)
	ctx := context.Background()

	_ = c.StartSpeech(ctx, "zh-CN")
	l := factory.Last().Listener()
	l.OnStart("session-1", "")
	l.OnResult("session-1", engine.Result{Text: "天气", IsFinal: false})
	l.OnResult("session-1", engine.Result{Text: "天气", IsFinal: true})
	l.OnComplete("session-1", "vad end")

	if c.IsRecognizing() {
		t.Error("recognizing after completion")
	}
	if c.State() != StateIdle {
		t.Errorf("state = %s", c.State())
	}
	want := []EventName{
		EventSpeechStart,
		EventSpeechPartialResults,
		EventSpeechPartialResults,
		EventSpeechResults,
		EventSpeechEnd,
	}
	if got := rec.Names(); !slices.Equal(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}

	if err := c.StopSpeech(ctx); err != nil {
		t.Fatalf("stop after completion: %v", err)
	}
	if got := rec.Names(); len(got) != len(want) {
		t.Errorf("stop after completion emitted extra events: %v", got)
	}
}

func TestIsSpeechAvailable(t *testing.T) {
	ctx := context.Background()

	c, _ := newTestController(&fakeFactory{available: true}, true)
	if ok, err := c.IsSpeechAvailable(ctx); !ok || err != nil {
		t.Errorf("available = %v, %v", ok, err)
	}

	c, _ = newTestController(&fakeFactory{availableErr: errors.New("no capability table")}, true)
	ok, err := c.IsSpeechAvailable(ctx)
	if ok || !IsKind(err, KindCapabilityQueryFailed) {
		t.Errorf("available = %v, %v", ok, err)
	}

	c, _ = newTestController(&fakeFactory{availPanic: true}, true)
	ok, err = c.IsSpeechAvailable(ctx)
	if ok || !IsKind(err, KindCapabilityQueryFailed) {
		t.Errorf("available = %v, %v", ok, err)
	}
	if !strings.Contains(ErrorPayload(err), "exploded") {
		t.Errorf("payload = %q", ErrorPayload(err))
	}
}

func TestStartDeniedWhileListeningKeepsSession(t *testing.T) {
	factory := &fakeFactory{}
	granted := true
	gate := permission.NewGate(permission.RequesterFunc(func(_ context.Context, perms []string) (permission.AuthResult, error) {
		return permission.Static(granted).RequestPermissions(context.Background(), perms)
	}))
	c := NewController(factory, gate, NewRecorder(), WithIDGenerator(sequentialIDs()))
	ctx := context.Background()

	_ = c.StartSpeech(ctx, "zh-CN")
	factory.Last().Listener().OnStart("session-1", "")

	granted = false
	if err := c.StartSpeech(ctx, "zh-CN"); !IsKind(err, KindPermissionDenied) {
		t.Fatalf("err = %v", err)
	}
	if c.State() != StateListening || c.SessionID() != "session-1" || !c.IsRecognizing() {
		t.Errorf("state = %s session = %q recognizing = %v", c.State(), c.SessionID(), c.IsRecognizing())
	}
	if factory.Created() != 1 {
		t.Errorf("engines created = %d", factory.Created())
	}
}

func TestEndingSessionClearsLogSession(t *testing.T) {
	tests := []struct {
		name string
		end  func(c *Controller, l engine.Listener) error
	}{
		{"stop", func(c *Controller, _ engine.Listener) error { return c.StopSpeech(context.Background()) }},
		{"cancel", func(c *Controller, _ engine.Listener) error { return c.CancelSpeech(context.Background()) }},
		{"complete", func(_ *Controller, l engine.Listener) error {
			l.OnComplete("session-1", "vad end")
			return nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := &fakeFactory{}
			c, _ := newTestController(factory, true)

			if err := c.StartSpeech(context.Background(), "zh-CN"); err != nil {
				t.Fatalf("StartSpeech() error = %v", err)
			}
			if got := logging.CurrentSession(); got != "session-1" {
				t.Fatalf("log session = %q, want session-1", got)
			}
			if err := tt.end(c, factory.Last().Listener()); err != nil {
				t.Fatalf("end: %v", err)
			}
			if got := logging.CurrentSession(); got != "" {
				t.Errorf("log session after %s = %q, want empty", tt.name, got)
			}
		})
	}
}
