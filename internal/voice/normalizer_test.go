package voice

import (
	"slices"
	"sync/atomic"
	"testing"

	"github.com/liuscraft/orion-voice/internal/engine"
)

type completionSpy struct {
	completed []*Session
}

func (s *completionSpy) sessionCompleted(session *Session) {
	s.completed = append(s.completed, session)
}

func newTestNormalizer(id string) (*Normalizer, *Recorder, *atomic.Bool, *completionSpy) {
	rec := NewRecorder()
	flag := &atomic.Bool{}
	spy := &completionSpy{}
	return newNormalizer(newSession(id, nil), rec, flag, spy), rec, flag, spy
}

func TestNormalizerStartSetsRecognizing(t *testing.T) {
	n, rec, flag, _ := newTestNormalizer("s1")

	n.OnStart("s1", "ready")

	if !flag.Load() {
		t.Error("recognizing should be true after onStart")
	}
	events := rec.Events()
	if len(events) != 1 || events[0].Name() != EventSpeechStart {
		t.Fatalf("events = %v", rec.Names())
	}
	if p := events[0].Payload().(MessagePayload); p.Message != "ready" {
		t.Errorf("payload = %+v", p)
	}
}

func TestNormalizerResultSetsRecognizingWithoutStart(t *testing.T) {
	n, rec, flag, _ := newTestNormalizer("s1")

	n.OnResult("s1", engine.Result{Text: "打开"})

	if !flag.Load() {
		t.Error("recognizing should be true after a partial result")
	}
	if got := rec.Names(); !slices.Equal(got, []EventName{EventSpeechPartialResults}) {
		t.Errorf("events = %v", got)
	}

	n.OnComplete("s1", "done")
	n.OnResult("s1", engine.Result{Text: "late"})
	if flag.Load() {
		t.Error("result after completion set recognizing")
	}
}

func TestNormalizerOnlyForwardsSpeechDetectedCode(t *testing.T) {
	n, rec, _, _ := newTestNormalizer("s1")

	for _, code := range []int{0, 2, 3, 7, -1} {
		n.OnEvent("s1", code, "noise")
	}
	if len(rec.Events()) != 0 {
		t.Fatalf("non speech-detected codes forwarded: %v", rec.Names())
	}

	n.OnEvent("s1", engine.EventCodeSpeechDetected, "voice")
	names := rec.Names()
	if !slices.Equal(names, []EventName{EventSpeechRecognized}) {
		t.Errorf("events = %v", names)
	}
}

func TestNormalizerFinalResultEmitsPartialThenFinal(t *testing.T) {
	n, rec, _, _ := newTestNormalizer("s1")

	n.OnResult("s1", engine.Result{Text: "你好", IsFinal: false})
	n.OnResult("s1", engine.Result{Text: "你好", IsFinal: true})

	want := []EventName{EventSpeechPartialResults, EventSpeechPartialResults, EventSpeechResults}
	if got := rec.Names(); !slices.Equal(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	events := rec.Events()
	partial := events[1].Payload().(ValuePayload)
	final := events[2].Payload().(ValuePayload)
	if !slices.Equal(partial.Value, []string{"你好"}) || !slices.Equal(final.Value, partial.Value) {
		t.Errorf("partial = %v, final = %v", partial.Value, final.Value)
	}
}

func TestNormalizerErrorKeepsRecognizing(t *testing.T) {
	n, rec, flag, _ := newTestNormalizer("s1")

	n.OnStart("s1", "")
	n.OnError("s1", 1002200004, "finish failed")

	if !flag.Load() {
		t.Error("onError must not reset recognizing")
	}
	events := rec.Events()
	last := events[len(events)-1]
	if last.Name() != EventSpeechError {
		t.Fatalf("last event = %s", last.Name())
	}
	if p := last.Payload().(SpeechErrorPayload); p.Code != 1002200004 || p.Message != "finish failed" {
		t.Errorf("payload = %+v", p)
	}
}

func TestNormalizerCompleteEndsSessionOnce(t *testing.T) {
	n, rec, flag, spy := newTestNormalizer("s1")

	n.OnStart("s1", "")
	n.OnComplete("s1", "done")
	n.OnComplete("s1", "done again")
	n.OnResult("s1", engine.Result{Text: "late", IsFinal: true})
	n.OnError("s1", 1, "late error")

	if flag.Load() {
		t.Error("recognizing should be false after onComplete")
	}
	want := []EventName{EventSpeechStart, EventSpeechEnd}
	if got := rec.Names(); !slices.Equal(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	if p := rec.Events()[1].Payload().(EndPayload); p.SessionID != "s1" || p.Error != "" {
		t.Errorf("end payload = %+v", p)
	}
	if len(spy.completed) != 1 {
		t.Errorf("observer notified %d times", len(spy.completed))
	}
}

func TestNormalizerDropsForeignSession(t *testing.T) {
	n, rec, flag, _ := newTestNormalizer("s1")

	n.OnStart("other", "")
	n.OnResult("other", engine.Result{Text: "x", IsFinal: true})
	n.OnComplete("other", "")

	if flag.Load() {
		t.Error("foreign onStart changed recognizing")
	}
	if len(rec.Events()) != 0 {
		t.Errorf("foreign callbacks forwarded: %v", rec.Names())
	}
}
