package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/liuscraft/orion-voice/internal/audio"
	"github.com/liuscraft/orion-voice/internal/config"
	"github.com/liuscraft/orion-voice/internal/engine/dashscope"
	"github.com/liuscraft/orion-voice/internal/engine/vosk"
	"github.com/liuscraft/orion-voice/internal/permission"
	"github.com/liuscraft/orion-voice/internal/voice"
)

func TestNewFactorySelectsProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Engine.DashScope.APIKey = "sk-test"

	f, closeFn, err := newFactory(cfg, nil)
	if err != nil {
		t.Fatalf("dashscope factory: %v", err)
	}
	if _, ok := f.(*dashscope.Factory); !ok {
		t.Fatalf("expected dashscope factory, got %T", f)
	}
	closeFn()

	cfg.Engine.Provider = "VOSK"
	f, closeFn, err = newFactory(cfg, nil)
	if err != nil {
		t.Fatalf("vosk factory: %v", err)
	}
	if _, ok := f.(*vosk.Factory); !ok {
		t.Fatalf("expected vosk factory, got %T", f)
	}
	closeFn()

	cfg.Engine.Provider = "whisper"
	if _, _, err := newFactory(cfg, nil); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewRequesterModes(t *testing.T) {
	ctx := context.Background()

	grant, err := newRequester("grant")
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if outcome := permission.NewGate(grant).RequestMicrophoneAccess(ctx); !outcome.Granted {
		t.Fatalf("grant mode should be granted: %+v", outcome)
	}

	deny, err := newRequester(" Deny ")
	if err != nil {
		t.Fatalf("deny: %v", err)
	}
	if outcome := permission.NewGate(deny).RequestMicrophoneAccess(ctx); outcome.Granted {
		t.Fatalf("deny mode should be denied: %+v", outcome)
	}

	probe, err := newRequester("probe")
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if _, ok := probe.(*permission.DeviceProbe); !ok {
		t.Fatalf("expected device probe, got %T", probe)
	}

	if _, err := newRequester("ask"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestEventPrinterClosesOnEnd(t *testing.T) {
	var buf bytes.Buffer
	p := newEventPrinter(&buf)

	p.Emit(voice.NewSpeechStartEvent("s1", "started"))
	p.Emit(voice.NewResultsEvent("s1", "打开灯"))
	select {
	case <-p.done:
		t.Fatal("done closed before onSpeechEnd")
	default:
	}

	p.Emit(voice.NewSpeechEndEvent("s1"))
	p.Emit(voice.NewSpeechEndEvent("s1"))
	select {
	case <-p.done:
	default:
		t.Fatal("done not closed after onSpeechEnd")
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], `"event":"onSpeechResults"`) || !strings.Contains(lines[1], "打开灯") {
		t.Fatalf("unexpected results line: %s", lines[1])
	}
}

func TestDeviceHints(t *testing.T) {
	hints := deviceHints(audio.Device{Name: "USB Mic", MaxInputChannels: 1, DefaultSampleRate: 16000})
	if len(hints) != 0 {
		t.Fatalf("expected no hints, got %v", hints)
	}

	hints = deviceHints(audio.Device{Name: "AirPods Pro", MaxInputChannels: 2, DefaultSampleRate: 48000})
	if len(hints) != 3 {
		t.Fatalf("expected 3 hints, got %v", hints)
	}
	if !strings.Contains(hints[0], "capture_rate: 48000") {
		t.Fatalf("unexpected rate hint: %s", hints[0])
	}

	var buf bytes.Buffer
	printDevices(&buf, nil)
	if !strings.Contains(buf.String(), "No input device found") {
		t.Fatalf("unexpected output: %s", buf.String())
	}
}
