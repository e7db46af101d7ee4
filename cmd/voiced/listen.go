package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/liuscraft/orion-voice/internal/audio"
	"github.com/liuscraft/orion-voice/internal/logging"
	"github.com/liuscraft/orion-voice/internal/permission"
	"github.com/liuscraft/orion-voice/internal/sink"
	"github.com/liuscraft/orion-voice/internal/voice"
	"github.com/spf13/cobra"
)

var (
	listenLocale  string
	listenFile    string
	listenTimeout time.Duration
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Run a single recognition session and print its events",
	Long: `listen starts one session, prints every event as a JSON line and
exits after onSpeechEnd. Ctrl+C stops the session early. With --file the
audio comes from a WAV or raw 16kHz PCM file instead of the microphone.`,
	RunE: runListen,
}

func init() {
	listenCmd.Flags().StringVarP(&listenLocale, "locale", "l", "", "requested locale (the engine always uses zh-CN)")
	listenCmd.Flags().StringVarP(&listenFile, "file", "f", "", "WAV or raw PCM file to recognize instead of the microphone")
	listenCmd.Flags().DurationVar(&listenTimeout, "timeout", 90*time.Second, "stop the session after this duration")
}

// eventPrinter 逐行输出事件，收到 onSpeechEnd 后关闭 done
type eventPrinter struct {
	out  io.Writer
	mu   sync.Mutex
	once sync.Once
	done chan struct{}
}

func newEventPrinter(out io.Writer) *eventPrinter {
	return &eventPrinter{out: out, done: make(chan struct{})}
}

func (p *eventPrinter) Emit(event voice.Event) {
	data, err := sink.Encode(event)
	if err != nil {
		logging.Errorf("encode %s failed: %v", event.Name(), err)
		return
	}
	p.mu.Lock()
	fmt.Fprintln(p.out, string(data))
	p.mu.Unlock()
	if event.Name() == voice.EventSpeechEnd {
		p.once.Do(func() { close(p.done) })
	}
}

func runListen(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logging.Sync()

	if err := cfg.ValidateEngine(); err != nil {
		return err
	}

	var (
		source    audio.SourceFactory
		requester permission.Requester
	)
	if listenFile != "" {
		path := listenFile
		source = func() (audio.Source, error) {
			return audio.NewFileSource(path, true)
		}
		requester = permission.Static(true)
	} else {
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()
		source = audio.MicrophoneFactory(captureConfig(cfg))
		if requester, err = newRequester(cfg.Permission.Mode); err != nil {
			return err
		}
	}

	factory, closeFactory, err := newFactory(cfg, source)
	if err != nil {
		return err
	}
	defer closeFactory()

	printer := newEventPrinter(cmd.OutOrStdout())
	ctrl := voice.NewController(factory, permission.NewGate(requester), printer)
	defer ctrl.DestroySpeech(context.Background())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if err := ctrl.StartSpeech(ctx, listenLocale); err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Listening... press Ctrl+C to stop")

	select {
	case <-printer.done:
		return nil
	case <-ctx.Done():
	case <-time.After(listenTimeout):
		logging.Infof("Listen timeout after %s", listenTimeout)
	}
	return ctrl.StopSpeech(context.Background())
}
