package audio

import (
	"context"
	"errors"
	"io"

	"github.com/liuscraft/orion-voice/internal/engine"
)

// PumpConfig 送音参数
type PumpConfig struct {
	ChunkSize    int
	VADThreshold float64
	Audio        engine.AudioInfo
	Options      engine.ListenOptions
}

// Pump 从 source 读取音频，按 ChunkSize 切块交给 send，同时做端点检测。
// onEndpoint 收到 SpeechStarted 和终止事件；返回终止原因，音频源读完时返回 EndpointNone。
func Pump(ctx context.Context, source Source, cfg PumpConfig, send func([]byte) error, onEndpoint func(EndpointEvent)) (EndpointEvent, error) {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = engine.SendSize
	}
	chunker := NewChunker(cfg.ChunkSize)
	endpointer := NewEndpointer(cfg.VADThreshold, cfg.Audio, cfg.Options)
	notify := func(ev EndpointEvent) {
		if onEndpoint != nil {
			onEndpoint(ev)
		}
	}

	for {
		data, err := source.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				if rest := chunker.Flush(); len(rest) > 0 {
					if err := send(rest); err != nil {
						return EndpointNone, err
					}
				}
				return EndpointNone, nil
			}
			return EndpointNone, err
		}

		for _, chunk := range chunker.Push(data) {
			ev := endpointer.Feed(chunk)
			if ev == EndpointSpeechStarted {
				notify(ev)
			}
			if err := send(chunk); err != nil {
				return EndpointNone, err
			}
			if ev.Terminal() {
				notify(ev)
				return ev, nil
			}
		}
	}
}
