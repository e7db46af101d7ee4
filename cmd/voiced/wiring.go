package main

import (
	"fmt"
	"strings"

	"github.com/liuscraft/orion-voice/internal/audio"
	"github.com/liuscraft/orion-voice/internal/config"
	"github.com/liuscraft/orion-voice/internal/engine"
	"github.com/liuscraft/orion-voice/internal/engine/dashscope"
	"github.com/liuscraft/orion-voice/internal/engine/vosk"
	"github.com/liuscraft/orion-voice/internal/permission"
)

func captureConfig(cfg *config.AppConfig) audio.CaptureConfig {
	return audio.CaptureConfig{
		Device:          cfg.Audio.Device,
		HighLatency:     cfg.Audio.HighLatency,
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
		CaptureRate:     cfg.Audio.CaptureRate,
		Channels:        cfg.Audio.Channels,
	}
}

// newFactory 按 engine.provider 构造引擎工厂，返回的 closer 用于释放模型等资源
func newFactory(cfg *config.AppConfig, source audio.SourceFactory) (engine.Factory, func(), error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Engine.Provider)) {
	case config.EngineDashScope:
		f := dashscope.NewFactory(dashscope.Config{
			APIKey:       cfg.Engine.DashScope.APIKey,
			Endpoint:     cfg.Engine.DashScope.Endpoint,
			Model:        cfg.Engine.DashScope.Model,
			VADThreshold: cfg.Audio.VADThreshold,
		}, source)
		return f, func() {}, nil
	case config.EngineVosk:
		f := vosk.NewFactory(vosk.Config{
			ModelPath:    cfg.Engine.Vosk.ModelPath,
			VADThreshold: cfg.Audio.VADThreshold,
		}, source)
		return f, f.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown engine provider: %s", cfg.Engine.Provider)
	}
}

func newRequester(mode string) (permission.Requester, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case config.PermissionProbe:
		return permission.NewDeviceProbe(), nil
	case config.PermissionGrant:
		return permission.Static(true), nil
	case config.PermissionDeny:
		return permission.Static(false), nil
	default:
		return nil, fmt.Errorf("unknown permission mode: %s", mode)
	}
}
