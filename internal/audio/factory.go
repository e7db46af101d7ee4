package audio

import "github.com/liuscraft/orion-voice/internal/engine"

// CaptureConfig 采集参数，CaptureRate/Channels 为设备原生格式
type CaptureConfig struct {
	Device          string
	HighLatency     bool
	FramesPerBuffer int
	CaptureRate     int
	Channels        int
}

// MicrophoneFactory 返回按引擎固定格式（16kHz 单声道）输出的麦克风源工厂
func MicrophoneFactory(cfg CaptureConfig) SourceFactory {
	return func() (Source, error) {
		rate := cfg.CaptureRate
		if rate <= 0 {
			rate = engine.SampleRate
		}
		channels := cfg.Channels
		if channels <= 0 {
			channels = engine.SoundChannel
		}
		mic, err := NewMicrophone(MicrophoneConfig{
			SampleRate:      rate,
			Channels:        channels,
			FramesPerBuffer: cfg.FramesPerBuffer,
			HighLatency:     cfg.HighLatency,
			DeviceName:      cfg.Device,
		})
		if err != nil {
			return nil, err
		}
		return NewResamplingSource(mic, rate, channels, engine.SampleRate), nil
	}
}
