package audio

import (
	"math"
	"time"

	"github.com/liuscraft/orion-voice/internal/engine"
)

// DefaultVADThreshold RMS 能量阈值（归一化到 [0,1]）
const DefaultVADThreshold = 0.02

// EndpointEvent 端点检测结果
type EndpointEvent int

const (
	EndpointNone EndpointEvent = iota
	// EndpointSpeechStarted 本会话第一次检测到人声
	EndpointSpeechStarted
	// EndpointSpeechEnded 说话后静音超过后端点
	EndpointSpeechEnded
	// EndpointNoSpeech 前端点时间内没有人声
	EndpointNoSpeech
	// EndpointMaxDuration 达到最大音频时长
	EndpointMaxDuration
)

func (e EndpointEvent) String() string {
	switch e {
	case EndpointNone:
		return "None"
	case EndpointSpeechStarted:
		return "SpeechStarted"
	case EndpointSpeechEnded:
		return "SpeechEnded"
	case EndpointNoSpeech:
		return "NoSpeech"
	case EndpointMaxDuration:
		return "MaxDuration"
	default:
		return "Unknown"
	}
}

// Terminal 是否应该结束本次识别
func (e EndpointEvent) Terminal() bool {
	return e == EndpointSpeechEnded || e == EndpointNoSpeech || e == EndpointMaxDuration
}

// Endpointer 按音频时长（而不是墙钟）计算 VAD 前后端点和最大时长
type Endpointer struct {
	threshold      float64
	vadBegin       time.Duration
	vadEnd         time.Duration
	maxDuration    time.Duration
	bytesPerSecond int

	elapsed   time.Duration
	lastVoice time.Duration
	started   bool
	finished  bool
}

func NewEndpointer(threshold float64, info engine.AudioInfo, opts engine.ListenOptions) *Endpointer {
	if threshold <= 0 {
		threshold = DefaultVADThreshold
	}
	bps := info.BytesPerSecond()
	if bps <= 0 {
		bps = engine.SampleRate * 2
	}
	return &Endpointer{
		threshold:      threshold,
		vadBegin:       opts.VADBegin,
		vadEnd:         opts.VADEnd,
		maxDuration:    opts.MaxAudioDuration,
		bytesPerSecond: bps,
	}
}

// Feed 送入一块 PCM，返回本块触发的端点事件
func (e *Endpointer) Feed(chunk []byte) EndpointEvent {
	if e.finished {
		return EndpointNone
	}

	e.elapsed += time.Duration(len(chunk)) * time.Second / time.Duration(e.bytesPerSecond)

	if DetectSpeech(chunk, e.threshold) {
		e.lastVoice = e.elapsed
		if !e.started {
			e.started = true
			return EndpointSpeechStarted
		}
	}

	switch {
	case e.maxDuration > 0 && e.elapsed >= e.maxDuration:
		e.finished = true
		return EndpointMaxDuration
	case !e.started && e.vadBegin > 0 && e.elapsed >= e.vadBegin:
		e.finished = true
		return EndpointNoSpeech
	case e.started && e.vadEnd > 0 && e.elapsed-e.lastVoice >= e.vadEnd:
		e.finished = true
		return EndpointSpeechEnded
	}
	return EndpointNone
}

// Elapsed 已处理的音频时长
func (e *Endpointer) Elapsed() time.Duration {
	return e.elapsed
}

// DetectSpeech 计算 16bit PCM 的 RMS 并和阈值比较
func DetectSpeech(pcm []byte, threshold float64) bool {
	return RMS(pcm) >= threshold
}

func RMS(pcm []byte) float64 {
	if len(pcm) < 2 {
		return 0
	}
	var sum float64
	count := len(pcm) / 2
	for i := 0; i < count; i++ {
		sample := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		v := float64(sample) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(count))
}
