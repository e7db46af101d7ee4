package engine

import (
	"strings"
	"time"
)

// 引擎参数表，当前仅支持离线中文识别
const (
	LanguageZhCN        = "zh-CN"
	RegionCN            = "CN"
	RecognizerModeShort = "short"

	// OnlineModeOffline 1 为离线模式
	OnlineModeOffline = 1

	AudioTypePCM = "pcm"
	SampleRate   = 16000
	SoundChannel = 1
	SampleBit    = 16

	// RecognitionModeRealtime 实时录音识别，结束录音需要调用 Finish
	RecognitionModeRealtime = 0
	// RecognitionModeAudioText 调用方自行写入音频流
	RecognitionModeAudioText = 1

	VADBeginMs         = 2000
	VADEndMs           = 3000
	MaxAudioDurationMs = 60000

	// SendSize 每次送入引擎的音频字节数
	SendSize = 1280
)

const (
	minAudioDurationMs = 20000
	maxAudioDurationMs = 60000
)

// Params 创建引擎参数，每次创建引擎时构造一次，之后不再修改
type Params struct {
	Language       string
	Region         string
	Online         int
	RecognizerMode string
}

// NewParams 根据请求的 locale 构造引擎参数。
// 当前只支持 zh-CN/CN，传入的 locale 不生效。
func NewParams(locale string) Params {
	return Params{
		Language:       LanguageZhCN,
		Region:         RegionCN,
		Online:         OnlineModeOffline,
		RecognizerMode: RecognizerModeShort,
	}
}

func (p Params) Validate() error {
	if p.Language != LanguageZhCN {
		return NewError(CodeCreateFailed, "unsupported language: "+p.Language)
	}
	if p.Region != "" && p.Region != RegionCN {
		return NewError(CodeCreateFailed, "unsupported region: "+p.Region)
	}
	if p.Online != OnlineModeOffline {
		return NewError(CodeCreateFailed, "unsupported mode: only offline recognition is available")
	}
	if p.RecognizerMode != RecognizerModeShort {
		return NewError(CodeCreateFailed, "unsupported recognizer mode: "+p.RecognizerMode)
	}
	return nil
}

// AudioInfo 音频格式描述
type AudioInfo struct {
	AudioType    string
	SampleRate   int
	SoundChannel int
	SampleBit    int
}

// BytesPerSecond 按当前格式每秒的 PCM 字节数
func (a AudioInfo) BytesPerSecond() int {
	return a.SampleRate * a.SoundChannel * a.SampleBit / 8
}

// ListenOptions 识别过程参数
type ListenOptions struct {
	RecognitionMode  int
	VADBegin         time.Duration
	VADEnd           time.Duration
	MaxAudioDuration time.Duration
}

// StartParams 启动识别参数
type StartParams struct {
	SessionID string
	Audio     AudioInfo
	Options   ListenOptions
}

// NewStartParams 为一次会话构造启动参数
func NewStartParams(sessionID string) StartParams {
	return StartParams{
		SessionID: sessionID,
		Audio: AudioInfo{
			AudioType:    AudioTypePCM,
			SampleRate:   SampleRate,
			SoundChannel: SoundChannel,
			SampleBit:    SampleBit,
		},
		Options: ListenOptions{
			RecognitionMode:  RecognitionModeRealtime,
			VADBegin:         VADBeginMs * time.Millisecond,
			VADEnd:           VADEndMs * time.Millisecond,
			MaxAudioDuration: MaxAudioDurationMs * time.Millisecond,
		},
	}
}

func (p StartParams) Validate() error {
	if strings.TrimSpace(p.SessionID) == "" {
		return NewError(CodeStartFailed, "session id is required")
	}
	if p.Audio.AudioType != AudioTypePCM {
		return NewError(CodeStartFailed, "unsupported audio type: "+p.Audio.AudioType)
	}
	if p.Audio.SampleRate != SampleRate || p.Audio.SoundChannel != SoundChannel || p.Audio.SampleBit != SampleBit {
		return NewError(CodeStartFailed, "unsupported audio format")
	}
	if p.Options.RecognitionMode != RecognitionModeRealtime && p.Options.RecognitionMode != RecognitionModeAudioText {
		return NewError(CodeStartFailed, "unsupported recognition mode")
	}
	maxMs := p.Options.MaxAudioDuration.Milliseconds()
	if maxMs < minAudioDurationMs || maxMs > maxAudioDurationMs {
		return NewError(CodeStartFailed, "max audio duration must be within [20000, 60000] ms")
	}
	if p.Options.VADBegin <= 0 || p.Options.VADEnd <= 0 {
		return NewError(CodeStartFailed, "vad timeouts must be positive")
	}
	return nil
}
