package audio

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/liuscraft/orion-voice/internal/logging"
)

// MicrophoneConfig 麦克风参数
type MicrophoneConfig struct {
	SampleRate      int
	Channels        int
	FramesPerBuffer int
	HighLatency     bool
	// DeviceName 设备名称（部分匹配），为空使用默认设备
	DeviceName string
}

// Microphone 麦克风音频源
type Microphone struct {
	stream    audioStream
	cfg       MicrophoneConfig
	buffer    []int16
	closeCh   chan struct{}
	closeOnce sync.Once

	startOnce sync.Once
	startErr  error
}

type audioStream interface {
	Start() error
	Read() error
	Abort() error
	Stop() error
	Close() error
}

// Initialize 初始化 PortAudio，进程内调用一次，与 Terminate 成对使用
func Initialize() error {
	return portaudio.Initialize()
}

func Terminate() error {
	return portaudio.Terminate()
}

// NewMicrophone 打开麦克风输入流。
// 流不会立即启动，第一次 Read 时才开始采集，避免创建和读取之间的输入溢出。
func NewMicrophone(cfg MicrophoneConfig) (*Microphone, error) {
	if cfg.SampleRate <= 0 || cfg.Channels <= 0 || cfg.FramesPerBuffer <= 0 {
		return nil, fmt.Errorf("invalid microphone config: %+v", cfg)
	}
	buffer := make([]int16, cfg.FramesPerBuffer*cfg.Channels)

	var inputDevice *portaudio.DeviceInfo
	var err error
	if cfg.DeviceName != "" {
		inputDevice, err = findInputDeviceByName(cfg.DeviceName)
		if err != nil {
			logging.Warnf("Microphone: device %q not found, falling back to default: %v", cfg.DeviceName, err)
			inputDevice = nil
		}
	}
	if inputDevice == nil {
		inputDevice, err = portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("default input device: %w", err)
		}
	}

	latency := inputDevice.DefaultLowInputLatency
	if cfg.HighLatency {
		latency = inputDevice.DefaultHighInputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   inputDevice,
			Channels: cfg.Channels,
			Latency:  latency,
		},
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: cfg.FramesPerBuffer,
	}

	stream, err := portaudio.OpenStream(params, &buffer)
	if err != nil {
		logging.Warnf("Microphone: open %s failed, falling back to default stream: %v", inputDevice.Name, err)
		stream, err = portaudio.OpenDefaultStream(cfg.Channels, 0, float64(cfg.SampleRate), cfg.FramesPerBuffer, &buffer)
		if err != nil {
			return nil, err
		}
	}

	logging.Infof("Microphone: device=%s sampleRate=%d channels=%d frames=%d latency=%.1fms",
		inputDevice.Name, cfg.SampleRate, cfg.Channels, cfg.FramesPerBuffer, latency.Seconds()*1000)

	return newMicrophoneWithStream(stream, cfg, buffer), nil
}

func newMicrophoneWithStream(stream audioStream, cfg MicrophoneConfig, buffer []int16) *Microphone {
	return &Microphone{
		stream:  stream,
		cfg:     cfg,
		buffer:  buffer,
		closeCh: make(chan struct{}),
	}
}

func findInputDeviceByName(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	nameLower := strings.ToLower(name)
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 && strings.Contains(strings.ToLower(dev.Name), nameLower) {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("no input device found matching %q", name)
}

func (m *Microphone) start() error {
	m.startOnce.Do(func() {
		if err := m.stream.Start(); err != nil {
			logging.Errorf("Microphone: failed to start stream: %v", err)
			m.startErr = err
		}
	})
	return m.startErr
}

// Read 读取一个缓冲区的音频，ctx 取消或 Close 后立即返回
func (m *Microphone) Read(ctx context.Context) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := m.start(); err != nil {
		return nil, err
	}

	readErr := make(chan error, 1)
	go func() {
		readErr <- m.stream.Read()
	}()

	select {
	case <-ctx.Done():
		m.abortStream("context canceled")
		return nil, ctx.Err()
	case <-m.closeCh:
		m.abortStream("source closed")
		return nil, io.EOF
	case err := <-readErr:
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			select {
			case <-m.closeCh:
				return nil, io.EOF
			default:
			}
			return nil, err
		}
	}

	data := make([]byte, len(m.buffer)*2)
	encodeInt16LE(data, m.buffer)
	return data, nil
}

func (m *Microphone) Close() error {
	m.closeOnce.Do(func() {
		close(m.closeCh)
	})

	if err := m.stream.Stop(); err != nil {
		logging.Debugf("Microphone: error stopping stream: %v", err)
	}
	if err := m.stream.Close(); err != nil {
		logging.Errorf("Microphone: error closing stream: %v", err)
		return err
	}
	return nil
}

func (m *Microphone) abortStream(reason string) {
	if err := m.stream.Abort(); err != nil {
		logging.Errorf("Microphone: error aborting stream (%s): %v", reason, err)
	}
}
