package audio

import (
	"errors"

	"github.com/gordonklaus/portaudio"
)

// ErrNoInputDevice 没有可用的录音设备
var ErrNoInputDevice = errors.New("no audio input device")

// Device 输入设备概要
type Device struct {
	Name              string
	HostAPI           string
	MaxInputChannels  int
	DefaultSampleRate float64
	Default           bool
}

// InputDevices 列出所有输入设备，调用前需要 Initialize
func InputDevices() ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	var defaultName string
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultName = def.Name
	}

	var out []Device
	for _, dev := range devices {
		if dev.MaxInputChannels <= 0 {
			continue
		}
		hostAPI := ""
		if dev.HostApi != nil {
			hostAPI = dev.HostApi.Name
		}
		out = append(out, Device{
			Name:              dev.Name,
			HostAPI:           hostAPI,
			MaxInputChannels:  dev.MaxInputChannels,
			DefaultSampleRate: dev.DefaultSampleRate,
			Default:           dev.Name == defaultName,
		})
	}
	return out, nil
}

// DefaultInputDevice 返回默认输入设备，不存在时返回 ErrNoInputDevice
func DefaultInputDevice() (Device, error) {
	dev, err := portaudio.DefaultInputDevice()
	if err != nil || dev == nil || dev.MaxInputChannels <= 0 {
		return Device{}, ErrNoInputDevice
	}
	return Device{
		Name:              dev.Name,
		MaxInputChannels:  dev.MaxInputChannels,
		DefaultSampleRate: dev.DefaultSampleRate,
		Default:           true,
	}, nil
}
