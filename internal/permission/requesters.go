package permission

import (
	"context"
	"errors"

	"github.com/liuscraft/orion-voice/internal/audio"
)

// Static 固定授权结果，用于无交互环境
func Static(granted bool) Requester {
	return RequesterFunc(func(_ context.Context, permissions []string) (AuthResult, error) {
		code := Denied
		if granted {
			code = Granted
		}
		results := make([]int, len(permissions))
		for i := range results {
			results[i] = code
		}
		return AuthResult{Permissions: permissions, AuthResults: results}, nil
	})
}

// DeviceProbe 通过 PortAudio 检查是否存在可用的录音设备，
// 有输入声道的默认设备视为已授权。需要进程已调用 audio.Initialize。
type DeviceProbe struct {
	defaultDevice func() (audio.Device, error)
}

func NewDeviceProbe() *DeviceProbe {
	return &DeviceProbe{defaultDevice: audio.DefaultInputDevice}
}

func (p *DeviceProbe) RequestPermissions(ctx context.Context, permissions []string) (AuthResult, error) {
	if err := ctx.Err(); err != nil {
		return AuthResult{}, err
	}
	result := AuthResult{Permissions: permissions, AuthResults: make([]int, len(permissions))}

	_, err := p.defaultDevice()
	code := Granted
	if err != nil {
		if !errors.Is(err, audio.ErrNoInputDevice) {
			return result, err
		}
		code = Denied
	}
	for i := range result.AuthResults {
		result.AuthResults[i] = code
	}
	return result, nil
}
