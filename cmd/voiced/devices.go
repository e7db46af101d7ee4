package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/liuscraft/orion-voice/internal/audio"
	"github.com/liuscraft/orion-voice/internal/engine"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio input devices with capture hints",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := audio.Initialize(); err != nil {
			return fmt.Errorf("initialize PortAudio: %w", err)
		}
		defer audio.Terminate()

		devices, err := audio.InputDevices()
		if err != nil {
			return fmt.Errorf("list devices: %w", err)
		}
		printDevices(cmd.OutOrStdout(), devices)
		return nil
	},
}

func printDevices(out io.Writer, devices []audio.Device) {
	fmt.Fprintf(out, "=== Input Devices (%d) ===\n", len(devices))
	if len(devices) == 0 {
		fmt.Fprintln(out, "No input device found, recognition will be reported as unavailable")
		return
	}
	for i, dev := range devices {
		marker := ""
		if dev.Default {
			marker = " [DEFAULT]"
		}
		fmt.Fprintf(out, "[%d] %s%s\n", i, dev.Name, marker)
		if dev.HostAPI != "" {
			fmt.Fprintf(out, "    Host API:            %s\n", dev.HostAPI)
		}
		fmt.Fprintf(out, "    Max Input Channels:  %d\n", dev.MaxInputChannels)
		fmt.Fprintf(out, "    Default Sample Rate: %.0f Hz\n", dev.DefaultSampleRate)
		for _, hint := range deviceHints(dev) {
			fmt.Fprintf(out, "    ! %s\n", hint)
		}
	}
}

// deviceHints 针对固定的 16kHz 单声道输入给出配置建议
func deviceHints(dev audio.Device) []string {
	var hints []string
	if dev.DefaultSampleRate > 0 && int(dev.DefaultSampleRate) != engine.SampleRate {
		hints = append(hints, fmt.Sprintf("native rate is %.0f Hz, set audio.capture_rate: %.0f (resampled to %d Hz)",
			dev.DefaultSampleRate, dev.DefaultSampleRate, engine.SampleRate))
	}
	if dev.MaxInputChannels > engine.SoundChannel && dev.MaxInputChannels <= 2 {
		hints = append(hints, fmt.Sprintf("device is %d-channel, audio.channels: %d is downmixed to mono",
			dev.MaxInputChannels, dev.MaxInputChannels))
	}
	name := strings.ToLower(dev.Name)
	for _, kw := range []string{"bluetooth", "airpods", "buds", "headset"} {
		if strings.Contains(name, kw) {
			hints = append(hints, "looks like a Bluetooth device, consider audio.high_latency: true")
			break
		}
	}
	return hints
}
