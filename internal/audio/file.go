package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/liuscraft/orion-voice/internal/engine"
)

// FileSource 从 WAV 或裸 PCM 文件读取音频，可选按实时速率回放
type FileSource struct {
	data     []byte
	offset   int
	frame    int
	interval time.Duration
}

// NewFileSource 打开音频文件。WAV 会按头部格式转换为 16kHz 单声道，
// 其它扩展名当作 16kHz 单声道 16bit 裸 PCM。
func NewFileSource(path string, realtime bool) (*FileSource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data := raw
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		data, err = decodeWAV(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return NewBufferSource(data, realtime), nil
}

// NewBufferSource 从内存 PCM 读取，每次返回 100ms 音频
func NewBufferSource(pcm []byte, realtime bool) *FileSource {
	frame := engine.SampleRate * engine.SampleBit / 8 / 10
	src := &FileSource{data: pcm, frame: frame}
	if realtime {
		src.interval = 100 * time.Millisecond
	}
	return src
}

func (f *FileSource) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.offset >= len(f.data) {
		return nil, io.EOF
	}
	if f.interval > 0 {
		timer := time.NewTimer(f.interval)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	end := min(f.offset+f.frame, len(f.data))
	chunk := f.data[f.offset:end]
	f.offset = end
	return chunk, nil
}

func (f *FileSource) Close() error {
	f.offset = len(f.data)
	return nil
}

type wavFormat struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// decodeWAV 解析 PCM WAV，输出 16kHz 单声道 16bit
func decodeWAV(raw []byte) ([]byte, error) {
	if len(raw) < 12 || string(raw[0:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		return nil, errors.New("not a RIFF/WAVE file")
	}
	var format *wavFormat
	pos := 12
	for pos+8 <= len(raw) {
		id := string(raw[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(raw[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(raw) {
			size = len(raw) - body
		}
		switch id {
		case "fmt ":
			var f wavFormat
			if err := binary.Read(bytes.NewReader(raw[body:body+size]), binary.LittleEndian, &f); err != nil {
				return nil, fmt.Errorf("read fmt chunk: %w", err)
			}
			format = &f
		case "data":
			if format == nil {
				return nil, errors.New("data chunk before fmt chunk")
			}
			if format.AudioFormat != 1 || format.BitsPerSample != 16 {
				return nil, fmt.Errorf("unsupported wav encoding: format=%d bits=%d", format.AudioFormat, format.BitsPerSample)
			}
			return toEngineFormat(raw[body:body+size], int(format.SampleRate), int(format.Channels))
		}
		pos = body + size + size%2
	}
	return nil, errors.New("missing data chunk")
}

func toEngineFormat(pcm []byte, rate, channels int) ([]byte, error) {
	if rate == engine.SampleRate && channels == engine.SoundChannel {
		return pcm, nil
	}
	samples := decodeInt16LE(pcm)
	if channels > 1 {
		samples = Downmix(samples, channels)
	}
	resampled, err := Resample(samples, rate, engine.SampleRate, 1)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(resampled)*2)
	encodeInt16LE(out, resampled)
	return out, nil
}

// EncodeWAV 把 16kHz 单声道 PCM 封装成 WAV
func EncodeWAV(pcm []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, wavFormat{
		AudioFormat:   1,
		Channels:      engine.SoundChannel,
		SampleRate:    engine.SampleRate,
		ByteRate:      engine.SampleRate * engine.SampleBit / 8,
		BlockAlign:    engine.SampleBit / 8,
		BitsPerSample: engine.SampleBit,
	})
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
