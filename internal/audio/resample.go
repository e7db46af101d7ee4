package audio

import (
	"context"
	"fmt"
	"math"
)

// Resample 线性插值重采样 interleaved int16 PCM
func Resample(input []int16, inputRate, outputRate, channels int) ([]int16, error) {
	if inputRate <= 0 || outputRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: input=%d, output=%d", inputRate, outputRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channels: %d", channels)
	}
	inputFrames := len(input) / channels
	if inputFrames == 0 {
		return []int16{}, nil
	}
	if inputRate == outputRate {
		out := make([]int16, inputFrames*channels)
		copy(out, input)
		return out, nil
	}

	ratio := float64(inputRate) / float64(outputRate)
	outputFrames := int(math.Ceil(float64(inputFrames) / ratio))
	output := make([]int16, outputFrames*channels)

	for outFrame := 0; outFrame < outputFrames; outFrame++ {
		position := float64(outFrame) * ratio
		inFrame := int(position)
		frac := position - float64(inFrame)
		if inFrame >= inputFrames-1 {
			inFrame = max(inputFrames-2, 0)
			frac = 1.0
		}

		for ch := 0; ch < channels; ch++ {
			i1 := inFrame*channels + ch
			i2 := (inFrame+1)*channels + ch
			if i2 >= len(input) {
				i2 = i1
			}
			v := float64(input[i1])*(1.0-frac) + float64(input[i2])*frac
			output[outFrame*channels+ch] = clampInt16(v)
		}
	}
	return output, nil
}

// Downmix 多声道平均为单声道
func Downmix(input []int16, channels int) []int16 {
	if channels <= 1 {
		return input
	}
	frames := len(input) / channels
	out := make([]int16, frames)
	for f := 0; f < frames; f++ {
		var sum int
		for ch := 0; ch < channels; ch++ {
			sum += int(input[f*channels+ch])
		}
		out[f] = int16(sum / channels)
	}
	return out
}

func clampInt16(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// ResamplingSource 把设备原生采样率/声道转换为引擎需要的单声道格式
type ResamplingSource struct {
	source     Source
	inputRate  int
	outputRate int
	channels   int
}

func NewResamplingSource(source Source, inputRate, channels, outputRate int) Source {
	if inputRate == outputRate && channels <= 1 {
		return source
	}
	return &ResamplingSource{
		source:     source,
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
	}
}

func (r *ResamplingSource) Read(ctx context.Context) ([]byte, error) {
	data, err := r.source.Read(ctx)
	if err != nil {
		return nil, err
	}
	mono := Downmix(decodeInt16LE(data), r.channels)
	resampled, err := Resample(mono, r.inputRate, r.outputRate, 1)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(resampled)*2)
	encodeInt16LE(out, resampled)
	return out, nil
}

func (r *ResamplingSource) Close() error {
	return r.source.Close()
}
