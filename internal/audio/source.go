// Package audio 为识别引擎提供音频采集、分帧和端点检测。
package audio

import (
	"context"
	"encoding/binary"
)

// Source 音频输入源，输出 16bit 小端 PCM
type Source interface {
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// SourceFactory 每个识别会话打开一个新的音频源
type SourceFactory func() (Source, error)

// Chunker 把任意长度的读取结果切成固定大小的发送块
type Chunker struct {
	size int
	buf  []byte
}

func NewChunker(size int) *Chunker {
	if size <= 0 {
		size = 1
	}
	return &Chunker{size: size}
}

// Push 追加数据，返回已经凑满的块
func (c *Chunker) Push(data []byte) [][]byte {
	c.buf = append(c.buf, data...)
	var chunks [][]byte
	for len(c.buf) >= c.size {
		chunk := make([]byte, c.size)
		copy(chunk, c.buf[:c.size])
		chunks = append(chunks, chunk)
		c.buf = c.buf[c.size:]
	}
	return chunks
}

// Flush 取出剩余不足一块的数据
func (c *Chunker) Flush() []byte {
	if len(c.buf) == 0 {
		return nil
	}
	rest := make([]byte, len(c.buf))
	copy(rest, c.buf)
	c.buf = c.buf[:0]
	return rest
}

func encodeInt16LE(dst []byte, src []int16) {
	for i, v := range src {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(v))
	}
}

func decodeInt16LE(src []byte) []int16 {
	out := make([]int16, len(src)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(src[i*2:]))
	}
	return out
}
