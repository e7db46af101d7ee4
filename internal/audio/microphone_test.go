package audio

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

type blockingStream struct {
	readStarted chan struct{}
	abortCalled chan struct{}
}

func newBlockingStream() *blockingStream {
	return &blockingStream{
		readStarted: make(chan struct{}),
		abortCalled: make(chan struct{}),
	}
}

func (s *blockingStream) Start() error {
	return nil
}

func (s *blockingStream) Read() error {
	close(s.readStarted)
	<-s.abortCalled
	return errors.New("aborted")
}

func (s *blockingStream) Abort() error {
	select {
	case <-s.abortCalled:
	default:
		close(s.abortCalled)
	}
	return nil
}

func (s *blockingStream) Stop() error {
	return nil
}

func (s *blockingStream) Close() error {
	return nil
}

type filledStream struct {
	buffer []int16
	value  int16
}

func (s *filledStream) Start() error { return nil }
func (s *filledStream) Read() error {
	for i := range s.buffer {
		s.buffer[i] = s.value
	}
	return nil
}
func (s *filledStream) Abort() error { return nil }
func (s *filledStream) Stop() error  { return nil }
func (s *filledStream) Close() error { return nil }

func testMicConfig(frames int) MicrophoneConfig {
	return MicrophoneConfig{SampleRate: 16000, Channels: 1, FramesPerBuffer: frames}
}

func TestMicrophoneReadCanceled(t *testing.T) {
	stream := newBlockingStream()
	buffer := make([]int16, 160)
	mic := newMicrophoneWithStream(stream, testMicConfig(len(buffer)), buffer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		_, err := mic.Read(ctx)
		errCh <- err
	}()

	<-stream.readStarted
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context canceled, got %v", err)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Read should return after context cancellation")
	}

	select {
	case <-stream.abortCalled:
	default:
		t.Fatal("expected Abort to be called on context cancellation")
	}
}

func TestMicrophoneReadAfterClose(t *testing.T) {
	stream := newBlockingStream()
	buffer := make([]int16, 160)
	mic := newMicrophoneWithStream(stream, testMicConfig(len(buffer)), buffer)

	errCh := make(chan error, 1)
	go func() {
		_, err := mic.Read(context.Background())
		errCh <- err
	}()

	<-stream.readStarted
	if err := mic.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, io.EOF) {
			t.Fatalf("expected io.EOF after close, got %v", err)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Read should return after Close")
	}
}

func TestMicrophoneReadEncodesLittleEndian(t *testing.T) {
	buffer := make([]int16, 4)
	stream := &filledStream{buffer: buffer, value: 0x0102}
	mic := newMicrophoneWithStream(stream, testMicConfig(len(buffer)), buffer)

	data, err := mic.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(data) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(data))
	}
	if data[0] != 0x02 || data[1] != 0x01 {
		t.Fatalf("expected little endian samples, got %v", data[:2])
	}
}
