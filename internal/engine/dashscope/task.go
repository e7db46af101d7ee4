package dashscope

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/liuscraft/orion-voice/internal/audio"
	"github.com/liuscraft/orion-voice/internal/engine"
	"github.com/liuscraft/orion-voice/internal/logging"
)

const mailboxSize = 64

// task 一次 run-task 会话。所有回调经 mailbox 由同一个 goroutine 按顺序投递。
type task struct {
	sessionID string
	taskID    string
	conn      *websocket.Conn
	listener  engine.Listener

	writeMu sync.Mutex

	mailboxMu     sync.Mutex
	mailbox       chan func()
	mailboxClosed bool

	started     chan struct{}
	startedOnce sync.Once
	done        chan struct{}

	failMu  sync.Mutex
	failure error

	completed atomic.Bool
	canceled  atomic.Bool

	finishOnce sync.Once
	finishErr  error

	stopPump    context.CancelFunc
	pumpDone    chan struct{}
	pumpStarted bool
}

func newTask(sessionID string, conn *websocket.Conn, listener engine.Listener) *task {
	if listener == nil {
		listener = engine.NopListener{}
	}
	return &task{
		sessionID: sessionID,
		taskID:    newTaskID(),
		conn:      conn,
		listener:  listener,
		mailbox:   make(chan func(), mailboxSize),
		started:   make(chan struct{}),
		done:      make(chan struct{}),
		stopPump:  func() {},
		pumpDone:  make(chan struct{}),
	}
}

func (t *task) run() {
	go t.dispatch()
	go t.receive()
}

func (t *task) enqueue(cb func()) {
	t.mailboxMu.Lock()
	defer t.mailboxMu.Unlock()
	if t.mailboxClosed {
		return
	}
	t.mailbox <- cb
}

func (t *task) closeMailbox() {
	t.mailboxMu.Lock()
	defer t.mailboxMu.Unlock()
	if !t.mailboxClosed {
		t.mailboxClosed = true
		close(t.mailbox)
	}
}

func (t *task) dispatch() {
	defer close(t.done)
	for cb := range t.mailbox {
		if t.canceled.Load() {
			continue
		}
		cb()
	}
}

func (t *task) writeJSON(msg taskMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *task) sendAudio(chunk []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteMessage(websocket.BinaryMessage, chunk)
}

// sendFinish 只发送一次 finish-task
func (t *task) sendFinish() error {
	t.finishOnce.Do(func() {
		t.finishErr = t.writeJSON(newFinishTask(t.taskID))
		if t.finishErr != nil {
			logging.Warnf("DashScope: send finish-task failed, task=%s: %v", t.taskID, t.finishErr)
		}
	})
	return t.finishErr
}

func (t *task) setFailure(err error) {
	t.failMu.Lock()
	defer t.failMu.Unlock()
	if t.failure == nil {
		t.failure = err
	}
}

func (t *task) err() error {
	t.failMu.Lock()
	defer t.failMu.Unlock()
	return t.failure
}

func (t *task) isDone() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *task) receive() {
	defer t.closeMailbox()
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if t.canceled.Load() || t.completed.Load() {
				return
			}
			t.fail(fmt.Errorf("connection lost: %w", err))
			return
		}
		event, err := decodeEvent(data)
		if err != nil {
			t.fail(fmt.Errorf("decode event: %w", err))
			return
		}
		if t.handle(event) {
			return
		}
	}
}

// handle 处理一条服务端事件，返回 true 表示任务结束
func (t *task) handle(event taskMessage) bool {
	id := t.sessionID
	switch event.Header.Event {
	case eventTaskStarted:
		t.enqueue(func() { t.listener.OnStart(id, "task started: "+t.taskID) })
		t.startedOnce.Do(func() { close(t.started) })
	case eventResultGenerated:
		if event.Payload.Output == nil || event.Payload.Output.Sentence == nil {
			return false
		}
		sentence := event.Payload.Output.Sentence
		if sentence.Heartbeat || sentence.Text == "" {
			return false
		}
		result := engine.Result{Text: sentence.Text, IsFinal: sentence.SentenceEnd}
		t.enqueue(func() { t.listener.OnResult(id, result) })
	case eventTaskFinished:
		t.completed.Store(true)
		t.enqueue(func() { t.listener.OnComplete(id, "task finished") })
		return true
	case eventTaskFailed:
		t.fail(errors.New(event.Header.failureMessage()))
		return true
	default:
		logging.Debugf("DashScope: ignore event %q", event.Header.Event)
	}
	return false
}

// fail 记录失败并上报，task-started 之前算启动失败，之后算识别失败
func (t *task) fail(err error) {
	t.setFailure(err)
	id := t.sessionID
	code := engine.CodeStartFailed
	if t.hasStarted() {
		code = engine.CodeRecognitionFailed
	}
	message := err.Error()
	t.enqueue(func() { t.listener.OnError(id, code, message) })
}

func (t *task) hasStarted() bool {
	select {
	case <-t.started:
		return true
	default:
		return false
	}
}

func (t *task) startPump(source audio.Source, cfg audio.PumpConfig) {
	ctx, cancel := context.WithCancel(context.Background())
	t.stopPump = cancel
	t.pumpStarted = true
	go t.pump(ctx, source, cfg)
}

// waitPump 停止送音并等待 pump 退出
func (t *task) waitPump() {
	t.stopPump()
	if t.pumpStarted {
		<-t.pumpDone
	}
}

// pump 把音频源推送到服务端，检测到端点后发送 finish-task
func (t *task) pump(ctx context.Context, source audio.Source, cfg audio.PumpConfig) {
	defer close(t.pumpDone)
	defer source.Close()

	id := t.sessionID
	reason, err := audio.Pump(ctx, source, cfg, t.sendAudio, func(ev audio.EndpointEvent) {
		if ev == audio.EndpointSpeechStarted {
			t.enqueue(func() { t.listener.OnEvent(id, engine.EventCodeSpeechDetected, "speech detected") })
			return
		}
		logging.Infof("DashScope: endpoint %s, session=%s", ev, id)
	})
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		logging.Errorf("DashScope: audio pump failed, session=%s: %v", id, err)
		t.enqueue(func() { t.listener.OnError(id, engine.CodeRecognitionFailed, "audio: "+err.Error()) })
	} else if reason == audio.EndpointNone {
		logging.Infof("DashScope: audio source drained, session=%s", id)
	}
	_ = t.sendFinish()
}

// abort 立即关闭连接，之后不再投递回调
func (t *task) abort() {
	t.canceled.Store(true)
	t.stopPump()
	_ = t.conn.Close()
	t.waitPump()
	<-t.done
}
