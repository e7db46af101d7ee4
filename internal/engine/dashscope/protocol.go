package dashscope

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/liuscraft/orion-voice/internal/engine"
)

const (
	actionRunTask    = "run-task"
	actionFinishTask = "finish-task"

	eventTaskStarted     = "task-started"
	eventResultGenerated = "result-generated"
	eventTaskFinished    = "task-finished"
	eventTaskFailed      = "task-failed"
)

type taskMessage struct {
	Header  taskHeader  `json:"header"`
	Payload taskPayload `json:"payload"`
}

type taskHeader struct {
	Action       string `json:"action,omitempty"`
	TaskID       string `json:"task_id,omitempty"`
	Streaming    string `json:"streaming,omitempty"`
	Event        string `json:"event,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type taskPayload struct {
	TaskGroup  string          `json:"task_group,omitempty"`
	Task       string          `json:"task,omitempty"`
	Function   string          `json:"function,omitempty"`
	Model      string          `json:"model,omitempty"`
	Parameters *taskParameters `json:"parameters,omitempty"`
	Input      map[string]any  `json:"input"`
	Output     *taskOutput     `json:"output,omitempty"`
	Usage      *taskUsage      `json:"usage,omitempty"`
}

// taskParameters run-task 参数，静音断句时间沿用会话的后端点
type taskParameters struct {
	Format             string   `json:"format"`
	SampleRate         int      `json:"sample_rate"`
	MaxSentenceSilence int      `json:"max_sentence_silence,omitempty"`
	LanguageHints      []string `json:"language_hints,omitempty"`
	Heartbeat          bool     `json:"heartbeat,omitempty"`
}

type taskOutput struct {
	Sentence *taskSentence `json:"sentence,omitempty"`
}

type taskSentence struct {
	BeginTime   int64  `json:"begin_time"`
	EndTime     *int64 `json:"end_time"`
	Text        string `json:"text"`
	Heartbeat   bool   `json:"heartbeat"`
	SentenceEnd bool   `json:"sentence_end"`
}

type taskUsage struct {
	Duration int `json:"duration"`
}

func newTaskID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func newRunTask(taskID, model string, hints []string, params engine.StartParams) taskMessage {
	return taskMessage{
		Header: taskHeader{
			Action:    actionRunTask,
			TaskID:    taskID,
			Streaming: "duplex",
		},
		Payload: taskPayload{
			TaskGroup: "audio",
			Task:      "asr",
			Function:  "recognition",
			Model:     model,
			Parameters: &taskParameters{
				Format:             params.Audio.AudioType,
				SampleRate:         params.Audio.SampleRate,
				MaxSentenceSilence: int(params.Options.VADEnd.Milliseconds()),
				LanguageHints:      hints,
			},
			Input: map[string]any{},
		},
	}
}

func newFinishTask(taskID string) taskMessage {
	return taskMessage{
		Header: taskHeader{
			Action:    actionFinishTask,
			TaskID:    taskID,
			Streaming: "duplex",
		},
		Payload: taskPayload{
			Input: map[string]any{},
		},
	}
}

func decodeEvent(data []byte) (taskMessage, error) {
	var msg taskMessage
	err := json.Unmarshal(data, &msg)
	return msg, err
}

// failureMessage 拼接服务端错误码和错误信息
func (h taskHeader) failureMessage() string {
	switch {
	case h.ErrorCode != "" && h.ErrorMessage != "":
		return h.ErrorCode + ": " + h.ErrorMessage
	case h.ErrorMessage != "":
		return h.ErrorMessage
	case h.ErrorCode != "":
		return h.ErrorCode
	default:
		return "task failed"
	}
}
