package engine

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// 引擎错误码
const (
	// CodeCreateFailed 语种不支持、模式不支持、初始化超时、资源不存在等
	CodeCreateFailed = 1002200001
	CodeStartFailed  = 1002200002
	// CodeRecognitionFailed 会话已开始后识别中断：服务端任务失败、连接断开、音频源出错
	CodeRecognitionFailed = 1002200003
	CodeFinishFailed      = 1002200004
	CodeCancelFailed      = 1002200005
	// CodeBusy 引擎正在忙碌中，一般是多个调用方同时使用识别引擎
	CodeBusy = 1002200006
	// CodeShuttingDown 引擎正在销毁中
	CodeShuttingDown = 1002200008
)

// Error 引擎返回的错误，错误码对上层是不透明的
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) Error() string {
	return fmt.Sprintf("engine error %d: %s", e.Code, e.Message)
}

// JSON 序列化后的错误内容
func (e *Error) JSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"code":%d,"message":%q}`, e.Code, e.Message)
	}
	return string(data)
}

// AsError 取出 err 链上的引擎错误
func AsError(err error) (*Error, bool) {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr, true
	}
	return nil, false
}

// IsCode 判断 err 是否为指定错误码
func IsCode(err error, code int) bool {
	engineErr, ok := AsError(err)
	return ok && engineErr.Code == code
}
