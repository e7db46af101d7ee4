package voice

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/liuscraft/orion-voice/internal/engine"
)

// ErrNoEngine 当前没有可操作的引擎
var ErrNoEngine = errors.New("no active speech engine")

// ErrorKind 错误分类
type ErrorKind int

const (
	KindPermissionDenied ErrorKind = iota + 1
	KindEngineCreationFailed
	KindEngineOperationFailed
	KindCapabilityQueryFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission denied"
	case KindEngineCreationFailed:
		return "engine creation failed"
	case KindEngineOperationFailed:
		return "engine operation failed"
	case KindCapabilityQueryFailed:
		return "capability query failed"
	default:
		return "unknown error"
	}
}

// Error 生命周期操作返回给调用方的错误
type Error struct {
	Kind ErrorKind
	// Op 出错的操作：start/stop/cancel/destroy/available
	Op string
	// Details 需要原样返回给调用方的原始内容，例如授权结果
	Details any
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s speech: %s: %s", e.Op, e.Kind, e.Payload())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Payload 序列化后的错误内容。引擎错误保持 {code, message} 原样透传。
func (e *Error) Payload() string {
	if engineErr, ok := engine.AsError(e.Err); ok {
		return engineErr.JSON()
	}
	if e.Details != nil {
		if data, err := json.Marshal(e.Details); err == nil {
			return string(data)
		}
	}
	if e.Err != nil {
		data, err := json.Marshal(map[string]string{"message": e.Err.Error()})
		if err == nil {
			return string(data)
		}
		return e.Err.Error()
	}
	return e.Kind.String()
}

// Code 引擎错误码，非引擎错误返回 0
func (e *Error) Code() int {
	if engineErr, ok := engine.AsError(e.Err); ok {
		return engineErr.Code
	}
	return 0
}

// IsKind 判断 err 是否为指定分类
func IsKind(err error, kind ErrorKind) bool {
	var voiceErr *Error
	return errors.As(err, &voiceErr) && voiceErr.Kind == kind
}

// ErrorPayload 返回给调用方的错误字符串，nil 返回空串
func ErrorPayload(err error) string {
	if err == nil {
		return ""
	}
	var voiceErr *Error
	if errors.As(err, &voiceErr) {
		return voiceErr.Payload()
	}
	return err.Error()
}
