// Package engine 定义语音识别引擎的外部契约：引擎工厂、引擎实例、回调监听以及固定参数表。
package engine

import "context"

// EventCodeSpeechDetected OnEvent 中唯一有意义的事件码
const EventCodeSpeechDetected = 1

// Result 识别结果，包括中间结果和最终结果
type Result struct {
	Text    string
	IsFinal bool
}

// Listener 引擎回调
type Listener interface {
	OnStart(sessionID, message string)
	OnEvent(sessionID string, code int, message string)
	OnResult(sessionID string, result Result)
	OnComplete(sessionID, message string)
	OnError(sessionID string, code int, message string)
}

// Engine 识别引擎实例
type Engine interface {
	SetListener(listener Listener)
	StartListening(params StartParams) error
	// Finish 结束当前会话，剩余结果回调完成后返回
	Finish(sessionID string) error
	// Cancel 立即中止当前会话，不再产生结果
	Cancel(sessionID string) error
	// Shutdown 释放引擎，之后所有调用返回 CodeShuttingDown
	Shutdown() error
}

// Factory 创建引擎并报告识别能力是否可用
type Factory interface {
	CreateEngine(ctx context.Context, params Params) (Engine, error)
	Available(ctx context.Context) (bool, error)
}

// NopListener 丢弃所有回调，引擎在未设置监听时使用
type NopListener struct{}

func (NopListener) OnStart(string, string)      {}
func (NopListener) OnEvent(string, int, string) {}
func (NopListener) OnResult(string, Result)     {}
func (NopListener) OnComplete(string, string)   {}
func (NopListener) OnError(string, int, string) {}
