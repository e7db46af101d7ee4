// Package permission 封装麦克风权限申请，保证每次申请只有一个结果。
package permission

import (
	"context"
	"fmt"
	"slices"

	"github.com/goccy/go-json"
	"github.com/liuscraft/orion-voice/internal/logging"
)

// Microphone 录音权限名
const Microphone = "microphone"

// 单个权限的授权结果
const (
	Granted = 0
	Denied  = -1
)

// AuthResult 平台返回的原始授权结果
type AuthResult struct {
	Permissions []string `json:"permissions"`
	AuthResults []int    `json:"authResults"`
}

// Any 是否有任一权限被授予
func (r AuthResult) Any() bool {
	return slices.Contains(r.AuthResults, Granted)
}

func (r AuthResult) String() string {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf("permissions: %v, authResults: %v", r.Permissions, r.AuthResults)
	}
	return string(data)
}

// Requester 平台权限能力
type Requester interface {
	RequestPermissions(ctx context.Context, permissions []string) (AuthResult, error)
}

// RequesterFunc 函数适配
type RequesterFunc func(ctx context.Context, permissions []string) (AuthResult, error)

func (f RequesterFunc) RequestPermissions(ctx context.Context, permissions []string) (AuthResult, error) {
	return f(ctx, permissions)
}

// Outcome 申请结果，Granted 为 false 时 Details/Err 说明原因
type Outcome struct {
	Granted bool
	Details AuthResult
	Err     error
}

// Reason 拒绝原因
func (o Outcome) Reason() string {
	if o.Err != nil {
		return o.Err.Error()
	}
	return o.Details.String()
}

// Gate 权限门
type Gate struct {
	requester Requester
}

func NewGate(requester Requester) *Gate {
	return &Gate{requester: requester}
}

// RequestMicrophoneAccess 申请录音权限。
// 无论 requester 成功、失败、panic 还是 ctx 取消，都只返回一个结果。
func (g *Gate) RequestMicrophoneAccess(ctx context.Context) Outcome {
	if g.requester == nil {
		return Outcome{Err: fmt.Errorf("permission requester not configured")}
	}

	done := make(chan Outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Outcome{Err: fmt.Errorf("permission request panicked: %v", r)}
			}
		}()
		result, err := g.requester.RequestPermissions(ctx, []string{Microphone})
		if err != nil {
			done <- Outcome{Details: result, Err: err}
			return
		}
		done <- Outcome{Granted: result.Any(), Details: result}
	}()

	select {
	case outcome := <-done:
		logging.Infof("Permission: microphone granted=%v details=%s", outcome.Granted, outcome.Details)
		return outcome
	case <-ctx.Done():
		logging.Warnf("Permission: request abandoned: %v", ctx.Err())
		return Outcome{Err: ctx.Err()}
	}
}
