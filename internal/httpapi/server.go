// Package httpapi 提供语音识别生命周期的 HTTP 控制接口。
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/liuscraft/orion-voice/internal/engine"
	"github.com/liuscraft/orion-voice/internal/logging"
	"github.com/liuscraft/orion-voice/internal/voice"
)

// SpeechService 由 voice.Controller 实现
type SpeechService interface {
	StartSpeech(ctx context.Context, locale string) error
	StopSpeech(ctx context.Context) error
	CancelSpeech(ctx context.Context) error
	DestroySpeech(ctx context.Context) error
	IsRecognizing() bool
	IsSpeechAvailable(ctx context.Context) (bool, error)
	State() voice.State
	SessionID() string
}

type startRequest struct {
	Locale string `json:"locale"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code,omitempty"`
}

type statusResponse struct {
	State       string `json:"state"`
	SessionID   string `json:"sessionId,omitempty"`
	Recognizing bool   `json:"recognizing"`
}

// Options 可选挂载项
type Options struct {
	// Events 事件推送端点，为 nil 时不挂载
	Events     http.Handler
	EventsPath string
	// LogLevel 运行时日志级别端点，挂在 /loglevel
	LogLevel http.Handler
}

// NewRouter 构造路由
func NewRouter(svc SpeechService, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/speech", func(r chi.Router) {
		r.Post("/start", func(w http.ResponseWriter, req *http.Request) {
			var body startRequest
			if err := decodeOptional(req, &body); err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
				return
			}
			if err := svc.StartSpeech(req.Context(), body.Locale); err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, status(svc))
		})
		r.Post("/stop", lifecycle(svc, svc.StopSpeech))
		r.Post("/cancel", lifecycle(svc, svc.CancelSpeech))
		r.Post("/destroy", lifecycle(svc, svc.DestroySpeech))
		r.Get("/recognizing", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]bool{"recognizing": svc.IsRecognizing()})
		})
		r.Get("/available", func(w http.ResponseWriter, req *http.Request) {
			ok, err := svc.IsSpeechAvailable(req.Context())
			body := map[string]any{"available": ok}
			if err != nil {
				body["error"] = voice.ErrorPayload(err)
			}
			writeJSON(w, http.StatusOK, body)
		})
		r.Get("/state", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, status(svc))
		})
	})

	if opts.Events != nil {
		path := opts.EventsPath
		if path == "" {
			path = "/events"
		}
		r.Handle(path, opts.Events)
	}
	if opts.LogLevel != nil {
		r.Handle("/loglevel", opts.LogLevel)
	}
	return r
}

func lifecycle(svc SpeechService, op func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := op(req.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status(svc))
	}
}

func status(svc SpeechService) statusResponse {
	return statusResponse{
		State:       svc.State().String(),
		SessionID:   svc.SessionID(),
		Recognizing: svc.IsRecognizing(),
	}
}

// decodeOptional 允许空请求体
func decodeOptional(req *http.Request, v any) error {
	if req.Body == nil {
		return nil
	}
	err := json.NewDecoder(req.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// StatusFor 错误对应的 HTTP 状态码
func StatusFor(err error) int {
	switch {
	case voice.IsKind(err, voice.KindPermissionDenied):
		return http.StatusForbidden
	case engine.IsCode(err, engine.CodeBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: voice.ErrorPayload(err)}
	var voiceErr *voice.Error
	if errors.As(err, &voiceErr) {
		resp.Code = voiceErr.Code()
	}
	writeJSON(w, StatusFor(err), resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			logging.Infof("HTTP: %s %s upgrade", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.Infof("HTTP: %s %s %d %s reqid=%s", r.Method, r.URL.Path, ww.Status(), time.Since(start), middleware.GetReqID(r.Context()))
	})
}
