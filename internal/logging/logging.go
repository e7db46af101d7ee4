// Package logging 进程级 zap 日志。每条日志都带 trace_id，识别会话存续期间另带 session_id/session_seq。
package logging

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level  string
	Format string
}

// scope 日志上下文字段
type scope struct {
	traceID   string
	sessionID string
	seq       uint64
}

var (
	baseLogger *zap.Logger
	sugar      *zap.SugaredLogger
	level      = zap.NewAtomicLevel()
	current    atomic.Pointer[scope]
	sessionSeq atomic.Uint64
)

func init() {
	baseLogger = zap.NewNop()
	sugar = baseLogger.Sugar()
	current.Store(&scope{})
}

func InitFromEnv() error {
	return Init(Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	})
}

func Init(cfg Config) error {
	name := strings.ToLower(strings.TrimSpace(cfg.Level))
	if name == "" {
		name = "info"
	}
	lvl, err := zapcore.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %s", cfg.Level)
	}

	var zapCfg zap.Config
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.TimeKey = "ts"
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	case "", "console":
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return fmt.Errorf("invalid LOG_FORMAT: %s", cfg.Format)
	}
	level.SetLevel(lvl)
	zapCfg.Level = level

	logger, err := zapCfg.Build(zap.AddCaller(), zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	baseLogger = logger
	sugar = logger.Sugar()
	return nil
}

func Sync() {
	if baseLogger != nil {
		_ = baseLogger.Sync()
	}
}

// LevelHandler 运行时查看/修改日志级别（GET / PUT {"level":"debug"}）
func LevelHandler() http.Handler {
	return level
}

func SetTraceID(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	update(func(s *scope) { s.traceID = id })
}

func NewTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// StartSession 之后的日志带上 session_id，返回会话序号
func StartSession(id string) uint64 {
	seq := sessionSeq.Add(1)
	update(func(s *scope) {
		s.sessionID = id
		s.seq = seq
	})
	return seq
}

// EndSession 清除会话字段，序号保留
func EndSession() {
	update(func(s *scope) { s.sessionID = "" })
}

// CurrentSession 当前日志携带的 session_id，没有会话时为空
func CurrentSession() string {
	return current.Load().sessionID
}

func update(fn func(s *scope)) {
	for {
		old := current.Load()
		next := *old
		fn(&next)
		if current.CompareAndSwap(old, &next) {
			return
		}
	}
}

func Debugf(format string, args ...interface{}) {
	withFields().Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	withFields().Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	withFields().Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	withFields().Errorf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	withFields().Fatalf(format, args...)
}

func withFields() *zap.SugaredLogger {
	s := current.Load()
	tid := s.traceID
	if tid == "" {
		tid = "trace-unknown"
	}
	fields := []interface{}{"trace_id", tid}
	if s.sessionID != "" {
		fields = append(fields, "session_id", s.sessionID)
	}
	if s.seq > 0 {
		fields = append(fields, "session_seq", s.seq)
	}
	return sugar.With(fields...)
}
