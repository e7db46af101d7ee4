package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/voiced.json"

// 引擎后端
const (
	EngineDashScope = "dashscope"
	EngineVosk      = "vosk"
)

// 权限模式
const (
	PermissionProbe = "probe"
	PermissionGrant = "grant"
	PermissionDeny  = "deny"
)

type AppConfig struct {
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
	Engine     EngineConfig     `json:"engine" yaml:"engine"`
	Audio      AudioConfig      `json:"audio" yaml:"audio"`
	Permission PermissionConfig `json:"permission" yaml:"permission"`
	HTTP       HTTPConfig       `json:"http" yaml:"http"`
	Sinks      SinksConfig      `json:"sinks" yaml:"sinks"`
}

type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// EngineConfig 选择识别后端，识别参数本身是固定的
type EngineConfig struct {
	Provider  string          `json:"provider" yaml:"provider"`
	DashScope DashScopeConfig `json:"dashscope" yaml:"dashscope"`
	Vosk      VoskConfig      `json:"vosk" yaml:"vosk"`
}

type DashScopeConfig struct {
	APIKey   string `json:"api_key" yaml:"api_key"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	Model    string `json:"model" yaml:"model"`
}

type VoskConfig struct {
	ModelPath string `json:"model_path" yaml:"model_path"`
}

// AudioConfig 采集设备参数。CaptureRate/Channels 是设备原生格式，送入引擎前统一转成 16kHz 单声道
type AudioConfig struct {
	Device          string  `json:"device" yaml:"device"`
	HighLatency     bool    `json:"high_latency" yaml:"high_latency"`
	FramesPerBuffer int     `json:"frames_per_buffer" yaml:"frames_per_buffer"`
	CaptureRate     int     `json:"capture_rate" yaml:"capture_rate"`
	Channels        int     `json:"channels" yaml:"channels"`
	VADThreshold    float64 `json:"vad_threshold" yaml:"vad_threshold"`
}

type PermissionConfig struct {
	Mode string `json:"mode" yaml:"mode"`
}

type HTTPConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

type SinksConfig struct {
	WebSocket WebSocketSinkConfig `json:"websocket" yaml:"websocket"`
	MQTT      MQTTSinkConfig      `json:"mqtt" yaml:"mqtt"`
	NATS      NATSSinkConfig      `json:"nats" yaml:"nats"`
	Redis     RedisSinkConfig     `json:"redis" yaml:"redis"`
}

type WebSocketSinkConfig struct {
	Enable bool   `json:"enable" yaml:"enable"`
	Path   string `json:"path" yaml:"path"`
}

type MQTTSinkConfig struct {
	Enable      bool   `json:"enable" yaml:"enable"`
	BrokerURL   string `json:"broker_url" yaml:"broker_url"`
	ClientID    string `json:"client_id" yaml:"client_id"`
	Username    string `json:"username" yaml:"username"`
	Password    string `json:"password" yaml:"password"`
	TopicPrefix string `json:"topic_prefix" yaml:"topic_prefix"`
	QoS         byte   `json:"qos" yaml:"qos"`
}

type NATSSinkConfig struct {
	Enable  bool   `json:"enable" yaml:"enable"`
	URL     string `json:"url" yaml:"url"`
	Subject string `json:"subject" yaml:"subject"`
}

type RedisSinkConfig struct {
	Enable   bool   `json:"enable" yaml:"enable"`
	Addr     string `json:"addr" yaml:"addr"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	Channel  string `json:"channel" yaml:"channel"`
}

func DefaultConfig() *AppConfig {
	return &AppConfig{
		Logging: LoggingConfig{},
		Engine: EngineConfig{
			Provider: EngineDashScope,
			DashScope: DashScopeConfig{
				Model: "fun-asr-realtime",
			},
		},
		Audio: AudioConfig{
			FramesPerBuffer: 640,
			CaptureRate:     16000,
			Channels:        1,
			VADThreshold:    0.02,
		},
		Permission: PermissionConfig{
			Mode: PermissionProbe,
		},
		HTTP: HTTPConfig{
			Addr: "127.0.0.1:8090",
		},
		Sinks: SinksConfig{
			WebSocket: WebSocketSinkConfig{
				Enable: true,
				Path:   "/events",
			},
			MQTT: MQTTSinkConfig{
				ClientID:    "orion-voice",
				TopicPrefix: "orion/voice",
			},
			NATS: NATSSinkConfig{
				Subject: "orion.voice",
			},
			Redis: RedisSinkConfig{
				Addr:    "127.0.0.1:6379",
				Channel: "orion-voice-events",
			},
		},
	}
}

func Load(path string) (*AppConfig, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.ApplyEnv()
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

func (c *AppConfig) ApplyEnv() {
	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		c.Logging.Level = level
	}
	if format := strings.TrimSpace(os.Getenv("LOG_FORMAT")); format != "" {
		c.Logging.Format = format
	}
	if dash := strings.TrimSpace(os.Getenv("DASHSCOPE_API_KEY")); dash != "" {
		c.Engine.DashScope.APIKey = dash
	}
	if provider := strings.TrimSpace(os.Getenv("VOICE_ENGINE")); provider != "" {
		c.Engine.Provider = provider
	}
	if modelPath := strings.TrimSpace(os.Getenv("VOSK_MODEL_PATH")); modelPath != "" {
		c.Engine.Vosk.ModelPath = modelPath
	}
	if addr := strings.TrimSpace(os.Getenv("VOICE_HTTP_ADDR")); addr != "" {
		c.HTTP.Addr = addr
	}
}

func (c *AppConfig) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Engine.Provider)) {
	case EngineDashScope, EngineVosk:
	default:
		return fmt.Errorf("invalid engine.provider: %s", c.Engine.Provider)
	}

	switch strings.ToLower(strings.TrimSpace(c.Permission.Mode)) {
	case PermissionProbe, PermissionGrant, PermissionDeny:
	default:
		return fmt.Errorf("invalid permission.mode: %s", c.Permission.Mode)
	}

	if c.Audio.FramesPerBuffer <= 0 {
		return errors.New("audio.frames_per_buffer must be positive")
	}
	if c.Audio.CaptureRate < 0 || c.Audio.Channels < 0 {
		return errors.New("audio.capture_rate and audio.channels must not be negative")
	}
	if c.Audio.VADThreshold < 0 || c.Audio.VADThreshold >= 1 {
		return errors.New("audio.vad_threshold must be within [0, 1)")
	}

	if c.Sinks.WebSocket.Enable && !strings.HasPrefix(c.Sinks.WebSocket.Path, "/") {
		return errors.New("sinks.websocket.path must start with /")
	}
	if c.Sinks.MQTT.Enable && strings.TrimSpace(c.Sinks.MQTT.BrokerURL) == "" {
		return errors.New("sinks.mqtt.broker_url is required")
	}
	if c.Sinks.MQTT.QoS > 2 {
		return errors.New("sinks.mqtt.qos must be 0, 1 or 2")
	}
	if c.Sinks.NATS.Enable && strings.TrimSpace(c.Sinks.NATS.URL) == "" {
		return errors.New("sinks.nats.url is required")
	}
	if c.Sinks.Redis.Enable && strings.TrimSpace(c.Sinks.Redis.Channel) == "" {
		return errors.New("sinks.redis.channel is required")
	}

	return nil
}

// ValidateEngine 检查所选后端需要的凭据或模型
func (c *AppConfig) ValidateEngine() error {
	switch strings.ToLower(strings.TrimSpace(c.Engine.Provider)) {
	case EngineDashScope:
		if strings.TrimSpace(c.Engine.DashScope.APIKey) == "" {
			return errors.New("engine.dashscope.api_key is required")
		}
	case EngineVosk:
		if strings.TrimSpace(c.Engine.Vosk.ModelPath) == "" {
			return errors.New("engine.vosk.model_path is required")
		}
	}
	return nil
}
