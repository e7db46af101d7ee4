// voiced 语音识别会话服务：HTTP 控制接口 + 事件投递，另带单次识别与设备诊断子命令。
package main

import (
	"fmt"
	"os"

	"github.com/liuscraft/orion-voice/internal/config"
	"github.com/liuscraft/orion-voice/internal/logging"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "voiced",
	Short: "Speech recognition session daemon",
	Long: `voiced manages one speech recognition session at a time.
It exposes start/stop/cancel/destroy over HTTP and streams the
normalized recognition events to WebSocket, MQTT, NATS and Redis.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "config file path (json or yaml)")
	rootCmd.AddCommand(serveCmd, listenCmd, devicesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig 加载配置并初始化日志
func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logging.SetTraceID(logging.NewTraceID())
	return cfg, nil
}
