// Package log 提供基于 zerolog 的日志工具，支持 stderr 和文件输出（lumberjack 轮转）.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yeisme/carevault/pkg/configs"
)

var (
	logger   = zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) { w.Out = os.Stderr })).With().Timestamp().Logger()
	mu       sync.RWMutex
	initOnce sync.Once
	closer   io.Closer
)

// Init 初始化全局 logger，重复调用只有第一次生效.
func Init(cfg configs.LogConfig, debug bool) {
	initOnce.Do(func() {
		l, c := build(cfg, debug)

		mu.Lock()
		logger = l
		closer = c
		mu.Unlock()

		log.Logger = l
	})
}

// build 根据配置构建 logger，返回需要在退出时关闭的文件输出.
func build(cfg configs.LogConfig, debug bool) (zerolog.Logger, io.Closer) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		fmt.Fprintf(os.Stderr, "invalid log level %q, defaulting to info\n", cfg.Level)

		lvl = zerolog.InfoLevel
	}

	if debug {
		lvl = zerolog.DebugLevel
	}

	zerolog.SetGlobalLevel(lvl)

	writers := []io.Writer{stderrWriter(cfg.Format)}

	var fileOut io.Closer

	if cfg.EnableFile && cfg.FilePath != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		writers = append(writers, lj)
		fileOut = lj
	}

	ctx := zerolog.New(io.MultiWriter(writers...)).With()
	if debug {
		ctx = ctx.Caller().Stack()

		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	return ctx.Timestamp().Str("app", configs.AppName).Logger(), fileOut
}

// stderrWriter 按格式选择标准错误输出，json 时直接写原始事件.
func stderrWriter(format configs.LogFormat) io.Writer {
	if format == configs.LogFormatJSON {
		return os.Stderr
	}

	return zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = os.Stderr
		w.TimeFormat = time.Kitchen
	})
}

// Logger 返回全局 logger；未调用 Init 时返回输出到 stderr 的默认 logger.
func Logger() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()

	l := logger

	return &l
}

// Close 关闭文件输出.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if closer == nil {
		return nil
	}

	err := closer.Close()
	closer = nil

	return err
}

// GinWriter 把 Gin 文本行转发为 zerolog 事件.
type GinWriter struct {
	logger *zerolog.Logger
	level  zerolog.Level
}

func NewGinWriter(logger *zerolog.Logger, level zerolog.Level) *GinWriter {
	return &GinWriter{logger: logger, level: level}
}

func (w *GinWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg == "" {
		return len(p), nil
	}

	switch w.level {
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		w.logger.Error().Str("source", "gin").Msg(msg)
	case zerolog.WarnLevel:
		w.logger.Warn().Str("source", "gin").Msg(msg)
	default:
		w.logger.Debug().Str("source", "gin").Msg(msg)
	}

	return len(p), nil
}
