// Package logger builds zap loggers from viper configuration.
package logger

import (
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	formatJSON    = "json"
	formatConsole = "console"

	defaultSamplingInitial    = 100
	defaultSamplingThereafter = 100
)

func safeLevel(lvl string) zap.AtomicLevel {
	switch strings.ToLower(lvl) {
	case "debug":
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		return zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		return zap.NewAtomicLevelAt(zap.ErrorLevel)
	case "fatal":
		return zap.NewAtomicLevelAt(zap.FatalLevel)
	default:
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
}

// NewLogger builds a logger from the "logger" section of v:
//
//	level       debug | info | warn | error | fatal (info by default)
//	format      console | json (console by default, CLI output is for humans)
//	destination stderr | stdout | file path (stderr by default)
//	sampling    initial and thereafter counts, disabled if unset
//
// Records are tagged with "app.name" and "app.version" unless
// "logger.no_disclaimer" is set.
func NewLogger(v *viper.Viper) (*zap.Logger, error) {
	c := zap.NewProductionConfig()
	c.Sampling = nil

	dst := v.GetString("logger.destination")
	if dst == "" {
		dst = "stderr"
	}
	c.OutputPaths = []string{dst}
	c.ErrorOutputPaths = []string{"stderr"}

	if v.IsSet("logger.sampling") {
		c.Sampling = &zap.SamplingConfig{
			Initial:    defaultSamplingInitial,
			Thereafter: defaultSamplingThereafter,
		}

		if val := v.GetInt("logger.sampling.initial"); val > 0 {
			c.Sampling.Initial = val
		}

		if val := v.GetInt("logger.sampling.thereafter"); val > 0 {
			c.Sampling.Thereafter = val
		}
	}

	c.Level = safeLevel(v.GetString("logger.level"))

	switch f := v.GetString("logger.format"); strings.ToLower(f) {
	case formatJSON:
		c.Encoding = formatJSON
	default:
		c.Encoding = formatConsole
		c.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := c.Build(zap.AddStacktrace(zap.NewAtomicLevelAt(zap.FatalLevel)))
	if err != nil {
		return nil, err
	}

	if v.GetBool("logger.no_disclaimer") {
		return l, nil
	}

	return l.With(
		zap.String("app_name", v.GetString("app.name")),
		zap.String("app_version", v.GetString("app.version"))), nil
}
