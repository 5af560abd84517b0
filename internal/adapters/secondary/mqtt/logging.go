package mqtt

import (
	"io"
	"os"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/hashicorp/go-hclog"
)

// ConfigureClientLogging routes paho's package-level loggers through hclog.
// DEBUG output is only wired when level is hclog.Debug or lower, since paho is very chatty there.
func ConfigureClientLogging(level hclog.Level, output io.Writer) hclog.Logger {
	if output == nil {
		output = os.Stderr
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "paho",
		Level:  level,
		Output: output,
	})

	paho.CRITICAL = logger.StandardLogger(&hclog.StandardLoggerOptions{ForceLevel: hclog.Error})
	paho.ERROR = logger.StandardLogger(&hclog.StandardLoggerOptions{ForceLevel: hclog.Error})
	paho.WARN = logger.StandardLogger(&hclog.StandardLoggerOptions{ForceLevel: hclog.Warn})
	if level <= hclog.Debug {
		paho.DEBUG = logger.StandardLogger(&hclog.StandardLoggerOptions{ForceLevel: hclog.Debug})
	} else {
		paho.DEBUG = paho.NOOPLogger{}
	}

	return logger
}

// HclogLevel maps the service log level name onto hclog.
func HclogLevel(name string) hclog.Level {
	l := hclog.LevelFromString(name)
	if l == hclog.NoLevel {
		return hclog.Info
	}
	return l
}
