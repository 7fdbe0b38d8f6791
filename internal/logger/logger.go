package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Log является общим логгером процесса. До Init указывает на стандартный логгер logrus.
var Log = logrus.StandardLogger()

// Init инициализирует структурированный логгер: JSON для production, текст для development.
func Init(env string) {
	Log = logrus.New()

	lvl := logrus.InfoLevel
	if env == "development" {
		lvl = logrus.DebugLevel
	}
	Log.SetLevel(lvl)

	if env == "development" {
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return
	}
	Log.SetFormatter(&logrus.JSONFormatter{})
}

// SetLevel переопределяет уровень логирования строкой ("debug", "warn" ...).
func SetLevel(level string) {
	if lvl, err := logrus.ParseLevel(level); err == nil {
		Log.SetLevel(lvl)
	}
}

// Component возвращает логгер с полем component.
func Component(name string) *logrus.Entry {
	return Log.WithField("component", name)
}

// Discard возвращает логгер без вывода для тестов.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
