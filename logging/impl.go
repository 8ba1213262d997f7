package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type impl struct {
	*zap.SugaredLogger

	name  string
	level zap.AtomicLevel
	core  zapcore.Core
}

func newImpl(name string, level zap.AtomicLevel, core zapcore.Core) *impl {
	imp := &impl{name: name, level: level, core: core}
	imp.SugaredLogger = zap.New(core, zap.AddCaller()).Sugar().Named(name)
	return imp
}

func (imp *impl) Sublogger(subname string) Logger {
	newName := subname
	if imp.name != "" {
		newName = fmt.Sprintf("%s.%s", imp.name, subname)
	}
	return newImpl(newName, imp.level, imp.core)
}

// WithFields returns a logger that adds the given key/value pairs to every entry.
func (imp *impl) WithFields(keysAndValues ...interface{}) Logger {
	return &impl{
		SugaredLogger: imp.SugaredLogger.With(keysAndValues...),
		name:          imp.name,
		level:         imp.level,
		core:          imp.core,
	}
}

func (imp *impl) Level() zapcore.Level {
	return imp.level.Level()
}

func (imp *impl) Sync() error {
	return imp.core.Sync()
}
