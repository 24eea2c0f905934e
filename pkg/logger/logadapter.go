// Copyright 2023 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package clientlogger

import (
	"fmt"

	"github.com/pion/logging"
	"go.uber.org/zap/zapcore"

	"github.com/livekit/protocol/logger"
)

// name of the logger used for pion logs, its level is set by logging.pion_level
const PionComponent = "pion"

// implements webrtc.LoggerFactory
type loggerFactory struct {
	logger logger.Logger
	level  zapcore.Level
}

// NewLoggerFactory routes pion logs to l, dropping those below level. An empty level means info.
func NewLoggerFactory(l logger.Logger, level string) logging.LoggerFactory {
	return &loggerFactory{
		logger: l.WithName(PionComponent),
		level:  logger.ParseZapLevel(level),
	}
}

func (f *loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &logAdapter{
		logger: f.logger.WithName(scope),
		level:  f.level,
	}
}

// implements webrtc.LeveledLogger
type logAdapter struct {
	logger logger.Logger
	level  zapcore.Level
}

func (l *logAdapter) Trace(msg string) {
	// ignore trace
}

func (l *logAdapter) Tracef(format string, args ...interface{}) {
	// ignore trace
}

func (l *logAdapter) Debug(msg string) {
	if l.level.Enabled(zapcore.DebugLevel) {
		l.logger.Debugw(msg)
	}
}

func (l *logAdapter) Debugf(format string, args ...interface{}) {
	if l.level.Enabled(zapcore.DebugLevel) {
		l.logger.Debugw(fmt.Sprintf(format, args...))
	}
}

// pion is chatty at info, treat it as debug
func (l *logAdapter) Info(msg string) {
	if l.level.Enabled(zapcore.InfoLevel) {
		l.logger.Debugw(msg)
	}
}

func (l *logAdapter) Infof(format string, args ...interface{}) {
	if l.level.Enabled(zapcore.InfoLevel) {
		l.logger.Debugw(fmt.Sprintf(format, args...))
	}
}

func (l *logAdapter) Warn(msg string) {
	if l.level.Enabled(zapcore.WarnLevel) {
		l.logger.Warnw(msg, nil)
	}
}

func (l *logAdapter) Warnf(format string, args ...interface{}) {
	if l.level.Enabled(zapcore.WarnLevel) {
		l.logger.Warnw(fmt.Sprintf(format, args...), nil)
	}
}

func (l *logAdapter) Error(msg string) {
	if l.level.Enabled(zapcore.ErrorLevel) {
		l.logger.Errorw(msg, nil)
	}
}

func (l *logAdapter) Errorf(format string, args ...interface{}) {
	if l.level.Enabled(zapcore.ErrorLevel) {
		l.logger.Errorw(fmt.Sprintf(format, args...), nil)
	}
}
