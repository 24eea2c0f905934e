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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/livekit/whep-client/pkg/testutils"
)

func TestLoggerFactory_Level(t *testing.T) {
	l := testutils.NewRecordingLogger()
	pion := NewLoggerFactory(l, "warn").NewLogger("ice")

	pion.Trace("trace")
	pion.Debug("debug")
	pion.Infof("info %d", 1)
	pion.Warnf("warn %d", 2)
	pion.Error("error")

	entries := l.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, testutils.LogEntry{Level: "warn", Name: "pion.ice", Message: "warn 2", KeysAndValues: []interface{}{"error", nil}}, entries[0])
	require.Equal(t, "error", entries[1].Level)
	require.Equal(t, "error", entries[1].Message)
}

func TestLoggerFactory_InfoIsDebug(t *testing.T) {
	l := testutils.NewRecordingLogger()
	pion := NewLoggerFactory(l, "").NewLogger("dtls")

	pion.Debugf("dropped %s", "below info")
	pion.Info("gathering")
	require.Equal(t, []string{"gathering"}, l.Messages("debug"))
}
