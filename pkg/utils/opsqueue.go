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

package utils

import (
	"sync"

	"github.com/gammazero/deque"

	"github.com/livekit/protocol/logger"
)

// OpsQueue runs ops one at a time, in enqueue order, on a single goroutine.
// The backlog is unbounded, warnSize only controls when a growing backlog is logged.
type OpsQueue struct {
	logger   logger.Logger
	name     string
	warnSize int

	lock      sync.Mutex
	ops       deque.Deque[func()]
	wake      chan struct{}
	isStarted bool
	isStopped bool
	warned    bool
}

func NewOpsQueue(logger logger.Logger, name string, warnSize int) *OpsQueue {
	return &OpsQueue{
		logger:   logger,
		name:     name,
		warnSize: warnSize,
		wake:     make(chan struct{}, 1),
	}
}

func (oq *OpsQueue) Start() {
	oq.lock.Lock()
	if oq.isStarted || oq.isStopped {
		oq.lock.Unlock()
		return
	}
	oq.isStarted = true
	oq.lock.Unlock()

	go oq.process()
}

// Stop drops pending ops. An op already running is allowed to finish,
// Stop may be called from within an op.
func (oq *OpsQueue) Stop() {
	oq.lock.Lock()
	if oq.isStopped {
		oq.lock.Unlock()
		return
	}

	oq.isStopped = true
	oq.ops.Clear()
	oq.lock.Unlock()

	oq.signal()
}

func (oq *OpsQueue) IsStopped() bool {
	oq.lock.Lock()
	defer oq.lock.Unlock()
	return oq.isStopped
}

func (oq *OpsQueue) Enqueue(op func()) {
	oq.lock.Lock()
	if oq.isStopped {
		oq.lock.Unlock()
		return
	}

	oq.ops.PushBack(op)
	if oq.warnSize > 0 && oq.ops.Len() > oq.warnSize {
		if !oq.warned {
			oq.warned = true
			oq.logger.Warnw("ops queue backlog", nil, "name", oq.name, "size", oq.ops.Len())
		}
	} else {
		oq.warned = false
	}
	oq.lock.Unlock()

	oq.signal()
}

func (oq *OpsQueue) signal() {
	select {
	case oq.wake <- struct{}{}:
	default:
	}
}

func (oq *OpsQueue) process() {
	for range oq.wake {
		for {
			oq.lock.Lock()
			if oq.isStopped {
				oq.lock.Unlock()
				return
			}
			if oq.ops.Len() == 0 {
				oq.lock.Unlock()
				break
			}
			op := oq.ops.PopFront()
			oq.lock.Unlock()

			op()
		}
	}
}
