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

package config

import (
	"context"
	"net"
	"time"

	"github.com/pion/stun"
	"github.com/pkg/errors"

	"github.com/livekit/protocol/logger"
)

const stunAttempts = 3

// ResolveNodeIPs fills NodeIPs with the address seen by a STUN server when UseExternalIP is set
// and no addresses were configured.
func (conf *RTCConfig) ResolveNodeIPs(ctx context.Context) error {
	if !conf.UseExternalIP || len(conf.NodeIPs) != 0 {
		return nil
	}

	stunServers := conf.STUNServers
	if len(stunServers) == 0 {
		stunServers = DefaultStunServers
	}

	var err error
	for i := 0; i < stunAttempts; i++ {
		var ip string
		ip, err = GetExternalIP(ctx, stunServers, nil)
		if err == nil {
			conf.NodeIPs = []string{ip}
			return nil
		}
		logger.Debugw("could not resolve external IP", "error", err, "attempt", i+1)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return errors.Errorf("could not resolve external IP: %v", err)
}

// GetExternalIP return external IP for localAddr from stun server. If localAddr is nil, a local address is chosen automatically.
func GetExternalIP(ctx context.Context, stunServers []string, localAddr net.Addr) (string, error) {
	if len(stunServers) == 0 {
		return "", errors.New("STUN servers are required but not defined")
	}
	dialer := &net.Dialer{
		LocalAddr: localAddr,
	}
	conn, err := dialer.DialContext(ctx, "udp4", stunServers[0])
	if err != nil {
		return "", err
	}
	c, err := stun.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return "", err
	}
	defer c.Close()

	message, err := stun.Build(stun.TransactionID, stun.BindingRequest)
	if err != nil {
		return "", err
	}

	// sufficiently large buffer to not block it
	ipChan := make(chan string, 20)
	errChan := make(chan error, 1)
	err = c.Start(message, func(res stun.Event) {
		if res.Error != nil {
			select {
			case errChan <- res.Error:
			default:
			}
			return
		}

		var xorAddr stun.XORMappedAddress
		if err := xorAddr.GetFrom(res.Message); err != nil {
			select {
			case errChan <- err:
			default:
			}
			return
		}
		if ip := xorAddr.IP.To4(); ip != nil {
			ipChan <- ip.String()
		}
	})
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	select {
	case nodeIP := <-ipChan:
		return nodeIP, nil
	case err := <-errChan:
		return "", errors.Wrap(err, "could not determine public IP")
	case <-ctx.Done():
		return "", errors.New("could not determine public IP")
	}
}
