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

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/whep-client/pkg/config"
	"github.com/livekit/whep-client/pkg/rtc"
	"github.com/livekit/whep-client/pkg/sink"
	"github.com/livekit/whep-client/pkg/telemetry/prometheus"
	"github.com/livekit/whep-client/pkg/whep"
	"github.com/livekit/whep-client/version"
)

var baseFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "config",
		Usage: "path to config file",
	},
	&cli.StringFlag{
		Name:    "config-body",
		Usage:   "config in YAML, typically passed in as an environment var in a container",
		EnvVars: []string{"WHEP_CLIENT_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "url",
		Usage:   "WHEP endpoint to play",
		EnvVars: []string{"WHEP_URL"},
	},
	&cli.StringFlag{
		Name:    "token",
		Usage:   "bearer token for the endpoint, @file reads it from a file",
		EnvVars: []string{"WHEP_TOKEN"},
	},
	&cli.StringSliceFlag{
		Name:    "node-ip",
		Usage:   "IP address to advertise in candidates, use flag multiple times to specify multiple addresses",
		EnvVars: []string{"NODE_IP"},
	},
	&cli.BoolFlag{
		Name:  "dev",
		Usage: "sets log-level to debug and console formatter",
	},
	&cli.BoolFlag{
		Name:   "disable-strict-config",
		Usage:  "disables strict config parsing",
		Hidden: true,
	},
}

func main() {
	generatedFlags, err := config.GenerateCLIFlags(baseFlags, true)
	if err != nil {
		fmt.Println(err)
	}

	app := &cli.App{
		Name:        "whep-client",
		Usage:       "Plays a WHEP stream and keeps the session alive",
		Description: "run without subcommands to start playing",
		Flags:       append(baseFlags, generatedFlags...),
		Action:      startClient,
		Commands: []*cli.Command{
			{
				Name:   "probe-codecs",
				Usage:  "print which optional audio codecs the local WebRTC engine can receive",
				Action: probeCodecs,
			},
			{
				Name:   "print-config",
				Usage:  "print the effective configuration",
				Action: printConfig,
			},
			{
				Name:   "help-verbose",
				Usage:  "prints app help, including all generated configuration flags",
				Action: helpVerbose,
			},
		},
		Version: version.Version,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func getConfig(c *cli.Context) (*config.Config, error) {
	confString, err := getConfigString(c.String("config"), c.String("config-body"))
	if err != nil {
		return nil, err
	}

	strictMode := true
	if c.Bool("disable-strict-config") {
		strictMode = false
	}

	conf, err := config.NewConfig(confString, strictMode, c, baseFlags)
	if err != nil {
		return nil, err
	}
	config.InitLoggerFromConfig(&conf.Logging)

	return conf, nil
}

func startClient(c *cli.Context) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := conf.RTC.ResolveNodeIPs(ctx); err != nil {
		logger.Warnw("could not resolve external IP, advertising local addresses", err)
	}

	webRTCConfig, err := rtc.NewWebRTCConfig(&conf.RTC, logger.GetLogger(), conf.Logging.PionLevel)
	if err != nil {
		return err
	}

	if conf.RecordDir != "" {
		if err := os.MkdirAll(conf.RecordDir, 0o755); err != nil {
			return err
		}
	}

	prometheus.Init()
	if conf.PrometheusPort > 0 {
		go servePrometheus(conf.PrometheusPort)
	}

	trackSink := sink.NewTrackSink(conf.RecordDir, logger.GetLogger())
	client, err := whep.NewClient(whep.ClientParams{
		URL:            conf.URL,
		Token:          conf.Token,
		RestartPause:   conf.RestartPause,
		RequestTimeout: conf.RequestTimeout,
		ProbeCodecs:    conf.ProbeCodecs,
		ProbeTimeout:   conf.ProbeTimeout,
		Engine:         rtc.NewPionEngine(webRTCConfig),
		Handler:        trackSink,
		Logger:         logger.GetLogger(),
	})
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	logger.Infow("starting WHEP client", "version", version.Version, "url", conf.URL)
	client.Start()

	go logStats(ctx, client, conf.StatsInterval)

	select {
	case sig := <-sigChan:
		logger.Infow("exit requested, shutting down", "signal", sig)
	case <-client.Done():
	}

	client.Close()
	trackSink.Wait()
	return nil
}

func servePrometheus(port uint32) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := net.JoinHostPort("", fmt.Sprint(port))

	logger.Infow("serving prometheus metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Errorw("prometheus server failed", err)
	}
}

func logStats(ctx context.Context, client *whep.Client, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done():
			return
		case <-ticker.C:
			stats := prometheus.GetStats()
			logger.Infow("client stats",
				"state", client.State().String(),
				"packetsIn", stats.PacketsIn,
				"bytesIn", humanize.Bytes(stats.BytesIn),
				"restarts", stats.Restarts,
				"signalRequests", stats.SignalRequests,
				"candidates", stats.Candidates,
			)
		}
	}
}

func getConfigString(configFile string, inConfigBody string) (string, error) {
	if inConfigBody != "" || configFile == "" {
		return inConfigBody, nil
	}

	outConfigBody, err := os.ReadFile(configFile)
	if err != nil {
		return "", err
	}

	return string(outConfigBody), nil
}
