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
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/whep-client/pkg/config"
	"github.com/livekit/whep-client/pkg/rtc"
	"github.com/livekit/whep-client/pkg/sdputil"
)

func probeCodecs(c *cli.Context) error {
	rtcConf := config.DefaultConfig.RTC
	webRTCConfig, err := rtc.NewWebRTCConfig(&rtcConf, nil, "")
	if err != nil {
		return err
	}
	engine := rtc.NewPionEngine(webRTCConfig)

	ctx, cancel := context.WithTimeout(c.Context, config.DefaultConfig.ProbeTimeout)
	defer cancel()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Codec", "Receivable"})
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_CENTER,
	})
	for _, codec := range sdputil.ProbedCodecs {
		ok := rtc.ProbeCodec(ctx, engine, codec, logger.GetLogger())
		table.Append([]string{sdputil.CodecString(codec), fmt.Sprint(ok)})
	}
	table.Render()
	return nil
}

func printConfig(c *cli.Context) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}
	if conf.Token != "" {
		conf.Token = "<redacted>"
	}

	out, err := yaml.Marshal(conf)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}

func helpVerbose(c *cli.Context) error {
	generatedFlags, err := config.GenerateCLIFlags(baseFlags, false)
	if err != nil {
		return err
	}

	c.App.Flags = append(baseFlags, generatedFlags...)
	return cli.ShowAppHelp(c)
}
