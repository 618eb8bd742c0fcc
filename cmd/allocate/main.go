// Copyright 2021 ecodeclub
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// allocate 在命令行里计算消费组的队列分配结果，用于排查重平衡问题
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/ecodeclub/mq-rebalance"
	"github.com/ecodeclub/mq-rebalance/allocator"
	"github.com/ecodeclub/mq-rebalance/internal/pkg/validator"
	"github.com/ecodeclub/mq-rebalance/internal/rebalance"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if err := run(os.Args[1:], os.Stdout, logger); err != nil {
		logger.Error().Err(err).Msg("分配失败")
		os.Exit(1)
	}
}

func run(args []string, out io.Writer, logger zerolog.Logger) error {
	fs := pflag.NewFlagSet("allocate", pflag.ContinueOnError)
	fs.SetOutput(out)
	strategyName := fs.String("strategy", "AVG", fmt.Sprintf("分配策略 %v", allocator.Names()))
	group := fs.String("group", "", "消费组名称")
	consumer := fs.String("consumer", "", "当前消费者ID")
	consumers := fs.StringSlice("consumers", nil, "消费组内全部消费者ID，按给定顺序计算")
	topic := fs.String("topic", "topic", "topic名称")
	broker := fs.String("broker", "broker", "broker名称")
	queues := fs.Int("queues", 0, "topic的队列数")
	all := fs.Bool("all", false, "输出组内每个消费者的分配结果")
	if err := fs.Parse(args); err != nil {
		return err
	}

	strategy, err := allocator.New(*strategyName)
	if err != nil {
		return err
	}
	mqAll := make([]mq.MessageQueue, 0, max(*queues, 0))
	for i := 0; i < *queues; i++ {
		mqAll = append(mqAll, mq.MessageQueue{Topic: *topic, BrokerName: *broker, QueueID: i})
	}
	logger = logger.With().Str("group", *group).Str("strategy", strategy.Name()).Logger()

	if !*all {
		// 参数错误直接返回，不在组内只记 warn
		if err = validator.CheckAllocateArgs(*consumer, mqAll, *consumers); err != nil {
			return err
		}
		for _, q := range rebalance.Allocate(logger, strategy, *group, *consumer, mqAll, *consumers) {
			fmt.Fprintln(out, q.String())
		}
		return nil
	}

	if len(*consumers) == 0 {
		return fmt.Errorf("--all 需要指定 --consumers")
	}
	owners := make(map[mq.MessageQueue]int, len(mqAll))
	for _, cid := range *consumers {
		allocated, err := strategy.Allocate(*group, cid, mqAll, *consumers)
		if err != nil {
			return err
		}
		ids := make([]int, 0, len(allocated))
		for _, q := range allocated {
			owners[q]++
			ids = append(ids, q.QueueID)
		}
		fmt.Fprintf(out, "%s: %v\n", cid, ids)
	}
	for _, q := range mqAll {
		if owners[q] != 1 {
			return fmt.Errorf("队列 %s 被分配了 %d 次", q, owners[q])
		}
	}
	return nil
}
