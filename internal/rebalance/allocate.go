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

package rebalance

import (
	"sort"

	"github.com/ecodeclub/ekit/slice"
	"github.com/ecodeclub/mq-rebalance"
	"github.com/rs/zerolog"
)

// Allocate 以 currentCID 的身份执行一次分配。
// 参数错误记为 error 日志并返回 nil；currentCID 不在 cidAll 中说明成员快照不一致，记为 warn 日志。
func Allocate(logger zerolog.Logger, strategy mq.AllocateStrategy,
	consumerGroup, currentCID string, mqAll []mq.MessageQueue, cidAll []string) []mq.MessageQueue {
	queues, err := strategy.Allocate(consumerGroup, currentCID, mqAll, cidAll)
	if err != nil {
		logger.Error().Err(err).
			Str("group", consumerGroup).
			Str("consumer", currentCID).
			Str("strategy", strategy.Name()).
			Msg("分配队列失败")
		return nil
	}
	if len(queues) == 0 && !slice.Contains(cidAll, currentCID) {
		logger.Warn().
			Str("group", consumerGroup).
			Str("consumer", currentCID).
			Strs("consumers", cidAll).
			Msg("[BUG] 消费者不在消费组内")
	}
	return queues
}

// AllocateAll 用同一份快照替组内每个消费者计算一次，返回 map[消费者][]队列
func AllocateAll(logger zerolog.Logger, strategy mq.AllocateStrategy,
	consumerGroup string, mqAll []mq.MessageQueue, cidAll []string) map[string][]mq.MessageQueue {
	result := make(map[string][]mq.MessageQueue, len(cidAll))
	for _, cid := range cidAll {
		result[cid] = Allocate(logger, strategy, consumerGroup, cid, mqAll, cidAll)
	}
	return result
}

// SortedIDs 所有消费者必须拿到同样顺序的 cidAll，这里统一按字典序排序
func SortedIDs(ids []string) []string {
	res := make([]string, len(ids))
	copy(res, ids)
	sort.Strings(res)
	return res
}
