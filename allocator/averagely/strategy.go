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

package averagely

import (
	"github.com/ecodeclub/ekit/slice"
	"github.com/ecodeclub/mq-rebalance"
	"github.com/ecodeclub/mq-rebalance/internal/pkg/validator"
)

const Name = "AVG"

// Strategy 平均分配策略：把队列切成连续的区间，每个消费者拿一段。
// 一个队列只能被一个消费者消费，但一个消费者可能消费多个队列，
// 所以队列数少于消费者数时，排在后面的消费者分不到队列。
type Strategy struct{}

func NewStrategy() *Strategy {
	return &Strategy{}
}

func (s *Strategy) Name() string {
	return Name
}

func (s *Strategy) Allocate(consumerGroup, currentCID string, mqAll []mq.MessageQueue, cidAll []string) ([]mq.MessageQueue, error) {
	if err := validator.CheckAllocateArgs(currentCID, mqAll, cidAll); err != nil {
		return nil, err
	}
	index := slice.Index(cidAll, currentCID)
	if index < 0 {
		return []mq.MessageQueue{}, nil
	}
	start, length := queueRange(len(mqAll), len(cidAll), index)
	result := make([]mq.MessageQueue, length)
	copy(result, mqAll[start:start+length])
	return result, nil
}

// queueRange 返回第 index 个消费者在 n 个队列、m 个消费者下分到的区间 [start, start+length)
func queueRange(n, m, index int) (start, length int) {
	mod := n % m
	// 前 mod 个消费者各多拿一个队列
	inRemainder := mod > 0 && index < mod
	var averageSize int
	switch {
	case n <= m:
		averageSize = 1
	case inRemainder:
		averageSize = n/m + 1
	default:
		averageSize = n / m
	}
	if inRemainder {
		start = index * averageSize
	} else {
		start = index*averageSize + mod
	}
	if start >= n {
		// 消费者比队列多，当前消费者饿死
		return n, 0
	}
	return start, min(averageSize, n-start)
}
