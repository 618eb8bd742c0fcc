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

package circle

import (
	"github.com/ecodeclub/ekit/slice"
	"github.com/ecodeclub/mq-rebalance"
	"github.com/ecodeclub/mq-rebalance/internal/pkg/validator"
)

const Name = "AVG_BY_CIRCLE"

// Strategy 轮询分配策略：第 i 个消费者依次拿第 i, i+m, i+2m ... 个队列
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
	result := make([]mq.MessageQueue, 0, len(mqAll)/len(cidAll)+1)
	for i := index; i < len(mqAll); i += len(cidAll) {
		result = append(result, mqAll[i])
	}
	return result, nil
}
