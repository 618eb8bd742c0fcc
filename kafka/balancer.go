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

package kafka

import (
	"sort"
	"strings"

	"github.com/ecodeclub/mq-rebalance"
	"github.com/ecodeclub/mq-rebalance/internal/rebalance"
	"github.com/ecodeclub/mq-rebalance/mqerr"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

// SpecifiedPartitionKey 生产者在 WriterData 里用这个key指定分区
const SpecifiedPartitionKey = "specified_partition"

// kafka 的分区与broker无关，队列里统一用这个名字
const brokerName = "kafka"

type metaMessage map[string]any

// SpecifiedPartitionBalancer 消息指定了分区就发到该分区，否则交给默认的负载均衡器
type SpecifiedPartitionBalancer struct {
	defaultBalancer kafkago.Balancer
}

func NewSpecifiedPartitionBalancer(defaultBalancer kafkago.Balancer) (*SpecifiedPartitionBalancer, error) {
	if defaultBalancer == nil {
		return nil, errors.Wrap(mqerr.ErrInvalidArgument, "kafka: 默认负载均衡器不能为nil")
	}
	return &SpecifiedPartitionBalancer{defaultBalancer: defaultBalancer}, nil
}

func (b *SpecifiedPartitionBalancer) Balance(msg kafkago.Message, partitions ...int) int {
	if meta, ok := msg.WriterData.(metaMessage); ok {
		if partition, ok := meta[SpecifiedPartitionKey].(int); ok {
			return partition
		}
	}
	return b.defaultBalancer.Balance(msg, partitions...)
}

// GroupBalancer 用分配策略实现 kafka 消费组的分区分配
type GroupBalancer struct {
	groupID  string
	strategy mq.AllocateStrategy
	logger   zerolog.Logger
}

func NewGroupBalancer(groupID string, strategy mq.AllocateStrategy, logger zerolog.Logger) (*GroupBalancer, error) {
	if strategy == nil {
		return nil, errors.Wrap(mqerr.ErrInvalidArgument, "kafka: 分配策略不能为nil")
	}
	return &GroupBalancer{
		groupID:  groupID,
		strategy: strategy,
		logger:   logger.With().Str("group", groupID).Str("strategy", strategy.Name()).Logger(),
	}, nil
}

// ProtocolName 消费组内所有成员必须使用同一种策略
func (b *GroupBalancer) ProtocolName() string {
	return "mq-" + strings.ToLower(b.strategy.Name())
}

func (b *GroupBalancer) UserData() ([]byte, error) {
	return nil, nil
}

func (b *GroupBalancer) AssignGroups(members []kafkago.GroupMember, partitions []kafkago.Partition) kafkago.GroupMemberAssignments {
	assignments := make(kafkago.GroupMemberAssignments, len(members))
	membersByTopic := make(map[string][]string)
	for _, member := range members {
		assignments[member.ID] = map[string][]int{}
		for _, topic := range member.Topics {
			membersByTopic[topic] = append(membersByTopic[topic], member.ID)
		}
	}
	queues := queuesByTopic(partitions)
	for topic, ids := range membersByTopic {
		mqAll := queues[topic]
		if len(mqAll) == 0 {
			b.logger.Warn().Str("topic", topic).Msg("topic没有分区")
			continue
		}
		allocated := rebalance.AllocateAll(b.logger, b.strategy, b.groupID, mqAll, rebalance.SortedIDs(ids))
		for cid, qs := range allocated {
			partitionIDs := make([]int, 0, len(qs))
			for _, q := range qs {
				partitionIDs = append(partitionIDs, q.QueueID)
			}
			assignments[cid][topic] = partitionIDs
			b.logger.Info().Str("topic", topic).Str("consumer", cid).Ints("partitions", partitionIDs).Msg("分配分区")
		}
	}
	return assignments
}

// queuesByTopic 按topic分组，组内按分区号排序
func queuesByTopic(partitions []kafkago.Partition) map[string][]mq.MessageQueue {
	res := make(map[string][]mq.MessageQueue)
	for _, p := range partitions {
		res[p.Topic] = append(res[p.Topic], mq.MessageQueue{
			Topic:      p.Topic,
			BrokerName: brokerName,
			QueueID:    p.ID,
		})
	}
	for _, qs := range res {
		sort.Slice(qs, func(i, j int) bool {
			return qs[i].QueueID < qs[j].QueueID
		})
	}
	return res
}
