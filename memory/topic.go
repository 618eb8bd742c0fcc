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

package memory

import (
	"fmt"
	"sync"

	"github.com/ecodeclub/ekit/syncx"
	"github.com/ecodeclub/mq-rebalance"
	"github.com/ecodeclub/mq-rebalance/memory/produceridgetter/hash"
	"github.com/ecodeclub/mq-rebalance/mqerr"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

const brokerName = "memory"

type Topic struct {
	locker     sync.RWMutex
	closed     bool
	name       string
	partitions []*Partition
	// 按分区下标排好序的队列，消费组重平衡时作为 mqAll
	queues    []mq.MessageQueue
	producers []*Producer
	// 消费组
	consumerGroups syncx.Map[string, *ConsumerGroup]
	// 生产消息的时候获取分区号
	partitionIDGetter PartitionIDGetter
	strategy          mq.AllocateStrategy
	logger            zerolog.Logger
}

func newTopic(name string, partitions int, strategy mq.AllocateStrategy, logger zerolog.Logger) *Topic {
	t := &Topic{
		name:              name,
		consumerGroups:    syncx.Map[string, *ConsumerGroup]{},
		partitionIDGetter: &hash.Getter{Partitions: partitions},
		strategy:          strategy,
		logger:            logger.With().Str("topic", name).Logger(),
	}
	t.partitions = make([]*Partition, 0, partitions)
	t.queues = make([]mq.MessageQueue, 0, partitions)
	for i := 0; i < partitions; i++ {
		t.partitions = append(t.partitions, NewPartition())
		t.queues = append(t.queues, mq.MessageQueue{
			Topic:      name,
			BrokerName: brokerName,
			QueueID:    i,
		})
	}
	return t
}

func (t *Topic) addProducer(producer *Producer) error {
	t.locker.Lock()
	defer t.locker.Unlock()
	if t.closed {
		return mqerr.ErrMQIsClosed
	}
	t.producers = append(t.producers, producer)
	return nil
}

// consumerGroup 获取消费组，不存在则创建
func (t *Topic) consumerGroup(groupID string) (*ConsumerGroup, error) {
	t.locker.Lock()
	defer t.locker.Unlock()
	if t.closed {
		return nil, mqerr.ErrMQIsClosed
	}
	if group, ok := t.consumerGroups.Load(groupID); ok {
		return group, nil
	}
	group := newConsumerGroup(groupID, t)
	t.consumerGroups.Store(groupID, group)
	return group, nil
}

// addMessage 往分区里面添加消息
func (t *Topic) addMessage(msg *mq.Message, partition ...int64) error {
	var partitionID int64
	switch len(partition) {
	case 0:
		partitionID = t.partitionIDGetter.PartitionID(string(msg.Key))
	case 1:
		partitionID = partition[0]
	default:
		return mqerr.ErrInvalidPartition
	}
	if partitionID < 0 || int(partitionID) >= len(t.partitions) {
		return fmt.Errorf("%w: %d", mqerr.ErrInvalidPartition, partitionID)
	}
	msg.Topic = t.name
	msg.Partition = partitionID
	t.partitions[partitionID].append(msg)
	t.logger.Debug().Int64("partition", partitionID).Int64("offset", msg.Offset).Msg("生产消息")
	return nil
}

func (t *Topic) Close() error {
	t.locker.Lock()
	defer t.locker.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.consumerGroups.Range(func(key string, value *ConsumerGroup) bool {
		value.Close()
		return true
	})
	var err error
	for _, producer := range t.producers {
		err = multierr.Append(err, producer.Close())
	}
	return err
}
