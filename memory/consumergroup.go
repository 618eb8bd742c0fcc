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

	"github.com/ecodeclub/mq-rebalance"
	"github.com/ecodeclub/mq-rebalance/internal/rebalance"
	"github.com/ecodeclub/mq-rebalance/mqerr"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ConsumerGroup 表示消费组是并发安全的
type ConsumerGroup struct {
	locker sync.Mutex
	closed bool
	name   string
	topic  *Topic
	// 存储消费者，键为消费者的名称
	consumers map[string]*Consumer
	// 上一次重平衡的结果
	assignments map[string][]mq.MessageQueue
	// 分区消费进度，由整个消费组共享，分区换了消费者之后从这里继续。
	// 只记录已经交付的消息
	offsets  map[int]int
	strategy mq.AllocateStrategy
	logger   zerolog.Logger
}

func newConsumerGroup(name string, t *Topic) *ConsumerGroup {
	return &ConsumerGroup{
		name:        name,
		topic:       t,
		consumers:   make(map[string]*Consumer, consumerCap),
		assignments: make(map[string][]mq.MessageQueue, consumerCap),
		offsets:     make(map[int]int, len(t.partitions)),
		strategy:    t.strategy,
		logger:      t.logger.With().Str("group", name).Logger(),
	}
}

// JoinGroup 加入消费组，并触发重平衡
func (c *ConsumerGroup) JoinGroup() (*Consumer, error) {
	c.locker.Lock()
	defer c.locker.Unlock()
	if c.closed {
		return nil, mqerr.ErrMQIsClosed
	}
	name := fmt.Sprintf("%s-%s", c.name, uuid.NewString())
	consumer := newConsumer(name, c)
	c.consumers[name] = consumer
	c.logger.Info().Str("consumer", name).Msg("新建消费者")
	c.reBalance()
	go consumer.run()
	return consumer, nil
}

// ExitGroup 退出消费组，并触发重平衡
func (c *ConsumerGroup) ExitGroup(name string) {
	c.locker.Lock()
	defer c.locker.Unlock()
	if _, ok := c.consumers[name]; !ok {
		return
	}
	delete(c.consumers, name)
	delete(c.assignments, name)
	c.logger.Info().Str("consumer", name).Msg("消费者退出消费组")
	c.reBalance()
}

// Assignment 返回消费者当前分到的队列
func (c *ConsumerGroup) Assignment(name string) []mq.MessageQueue {
	c.locker.Lock()
	defer c.locker.Unlock()
	queues := c.assignments[name]
	res := make([]mq.MessageQueue, len(queues))
	copy(res, queues)
	return res
}

// reBalance 调用方需要持有锁
func (c *ConsumerGroup) reBalance() {
	ids := make([]string, 0, len(c.consumers))
	for name := range c.consumers {
		ids = append(ids, name)
	}
	// 每个消费者都拿同一份排好序的成员快照各自计算
	cidAll := rebalance.SortedIDs(ids)
	c.assignments = rebalance.AllocateAll(c.logger, c.strategy, c.name, c.topic.queues, cidAll)
	for name, queues := range c.assignments {
		c.logger.Info().Str("consumer", name).Str("strategy", c.strategy.Name()).
			Stringer("queues", queueIDs(queues)).Msg("重平衡结束")
	}
}

// fetch 拉取消费者所分到分区里尚未交付的消息，不推进消费进度
func (c *ConsumerGroup) fetch(name string, limit int) []*mq.Message {
	c.locker.Lock()
	defer c.locker.Unlock()
	msgs := make([]*mq.Message, 0, limit)
	for _, q := range c.assignments[name] {
		if len(msgs) >= limit {
			break
		}
		batch := c.topic.partitions[q.QueueID].getBatch(c.offsets[q.QueueID], limit-len(msgs))
		msgs = append(msgs, batch...)
	}
	return msgs
}

// commit 消息交到消费方手里之后推进分区进度。
// 返回 false 表示分区已经不归该消费者，剩下的消息交给新的消费者。
func (c *ConsumerGroup) commit(name string, msg *mq.Message) bool {
	c.locker.Lock()
	defer c.locker.Unlock()
	partition := int(msg.Partition)
	if next := int(msg.Offset) + 1; next > c.offsets[partition] {
		c.offsets[partition] = next
	}
	for _, q := range c.assignments[name] {
		if q.QueueID == partition {
			return true
		}
	}
	return false
}

func (c *ConsumerGroup) Close() {
	c.locker.Lock()
	defer c.locker.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for name, consumer := range c.consumers {
		consumer.stop()
		delete(c.consumers, name)
	}
	c.assignments = map[string][]mq.MessageQueue{}
}

type queueIDs []mq.MessageQueue

func (qs queueIDs) String() string {
	ids := make([]int, 0, len(qs))
	for _, q := range qs {
		ids = append(ids, q.QueueID)
	}
	return fmt.Sprint(ids)
}
