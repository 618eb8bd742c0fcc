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

package mq

import (
	"context"
	"fmt"
)

type Header map[string]string

type Message struct {
	Value  []byte
	Key    []byte
	Header Header
	Topic  string
	// 分区
	Partition int64
	// 偏移量
	Offset int64
}

type ProducerResult struct{}

type Producer interface {
	Produce(ctx context.Context, m *Message) (*ProducerResult, error)
	// ProduceWithPartition 指定分区发送消息
	ProduceWithPartition(ctx context.Context, m *Message, partition int) (*ProducerResult, error)
	Close() error
}

type Consumer interface {
	Consume(ctx context.Context) (*Message, error)
	ConsumeChan(ctx context.Context) (<-chan *Message, error)
	Close() error
}

type MQ interface {
	CreateTopic(ctx context.Context, topic string, partitions int) error
	// DeleteTopics 删除不存在的topic不会返回错误
	DeleteTopics(ctx context.Context, topics ...string) error
	Producer(topic string) (Producer, error)
	Consumer(topic, groupID string) (Consumer, error)
	Close() error
}

// MessageQueue 表示topic的一个队列(分区)，是可比较的值类型
type MessageQueue struct {
	Topic      string
	BrokerName string
	QueueID    int
}

// String 返回队列的稳定标识，基于哈希的分配策略使用它作为key
func (q MessageQueue) String() string {
	return fmt.Sprintf("%s@%s#%d", q.Topic, q.BrokerName, q.QueueID)
}

// AllocateStrategy 消费组重平衡时的队列分配策略。
// 同一个消费组内的每个消费者各自调用 Allocate，只要传入相同的 mqAll 和 cidAll（元素与顺序都相同），
// 所有消费者算出的结果合起来就是 mqAll 的一个划分。
type AllocateStrategy interface {
	// Name 策略名称
	Name() string
	// Allocate consumerGroup 只用于诊断；currentCID 是当前消费者；mqAll 是topic下的全部队列；
	// cidAll 是消费组内的全部消费者。currentCID 不在 cidAll 中时返回空结果而不是错误。
	Allocate(consumerGroup, currentCID string, mqAll []MessageQueue, cidAll []string) ([]MessageQueue, error)
}
