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
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/ecodeclub/ekit/syncx"
	"github.com/ecodeclub/mq-rebalance"
	"github.com/ecodeclub/mq-rebalance/allocator/averagely"
	"github.com/ecodeclub/mq-rebalance/internal/pkg/validator"
	"github.com/ecodeclub/mq-rebalance/mqerr"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// 自动创建topic时的分区数
const defaultPartitions = 1

type MQ struct {
	locker   sync.RWMutex
	closed   bool
	topics   syncx.Map[string, *Topic]
	strategy mq.AllocateStrategy
	logger   zerolog.Logger
}

type Option func(m *MQ)

// WithAllocateStrategy 消费组重平衡时使用的分配策略，默认是平均分配
func WithAllocateStrategy(strategy mq.AllocateStrategy) Option {
	return func(m *MQ) {
		m.strategy = strategy
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *MQ) {
		m.logger = logger
	}
}

func NewMQ(opts ...Option) mq.MQ {
	m := &MQ{
		topics:   syncx.Map[string, *Topic]{},
		strategy: averagely.NewStrategy(),
		logger:   zerolog.New(os.Stderr).With().Timestamp().Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.strategy == nil {
		m.strategy = averagely.NewStrategy()
	}
	return m
}

func (m *MQ) CreateTopic(ctx context.Context, topic string, partitions int) error {
	if !validator.IsValidTopic(topic) {
		return fmt.Errorf("%w: %s", mqerr.ErrInvalidTopic, topic)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	m.locker.Lock()
	defer m.locker.Unlock()
	if m.closed {
		return mqerr.ErrMQIsClosed
	}
	if partitions <= 0 {
		return fmt.Errorf("%w: %d", mqerr.ErrInvalidPartition, partitions)
	}
	if _, ok := m.topics.Load(topic); ok {
		return nil
	}
	m.topics.Store(topic, newTopic(topic, partitions, m.strategy, m.logger))
	return nil
}

// getOrCreateTopic 不存在的topic按默认分区数创建
func (m *MQ) getOrCreateTopic(topic string) (*Topic, error) {
	m.locker.Lock()
	defer m.locker.Unlock()
	if m.closed {
		return nil, mqerr.ErrMQIsClosed
	}
	if t, ok := m.topics.Load(topic); ok {
		return t, nil
	}
	if !validator.IsValidTopic(topic) {
		return nil, fmt.Errorf("%w: %s", mqerr.ErrInvalidTopic, topic)
	}
	t := newTopic(topic, defaultPartitions, m.strategy, m.logger)
	m.topics.Store(topic, t)
	return t, nil
}

func (m *MQ) Producer(topic string) (mq.Producer, error) {
	t, err := m.getOrCreateTopic(topic)
	if err != nil {
		return nil, err
	}
	p := &Producer{
		t: t,
	}
	if err = t.addProducer(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *MQ) Consumer(topic, groupID string) (mq.Consumer, error) {
	t, err := m.getOrCreateTopic(topic)
	if err != nil {
		return nil, err
	}
	group, err := t.consumerGroup(groupID)
	if err != nil {
		return nil, err
	}
	return group.JoinGroup()
}

func (m *MQ) DeleteTopics(ctx context.Context, topics ...string) error {
	m.locker.Lock()
	defer m.locker.Unlock()
	if m.closed {
		return mqerr.ErrMQIsClosed
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var err error
	for _, name := range topics {
		t, ok := m.topics.Load(name)
		if ok {
			m.topics.Delete(name)
			err = multierr.Append(err, t.Close())
		}
	}
	return err
}

// Close 多次调用返回结果一致
func (m *MQ) Close() error {
	m.locker.Lock()
	defer m.locker.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	var err error
	m.topics.Range(func(name string, t *Topic) bool {
		if closeErr := t.Close(); closeErr != nil {
			m.logger.Error().Err(closeErr).Str("topic", name).Msg("topic关闭失败")
			err = multierr.Append(err, closeErr)
		}
		return true
	})
	return err
}
