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
	"context"
	"net"
	"os"
	"strconv"
	"sync"

	"github.com/ecodeclub/mq-rebalance"
	"github.com/ecodeclub/mq-rebalance/allocator/averagely"
	"github.com/ecodeclub/mq-rebalance/internal/pkg/validator"
	"github.com/ecodeclub/mq-rebalance/mqerr"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"go.uber.org/multierr"
)

// 默认分区副本数
const defaultReplicationFactor = 1

type MQ struct {
	// 用于创建topic
	address           []string
	conn              *kafka.Conn
	controllerConn    *kafka.Conn
	locker            sync.RWMutex
	closed            bool
	replicationFactor int
	strategy          mq.AllocateStrategy
	logger            zerolog.Logger
	// 方便释放资源
	producers []mq.Producer
	consumers []mq.Consumer
}

type Option func(m *MQ)

// WithAllocateStrategy 消费组分配分区使用的策略，默认是平均分配
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

func WithReplicationFactor(factor int) Option {
	return func(m *MQ) {
		m.replicationFactor = factor
	}
}

func NewMQ(network string, address []string, opts ...Option) (mq.MQ, error) {
	if len(address) == 0 {
		return nil, errors.Wrap(mqerr.ErrInvalidArgument, "kafka: address为空")
	}
	conn, err := kafka.Dial(network, address[0])
	if err != nil {
		return nil, err
	}
	// 获取Kafka集群的控制器
	controller, err := conn.Controller()
	if err != nil {
		return nil, multierr.Append(err, conn.Close())
	}
	// 与控制器建立连接
	controllerConn, err := kafka.Dial(network, net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return nil, multierr.Append(err, conn.Close())
	}
	return newMQ(address, conn, controllerConn, opts...), nil
}

func newMQ(address []string, conn, controllerConn *kafka.Conn, opts ...Option) *MQ {
	m := &MQ{
		address:           address,
		conn:              conn,
		controllerConn:    controllerConn,
		replicationFactor: defaultReplicationFactor,
		strategy:          averagely.NewStrategy(),
		logger:            zerolog.New(os.Stderr).With().Timestamp().Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.strategy == nil {
		m.strategy = averagely.NewStrategy()
	}
	if m.replicationFactor <= 0 {
		m.replicationFactor = defaultReplicationFactor
	}
	return m
}

// DeleteTopics 删除topic
func (m *MQ) DeleteTopics(ctx context.Context, topics ...string) error {
	m.locker.Lock()
	defer m.locker.Unlock()
	if m.closed {
		return errors.Wrap(mqerr.ErrMQIsClosed, "kafka")
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if len(topics) == 0 {
		return nil
	}
	err := m.controllerConn.DeleteTopics(topics...)
	var val kafka.Error
	if errors.As(err, &val) && val == kafka.UnknownTopicOrPartition {
		return nil
	}
	return err
}

func (m *MQ) CreateTopic(ctx context.Context, name string, partitions int) error {
	if !validator.IsValidTopic(name) {
		return errors.Wrapf(mqerr.ErrInvalidTopic, "kafka: %s", name)
	}
	if partitions <= 0 {
		return errors.Wrapf(mqerr.ErrInvalidPartition, "kafka: %d", partitions)
	}
	m.locker.Lock()
	defer m.locker.Unlock()
	if m.closed {
		return errors.Wrap(mqerr.ErrMQIsClosed, "kafka")
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	topicConfigs := []kafka.TopicConfig{
		{
			Topic:             name,
			NumPartitions:     partitions,
			ReplicationFactor: m.replicationFactor,
		},
	}
	err := m.controllerConn.CreateTopics(topicConfigs...)
	var val kafka.Error
	if errors.As(err, &val) && val == kafka.TopicAlreadyExists {
		return nil
	}
	return err
}

func (m *MQ) Producer(topic string) (mq.Producer, error) {
	m.locker.Lock()
	defer m.locker.Unlock()
	if m.closed {
		return nil, errors.Wrap(mqerr.ErrMQIsClosed, "kafka")
	}
	p, err := NewProducer(m.address, topic)
	if err != nil {
		return nil, err
	}
	m.producers = append(m.producers, p)
	return p, nil
}

func (m *MQ) Consumer(topic, groupID string) (mq.Consumer, error) {
	m.locker.Lock()
	defer m.locker.Unlock()
	if m.closed {
		return nil, errors.Wrap(mqerr.ErrMQIsClosed, "kafka")
	}
	balancer, err := NewGroupBalancer(groupID, m.strategy, m.logger)
	if err != nil {
		return nil, err
	}
	c := NewConsumer(m.address, topic, groupID, balancer, m.logger)
	m.consumers = append(m.consumers, c)
	return c, nil
}

func (m *MQ) Close() error {
	m.locker.Lock()
	defer m.locker.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	var err error
	for _, p := range m.producers {
		err = multierr.Append(err, p.Close())
	}
	for _, c := range m.consumers {
		err = multierr.Append(err, c.Close())
	}
	err = multierr.Append(err, m.controllerConn.Close())
	return multierr.Append(err, m.conn.Close())
}
