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
	"sync"

	"github.com/ecodeclub/mq-rebalance"
	"github.com/ecodeclub/mq-rebalance/kafka/common"
	"github.com/ecodeclub/mq-rebalance/mqerr"
	"github.com/pkg/errors"
	kafkago "github.com/segmentio/kafka-go"
)

type Producer struct {
	topic  string
	writer *kafkago.Writer
	locker sync.RWMutex
	closed bool
}

func NewProducer(address []string, topic string) (*Producer, error) {
	balancer, err := NewSpecifiedPartitionBalancer(&kafkago.Hash{})
	if err != nil {
		return nil, err
	}
	return &Producer{
		topic: topic,
		writer: &kafkago.Writer{
			Addr:     kafkago.TCP(address...),
			Topic:    topic,
			Balancer: balancer,
		},
	}, nil
}

func (p *Producer) Produce(ctx context.Context, m *mq.Message) (*mq.ProducerResult, error) {
	return p.produce(ctx, kafkago.Message{
		Key:     m.Key,
		Value:   m.Value,
		Headers: common.ConvertToKafkaHeader(m.Header),
	})
}

func (p *Producer) ProduceWithPartition(ctx context.Context, m *mq.Message, partition int) (*mq.ProducerResult, error) {
	if partition < 0 {
		return nil, errors.Wrapf(mqerr.ErrInvalidPartition, "kafka: %d", partition)
	}
	return p.produce(ctx, kafkago.Message{
		Key:        m.Key,
		Value:      m.Value,
		Headers:    common.ConvertToKafkaHeader(m.Header),
		WriterData: metaMessage{SpecifiedPartitionKey: partition},
	})
}

func (p *Producer) produce(ctx context.Context, msg kafkago.Message) (*mq.ProducerResult, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	p.locker.RLock()
	defer p.locker.RUnlock()
	if p.closed {
		return nil, errors.Wrap(mqerr.ErrProducerIsClosed, "kafka")
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return nil, err
	}
	return &mq.ProducerResult{}, nil
}

func (p *Producer) Close() error {
	p.locker.Lock()
	defer p.locker.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}
