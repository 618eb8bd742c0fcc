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

//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/ecodeclub/mq-rebalance"
	"github.com/ecodeclub/mq-rebalance/mqerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"
)

type MQCreator interface {
	Create() mq.MQ
	Ping(ctx context.Context) error
}

type TestSuite struct {
	suite.Suite
	mqCreator    MQCreator
	messageQueue mq.MQ
}

type producerInfo struct {
	Num int
}

type consumerInfo struct {
	Num     int
	GroupID string
}

func NewTestSuite(creator MQCreator) *TestSuite {
	return &TestSuite{
		mqCreator: creator,
	}
}

func (b *TestSuite) SetupSuite() {
	for {
		if err := b.mqCreator.Ping(context.Background()); err == nil {
			break
		}
		log.Println("连接失败,重试中.....")
		time.Sleep(time.Second * 3)
	}
	b.messageQueue = b.mqCreator.Create()
}

func (b *TestSuite) newProducersAndConsumers(t *testing.T, topic string, partitions int, p producerInfo, c consumerInfo) ([]mq.Producer, []mq.Consumer) {
	t.Helper()

	require.NoError(t, b.messageQueue.CreateTopic(context.Background(), topic, partitions))

	producers := make([]mq.Producer, 0, p.Num)
	for i := 0; i < p.Num; i++ {
		pp, err := b.messageQueue.Producer(topic)
		require.NoError(t, err)
		producers = append(producers, pp)
	}

	consumers := make([]mq.Consumer, 0, c.Num)
	for i := 0; i < c.Num; i++ {
		cc, err := b.messageQueue.Consumer(topic, c.GroupID)
		require.NoError(t, err)
		consumers = append(consumers, cc)
	}

	t.Cleanup(func() {
		for _, p := range producers {
			require.NoError(t, p.Close())
		}
		for _, c := range consumers {
			require.NoError(t, c.Close())
		}
	})

	return producers, consumers
}

func (b *TestSuite) TestMQ_CreateTopic() {
	t := b.T()
	t.Parallel()

	t.Run("调用超时_返回错误", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, b.messageQueue.CreateTopic(ctx, "CreateTopic", 1), context.Canceled)
	})

	t.Run("合法Topic", func(t *testing.T) {
		t.Parallel()

		validTopics := []string{
			"topicName",
			"topicName-2",
			"topicName_3",
			"topicName.4",
			"prefix.sub-topic",
		}
		for _, validTopic := range validTopics {
			assert.NoError(t, b.messageQueue.CreateTopic(context.Background(), validTopic, 2), validTopic)
		}
		require.NoError(t, b.messageQueue.DeleteTopics(context.Background(), validTopics...))
	})

	t.Run("非法Topic", func(t *testing.T) {
		t.Parallel()

		invalidTopics := []string{
			"a/b", "a,b", "a*b", "0", "1a", "-", ".", "_",
			"",               // 空字符串
			".invalid.topic", // . 作为开头
			"topicName-",     // - 作为结尾
			"topic Name",     // 包含空格
			"topic-name-is-too-long-topic-name-is-too-long-topic-name-is-too-long", // 超过最大长度
		}
		for _, invalidTopic := range invalidTopics {
			assert.ErrorIs(t, b.messageQueue.CreateTopic(context.Background(), invalidTopic, 2), mqerr.ErrInvalidTopic, invalidTopic)
		}
	})

	t.Run("非法Partitions", func(t *testing.T) {
		t.Parallel()

		assert.ErrorIs(t, b.messageQueue.CreateTopic(context.Background(), "invalidPartitions1", -1), mqerr.ErrInvalidPartition)
		assert.ErrorIs(t, b.messageQueue.CreateTopic(context.Background(), "invalidPartitions2", 0), mqerr.ErrInvalidPartition)
	})

	t.Run("重复创建Topic", func(t *testing.T) {
		t.Parallel()

		createdTopic := "createdTopic"
		require.NoError(t, b.messageQueue.CreateTopic(context.Background(), createdTopic, 1))
		require.NoError(t, b.messageQueue.CreateTopic(context.Background(), createdTopic, 1))
		require.NoError(t, b.messageQueue.DeleteTopics(context.Background(), createdTopic))
	})
}

func (b *TestSuite) TestMQ_DeleteTopics() {
	t := b.T()
	t.Parallel()

	t.Run("调用超时_返回错误", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, b.messageQueue.DeleteTopics(ctx, "DeleteTopics"), context.Canceled)
	})

	t.Run("删除未知Topic_不返回错误", func(t *testing.T) {
		t.Parallel()

		require.NoError(t, b.messageQueue.DeleteTopics(context.Background(), "unknownTopic1", "unknownTopic2"))
	})

	t.Run("并发创建并删除", func(t *testing.T) {
		t.Parallel()

		var eg errgroup.Group
		topics := []string{"topic1", "topic2", "topic3", "topic4"}
		for _, topic := range topics {
			topic := topic
			eg.Go(func() error {
				return b.messageQueue.CreateTopic(context.Background(), topic, 2)
			})
		}
		require.NoError(t, eg.Wait())
		for _, topic := range topics {
			topic := topic
			eg.Go(func() error {
				return b.messageQueue.DeleteTopics(context.Background(), topic)
			})
		}
		require.NoError(t, eg.Wait())
	})
}

func (b *TestSuite) TestMQ_Close() {
	t := b.T()
	t.Parallel()

	topic, partitions := "topic11", 4
	messageQueue := b.mqCreator.Create()

	require.NoError(t, messageQueue.CreateTopic(context.Background(), topic, partitions))
	p, err := messageQueue.Producer(topic)
	require.NoError(t, err)
	c, err := messageQueue.Consumer(topic, "c1")
	require.NoError(t, err)

	// 多次调用返回结果一致
	require.Equal(t, messageQueue.Close(), messageQueue.Close())

	_, err = p.Produce(context.Background(), &mq.Message{})
	require.ErrorIs(t, err, mqerr.ErrProducerIsClosed)
	_, err = p.ProduceWithPartition(context.Background(), &mq.Message{}, partitions-1)
	require.ErrorIs(t, err, mqerr.ErrProducerIsClosed)

	_, err = c.ConsumeChan(context.Background())
	require.ErrorIs(t, err, mqerr.ErrConsumerIsClosed)
	_, err = c.Consume(context.Background())
	require.ErrorIs(t, err, mqerr.ErrConsumerIsClosed)

	require.ErrorIs(t, messageQueue.CreateTopic(context.Background(), topic, partitions), mqerr.ErrMQIsClosed)
	_, err = messageQueue.Producer(topic)
	require.ErrorIs(t, err, mqerr.ErrMQIsClosed)
	_, err = messageQueue.Consumer(topic, "c1")
	require.ErrorIs(t, err, mqerr.ErrMQIsClosed)
	require.ErrorIs(t, messageQueue.DeleteTopics(context.Background(), topic), mqerr.ErrMQIsClosed)
}

func (b *TestSuite) TestProducer_Close() {
	t := b.T()
	t.Parallel()

	producers, _ := b.newProducersAndConsumers(t, "topic15", 1, producerInfo{Num: 1}, consumerInfo{})
	p := producers[0]

	// 并发调用Close,所有返回的error应该相同
	n := 3
	closeErrChan := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			closeErrChan <- p.Close()
		}()
	}
	wg.Wait()
	close(closeErrChan)
	err := <-closeErrChan
	for e := range closeErrChan {
		require.Equal(t, err, e)
	}

	_, err = p.Produce(context.Background(), &mq.Message{Value: []byte("hello")})
	require.ErrorIs(t, err, mqerr.ErrProducerIsClosed)
}

// 同一个消费组内每条消息只被消费一次，且一个分区只由一个消费者消费
func (b *TestSuite) TestConsumerGroup_ConsumeOnce() {
	t := b.T()
	t.Parallel()

	testcases := []struct {
		name       string
		topic      string
		partitions int
		consumers  int
	}{
		{name: "分区数超过consumer个数", topic: "topic21", partitions: 5, consumers: 3},
		{name: "分区数等于consumer个数", topic: "topic22", partitions: 3, consumers: 3},
		{name: "分区数小于consumer个数", topic: "topic23", partitions: 2, consumers: 3},
	}
	for _, tc := range testcases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			producers, consumers := b.newProducersAndConsumers(t, tc.topic, tc.partitions,
				producerInfo{Num: 1}, consumerInfo{Num: tc.consumers, GroupID: "c1"})
			total := 10 * tc.partitions
			for i := 0; i < total; i++ {
				_, err := producers[0].ProduceWithPartition(context.Background(),
					&mq.Message{Value: []byte(fmt.Sprintf("%s-%d", tc.topic, i))}, i%tc.partitions)
				require.NoError(t, err)
			}
			received, owners := consumeAll(t, consumers, total)
			for value, cnt := range received {
				assert.Equal(t, 1, cnt, value)
			}
			assert.Len(t, owners, tc.partitions)
		})
	}
}

// 不同消费组各自拿到全部消息
func (b *TestSuite) TestConsumerGroup_Isolation() {
	t := b.T()
	t.Parallel()

	topic, partitions, total := "topic24", 3, 12
	producers, group1 := b.newProducersAndConsumers(t, topic, partitions, producerInfo{Num: 1}, consumerInfo{Num: 2, GroupID: "g1"})
	_, group2 := b.newProducersAndConsumers(t, topic, partitions, producerInfo{}, consumerInfo{Num: 1, GroupID: "g2"})
	for i := 0; i < total; i++ {
		_, err := producers[0].ProduceWithPartition(context.Background(),
			&mq.Message{Value: []byte(fmt.Sprintf("%s-%d", topic, i))}, i%partitions)
		require.NoError(t, err)
	}
	received1, _ := consumeAll(t, group1, total)
	received2, _ := consumeAll(t, group2, total)
	assert.Equal(t, received1, received2)
}

// consumeAll 消费到 total 条不同的消息为止，返回每条消息被消费的次数和每个分区的消费者
func consumeAll(t *testing.T, consumers []mq.Consumer, total int) (map[string]int, map[int64]int) {
	t.Helper()

	var mu sync.Mutex
	received := make(map[string]int, total)
	owners := make(map[int64]int)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	var eg errgroup.Group
	done := make(chan struct{})
	var doneOnce sync.Once
	for idx, c := range consumers {
		idx, c := idx, c
		eg.Go(func() error {
			for {
				msg, err := c.Consume(ctx)
				if err != nil {
					select {
					case <-done:
						return nil
					default:
						return err
					}
				}
				mu.Lock()
				received[string(msg.Value)]++
				if owner, ok := owners[msg.Partition]; ok && owner != idx {
					mu.Unlock()
					return fmt.Errorf("分区 %d 同时被消费者 %d 和 %d 消费", msg.Partition, owner, idx)
				}
				owners[msg.Partition] = idx
				if len(received) == total {
					doneOnce.Do(func() {
						close(done)
						cancel()
					})
				}
				mu.Unlock()
			}
		})
	}
	require.NoError(t, eg.Wait())
	return received, owners
}
