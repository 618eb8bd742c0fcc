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
	"testing"

	"github.com/ecodeclub/mq-rebalance"
	"github.com/ecodeclub/mq-rebalance/allocator/circle"
	"github.com/ecodeclub/mq-rebalance/mqerr"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMQ(t *testing.T) {
	t.Parallel()
	testmq := NewMQ(WithLogger(zerolog.Nop())).(*MQ)
	_, err := testmq.Consumer("test_topic", "group1")
	require.NoError(t, err)
	_, ok := testmq.topics.Load("test_topic")
	assert.Equal(t, ok, true)
	_, err = testmq.Producer("test_topic1")
	require.NoError(t, err)
	_, ok = testmq.topics.Load("test_topic1")
	assert.Equal(t, ok, true)
	require.NoError(t, testmq.Close())
}

func TestMQ_CreateTopic(t *testing.T) {
	t.Parallel()
	testmq := NewMQ(WithLogger(zerolog.Nop()))
	defer testmq.Close()

	assert.ErrorIs(t, testmq.CreateTopic(context.Background(), "_topic", 1), mqerr.ErrInvalidTopic)
	assert.ErrorIs(t, testmq.CreateTopic(context.Background(), "topic", 0), mqerr.ErrInvalidPartition)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, testmq.CreateTopic(ctx, "topic", 1), context.Canceled)

	require.NoError(t, testmq.CreateTopic(context.Background(), "topic", 4))
	// 重复创建不报错，也不改变分区数
	require.NoError(t, testmq.CreateTopic(context.Background(), "topic", 2))
	topic, ok := testmq.(*MQ).topics.Load("topic")
	require.True(t, ok)
	assert.Len(t, topic.partitions, 4)
}

func TestMQ_WithAllocateStrategy(t *testing.T) {
	t.Parallel()
	testmq := NewMQ(WithLogger(zerolog.Nop()), WithAllocateStrategy(circle.NewStrategy()))
	defer testmq.Close()
	require.NoError(t, testmq.CreateTopic(context.Background(), "topic", 5))

	consumers := make([]*Consumer, 0, 2)
	for i := 0; i < 2; i++ {
		c, err := testmq.Consumer("topic", "group")
		require.NoError(t, err)
		consumers = append(consumers, c.(*Consumer))
	}
	assert.Equal(t, [][]int{{0, 2, 4}, {1, 3}}, assignmentIDs(consumers))

	// 不同消费组各自分配
	c, err := testmq.Consumer("topic", "other_group")
	require.NoError(t, err)
	assert.Len(t, c.(*Consumer).Assignment(), 5)
}

func TestMQ_Close(t *testing.T) {
	t.Parallel()
	testmq := NewMQ(WithLogger(zerolog.Nop()))
	require.NoError(t, testmq.CreateTopic(context.Background(), "topic", 2))
	p, err := testmq.Producer("topic")
	require.NoError(t, err)
	c, err := testmq.Consumer("topic", "group")
	require.NoError(t, err)

	require.Equal(t, testmq.Close(), testmq.Close())

	_, err = p.Produce(context.Background(), &mq.Message{})
	assert.ErrorIs(t, err, mqerr.ErrProducerIsClosed)
	_, err = p.ProduceWithPartition(context.Background(), &mq.Message{}, 1)
	assert.ErrorIs(t, err, mqerr.ErrProducerIsClosed)
	_, err = c.Consume(context.Background())
	assert.ErrorIs(t, err, mqerr.ErrConsumerIsClosed)
	_, err = c.ConsumeChan(context.Background())
	assert.ErrorIs(t, err, mqerr.ErrConsumerIsClosed)

	assert.ErrorIs(t, testmq.CreateTopic(context.Background(), "topic", 2), mqerr.ErrMQIsClosed)
	_, err = testmq.Producer("topic")
	assert.ErrorIs(t, err, mqerr.ErrMQIsClosed)
	_, err = testmq.Consumer("topic", "group")
	assert.ErrorIs(t, err, mqerr.ErrMQIsClosed)
	assert.ErrorIs(t, testmq.DeleteTopics(context.Background(), "topic"), mqerr.ErrMQIsClosed)
}

func TestMQ_DeleteTopics(t *testing.T) {
	t.Parallel()
	testmq := NewMQ(WithLogger(zerolog.Nop()))
	defer testmq.Close()
	require.NoError(t, testmq.CreateTopic(context.Background(), "topic", 2))
	c, err := testmq.Consumer("topic", "group")
	require.NoError(t, err)

	require.NoError(t, testmq.DeleteTopics(context.Background(), "topic", "unknown_topic"))
	_, err = c.Consume(context.Background())
	assert.ErrorIs(t, err, mqerr.ErrConsumerIsClosed)
	_, ok := testmq.(*MQ).topics.Load("topic")
	assert.False(t, ok)
}
