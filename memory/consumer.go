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
	"sync"
	"time"

	"github.com/ecodeclub/mq-rebalance"
	"github.com/ecodeclub/mq-rebalance/mqerr"
)

const (
	consumerCap   = 16
	pollBatchSize = 64
	pollInterval  = 10 * time.Millisecond
)

type Consumer struct {
	locker sync.RWMutex
	closed bool
	name   string
	group  *ConsumerGroup
	// 不带缓冲，消息被取走才算交付
	msgCh     chan *mq.Message
	closeCh   chan struct{}
	closeOnce sync.Once

	// run 退出后关闭
	done chan struct{}
}

func newConsumer(name string, group *ConsumerGroup) *Consumer {
	return &Consumer{
		name:    name,
		group:   group,
		msgCh:   make(chan *mq.Message),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (c *Consumer) Name() string {
	return c.name
}

func (c *Consumer) Consume(ctx context.Context) (*mq.Message, error) {
	if c.isClosed() {
		return nil, mqerr.ErrConsumerIsClosed
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closeCh:
		return nil, mqerr.ErrConsumerIsClosed
	case msg := <-c.msgCh:
		return msg, nil
	}
}

func (c *Consumer) ConsumeChan(ctx context.Context) (<-chan *mq.Message, error) {
	if c.isClosed() {
		return nil, mqerr.ErrConsumerIsClosed
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return c.msgCh, nil
}

// Assignment 当前分到的队列
func (c *Consumer) Assignment() []mq.MessageQueue {
	return c.group.Assignment(c.name)
}

// Close 退出消费组，剩下的消费者会重新分配队列，并从已交付的进度继续消费
func (c *Consumer) Close() error {
	c.stop()
	// 等最后一条交付的消息提交完再重平衡
	<-c.done
	c.group.ExitGroup(c.name)
	return nil
}

func (c *Consumer) stop() {
	c.closeOnce.Do(func() {
		c.locker.Lock()
		c.closed = true
		c.locker.Unlock()
		close(c.closeCh)
	})
}

func (c *Consumer) isClosed() bool {
	c.locker.RLock()
	defer c.locker.RUnlock()
	return c.closed
}

// run 定时拉取分到的分区里的消息，逐条交付并提交进度
func (c *Consumer) run() {
	defer close(c.done)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closeCh:
			return
		case <-ticker.C:
			c.deliver(c.group.fetch(c.name, pollBatchSize))
		}
	}
}

func (c *Consumer) deliver(msgs []*mq.Message) {
	for _, msg := range msgs {
		select {
		case c.msgCh <- msg:
			if !c.group.commit(c.name, msg) {
				return
			}
		case <-c.closeCh:
			return
		}
	}
}
