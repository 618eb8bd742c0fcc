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

package consistenthash

import (
	"github.com/buraksezer/consistent"
	"github.com/cespare/xxhash"
	"github.com/ecodeclub/ekit/slice"
	"github.com/ecodeclub/mq-rebalance"
	"github.com/ecodeclub/mq-rebalance/internal/pkg/validator"
)

const (
	Name = "CONSISTENT_HASH"

	defaultPartitionCount    = 271
	defaultReplicationFactor = 20
	defaultLoad              = 1.25
)

// Strategy 一致性哈希分配策略，结果只取决于消费者集合，与 cidAll 的顺序无关。
// 每个消费者分到的队列数受 load 约束，不保证相差不超过一个。
type Strategy struct {
	partitionCount    int
	replicationFactor int
	load              float64
}

type Option func(s *Strategy)

// WithPartitionCount 哈希环上的分片数，队列先落到分片再由分片找到消费者
func WithPartitionCount(count int) Option {
	return func(s *Strategy) {
		s.partitionCount = count
	}
}

// WithReplicationFactor 每个消费者在环上的虚拟节点数
func WithReplicationFactor(factor int) Option {
	return func(s *Strategy) {
		s.replicationFactor = factor
	}
}

// WithLoad 单个消费者持有分片数相对平均值的上限倍数，必须大于1，否则使用默认值
func WithLoad(load float64) Option {
	return func(s *Strategy) {
		s.load = load
	}
}

func NewStrategy(opts ...Option) *Strategy {
	s := &Strategy{
		partitionCount:    defaultPartitionCount,
		replicationFactor: defaultReplicationFactor,
		load:              defaultLoad,
	}
	for _, opt := range opts {
		opt(s)
	}
	// load 不大于1时环上放不下所有分片
	if s.load <= 1 {
		s.load = defaultLoad
	}
	if s.replicationFactor <= 0 {
		s.replicationFactor = defaultReplicationFactor
	}
	return s
}

func (s *Strategy) Name() string {
	return Name
}

func (s *Strategy) Allocate(consumerGroup, currentCID string, mqAll []mq.MessageQueue, cidAll []string) ([]mq.MessageQueue, error) {
	if err := validator.CheckAllocateArgs(currentCID, mqAll, cidAll); err != nil {
		return nil, err
	}
	if !slice.Contains(cidAll, currentCID) {
		return []mq.MessageQueue{}, nil
	}
	ring := s.newRing(cidAll)
	result := make([]mq.MessageQueue, 0, len(mqAll)/len(cidAll)+1)
	for _, q := range mqAll {
		if ring.LocateKey([]byte(q.String())).String() == currentCID {
			result = append(result, q)
		}
	}
	return result, nil
}

func (s *Strategy) newRing(cidAll []string) *consistent.Consistent {
	members := make([]consistent.Member, 0, len(cidAll))
	added := make(map[string]struct{}, len(cidAll))
	for _, cid := range cidAll {
		if _, ok := added[cid]; ok {
			continue
		}
		added[cid] = struct{}{}
		members = append(members, member(cid))
	}
	// 分片数不能少于消费者数，否则平均负载为0
	return consistent.New(members, consistent.Config{
		Hasher:            hasher{},
		PartitionCount:    max(s.partitionCount, len(members)),
		ReplicationFactor: s.replicationFactor,
		Load:              s.load,
	})
}

type member string

func (m member) String() string {
	return string(m)
}

type hasher struct{}

func (hasher) Sum64(data []byte) uint64 {
	return xxhash.Sum64(data)
}
