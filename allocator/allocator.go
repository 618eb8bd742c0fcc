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

// Package allocator 按名称查找消费组重平衡使用的队列分配策略
package allocator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ecodeclub/mq-rebalance"
	"github.com/ecodeclub/mq-rebalance/allocator/averagely"
	"github.com/ecodeclub/mq-rebalance/allocator/circle"
	"github.com/ecodeclub/mq-rebalance/allocator/consistenthash"
	"github.com/ecodeclub/mq-rebalance/mqerr"
)

var builders = map[string]func() mq.AllocateStrategy{
	averagely.Name: func() mq.AllocateStrategy {
		return averagely.NewStrategy()
	},
	circle.Name: func() mq.AllocateStrategy {
		return circle.NewStrategy()
	},
	consistenthash.Name: func() mq.AllocateStrategy {
		return consistenthash.NewStrategy()
	},
}

// New 名称不区分大小写
func New(name string) (mq.AllocateStrategy, error) {
	build, ok := builders[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", mqerr.ErrUnknownStrategy, name)
	}
	return build(), nil
}

func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
