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

package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ecodeclub/mq-rebalance"
	"github.com/ecodeclub/mq-rebalance/mqerr"
)

const (
	maxTopicNameLength = 50
)

var topicRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-.]*[a-zA-Z0-9]$`)

func IsValidTopic(name string) bool {
	// 检查名称长度
	if !(0 < len(name) && len(name) <= maxTopicNameLength) {
		return false
	}

	// 检查特殊字符是否作为开头
	if strings.HasPrefix(name, "_") || strings.HasPrefix(name, "-") || strings.HasPrefix(name, ".") {
		return false
	}

	return topicRegex.MatchString(name)
}

// CheckAllocateArgs 校验分配策略的入参，三项检查相互独立
func CheckAllocateArgs(currentCID string, mqAll []mq.MessageQueue, cidAll []string) error {
	if currentCID == "" {
		return fmt.Errorf("%w: currentCID is empty", mqerr.ErrInvalidArgument)
	}
	if len(mqAll) == 0 {
		return fmt.Errorf("%w: mqAll is nil or mqAll empty", mqerr.ErrInvalidArgument)
	}
	if len(cidAll) == 0 {
		return fmt.Errorf("%w: cidAll is nil or cidAll empty", mqerr.ErrInvalidArgument)
	}
	return nil
}
