// Package ids 生成按时间排序的 ULID 标识.
package ids

import (
	crand "crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(crand.Reader, 0) // Monotonic 本身不是并发安全的
)

// New 返回新的单调递增 ULID.
func New() ulid.ULID {
	return NewAt(time.Now())
}

// NewAt 以给定时间生成 ULID.
func NewAt(t time.Time) ulid.ULID {
	mu.Lock()
	defer mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(t), entropy)
}

// NewString 返回 New 的字符串形式.
func NewString() string {
	return New().String()
}

// Secret 返回不可预测的 ULID，随机部分直接取自 crypto/rand，用于会话令牌等.
func Secret() (string, error) {
	id, err := ulid.New(ulid.Now(), crand.Reader)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

// Valid 判断 s 是否为合法 ULID.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)

	return err == nil
}
