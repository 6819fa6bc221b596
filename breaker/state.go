package breaker

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// ========================================
// 状态定义 (State)
// ========================================

// State 熔断器状态
// 数值与 breaker_state 指标的取值一致：0 闭合、1 半开、2 打开
type State int

const (
	// StateClosed 闭合状态（正常放行）
	StateClosed State = iota
	// StateHalfOpen 半开状态（探测恢复）
	StateHalfOpen
	// StateOpen 打开状态（熔断中，快速失败）
	StateOpen
)

// String 返回状态的字符串表示
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// ParseState 从字符串解析状态
func ParseState(s string) (State, error) {
	switch s {
	case "closed":
		return StateClosed, nil
	case "half_open":
		return StateHalfOpen, nil
	case "open":
		return StateOpen, nil
	default:
		return StateClosed, fmt.Errorf("breaker: unknown state %q", s)
	}
}

// MarshalJSON 以字符串形式编码状态
// 存储中的记录跨进程共享，字符串编码保证不同版本间的可读性与兼容性
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON 从字符串解码状态
func (s *State) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("breaker: invalid state literal %s", data)
	}
	parsed, err := ParseState(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// EncodeMsgpack 实现 msgpack.CustomEncoder，与 JSON 编码保持一致（字符串）
func (s State) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeString(s.String())
}

// DecodeMsgpack 实现 msgpack.CustomDecoder
func (s *State) DecodeMsgpack(dec *msgpack.Decoder) error {
	str, err := dec.DecodeString()
	if err != nil {
		return err
	}
	parsed, err := ParseState(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ========================================
// 持久化记录 (Record)
// ========================================

// Record 熔断器的持久化状态记录，每个服务名对应一条
//
// 时间字段使用 epoch 毫秒，避免跨语言/跨进程的时区与精度歧义。
// 记录在首次读取时惰性创建（闭合、全零），只有计数或状态发生变化时才写回存储。
type Record struct {
	// State 当前状态
	State State `json:"state" msgpack:"state"`

	// Failures 自统计窗口起点以来的失败次数
	Failures int `json:"failures" msgpack:"failures"`

	// Successes 半开状态下的连续成功次数（闭合状态下恒为 0）
	Successes int `json:"successes" msgpack:"successes"`

	// LastFailureTime 最近一次失败时间（epoch 毫秒，0 表示从未失败）
	LastFailureTime int64 `json:"last_failure_time" msgpack:"last_failure_time"`

	// NextAttemptTime 允许下一次探测的时间（epoch 毫秒，仅在打开状态下有意义）
	NextAttemptTime int64 `json:"next_attempt_time" msgpack:"next_attempt_time"`
}

// newClosedRecord 返回闭合状态的默认记录
func newClosedRecord() *Record {
	return &Record{State: StateClosed}
}

// Clone 返回记录的拷贝，避免调用方修改存储中的共享数据
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// epochMillis 将时间转换为 epoch 毫秒
func epochMillis(t time.Time) int64 {
	return t.UnixMilli()
}
