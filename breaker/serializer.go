package breaker

import (
	"encoding/json"

	"github.com/ceyewan/fusebox/xerrors"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrUnsupportedSerializer 不支持的序列化器类型
var ErrUnsupportedSerializer = xerrors.New("breaker: unsupported serializer type")

// serializer 状态记录的序列化接口
// 分布式存储中的记录跨进程共享，各实例必须配置相同的格式
type serializer interface {
	Marshal(rec *Record) ([]byte, error)
	Unmarshal(data []byte, rec *Record) error
}

// jsonSerializer JSON 序列化器，兼容性最好
type jsonSerializer struct{}

func (jsonSerializer) Marshal(rec *Record) ([]byte, error) {
	return json.Marshal(rec)
}

func (jsonSerializer) Unmarshal(data []byte, rec *Record) error {
	return json.Unmarshal(data, rec)
}

// msgpackSerializer MessagePack 序列化器
// 比 JSON 更高效：序列化速度快 2-3 倍，数据体积小 20-30%
type msgpackSerializer struct{}

func (msgpackSerializer) Marshal(rec *Record) ([]byte, error) {
	return msgpack.Marshal(rec)
}

func (msgpackSerializer) Unmarshal(data []byte, rec *Record) error {
	return msgpack.Unmarshal(data, rec)
}

// newSerializer 创建序列化器
//
// 支持的类型:
//   - "json"（默认）: 标准库 JSON 序列化
//   - "msgpack": MessagePack 二进制序列化
func newSerializer(serializerType string) (serializer, error) {
	switch serializerType {
	case "json", "":
		return jsonSerializer{}, nil
	case "msgpack":
		return msgpackSerializer{}, nil
	default:
		return nil, ErrUnsupportedSerializer
	}
}
