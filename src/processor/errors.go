// errors.go
package processor

import "fmt"

// Kind 错误类别
type Kind int

const (
	InvalidArgument Kind = iota + 1 // 参数错误: 未知数据集, 列不存在, 列类型不符
	InvalidState                    // 状态错误: 尚未加载数据
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case InvalidState:
		return "InvalidState"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// DatasetError 数据集操作的校验错误
type DatasetError struct {
	Kind Kind
	Op   string
	Msg  string
}

func (e *DatasetError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
}

// Is 与同类别的哨兵错误匹配
func (e *DatasetError) Is(target error) bool {
	t, ok := target.(*DatasetError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == ""
}

// 用于 errors.Is 判断的哨兵错误
var (
	ErrInvalidArgument = &DatasetError{Kind: InvalidArgument}
	ErrInvalidState    = &DatasetError{Kind: InvalidState}
)

func invalidArgument(op, format string, args ...any) error {
	return &DatasetError{Kind: InvalidArgument, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func invalidState(op string) error {
	return &DatasetError{Kind: InvalidState, Op: op, Msg: "尚未加载数据, 请先调用 GetData"}
}
