package device

import "errors"

// 注册期错误
var (
	ErrInvalidName     = errors.New("无效的名称")
	ErrInvalidVariable = errors.New("无效的变量定义")
	ErrWordWidth       = errors.New("位宽超出偏移对齐所允许的字宽")
	ErrDuplicateName   = errors.New("名称重复")
	ErrOverlap         = errors.New("地址重叠")
	ErrOutOfRange      = errors.New("超出设备地址空间")
	ErrAttached        = errors.New("节点已挂载到其他设备")
)

// 访问期错误
var (
	ErrNotFound    = errors.New("未找到节点")
	ErrNotVariable = errors.New("节点不是变量")
	ErrForeign     = errors.New("变量不属于该设备树")
	ErrReadOnly    = errors.New("变量只读")
	ErrWriteOnly   = errors.New("变量只写")
	ErrValueRange  = errors.New("数值超出位宽")
	ErrShortBuffer = errors.New("缓冲区长度不足")
)
