package device

import (
	"fmt"
	"strings"
)

// Base 变量的数值编码
type Base int

const (
	UInt Base = iota
	Int
	Bool
)

func (b Base) String() string {
	switch b {
	case UInt:
		return "UInt"
	case Int:
		return "Int"
	case Bool:
		return "Bool"
	}
	return fmt.Sprintf("Base(%d)", int(b))
}

// Mode 变量的访问模式
type Mode int

const (
	RW Mode = iota
	RO
	WO
)

func (m Mode) String() string {
	switch m {
	case RW:
		return "RW"
	case RO:
		return "RO"
	case WO:
		return "WO"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// CanRead 是否允许读
func (m Mode) CanRead() bool { return m == RW || m == RO }

// CanWrite 是否允许写
func (m Mode) CanWrite() bool { return m == RW || m == WO }

// ParseMode 解析 "RW"/"RO"/"WO", 不区分大小写
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "RW":
		return RW, nil
	case "RO":
		return RO, nil
	case "WO":
		return WO, nil
	}
	return RW, fmt.Errorf("未知的访问模式: %q", s)
}

// WordBits 返回 offset 的自然对齐所对应的字宽(bit), 上限 64。
// offset 为 0 时返回 64, 0x04 返回 32, 0x02 返回 16
func WordBits(offset uint64) int {
	if offset == 0 {
		return 64
	}
	align := offset & -offset
	if align >= 8 {
		return 64
	}
	return int(align) * 8
}
