package device

import (
	"fmt"
	"strings"
)

// VariableConfig 定义一个寄存器字段
type VariableConfig struct {
	Name        string
	Description string
	Offset      uint64 // 相对所属设备的字节偏移
	BitOffset   int    // 从字的最低位开始计数, 字长为 ceil((BitOffset+BitSize)/8) 字节
	BitSize     int
	Base        Base
	Mode        Mode
	BigEndian   bool // 线上字节序
}

// Variable 是挂载在设备上的远端变量, 构造后不可修改
type Variable struct {
	cfg    VariableConfig
	parent *Device
}

// NewRemoteVariable 校验并创建一个远端变量
func NewRemoteVariable(cfg VariableConfig) (*Variable, error) {
	if err := checkName(cfg.Name); err != nil {
		return nil, err
	}
	if cfg.BitSize <= 0 || cfg.BitOffset < 0 {
		return nil, fmt.Errorf("%w: %s bitOffset=%d bitSize=%d", ErrInvalidVariable, cfg.Name, cfg.BitOffset, cfg.BitSize)
	}
	if width := WordBits(cfg.Offset); cfg.BitOffset+cfg.BitSize > width {
		return nil, fmt.Errorf("%w: %s offset=0x%x 允许 %d bit, 实际 bitOffset+bitSize=%d",
			ErrWordWidth, cfg.Name, cfg.Offset, width, cfg.BitOffset+cfg.BitSize)
	}
	if cfg.Base == Bool && cfg.BitSize != 1 {
		return nil, fmt.Errorf("%w: %s Bool 类型要求 bitSize=1", ErrInvalidVariable, cfg.Name)
	}
	if cfg.Mode != RW && cfg.Mode != RO && cfg.Mode != WO {
		return nil, fmt.Errorf("%w: %s mode=%s", ErrInvalidVariable, cfg.Name, cfg.Mode)
	}
	return &Variable{cfg: cfg}, nil
}

func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, ". \t") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func (v *Variable) Name() string        { return v.cfg.Name }
func (v *Variable) Description() string { return v.cfg.Description }
func (v *Variable) Offset() uint64      { return v.cfg.Offset }
func (v *Variable) BitOffset() int      { return v.cfg.BitOffset }
func (v *Variable) BitSize() int        { return v.cfg.BitSize }
func (v *Variable) Base() Base          { return v.cfg.Base }
func (v *Variable) Mode() Mode          { return v.cfg.Mode }
func (v *Variable) BigEndian() bool     { return v.cfg.BigEndian }

// Parent 返回所属设备, 未挂载时为 nil
func (v *Variable) Parent() *Device { return v.parent }

func (v *Variable) parentDevice() *Device { return v.parent }
func (v *Variable) setParent(d *Device)   { v.parent = d }

// Path 返回从根开始以 . 连接的路径
func (v *Variable) Path() string {
	if v.parent == nil {
		return v.cfg.Name
	}
	return v.parent.Path() + "." + v.cfg.Name
}

// Address 返回变量在整棵树地址空间中的绝对字节地址
func (v *Variable) Address() uint64 {
	if v.parent == nil {
		return v.cfg.Offset
	}
	return v.parent.Address() + v.cfg.Offset
}

// ByteSize 一次读事务需要的字节数
func (v *Variable) ByteSize() int {
	return (v.cfg.BitOffset + v.cfg.BitSize + 7) / 8
}

// ByteRange 返回相对所属设备的字节区间 [start, end)
func (v *Variable) ByteRange() (start, end uint64) {
	return v.cfg.Offset, v.cfg.Offset + uint64(v.ByteSize())
}

func (v *Variable) mask() uint64 {
	if v.cfg.BitSize >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<v.cfg.BitSize - 1
}

// byteMasks 返回变量在每个字节上占用的位, key 为相对设备的字节偏移
func (v *Variable) byteMasks() map[uint64]byte {
	n := v.ByteSize()
	out := make(map[uint64]byte, n)
	for bit := v.cfg.BitOffset; bit < v.cfg.BitOffset+v.cfg.BitSize; bit++ {
		idx := bit / 8
		if v.cfg.BigEndian {
			idx = n - 1 - idx
		}
		out[v.cfg.Offset+uint64(idx)] |= 1 << (bit % 8)
	}
	return out
}

// absMasks 返回变量在整棵树地址空间中的字节掩码, base 为所属设备的绝对地址
func (v *Variable) absMasks(base uint64) map[uint64]byte {
	rel := v.byteMasks()
	out := make(map[uint64]byte, len(rel))
	for off, m := range rel {
		out[base+off] = m
	}
	return out
}

// intersects 判断两组字节掩码是否占用了相同的位
func intersects(a, b map[uint64]byte) bool {
	for addr, m := range a {
		if b[addr]&m != 0 {
			return true
		}
	}
	return false
}

func (v *Variable) word(buf []byte) uint64 {
	var w uint64
	n := v.ByteSize()
	for i := 0; i < n; i++ {
		if v.cfg.BigEndian {
			w = w<<8 | uint64(buf[i])
		} else {
			w |= uint64(buf[i]) << (8 * i)
		}
	}
	return w
}

func (v *Variable) putWord(w uint64, buf []byte) {
	n := v.ByteSize()
	for i := 0; i < n; i++ {
		if v.cfg.BigEndian {
			buf[n-1-i] = byte(w >> (8 * i))
		} else {
			buf[i] = byte(w >> (8 * i))
		}
	}
}

// Decode 从事务数据中取出变量的原始值
func (v *Variable) Decode(buf []byte) (uint64, error) {
	if len(buf) < v.ByteSize() {
		return 0, fmt.Errorf("%w: %s 需要 %d 字节, 实际 %d", ErrShortBuffer, v.cfg.Name, v.ByteSize(), len(buf))
	}
	return (v.word(buf) >> v.cfg.BitOffset) & v.mask(), nil
}

// Encode 将 value 写入 buf 中变量所在的位, 其余位保持不变
func (v *Variable) Encode(value uint64, buf []byte) error {
	if len(buf) < v.ByteSize() {
		return fmt.Errorf("%w: %s 需要 %d 字节, 实际 %d", ErrShortBuffer, v.cfg.Name, v.ByteSize(), len(buf))
	}
	if value&^v.mask() != 0 {
		return fmt.Errorf("%w: %s 为 %d bit, 值 0x%x", ErrValueRange, v.cfg.Name, v.cfg.BitSize, value)
	}
	w := v.word(buf)
	w &^= v.mask() << v.cfg.BitOffset
	w |= value << v.cfg.BitOffset
	v.putWord(w, buf)
	return nil
}

// Signed 按 Int 编码对原始值做符号扩展
func (v *Variable) Signed(raw uint64) int64 {
	if v.cfg.BitSize >= 64 {
		return int64(raw)
	}
	shift := 64 - v.cfg.BitSize
	return int64(raw<<shift) >> shift
}
