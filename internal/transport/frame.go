package transport

import (
	"encoding/binary"
	"fmt"
)

// 帧格式 (大端):
//
//	version u8 | opcode u8 | status u8 | reserved u8 | tid u32 | addr u64 | size u32 | data[size]
//
// 读请求与写应答不携带 data
const (
	frameVersion = 1
	headerSize   = 20
	// MaxPayload 单次事务允许的最大数据长度
	MaxPayload = 1024
)

type opcode uint8

const (
	opRead  opcode = 1
	opWrite opcode = 2
)

func (o opcode) String() string {
	switch o {
	case opRead:
		return "read"
	case opWrite:
		return "write"
	}
	return fmt.Sprintf("opcode(%d)", uint8(o))
}

// Status 是应答帧中携带的事务状态
type Status uint8

const (
	StatusOK        Status = 0
	StatusBadFrame  Status = 1
	StatusBusError  Status = 2
	StatusSizeLimit Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusBadFrame:
		return "bad frame"
	case StatusBusError:
		return "bus error"
	case StatusSizeLimit:
		return "size limit"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// StatusError 表示远端返回了非 0 状态
type StatusError struct {
	Op     string
	Addr   uint64
	Status Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("远端 %s 事务失败 (addr=0x%x): %s", e.Op, e.Addr, e.Status)
}

type frame struct {
	op     opcode
	status Status
	tid    uint32
	addr   uint64
	size   uint32
	data   []byte
}

func (f *frame) MarshalBinary() ([]byte, error) {
	if len(f.data) > MaxPayload {
		return nil, fmt.Errorf("%w: %d > %d", ErrSizeLimit, len(f.data), MaxPayload)
	}
	if len(f.data) != 0 && uint32(len(f.data)) != f.size {
		return nil, fmt.Errorf("%w: size=%d, data=%d", ErrBadFrame, f.size, len(f.data))
	}
	b := make([]byte, headerSize+len(f.data))
	b[0] = frameVersion
	b[1] = byte(f.op)
	b[2] = byte(f.status)
	binary.BigEndian.PutUint32(b[4:8], f.tid)
	binary.BigEndian.PutUint64(b[8:16], f.addr)
	binary.BigEndian.PutUint32(b[16:20], f.size)
	copy(b[headerSize:], f.data)
	return b, nil
}

// UnmarshalBinary 解析一帧, data 为拷贝, 不引用 b
func (f *frame) UnmarshalBinary(b []byte) error {
	if len(b) < headerSize {
		return fmt.Errorf("%w: 长度 %d 小于帧头 %d", ErrBadFrame, len(b), headerSize)
	}
	if b[0] != frameVersion {
		return fmt.Errorf("%w: 版本 %d", ErrBadFrame, b[0])
	}
	f.op = opcode(b[1])
	f.status = Status(b[2])
	f.tid = binary.BigEndian.Uint32(b[4:8])
	f.addr = binary.BigEndian.Uint64(b[8:16])
	f.size = binary.BigEndian.Uint32(b[16:20])
	if f.op != opRead && f.op != opWrite {
		return fmt.Errorf("%w: 未知操作码 %d", ErrBadFrame, b[1])
	}
	payload := b[headerSize:]
	if len(payload) != 0 && uint32(len(payload)) != f.size {
		return fmt.Errorf("%w: size=%d, data=%d", ErrBadFrame, f.size, len(payload))
	}
	f.data = nil
	if len(payload) > 0 {
		f.data = append([]byte(nil), payload...)
	}
	return nil
}
