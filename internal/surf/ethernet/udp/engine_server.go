// Package udp 定义 UDP 通信引擎的寄存器映射
package udp

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"strconv"

	"regmap/internal/device"
)

const (
	// EngineServerName UdpEngineServer 的默认名称
	EngineServerName = "UdpEngineServer"

	ServerRemotePort = "ServerRemotePort"
	ServerRemoteIp   = "ServerRemoteIp"
)

// NewEngineServer 创建 UdpEngineServer 设备, 声明服务端状态寄存器。
// opts 原样传给 device.New, 可覆盖默认名称和描述
func NewEngineServer(opts ...device.Option) (*device.Device, error) {
	opts = append([]device.Option{
		device.WithName(EngineServerName),
		device.WithDescription(EngineServerName),
	}, opts...)
	dev := device.New(opts...)

	port, err := device.NewRemoteVariable(device.VariableConfig{
		Name:        ServerRemotePort,
		Description: "ServerRemotePort (big-Endian configuration)",
		Offset:      0x00,
		BitSize:     16,
		BitOffset:   0x00,
		Base:        device.UInt,
		Mode:        device.RO,
		BigEndian:   true,
	})
	if err != nil {
		return nil, err
	}
	ip, err := device.NewRemoteVariable(device.VariableConfig{
		Name:        ServerRemoteIp,
		Description: "ServerRemoteIp (big-Endian configuration)",
		Offset:      0x04,
		BitSize:     32,
		BitOffset:   0x00,
		Base:        device.UInt,
		Mode:        device.RO,
		BigEndian:   true,
	})
	if err != nil {
		return nil, err
	}

	if err := dev.Add(port, ip); err != nil {
		return nil, fmt.Errorf("注册 %s 变量失败: %w", dev.Name(), err)
	}
	return dev, nil
}

// Status 是 UdpEngineServer 当前对端的地址
type Status struct {
	Port uint16
	IP   net.IP
}

// String 以 a.b.c.d:port 形式输出
func (s Status) String() string {
	return net.JoinHostPort(s.IP.String(), strconv.Itoa(int(s.Port)))
}

// ReadStatus 通过 root 的后端读取 dev 的两个状态寄存器
func ReadStatus(ctx context.Context, root *device.Root, dev *device.Device) (Status, error) {
	portVar, err := dev.FindVariable(ServerRemotePort)
	if err != nil {
		return Status{}, err
	}
	ipVar, err := dev.FindVariable(ServerRemoteIp)
	if err != nil {
		return Status{}, err
	}
	port, err := root.ReadVariable(ctx, portVar)
	if err != nil {
		return Status{}, err
	}
	ip, err := root.ReadVariable(ctx, ipVar)
	if err != nil {
		return Status{}, err
	}
	return Status{Port: uint16(port), IP: IPFromUint32(uint32(ip))}, nil
}

// IPFromUint32 将寄存器值转换为 IPv4 地址, 高字节在前
func IPFromUint32(v uint32) net.IP {
	ip := make(net.IP, net.IPv4len)
	binary.BigEndian.PutUint32(ip, v)
	return ip
}

// Uint32FromIP 将 IPv4 地址转换为寄存器值
func Uint32FromIP(ip net.IP) (uint32, error) {
	v4 := ip.To4()
	if v4 == nil {
		return 0, fmt.Errorf("不是 IPv4 地址: %s", ip)
	}
	return binary.BigEndian.Uint32(v4), nil
}
