// Package api 提供设备树的 HTTP 接口: 寄存器表、变量读写和 UdpEngineServer 状态
package api
