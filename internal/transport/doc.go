/*
Package transport 提供寄存器访问后端。

- memory: 进程内的稀疏地址空间, 用于测试和模拟硬件

- udp: 通过 UDP 事务访问远端寄存器引擎, 超时后按退避策略重传

Server 把任意 Transport 通过同样的 UDP 协议暴露出去, 帧格式见 frame.go。
*/
package transport
