// Package device 描述内存映射的寄存器设备。
//
// 一个 Device 由若干 Variable (寄存器中的位域) 和子 Device 组成,
// 挂载到 Root 之后按绝对地址通过 transport.Transport 读写。
//
// 变量的字长由偏移的自然对齐决定: 0x04 对齐的变量最多 32 bit, 0x02 对齐最多 16 bit,
// 奇数偏移最多 8 bit。BitOffset 从字的最低位开始计数, 大端字的最低位位于最后一个字节。
//
// 设备树在初始化阶段构建, 之后只读; Root 的读写可以并发调用, 是否串行化由后端决定。
package device
