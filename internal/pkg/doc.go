/*
Package pkg 包含了项目的公共类部分。具体地：

config.go -- 统一定义了所有配置的加载项，便于使用

logger.go -- 配置logger项

context.go -- 在 context 上挂载配置、logger 和全局错误通道

以下项因为在多个模块共用，故放置在此包中

common.go -- 设备快照 Point 定义

bytesPool.go -- UDP 收包使用的字节池
*/
package pkg
