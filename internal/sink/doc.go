/*
Package sink 存放设备快照的导出目标。

device.Root.Snapshot 读取所有可读变量并按设备生成 pkg.Point,
sink 根据配置将其发送到一个或多个目的地:

- log: 写入 zap 日志

- mqtt: 以 JSON 发布到 <topic>/<设备路径>

- prometheus: 抓取时读取设备树, 同时统计导出的数据点

使用示例：

	// 初始化函数，注册自定义导出
	func init() {
		Register("MySink", NewMySink)
	}

	// 实现 Template 接口
	func (s *MySink) Type() string { return "MySink" }
	func (s *MySink) Publish(point pkg.Point) error { ... }
	func (s *MySink) Close() error { ... }
*/
package sink
