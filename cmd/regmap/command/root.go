package command

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"regmap/internal"
	"regmap/internal/device"
	"regmap/internal/pkg"
)

// options 是所有子命令共享的全局参数
type options struct {
	configDir string
	verbose   bool
}

// NewRootCommand 创建根命令
func NewRootCommand() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:           "regmap",
		Short:         "Register map tool for the UDP communication engine",
		Long:          `regmap describes, reads and simulates the register map of the UDP communication engine.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configDir, "config", "c", "yaml", "配置目录, 目录下所有 yaml 文件会被合并")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "输出日志")

	// 添加子命令
	rootCmd.AddCommand(
		NewDescribeCommand(opts),
		NewReadCommand(opts),
		NewWriteCommand(opts),
		NewStatusCommand(opts),
		NewExportCommand(opts),
		NewServeCommand(opts),
	)
	return rootCmd
}

// loadContext 加载配置并创建挂载了配置和日志的上下文。
// 交互式命令默认不输出日志, 避免和命令输出混在一起
func loadContext(opts *options, withLog bool) (context.Context, *zap.Logger, error) {
	config, err := pkg.InitCommon(opts.configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}
	log := zap.NewNop()
	if withLog || opts.verbose {
		log = pkg.NewLogger(&config.Log)
	}
	ctx := pkg.WithConfig(context.Background(), config)
	ctx = pkg.WithLogger(ctx, log)
	return ctx, log, nil
}

// openRoot 加载配置并连接设备树, 调用方负责关闭
func openRoot(opts *options) (context.Context, *device.Root, error) {
	ctx, _, err := loadContext(opts, false)
	if err != nil {
		return nil, nil, err
	}
	root, err := internal.NewRoot(ctx)
	if err != nil {
		return nil, nil, err
	}
	return ctx, root, nil
}
