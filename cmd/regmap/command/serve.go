package command

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"regmap/internal"
	"regmap/internal/pkg"
	"regmap/internal/sink"
)

// syncLog 安全地同步日志，忽略与标准输出相关的错误
func syncLog(log *zap.Logger) {
	err := log.Sync()
	if err != nil && !strings.Contains(err.Error(), "The handle is invalid") &&
		!strings.Contains(err.Error(), "invalid argument") {
		log.Error("程序退出时同步日志失败", zap.Error(err))
	}
}

// NewExportCommand 创建 export 子命令, 读取一次快照并发布到已启用的导出目标
func NewExportCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Read every variable once and publish to the enabled sinks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, log, err := loadContext(opts, true)
			if err != nil {
				return err
			}
			defer syncLog(log)
			root, err := internal.NewRoot(ctx)
			if err != nil {
				return err
			}
			defer root.Close()
			sinks, err := sink.New(sink.WithRoot(pkg.WithLoggerAndModule(ctx, log, "Sink"), root))
			if err != nil {
				return err
			}
			defer sinks.Close()
			return internal.Export(ctx, root, sinks)
		},
	}
}

// NewServeCommand 创建 serve 子命令, 运行模拟引擎和 HTTP 接口直到收到退出信号
func NewServeCommand(opts *options) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the simulated UDP engine and the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			baseCtx, log, err := loadContext(opts, true)
			if err != nil {
				return err
			}
			defer syncLog(log)
			config := pkg.ConfigFromContext(baseCtx)
			log.Info("程序启动", zap.String("version", config.Version))
			log.Info("配置信息", zap.Any("common", config))

			ctx, cancel := context.WithCancel(baseCtx)
			defer cancel()
			errChan := make(chan error, 10)
			ctx = pkg.WithErrChan(ctx, errChan)

			sim, err := internal.NewSimulator(pkg.WithLoggerAndModule(ctx, log, "Simulator"))
			if err != nil {
				return fmt.Errorf("创建模拟引擎失败: %w", err)
			}
			sim.Start(ctx)

			sinks, err := sink.New(sink.WithRoot(pkg.WithLoggerAndModule(ctx, log, "Sink"), sim.Root))
			if err != nil {
				return err
			}
			defer sinks.Close()
			internal.StartAPI(pkg.WithLoggerAndModule(ctx, log, "API"), sim.Root, sinks)

			var tick <-chan time.Time
			if interval > 0 && len(sinks) > 0 {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				tick = ticker.C
			}

			// 主线程监听终止信号
			si := make(chan os.Signal, 1)
			signal.Notify(si, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(si)
			for {
				select {
				case <-si:
					log.Info("Caught exit signal, exiting...")
					cancel()
					time.Sleep(500 * time.Millisecond) // 给其他协程时间处理取消
					return nil
				case bad := <-errChan:
					log.Error("Error occurred", zap.Error(bad))
					cancel()
					return bad
				case <-tick:
					if err := internal.Export(ctx, sim.Root, sinks); err != nil {
						log.Warn("导出快照失败", zap.Error(err))
					}
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "export-interval", 0, "周期性导出快照的间隔, 0 表示不导出")
	return cmd
}
