package command

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"regmap/internal"
	"regmap/internal/surf/ethernet/udp"
)

// NewDescribeCommand 创建 describe 子命令, 打印寄存器表
func NewDescribeCommand(opts *options) *cobra.Command {
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Print the register map",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, _, err := loadContext(opts, false)
			if err != nil {
				return err
			}
			// 只描述寄存器表, 不需要连接后端
			root, err := internal.BuildRoot(ctx, nil)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asYAML {
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(root); err != nil {
					return err
				}
				return enc.Close()
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PATH\tADDRESS\tBITS\tMODE\tENDIAN\tDESCRIPTION")
			for _, info := range root.Describe() {
				fmt.Fprintf(w, "%s\t%s\t%d:%d\t%s\t%s\t%s\n",
					info.Path, info.Address, info.BitOffset+info.BitSize-1, info.BitOffset, info.Mode, info.Endian, info.Description)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "以 YAML 输出")
	return cmd
}

// NewReadCommand 创建 read 子命令, 读取一次变量
func NewReadCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "read <path>",
		Short: "Read a variable once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, root, err := openRoot(opts)
			if err != nil {
				return err
			}
			defer root.Close()
			value, err := root.Read(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %d (0x%x)\n", args[0], value, value)
			return nil
		},
	}
}

// NewWriteCommand 创建 write 子命令, 只读变量会被拒绝
func NewWriteCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "write <path> <value>",
		Short: "Write a variable once",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseUint(args[1], 0, 64)
			if err != nil {
				return fmt.Errorf("无效的值 %q: %w", args[1], err)
			}
			ctx, root, err := openRoot(opts)
			if err != nil {
				return err
			}
			defer root.Close()
			if err := root.Write(ctx, args[0], value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <- %d (0x%x)\n", args[0], value, value)
			return nil
		},
	}
}

// NewStatusCommand 创建 status 子命令, 打印每个 UdpEngineServer 的对端地址
func NewStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the remote address of every UdpEngineServer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, root, err := openRoot(opts)
			if err != nil {
				return err
			}
			defer root.Close()
			for _, dev := range root.Devices() {
				status, err := udp.ReadStatus(ctx, root, dev)
				if err != nil {
					return fmt.Errorf("%s: %w", dev.Path(), err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", dev.Path(), status)
			}
			return nil
		},
	}
}
