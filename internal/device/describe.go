package device

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// VariableInfo 是变量的静态描述, 用于导出寄存器表
type VariableInfo struct {
	Path        string `json:"path" yaml:"-"`
	Address     string `json:"address" yaml:"address"`
	Offset      string `json:"offset" yaml:"offset"`
	BitOffset   int    `json:"bitOffset" yaml:"bitOffset"`
	BitSize     int    `json:"bitSize" yaml:"bitSize"`
	Base        string `json:"base" yaml:"base"`
	Mode        string `json:"mode" yaml:"mode"`
	Endian      string `json:"endian" yaml:"endian"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Info 返回变量的静态描述
func (v *Variable) Info() VariableInfo {
	endian := "little"
	if v.cfg.BigEndian {
		endian = "big"
	}
	return VariableInfo{
		Path:        v.Path(),
		Address:     fmt.Sprintf("0x%08x", v.Address()),
		Offset:      fmt.Sprintf("0x%02x", v.cfg.Offset),
		BitOffset:   v.cfg.BitOffset,
		BitSize:     v.cfg.BitSize,
		Base:        v.cfg.Base.String(),
		Mode:        v.cfg.Mode.String(),
		Endian:      endian,
		Description: v.cfg.Description,
	}
}

// Describe 按遍历顺序返回所有变量的静态描述
func (d *Device) Describe() []VariableInfo {
	out := make([]VariableInfo, 0)
	_ = d.Walk(func(v *Variable) error {
		out = append(out, v.Info())
		return nil
	})
	return out
}

// MarshalYAML 将设备树导出为嵌套的 YAML, 保持声明顺序
func (d *Device) MarshalYAML() (interface{}, error) {
	body, err := d.yamlNode()
	if err != nil {
		return nil, err
	}
	return &yaml.Node{
		Kind:    yaml.MappingNode,
		Content: []*yaml.Node{scalar(d.name), body},
	}, nil
}

// yamlNode 输出设备节点, 变量和子设备分别放在 variables 和 devices 下, 避免与 description 重名
func (d *Device) yamlNode() (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	if d.description != "" {
		node.Content = append(node.Content, scalar("description"), scalar(d.description))
	}
	if len(d.variables) > 0 {
		vars := &yaml.Node{Kind: yaml.MappingNode}
		for _, v := range d.variables {
			value := &yaml.Node{}
			if err := value.Encode(v.Info()); err != nil {
				return nil, fmt.Errorf("编码变量 %s 失败: %w", v.Path(), err)
			}
			vars.Content = append(vars.Content, scalar(v.Name()), value)
		}
		node.Content = append(node.Content, scalar("variables"), vars)
	}
	if len(d.devices) > 0 {
		devs := &yaml.Node{Kind: yaml.MappingNode}
		for _, child := range d.devices {
			value, err := child.yamlNode()
			if err != nil {
				return nil, err
			}
			devs.Content = append(devs.Content, scalar(child.Name()), value)
		}
		node.Content = append(node.Content, scalar("devices"), devs)
	}
	return node, nil
}

func scalar(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}
