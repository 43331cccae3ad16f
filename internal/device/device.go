package device

import (
	"fmt"
	"strings"
)

// Node 是设备树中的节点: *Device 或 *Variable
type Node interface {
	Name() string
	Description() string
	Path() string
	Address() uint64
	parentDevice() *Device
	setParent(*Device)
}

// Device 是一组寄存器字段和子设备的集合。
// 设备树在初始化阶段一次性构建, 之后只读, Add 不可与读写并发调用
type Device struct {
	name        string
	description string
	offset      uint64
	size        uint64

	variables []*Variable
	devices   []*Device
	byName    map[string]Node
	parent    *Device
}

// Option 设备构造选项
type Option func(*Device)

// WithName 设置设备名称
func WithName(name string) Option {
	return func(d *Device) { d.name = name }
}

// WithDescription 设置设备描述
func WithDescription(desc string) Option {
	return func(d *Device) { d.description = desc }
}

// WithOffset 设置设备相对父设备的字节偏移
func WithOffset(offset uint64) Option {
	return func(d *Device) { d.offset = offset }
}

// WithSize 设置设备地址空间大小, 0 表示不限制
func WithSize(size uint64) Option {
	return func(d *Device) { d.size = size }
}

// New 创建一个设备
func New(opts ...Option) *Device {
	d := &Device{byName: make(map[string]Node)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Device) Name() string        { return d.name }
func (d *Device) Description() string { return d.description }
func (d *Device) Offset() uint64      { return d.offset }
func (d *Device) Size() uint64        { return d.size }
func (d *Device) Parent() *Device     { return d.parent }

func (d *Device) parentDevice() *Device { return d.parent }
func (d *Device) setParent(p *Device)   { d.parent = p }

// Path 返回从根开始以 . 连接的路径
func (d *Device) Path() string {
	if d.parent == nil {
		return d.name
	}
	return d.parent.Path() + "." + d.name
}

// Address 返回设备在整棵树地址空间中的绝对字节地址
func (d *Device) Address() uint64 {
	if d.parent == nil {
		return d.offset
	}
	return d.parent.Address() + d.offset
}

// Variables 按声明顺序返回本设备的变量
func (d *Device) Variables() []*Variable {
	return append([]*Variable(nil), d.variables...)
}

// Devices 按声明顺序返回子设备
func (d *Device) Devices() []*Device {
	return append([]*Device(nil), d.devices...)
}

// Add 依次注册变量或子设备, 遇到第一个错误即返回, 之前的节点保持已注册
func (d *Device) Add(nodes ...Node) error {
	for _, node := range nodes {
		if err := d.add(node); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) add(node Node) error {
	if isNilNode(node) {
		return fmt.Errorf("%w: nil 节点", ErrInvalidName)
	}
	if err := checkName(node.Name()); err != nil {
		return fmt.Errorf("%s: %w", d.Path(), err)
	}
	if node.parentDevice() != nil {
		return fmt.Errorf("%w: %s", ErrAttached, node.Path())
	}
	if _, exists := d.byName[node.Name()]; exists {
		return fmt.Errorf("%w: %s.%s", ErrDuplicateName, d.Path(), node.Name())
	}

	switch n := node.(type) {
	case *Variable:
		if _, end := n.ByteRange(); d.size > 0 && end > d.size {
			return fmt.Errorf("%w: %s.%s 结束于 0x%x, 设备大小 0x%x", ErrOutOfRange, d.Path(), n.Name(), end, d.size)
		}
		incoming := []claim{{path: d.Path() + "." + n.Name(), masks: n.absMasks(d.Address())}}
		if err := d.checkAliasing(incoming); err != nil {
			return err
		}
		d.variables = append(d.variables, n)
	case *Device:
		if n == d || n.isAncestorOf(d) {
			return fmt.Errorf("%w: %s 不能挂载到自身子树", ErrInvalidName, n.Name())
		}
		if d.size > 0 && n.offset >= d.size {
			return fmt.Errorf("%w: %s.%s 偏移 0x%x, 设备大小 0x%x", ErrOutOfRange, d.Path(), n.Name(), n.offset, d.size)
		}
		if err := d.checkAliasing(n.claims(d.Path()+".", d.Address()+n.offset, nil)); err != nil {
			return err
		}
		d.devices = append(d.devices, n)
	default:
		return fmt.Errorf("不支持的节点类型 %T", node)
	}
	node.setParent(d)
	d.byName[node.Name()] = node
	return nil
}

// isNilNode 同时识别 nil 接口和带类型的 nil 指针
func isNilNode(node Node) bool {
	switch n := node.(type) {
	case nil:
		return true
	case *Variable:
		return n == nil
	case *Device:
		return n == nil
	}
	return false
}

// claim 是一个变量在整棵树地址空间中占用的位
type claim struct {
	path  string
	masks map[uint64]byte
}

// claims 收集子树中所有变量的绝对字节掩码, base 为本设备的绝对地址
func (d *Device) claims(prefix string, base uint64, out []claim) []claim {
	for _, v := range d.variables {
		out = append(out, claim{path: prefix + d.name + "." + v.Name(), masks: v.absMasks(base)})
	}
	for _, c := range d.devices {
		out = c.claims(prefix+d.name+".", base+c.offset, out)
	}
	return out
}

// checkAliasing 检查新节点的变量是否与整棵树中已有变量占用相同的位, 不支持别名
func (d *Device) checkAliasing(incoming []claim) error {
	if len(incoming) == 0 {
		return nil
	}
	top := d
	for top.parent != nil {
		top = top.parent
	}
	existing := top.claims("", top.Address(), nil)
	for _, in := range incoming {
		for _, ex := range existing {
			if intersects(in.masks, ex.masks) {
				return fmt.Errorf("%w: %s 与 %s", ErrOverlap, in.path, ex.path)
			}
		}
	}
	return nil
}

func (d *Device) isAncestorOf(o *Device) bool {
	for p := o.parent; p != nil; p = p.parent {
		if p == d {
			return true
		}
	}
	return false
}

// Node 按名称返回直接子节点
func (d *Device) Node(name string) (Node, bool) {
	n, ok := d.byName[name]
	return n, ok
}

// Find 按 . 分隔的相对路径查找节点。
// 路径也可以以本设备名称开头, 例如在 Root 上查找 "Root.UdpEngineServer.ServerRemotePort"
func (d *Device) Find(path string) (Node, error) {
	parts := strings.Split(path, ".")
	if n, err := d.find(parts); err == nil {
		return n, nil
	}
	if len(parts) > 1 && parts[0] == d.name {
		if n, err := d.find(parts[1:]); err == nil {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
}

func (d *Device) find(parts []string) (Node, error) {
	cur := d
	for i, name := range parts {
		n, ok := cur.byName[name]
		if !ok {
			return nil, ErrNotFound
		}
		if i == len(parts)-1 {
			return n, nil
		}
		dev, ok := n.(*Device)
		if !ok {
			return nil, ErrNotFound
		}
		cur = dev
	}
	return nil, ErrNotFound
}

// FindVariable 查找变量
func (d *Device) FindVariable(path string) (*Variable, error) {
	n, err := d.Find(path)
	if err != nil {
		return nil, err
	}
	v, ok := n.(*Variable)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotVariable, path)
	}
	return v, nil
}

// Walk 深度优先遍历所有变量, 先本设备变量再子设备, fn 返回错误时停止
func (d *Device) Walk(fn func(*Variable) error) error {
	for _, v := range d.variables {
		if err := fn(v); err != nil {
			return err
		}
	}
	for _, child := range d.devices {
		if err := child.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}
