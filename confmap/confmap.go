// Package confmap provides an arena-backed implementation of the
// weft.ContainerView interface over plain Go maps, slices and YAML
// documents. Nodes live in a flat slice with integer parent links; the
// container owns the arena and hands out borrowed node references.
package confmap

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/weftworks/weft"
)

// Container errors.
var (
	// ErrUnsupportedValue is returned when a tree holds a value that has no
	// configuration representation.
	ErrUnsupportedValue = errors.New("confmap: unsupported value type")

	// ErrRootNotMapping is returned when a YAML document does not hold a
	// mapping at its root.
	ErrRootNotMapping = errors.New("confmap: root must be a mapping")

	// ErrForeignNode is returned when a node from another container is used
	// as the base of a relative selection.
	ErrForeignNode = errors.New("confmap: node belongs to a different container")
)

type nodeKind uint8

const (
	kindLeaf nodeKind = iota
	kindMap
	kindList
)

type entry struct {
	key      string
	parent   int32
	kind     nodeKind
	leaf     weft.Value
	children []int32
	index    map[string]int32
}

var lastID atomic.Uint64

// Container is a read-only configuration tree.
type Container struct {
	nodes []entry
	cache *weft.Cache
	id    uint64
}

// FromMap builds a container from nested maps, slices and scalars. Map
// keys are sorted for a deterministic layout.
func FromMap(m map[string]any) (*Container, error) {
	c := &Container{
		cache: weft.NewCache(),
		id:    lastID.Add(1),
	}

	c.nodes = append(c.nodes, entry{key: "", parent: -1, kind: kindMap, index: map[string]int32{}})

	if err := c.addMap(0, m); err != nil {
		return nil, err
	}

	return c, nil
}

// FromYAML builds a container from a YAML document with a mapping root.
func FromYAML(data []byte) (*Container, error) {
	var m map[string]any

	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	if m == nil {
		return nil, ErrRootNotMapping
	}

	return FromMap(m)
}

func (c *Container) addMap(parent int32, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		if err := c.add(parent, k, m[k]); err != nil {
			return err
		}
	}

	return nil
}

func (c *Container) add(parent int32, key string, v any) error {
	idx := int32(len(c.nodes))

	switch t := v.(type) {
	case map[string]any:
		c.nodes = append(c.nodes, entry{key: key, parent: parent, kind: kindMap, index: map[string]int32{}})
		c.link(parent, key, idx)

		return c.addMap(idx, t)
	case []any:
		c.nodes = append(c.nodes, entry{key: key, parent: parent, kind: kindList})
		c.link(parent, key, idx)

		for i, item := range t {
			if err := c.add(idx, strconv.Itoa(i), item); err != nil {
				return err
			}
		}

		return nil
	default:
		leaf, err := leafValue(v)
		if err != nil {
			return fmt.Errorf("%w (key %q)", err, key)
		}

		c.nodes = append(c.nodes, entry{key: key, parent: parent, kind: kindLeaf, leaf: leaf})
		c.link(parent, key, idx)

		return nil
	}
}

func (c *Container) link(parent int32, key string, child int32) {
	p := &c.nodes[parent]
	p.children = append(p.children, child)

	if p.index != nil {
		p.index[key] = child
	}
}

func leafValue(v any) (weft.Value, error) {
	switch t := v.(type) {
	case nil:
		return weft.NullValue(), nil
	case bool:
		return weft.BoolValue(t), nil
	case int:
		return weft.IntValue(int64(t)), nil
	case int64:
		return weft.IntValue(t), nil
	case uint64:
		return weft.IntValue(int64(t)), nil
	case float64:
		return weft.FloatValue(t), nil
	case string:
		return weft.StringValue(t), nil
	default:
		return weft.Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

// ID implements weft.ContainerView.
func (c *Container) ID() uint64 { return c.id }

// ResolverCache implements weft.ContainerView.
func (c *Container) ResolverCache() *weft.Cache { return c.cache }

// Root returns the root mapping node.
//
//nolint:ireturn // weft.ContainerView returns nodes as interfaces.
func (c *Container) Root() weft.Node { return nodeRef{c: c, idx: 0} }

// Select implements weft.ContainerView: dotted-path lookup with list
// indices. Leading dots make the path relative to base, climbing one
// level per extra dot.
//
//nolint:ireturn // weft.ContainerView returns nodes as interfaces.
func (c *Container) Select(path string, base weft.Node) (weft.Node, error) {
	dots := 0
	for dots < len(path) && path[dots] == '.' {
		dots++
	}

	cur := int32(0)

	if dots > 0 && base != nil {
		ref, ok := base.(nodeRef)
		if !ok || ref.c != c {
			return nil, ErrForeignNode
		}

		cur = ref.idx

		for climb := 1; climb < dots; climb++ {
			if parent := c.nodes[cur].parent; parent >= 0 {
				cur = parent
			} else {
				return nil, &weft.ConfigKeyError{Key: path, Msg: fmt.Sprintf("relative path %q escapes the configuration root", path)}
			}
		}
	}

	rest := path[dots:]
	if rest == "" {
		return nodeRef{c: c, idx: cur}, nil
	}

	for _, seg := range strings.Split(rest, ".") {
		next, ok := c.child(cur, seg)
		if !ok {
			return nil, &weft.ConfigKeyError{Key: seg, Path: path}
		}

		cur = next
	}

	return nodeRef{c: c, idx: cur}, nil
}

func (c *Container) child(parent int32, seg string) (int32, bool) {
	e := &c.nodes[parent]

	switch e.kind {
	case kindMap:
		idx, ok := e.index[seg]

		return idx, ok
	case kindList:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(e.children) {
			return 0, false
		}

		return e.children[i], true
	default:
		return 0, false
	}
}

// Resolve selects a node by dotted path and evaluates any interpolation
// in it, returning the fully materialized value.
func (c *Container) Resolve(path string, resolvers *weft.ResolverRegistry, ctx weft.ResolveContext) (weft.Value, error) {
	node, err := c.Select(path, nil)
	if err != nil {
		return weft.Value{}, err
	}

	if node.IsMissing() && ctx.FailOnMissing {
		return weft.Value{}, &weft.MissingValueError{Path: node.Path()}
	}

	raw := node.Value()

	if raw.Kind() == weft.KindString && weft.ContainsInterpolation(raw.Str()) {
		ast, err := weft.Parse(raw.Str())
		if err != nil {
			return weft.Value{}, err
		}

		ctx.Key = node.Key()
		ctx.Parent = node.Parent()

		v, err := weft.Evaluate(ast, c, resolvers, ctx)
		if err != nil {
			return weft.Value{}, err
		}

		return weft.Materialize(v, c, resolvers, ctx)
	}

	return weft.Materialize(raw, c, resolvers, ctx)
}

// nodeRef is a borrowed reference into the container's arena.
type nodeRef struct {
	c   *Container
	idx int32
}

// Key implements weft.Node.
func (n nodeRef) Key() string { return n.c.nodes[n.idx].key }

// Path implements weft.Node.
func (n nodeRef) Path() string {
	var segs []string

	for idx := n.idx; idx > 0; idx = n.c.nodes[idx].parent {
		segs = append(segs, n.c.nodes[idx].key)
	}

	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}

	return strings.Join(segs, ".")
}

// Parent implements weft.Node.
//
//nolint:ireturn // weft.Node parents are interface-typed.
func (n nodeRef) Parent() weft.Node {
	parent := n.c.nodes[n.idx].parent
	if parent < 0 {
		return nil
	}

	return nodeRef{c: n.c, idx: parent}
}

// IsMissing implements weft.Node.
func (n nodeRef) IsMissing() bool {
	e := &n.c.nodes[n.idx]

	return e.kind == kindLeaf && e.leaf.Kind() == weft.KindString && e.leaf.Str() == weft.MissingMarker
}

// Value implements weft.Node. Container nodes yield dicts and lists of
// child node references.
func (n nodeRef) Value() weft.Value {
	e := &n.c.nodes[n.idx]

	switch e.kind {
	case kindMap:
		d := weft.NewDict()

		for _, child := range e.children {
			_ = d.Set(weft.StringValue(n.c.nodes[child].key), weft.NodeValue(nodeRef{c: n.c, idx: child}))
		}

		return weft.DictValue(d)
	case kindList:
		items := make([]weft.Value, len(e.children))
		for i, child := range e.children {
			items[i] = weft.NodeValue(nodeRef{c: n.c, idx: child})
		}

		return weft.ListValue(items...)
	default:
		return e.leaf
	}
}
