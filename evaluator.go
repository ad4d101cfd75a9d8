package weft

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Evaluate walks a parsed configuration string and produces its value.
// A toplevel consisting of exactly one interpolation returns the
// referenced value unmodified, possibly a node reference; any
// concatenation with surrounding text yields a string.
//
// The container and registry are borrowed for the duration of the call.
// Either may be nil, in which case node references or resolver calls
// fail respectively.
func Evaluate(ast *ConfigValue, container ContainerView, resolvers *ResolverRegistry, ctx ResolveContext) (Value, error) {
	st := newEvalState(container, resolvers, ctx)

	return st.toplevel(ast.Toplevel)
}

// EvaluateElement evaluates a parsed single element (the oc.decode rule)
// and returns its fully materialized value.
func EvaluateElement(ast *SingleElement, container ContainerView, resolvers *ResolverRegistry, ctx ResolveContext) (Value, error) {
	st := newEvalState(container, resolvers, ctx)

	v, err := st.element(ast.Element)
	if err != nil {
		return Value{}, err
	}

	return st.materialize(v)
}

// Materialize unwraps node references in v into plain values, resolving
// any interpolated strings found in the referenced subtree. Use it when
// a caller needs the concrete data behind a value returned by Evaluate.
func Materialize(v Value, container ContainerView, resolvers *ResolverRegistry, ctx ResolveContext) (Value, error) {
	return newEvalState(container, resolvers, ctx).materialize(v)
}

// frame identifies a node currently being resolved, for cycle detection.
type frame struct {
	container uint64
	path      string
}

type evalState struct {
	container ContainerView
	resolvers *ResolverRegistry
	ctx       ResolveContext
	active    map[frame]struct{}
}

func newEvalState(container ContainerView, resolvers *ResolverRegistry, ctx ResolveContext) *evalState {
	return &evalState{
		container: container,
		resolvers: resolvers,
		ctx:       ctx,
		active:    make(map[frame]struct{}),
	}
}

// sub returns a state for resolving the referenced node's own value,
// sharing the active frame set.
func (s *evalState) sub(n Node) *evalState {
	return &evalState{
		container: s.container,
		resolvers: s.resolvers,
		ctx: ResolveContext{
			Key:                     n.Key(),
			Parent:                  n.Parent(),
			FailOnMissing:           s.ctx.FailOnMissing,
			FailOnResolutionFailure: s.ctx.FailOnResolutionFailure,
		},
		active: s.active,
	}
}

// =============================================================================
// Toplevel
// =============================================================================

func (s *evalState) toplevel(t *Toplevel) (Value, error) {
	if len(t.Items) == 1 && t.Items[0].Inter != nil {
		// Single interpolation: pass the result through as is.
		return s.interpolation(t.Items[0].Inter)
	}

	var b strings.Builder

	for _, item := range t.Items {
		if item.Str != nil {
			b.WriteString(toplevelText(item.Str))

			continue
		}

		v, err := s.interpolation(item.Inter)
		if err != nil {
			return Value{}, err
		}

		str, err := s.stringify(v)
		if err != nil {
			return Value{}, err
		}

		b.WriteString(str)
	}

	return StringValue(b.String()), nil
}

// toplevelText concatenates the fragments of a literal run, reducing
// escapes exactly once: \${ yields ${ and \\ yields \.
func toplevelText(t *ToplevelStr) string {
	var b strings.Builder

	for _, frag := range t.Fragments {
		switch {
		case frag.Esc != nil:
			b.WriteString(reduceEscapes(*frag.Esc))
		case frag.EscInter != nil:
			b.WriteString((*frag.EscInter)[1:])
		case frag.Text != nil:
			b.WriteString(*frag.Text)
		}
	}

	return b.String()
}

// reduceEscapes halves a run of backslash escapes, keeping the escaped
// characters.
func reduceEscapes(s string) string {
	var b strings.Builder

	for i := 1; i < len(s); i += 2 {
		b.WriteByte(s[i])
	}

	return b.String()
}

// =============================================================================
// Interpolations
// =============================================================================

func (s *evalState) interpolation(i *Interpolation) (Value, error) {
	if i.Resolver != nil {
		return s.interpolationResolver(i.Resolver)
	}

	return s.interpolationNode(i.Node)
}

func (s *evalState) interpolationNode(n *InterpolationNode) (Value, error) {
	var b strings.Builder

	for _, d := range n.Dots {
		b.WriteString(d)
	}

	seg, err := s.configKey(n.First)
	if err != nil {
		return Value{}, err
	}

	b.WriteString(seg)

	for _, tail := range n.Rest {
		b.WriteString(tail.Dot)

		seg, err := s.configKey(tail.Key)
		if err != nil {
			return Value{}, err
		}

		b.WriteString(seg)
	}

	return s.lookupNode(b.String())
}

// configKey evaluates one path segment. An interpolation segment must
// produce a string.
func (s *evalState) configKey(k *ConfigKey) (string, error) {
	if k.ID != nil {
		return *k.ID, nil
	}

	v, err := s.interpolation(k.Inter)
	if err != nil {
		return "", err
	}

	mv, err := s.materialize(v)
	if err != nil {
		return "", err
	}

	if mv.Kind() != KindString {
		return "", &TypeError{
			Msg:  fmt.Sprintf("a config key must be a string, got %s", mv.Kind()),
			Expr: k.Text(),
		}
	}

	return mv.Str(), nil
}

func (s *evalState) interpolationResolver(r *InterpolationResolver) (Value, error) {
	name, err := s.resolverName(r.Name)
	if err != nil {
		return Value{}, err
	}

	var (
		args []Value
		raw  []string
	)

	if r.Args != nil {
		for _, el := range r.Args.Elements {
			v, err := s.element(el)
			if err != nil {
				return Value{}, err
			}

			mv, err := s.materialize(v)
			if err != nil {
				return Value{}, err
			}

			args = append(args, mv)
			raw = append(raw, el.Text())
		}
	}

	if s.resolvers == nil {
		return s.resolutionFailure(&UnsupportedResolverError{Name: name})
	}

	v, err := s.resolvers.dispatch(ResolverCall{
		Name:      name,
		Args:      args,
		Raw:       raw,
		Container: s.container,
		Resolvers: s.resolvers,
		Ctx:       s.ctx,
	})
	if err != nil {
		var unsupported *UnsupportedResolverError
		if errors.As(err, &unsupported) {
			return s.resolutionFailure(err)
		}

		// Resolver failures bubble as is.
		return Value{}, err
	}

	return v, nil
}

// resolverName joins the dotted name, resolving nested interpolations;
// each part must produce a string.
func (s *evalState) resolverName(n *ResolverName) (string, error) {
	var parts []string

	for _, part := range n.Parts {
		if part.ID != nil {
			parts = append(parts, *part.ID)

			continue
		}

		v, err := s.interpolation(part.Inter)
		if err != nil {
			return "", err
		}

		mv, err := s.materialize(v)
		if err != nil {
			return "", err
		}

		if mv.Kind() != KindString {
			return "", &TypeError{
				Msg:  fmt.Sprintf("a resolver name must be a string, got %s", mv.Kind()),
				Expr: part.Text(),
			}
		}

		parts = append(parts, mv.Str())
	}

	return strings.Join(parts, "."), nil
}

// =============================================================================
// Node lookup
// =============================================================================

func (s *evalState) lookupNode(path string) (Value, error) {
	if s.container == nil {
		return s.resolutionFailure(&ConfigKeyError{Key: path, Msg: fmt.Sprintf("cannot resolve %q without a container", path)})
	}

	node, err := s.container.Select(path, s.ctx.Parent)
	if err != nil {
		return s.resolutionFailure(err)
	}

	if node.IsMissing() {
		if s.ctx.FailOnMissing {
			return Value{}, &MissingValueError{Path: node.Path()}
		}

		return NodeValue(node), nil
	}

	if raw := node.Value(); raw.Kind() == KindString && ContainsInterpolation(raw.Str()) {
		return s.resolveNodeString(node, raw.Str())
	}

	return NodeValue(node), nil
}

// resolveNodeString evaluates the interpolated string held by a node,
// guarding against cycles.
func (s *evalState) resolveNodeString(n Node, raw string) (Value, error) {
	fr := frame{path: n.Path()}
	if s.container != nil {
		fr.container = s.container.ID()
	}

	if _, busy := s.active[fr]; busy {
		return Value{}, &CycleError{Path: n.Path()}
	}

	s.active[fr] = struct{}{}
	defer delete(s.active, fr)

	ast, err := Parse(raw)
	if err != nil {
		return Value{}, err
	}

	return s.sub(n).toplevel(ast.Toplevel)
}

// resolutionFailure applies the failure policy: error, or the invalid
// sentinel value.
func (s *evalState) resolutionFailure(err error) (Value, error) {
	if s.ctx.FailOnResolutionFailure {
		return Value{}, err
	}

	return Value{}, nil
}

// =============================================================================
// Elements
// =============================================================================

func (s *evalState) element(el *Element) (Value, error) {
	switch {
	case el.List != nil:
		return s.listLiteral(el.List)
	case el.Dict != nil:
		return s.dictLiteral(el.Dict)
	default:
		return s.primitive(el.Prim)
	}
}

func (s *evalState) listLiteral(l *ListLiteral) (Value, error) {
	if l.Seq == nil {
		return ListValue(), nil
	}

	items := make([]Value, 0, len(l.Seq.Elements))

	for _, el := range l.Seq.Elements {
		v, err := s.element(el)
		if err != nil {
			return Value{}, err
		}

		mv, err := s.materialize(v)
		if err != nil {
			return Value{}, err
		}

		items = append(items, mv)
	}

	return ListValue(items...), nil
}

func (s *evalState) dictLiteral(d *DictLiteral) (Value, error) {
	dict := NewDict()

	for _, kv := range d.Pairs {
		key, err := s.dictKey(kv)
		if err != nil {
			return Value{}, err
		}

		v, err := s.element(kv.Value)
		if err != nil {
			return Value{}, err
		}

		mv, err := s.materialize(v)
		if err != nil {
			return Value{}, err
		}

		if err := dict.Set(key, mv); err != nil {
			return Value{}, err
		}
	}

	return DictValue(dict), nil
}

func (s *evalState) dictKey(kv *DictKV) (Value, error) {
	if kv.KeyID != nil {
		return StringValue(*kv.KeyID), nil
	}

	v, err := s.interpolation(kv.KeyInter)
	if err != nil {
		return Value{}, err
	}

	mv, err := s.materialize(v)
	if err != nil {
		return Value{}, err
	}

	switch mv.Kind() {
	case KindNull, KindBool, KindInt, KindString:
		return mv, nil
	case KindFloat:
		// NaN keys would break key equality, since NaN != NaN.
		if math.IsNaN(mv.Float()) {
			return Value{}, &TypeError{Msg: "cannot use NaN as dictionary key", Expr: kv.Text()}
		}

		return mv, nil
	default:
		return Value{}, &TypeError{
			Msg:  fmt.Sprintf("a dictionary key must be a hashable primitive, got %s", mv.Kind()),
			Expr: kv.Text(),
		}
	}
}

// =============================================================================
// Primitives
// =============================================================================

func (s *evalState) primitive(p *Primitive) (Value, error) {
	items := trimWs(p.Items)

	if len(items) == 0 {
		return StringValue(""), nil
	}

	if len(items) == 1 {
		return s.primitiveItem(items[0])
	}

	// Concatenation of multiple items: un-escape and join as a string.
	// Quoted lexemes contribute their raw text, delimiters included.
	var b strings.Builder

	for _, item := range items {
		switch {
		case item.Esc != nil:
			b.WriteString(reduceEscapes(*item.Esc))
		case item.Inter != nil:
			v, err := s.interpolation(item.Inter)
			if err != nil {
				return Value{}, err
			}

			str, err := s.stringify(v)
			if err != nil {
				return Value{}, err
			}

			b.WriteString(str)
		default:
			b.WriteString(item.Text())
		}
	}

	return StringValue(b.String()), nil
}

// trimWs drops whitespace items at either edge of a primitive; interior
// whitespace is part of the value.
func trimWs(items []*PrimitiveItem) []*PrimitiveItem {
	start, end := 0, len(items)

	for start < end && items[start].IsWs() {
		start++
	}

	for end > start && items[end-1].IsWs() {
		end--
	}

	return items[start:end]
}

func (s *evalState) primitiveItem(item *PrimitiveItem) (Value, error) {
	switch {
	case item.Quoted != nil:
		return s.quotedString(*item.Quoted)
	case item.ID != nil:
		return StringValue(*item.ID), nil
	case item.Char != nil:
		return StringValue(*item.Char), nil
	case item.Colon != nil:
		return StringValue(*item.Colon), nil
	case item.Dot != nil:
		return StringValue(*item.Dot), nil
	case item.Null != nil:
		return NullValue(), nil
	case item.Bool != nil:
		return BoolValue(strings.EqualFold(*item.Bool, "true")), nil
	case item.Int != nil:
		i, err := strconv.ParseInt(strings.ReplaceAll(*item.Int, "_", ""), 10, 64)
		if err != nil {
			return Value{}, &SyntaxError{Msg: fmt.Sprintf("invalid integer %q", *item.Int), Pos: item.Pos}
		}

		return IntValue(i), nil
	case item.Float != nil:
		f, err := strconv.ParseFloat(strings.ReplaceAll(*item.Float, "_", ""), 64)
		if err != nil {
			return Value{}, &SyntaxError{Msg: fmt.Sprintf("invalid float %q", *item.Float), Pos: item.Pos}
		}

		return FloatValue(f), nil
	case item.Esc != nil:
		return StringValue(reduceEscapes(*item.Esc)), nil
	case item.Ws != nil:
		return StringValue(""), nil
	default:
		return s.interpolation(item.Inter)
	}
}

// quotedString un-escapes a quoted lexeme and re-parses its content as a
// plain toplevel string, so that '${foo}' is still an interpolation. The
// result is cast to string.
func (s *evalState) quotedString(tok string) (Value, error) {
	quote := tok[0]
	inner := tok[1 : len(tok)-1]

	// Two passes, quotes before backslashes, so that \\" stays an
	// escaped quote rather than collapsing twice.
	inner = strings.ReplaceAll(inner, `\`+string(quote), string(quote))
	inner = strings.ReplaceAll(inner, `\\`, `\`)

	if inner == "" || !ContainsInterpolation(inner) {
		return StringValue(inner), nil
	}

	ast, err := Parse(inner)
	if err != nil {
		return Value{}, err
	}

	v, err := s.toplevel(ast.Toplevel)
	if err != nil {
		return Value{}, err
	}

	str, err := s.stringify(v)
	if err != nil {
		return Value{}, err
	}

	return StringValue(str), nil
}

// =============================================================================
// Materialization
// =============================================================================

// materialize unwraps node references into plain values, resolving any
// interpolated strings found in the referenced subtree.
func (s *evalState) materialize(v Value) (Value, error) {
	switch v.Kind() {
	case KindNode:
		return s.materializeNode(v.Node())
	case KindList:
		items := make([]Value, len(v.List()))

		for i, item := range v.List() {
			mv, err := s.materialize(item)
			if err != nil {
				return Value{}, err
			}

			items[i] = mv
		}

		return ListValue(items...), nil
	case KindDict:
		d := NewDict()

		for _, k := range v.Dict().Keys() {
			val, _ := v.Dict().Get(k)

			mv, err := s.materialize(val)
			if err != nil {
				return Value{}, err
			}

			if err := d.Set(k, mv); err != nil {
				return Value{}, err
			}
		}

		return DictValue(d), nil
	default:
		return v, nil
	}
}

func (s *evalState) materializeNode(n Node) (Value, error) {
	if n.IsMissing() {
		if s.ctx.FailOnMissing {
			return Value{}, &MissingValueError{Path: n.Path()}
		}

		return StringValue(MissingMarker), nil
	}

	raw := n.Value()

	if raw.Kind() == KindString && ContainsInterpolation(raw.Str()) {
		v, err := s.resolveNodeString(n, raw.Str())
		if err != nil {
			return Value{}, err
		}

		return s.materialize(v)
	}

	return s.materialize(raw)
}

// stringify materializes a value and renders it canonically.
func (s *evalState) stringify(v Value) (string, error) {
	mv, err := s.materialize(v)
	if err != nil {
		return "", err
	}

	return mv.String(), nil
}
