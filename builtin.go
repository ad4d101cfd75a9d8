package weft

import (
	"fmt"

	"github.com/expr-lang/expr"
)

// RegisterBuiltins registers the built-in resolvers against the given
// environment source:
//
//	env, oc.env          environment variables, optional default
//	env.legacy           like env, but decodes the value as a primitive (deprecated)
//	oc.decode            parse a raw value string as a typed element
//	oc.dict.keys         keys of a mapping (dotted path or dict literal)
//	oc.dict.values       values of a mapping
//	oc.eval              evaluate an expression over optional variables
//
// The env resolvers never cache: the environment may change between
// evaluations.
func RegisterBuiltins(reg *ResolverRegistry, env Env) error {
	builtins := []struct {
		name string
		fn   ResolverFunc
		opts []ResolverOption
	}{
		{"env", envResolver(env, false), []ResolverOption{WithoutCache()}},
		{"oc.env", envResolver(env, false), []ResolverOption{WithoutCache()}},
		{"env.legacy", envResolver(env, true), []ResolverOption{WithoutCache()}},
		{"oc.decode", decodeResolver, nil},
		{"oc.dict.keys", dictKeysResolver, nil},
		{"oc.dict.values", dictValuesResolver, nil},
		{"oc.eval", evalResolver, nil},
	}

	for _, b := range builtins {
		if err := reg.Register(b.name, b.fn, b.opts...); err != nil {
			return err
		}
	}

	return nil
}

// envResolver reads an environment variable, with an optional default
// used when the variable is unset. The raw string is returned verbatim;
// feed the result through oc.decode for typed parsing. The decode flag
// enables the old behavior of decoding the value in place.
func envResolver(env Env, decode bool) ResolverFunc {
	return func(call ResolverCall) (Value, error) {
		if len(call.Args) < 1 || len(call.Args) > 2 {
			return Value{}, &ValidationError{Msg: fmt.Sprintf("env expects 1 or 2 arguments, got %d", len(call.Args))}
		}

		key, err := primitiveString(call.Args[0], "env variable name")
		if err != nil {
			return Value{}, err
		}

		if raw, ok := env.Lookup(key); ok {
			if decode {
				return decodeString(raw, call)
			}

			return StringValue(raw), nil
		}

		if len(call.Args) == 2 {
			def := call.Args[1]

			switch def.Kind() {
			case KindNull:
				return NullValue(), nil
			case KindBool, KindInt, KindFloat, KindString:
				if decode {
					return decodeString(def.String(), call)
				}

				return StringValue(def.String()), nil
			default:
				return Value{}, &ValidationError{
					Msg: fmt.Sprintf("the default value of env must be a string or null, got %s", def.Kind()),
				}
			}
		}

		return Value{}, &ConfigKeyError{Key: key, Msg: fmt.Sprintf("environment variable '%s' not found", key)}
	}
}

// decodeResolver parses a raw value string as a single element and
// evaluates it. Null passes through.
func decodeResolver(call ResolverCall) (Value, error) {
	if len(call.Args) != 1 {
		return Value{}, &ValidationError{Msg: fmt.Sprintf("oc.decode expects 1 argument, got %d", len(call.Args))}
	}

	arg := call.Args[0]

	switch arg.Kind() {
	case KindNull:
		return NullValue(), nil
	case KindString:
		return decodeString(arg.Str(), call)
	default:
		return Value{}, &TypeError{
			Msg: fmt.Sprintf("oc.decode can only take strings or null as input, got %s", arg.Kind()),
		}
	}
}

func decodeString(raw string, call ResolverCall) (Value, error) {
	ast, err := ParseElement(raw)
	if err != nil {
		return Value{}, err
	}

	return EvaluateElement(ast, call.Container, call.Resolvers, call.Ctx)
}

// dictKeysResolver returns the keys of a mapping. The argument is either
// a dotted path selecting a mapping node, or a dict literal.
func dictKeysResolver(call ResolverCall) (Value, error) {
	d, err := mappingArg(call, "oc.dict.keys")
	if err != nil {
		return Value{}, err
	}

	return ListValue(d.Keys()...), nil
}

// dictValuesResolver returns the values of a mapping, in key order.
func dictValuesResolver(call ResolverCall) (Value, error) {
	d, err := mappingArg(call, "oc.dict.values")
	if err != nil {
		return Value{}, err
	}

	return ListValue(d.Values()...), nil
}

func mappingArg(call ResolverCall, name string) (*Dict, error) {
	if len(call.Args) != 1 {
		return nil, &ValidationError{Msg: fmt.Sprintf("%s expects 1 argument, got %d", name, len(call.Args))}
	}

	arg := call.Args[0]

	switch arg.Kind() {
	case KindDict:
		return arg.Dict(), nil
	case KindString:
		if call.Container == nil {
			return nil, &ConfigKeyError{Key: arg.Str(), Msg: fmt.Sprintf("%s: cannot select %q without a container", name, arg.Str())}
		}

		node, err := call.Container.Select(arg.Str(), call.Ctx.Parent)
		if err != nil {
			return nil, err
		}

		v := node.Value()
		if v.Kind() != KindDict {
			return nil, &TypeError{
				Msg: fmt.Sprintf("%s expects a mapping, but %q is a %s", name, arg.Str(), v.Kind()),
			}
		}

		return v.Dict(), nil
	default:
		return nil, &TypeError{
			Msg: fmt.Sprintf("%s expects a mapping or a dotted path, got %s", name, arg.Kind()),
		}
	}
}

// evalResolver evaluates an expression string, optionally over a dict of
// variables: ${oc.eval:'x + y', {x: 1, y: 2}} yields 3.
func evalResolver(call ResolverCall) (Value, error) {
	if len(call.Args) < 1 || len(call.Args) > 2 {
		return Value{}, &ValidationError{Msg: fmt.Sprintf("oc.eval expects 1 or 2 arguments, got %d", len(call.Args))}
	}

	src := call.Args[0]
	if src.Kind() != KindString {
		return Value{}, &TypeError{Msg: fmt.Sprintf("oc.eval expects an expression string, got %s", src.Kind())}
	}

	vars := map[string]any{}

	if len(call.Args) == 2 {
		d := call.Args[1]
		if d.Kind() != KindDict {
			return Value{}, &TypeError{Msg: fmt.Sprintf("oc.eval variables must be a dict, got %s", d.Kind())}
		}

		for _, k := range d.Dict().Keys() {
			if k.Kind() != KindString {
				return Value{}, &TypeError{Msg: fmt.Sprintf("oc.eval variable names must be strings, got %s", k.Kind())}
			}

			v, _ := d.Dict().Get(k)
			vars[k.Str()] = v.ToGo()
		}
	}

	out, err := expr.Eval(src.Str(), vars)
	if err != nil {
		return Value{}, fmt.Errorf("oc.eval: %w", err)
	}

	return FromGo(out), nil
}

// primitiveString renders a primitive argument as a string, rejecting
// containers.
func primitiveString(v Value, what string) (string, error) {
	switch v.Kind() {
	case KindBool, KindInt, KindFloat, KindString:
		return v.String(), nil
	default:
		return "", &ValidationError{Msg: fmt.Sprintf("%s must be a string, got %s", what, v.Kind())}
	}
}
