package plugin

import (
	"fmt"
	"strings"

	"github.com/zsiec/framegraph/propmap"
)

// ArgSpec is one parsed argument from a Function's signature string.
type ArgSpec struct {
	Name       string
	Kind       propmap.Kind
	Array      bool
	Optional   bool
	AllowEmpty bool
}

var typeNames = map[string]propmap.Kind{
	"int":    propmap.KindInt,
	"float":  propmap.KindFloat,
	"data":   propmap.KindData,
	"vnode":  propmap.KindVideoNode,
	"anode":  propmap.KindAudioNode,
	"vframe": propmap.KindVideoFrame,
	"aframe": propmap.KindAudioFrame,
	"func":   propmap.KindFunc,
}

// ParseSignature parses a signature string of the form
// "name:type[:opt];..." where type is one of int, float, data, vnode,
// anode, vframe, aframe, func, optionally suffixed "[]" for an array
// argument, followed by an optional ":opt" (argument may be absent) and
// ":empty" (an array argument may be present with zero elements). An
// empty signature string is valid and describes a function that takes
// no arguments.
func ParseSignature(sig string) ([]ArgSpec, error) {
	sig = strings.TrimSpace(sig)
	if sig == "" {
		return nil, nil
	}
	items := strings.Split(sig, ";")
	specs := make([]ArgSpec, 0, len(items))
	seen := make(map[string]bool)
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) < 2 {
			return nil, fmt.Errorf("plugin: malformed signature item %q", item)
		}
		name := parts[0]
		if !propmap.ValidKey(name) {
			return nil, fmt.Errorf("plugin: invalid argument name %q", name)
		}
		if seen[name] {
			return nil, fmt.Errorf("plugin: duplicate argument name %q", name)
		}
		seen[name] = true

		typeTok := parts[1]
		array := strings.HasSuffix(typeTok, "[]")
		typeTok = strings.TrimSuffix(typeTok, "[]")
		kind, ok := typeNames[typeTok]
		if !ok {
			return nil, fmt.Errorf("plugin: unknown argument type %q", typeTok)
		}

		spec := ArgSpec{Name: name, Kind: kind, Array: array}
		for _, mod := range parts[2:] {
			switch mod {
			case "opt":
				spec.Optional = true
			case "empty":
				spec.AllowEmpty = true
			default:
				return nil, fmt.Errorf("plugin: unknown signature modifier %q", mod)
			}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Validate checks args against specs: every non-optional argument must
// be present, every present argument's stored type must match its
// spec, non-array arguments must carry exactly one element, and every
// key in args must be named by some spec.
func Validate(args *propmap.Map, specs []ArgSpec) error {
	if args.HasError() {
		return fmt.Errorf("plugin: argument map has an error set")
	}
	byName := make(map[string]ArgSpec, len(specs))
	for _, s := range specs {
		byName[s.Name] = s
	}
	for i := 0; i < args.Len(); i++ {
		key, err := args.KeyAt(i)
		if err != nil {
			return fmt.Errorf("plugin: %w", err)
		}
		if _, ok := byName[key]; !ok {
			return fmt.Errorf("plugin: unexpected argument %q", key)
		}
	}
	for _, s := range specs {
		n := args.NumElements(s.Name)
		if n < 0 {
			if s.Optional {
				continue
			}
			return fmt.Errorf("plugin: missing required argument %q", s.Name)
		}
		if n == 0 && !s.AllowEmpty {
			return fmt.Errorf("plugin: argument %q may not be empty", s.Name)
		}
		if n > 1 && !s.Array {
			return fmt.Errorf("plugin: argument %q is not an array", s.Name)
		}
		if got := args.KindOf(s.Name); got != s.Kind {
			return fmt.Errorf("plugin: argument %q has type %s, want %s", s.Name, got, s.Kind)
		}
	}
	return nil
}
