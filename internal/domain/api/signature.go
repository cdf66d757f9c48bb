package api

import (
	"reflect"
	"regexp"
	"strings"
)

// Signature is the declared shape of a method. It never carries callables,
// so it can cross into hosted code and out over the wire.
type Signature struct {
	Access      string      `json:"access,omitempty"`
	Arguments   []string    `json:"arguments"`
	Parameters  interface{} `json:"parameters,omitempty"`
	Returns     interface{} `json:"returns,omitempty"`
	Description string      `json:"description,omitempty"`
}

var (
	arrowParam = regexp.MustCompile(`^(?:async\s+)?([A-Za-z_$][\w$]*)\s*=>`)
	identifier = regexp.MustCompile(`^[A-Za-z_$][\w$]*`)
)

// Arguments extracts parameter names from function source. Destructured
// object parameters contribute their property names.
func Arguments(src string) []string {
	src = strings.TrimSpace(src)
	if m := arrowParam.FindStringSubmatch(src); m != nil {
		return []string{m[1]}
	}

	open := strings.IndexByte(src, '(')
	if open < 0 {
		return []string{}
	}
	depth, end := 0, -1
	for i := open; i < len(src) && end < 0; i++ {
		switch src[i] {
		case '(', '{', '[':
			depth++
		case ')', '}', ']':
			depth--
			if depth == 0 {
				end = i
			}
		}
	}
	if end < 0 {
		return []string{}
	}

	list := strings.NewReplacer("{", ",", "}", ",", "[", ",", "]", ",").Replace(src[open+1 : end])
	args := []string{}
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		part = strings.TrimPrefix(part, "...")
		if i := strings.IndexAny(part, "=:"); i >= 0 {
			part = strings.TrimSpace(part[:i])
		}
		if name := identifier.FindString(part); name != "" {
			args = append(args, name)
		}
	}
	return args
}

// plain drops callables from exported values
func plain(v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, item := range x {
			if p := plain(item); p != nil {
				out[k] = p
			}
		}
		return out
	case []interface{}:
		out := make([]interface{}, 0, len(x))
		for _, item := range x {
			out = append(out, plain(item))
		}
		return out
	}
	if reflect.TypeOf(v).Kind() == reflect.Func {
		return nil
	}
	return v
}
