package notifications

import (
	"regexp"
	"strings"
)

// Var is one template variable. Order matters: WhatsApp provider templates take
// positional parameters in insertion order.
type Var struct {
	Key   string
	Value string
}

type Variables []Var

// Vars builds Variables from key, value pairs. A trailing key without value is dropped.
func Vars(kv ...string) Variables {
	out := make(Variables, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = out.Set(kv[i], kv[i+1])
	}
	return out
}

// Set replaces the value of an existing key in place or appends a new one.
func (v Variables) Set(key, value string) Variables {
	for i := range v {
		if v[i].Key == key {
			v[i].Value = value
			return v
		}
	}
	return append(v, Var{Key: key, Value: value})
}

func (v Variables) Lookup(key string) (string, bool) {
	for _, kv := range v {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

func (v Variables) Values() []string {
	out := make([]string, 0, len(v))
	for _, kv := range v {
		out = append(out, kv.Value)
	}
	return out
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([^{}\s]+)\s*\}\}`)

// Render заменяет {{key}} (пробелы внутри скобок допустимы).
// Неизвестные плейсхолдеры остаются как есть; подставленные значения повторно не разбираются.
func Render(tpl string, vars Variables) string {
	if len(vars) == 0 || !strings.Contains(tpl, "{{") {
		return tpl
	}
	return placeholderRe.ReplaceAllStringFunc(tpl, func(token string) string {
		key := placeholderRe.FindStringSubmatch(token)[1]
		if val, ok := vars.Lookup(key); ok {
			return val
		}
		return token
	})
}
