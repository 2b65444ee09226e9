package chrome

import (
	"github.com/bytedance/sonic"
	"github.com/chromedp/cdproto/runtime"
)

// consoleArgs converts the arguments of a console call into printable
// values: strings and numbers as their value, objects by description.
func consoleArgs(args []*runtime.RemoteObject) []any {
	out := make([]any, 0, len(args))
	for _, arg := range args {
		out = append(out, remoteValue(arg))
	}
	return out
}

func remoteValue(o *runtime.RemoteObject) any {
	if o == nil {
		return nil
	}
	if o.UnserializableValue != "" {
		return o.UnserializableValue.String()
	}
	if len(o.Value) > 0 {
		var v any
		if err := sonic.Unmarshal(o.Value, &v); err == nil {
			if s, ok := v.(string); ok {
				return s
			}
			if v == nil {
				return nil
			}
		}
		return string(o.Value)
	}
	if o.Description != "" {
		return o.Description
	}
	return o.Type.String()
}
