package log

import (
	"fmt"

	"go.uber.org/zap"
)

// toFields turns a loose key/value list into zap fields. zap.Field and
// error arguments stand alone; everything else is read as a key followed by
// its value and typed by zap.Any. A dangling value is kept under "arg#N",
// a pair with a non-string key under "invalid_key_N".
func toFields(args ...any) []zap.Field {
	if len(args) == 0 {
		return nil
	}

	fields := make([]zap.Field, 0, len(args)/2+1)
	for i := 0; i < len(args); i++ {
		switch arg := args[i].(type) {
		case zap.Field:
			fields = append(fields, arg)
		case error:
			fields = append(fields, zap.Error(arg))
		default:
			if i == len(args)-1 {
				fields = append(fields, zap.Any(fmt.Sprintf("arg#%d", i), arg))
				continue
			}
			i++
			fields = append(fields, pair(arg, args[i], (i+1)/2))
		}
	}
	return fields
}

func pair(key, val any, n int) zap.Field {
	name, ok := key.(string)
	if !ok {
		return zap.Any(fmt.Sprintf("invalid_key_%d", n), map[string]any{
			"key":   key,
			"value": val,
		})
	}
	return zap.Any(name, val)
}
