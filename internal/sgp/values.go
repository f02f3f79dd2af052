package sgp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// String renders a decoded JSON scalar as text. Null and containers are "".
func String(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case map[string]any, []any:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
