package anchor

import (
	"encoding/json"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/woozymasta/parcelmap/internal/geo"
)

// Line is one "name: value" entry of the popup.
type Line struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Content is the rendered property list of a feature, in property order.
type Content struct {
	Lines []Line `json:"lines"`
}

// Render formats each property as a line, keeping the order of props.
func Render(props geo.Properties) Content {
	lines := make([]Line, 0, len(props))
	for _, p := range props {
		lines = append(lines, Line{Name: p.Name, Value: FormatValue(p.Value)})
	}

	return Content{Lines: lines}
}

// HTML renders the lines as "<strong>name</strong>: value" joined with <br>
// inside a single div. Names and values are escaped.
func (c Content) HTML() string {
	var b strings.Builder
	b.WriteString("<div>")
	for i, l := range c.Lines {
		if i > 0 {
			b.WriteString("<br>")
		}
		b.WriteString("<strong>")
		b.WriteString(html.EscapeString(l.Name))
		b.WriteString("</strong>: ")
		b.WriteString(html.EscapeString(l.Value))
	}
	b.WriteString("</div>")

	return b.String()
}

// Text renders the lines as "name: value" joined with newlines.
func (c Content) Text() string {
	parts := make([]string, len(c.Lines))
	for i, l := range c.Lines {
		parts[i] = l.Name + ": " + l.Value
	}

	return strings.Join(parts, "\n")
}

// FormatValue renders a property value the way the browser prints it.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}
