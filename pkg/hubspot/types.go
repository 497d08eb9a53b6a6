package hubspot

import (
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/kpi-report-cli/internal/quarter"
)

// rawObject is the generic CRM v3 object shape: an id plus a flat string
// property map.
type rawObject struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

// listResponse is the generic CRM v3 paginated listing envelope.
type listResponse struct {
	Results []rawObject `json:"results"`
	Paging  *pagingInfo `json:"paging,omitempty"`
}

type pagingInfo struct {
	Next struct {
		After string `json:"after"`
	} `json:"next"`
}

func (l listResponse) nextAfter() string {
	if l.Paging == nil {
		return ""
	}
	return l.Paging.Next.After
}

func (r rawObject) prop(name string) string {
	return r.Properties[name]
}

// propFloat parses a currency/number property, defaulting to 0 when absent
// or unparseable.
func (r rawObject) propFloat(name string) float64 {
	s := strings.TrimSpace(r.prop(name))
	if s == "" {
		return 0
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// propInt parses an integer property, defaulting to 0.
func (r rawObject) propInt(name string) int {
	return int(r.propFloat(name))
}

// propTime parses a timestamp property (epoch millis or date string),
// returning the zero time when absent or unparseable.
func (r rawObject) propTime(name string) time.Time {
	t, ok := quarter.ParseTime(r.prop(name))
	if !ok {
		return time.Time{}
	}
	return t
}
