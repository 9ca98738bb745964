package record

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the data source type of a single value inside a value list.
type Kind int

const (
	KindGauge Kind = iota
	KindCounter
	KindDerive
	KindAbsolute
)

// String returns the collectd name of the kind ("gauge", "counter", ...).
func (k Kind) String() string {
	switch k {
	case KindGauge:
		return "gauge"
	case KindCounter:
		return "counter"
	case KindDerive:
		return "derive"
	case KindAbsolute:
		return "absolute"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps a dstype string to a Kind. Matching is case-insensitive.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "gauge":
		return KindGauge, nil
	case "counter":
		return KindCounter, nil
	case "derive":
		return KindDerive, nil
	case "absolute":
		return KindAbsolute, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Value is one named channel of a value list. Only the field matching Kind is meaningful.
type Value struct {
	Name     string
	Kind     Kind
	Gauge    float64
	Counter  uint64
	Derive   int64
	Absolute uint64
}

// GaugeValue is a shorthand for a gauge channel.
func GaugeValue(name string, v float64) Value {
	return Value{Name: name, Kind: KindGauge, Gauge: v}
}

// ValueList is a multi-value measurement record: an ordered set of channels sharing
// one timestamp, plus the identifier of the series it belongs to.
type ValueList struct {
	Host           string
	Plugin         string
	PluginInstance string
	Type           string
	TypeInstance   string
	Time           time.Time
	Interval       time.Duration
	Values         []Value
	Meta           map[string]interface{}
}

// Identifier returns the series identifier in collectd notation:
// host/plugin[-plugin_instance]/type[-type_instance].
func (vl *ValueList) Identifier() string {
	var b strings.Builder
	b.WriteString(vl.Host)
	b.WriteByte('/')
	b.WriteString(vl.Plugin)
	if vl.PluginInstance != "" {
		b.WriteByte('-')
		b.WriteString(vl.PluginInstance)
	}
	b.WriteByte('/')
	b.WriteString(vl.Type)
	if vl.TypeInstance != "" {
		b.WriteByte('-')
		b.WriteString(vl.TypeInstance)
	}
	return b.String()
}

// Names returns the channel names in record order.
func (vl *ValueList) Names() []string {
	names := make([]string, len(vl.Values))
	for i, v := range vl.Values {
		names[i] = v.Name
	}
	return names
}
