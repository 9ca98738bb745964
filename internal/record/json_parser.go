package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// wireValueList is the JSON layout emitted by collectd's write_kafka and write_http plugins.
type wireValueList struct {
	Values         []json.RawMessage      `json:"values"`
	DSTypes        []string               `json:"dstypes"`
	DSNames        []string               `json:"dsnames"`
	Time           float64                `json:"time"`
	Interval       float64                `json:"interval"`
	Host           string                 `json:"host"`
	Plugin         string                 `json:"plugin"`
	PluginInstance string                 `json:"plugin_instance"`
	Type           string                 `json:"type"`
	TypeInstance   string                 `json:"type_instance"`
	Meta           map[string]interface{} `json:"meta,omitempty"`
}

var jsonNull = []byte("null")

// ParseValueLists parses a collectd JSON payload into value lists.
// Both a JSON array of value lists and a single value list object are accepted.
// It returns ErrJSONUnmarshalFailed (wrapping the original error) if unmarshalling fails.
func ParseValueLists(data []byte) ([]*ValueList, error) {
	trimmed := bytes.TrimSpace(data)

	var wire []wireValueList
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var single wireValueList
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrJSONUnmarshalFailed, err)
		}
		wire = append(wire, single)
	} else if err := json.Unmarshal(trimmed, &wire); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJSONUnmarshalFailed, err)
	}

	lists := make([]*ValueList, 0, len(wire))
	for i := range wire {
		vl, err := fromWire(&wire[i])
		if err != nil {
			return nil, fmt.Errorf("value list %d: %w", i, err)
		}
		lists = append(lists, vl)
	}
	return lists, nil
}

// EncodeValueLists renders value lists back into the collectd JSON array layout.
func EncodeValueLists(lists []*ValueList) ([]byte, error) {
	wire := make([]wireValueList, 0, len(lists))
	for _, vl := range lists {
		w, err := toWire(vl)
		if err != nil {
			return nil, err
		}
		wire = append(wire, w)
	}
	return json.Marshal(wire)
}

func fromWire(w *wireValueList) (*ValueList, error) {
	if len(w.Values) != len(w.DSTypes) || len(w.Values) != len(w.DSNames) {
		return nil, fmt.Errorf("%w: %d values, %d dstypes, %d dsnames",
			ErrLengthMismatch, len(w.Values), len(w.DSTypes), len(w.DSNames))
	}

	vl := &ValueList{
		Host:           w.Host,
		Plugin:         w.Plugin,
		PluginInstance: w.PluginInstance,
		Type:           w.Type,
		TypeInstance:   w.TypeInstance,
		Time:           secondsToTime(w.Time),
		Interval:       secondsToDuration(w.Interval),
		Values:         make([]Value, len(w.Values)),
		Meta:           w.Meta,
	}

	for i, raw := range w.Values {
		kind, err := ParseKind(w.DSTypes[i])
		if err != nil {
			return nil, err
		}
		v, err := parseValue(w.DSNames[i], kind, raw)
		if err != nil {
			return nil, err
		}
		vl.Values[i] = v
	}
	return vl, nil
}

func parseValue(name string, kind Kind, raw json.RawMessage) (Value, error) {
	v := Value{Name: name, Kind: kind}
	text := string(bytes.TrimSpace(raw))

	var err error
	switch kind {
	case KindGauge:
		if text == "null" {
			v.Gauge = math.NaN()
			return v, nil
		}
		v.Gauge, err = strconv.ParseFloat(text, 64)
	case KindCounter:
		v.Counter, err = strconv.ParseUint(text, 10, 64)
	case KindDerive:
		v.Derive, err = strconv.ParseInt(text, 10, 64)
	case KindAbsolute:
		v.Absolute, err = strconv.ParseUint(text, 10, 64)
	}
	if err != nil {
		return Value{}, fmt.Errorf("%w: %s %q = %s", ErrInvalidValue, kind, name, text)
	}
	return v, nil
}

func toWire(vl *ValueList) (wireValueList, error) {
	w := wireValueList{
		Values:         make([]json.RawMessage, len(vl.Values)),
		DSTypes:        make([]string, len(vl.Values)),
		DSNames:        make([]string, len(vl.Values)),
		Time:           timeToSeconds(vl.Time),
		Interval:       vl.Interval.Seconds(),
		Host:           vl.Host,
		Plugin:         vl.Plugin,
		PluginInstance: vl.PluginInstance,
		Type:           vl.Type,
		TypeInstance:   vl.TypeInstance,
		Meta:           vl.Meta,
	}

	for i, v := range vl.Values {
		w.DSNames[i] = v.Name
		w.DSTypes[i] = v.Kind.String()
		switch v.Kind {
		case KindGauge:
			// JSON has no NaN or Inf; collectd writes those as null.
			if math.IsNaN(v.Gauge) || math.IsInf(v.Gauge, 0) {
				w.Values[i] = jsonNull
			} else {
				w.Values[i] = json.RawMessage(strconv.FormatFloat(v.Gauge, 'g', -1, 64))
			}
		case KindCounter:
			w.Values[i] = json.RawMessage(strconv.FormatUint(v.Counter, 10))
		case KindDerive:
			w.Values[i] = json.RawMessage(strconv.FormatInt(v.Derive, 10))
		case KindAbsolute:
			w.Values[i] = json.RawMessage(strconv.FormatUint(v.Absolute, 10))
		default:
			return wireValueList{}, fmt.Errorf("%w: %s", ErrUnknownKind, v.Kind)
		}
	}
	return w, nil
}

func secondsToTime(sec float64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(math.Round(frac*1e6))*int64(time.Microsecond)).UTC()
}

func timeToSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixMicro()) / 1e6
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(math.Round(sec * float64(time.Second)))
}
