package source

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vvka-141/rgpipe/pkg/rgpipe"
)

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

// Sessions converts a decoded JSON/YAML document into session records for v.
func Sessions(doc any, v rgpipe.Variant) ([]rgpipe.SessionRecord, error) {
	list, ok := doc.([]any)
	if !ok {
		if doc == nil {
			return nil, nil
		}
		return nil, malformed("$", "expected a list of sessions, got %s", kind(doc))
	}

	sessions := make([]rgpipe.SessionRecord, 0, len(list))
	for i, item := range list {
		s, err := session(fmt.Sprintf("$[%d]", i), item, v)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func session(path string, item any, v rgpipe.Variant) (rgpipe.SessionRecord, error) {
	var s rgpipe.SessionRecord
	obj, err := object(path, item)
	if err != nil {
		return s, err
	}

	if s.SubjectName, err = obj.stringField("subject_name"); err != nil {
		return s, err
	}
	if s.SampleNumber, err = obj.intField("sample_number"); err != nil {
		return s, err
	}
	if s.SessionDate, err = obj.dateField("session_date"); err != nil {
		return s, err
	}

	stims, err := obj.listField("stimulations")
	if err != nil {
		return s, err
	}
	s.Stimulations = make([]rgpipe.StimulationRecord, 0, len(stims))
	for j, item := range stims {
		st, err := stimulation(fmt.Sprintf("%s.stimulations[%d]", path, j), item, v)
		if err != nil {
			return s, err
		}
		s.Stimulations = append(s.Stimulations, st)
	}
	return s, nil
}

func stimulation(path string, item any, v rgpipe.Variant) (rgpipe.StimulationRecord, error) {
	var st rgpipe.StimulationRecord
	obj, err := object(path, item)
	if err != nil {
		return st, err
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"fps", &st.FPS},
		{"pixel_size", &st.PixelSize},
		{"stimulus_onset", &st.StimulusOnset},
	}
	for _, f := range floats {
		if *f.dst, err = obj.floatField(f.key); err != nil {
			return st, err
		}
	}

	ints := []struct {
		key string
		dst *int64
	}{
		{"n_frames", &st.NFrames},
		{"stim_height", &st.StimHeight},
		{"stim_width", &st.StimWidth},
		{"x_block_size", &st.XBlockSize},
		{"y_block_size", &st.YBlockSize},
	}
	for _, f := range ints {
		if *f.dst, err = obj.intField(f.key); err != nil {
			return st, err
		}
	}

	movieValue, err := obj.get("movie")
	if err != nil {
		return st, err
	}
	if st.Movie, err = movie(path+".movie", movieValue); err != nil {
		return st, err
	}

	spikes, err := obj.listField("spikes")
	if err != nil {
		return st, err
	}
	switch v {
	case rgpipe.VariantFlat:
		st.Spikes, err = floatList(path+".spikes", spikes)
	case rgpipe.VariantGrouped:
		st.SpikeGroups, err = spikeGroups(path+".spikes", spikes)
	default:
		err = fmt.Errorf("variant %s: %w", v, rgpipe.ErrInvalidConfig)
	}
	return st, err
}

func spikeGroups(path string, groups []any) ([]rgpipe.SpikeGroupRecord, error) {
	out := make([]rgpipe.SpikeGroupRecord, 0, len(groups))
	for k, g := range groups {
		gpath := fmt.Sprintf("%s[%d]", path, k)
		tuples, ok := g.([]any)
		if !ok {
			return nil, malformed(gpath, "expected a list of spike times, got %s", kind(g))
		}
		group := make(rgpipe.SpikeGroupRecord, 0, len(tuples))
		for n, t := range tuples {
			tpath := fmt.Sprintf("%s[%d]", gpath, n)
			list, isList := t.([]any)
			if !isList {
				f, err := number(tpath, t)
				if err != nil {
					return nil, err
				}
				group = append(group, []float64{f})
				continue
			}
			tuple, err := floatList(tpath, list)
			if err != nil {
				return nil, err
			}
			group = append(group, tuple)
		}
		out = append(out, group)
	}
	return out, nil
}

func movie(path string, v any) (rgpipe.Movie, error) {
	switch m := v.(type) {
	case []any:
		shape, data, err := flattenArray(path, m)
		if err != nil {
			return rgpipe.Movie{}, err
		}
		return rgpipe.Movie{Shape: shape, Data: data}, nil
	case map[string]any:
		obj := fields{path: path, m: m}
		shapeList, err := obj.listField("shape")
		if err != nil {
			return rgpipe.Movie{}, err
		}
		shape := make([]int, len(shapeList))
		for i, d := range shapeList {
			n, err := integer(fmt.Sprintf("%s.shape[%d]", path, i), d)
			if err != nil {
				return rgpipe.Movie{}, err
			}
			if n < 0 {
				return rgpipe.Movie{}, malformed(fmt.Sprintf("%s.shape[%d]", path, i), "negative dimension %d", n)
			}
			shape[i] = int(n)
		}
		dataList, err := obj.listField("data")
		if err != nil {
			return rgpipe.Movie{}, err
		}
		data, err := floatList(path+".data", dataList)
		if err != nil {
			return rgpipe.Movie{}, err
		}
		mv := rgpipe.Movie{Shape: shape, Data: data}
		want, ok := mv.Len()
		if !ok {
			return rgpipe.Movie{}, malformed(path, "shape %v has too many elements", shape)
		}
		if want != len(data) {
			return rgpipe.Movie{}, malformed(path, "shape needs %d values, data has %d", want, len(data))
		}
		return mv, nil
	default:
		return rgpipe.Movie{}, malformed(path, "expected an object with shape and data or a nested array, got %s", kind(v))
	}
}

// flattenArray walks a rectangular nested array in row-major order.
func flattenArray(path string, a []any) ([]int, []float64, error) {
	shape := []int{len(a)}
	if len(a) == 0 {
		return shape, nil, nil
	}

	if _, nested := a[0].([]any); !nested {
		data, err := floatList(path, a)
		return shape, data, err
	}

	var inner []int
	var data []float64
	for i, item := range a {
		ipath := fmt.Sprintf("%s[%d]", path, i)
		sub, ok := item.([]any)
		if !ok {
			return nil, nil, malformed(ipath, "ragged array: expected a list, got %s", kind(item))
		}
		s, d, err := flattenArray(ipath, sub)
		if err != nil {
			return nil, nil, err
		}
		if i == 0 {
			inner = s
		} else if !equalShape(inner, s) {
			return nil, nil, malformed(ipath, "ragged array: shape %v differs from %v", s, inner)
		}
		data = append(data, d...)
	}
	return append(shape, inner...), data, nil
}

func equalShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type fields struct {
	path string
	m    map[string]any
}

func object(path string, v any) (fields, error) {
	switch m := v.(type) {
	case map[string]any:
		return fields{path: path, m: m}, nil
	default:
		return fields{}, malformed(path, "expected an object, got %s", kind(v))
	}
}

func (f fields) get(key string) (any, error) {
	v, ok := f.m[key]
	if !ok {
		return nil, malformed(f.path, "missing field %q", key)
	}
	return v, nil
}

func (f fields) stringField(key string) (string, error) {
	v, err := f.get(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", malformed(f.path+"."+key, "expected a string, got %s", kind(v))
	}
	return s, nil
}

func (f fields) intField(key string) (int64, error) {
	v, err := f.get(key)
	if err != nil {
		return 0, err
	}
	return integer(f.path+"."+key, v)
}

func (f fields) floatField(key string) (float64, error) {
	v, err := f.get(key)
	if err != nil {
		return 0, err
	}
	return number(f.path+"."+key, v)
}

func (f fields) listField(key string) ([]any, error) {
	v, err := f.get(key)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	l, ok := v.([]any)
	if !ok {
		return nil, malformed(f.path+"."+key, "expected a list, got %s", kind(v))
	}
	return l, nil
}

func (f fields) dateField(key string) (time.Time, error) {
	v, err := f.get(key)
	if err != nil {
		return time.Time{}, err
	}
	switch d := v.(type) {
	case time.Time:
		return d, nil
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(d)); err == nil {
				return t, nil
			}
		}
		return time.Time{}, malformed(f.path+"."+key, "unrecognized date %q", d)
	default:
		return time.Time{}, malformed(f.path+"."+key, "expected a date, got %s", kind(v))
	}
}

func floatList(path string, l []any) ([]float64, error) {
	out := make([]float64, len(l))
	for i, v := range l {
		f, err := number(fmt.Sprintf("%s[%d]", path, i), v)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

func number(path string, v any) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, malformed(path, "invalid number %q", n.String())
		}
		return f, nil
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, malformed(path, "expected a number, got %s", kind(v))
	}
}

func integer(path string, v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil || f != math.Trunc(f) {
			return 0, malformed(path, "expected an integer, got %s", n.String())
		}
		return floatToInt(path, f)
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, malformed(path, "integer %d out of range", n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, malformed(path, "expected an integer, got %v", n)
		}
		return floatToInt(path, n)
	default:
		return 0, malformed(path, "expected an integer, got %s", kind(v))
	}
}

// floatToInt converts an integral float, rejecting values outside int64.
// 2^63 is exactly representable; math.MaxInt64 as a float64 rounds up to it.
func floatToInt(path string, f float64) (int64, error) {
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, malformed(path, "integer %v out of range", f)
	}
	return int64(f), nil
}

func kind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case []any:
		return "list"
	case map[string]any:
		return "object"
	case json.Number, float64, int, int64, uint64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func malformed(path, format string, args ...any) error {
	return fmt.Errorf("%s: %s: %w", path, fmt.Sprintf(format, args...), rgpipe.ErrMalformedRecord)
}
