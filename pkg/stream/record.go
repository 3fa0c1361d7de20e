package stream

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/canopyviz/canopy/pkg/soa"
)

type nodeRecord struct {
	X     *float64        `json:"x"`
	Y     *float64        `json:"y"`
	Size  *float64        `json:"size"`
	Color json.RawMessage `json:"color"`
	Label json.RawMessage `json:"label"`
}

type linkRecord struct {
	Source *int64 `json:"source"`
	Target *int64 `json:"target"`
}

// parseNode extracts one point. x and y are required; size, color and label
// fall back to their defaults when missing or unusable.
func parseNode(obj []byte) (soa.Point, error) {
	var rec nodeRecord
	if err := json.Unmarshal(obj, &rec); err != nil {
		return soa.Point{}, recordError("decode node: %v", err)
	}
	if rec.X == nil || rec.Y == nil {
		return soa.Point{}, recordError("node without x/y")
	}

	pt := soa.Point{
		X:    float32(*rec.X),
		Y:    float32(*rec.Y),
		Size: soa.DefaultSize,
		R:    soa.DefaultColor,
		G:    soa.DefaultColor,
		B:    soa.DefaultColor,
	}
	if rec.Size != nil {
		pt.Size = float32(*rec.Size)
	}
	if !finite(pt.X) || !finite(pt.Y) || !finite(pt.Size) {
		return soa.Point{}, recordError("node (%v, %v) size %v out of float32 range", *rec.X, *rec.Y, pt.Size)
	}
	var color string
	if json.Unmarshal(rec.Color, &color) == nil {
		if r, g, b, ok := soa.ParseHexColor(color); ok {
			pt.R, pt.G, pt.B = r, g, b
		}
	}
	pt.Label = rawLabel(rec.Label)
	return pt, nil
}

// rawLabel accepts a JSON string, or the literal text of a number or bool.
func rawLabel(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if raw[0] == '{' || raw[0] == '[' {
		return ""
	}
	return string(raw)
}

func finite(f float32) bool {
	return !math.IsInf(float64(f), 0) && !math.IsNaN(float64(f))
}

// parseLink extracts one edge and checks both endpoints against the number of
// nodes seen so far.
func parseLink(obj []byte, nodeCount int) (src, tgt uint32, err error) {
	var rec linkRecord
	if err := json.Unmarshal(obj, &rec); err != nil {
		return 0, 0, recordError("decode link: %v", err)
	}
	if rec.Source == nil || rec.Target == nil {
		return 0, 0, recordError("link without source/target")
	}
	s, t := *rec.Source, *rec.Target
	if s < 0 || t < 0 || s >= int64(nodeCount) || t >= int64(nodeCount) {
		return 0, 0, recordError("link %d->%d out of range for %d nodes", s, t, nodeCount)
	}
	return uint32(s), uint32(t), nil
}
