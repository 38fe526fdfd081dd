package scanner

import (
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// RawDetection is a decoder hit in the coordinate space of the image that was
// decoded (the upscaled frame).
type RawDetection struct {
	Payload []byte
	Polygon utils.Polygon
	Format  string
}

// Detection is a decoded code in original frame coordinates.
type Detection struct {
	Time        float64       `json:"time"        yaml:"time"`
	Data        string        `json:"data"        yaml:"data"`
	Method      string        `json:"method"      yaml:"method"`
	Coordinates utils.Polygon `json:"coordinates" yaml:"coordinates"`
}

// RunInfo describes a run at its start.
type RunInfo struct {
	Source     string   `json:"source"`
	Methods    []string `json:"methods"`
	ZoomFactor int      `json:"zoom_factor"`
}
