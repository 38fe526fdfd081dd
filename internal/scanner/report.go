package scanner

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Report output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatYAML = "yaml"
)

// ReportFormats lists the supported report formats.
var ReportFormats = []string{FormatText, FormatJSON, FormatCSV, FormatYAML}

// ValidateReportFormat reports an error for unsupported formats.
func ValidateReportFormat(format string) error {
	for _, f := range ReportFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("unsupported report format %q (use %s)", format, strings.Join(ReportFormats, ", "))
}

// FormatLine renders one detection as a human-readable report line.
func FormatLine(d Detection) string {
	return fmt.Sprintf("[ %.2f s ] data: %s. method: %s. coordinates: %s",
		d.Time, d.Data, d.Method, d.Coordinates.String())
}

// ToText renders one line per detection, in order.
func ToText(ds []Detection) string {
	var sb strings.Builder
	for _, d := range ds {
		sb.WriteString(FormatLine(d))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// ToJSON serializes detections to pretty JSON. An empty log renders as [].
func ToJSON(ds []Detection) (string, error) {
	if ds == nil {
		ds = []Detection{}
	}
	b, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}

// ToCSV exports detections with a header row. Coordinates use the polygon
// string form.
func ToCSV(ds []Detection) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"time", "data", "method", "coordinates"}); err != nil {
		return "", err
	}
	for _, d := range ds {
		row := []string{
			strconv.FormatFloat(d.Time, 'f', 2, 64),
			d.Data,
			d.Method,
			d.Coordinates.String(),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}

// ToYAML serializes detections as a YAML sequence.
func ToYAML(ds []Detection) (string, error) {
	if ds == nil {
		ds = []Detection{}
	}
	b, err := yaml.Marshal(ds)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteReport renders detections in format and writes them to w.
func WriteReport(w io.Writer, ds []Detection, format string) error {
	var (
		out string
		err error
	)
	switch format {
	case FormatText, "":
		out = ToText(ds)
	case FormatJSON:
		out, err = ToJSON(ds)
	case FormatCSV:
		out, err = ToCSV(ds)
	case FormatYAML:
		out, err = ToYAML(ds)
	default:
		return ValidateReportFormat(format)
	}
	if err != nil {
		return fmt.Errorf("render %s report: %w", format, err)
	}
	_, err = io.WriteString(w, out)
	return err
}
