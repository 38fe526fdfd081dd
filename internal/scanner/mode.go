package scanner

import (
	"fmt"
	"strings"
)

// Mode selects the kind of frame source.
type Mode string

const (
	ModeFile   Mode = "file"
	ModeCamera Mode = "camera"
	ModeImages Mode = "images"
)

// ParseMode accepts "file"/"video"/"1", "camera"/"webcam"/"2" and "images".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "file", "video", "1":
		return ModeFile, nil
	case "camera", "webcam", "2":
		return ModeCamera, nil
	case "images":
		return ModeImages, nil
	}
	return "", fmt.Errorf("%w: %q (use file, camera or images)", ErrUnknownMode, s)
}
