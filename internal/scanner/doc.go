// Package scanner runs the per-frame QR detection pipeline and accumulates a
// deduplicated log of every distinct code seen over a stream.
//
// A Processor applies each configured transform method to a frame, upscales
// the result, decodes it and maps the found polygons back to frame
// coordinates. New detections are kept in a Store; the Runner pulls frames
// from a video.Source until the source ends or the run is cancelled.
package scanner
