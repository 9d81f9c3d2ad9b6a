// Package engine provides the two speech-recognition adapters the pipeline
// selects between by language. Both share one contract: audio in, raw
// timestamped segments plus a language code out. The heavyweight models run
// in external runner processes; each attempt gets its own scratch directory
// that Release tears down, so a failed device attempt holds nothing by the
// time a fallback attempt starts.
package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"vid2srt/internal/fallback"
	"vid2srt/internal/segment"
)

// Result is the adapter output consumed by the pipeline.
type Result struct {
	Segments []segment.Raw
	Language string
}

// speakerID accepts the engine-native speaker field whether it arrives as a
// JSON string or a number; engines disagree on the wire type.
type speakerID string

func (s *speakerID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = ""
		return nil
	}
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*s = speakerID(asString)
		return nil
	}
	var asNumber int64
	if err := json.Unmarshal(data, &asNumber); err == nil {
		*s = speakerID(strconv.FormatInt(asNumber, 10))
		return nil
	}
	return fmt.Errorf("speaker: unsupported JSON value %s", data)
}

// scratch tracks the per-attempt working directory shared by both adapters.
type scratch struct {
	dir string
}

func (s *scratch) create() (string, error) {
	dir, err := os.MkdirTemp("", "vid2srt-engine-*")
	if err != nil {
		return "", fmt.Errorf("create engine scratch dir: %w", err)
	}
	s.dir = dir
	return dir, nil
}

// release removes the attempt's working directory. Removal failure is
// ignored: scratch lives under the system temp dir and the next attempt
// allocates a fresh one.
func (s *scratch) release() {
	if s.dir == "" {
		return
	}
	_ = os.RemoveAll(s.dir)
	s.dir = ""
}

func readResultFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read engine result: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse engine result: %w", err)
	}
	return nil
}

// deviceString renders a fallback device for runner command lines.
func deviceString(device fallback.Device) string {
	return string(device)
}
