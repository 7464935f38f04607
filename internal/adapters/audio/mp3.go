// Package audio provides the primary audio element adapter.
// Clean Architecture: Adapter implementing ports.AudioPlayer.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tcolgate/mp3"
)

// ErrNoFrames is returned when data contains no MPEG audio frames.
var ErrNoFrames = errors.New("no mpeg audio frames found")

// id3v2Size returns the size of an ID3v2 tag starting at b, or 0 if there is none.
func id3v2Size(b []byte) int {
	if len(b) < 10 || b[0] != 'I' || b[1] != 'D' || b[2] != '3' {
		return 0
	}
	size := int(b[6]&0x7F)<<21 | int(b[7]&0x7F)<<14 | int(b[8]&0x7F)<<7 | int(b[9]&0x7F)
	size += 10
	if b[5]&0x10 != 0 {
		size += 10 // footer
	}
	return size
}

// Duration returns the playing time of MPEG audio data by summing frame
// durations. Concatenated streams, each possibly starting with an ID3v2 tag,
// are handled the same as a single stream. Bytes that are neither a tag nor
// a valid frame are skipped, as is a truncated trailing frame.
func Duration(data []byte) (time.Duration, error) {
	r := bytes.NewReader(data)
	dec := mp3.NewDecoder(r)

	var (
		total   time.Duration
		frames  int
		frame   mp3.Frame
		skipped int
	)
	for {
		// The decoder consumes exactly one frame per call, so a tag can only
		// start where the reader stands now.
		rest := data[len(data)-r.Len():]
		if n := id3v2Size(rest); n > 0 {
			if n > len(rest) {
				n = len(rest)
			}
			r.Seek(int64(n), io.SeekCurrent)
			continue
		}

		err := dec.Decode(&frame, &skipped)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			if frames > 0 {
				break
			}
			return 0, fmt.Errorf("%w: %v", ErrNoFrames, err)
		}
		total += frame.Duration()
		frames++
	}

	if frames == 0 {
		return 0, ErrNoFrames
	}
	return total, nil
}
