package audio

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultBytesPerMinute is the size heuristic used when the container does
// not report a duration. It matches a 128 kbit/s stream, the common
// recorder default.
const DefaultBytesPerMinute = 960_000

// EstimateDuration returns the best available duration estimate for an
// audio file: the WAV container's byte rate when the header is parseable,
// the size heuristic otherwise. bytesPerMinute <= 0 falls back to
// DefaultBytesPerMinute.
func EstimateDuration(path string, size int64, bytesPerMinute int64) time.Duration {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		if d, err := wavDuration(path); err == nil && d > 0 {
			return d
		}
	}
	if bytesPerMinute <= 0 {
		bytesPerMinute = DefaultBytesPerMinute
	}
	return time.Duration(float64(size) / float64(bytesPerMinute) * float64(time.Minute))
}

var errNotWAV = errors.New("not a RIFF/WAVE file")

// wavDuration reads the RIFF header and walks the chunk list to compute
// duration as data-chunk bytes over the fmt chunk's byte rate.
func wavDuration(path string) (time.Duration, error) {
	f, err := os.Open(path) // #nosec G304 -- path is a discovered item path
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	var riff [12]byte
	if _, err := io.ReadFull(f, riff[:]); err != nil {
		return 0, err
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return 0, errNotWAV
	}

	var (
		byteRate uint32
		dataSize uint32
	)
	for byteRate == 0 || dataSize == 0 {
		var hdr [8]byte
		if _, err := io.ReadFull(f, hdr[:]); err != nil {
			return 0, err
		}
		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])

		switch id {
		case "fmt ":
			if size < 16 {
				return 0, errNotWAV
			}
			var fmtChunk [16]byte
			if _, err := io.ReadFull(f, fmtChunk[:]); err != nil {
				return 0, err
			}
			byteRate = binary.LittleEndian.Uint32(fmtChunk[8:12])
			if rest := int64(size) - 16; rest > 0 {
				if _, err := f.Seek(rest+rest%2, io.SeekCurrent); err != nil {
					return 0, err
				}
			}
		case "data":
			dataSize = size
			if byteRate == 0 {
				// data before fmt is legal RIFF; skip past and keep walking.
				if _, err := f.Seek(int64(size)+int64(size%2), io.SeekCurrent); err != nil {
					return 0, err
				}
			}
		default:
			// Chunks are word-aligned; odd sizes carry a pad byte.
			if _, err := f.Seek(int64(size)+int64(size%2), io.SeekCurrent); err != nil {
				return 0, err
			}
		}
	}

	if byteRate == 0 {
		return 0, errNotWAV
	}
	secs := float64(dataSize) / float64(byteRate)
	return time.Duration(secs * float64(time.Second)), nil
}
