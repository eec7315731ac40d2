// Package audio inspects input files so the runner can log and record what
// it is about to stream.
package audio

import (
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"
)

// Info describes a WAV input file.
type Info struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}

// Probe reads the WAV header of the file at path. Non-WAV files return an
// error; callers treat that as "no info", not as a processing failure, since
// the recognition service decides what it accepts.
func Probe(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return Info{}, fmt.Errorf("%s: not a valid wav file", path)
	}
	dur, err := dec.Duration()
	if err != nil {
		return Info{}, fmt.Errorf("read wav duration: %w", err)
	}
	return Info{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
		Duration:   dur,
	}, nil
}
