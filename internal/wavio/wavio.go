// Package wavio reads and writes the WAV files of the synthesis pipeline.
//
// All files share one output format: 24000 Hz, 16-bit PCM, stereo. The
// synthesis backend delivers mono PCM at the same rate; writing widens it to
// stereo by duplicating each sample across both channels.
package wavio

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Output format shared by every file the pipeline produces.
const (
	SampleRate  = 24000
	BitDepth    = 16
	NumChannels = 2

	// bytesPerFrame is one stereo frame of 16-bit samples.
	bytesPerFrame = NumChannels * BitDepth / 8
)

// MonoToStereo widens mono 16-bit PCM to stereo by duplicating each sample
// into both channels. A trailing odd byte is dropped.
func MonoToStereo(mono []byte) []byte {
	n := len(mono) / 2
	stereo := make([]byte, 0, n*4)
	for i := 0; i < n; i++ {
		stereo = append(stereo, mono[i*2], mono[i*2+1], mono[i*2], mono[i*2+1])
	}
	return stereo
}

// Silence returns d worth of stereo silence PCM.
func Silence(d time.Duration) []byte {
	frames := int(d.Seconds() * SampleRate)
	if frames <= 0 {
		return nil
	}
	return make([]byte, frames*bytesPerFrame)
}

// Duration reports the playback length of stereo PCM.
func Duration(stereoPCM []byte) time.Duration {
	frames := len(stereoPCM) / bytesPerFrame
	return time.Duration(frames) * time.Second / SampleRate
}

// WriteFile widens mono PCM to stereo and writes it to path as a WAV file.
func WriteFile(path string, monoPCM []byte) error {
	return WriteStereoFile(path, MonoToStereo(monoPCM))
}

// WriteStereoFile writes stereo PCM to path as a WAV file.
func WriteStereoFile(path string, stereoPCM []byte) error {
	if len(stereoPCM)%2 != 0 {
		return fmt.Errorf("wavio: pcm payload not aligned")
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wavio: create %s: %w", path, err)
	}
	samples := make([]int, len(stereoPCM)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(stereoPCM[i*2:])))
	}
	buffer := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: NumChannels, SampleRate: SampleRate},
		Data:   samples,
	}

	enc := wav.NewEncoder(file, SampleRate, BitDepth, NumChannels, 1)
	if err := enc.Write(buffer); err != nil {
		file.Close()
		return fmt.Errorf("wavio: write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		file.Close()
		return fmt.Errorf("wavio: close wav encoder: %w", err)
	}
	return file.Close()
}

// ReadFile decodes a WAV file into raw stereo 16-bit PCM bytes. Mono files
// are widened to stereo so every decoded segment shares the output format
// and concatenation never mixes frame widths.
func ReadFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wavio: open %s: %w", path, err)
	}
	defer file.Close()

	dec := wav.NewDecoder(file)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wavio: decode %s: %w", path, err)
	}
	if err := dec.Err(); err != nil {
		return nil, fmt.Errorf("wavio: decode %s: %w", path, err)
	}

	pcm := make([]byte, len(buf.Data)*2)
	for i, s := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(s)))
	}
	if buf.Format != nil && buf.Format.NumChannels == 1 {
		pcm = MonoToStereo(pcm)
	}
	return pcm, nil
}
