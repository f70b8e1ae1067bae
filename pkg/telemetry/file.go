package telemetry

import (
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// FileRecorder appends samples to a file as a CBOR sequence.
// It is safe for concurrent use.
type FileRecorder struct {
	mu      sync.Mutex
	file    *os.File
	encoder *cbor.Encoder
	closed  bool
}

var _ Recorder = (*FileRecorder)(nil)

// NewFileRecorder opens path for appending, creating it if needed.
func NewFileRecorder(path string) (*FileRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &FileRecorder{file: f, encoder: NewEncoder(f)}, nil
}

// Record writes one sample. Samples recorded after Close are dropped.
func (r *FileRecorder) Record(s Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	return r.encoder.Encode(s)
}

// Close closes the file. It is safe to call Close multiple times.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// Filter selects samples when reading a recording. Zero fields match
// everything.
type Filter struct {
	Session   string
	TimeStart *time.Time
	TimeEnd   *time.Time
	Device    string
}

func (f *Filter) matches(s Sample) bool {
	if f.Session != "" && s.Session != f.Session {
		return false
	}
	if f.TimeStart != nil && s.Timestamp.Before(*f.TimeStart) {
		return false
	}
	if f.TimeEnd != nil && !s.Timestamp.Before(*f.TimeEnd) {
		return false
	}
	if f.Device != "" && !s.has(f.Device) {
		return false
	}
	return true
}

func (s Sample) has(name string) bool {
	if _, ok := s.Motors[name]; ok {
		return true
	}
	if _, ok := s.Angles[name]; ok {
		return true
	}
	if _, ok := s.Imus[name]; ok {
		return true
	}
	_, ok := s.Distances[name]
	return ok
}

// Reader streams samples from a recording.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter
}

// NewReader opens a recording for reading every sample.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens a recording for reading samples matching filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{file: f, decoder: NewDecoder(f), filter: filter}, nil
}

// Next returns the next matching sample, or io.EOF at the end.
func (r *Reader) Next() (Sample, error) {
	for {
		var s Sample
		if err := r.decoder.Decode(&s); err != nil {
			if errors.Is(err, io.EOF) {
				return Sample{}, io.EOF
			}
			return Sample{}, err
		}
		if r.filter.matches(s) {
			return s, nil
		}
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
