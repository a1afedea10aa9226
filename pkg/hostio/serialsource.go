// Package hostio wraps the external collaborators: a serial port source
// of wM-Bus frames, publishing decoded records to MQTT, and
// deduplicating repeated telegrams in bbolt.
package hostio

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/tarm/serial"
)

// interFrameGap separates one frame from the next: once the port has
// been silent longer than this after a byte, the accumulated buffer is
// treated as a complete frame.
const interFrameGap = 4 * time.Millisecond

// SerialSource reads raw wM-Bus frames from a serial port (a USB wM-Bus
// dongle) and publishes them on the Frames channel.
type SerialSource struct {
	port     *serial.Port
	Frames   chan []byte
	stopChan chan struct{}
}

// OpenSerialSource opens the serial port described by config.
func OpenSerialSource(config *serial.Config) (*SerialSource, error) {
	port, err := serial.OpenPort(config)
	if err != nil {
		return nil, fmt.Errorf("hostio: failed to open serial port: %w", err)
	}
	return &SerialSource{
		port:     port,
		Frames:   make(chan []byte),
		stopChan: make(chan struct{}),
	}, nil
}

// Start begins reading frames in its own goroutine.
func (s *SerialSource) Start() {
	go s.readFrames()
}

// Stop halts reading and closes the port.
func (s *SerialSource) Stop() error {
	close(s.stopChan)
	return s.port.Close()
}

func (s *SerialSource) readFrames() {
	defer close(s.Frames)

	buf := make([]byte, 256)
	var frame []byte
	last := time.Now()

	for {
		select {
		case <-s.stopChan:
			return
		default:
			n, err := s.port.Read(buf)
			now := time.Now()

			if err != nil && err != io.EOF {
				log.Printf("(hostio) serial port read error: %v", err)
			}

			if n == 0 {
				if len(frame) > 0 && now.Sub(last) >= interFrameGap {
					s.emit(frame)
					frame = nil
				}
				continue
			}

			for i := 0; i < n; i++ {
				if now.Sub(last) >= interFrameGap && len(frame) > 0 {
					s.emit(frame)
					frame = nil
				}
				frame = append(frame, buf[i])
				last = now
			}
		}
	}
}

func (s *SerialSource) emit(frame []byte) {
	select {
	case s.Frames <- frame:
	case <-s.stopChan:
	}
}
