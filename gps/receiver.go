package gps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.bug.st/serial"
)

// Receiver reads NMEA sentences from a GPS receiver and reports one fix per
// valid RMC sentence, enriched with the altitude and satellite count of the
// latest GGA.
type Receiver struct {
	name    string
	timeout time.Duration
	open    func() (io.ReadCloser, error)
}

// NewSerialReceiver returns a receiver that opens config.SerialPort when run.
func NewSerialReceiver(config ReceiverConfig) (*Receiver, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.SerialPort == "" {
		return nil, ErrNoSerialPort
	}
	return &Receiver{
		name:    "serial:" + config.SerialPort,
		timeout: config.Timeout,
		open: func() (io.ReadCloser, error) {
			return OpenSerial(config.SerialPort, config.BaudRate)
		},
	}, nil
}

// NewReaderReceiver returns a receiver reading sentences from r, such as a
// recorded NMEA log or a pipe. Readers that can be closed are closed when
// the receiver stops.
func NewReaderReceiver(name string, r io.Reader, timeout time.Duration) *Receiver {
	return &Receiver{
		name:    name,
		timeout: timeout,
		open: func() (io.ReadCloser, error) {
			if rc, ok := r.(io.ReadCloser); ok {
				return rc, nil
			}
			return io.NopCloser(r), nil
		},
	}
}

// OpenSerial opens a serial port in 8N1 mode. Permission problems are
// reported as ErrPermissionDenied.
func OpenSerial(port string, baud int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, classifyOpenError(port, err)
	}
	return p, nil
}

func classifyOpenError(port string, err error) error {
	var portErr *serial.PortError
	if (errors.As(err, &portErr) && portErr.Code() == serial.PermissionDenied) || errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%w: %s: %v", ErrPermissionDenied, port, err)
	}
	return fmt.Errorf("failed to open serial port %s: %w", port, err)
}

func (r *Receiver) Name() string { return r.name }

// Run implements Source. A receiver that stays silent, or reports no fix,
// for longer than the configured timeout pushes ErrNoFix.
func (r *Receiver) Run(ctx context.Context, sink Sink) error {
	rc, err := r.open()
	if err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		// Closing unblocks the scanner.
		rc.Close()
	}()

	var watchdog *time.Timer
	if r.timeout > 0 {
		watchdog = time.AfterFunc(r.timeout, func() {
			sink.PushError(fmt.Errorf("%w for %s", ErrNoFix, r.timeout))
		})
		defer watchdog.Stop()
	}

	var altitude float64
	var satellites int
	scanner := bufio.NewScanner(rc)
	for scanner.Scan() {
		sentence, err := ParseSentence(scanner.Text())
		if err != nil {
			// Unsupported and corrupted lines are routine on a serial link.
			continue
		}

		switch sentence.Type {
		case "GGA":
			if sentence.Valid {
				altitude = sentence.Fix.Altitude
				satellites = sentence.Fix.Satellites
			}
		case "RMC":
			if !sentence.Valid {
				sink.PushError(ErrNoFix)
				continue
			}
			fix := sentence.Fix
			fix.Altitude = altitude
			fix.Satellites = satellites
			sink.PushFix(fix)
			if watchdog != nil {
				watchdog.Reset(r.timeout)
			}
		}
	}

	if ctx.Err() != nil {
		return nil
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading NMEA from %s: %w", r.name, err)
	}
	return nil
}
