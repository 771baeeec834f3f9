package gps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

// recordingSink collects everything a source pushes.
type recordingSink struct {
	mu     sync.Mutex
	fixes  []Fix
	errors []error
}

func (s *recordingSink) PushFix(f Fix) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixes = append(s.fixes, f)
}

func (s *recordingSink) PushError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, err)
}

func (s *recordingSink) Fixes() []Fix {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Fix(nil), s.fixes...)
}

func (s *recordingSink) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errors...)
}

func TestReceiverReadsFixes(t *testing.T) {
	log := strings.Join([]string{
		"$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47",
		"$GPGSV,3,1,11,03,03,111,00,04,15,270,00,06,01,010,00,13,06,292,00*74",
		"garbage",
		"$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A",
		"$GPRMC,123520,V,,,,,,,230394,,",
	}, "\r\n")

	rx := NewReaderReceiver("log", strings.NewReader(log), 0)
	if rx.Name() != "log" {
		t.Errorf("Expected name 'log', got %s", rx.Name())
	}

	sink := &recordingSink{}
	if err := rx.Run(context.Background(), sink); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	fixes := sink.Fixes()
	if len(fixes) != 1 {
		t.Fatalf("Expected 1 fix, got %d", len(fixes))
	}
	if fixes[0].Altitude != 545.4 {
		t.Errorf("Expected altitude from GGA 545.4, got %f", fixes[0].Altitude)
	}
	if fixes[0].Satellites != 8 {
		t.Errorf("Expected 8 satellites from GGA, got %d", fixes[0].Satellites)
	}
	if fixes[0].Heading == nil || *fixes[0].Heading != 84.4 {
		t.Errorf("Expected heading 84.4, got %v", fixes[0].Heading)
	}

	errs := sink.Errors()
	if len(errs) != 1 || !errors.Is(errs[0], ErrNoFix) {
		t.Errorf("Expected one ErrNoFix for the void RMC, got %v", errs)
	}
}

func TestReceiverWatchdog(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	rx := NewReaderReceiver("pipe", pr, 20*time.Millisecond)
	sink := &recordingSink{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rx.Run(ctx, sink) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(sink.Errors()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if errs := sink.Errors(); len(errs) == 0 || !errors.Is(errs[0], ErrNoFix) {
		t.Fatalf("Expected ErrNoFix from the watchdog, got %v", errs)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run should return nil after cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestReceiverOpenError(t *testing.T) {
	rx := &Receiver{
		name: "broken",
		open: func() (io.ReadCloser, error) { return nil, ErrPermissionDenied },
	}
	if err := rx.Run(context.Background(), &recordingSink{}); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied, got %v", err)
	}
}

func TestNewSerialReceiver(t *testing.T) {
	if _, err := NewSerialReceiver(ReceiverConfig{BaudRate: 9600}); !errors.Is(err, ErrNoSerialPort) {
		t.Errorf("Expected ErrNoSerialPort, got %v", err)
	}
	if _, err := NewSerialReceiver(ReceiverConfig{SerialPort: "/dev/ttyUSB0"}); !errors.Is(err, ErrInvalidBaudRate) {
		t.Errorf("Expected ErrInvalidBaudRate, got %v", err)
	}

	config := DefaultReceiverConfig()
	config.SerialPort = "/dev/ttyUSB0"
	rx, err := NewSerialReceiver(config)
	if err != nil {
		t.Fatalf("NewSerialReceiver failed: %v", err)
	}
	if rx.Name() != "serial:/dev/ttyUSB0" {
		t.Errorf("Unexpected name %s", rx.Name())
	}
}

func TestClassifyOpenError(t *testing.T) {
	err := classifyOpenError("/dev/ttyS0", fmt.Errorf("open: %w", os.ErrPermission))
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied, got %v", err)
	}

	err = classifyOpenError("/dev/ttyS0", os.ErrNotExist)
	if errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Missing port should not be a permission error: %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected the cause to be wrapped, got %v", err)
	}
}
