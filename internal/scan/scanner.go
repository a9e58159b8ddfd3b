package scan

import (
	"log/slog"
	"sync"

	"github.com/wolfeng/barscan/internal/decoder"
)

// ScannerStatus is the state of the scanner view
type ScannerStatus string

const (
	StatusIdle     ScannerStatus = "IDLE"
	StatusScanning ScannerStatus = "SCANNING"
	StatusSuccess  ScannerStatus = "SUCCESS"
	StatusError    ScannerStatus = "ERROR"
)

// ScannerState is reported to the presentation layer
type ScannerState struct {
	Status ScannerStatus `json:"status"`
	Error  string        `json:"error,omitempty"`
	LastID string        `json:"lastId,omitempty"`
}

// ScannerHooks are optional callbacks fired by the Scanner
type ScannerHooks struct {
	// OnScan runs after a decoded barcode has been recorded
	OnScan func(record Record)
	// OnError runs when the session fails to start
	OnError func(message string)
}

// Scanner opens and closes decoder sessions and feeds decodes to the Service.
// At most one session is open at a time.
type Scanner struct {
	decoder *decoder.Decoder
	service *Service
	hooks   ScannerHooks

	mu      sync.Mutex
	session *decoder.Session
	state   ScannerState
}

// NewScanner creates a new Scanner
func NewScanner(dec *decoder.Decoder, service *Service, hooks ScannerHooks) *Scanner {
	return &Scanner{
		decoder: dec,
		service: service,
		hooks:   hooks,
		state:   ScannerState{Status: StatusIdle},
	}
}

// Open starts a scanning session unless one is already running
func (sc *Scanner) Open() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.session != nil {
		return
	}

	var session *decoder.Session
	ready := make(chan struct{})
	session = sc.decoder.Start(
		func(text, format string) {
			<-ready
			sc.handleDecoded(session, text, format)
		},
		func(message string) {
			<-ready
			sc.handleFatal(session, message)
		},
	)
	close(ready)
	sc.session = session
	sc.state = ScannerState{Status: StatusScanning}
}

// Close stops the running session, if any, and releases the camera. It
// returns once the session's callbacks have finished, so no scan is recorded
// after Close. Identifications already started keep running.
func (sc *Scanner) Close() {
	sc.mu.Lock()
	session := sc.session
	sc.session = nil
	sc.state = ScannerState{Status: StatusIdle, LastID: sc.state.LastID}
	sc.mu.Unlock()

	session.Wait()
}

// State returns the current scanner state
func (sc *Scanner) State() ScannerState {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.state
}

func (sc *Scanner) handleDecoded(session *decoder.Session, text, format string) {
	sc.mu.Lock()
	if sc.session != session {
		// Closed or replaced while the decode was in flight
		sc.mu.Unlock()
		return
	}
	sc.session = nil
	record, err := sc.service.HandleDecoded(text, format)
	if err != nil {
		slog.Warn("Ignoring decode", "error", err)
		sc.state = ScannerState{Status: StatusIdle, LastID: sc.state.LastID}
	} else {
		sc.state = ScannerState{Status: StatusSuccess, LastID: record.ID}
	}
	sc.mu.Unlock()

	// A successful scan closes the scanner
	session.Stop()

	if err == nil && sc.hooks.OnScan != nil {
		sc.hooks.OnScan(record)
	}
}

func (sc *Scanner) handleFatal(session *decoder.Session, message string) {
	sc.mu.Lock()
	if sc.session != session {
		sc.mu.Unlock()
		return
	}
	sc.session = nil
	sc.state = ScannerState{Status: StatusError, Error: message}
	sc.mu.Unlock()

	session.Stop()

	if sc.hooks.OnError != nil {
		sc.hooks.OnError(message)
	}
}
