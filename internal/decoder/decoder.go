package decoder

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// CameraErrorMessage is reported when the camera cannot be opened
const CameraErrorMessage = "Could not access camera. Please ensure permissions are granted."

// Messages for the other fatal session errors
const (
	EngineErrorMessage = "Could not start the barcode decoder."
	StreamEndedMessage = "The camera stopped sending video."
)

// Region is the scan box hint, centred in the frame
type Region struct {
	Width  int
	Height int
}

// Config controls a scanning session
type Config struct {
	// FPS is the target number of frames decoded per second
	FPS int
	// Region limits decoding to a centred box; zero disables cropping
	Region Region
	// AspectRatio is the preferred viewfinder aspect ratio
	AspectRatio float64
	// Formats is the symbology allow-list
	Formats []string
	// Facing is the preferred camera
	Facing Facing
}

// DefaultConfig returns the settings used for product barcodes
func DefaultConfig() Config {
	return Config{
		FPS:         10,
		Region:      Region{Width: 300, Height: 150},
		AspectRatio: 1.0,
		Formats:     ProductFormats,
		Facing:      FacingEnvironment,
	}
}

// State is the lifecycle state of a Session
type State int32

const (
	StateStarting State = iota
	StateScanning
	StatePaused
	StateFailed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateScanning:
		return "scanning"
	case StatePaused:
		return "paused"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Decoder runs scanning sessions against a camera
type Decoder struct {
	camera    Camera
	newEngine EngineFactory
	cfg       Config
}

// New creates a new Decoder. A nil factory uses NewZXing.
func New(camera Camera, newEngine EngineFactory, cfg Config) *Decoder {
	if newEngine == nil {
		newEngine = NewZXing
	}
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultConfig().FPS
	}
	if len(cfg.Formats) == 0 {
		cfg.Formats = ProductFormats
	}
	if cfg.Facing == "" {
		cfg.Facing = FacingEnvironment
	}
	return &Decoder{
		camera:    camera,
		newEngine: newEngine,
		cfg:       cfg,
	}
}

// Session is one scanning run, from camera acquisition to release
type Session struct {
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	state    atomic.Int32

	// callbacks counts onDecoded/onFatalError calls still running; Add only
	// happens on the session goroutine before done is closed
	callbacks sync.WaitGroup
}

// Start begins a scanning session. onDecoded is called at most once, with the
// first barcode seen; onFatalError is called if the camera or decoder cannot
// be started. Callbacks run on their own goroutine and may call Stop.
func (d *Decoder) Start(onDecoded func(text, format string), onFatalError func(message string)) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.run(ctx, d, onDecoded, onFatalError)
	return s
}

// Stop halts decoding and releases the camera and decoder, waiting until
// both are released. It is safe to call on a nil, finished or already stopped
// session.
func (s *Session) Stop() {
	if s == nil {
		return
	}
	s.stopOnce.Do(s.cancel)
	<-s.done
}

// Wait stops the session and blocks until every callback it started has
// returned. It must not be called from inside a callback.
func (s *Session) Wait() {
	if s == nil {
		return
	}
	s.Stop()
	s.callbacks.Wait()
}

// Done is closed once the session has released its resources
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// State reports where the session is in its lifecycle
func (s *Session) State() State {
	if s == nil {
		return StateStopped
	}
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
}

func (s *Session) run(ctx context.Context, d *Decoder, onDecoded func(text, format string), onFatalError func(message string)) {
	defer close(s.done)
	defer func() {
		if s.State() != StateFailed {
			s.setState(StateStopped)
		}
	}()

	fail := func(message string, err error) {
		slog.Error("Error starting scanner", "error", err)
		s.setState(StateFailed)
		if onFatalError != nil {
			s.callbacks.Add(1)
			go func() {
				defer s.callbacks.Done()
				onFatalError(message)
			}()
		}
	}

	stream, err := d.camera.Open(ctx, Constraints{Facing: d.cfg.Facing})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		fail(CameraErrorMessage, err)
		return
	}
	defer func() {
		if err := stream.Close(); err != nil {
			slog.Error("Failed to stop scanner", "error", err)
		}
	}()

	engine, err := d.newEngine(d.cfg.Formats)
	if err != nil {
		fail(EngineErrorMessage, err)
		return
	}
	defer engine.Close()

	allowed := make(map[string]bool, len(d.cfg.Formats))
	for _, f := range d.cfg.Formats {
		allowed[f] = true
	}

	ticker := time.NewTicker(time.Second / time.Duration(d.cfg.FPS))
	defer ticker.Stop()

	s.setState(StateScanning)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame, err := stream.Frame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, ErrStreamEnded) {
				fail(StreamEndedMessage, err)
				return
			}
			continue
		}

		res, err := decodeFrame(engine, frame, d.cfg.Region)
		if err != nil || res.Text == "" || !allowed[res.Format] {
			// Most frames contain no barcode
			continue
		}

		// Pause so the same barcode held in frame does not fire again
		s.setState(StatePaused)
		slog.Info("Barcode decoded", "format", res.Format)
		if onDecoded != nil {
			s.callbacks.Add(1)
			go func() {
				defer s.callbacks.Done()
				onDecoded(res.Text, res.Format)
			}()
		}
		<-ctx.Done()
		return
	}
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// decodeFrame tries the scan box first, then the whole frame. The box is
// sized for a live preview; full-resolution stills often hold a barcode wider
// than it.
func decodeFrame(engine Engine, frame image.Image, region Region) (Result, error) {
	box, cropped := cropToRegion(frame, region)
	res, err := engine.Decode(box)
	if (err == nil && res.Text != "") || !cropped {
		return res, err
	}
	return engine.Decode(frame)
}

// cropToRegion returns the centred scan box of the frame when it fits, and
// whether any cropping happened
func cropToRegion(frame image.Image, region Region) (image.Image, bool) {
	if region.Width <= 0 || region.Height <= 0 {
		return frame, false
	}
	b := frame.Bounds()
	if region.Width >= b.Dx() && region.Height >= b.Dy() {
		return frame, false
	}
	sub, ok := frame.(subImager)
	if !ok {
		return frame, false
	}
	w := min(region.Width, b.Dx())
	h := min(region.Height, b.Dy())
	x0 := b.Min.X + (b.Dx()-w)/2
	y0 := b.Min.Y + (b.Dy()-h)/2
	return sub.SubImage(image.Rect(x0, y0, x0+w, y0+h)), true
}
