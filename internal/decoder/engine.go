package decoder

import (
	"errors"
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
)

var errNoBarcode = errors.New("no barcode found")

// Result is a successful decode of one frame
type Result struct {
	Text   string
	Format string
}

// Engine decodes barcodes from single frames. Implementations need not be
// safe for concurrent use; each session owns its engine.
type Engine interface {
	Decode(frame image.Image) (Result, error)
	Close() error
}

// EngineFactory creates an engine restricted to the given symbologies
type EngineFactory func(formats []string) (Engine, error)

// Symbology names as reported in decode results
const (
	FormatUPCA    = "UPC_A"
	FormatUPCE    = "UPC_E"
	FormatEAN8    = "EAN_8"
	FormatEAN13   = "EAN_13"
	FormatCode128 = "CODE_128"
	FormatCode39  = "CODE_39"
	FormatCode93  = "CODE_93"
	FormatCodabar = "CODABAR"
	FormatITF     = "ITF"
)

// ProductFormats are the linear product barcodes recognized by default. 2D
// matrix codes such as QR are deliberately absent.
var ProductFormats = []string{
	FormatUPCA,
	FormatUPCE,
	FormatEAN8,
	FormatEAN13,
	FormatCode128,
	FormatCode39,
	FormatCode93,
	FormatCodabar,
	FormatITF,
}

var zxingFormats = map[string]gozxing.BarcodeFormat{
	FormatUPCA:    gozxing.BarcodeFormat_UPC_A,
	FormatUPCE:    gozxing.BarcodeFormat_UPC_E,
	FormatEAN8:    gozxing.BarcodeFormat_EAN_8,
	FormatEAN13:   gozxing.BarcodeFormat_EAN_13,
	FormatCode128: gozxing.BarcodeFormat_CODE_128,
	FormatCode39:  gozxing.BarcodeFormat_CODE_39,
	FormatCode93:  gozxing.BarcodeFormat_CODE_93,
	FormatCodabar: gozxing.BarcodeFormat_CODABAR,
	FormatITF:     gozxing.BarcodeFormat_ITF,
}

// ZXing implements Engine by trying each enabled gozxing one-dimensional
// reader in turn
type ZXing struct {
	readers []gozxing.Reader
	hints   map[gozxing.DecodeHintType]interface{}
	names   map[gozxing.BarcodeFormat]string
}

// NewZXing creates an engine for the given symbologies. Names outside
// ProductFormats are rejected.
func NewZXing(formats []string) (Engine, error) {
	if len(formats) == 0 {
		formats = ProductFormats
	}

	possible := make([]gozxing.BarcodeFormat, 0, len(formats))
	names := make(map[gozxing.BarcodeFormat]string, len(formats))
	enabled := make(map[string]bool, len(formats))
	for _, name := range formats {
		f, ok := zxingFormats[name]
		if !ok {
			return nil, fmt.Errorf("unsupported barcode format: %s", name)
		}
		possible = append(possible, f)
		names[f] = name
		enabled[name] = true
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_POSSIBLE_FORMATS: possible,
		gozxing.DecodeHintType_TRY_HARDER:       true,
	}

	// One combined reader covers the UPC and EAN family
	var readers []gozxing.Reader
	if enabled[FormatUPCA] || enabled[FormatUPCE] || enabled[FormatEAN8] || enabled[FormatEAN13] {
		readers = append(readers, oned.NewMultiFormatUPCEANReader(hints))
	}
	if enabled[FormatCode128] {
		readers = append(readers, oned.NewCode128Reader())
	}
	if enabled[FormatCode39] {
		readers = append(readers, oned.NewCode39Reader())
	}
	if enabled[FormatCode93] {
		readers = append(readers, oned.NewCode93Reader())
	}
	if enabled[FormatCodabar] {
		readers = append(readers, oned.NewCodaBarReader())
	}
	if enabled[FormatITF] {
		readers = append(readers, oned.NewITFReader())
	}

	return &ZXing{
		readers: readers,
		hints:   hints,
		names:   names,
	}, nil
}

// Decode looks for a barcode in the frame
func (z *ZXing) Decode(frame image.Image) (Result, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(frame)
	if err != nil {
		return Result{}, fmt.Errorf("preparing bitmap: %w", err)
	}

	lastErr := errNoBarcode
	for _, reader := range z.readers {
		res, err := reader.Decode(bmp, z.hints)
		reader.Reset()
		if err != nil {
			lastErr = err
			continue
		}

		name, ok := z.names[res.GetBarcodeFormat()]
		if !ok {
			lastErr = fmt.Errorf("format %v not enabled", res.GetBarcodeFormat())
			continue
		}
		return Result{Text: res.GetText(), Format: name}, nil
	}
	return Result{}, lastErr
}

// Close releases the engine
func (z *ZXing) Close() error {
	for _, reader := range z.readers {
		reader.Reset()
	}
	return nil
}
