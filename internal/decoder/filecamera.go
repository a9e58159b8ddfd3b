package decoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// FileCamera replays still images and PDF pages from disk as a camera feed.
// The path may be a single file or a directory; every image or PDF page is one
// frame and the last frame keeps repeating, like a camera held still.
type FileCamera struct {
	path string
}

// NewFileCamera creates a new FileCamera reading from path
func NewFileCamera(path string) *FileCamera {
	return &FileCamera{path: path}
}

// Open loads all frames from disk
func (c *FileCamera) Open(ctx context.Context, constraints Constraints) (Stream, error) {
	slog.Debug("Opening file camera", "path", c.path, "facing", constraints.Facing)

	files, err := c.files()
	if err != nil {
		return nil, err
	}

	var frames []image.Image
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, openError(err)
		}
		decoded, err := decodeFrames(data, filepath.Ext(file))
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", file, err)
		}
		frames = append(frames, decoded...)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames found in %s", c.path)
	}

	return &fileStream{frames: frames}, nil
}

// files lists the frame sources in name order
func (c *FileCamera) files() ([]string, error) {
	info, err := os.Stat(c.path)
	if err != nil {
		return nil, openError(err)
	}
	if !info.IsDir() {
		return []string{c.path}, nil
	}

	entries, err := os.ReadDir(c.path)
	if err != nil {
		return nil, openError(err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !isFrameFile(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(c.path, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func openError(err error) error {
	if errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return fmt.Errorf("opening camera source: %w", err)
}

func isFrameFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".heic", ".heif", ".pdf":
		return true
	}
	return false
}

// decodeFrames turns file contents into one or more frames
func decodeFrames(data []byte, ext string) ([]image.Image, error) {
	ext = strings.ToLower(ext)
	if ext == ".pdf" {
		return pdfFrames(data)
	}
	img, err := decodeImage(data)
	if err != nil {
		return nil, err
	}
	return []image.Image{img}, nil
}

// pdfFrames renders every page of a PDF
func pdfFrames(data []byte) ([]image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	frames := make([]image.Image, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		img, err := doc.Image(i)
		if err != nil {
			return nil, fmt.Errorf("rendering PDF page %d: %w", i, err)
		}
		frames = append(frames, img)
	}
	return frames, nil
}

// decodeImage decodes JPEG, PNG, GIF and HEIC/HEIF images
func decodeImage(data []byte) (image.Image, error) {
	// Go's standard image package doesn't support HEIC (common on iPhones)
	if isHEICFormat(data) {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// isHEICFormat checks for an ftyp box with a HEIC-related brand
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

type fileStream struct {
	mu     sync.Mutex
	frames []image.Image
	next   int
	closed bool
}

func (s *fileStream) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStreamEnded
	}
	frame := s.frames[s.next]
	if s.next < len(s.frames)-1 {
		s.next++
	}
	return frame, nil
}

func (s *fileStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.frames = nil
	return nil
}
