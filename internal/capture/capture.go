// Package capture writes screen captures to the local screenshot spool.
package capture

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/kbinani/screenshot"
	"github.com/zulandar/timedock/internal/config"
)

// Shot is one captured display image written to disk.
type Shot struct {
	FilePath string
	Display  int
}

// Capturer is the screen-capture boundary. Capture failures never block
// sample persistence; callers log and move on.
type Capturer interface {
	Capture() ([]Shot, error)
}

// ScreenCapturer captures displays with the kbinani/screenshot backend
// and writes PNG files into Dir.
type ScreenCapturer struct {
	Dir  string
	Mode string // config.MonitorAll or config.MonitorActiveOnly
}

// NewScreenCapturer creates a capturer writing into dir.
func NewScreenCapturer(dir, mode string) (*ScreenCapturer, error) {
	if dir == "" {
		return nil, fmt.Errorf("capture: dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("capture: create dir %s: %w", dir, err)
	}
	return &ScreenCapturer{Dir: dir, Mode: mode}, nil
}

// Capture grabs every active display (or only the primary one in
// active-only mode) and returns the written files.
func (c *ScreenCapturer) Capture() ([]Shot, error) {
	n := screenshot.NumActiveDisplays()
	if n <= 0 {
		return nil, fmt.Errorf("capture: no active displays")
	}
	if c.Mode == config.MonitorActiveOnly {
		n = 1
	}

	var shots []Shot
	for i := 0; i < n; i++ {
		bounds := screenshot.GetDisplayBounds(i)
		img, err := screenshot.CaptureRect(bounds)
		if err != nil {
			return shots, fmt.Errorf("capture: display %d: %w", i, err)
		}

		path := filepath.Join(c.Dir, fmt.Sprintf("%s-display%d.png", uuid.NewString(), i))
		f, err := os.Create(path)
		if err != nil {
			return shots, fmt.Errorf("capture: create %s: %w", path, err)
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			os.Remove(path)
			return shots, fmt.Errorf("capture: encode %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return shots, fmt.Errorf("capture: close %s: %w", path, err)
		}
		shots = append(shots, Shot{FilePath: path, Display: i})
	}
	return shots, nil
}
