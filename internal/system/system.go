package system

import (
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
)

var (
	ImageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}
	InputExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".pdf"}
)

// NewLogger builds the process logger. Console output is human readable,
// otherwise JSON lines go to w.
func NewLogger(w io.Writer, level string, console bool) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), errors.Wrapf(err, "log level %q", level)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// Usage is a snapshot of this process's resource use.
type Usage struct {
	CPUPercent float64 `msgpack:"cpu_percent" json:"cpu_percent"`
	RSSBytes   uint64  `msgpack:"rss_bytes" json:"rss_bytes"`
}

// CurrentUsage samples CPU and resident memory of the running process.
func CurrentUsage() (Usage, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return Usage{}, errors.Wrap(err, "inspect process")
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		return Usage{}, errors.Wrap(err, "cpu percent")
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return Usage{}, errors.Wrap(err, "memory info")
	}
	return Usage{CPUPercent: cpu, RSSBytes: mem.RSS}, nil
}

// FindLatest returns the most recently modified file in dir with one of the
// given extensions.
func FindLatest(dir string, extensions []string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() || !hasExtension(f.Name(), extensions) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", errors.Errorf("no %s files in %s", strings.Join(extensions, "/"), dir)
	}
	return latestFile, nil
}

// FindLatestInput picks the newest photo or PDF in dir.
func FindLatestInput(dir string) (string, error) {
	return FindLatest(dir, InputExtensions)
}

// FindLatestImage picks the newest image next to path, or inside it when
// path is a directory.
func FindLatestImage(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	searchDir := path
	if !fi.IsDir() {
		searchDir = filepath.Dir(path)
	}
	return FindLatest(searchDir, ImageExtensions)
}

func hasExtension(name string, extensions []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// GetBestH264Encoder prefers hardware encoders reported by ffmpeg:
// VideoToolbox on macOS, then NVENC, then libx264.
func GetBestH264Encoder() string {
	out, err := exec.Command("ffmpeg", "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264"
	}
	return pickEncoder(string(out))
}

func pickEncoder(listing string) string {
	for _, name := range []string{"h264_videotoolbox", "h264_nvenc"} {
		if strings.Contains(listing, name) {
			return name
		}
	}
	return "libx264"
}

// DefaultQuality maps an encoder to a sensible quality setting.
func DefaultQuality(encoder string) int {
	switch encoder {
	case "h264_videotoolbox":
		return 75
	case "h264_nvenc":
		return 28
	default:
		return 23
	}
}
