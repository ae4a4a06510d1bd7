// Package source provides the frames a session renders: a single photo, a
// looping directory of frames, PDF pages or an in-memory image.
package source

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gen2brain/go-fitz"
	"github.com/pkg/errors"

	"github.com/ivlev/tryon/internal/asset"
)

const DefaultDPI = 96

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// Source yields frames. Live sources produce a new frame per tick; still
// sources are rendered once.
type Source interface {
	Frame(ctx context.Context) (image.Image, error)
	Live() bool
	Close() error
}

// Open picks a source for path: a directory becomes a looping sequence, a
// PDF renders its pages, anything else is decoded as a single image.
func Open(path string, dpi int) (Source, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return NewSequenceSource(path)
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".pdf":
		return NewPDFSource(path, dpi)
	case isImage(ext):
		return NewImageSource(path)
	default:
		return nil, errors.Errorf("unsupported input %s", path)
	}
}

func isImage(ext string) bool {
	for _, e := range imageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func decodeFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := asset.Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return img, nil
}

// ImageSource is a single photo.
type ImageSource struct {
	path string
	img  image.Image
}

func NewImageSource(path string) (*ImageSource, error) {
	img, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	return &ImageSource{path: path, img: img}, nil
}

func (s *ImageSource) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.img, nil
}

func (s *ImageSource) Live() bool { return false }

func (s *ImageSource) Close() error { return nil }

// SequenceSource loops over the images of a directory in name order.
type SequenceSource struct {
	mu    sync.Mutex
	paths []string
	next  int
}

func NewSequenceSource(dir string) (*SequenceSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		if !entry.IsDir() && isImage(strings.ToLower(filepath.Ext(entry.Name()))) {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, errors.Errorf("no images in %s", dir)
	}
	sort.Strings(paths)
	return &SequenceSource{paths: paths}, nil
}

func (s *SequenceSource) Len() int { return len(s.paths) }

func (s *SequenceSource) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	path := s.paths[s.next%len(s.paths)]
	s.next++
	s.mu.Unlock()
	return decodeFile(path)
}

func (s *SequenceSource) Live() bool { return true }

func (s *SequenceSource) Close() error { return nil }

// PDFSource renders document pages, one per frame, looping at the end.
type PDFSource struct {
	mu   sync.Mutex
	doc  *fitz.Document
	dpi  int
	next int
}

func NewPDFSource(path string, dpi int) (*PDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open pdf %s", path)
	}
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &PDFSource{doc: doc, dpi: dpi}, nil
}

func (p *PDFSource) PageCount() int {
	return p.doc.NumPage()
}

func (p *PDFSource) RenderPage(index int) (image.Image, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.ImageDPI(index, float64(p.dpi))
}

func (p *PDFSource) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := p.PageCount()
	if n == 0 {
		return nil, errors.New("pdf has no pages")
	}
	p.mu.Lock()
	index := p.next % n
	p.next++
	p.mu.Unlock()
	return p.RenderPage(index)
}

// Live reports whether the document has more than one page to cycle.
func (p *PDFSource) Live() bool { return p.PageCount() > 1 }

func (p *PDFSource) Close() error {
	return p.doc.Close()
}

// Static serves one in-memory image.
type Static struct {
	Image  image.Image
	IsLive bool
	closed bool
	mu     sync.Mutex
}

func NewStatic(img image.Image, live bool) *Static {
	return &Static{Image: img, IsLive: live}
}

func (s *Static) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("source closed")
	}
	return s.Image, nil
}

func (s *Static) Live() bool { return s.IsLive }

func (s *Static) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (s *Static) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
