package imagekit

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
)

// FontResolver supplies font faces at a pixel size. Degraded reports that no
// scalable font could be loaded and faces come from a bitmap fallback.
type FontResolver interface {
	Face(size float64) (font.Face, error)
	Degraded() bool
}

// DefaultFontPaths lists bold sans faces on macOS, Windows and Linux hosts,
// in probe order.
var DefaultFontPaths = []string{
	"/System/Library/Fonts/SF-Pro.ttf",
	"/System/Library/Fonts/SF-Pro-Display.ttf",
	"/System/Library/Fonts/Helvetica.ttc",
	"/Library/Fonts/Arial Unicode MS.ttf",
	"/System/Library/Fonts/PingFang.ttc",
	"/System/Library/Fonts/Hiragino Sans GB.ttc",
	"/System/Library/Fonts/Apple Symbols.ttf",

	"/Windows/Fonts/seguiemj.ttf",
	"/Windows/Fonts/seguisym.ttf",
	"/Windows/Fonts/segoeui.ttf",
	"/Windows/Fonts/calibri.ttf",
	"/Windows/Fonts/arialuni.ttf",

	"/usr/share/fonts/truetype/noto/NotoColorEmoji.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Bold.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",

	"/System/Library/Fonts/Avenir.ttc",
	"/System/Library/Fonts/Futura.ttc",
	"/System/Library/Fonts/Arial Black.ttf",
	"/System/Library/Fonts/Impact.ttf",
	"/Windows/Fonts/arialbd.ttf",
	"/Windows/Fonts/impact.ttf",
	"/System/Library/Fonts/Arial.ttf",
	"/Windows/Fonts/arial.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

// PathResolver loads the first font in Paths that parses. The probe runs
// once; later calls reuse the parsed font.
type PathResolver struct {
	Paths []string
	// Fallback is used when no path loads. Nil means basicfont.Face7x13.
	Fallback font.Face

	once   sync.Once
	parsed *opentype.Font
	path   string
}

func NewPathResolver(paths ...string) *PathResolver {
	return &PathResolver{Paths: paths}
}

func (r *PathResolver) load() {
	r.once.Do(func() {
		for _, p := range r.Paths {
			data, err := os.ReadFile(p)
			if err != nil {
				continue
			}
			f, err := parseFont(data)
			if err != nil {
				continue
			}
			r.parsed, r.path = f, p
			return
		}
	})
}

func (r *PathResolver) Face(size float64) (font.Face, error) {
	r.load()
	if r.parsed == nil {
		if r.Fallback != nil {
			return r.Fallback, nil
		}
		return basicfont.Face7x13, nil
	}
	return newFace(r.parsed, size)
}

func (r *PathResolver) Degraded() bool {
	r.load()
	return r.parsed == nil
}

// Path returns the font file in use, or "" when degraded.
func (r *PathResolver) Path() string {
	r.load()
	return r.path
}

// EmbeddedResolver serves the Go Bold face compiled into the binary. It never
// touches the filesystem, so output is identical on every host.
type EmbeddedResolver struct {
	once   sync.Once
	parsed *opentype.Font
	err    error
}

func (r *EmbeddedResolver) Face(size float64) (font.Face, error) {
	r.once.Do(func() {
		r.parsed, r.err = opentype.Parse(gobold.TTF)
		if r.err != nil {
			r.err = fmt.Errorf("parse embedded font: %w", r.err)
		}
	})
	if r.err != nil {
		return nil, r.err
	}
	return newFace(r.parsed, size)
}

func (r *EmbeddedResolver) Degraded() bool { return false }

// parseFont accepts a single TTF/OTF font or the first face of a TTC
// collection.
func parseFont(data []byte) (*opentype.Font, error) {
	if bytes.HasPrefix(data, []byte("ttcf")) {
		c, err := opentype.ParseCollection(data)
		if err != nil {
			return nil, err
		}
		if c.NumFonts() == 0 {
			return nil, fmt.Errorf("empty font collection")
		}
		return c.Font(0)
	}
	return opentype.Parse(data)
}

func newFace(f *opentype.Font, size float64) (font.Face, error) {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	return face, nil
}
