package imagekit

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Geometry is an output frame size in pixels.
type Geometry struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// DefaultGeometry is the 9:16 portrait frame.
var DefaultGeometry = Geometry{Width: 1080, Height: 1920}

func (g Geometry) valid() bool { return g.Width > 0 && g.Height > 0 }

func (g Geometry) String() string { return fmt.Sprintf("%dx%d", g.Width, g.Height) }

// Normalizer converts arbitrary rasters into opaque, frame-filling JPEGs.
type Normalizer struct {
	quality int
}

func NewNormalizer(quality int) *Normalizer {
	if quality <= 0 || quality > 100 {
		quality = Quality
	}
	return &Normalizer{quality: quality}
}

var defaultNormalizer = NewNormalizer(Quality)

// NormalizeFormat re-encodes data as an opaque JPEG, flattening any alpha
// onto white.
func (n *Normalizer) NormalizeFormat(data []byte) ([]byte, error) {
	img, err := decode(data)
	if err != nil {
		return nil, err
	}
	return encode(img, n.quality)
}

// ResizeToFrame scales data to cover target and centre-crops the overflow,
// so the result is exactly target with no padding.
func (n *Normalizer) ResizeToFrame(data []byte, target Geometry) ([]byte, error) {
	if !target.valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidGeometry, target)
	}
	img, err := decode(data)
	if err != nil {
		return nil, err
	}
	return encode(FitFrame(img, target), n.quality)
}

// FitFrame is the in-memory form of ResizeToFrame. target must be valid.
// Only the part of the source that lands in the frame is resampled, so
// memory is bounded by the source and the target, whatever the aspect ratio.
func FitFrame(img image.Image, target Geometry) *image.NRGBA {
	b := img.Bounds()
	src := sourceRect(b.Dx(), b.Dy(), target).Add(b.Min)
	return imaging.Resize(imaging.Crop(img, src), target.Width, target.Height, imaging.Lanczos)
}

// sourceRect maps the coverCrop window back onto the unscaled source. The
// window is widened to whole source pixels and is never empty.
func sourceRect(w, h int, target Geometry) image.Rectangle {
	scaled, crop := coverCrop(w, h, target)
	x0, x1 := span(crop.Min.X, crop.Max.X, w, scaled.Width)
	y0, y1 := span(crop.Min.Y, crop.Max.Y, h, scaled.Height)
	return image.Rect(x0, y0, x1, y1)
}

// span converts [lo, hi) in a scaled axis of length scaled to the source
// axis of length n.
func span(lo, hi, n, scaled int) (int, int) {
	a := int(int64(lo) * int64(n) / int64(scaled))
	b := int((int64(hi)*int64(n) + int64(scaled) - 1) / int64(scaled))
	b = min(b, n)
	if b <= a {
		a = min(a, n-1)
		b = a + 1
	}
	return a, b
}

// coverCrop returns the scaled source size and the crop rectangle within it.
// Ratios are compared by cross-multiplication so equal aspect ratios take the
// scale-to-width branch exactly. Odd margins drop the extra pixel on the
// right or bottom.
func coverCrop(w, h int, target Geometry) (Geometry, image.Rectangle) {
	tw, th := target.Width, target.Height
	if int64(w)*int64(th) > int64(tw)*int64(h) {
		newW := int(int64(w) * int64(th) / int64(h))
		newW = max(newW, tw)
		left := (newW - tw) / 2
		return Geometry{newW, th}, image.Rect(left, 0, left+tw, th)
	}
	newH := int(int64(h) * int64(tw) / int64(w))
	newH = max(newH, th)
	top := (newH - th) / 2
	return Geometry{tw, newH}, image.Rect(0, top, tw, top+th)
}

// NormalizeFormat uses a normalizer at the default quality.
func NormalizeFormat(data []byte) ([]byte, error) {
	return defaultNormalizer.NormalizeFormat(data)
}

// ResizeToFrame uses a normalizer at the default quality.
func ResizeToFrame(data []byte, target Geometry) ([]byte, error) {
	return defaultNormalizer.ResizeToFrame(data, target)
}
