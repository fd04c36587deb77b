package imagekit

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"carouselbot/pkg/imagekit/jpegx"
)

// Quality is the JPEG quality every output frame is encoded with.
const Quality = 90

// Background is the colour transparent pixels are flattened onto.
var Background = color.White

// decode reads any registered raster format into an opaque NRGBA buffer.
func decode(data []byte) (*image.NRGBA, error) {
	if len(data) == 0 {
		return nil, malformed(errors.New("empty input"))
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, malformed(err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, malformed(fmt.Errorf("zero-sized image %dx%d", b.Dx(), b.Dy()))
	}
	return flatten(img), nil
}

// flatten composites img over Background, using alpha as the blend weight.
// Opaque sources are copied unchanged.
func flatten(img image.Image) *image.NRGBA {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return imaging.Clone(img)
	}
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), Background)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

// encode writes img as a baseline 4:4:4 JPEG using the web_high tables and
// optimised Huffman coding.
func encode(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	err := jpegx.Encode(&buf, img, &jpegx.Options{
		Quality:         quality,
		Tables:          &jpegx.WebHigh,
		OptimizeHuffman: true,
	})
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
