// Package jpegx is a baseline JPEG encoder with the knobs image/jpeg does not
// expose: 4:4:4 sampling, caller-supplied quantisation tables and optimised
// Huffman tables.
package jpegx

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"math/bits"
)

// DefaultQuality matches image/jpeg.
const DefaultQuality = 75

const (
	soiMarker  = 0xd8
	eoiMarker  = 0xd9
	app0Marker = 0xe0
	sof0Marker = 0xc0 // Start Of Frame (Baseline Sequential).
	dhtMarker  = 0xc4 // Define Huffman Table.
	dqtMarker  = 0xdb // Define Quantization Table.
	sosMarker  = 0xda
)

// Options configures Encode.
type Options struct {
	// Quality ranges from 1 to 100. Zero means DefaultQuality.
	Quality int
	// Tables, when set, are scaled linearly by Quality percent. Nil selects
	// the Annex K tables scaled along the IJG quality curve.
	Tables *QuantTables
	// OptimizeHuffman derives per-image Huffman tables in a second pass
	// instead of using the Annex K defaults.
	OptimizeHuffman bool
}

// block holds quantised coefficients in zig-zag order.
type block [blockSize]int16

// Encode writes m to w as a baseline, 4:4:4 YCbCr JPEG. Alpha is ignored;
// callers flatten transparent images first.
func Encode(w io.Writer, m image.Image, o *Options) error {
	b := m.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 || b.Dx() >= 1<<16 || b.Dy() >= 1<<16 {
		return fmt.Errorf("jpegx: invalid image size %dx%d", b.Dx(), b.Dy())
	}

	opts := Options{}
	if o != nil {
		opts = *o
	}
	if opts.Quality == 0 {
		opts.Quality = DefaultQuality
	}

	var quant QuantTables
	if opts.Tables != nil {
		quant = scaleLinear(*opts.Tables, clampQuality(opts.Quality))
	} else {
		quant = scaleIJG(AnnexK, opts.Quality)
	}

	blocks := transform(m, &quant)

	specs := standardHuffman
	if opts.OptimizeHuffman {
		var freq [nTables][256]int
		walk(blocks, func(table int, sym byte, _ uint32, _ int) {
			freq[table][sym]++
		})
		for t := range specs {
			specs[t] = optimalSpec(&freq[t])
		}
	}

	var luts [nTables]huffmanLUT
	for t := range specs {
		lut, err := specs[t].lut()
		if err != nil {
			return fmt.Errorf("jpegx: %w", err)
		}
		luts[t] = lut
	}

	e := &encoder{w: bufio.NewWriter(w)}
	e.writeMarker(soiMarker)
	e.writeAPP0()
	e.writeDQT(&quant)
	e.writeSOF0(b.Size())
	e.writeDHT(&specs)
	e.writeSOS()
	walk(blocks, func(table int, sym byte, extra uint32, nExtra int) {
		code := luts[table][sym]
		e.emit(code&(1<<24-1), code>>24)
		if nExtra > 0 {
			e.emit(extra, uint32(nExtra))
		}
	})
	// Pad the last byte with 1s.
	e.emit(0x7f, 7)
	e.writeMarker(eoiMarker)
	if e.err != nil {
		return e.err
	}
	return e.w.Flush()
}

type encoder struct {
	w     *bufio.Writer
	err   error
	bits  uint32
	nBits uint32
	buf   [16]byte
}

func (e *encoder) write(p []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(p)
}

func (e *encoder) writeByte(b byte) {
	if e.err != nil {
		return
	}
	e.err = e.w.WriteByte(b)
}

// emit appends the low nBits of bits to the entropy-coded segment, stuffing
// a zero after every 0xff byte.
func (e *encoder) emit(bits, nBits uint32) {
	nBits += e.nBits
	bits <<= 32 - nBits
	bits |= e.bits
	for nBits >= 8 {
		b := uint8(bits >> 24)
		e.writeByte(b)
		if b == 0xff {
			e.writeByte(0x00)
		}
		bits <<= 8
		nBits -= 8
	}
	e.bits, e.nBits = bits, nBits
}

func (e *encoder) writeMarker(marker byte) {
	e.buf[0] = 0xff
	e.buf[1] = marker
	e.write(e.buf[:2])
}

// writeMarkerHeader writes a marker and its segment length, which counts
// the two length bytes themselves.
func (e *encoder) writeMarkerHeader(marker byte, markerlen int) {
	e.buf[0] = 0xff
	e.buf[1] = marker
	e.buf[2] = uint8(markerlen >> 8)
	e.buf[3] = uint8(markerlen & 0xff)
	e.write(e.buf[:4])
}

func (e *encoder) writeAPP0() {
	e.writeMarkerHeader(app0Marker, 16)
	e.write([]byte{
		'J', 'F', 'I', 'F', 0x00,
		0x01, 0x01, // version 1.01
		0x00,       // aspect-ratio units
		0x00, 0x01, // x density
		0x00, 0x01, // y density
		0x00, 0x00, // no thumbnail
	})
}

func (e *encoder) writeDQT(q *QuantTables) {
	e.writeMarkerHeader(dqtMarker, 2+len(q)*(1+blockSize))
	for i := range q {
		e.writeByte(uint8(i))
		for k := 0; k < blockSize; k++ {
			e.writeByte(q[i][unzig[k]])
		}
	}
}

func (e *encoder) writeSOF0(size image.Point) {
	e.writeMarkerHeader(sof0Marker, 8+3*3)
	e.write([]byte{
		8, // 8-bit samples
		uint8(size.Y >> 8), uint8(size.Y & 0xff),
		uint8(size.X >> 8), uint8(size.X & 0xff),
		3,
		// Component ID, sampling factors (1x1 for 4:4:4), quant table.
		1, 0x11, 0,
		2, 0x11, 1,
		3, 0x11, 1,
	})
}

func (e *encoder) writeDHT(specs *[nTables]huffmanSpec) {
	classID := [nTables]byte{0x00, 0x10, 0x01, 0x11}
	markerlen := 2
	for _, s := range specs {
		markerlen += 1 + 16 + len(s.value)
	}
	e.writeMarkerHeader(dhtMarker, markerlen)
	for i, s := range specs {
		e.writeByte(classID[i])
		e.write(s.count[:])
		e.write(s.value)
	}
}

func (e *encoder) writeSOS() {
	e.writeMarkerHeader(sosMarker, 6+2*3)
	e.write([]byte{
		3,
		1, 0x00, // Y: DC table 0, AC table 0
		2, 0x11, // Cb: DC table 1, AC table 1
		3, 0x11, // Cr
		0x00, 0x3f, // spectral selection
		0x00, // successive approximation
	})
}

type emitFunc func(table int, sym byte, extra uint32, nExtra int)

// walk produces the entropy-coding symbols for blocks, which are laid out
// Y, Cb, Cr per MCU.
func walk(blocks []block, emit emitFunc) {
	var prevDC [3]int32
	for i := range blocks {
		c := i % 3
		dcTable, acTable := tableDCLuma, tableACLuma
		if c > 0 {
			dcTable, acTable = tableDCChroma, tableACChroma
		}
		blk := &blocks[i]

		dc := int32(blk[0])
		size, extra := category(dc - prevDC[c])
		prevDC[c] = dc
		emit(dcTable, byte(size), extra, size)

		run := 0
		for k := 1; k < blockSize; k++ {
			v := int32(blk[k])
			if v == 0 {
				run++
				continue
			}
			for run > 15 {
				emit(acTable, 0xf0, 0, 0)
				run -= 16
			}
			size, extra := category(v)
			emit(acTable, byte(run<<4|size), extra, size)
			run = 0
		}
		if run > 0 {
			emit(acTable, 0x00, 0, 0)
		}
	}
}

// category returns the magnitude category of v and its additional bits.
func category(v int32) (int, uint32) {
	a := v
	if a < 0 {
		a = -v
		v--
	}
	n := bits.Len32(uint32(a))
	return n, uint32(v) & (1<<n - 1)
}

var dctCos [8][8]float64

func init() {
	for u := 0; u < 8; u++ {
		c := 1.0
		if u == 0 {
			c = 1 / math.Sqrt2
		}
		for x := 0; x < 8; x++ {
			dctCos[u][x] = c / 2 * math.Cos(float64(2*x+1)*float64(u)*math.Pi/16)
		}
	}
}

// fdct is a separable forward DCT-II over a level-shifted 8x8 block in
// natural order.
func fdct(p *[blockSize]float64) {
	var tmp [blockSize]float64
	for y := 0; y < 8; y++ {
		for u := 0; u < 8; u++ {
			s := 0.0
			for x := 0; x < 8; x++ {
				s += dctCos[u][x] * p[y*8+x]
			}
			tmp[y*8+u] = s
		}
	}
	for u := 0; u < 8; u++ {
		for v := 0; v < 8; v++ {
			s := 0.0
			for y := 0; y < 8; y++ {
				s += dctCos[v][y] * tmp[y*8+u]
			}
			p[v*8+u] = s
		}
	}
}

// transform converts m to YCbCr planes and returns the quantised blocks.
// Partial edge blocks replicate the last row and column.
func transform(m image.Image, q *QuantTables) []block {
	w, h := m.Bounds().Dx(), m.Bounds().Dy()
	planes := toYCbCr(m)

	mcuX, mcuY := (w+7)/8, (h+7)/8
	blocks := make([]block, mcuX*mcuY*3)
	var px [blockSize]float64
	for my := 0; my < mcuY; my++ {
		for mx := 0; mx < mcuX; mx++ {
			for c := 0; c < 3; c++ {
				plane := planes[c]
				for y := 0; y < 8; y++ {
					sy := min(my*8+y, h-1)
					row := plane[sy*w : sy*w+w]
					for x := 0; x < 8; x++ {
						sx := min(mx*8+x, w-1)
						px[y*8+x] = float64(row[sx]) - 128
					}
				}
				fdct(&px)

				table := &q[0]
				if c > 0 {
					table = &q[1]
				}
				blk := &blocks[(my*mcuX+mx)*3+c]
				for k := 0; k < blockSize; k++ {
					n := unzig[k]
					v := math.Round(px[n] / float64(table[n]))
					blk[k] = int16(max(min(v, math.MaxInt16), math.MinInt16))
				}
			}
		}
	}
	return blocks
}

func toYCbCr(m image.Image) [3][]uint8 {
	b := m.Bounds()
	w, h := b.Dx(), b.Dy()
	var planes [3][]uint8
	for c := range planes {
		planes[c] = make([]uint8, w*h)
	}

	set := func(i int, r, g, bl uint8) {
		yy, cb, cr := color.RGBToYCbCr(r, g, bl)
		planes[0][i], planes[1][i], planes[2][i] = yy, cb, cr
	}

	switch src := m.(type) {
	case *image.NRGBA:
		for y := 0; y < h; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+w*4]
			for x := 0; x < w; x++ {
				set(y*w+x, row[x*4], row[x*4+1], row[x*4+2])
			}
		}
	case *image.RGBA:
		for y := 0; y < h; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+w*4]
			for x := 0; x < w; x++ {
				set(y*w+x, row[x*4], row[x*4+1], row[x*4+2])
			}
		}
	default:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, bl, _ := m.At(b.Min.X+x, b.Min.Y+y).RGBA()
				set(y*w+x, uint8(r>>8), uint8(g>>8), uint8(bl>>8))
			}
		}
	}
	return planes
}
