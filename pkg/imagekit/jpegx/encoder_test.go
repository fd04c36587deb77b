package jpegx

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

// segment returns the payload of the first marker segment of the given type.
func segment(t *testing.T, data []byte, marker byte) []byte {
	t.Helper()
	i := 2
	for i+4 <= len(data) {
		require.Equal(t, byte(0xff), data[i], "expected marker at offset %d", i)
		m := data[i+1]
		n := int(binary.BigEndian.Uint16(data[i+2:]))
		if m == marker {
			return data[i+4 : i+2+n]
		}
		if m == sosMarker {
			break
		}
		i += 2 + n
	}
	t.Fatalf("marker 0x%x not found", marker)
	return nil
}

func TestEncode_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		opts *Options
	}{
		{"defaults", nil},
		{"annex k q90", &Options{Quality: 90}},
		{"web high optimised", &Options{Quality: 90, Tables: &WebHigh, OptimizeHuffman: true}},
		{"low quality optimised", &Options{Quality: 5, OptimizeHuffman: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := gradient(37, 21)
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, src, tt.opts))

			got, err := jpeg.Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, src.Bounds(), got.Bounds())
		})
	}
}

func TestEncode_HighQualityIsClose(t *testing.T) {
	src := gradient(64, 64)
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, src, &Options{Quality: 90, Tables: &WebHigh, OptimizeHuffman: true}))

	got, err := jpeg.Decode(&buf)
	require.NoError(t, err)

	var maxDiff int
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			r0, g0, b0, _ := src.At(x, y).RGBA()
			r1, g1, b1, _ := got.At(x, y).RGBA()
			for _, d := range []int{int(r0>>8) - int(r1>>8), int(g0>>8) - int(g1>>8), int(b0>>8) - int(b1>>8)} {
				if d < 0 {
					d = -d
				}
				maxDiff = max(maxDiff, d)
			}
		}
	}
	assert.LessOrEqual(t, maxDiff, 12)
}

func TestEncode_FullChromaSampling(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, gradient(16, 16), &Options{Quality: 90}))

	sof := segment(t, buf.Bytes(), sof0Marker)
	require.Len(t, sof, 15)
	assert.Equal(t, byte(3), sof[5])
	for c := 0; c < 3; c++ {
		assert.Equal(t, byte(0x11), sof[6+c*3+1], "component %d sampling", c)
	}

	got, err := jpeg.Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	ycc, ok := got.(*image.YCbCr)
	require.True(t, ok)
	assert.Equal(t, image.YCbCrSubsampleRatio444, ycc.SubsampleRatio)
}

func TestEncode_PresetScaledLinearly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, gradient(8, 8), &Options{Quality: 90, Tables: &WebHigh}))

	dqt := segment(t, buf.Bytes(), dqtMarker)
	require.Len(t, dqt, 2*65)
	want := scaleLinear(WebHigh, 90)
	for i := 0; i < 2; i++ {
		assert.Equal(t, byte(i), dqt[i*65])
		for k := 0; k < blockSize; k++ {
			assert.Equal(t, want[i][unzig[k]], dqt[i*65+1+k])
		}
	}
	// 6*0.9 rounds to 5.
	assert.Equal(t, uint8(5), want[0][0])
}

func TestEncode_RejectsEmpty(t *testing.T) {
	err := Encode(&bytes.Buffer{}, image.NewNRGBA(image.Rect(0, 0, 0, 5)), nil)
	assert.Error(t, err)
}

func TestScaleIJG(t *testing.T) {
	q := scaleIJG(AnnexK, 50)
	assert.Equal(t, AnnexK, q)

	q = scaleIJG(AnnexK, 100)
	for i := range q {
		for _, v := range q[i] {
			assert.Equal(t, uint8(1), v)
		}
	}
}

func TestStandardHuffmanTables(t *testing.T) {
	for i, spec := range standardHuffman {
		var n int
		for _, c := range spec.count {
			n += int(c)
		}
		assert.Equal(t, len(spec.value), n, "table %d", i)
		_, err := spec.lut()
		assert.NoError(t, err)
	}
	assert.Len(t, standardHuffman[tableACLuma].value, 162)
	assert.Len(t, standardHuffman[tableACChroma].value, 162)
}

func TestOptimalSpec(t *testing.T) {
	t.Run("skewed frequencies stay within 16 bits", func(t *testing.T) {
		var freq [256]int
		f := 1
		for i := 0; i < 40; i++ {
			freq[i] = f
			if f < 1<<24 {
				f *= 2
			}
		}
		spec := optimalSpec(&freq)

		var n int
		for _, c := range spec.count {
			n += int(c)
		}
		assert.Equal(t, 40, n)
		assert.Len(t, spec.value, 40)

		lut, err := spec.lut()
		require.NoError(t, err)
		for i := 0; i < 40; i++ {
			length := lut[i] >> 24
			assert.True(t, length >= 1 && length <= 16, "symbol %d has length %d", i, length)
			code := lut[i] & (1<<24 - 1)
			assert.NotEqual(t, uint32(1)<<length-1, code, "symbol %d is all ones", i)
		}
	})

	t.Run("single symbol", func(t *testing.T) {
		var freq [256]int
		freq[7] = 10
		spec := optimalSpec(&freq)
		assert.Equal(t, []byte{7}, spec.value)
		assert.Equal(t, byte(1), spec.count[0])
	})

	t.Run("no symbols", func(t *testing.T) {
		var freq [256]int
		spec := optimalSpec(&freq)
		assert.Empty(t, spec.value)
	})
}

func TestCategory(t *testing.T) {
	tests := []struct {
		v     int32
		size  int
		extra uint32
	}{
		{0, 0, 0},
		{1, 1, 1},
		{-1, 1, 0},
		{3, 2, 3},
		{-3, 2, 0},
		{-2, 2, 1},
		{255, 8, 255},
		{-255, 8, 0},
	}
	for _, tt := range tests {
		size, extra := category(tt.v)
		assert.Equal(t, tt.size, size, "v=%d", tt.v)
		assert.Equal(t, tt.extra, extra, "v=%d", tt.v)
	}
}
