package jpegx

import (
	"fmt"
)

// huffmanLUT maps a symbol to its code, packed as length<<24 | code.
type huffmanLUT [256]uint32

func (s *huffmanSpec) lut() (huffmanLUT, error) {
	var lut huffmanLUT
	code, k := uint32(0), 0
	for i := 0; i < 16; i++ {
		nBits := uint32(i+1) << 24
		for j := 0; j < int(s.count[i]); j++ {
			if k >= len(s.value) {
				return lut, fmt.Errorf("huffman table: count exceeds %d values", len(s.value))
			}
			lut[s.value[k]] = nBits | code
			code++
			k++
		}
		code <<= 1
	}
	return lut, nil
}

// optimalSpec builds a length-limited Huffman table for the observed symbol
// frequencies, following ITU-T T.81 section K.2.
func optimalSpec(freq *[256]int) huffmanSpec {
	var (
		f        [257]int
		codeSize [257]int
		others   [257]int
	)
	copy(f[:256], freq[:])
	// A reserved symbol guarantees that no real code is all ones.
	f[256] = 1
	for i := range others {
		others[i] = -1
	}

	for {
		v1, v2 := -1, -1
		for i := 0; i < 257; i++ {
			if f[i] > 0 && (v1 < 0 || f[i] <= f[v1]) {
				v1 = i
			}
		}
		for i := 0; i < 257; i++ {
			if i != v1 && f[i] > 0 && (v2 < 0 || f[i] <= f[v2]) {
				v2 = i
			}
		}
		if v2 < 0 {
			break
		}

		f[v1] += f[v2]
		f[v2] = 0

		codeSize[v1]++
		for others[v1] >= 0 {
			v1 = others[v1]
			codeSize[v1]++
		}
		others[v1] = v2

		codeSize[v2]++
		for others[v2] >= 0 {
			v2 = others[v2]
			codeSize[v2]++
		}
	}

	var bits [258]int
	for i := 0; i < 257; i++ {
		if codeSize[i] > 0 {
			bits[codeSize[i]]++
		}
	}

	for i := len(bits) - 1; i > 16; i-- {
		for bits[i] > 0 {
			j := i - 2
			for bits[j] == 0 {
				j--
			}
			bits[i] -= 2
			bits[i-1]++
			bits[j+1] += 2
			bits[j]--
		}
	}

	// Drop the reserved symbol from the longest code length.
	i := 16
	for i > 0 && bits[i] == 0 {
		i--
	}
	if i == 0 {
		return huffmanSpec{}
	}
	bits[i]--

	var spec huffmanSpec
	for l := 1; l <= 16; l++ {
		spec.count[l-1] = byte(bits[l])
	}
	for l := 1; l < len(bits); l++ {
		for sym := 0; sym < 256; sym++ {
			if codeSize[sym] == l {
				spec.value = append(spec.value, byte(sym))
			}
		}
	}
	return spec
}
