package tensor

import "github.com/x448/float16"

var f16LookupTable [65536]float32

func init() {
	// precompute float16 lookup table for faster conversion to float32
	for i := range f16LookupTable {
		f16 := float16.Frombits(uint16(i))
		f16LookupTable[i] = f16.Float32()
	}
}

// Float16ToFloat32 converts a buffer of IEEE 754 half precision values to
// float32 as Go has no native FP16 type
func Float16ToFloat32(buf []uint16) []float32 {

	out := make([]float32, len(buf))

	for i, val := range buf {
		out[i] = f16LookupTable[val]
	}

	return out
}

// DeqntAffineToF32 converts a quantized int8 value back to a float32 using
// the provided zero point and scale
func DeqntAffineToF32(qnt int8, zp int32, scale float32) float32 {
	return (float32(qnt) - float32(zp)) * scale
}

// Dequantize converts a quantized int8 buffer to float32 values
func Dequantize(buf []int8, zp int32, scale float32) []float32 {

	out := make([]float32, len(buf))

	for i, v := range buf {
		out[i] = DeqntAffineToF32(v, zp, scale)
	}

	return out
}
