package tensor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttrString(t *testing.T) {

	a := Attr{
		Index:   0,
		Name:    "images",
		NDims:   4,
		Dims:    [MaxDims]uint32{1, 3, 768, 1280},
		NElems:  3 * 768 * 1280,
		Size:    3 * 768 * 1280,
		Fmt:     NCHW,
		Type:    Int8,
		QntType: QntAffine,
		ZP:      -128,
		Scale:   0.003922,
	}

	s := a.String()

	assert.Contains(t, s, "name=images")
	assert.Contains(t, s, "dims=[1, 3, 768, 1280]")
	assert.Contains(t, s, "fmt=NCHW")
	assert.Contains(t, s, "type=INT8")
	assert.Contains(t, s, "qnt_type=AFFINE")
	assert.Contains(t, s, "zp=-128")
}

func TestAttrShape(t *testing.T) {

	a := Attr{NDims: 3, Dims: [MaxDims]uint32{1, 255, 80}}
	assert.Equal(t, []uint32{1, 255, 80}, a.Shape())

	a.NDims = 40
	assert.Len(t, a.Shape(), MaxDims)
}

func TestEnumStrings(t *testing.T) {

	tests := []struct {
		got  string
		want string
	}{
		{NHWC.String(), "NHWC"},
		{NC1HWC2.String(), "NC1HWC2"},
		{Format(99).String(), "UNKNOW"},
		{Float16.String(), "FP16"},
		{Uint8.String(), "UINT8"},
		{Type(99).String(), "UNKNOW"},
		{QntNone.String(), "NONE"},
		{QntDFP.String(), "DFP"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.got)
	}
}

func TestFloat16ToFloat32(t *testing.T) {

	out := Float16ToFloat32([]uint16{0x3C00, 0xC000, 0x3800, 0x0000})

	assert.Equal(t, []float32{1.0, -2.0, 0.5, 0}, out)
}

func TestDequantize(t *testing.T) {

	out := Dequantize([]int8{-128, 0, 127}, -128, 0.5)

	assert.Equal(t, []float32{0, 64, 127.5}, out)
}

func TestOutputsFreeOnce(t *testing.T) {

	calls := 0
	o := NewOutputs([]Output{{Index: 0}}, func() error {
		calls++
		return nil
	})

	require.False(t, o.Freed())
	require.NoError(t, o.Free())
	require.NoError(t, o.Free())

	assert.True(t, o.Freed())
	assert.Equal(t, 1, calls)
}

func TestOutputsFreeError(t *testing.T) {

	o := NewOutputs(nil, func() error {
		return errors.New("release failed")
	})

	assert.EqualError(t, o.Free(), "release failed")
	// second call is a no-op even after a failed release
	assert.NoError(t, o.Free())

	assert.NoError(t, NewOutputs(nil, nil).Free())
}
