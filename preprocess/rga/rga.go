// Package rga resizes frames with the Rockchip RGA 2D hardware accelerator
// through the im2d API of librga.
package rga

/*
#cgo CFLAGS:   -I/usr/include/rga
#cgo LDFLAGS: -lrga
#include <stdlib.h>
#include <string.h>
#include <im2d.h>
#include <rga.h>

// im2d declares wrapbuffer_virtualaddr, imcheck and imresize as macros over
// functions with default arguments so they are wrapped here for cgo

static rga_buffer_t wrap_virtualaddr(void *vir, int width, int height, int format) {
	return wrapbuffer_virtualaddr(vir, width, height, format);
}

static int check_buffers(rga_buffer_t src, rga_buffer_t dst) {
	im_rect srect;
	im_rect drect;
	memset(&srect, 0, sizeof(srect));
	memset(&drect, 0, sizeof(drect));
	return (int)imcheck(src, dst, srect, drect);
}

static int resize_buffers(rga_buffer_t src, rga_buffer_t dst) {
	return (int)imresize(src, dst);
}

static const char *status_str(int status) {
	return imStrError((IM_STATUS)status);
}
*/
import "C"

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/swdee/go-rknneval"
)

// Status is an IM_STATUS code returned by librga
type Status int

const (
	StatusNoError Status = C.IM_STATUS_NOERROR
	StatusSuccess Status = C.IM_STATUS_SUCCESS
)

// String returns the librga description of the status
func (s Status) String() string {
	return C.GoString(C.status_str(C.int(s)))
}

// ok reports whether the status indicates success
func (s Status) ok() bool {
	return s == StatusNoError || s == StatusSuccess
}

// Scaler resizes packed 24 bit frames using the RGA
type Scaler struct{}

// NewScaler returns a Scaler
func NewScaler() *Scaler {
	return &Scaler{}
}

// rgaFormat maps a PixelFormat to the RK_FORMAT used by librga
func rgaFormat(f rknneval.PixelFormat) (C.int, error) {
	switch f {
	case rknneval.FormatRGB888:
		return C.RK_FORMAT_RGB_888, nil
	case rknneval.FormatBGR888:
		return C.RK_FORMAT_BGR_888, nil
	default:
		return 0, fmt.Errorf("pixel format %s is not supported by RGA", f)
	}
}

// wrap describes frame f as an RGA virtual address buffer.  The caller must
// keep f.Buf pinned for as long as the returned buffer is used
func wrap(name string, f rknneval.Frame) (C.rga_buffer_t, error) {

	var buf C.rga_buffer_t

	format, err := rgaFormat(f.Format)

	if err != nil {
		return buf, err
	}

	if f.Width <= 0 || f.Height <= 0 {
		return buf, fmt.Errorf("%s has invalid dimensions %dx%d", name, f.Width, f.Height)
	}

	if want := f.Width * f.Height * 3; len(f.Buf) < want {
		return buf, fmt.Errorf("%s buffer holds %d bytes, need %d", name, len(f.Buf), want)
	}

	buf = C.wrap_virtualaddr(unsafe.Pointer(&f.Buf[0]),
		C.int(f.Width), C.int(f.Height), format)

	return buf, nil
}

// Check validates the source and destination frames with imcheck
func (s *Scaler) Check(src, dst rknneval.Frame) error {
	return s.call(src, dst, func(sb, db C.rga_buffer_t) C.int {
		return C.check_buffers(sb, db)
	}, "imcheck")
}

// Resize scales src into dst with imresize
func (s *Scaler) Resize(src, dst rknneval.Frame) error {
	return s.call(src, dst, func(sb, db C.rga_buffer_t) C.int {
		return C.resize_buffers(sb, db)
	}, "imresize")
}

// call wraps both frames, pins their Go memory for the duration of fn and
// converts the IM_STATUS result to an error
func (s *Scaler) call(src, dst rknneval.Frame,
	fn func(sb, db C.rga_buffer_t) C.int, op string) error {

	var pinner runtime.Pinner
	defer pinner.Unpin()

	sb, err := wrap("source", src)

	if err != nil {
		return err
	}

	db, err := wrap("destination", dst)

	if err != nil {
		return err
	}

	pinner.Pin(&src.Buf[0])
	pinner.Pin(&dst.Buf[0])

	status := Status(fn(sb, db))

	if !status.ok() {
		return fmt.Errorf("%s failed, status=%d: %s", op, int(status), status)
	}

	return nil
}
