// Package rknn provides the cgo bindings to the RKNN Toolkit2 runtime
// (librknnrt) used to run a compiled model on the Rockchip NPU.  Runtime
// satisfies the rknneval.Session interface.
package rknn

/*
#cgo LDFLAGS: -lrknnrt
#include "rknn_api.h"
#include <stdlib.h>
*/
import "C"
import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/swdee/go-rknneval/tensor"
)

// CoreMask wraps C.rknn_core_mask
type CoreMask int

// rknn_core_mask values used to target which cores on the NPU the model is run
// on. The rk3588 has three cores, auto will pick an idle core to run the model
// on, whilst the others specify the specific core or combined number of cores
// to run
const (
	NPUCoreAuto    CoreMask = C.RKNN_NPU_CORE_AUTO
	NPUCore0       CoreMask = C.RKNN_NPU_CORE_0
	NPUCore1       CoreMask = C.RKNN_NPU_CORE_1
	NPUCore2       CoreMask = C.RKNN_NPU_CORE_2
	NPUCore01      CoreMask = C.RKNN_NPU_CORE_0_1
	NPUCore012     CoreMask = C.RKNN_NPU_CORE_0_1_2
	NPUSkipSetCore CoreMask = 9999
)

// coreMaskNames maps the configuration names to core masks
var coreMaskNames = map[string]CoreMask{
	"auto":  NPUCoreAuto,
	"0":     NPUCore0,
	"1":     NPUCore1,
	"2":     NPUCore2,
	"0_1":   NPUCore01,
	"0_1_2": NPUCore012,
	"skip":  NPUSkipSetCore,
}

// CoreMaskByName returns the CoreMask for a configuration name such as
// "auto", "0_1" or "skip"
func CoreMaskByName(name string) (CoreMask, error) {

	mask, ok := coreMaskNames[strings.ToLower(strings.TrimSpace(name))]

	if !ok {
		return 0, fmt.Errorf("unknown NPU core mask: %s", name)
	}

	return mask, nil
}

// ErrorCodes
type ErrorCodes int

// error code values returned by the C API
const (
	Success                ErrorCodes = C.RKNN_SUCC
	ErrFail                ErrorCodes = C.RKNN_ERR_FAIL
	ErrTimeout             ErrorCodes = C.RKNN_ERR_TIMEOUT
	ErrDeviceUnavailable   ErrorCodes = C.RKNN_ERR_DEVICE_UNAVAILABLE
	ErrMallocFail          ErrorCodes = C.RKNN_ERR_MALLOC_FAIL
	ErrParamInvalid        ErrorCodes = C.RKNN_ERR_PARAM_INVALID
	ErrModelInvalid        ErrorCodes = C.RKNN_ERR_MODEL_INVALID
	ErrCtxInvalid          ErrorCodes = C.RKNN_ERR_CTX_INVALID
	ErrInputInvalid        ErrorCodes = C.RKNN_ERR_INPUT_INVALID
	ErrOutputInvalid       ErrorCodes = C.RKNN_ERR_OUTPUT_INVALID
	ErrDeviceMismatch      ErrorCodes = C.RKNN_ERR_DEVICE_UNMATCH
	ErrPreCompiledModel    ErrorCodes = C.RKNN_ERR_INCOMPATILE_PRE_COMPILE_MODEL
	ErrOptimizationVersion ErrorCodes = C.RKNN_ERR_INCOMPATILE_OPTIMIZATION_LEVEL_VERSION
	ErrPlatformMismatch    ErrorCodes = C.RKNN_ERR_TARGET_PLATFORM_UNMATCH
)

// String returns a readable description of the error code
func (e ErrorCodes) String() string {
	switch e {
	case Success:
		return "execution successful"
	case ErrFail:
		return "execution failed"
	case ErrTimeout:
		return "execution timed out"
	case ErrDeviceUnavailable:
		return "device is unavailable"
	case ErrMallocFail:
		return "C memory allocation failed"
	case ErrParamInvalid:
		return "parameter is invalid"
	case ErrModelInvalid:
		return "model file is invalid"
	case ErrCtxInvalid:
		return "context is invalid"
	case ErrInputInvalid:
		return "input is invalid"
	case ErrOutputInvalid:
		return "output is invalid"
	case ErrDeviceMismatch:
		return "device mismatch, please update rknn sdk and npu driver/firmware"
	case ErrPreCompiledModel:
		return "the RKNN model uses pre_compile mode, but is not compatible with current driver"
	case ErrOptimizationVersion:
		return "the RKNN model optimization level is not compatible with current driver"
	case ErrPlatformMismatch:
		return "the RKNN model target platform is not compatible with the current platform"
	default:
		return fmt.Sprintf("unknown error code %d", e)
	}
}

// Runtime defines the RKNN run time instance
type Runtime struct {
	// ctx is the C runtime context
	ctx C.rknn_context
	// outputAttrs caches the Output Tensor Attributes queried so far, they
	// are needed to convert FP16 native outputs
	outputAttrs map[uint32]tensor.Attr
}

// NewRuntime returns a RKNN run time instance initialised from the compiled
// model data held in memory
func NewRuntime(model []byte, core CoreMask) (*Runtime, error) {

	r := &Runtime{
		outputAttrs: make(map[uint32]tensor.Attr),
	}

	err := r.init(model)

	if err != nil {
		return nil, err
	}

	// setCoreMask is only supported on RK3588/RK3576, allow skipping for other
	// Rockchip models like RK3566
	if core != NPUSkipSetCore {
		err = r.setCoreMask(core)

		if err != nil {
			r.Close()
			return nil, err
		}
	}

	return r, nil
}

// init wraps C.rknn_init which initializes the RKNN context with the given
// model data
func (r *Runtime) init(model []byte) error {

	if len(model) == 0 {
		return fmt.Errorf("model data is empty")
	}

	// copy the model into C memory for the duration of the init call
	cModel := C.CBytes(model)
	defer C.free(cModel)

	ret := C.rknn_init(&r.ctx, cModel, C.uint32_t(len(model)), 0, nil)

	if ret != C.RKNN_SUCC {
		return fmt.Errorf("C.rknn_init call failed with code %d, error: %s",
			ret, ErrorCodes(ret).String())
	}

	return nil
}

// setCoreMask wraps C.rknn_set_core_mask and specifies the NPU core
// configuration to run the model on
func (r *Runtime) setCoreMask(mask CoreMask) error {

	ret := C.rknn_set_core_mask(r.ctx, C.rknn_core_mask(mask))

	if ret != C.RKNN_SUCC {
		return fmt.Errorf("C.rknn_set_core_mask failed with code %d, error: %s",
			ret, ErrorCodes(ret).String())
	}

	return nil
}

// Close wraps C.rknn_destroy which unloads the RKNN model from the runtime and
// destroys the context releasing all C resources
func (r *Runtime) Close() error {

	ret := C.rknn_destroy(r.ctx)

	if ret != C.RKNN_SUCC {
		return fmt.Errorf("C.rknn_destroy failed with code %d, error: %s",
			ret, ErrorCodes(ret).String())
	}

	return nil
}

// SDKVersion represents the C.rknn_sdk_version struct
type SDKVersion struct {
	DriverVersion string
	APIVersion    string
}

// SDKVersion returns the RKNN API and Driver versions
func (r *Runtime) SDKVersion() (SDKVersion, error) {

	// prepare the structure to receive the SDK version info
	var cSdkVer C.rknn_sdk_version

	ret := C.rknn_query(
		r.ctx,
		C.RKNN_QUERY_SDK_VERSION,
		unsafe.Pointer(&cSdkVer),
		C.uint(C.sizeof_rknn_sdk_version),
	)

	if ret != C.RKNN_SUCC {
		return SDKVersion{}, fmt.Errorf("C.rknn_query RKNN_QUERY_SDK_VERSION failed with code %d, error: %s",
			int(ret), ErrorCodes(ret).String())
	}

	version := SDKVersion{
		DriverVersion: C.GoString(&(cSdkVer.drv_version[0])),
		APIVersion:    C.GoString(&(cSdkVer.api_version[0])),
	}

	return version, nil
}
