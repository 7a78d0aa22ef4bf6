package rknn

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	// RK3588FastCores is the cpu affinity mask of the fast cortex A76 cores 4-7
	RK3588FastCores = uintptr(0b11110000)
	// RK3588SlowCores is the cpu affinity mask of the efficient cortex A55 cores 0-3
	RK3588SlowCores = uintptr(0b00001111)
	// RK3588AllCores is the cpu affinity mask for all cortex A76 and A55 cores 0-7
	RK3588AllCores = uintptr(0b11111111)

	// RK3582FastCores is the cpu affinity mask of the fast cortex A76 cores 4-5
	RK3582FastCores = uintptr(0b00110000)
	// RK3582SlowCores is the cpu affinity mask of the efficient cortex A55 cores 0-3
	RK3582SlowCores = uintptr(0b00001111)
	// RK3582AllCores is the cpu affinity mask for all cortex A76 and A55 cores 0-5
	RK3582AllCores = uintptr(0b00111111)

	// RK3576FastCores is the cpu affinity mask of the fast cortex A72 cores 4-7
	RK3576FastCores = uintptr(0b11110000)
	// RK3576SlowCores is the cpu affinity mask of the efficient cortex A53 cores 0-3
	RK3576SlowCores = uintptr(0b00001111)
	// RK3576AllCores is the cpu affinity mask for all cortex A72 and A53 cores 0-7
	RK3576AllCores = uintptr(0b11111111)

	// RK3568AllCores is the cpu affinity mask of all cortex A55 (2Ghz) cores 0-3
	RK3568AllCores = uintptr(0b00001111)

	// RK3566AllCores is the cpu affinity mask of all cortex A55 (1.6Ghz) cores 0-3
	RK3566AllCores = uintptr(0b00001111)
)

// CoreType specifies the CPU core type
type CoreType int

const (
	FastCores CoreType = 0
	SlowCores CoreType = 1
	AllCores  CoreType = 2
)

// coreTypeNames maps configuration names to a CoreType
var coreTypeNames = map[string]CoreType{
	"fast": FastCores,
	"slow": SlowCores,
	"all":  AllCores,
}

// coreMaskList defines a list of CPU core masks for lookup by platform
var coreMaskList = map[string]map[CoreType]uintptr{
	"rk3566": {
		SlowCores: RK3566AllCores,
		FastCores: RK3566AllCores,
		AllCores:  RK3566AllCores,
	},
	"rk3568": {
		SlowCores: RK3568AllCores,
		FastCores: RK3568AllCores,
		AllCores:  RK3568AllCores,
	},
	"rk3576": {
		SlowCores: RK3576SlowCores,
		FastCores: RK3576FastCores,
		AllCores:  RK3576AllCores,
	},
	"rk3582": {
		SlowCores: RK3582SlowCores,
		FastCores: RK3582FastCores,
		AllCores:  RK3582AllCores,
	},
	"rk3588": {
		SlowCores: RK3588SlowCores,
		FastCores: RK3588FastCores,
		AllCores:  RK3588AllCores,
	},
}

// SetCPUAffinity sets the CPU Affinity mask of the program to run on the specified
// cores
func SetCPUAffinity(mask uintptr) error {

	var set unix.CPUSet

	for cpu := 0; cpu < 64; cpu++ {
		if mask&(1<<uint(cpu)) != 0 {
			set.Set(cpu)
		}
	}

	if set.Count() == 0 {
		return fmt.Errorf("empty CPU affinity mask")
	}

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("failed to set CPU affinity: %w", err)
	}

	return nil
}

// CPUAffinityMask returns the core mask for the named platform and core type
// name (fast|slow|all)
func CPUAffinityMask(platform, coreType string) (uintptr, error) {

	platform = strings.ToLower(strings.TrimSpace(platform))

	ct, ok := coreTypeNames[strings.ToLower(strings.TrimSpace(coreType))]

	if !ok {
		return 0, fmt.Errorf("unknown core type: %s", coreType)
	}

	masks, ok := coreMaskList[platform]

	if !ok {
		return 0, fmt.Errorf("unknown platform: %s", platform)
	}

	return masks[ct], nil
}

// SetCPUAffinityByPlatform sets the CPU Affinity mask of the program to run
// on the named core type of the given platform
// rk3566|rk3568|rk3576|rk3582|rk3588
func SetCPUAffinityByPlatform(platform, coreType string) error {

	mask, err := CPUAffinityMask(platform, coreType)

	if err != nil {
		return err
	}

	return SetCPUAffinity(mask)
}
