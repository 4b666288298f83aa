// Package loader provides access to the application images linked into the
// kernel image.
package loader

import (
	"rvos/kernel"
	"unsafe"
)

var (
	errNoSuchApp     = &kernel.Error{Module: "loader", Message: "application index out of range"}
	errInvalidBounds = &kernel.Error{Module: "loader", Message: "application table bounds are not increasing"}

	apps [][]byte
)

// InitFromTable loads the application table emitted by the image build. The
// table starts with the number of applications, followed by the start
// address of each image and the end address of the last one.
func InitFromTable(table uintptr) {
	count := *(*uint64)(unsafe.Pointer(table))
	bounds := unsafe.Slice((*uintptr)(unsafe.Pointer(table+8)), count+1)

	images := make([][]byte, count)
	for i := range images {
		if bounds[i+1] < bounds[i] {
			panic(errInvalidBounds)
		}
		images[i] = unsafe.Slice((*byte)(unsafe.Pointer(bounds[i])), bounds[i+1]-bounds[i])
	}
	SetApps(images)
}

// SetApps installs the supplied images as the application table.
func SetApps(images [][]byte) {
	apps = images
}

// NumApps returns the number of applications.
func NumApps() int {
	return len(apps)
}

// AppData returns the ELF image of application id.
func AppData(id int) []byte {
	if id < 0 || id >= len(apps) {
		panic(errNoSuchApp)
	}
	return apps[id]
}
