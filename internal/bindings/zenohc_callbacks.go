//go:build cgo && zenohc

package bindings

/*
#include <zenoh.h>
*/
import "C"

import "unsafe"

// Callback functions - called from zenoh-c threads back into Go.

//export zgoSampleCall
func zgoSampleCall(sample *C.z_loaned_sample_t, ctx unsafe.Pointer) {
	t := installed.Load()
	if t == nil {
		return
	}
	t.call(uintptr(ctx), SamplePtr(unsafe.Pointer(sample)))
}

//export zgoSampleDrop
func zgoSampleDrop(ctx unsafe.Pointer) {
	t := installed.Load()
	if t == nil {
		return
	}
	t.drop(uintptr(ctx))
}
