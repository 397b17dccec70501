// Package blob is the label archive: collated tube batches and sample
// sheets are copied into an object store so they outlive the results tree.
package blob

import "barcoder/internal/blob/core"

type (
	// Driver identifies a backend.
	Driver = core.Driver
	// PutOptions configures a write.
	PutOptions = core.PutOptions
	// Object describes a stored object.
	Object = core.Object
	// Store is implemented by every backend.
	Store = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrUnsupported = core.ErrUnsupported
	ErrNotFound    = core.ErrNotFound
)
