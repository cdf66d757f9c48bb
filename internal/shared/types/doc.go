// Package types provides shared data structures for the application kernel.
//
// These types cross the boundary between the kernel, the network surface and
// hosted module code, so they carry JSON tags and no behavior beyond what the
// boundary needs.
//
// Core Types:
//   - Error: structured failure with a machine-readable code
//   - Client: the calling connection (call id, remote address, event sink)
//   - CallContext: execution context handed to a resolved procedure
//
// Example Usage:
//
//	err := types.NewError(types.CodeNotFound, "method not found: %s", name)
//	if types.CodeOf(err) == types.CodeNotFound {
//	    c.JSON(http.StatusNotFound, err)
//	}
package types
