package its

import "github.com/psa-spm/spm-core/status"

// DirectClient adapts a Service to the emulator/NSPE direct-call
// convention of spec.md §4.7: when the SPM is not present, the client
// API bypasses IPC entirely and calls the service implementation
// in-process, stamping every record with status.InvalidSource. This
// mode must never ship in a production image - it exists purely for
// host-side unit testing, which is why it is a distinct constructor
// (NewDirectClient) rather than a flag on the IPC-backed path, so a
// production wiring in package spm can never accidentally select it.
type DirectClient struct {
	svc *Service
}

// NewDirectClient wraps svc for direct (non-IPC) calls.
func NewDirectClient(svc *Service) *DirectClient {
	return &DirectClient{svc: svc}
}

// Set calls Service.Set stamped with status.InvalidSource.
func (d *DirectClient) Set(uid uint32, payload []byte, flags uint32) status.Code {
	return d.svc.Set(status.InvalidSource, uid, payload, flags)
}

// Get calls Service.Get stamped with status.InvalidSource.
func (d *DirectClient) Get(uid uint32, offset, length int, out []byte) status.Code {
	return d.svc.Get(status.InvalidSource, uid, offset, length, out)
}

// GetInfo calls Service.GetInfo stamped with status.InvalidSource.
func (d *DirectClient) GetInfo(uid uint32) (Info, status.Code) {
	return d.svc.GetInfo(status.InvalidSource, uid)
}

// Remove calls Service.Remove stamped with status.InvalidSource.
func (d *DirectClient) Remove(uid uint32) status.Code {
	return d.svc.Remove(status.InvalidSource, uid)
}

// Exists reports whether uid currently holds a value visible to
// status.InvalidSource, matching the original emulator's file_exists()
// helper used in spec.md §8 E2E-2.
func (d *DirectClient) Exists(uid uint32) bool {
	_, code := d.GetInfo(uid)
	return code == status.Success
}
