package its

import (
	"encoding/binary"

	"github.com/psa-spm/spm-core/ipc"
	"github.com/psa-spm/spm-core/server"
	"github.com/psa-spm/spm-core/status"
)

// Service identifiers for the built-in ITS partition (spec.md §6: "SET,
// GET, INFO, REMOVE"). Each is a distinct SID a client connects to
// independently; all four route to the same partition/Service.
const (
	SIDSet    uint32 = 0x00000A01
	SIDGet    uint32 = 0x00000A02
	SIDInfo   uint32 = 0x00000A03
	SIDRemove uint32 = 0x00000A04
)

// SIDs lists the four ITS service identifiers, for registering the ITS
// partition against a partition.Registry in one call.
var SIDs = []uint32{SIDSet, SIDGet, SIDInfo, SIDRemove}

// Serve runs the ITS partition's message loop: wait for work, dequeue
// it, dispatch by SID, reply. It returns only once the partition's Loop
// is terminated; run it on the ITS partition's dedicated goroutine.
func Serve(disp *server.Dispatcher, svc *Service) {
	for {
		if _, err := disp.Wait(true); err != nil {
			return
		}
		ctx, ok := disp.Get()
		if !ok {
			continue
		}
		handleMessage(ctx, svc)
	}
}

func handleMessage(ctx *server.Context, svc *Service) {
	switch ctx.Type() {
	case ipc.MsgConnect, ipc.MsgDisconnect:
		ctx.Reply(status.Success)
	case ipc.MsgCall:
		switch ctx.SID() {
		case SIDSet:
			handleSet(ctx, svc)
		case SIDGet:
			handleGet(ctx, svc)
		case SIDInfo:
			handleGetInfo(ctx, svc)
		case SIDRemove:
			handleRemove(ctx, svc)
		default:
			ctx.Reply(status.DropConnection)
		}
	}
}

// handleSet expects in-vector 0 = {uid u32, flags u32} and in-vector 1
// = the payload.
func handleSet(ctx *server.Context, svc *Service) {
	header := make([]byte, 8)
	if _, err := ctx.Read(0, header); err != nil {
		ctx.Reply(status.DropConnection)
		return
	}
	uid := binary.LittleEndian.Uint32(header[0:4])
	flags := binary.LittleEndian.Uint32(header[4:8])

	size, err := ctx.InSize(1)
	if err != nil {
		ctx.Reply(status.DropConnection)
		return
	}
	payload := make([]byte, size)
	if _, err := ctx.Read(1, payload); err != nil {
		ctx.Reply(status.DropConnection)
		return
	}

	ctx.Reply(svc.Set(ctx.Identity(), uid, payload, flags))
}

// handleGet expects in-vector 0 = {uid u32, offset u32, length u32} and
// out-vector 0 sized to receive length bytes.
func handleGet(ctx *server.Context, svc *Service) {
	req := make([]byte, 12)
	if _, err := ctx.Read(0, req); err != nil {
		ctx.Reply(status.DropConnection)
		return
	}
	uid := binary.LittleEndian.Uint32(req[0:4])
	offset := int(binary.LittleEndian.Uint32(req[4:8]))
	length := int(binary.LittleEndian.Uint32(req[8:12]))

	out := make([]byte, length)
	code := svc.Get(ctx.Identity(), uid, offset, length, out)
	if code == status.Success {
		if _, err := ctx.Write(0, out); err != nil {
			ctx.Reply(status.DropConnection)
			return
		}
	}
	ctx.Reply(code)
}

// handleGetInfo expects in-vector 0 = {uid u32} and out-vector 0 sized
// for 8 bytes: {size u32, flags u32}.
func handleGetInfo(ctx *server.Context, svc *Service) {
	req := make([]byte, 4)
	if _, err := ctx.Read(0, req); err != nil {
		ctx.Reply(status.DropConnection)
		return
	}
	uid := binary.LittleEndian.Uint32(req)

	info, code := svc.GetInfo(ctx.Identity(), uid)
	if code == status.Success {
		out := make([]byte, 8)
		binary.LittleEndian.PutUint32(out[0:4], uint32(info.Size))
		binary.LittleEndian.PutUint32(out[4:8], info.Flags)
		if _, err := ctx.Write(0, out); err != nil {
			ctx.Reply(status.DropConnection)
			return
		}
	}
	ctx.Reply(code)
}

// handleRemove expects in-vector 0 = {uid u32}.
func handleRemove(ctx *server.Context, svc *Service) {
	req := make([]byte, 4)
	if _, err := ctx.Read(0, req); err != nil {
		ctx.Reply(status.DropConnection)
		return
	}
	uid := binary.LittleEndian.Uint32(req)
	ctx.Reply(svc.Remove(ctx.Identity(), uid))
}
