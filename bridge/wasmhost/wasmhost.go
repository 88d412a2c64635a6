// Package wasmhost exposes the bridge entry points to a WebAssembly guest as
// the host module "ejb".
//
// Handles cross the boundary as i64. Functions that mint a handle return 0
// on failure, which is never a live handle. Functions that only report an
// outcome return a bridge status code as i32. Byte arguments are passed as
// (ptr, len) pairs into the calling module's exported memory.
//
//	(import "ejb" "memorydb_new" (func (result i64)))
//	(import "ejb" "memorydb_fork" (func (param i64) (result i64)))
//	(import "ejb" "list_new" (func (param i64 i32 i32) (result i64)))
//	(import "ejb" "list_add" (func (param i64 i32 i32) (result i32)))
//	(import "ejb" "view_free" (func (param i64) (result i32)))
package wasmhost

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/ejb-bridge/bridge"
	"github.com/wippyai/ejb-bridge/errors"
)

// ModuleName is the import module name guests link against.
const ModuleName = "ejb"

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

type funcDef struct {
	fn      api.GoModuleFunc
	name    string
	params  []api.ValueType
	results []api.ValueType
}

type host struct {
	rt     *bridge.Runtime
	logger *zap.Logger
}

// Instantiate registers the "ejb" host module in r.
func Instantiate(ctx context.Context, r wazero.Runtime, rt *bridge.Runtime) (api.Module, error) {
	h := &host{rt: rt, logger: bridge.Logger().Named("wasmhost")}

	builder := r.NewHostModuleBuilder(ModuleName)
	for _, f := range h.funcs() {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(f.fn, f.params, f.results).
			Export(f.name)
	}
	return builder.Instantiate(ctx)
}

func (h *host) funcs() []funcDef {
	return []funcDef{
		{name: "memorydb_new", fn: h.memorydbNew, results: []api.ValueType{i64}},
		{name: "memorydb_snapshot", fn: h.memorydbSnapshot, params: []api.ValueType{i64}, results: []api.ValueType{i64}},
		{name: "memorydb_fork", fn: h.memorydbFork, params: []api.ValueType{i64}, results: []api.ValueType{i64}},
		{name: "memorydb_merge", fn: h.memorydbMerge, params: []api.ValueType{i64, i64}, results: []api.ValueType{i32}},
		{name: "memorydb_free", fn: h.memorydbFree, params: []api.ValueType{i64}, results: []api.ValueType{i32}},
		{name: "view_free", fn: h.viewFree, params: []api.ValueType{i64}, results: []api.ValueType{i32}},
		{name: "list_new", fn: h.listNew, params: []api.ValueType{i64, i32, i32}, results: []api.ValueType{i64}},
		{name: "list_add", fn: h.listAdd, params: []api.ValueType{i64, i32, i32}, results: []api.ValueType{i32}},
		{name: "list_size", fn: h.listSize, params: []api.ValueType{i64}, results: []api.ValueType{i64}},
		{name: "list_get", fn: h.listGet, params: []api.ValueType{i64, i32, i32, i32}, results: []api.ValueType{i64}},
		{name: "list_free", fn: h.listFree, params: []api.ValueType{i64}, results: []api.ValueType{i32}},
		{name: "handle_count", fn: h.handleCount, results: []api.ValueType{i64}},
	}
}

func (h *host) memorydbNew(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = api.EncodeI64(h.rt.NewMemoryDB())
}

func (h *host) memorydbSnapshot(_ context.Context, _ api.Module, stack []uint64) {
	raw, err := h.rt.CreateSnapshot(int64(stack[0]))
	stack[0] = api.EncodeI64(h.handleResult(raw, err))
}

func (h *host) memorydbFork(_ context.Context, _ api.Module, stack []uint64) {
	raw, err := h.rt.CreateFork(int64(stack[0]))
	stack[0] = api.EncodeI64(h.handleResult(raw, err))
}

func (h *host) memorydbMerge(_ context.Context, _ api.Module, stack []uint64) {
	err := h.rt.Merge(int64(stack[0]), int64(stack[1]))
	stack[0] = api.EncodeI32(bridge.Status(err))
}

func (h *host) memorydbFree(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = api.EncodeI32(bridge.Status(h.rt.FreeDB(int64(stack[0]))))
}

func (h *host) viewFree(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = api.EncodeI32(bridge.Status(h.rt.FreeView(int64(stack[0]))))
}

func (h *host) listNew(_ context.Context, mod api.Module, stack []uint64) {
	name, err := readBytes(mod, stack[1], stack[2])
	if err != nil {
		stack[0] = 0
		return
	}
	raw, err := h.rt.NewList(int64(stack[0]), string(name))
	stack[0] = api.EncodeI64(h.handleResult(raw, err))
}

func (h *host) listAdd(_ context.Context, mod api.Module, stack []uint64) {
	value, err := readBytes(mod, stack[1], stack[2])
	if err == nil {
		err = h.rt.ListAdd(int64(stack[0]), value)
	}
	stack[0] = api.EncodeI32(bridge.Status(err))
}

// listSize returns the size, or a negated status code.
func (h *host) listSize(_ context.Context, _ api.Module, stack []uint64) {
	n, err := h.rt.ListSize(int64(stack[0]))
	if err != nil {
		stack[0] = api.EncodeI64(-int64(bridge.Status(err)))
		return
	}
	stack[0] = api.EncodeI64(int64(n))
}

// listGet copies the item into (outPtr, outCap) when it fits and returns the
// item length, or a negated status code. A result larger than outCap tells
// the guest how much to allocate.
func (h *host) listGet(_ context.Context, mod api.Module, stack []uint64) {
	index := api.DecodeI32(stack[1])
	outPtr, outCap := api.DecodeU32(stack[2]), api.DecodeU32(stack[3])

	v, err := h.rt.ListGet(int64(stack[0]), int(index))
	if err != nil {
		stack[0] = api.EncodeI64(-int64(bridge.Status(err)))
		return
	}
	if uint32(len(v)) <= outCap {
		if mod.Memory() == nil || !mod.Memory().Write(outPtr, v) {
			stack[0] = api.EncodeI64(-int64(bridge.StatusOutOfBounds))
			return
		}
	}
	stack[0] = api.EncodeI64(int64(len(v)))
}

func (h *host) listFree(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = api.EncodeI32(bridge.Status(h.rt.FreeList(int64(stack[0]))))
}

func (h *host) handleCount(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = api.EncodeI64(int64(h.rt.Registry().Len()))
}

func (h *host) handleResult(raw int64, err error) int64 {
	if err != nil {
		h.logger.Debug("guest call failed", zap.Int32("status", bridge.Status(err)), zap.Error(err))
		return 0
	}
	return raw
}

// readBytes copies (ptr, len) out of the guest memory.
func readBytes(mod api.Module, ptr, length uint64) ([]byte, error) {
	p, n := api.DecodeU32(ptr), api.DecodeU32(length)
	mem := mod.Memory()
	if mem == nil {
		return nil, errors.New(errors.PhaseEntry, errors.KindOutOfBounds).
			Detail("calling module exports no memory").
			Build()
	}
	buf, ok := mem.Read(p, n)
	if !ok {
		return nil, errors.New(errors.PhaseEntry, errors.KindOutOfBounds).
			Detail("read %d bytes at %d exceeds memory size %d", n, p, mem.Size()).
			Build()
	}
	return append([]byte(nil), buf...), nil
}
