package bridge

import (
	stderrors "errors"

	"github.com/wippyai/ejb-bridge/errors"
	"github.com/wippyai/ejb-bridge/handle"
	"github.com/wippyai/ejb-bridge/storage"
)

// NewMemoryDB creates a database owned by the client.
func (rt *Runtime) NewMemoryDB() int64 {
	return handle.ToHandle(rt.reg, storage.NewMemoryDB()).Raw()
}

// CreateSnapshot returns a client-owned snapshot of the database.
func (rt *Runtime) CreateSnapshot(dbRaw int64) (int64, error) {
	db, err := handle.CastHandle[*storage.MemoryDB](rt.reg, handle.FromRaw(dbRaw))
	if err != nil {
		return 0, rt.fail("create_snapshot", dbRaw, err)
	}
	snap, err := db.Snapshot()
	if err != nil {
		return 0, rt.fail("create_snapshot", dbRaw, err)
	}
	return handle.ToHandle(rt.reg, snap).Raw(), nil
}

// CreateFork returns a client-owned fork of the database.
func (rt *Runtime) CreateFork(dbRaw int64) (int64, error) {
	db, err := handle.CastHandle[*storage.MemoryDB](rt.reg, handle.FromRaw(dbRaw))
	if err != nil {
		return 0, rt.fail("create_fork", dbRaw, err)
	}
	fork, err := db.Fork()
	if err != nil {
		return 0, rt.fail("create_fork", dbRaw, err)
	}
	return handle.ToHandle(rt.reg, fork).Raw(), nil
}

// Merge applies a fork to the database. The fork handle stays live until freed.
func (rt *Runtime) Merge(dbRaw, forkRaw int64) error {
	db, err := handle.CastHandle[*storage.MemoryDB](rt.reg, handle.FromRaw(dbRaw))
	if err != nil {
		return rt.fail("merge", dbRaw, err)
	}
	fork, err := handle.CastHandle[*storage.Fork](rt.reg, handle.FromRaw(forkRaw))
	if err != nil {
		return rt.fail("merge", forkRaw, err)
	}
	if err := db.Merge(fork); err != nil {
		return rt.fail("merge", forkRaw, err)
	}
	return nil
}

// NewList binds a list proxy to a snapshot or fork.
func (rt *Runtime) NewList(viewRaw int64, name string) (int64, error) {
	v, err := rt.castView(viewRaw)
	if err != nil {
		return 0, rt.fail("list_new", viewRaw, err)
	}
	return handle.ToHandle(rt.reg, storage.NewListIndex(v, name)).Raw(), nil
}

// ListAdd appends value to the list.
func (rt *Runtime) ListAdd(listRaw int64, value []byte) error {
	l, err := handle.CastHandle[*storage.ListIndex](rt.reg, handle.FromRaw(listRaw))
	if err != nil {
		return rt.fail("list_add", listRaw, err)
	}
	if err := l.Add(value); err != nil {
		return rt.fail("list_add", listRaw, err)
	}
	return nil
}

// ListGet returns the item at index.
func (rt *Runtime) ListGet(listRaw int64, index int) ([]byte, error) {
	l, err := handle.CastHandle[*storage.ListIndex](rt.reg, handle.FromRaw(listRaw))
	if err != nil {
		return nil, rt.fail("list_get", listRaw, err)
	}
	v, err := l.Get(index)
	if err != nil {
		return nil, rt.fail("list_get", listRaw, err)
	}
	return v, nil
}

// ListSize returns the number of items in the list.
func (rt *Runtime) ListSize(listRaw int64) (int, error) {
	l, err := handle.CastHandle[*storage.ListIndex](rt.reg, handle.FromRaw(listRaw))
	if err != nil {
		return 0, rt.fail("list_size", listRaw, err)
	}
	n, err := l.Size()
	if err != nil {
		return 0, rt.fail("list_size", listRaw, err)
	}
	return n, nil
}

// ListClear removes every item from the list.
func (rt *Runtime) ListClear(listRaw int64) error {
	l, err := handle.CastHandle[*storage.ListIndex](rt.reg, handle.FromRaw(listRaw))
	if err != nil {
		return rt.fail("list_clear", listRaw, err)
	}
	if err := l.Clear(); err != nil {
		return rt.fail("list_clear", listRaw, err)
	}
	return nil
}

// FreeDB destroys a database handle.
func (rt *Runtime) FreeDB(raw int64) error {
	if err := handle.DropHandle[*storage.MemoryDB](rt.reg, handle.FromRaw(raw)); err != nil {
		return rt.fail("memorydb_free", raw, err)
	}
	return nil
}

// FreeView destroys a snapshot or fork handle.
func (rt *Runtime) FreeView(raw int64) error {
	h := handle.FromRaw(raw)
	err := handle.DropHandle[*storage.Snapshot](rt.reg, h)
	if stderrors.Is(err, errors.ErrInvalidHandle) {
		err = handle.DropHandle[*storage.Fork](rt.reg, h)
	}
	if err != nil {
		return rt.fail("view_free", raw, err)
	}
	return nil
}

// FreeList destroys a list proxy handle. The view is not affected.
func (rt *Runtime) FreeList(raw int64) error {
	if err := handle.DropHandle[*storage.ListIndex](rt.reg, handle.FromRaw(raw)); err != nil {
		return rt.fail("list_free", raw, err)
	}
	return nil
}

func (rt *Runtime) castView(raw int64) (storage.View, error) {
	h := handle.FromRaw(raw)
	if snap, err := handle.CastHandle[*storage.Snapshot](rt.reg, h); err == nil {
		return snap, nil
	}
	fork, err := handle.CastHandle[*storage.Fork](rt.reg, h)
	if err != nil {
		return nil, err
	}
	return fork, nil
}
