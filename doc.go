// Package ejbbridge lets a client runtime own native objects through opaque
// 64-bit handles.
//
// A client never sees a pointer. Every native object it can reach is minted
// into a handle registry, looked up by handle on each call, and destroyed
// exactly once when the client frees it. Forged, stale and mistyped handles
// are rejected with the same error, so a misbehaving client cannot
// dereference memory it does not own.
//
// # Architecture Overview
//
//	ejbbridge/
//	├── handle/          Handle registry: mint, cast, drop, lend, shutdown sweep
//	├── errors/          Structured error types for debugging
//	├── config/          YAML bridge configuration and JVM parameter checks
//	├── storage/         In-memory database with snapshots, forks and list indexes
//	├── bridge/          Raw-handle entry points over storage, with status codes
//	│   └── wasmhost/    The same entry points as a wazero host module "ejb"
//	└── cmd/ejb-inspect  Scripted session, guest runner and interactive handle browser
//
// # Quick Start
//
//	rt, err := bridge.New(config.HandleConfig{})
//	if err != nil {
//		return err
//	}
//	defer rt.Close()
//
//	db := rt.NewMemoryDB()
//	fork, _ := rt.CreateFork(db)
//	list, _ := rt.NewList(fork, "blocks")
//	_ = rt.ListAdd(list, []byte("genesis"))
//	_ = rt.Merge(db, fork)
//
// # Ownership
//
// Handles minted by an entry point are owned by the client and must be freed
// with the matching Free call. Handles lent with bridge.Lend stay owned by the
// native side and are revoked when the callback returns; freeing one fails
// with an invalid handle error.
//
// # Logging
//
// Packages log through zap. The default logger is a no-op; install one with
// handle.SetLogger and bridge.SetLogger.
package ejbbridge
