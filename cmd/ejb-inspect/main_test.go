package main

import (
	"strings"
	"testing"

	"github.com/wippyai/ejb-bridge/bridge"
	"github.com/wippyai/ejb-bridge/config"
)

func TestRunSession(t *testing.T) {
	rt, err := bridge.New(config.HandleConfig{})
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()

	if err := runSession(rt); err != nil {
		t.Fatalf("runSession: %v", err)
	}
	s := rt.Registry().Stats()
	if s.Live != 0 || s.Minted != s.Dropped {
		t.Fatalf("session left handles behind: %+v", s)
	}
}

func TestShutdown_CountsSweep(t *testing.T) {
	tests := []struct {
		policy string
		want   string
	}{
		{"sweep", "minted=2 dropped=2 revoked=0 leaked=0 (live at shutdown=2)"},
		{"leak", "minted=2 dropped=0 revoked=0 leaked=2 (live at shutdown=2)"},
	}
	for _, tt := range tests {
		rt, err := bridge.New(config.HandleConfig{ShutdownPolicy: tt.policy})
		if err != nil {
			t.Fatal(err)
		}
		db := rt.NewMemoryDB()
		if _, err := rt.CreateFork(db); err != nil {
			t.Fatal(err)
		}

		summary, err := shutdown(rt)
		if err != nil {
			t.Fatalf("%s: shutdown: %v", tt.policy, err)
		}
		if !strings.Contains(summary, tt.want) {
			t.Errorf("%s: summary %q, want %q", tt.policy, summary, tt.want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level   string
		verbose bool
		wantErr bool
	}{
		{"", false, false},
		{"debug", false, false},
		{"warn", false, false},
		{"loud", false, true},
		{"loud", true, false},
	}
	for _, tt := range tests {
		_, err := newLogger(tt.level, tt.verbose)
		if (err != nil) != tt.wantErr {
			t.Errorf("newLogger(%q, %v) error = %v, wantErr %v", tt.level, tt.verbose, err, tt.wantErr)
		}
	}
}

func TestDescribe(t *testing.T) {
	rt, err := bridge.New(config.HandleConfig{})
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()

	m := newInteractiveModel(rt)
	db := rt.NewMemoryDB()
	snap, _ := rt.CreateSnapshot(db)
	fork, _ := rt.CreateFork(db)
	list, _ := rt.NewList(fork, listName)
	_ = rt.ListAdd(list, []byte("x"))
	m.refresh()

	want := map[int64][2]string{
		db:   {dbType, ""},
		snap: {snapType, "read-only"},
		fork: {forkType, "writable"},
		list: {listType, "items, 1 items"},
	}
	rows := m.table.Rows()
	if len(rows) != len(want) {
		t.Fatalf("%d rows, want %d", len(rows), len(want))
	}
	for i := range rows {
		m.table.SetCursor(i)
		raw, typ := m.selected()
		w, ok := want[raw]
		if !ok || typ != w[0] || rows[i][2] != w[1] {
			t.Errorf("row %v: unexpected", rows[i])
		}
	}

	if got, ok := m.soleDB(); !ok || got != db {
		t.Fatalf("soleDB = %d, %v", got, ok)
	}
}
