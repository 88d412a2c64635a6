package handle

import (
	stderrors "errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/wippyai/ejb-bridge/errors"
)

type Wallet struct {
	Owner   string
	dropped atomic.Int32
}

func (w *Wallet) Drop() {
	w.dropped.Add(1)
}

type Block struct {
	Height uint64
}

func TestLifecycle_WalletScenario(t *testing.T) {
	r := NewRegistry()
	a := &Wallet{Owner: "alice"}

	h := ToHandle(r, a)

	got, err := CastHandle[*Wallet](r, h)
	if err != nil {
		t.Fatalf("cast as Wallet: %v", err)
	}
	if got != a {
		t.Fatal("cast returned a different object")
	}

	if _, err := CastHandle[*Block](r, h); !stderrors.Is(err, errors.ErrInvalidHandle) {
		t.Fatalf("cast as Block: got %v, want invalid handle", err)
	}

	if err := DropHandle[*Wallet](r, h); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if a.dropped.Load() != 1 {
		t.Fatalf("Drop ran %d times, want 1", a.dropped.Load())
	}

	if _, err := CastHandle[*Wallet](r, h); !stderrors.Is(err, errors.ErrInvalidHandle) {
		t.Fatalf("cast after drop: got %v, want invalid handle", err)
	}
	if err := DropHandle[*Wallet](r, h); !stderrors.Is(err, errors.ErrInvalidHandle) {
		t.Fatalf("second drop: got %v, want invalid handle", err)
	}
	if a.dropped.Load() != 1 {
		t.Fatal("second drop must not run the destructor")
	}
}

func TestLifecycle_Uniqueness(t *testing.T) {
	r := NewRegistry()
	seen := make(map[int64]bool)
	for i := 0; i < 1000; i++ {
		raw := ToHandle(r, &Block{Height: uint64(i)}).Raw()
		if raw <= 0 {
			t.Fatalf("handle %d is not positive", raw)
		}
		if seen[raw] {
			t.Fatalf("handle %d issued twice", raw)
		}
		seen[raw] = true
	}
}

func TestLifecycle_RoundTrip(t *testing.T) {
	r := NewRegistry()

	t.Run("pointer", func(t *testing.T) {
		b := &Block{Height: 7}
		got, err := CastHandle[*Block](r, FromRaw(ToHandle(r, b).Raw()))
		if err != nil || got != b {
			t.Fatalf("got %v, %v", got, err)
		}
	})

	t.Run("value", func(t *testing.T) {
		got, err := CastHandle[Block](r, ToHandle(r, Block{Height: 9}))
		if err != nil || got.Height != 9 {
			t.Fatalf("got %v, %v", got, err)
		}
	})

	t.Run("value and pointer tags differ", func(t *testing.T) {
		h := ToHandle(r, Block{Height: 1})
		if _, err := CastHandle[*Block](r, h); err == nil {
			t.Fatal("Block and *Block must be distinct types")
		}
	})
}

func TestLifecycle_UnknownHandle(t *testing.T) {
	r := NewRegistry()
	ToHandle(r, &Wallet{})

	for _, raw := range []int64{0, -1, 2, 1 << 40, math.MaxInt64, math.MinInt64} {
		h := FromRaw(raw)
		if _, err := CastHandle[*Wallet](r, h); !stderrors.Is(err, errors.ErrInvalidHandle) {
			t.Errorf("cast %d: got %v", raw, err)
		}
		if err := DropHandle[*Wallet](r, h); !stderrors.Is(err, errors.ErrInvalidHandle) {
			t.Errorf("drop %d: got %v", raw, err)
		}
	}
	if r.Len() != 1 {
		t.Fatal("failed drops must not change the registry")
	}
}

func TestLifecycle_RawRoundTrip(t *testing.T) {
	for _, raw := range []int64{0, 1, 42, math.MaxInt64, -1, math.MinInt64} {
		if got := FromRaw(raw).Raw(); got != raw {
			t.Errorf("FromRaw(%d).Raw() = %d", raw, got)
		}
	}
	if !FromRaw(0).IsZero() {
		t.Error("FromRaw(0) should be the zero handle")
	}
}

func TestLifecycle_DropWrongType(t *testing.T) {
	r := NewRegistry()
	w := &Wallet{}
	h := ToHandle(r, w)

	if err := DropHandle[*Block](r, h); !stderrors.Is(err, errors.ErrInvalidHandle) {
		t.Fatalf("drop as Block: got %v", err)
	}
	if w.dropped.Load() != 0 {
		t.Fatal("wrong-type drop ran the destructor")
	}
	if _, err := CastHandle[*Wallet](r, h); err != nil {
		t.Fatalf("handle should survive a wrong-type drop: %v", err)
	}
}

func TestLifecycle_DestructorError(t *testing.T) {
	r := NewRegistry()
	c := &closer{err: stderrors.New("busy")}
	h := ToHandle(r, c)

	err := DropHandle[*closer](r, h)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseDrop, Kind: errors.KindDestroy}) {
		t.Fatalf("got %v, want destroy error", err)
	}
	if stderrors.Is(err, errors.ErrInvalidHandle) {
		t.Fatal("destructor failure is not an invalid handle")
	}
	if _, err := CastHandle[*closer](r, h); err == nil {
		t.Fatal("handle must be gone even when the destructor fails")
	}
}

func TestLifecycle_ConcurrentDrop(t *testing.T) {
	for round := 0; round < 20; round++ {
		r := NewRegistry()
		w := &Wallet{}
		h := ToHandle(r, w)

		const n = 32
		var (
			wg      sync.WaitGroup
			ok      atomic.Int32
			invalid atomic.Int32
			start   = make(chan struct{})
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				err := DropHandle[*Wallet](r, h)
				switch {
				case err == nil:
					ok.Add(1)
				case stderrors.Is(err, errors.ErrInvalidHandle):
					invalid.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		close(start)
		wg.Wait()

		if ok.Load() != 1 || invalid.Load() != n-1 {
			t.Fatalf("round %d: %d succeeded, %d invalid", round, ok.Load(), invalid.Load())
		}
		if w.dropped.Load() != 1 {
			t.Fatalf("round %d: destructor ran %d times", round, w.dropped.Load())
		}
	}
}

func TestLifecycle_ConcurrentCastDuringDrop(t *testing.T) {
	r := NewRegistry()
	w := &Wallet{Owner: "bob"}
	h := ToHandle(r, w)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				got, err := CastHandle[*Wallet](r, h)
				if err == nil && got != w {
					t.Error("cast observed a different object")
				}
				if err != nil && !stderrors.Is(err, errors.ErrInvalidHandle) {
					t.Errorf("unexpected error: %v", err)
				}
			}
		}()
	}
	if err := DropHandle[*Wallet](r, h); err != nil {
		t.Fatal(err)
	}
	wg.Wait()
}

func TestLifecycle_Lend(t *testing.T) {
	r := NewRegistry()
	w := &Wallet{}
	h := Lend(r, w)

	got, err := CastHandle[*Wallet](r, h)
	if err != nil || got != w {
		t.Fatalf("cast lent handle: %v, %v", got, err)
	}

	if err := DropHandle[*Wallet](r, h); !stderrors.Is(err, errors.ErrInvalidHandle) {
		t.Fatalf("drop of lent handle: got %v", err)
	}

	if err := r.Revoke(h); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if w.dropped.Load() != 0 {
		t.Fatal("Revoke must not destroy the object")
	}
	if _, err := CastHandle[*Wallet](r, h); err == nil {
		t.Fatal("revoked handle should be invalid")
	}
	if err := r.Revoke(h); !stderrors.Is(err, errors.ErrInvalidHandle) {
		t.Fatalf("second Revoke: got %v", err)
	}

	owned := ToHandle(r, &Wallet{})
	if err := r.Revoke(owned); err == nil {
		t.Fatal("Revoke must not retire owned handles")
	}
}

func TestTypeTag(t *testing.T) {
	if TagOf[*Wallet]() != TagOf[*Wallet]() {
		t.Error("tags of the same type must be equal")
	}
	if TagOf[*Wallet]() == TagOf[*Block]() {
		t.Error("tags of different types must differ")
	}
	if s := TagOf[*Wallet]().String(); s != "*handle.Wallet" {
		t.Errorf("String() = %q", s)
	}
	if s := (TypeTag{}).String(); s != "<nil>" {
		t.Errorf("zero tag String() = %q", s)
	}
}
