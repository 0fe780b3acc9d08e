package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")
var errPermanent = errors.New("permanent")

func isTransient(err error) bool { return errors.Is(err, errTransient) }

func recordSleeps(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return ctx.Err()
	}
}

func TestDo(t *testing.T) {
	tests := []struct {
		name         string
		failures     []error
		maxAttempts  int
		wantAttempts int
		wantErr      error
		wantWaits    []time.Duration
	}{
		{"succeeds first time", nil, 3, 1, nil, nil},
		{"retries transient then succeeds", []error{errTransient, errTransient}, 3, 3, nil, []time.Duration{time.Second, 2 * time.Second}},
		{"stops on permanent error", []error{errPermanent}, 3, 1, errPermanent, nil},
		{"gives up after max attempts", []error{errTransient, errTransient, errTransient}, 3, 3, errTransient, []time.Duration{time.Second, 2 * time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var waits []time.Duration
			p := Policy{MaxAttempts: tt.maxAttempts, Base: time.Second}.WithSleeper(recordSleeps(&waits))

			calls := 0
			attempts, err := Do(context.Background(), p, isTransient, func(ctx context.Context, attempt int) error {
				calls++
				if attempt <= len(tt.failures) {
					return tt.failures[attempt-1]
				}
				return nil
			})

			if attempts != tt.wantAttempts || calls != tt.wantAttempts {
				t.Errorf("attempts = %d (calls %d), want %d", attempts, calls, tt.wantAttempts)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if len(waits) != len(tt.wantWaits) {
				t.Fatalf("waits = %v, want %v", waits, tt.wantWaits)
			}
			for i := range waits {
				if waits[i] != tt.wantWaits[i] {
					t.Errorf("wait %d = %v, want %v", i, waits[i], tt.wantWaits[i])
				}
			}
		})
	}
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, Base: time.Hour}

	calls := 0
	done := make(chan struct{})
	var err error
	go func() {
		_, err = Do(ctx, p, isTransient, func(ctx context.Context, attempt int) error {
			calls++
			return errTransient
		})
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, errTransient) {
		t.Errorf("err = %v, want last attempt error", err)
	}
}

func TestDelay_Capped(t *testing.T) {
	p := Policy{Base: time.Second, Max: 3 * time.Second}
	if got := p.Delay(1); got != 0 {
		t.Errorf("Delay(1) = %v, want 0", got)
	}
	if got := p.Delay(5); got != 3*time.Second {
		t.Errorf("Delay(5) = %v, want cap 3s", got)
	}
}
