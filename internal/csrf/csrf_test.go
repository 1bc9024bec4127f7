package csrf

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wrale/alexa-media-skill/internal/tokenstore"
)

// failingStore wraps a memory store and fails every call when err is set
type failingStore struct {
	*tokenstore.Memory[struct{}]
	err error
}

func (f *failingStore) Consume(ctx context.Context, token string) (struct{}, bool, error) {
	if f.err != nil {
		return struct{}{}, false, f.err
	}
	return f.Memory.Consume(ctx, token)
}

func (f *failingStore) CheckHealth(ctx context.Context) error {
	return f.err
}

// slowStore delays every read the way a networked store would
type slowStore struct {
	*tokenstore.Memory[struct{}]
}

func (s *slowStore) Validate(ctx context.Context, token string) (bool, error) {
	time.Sleep(time.Millisecond)
	return s.Memory.Validate(ctx, token)
}

func (s *slowStore) Consume(ctx context.Context, token string) (struct{}, bool, error) {
	time.Sleep(time.Millisecond)
	return s.Memory.Consume(ctx, token)
}

var secret = []byte("test-secret-key-32-bytes-exactly!")

func TestManager_GenerateToken(t *testing.T) {
	ctx := context.Background()
	manager := NewManager(tokenstore.NewMemory[struct{}](), secret)

	token, err := manager.GenerateToken(ctx)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if parts := strings.Split(token, "."); len(parts) != 2 {
		t.Errorf("GenerateToken() token has wrong format, got %s", token)
	}

	other, _ := manager.GenerateToken(ctx)
	if token == other {
		t.Error("GenerateToken() tokens should be unique")
	}
}

func TestManager_ValidateToken(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	clock := func() time.Time { return now }
	store := &failingStore{Memory: tokenstore.NewMemory[struct{}](
		tokenstore.WithTTL(10*time.Minute),
		tokenstore.WithClock(func() time.Time { return clock() }),
	)}
	manager := NewManager(store, secret)

	t.Run("valid_token", func(t *testing.T) {
		token, _ := manager.GenerateToken(ctx)
		if err := manager.ValidateToken(ctx, token); err != nil {
			t.Errorf("ValidateToken() error = %v", err)
		}
	})

	t.Run("consumed_once", func(t *testing.T) {
		token, _ := manager.GenerateToken(ctx)
		if err := manager.ValidateToken(ctx, token); err != nil {
			t.Fatalf("first ValidateToken() error = %v", err)
		}
		if err := manager.ValidateToken(ctx, token); !errors.Is(err, ErrTokenExpired) {
			t.Errorf("second ValidateToken() error = %v, want %v", err, ErrTokenExpired)
		}
	})

	t.Run("empty_token", func(t *testing.T) {
		if err := manager.ValidateToken(ctx, ""); err != ErrInvalidToken {
			t.Errorf("ValidateToken() error = %v, want %v", err, ErrInvalidToken)
		}
	})

	t.Run("invalid_format", func(t *testing.T) {
		if err := manager.ValidateToken(ctx, "invalid"); err != ErrInvalidToken {
			t.Errorf("ValidateToken() error = %v, want %v", err, ErrInvalidToken)
		}
	})

	t.Run("invalid_signature", func(t *testing.T) {
		token, _ := manager.GenerateToken(ctx)
		value, _, _ := strings.Cut(token, ".")
		if err := manager.ValidateToken(ctx, value+".YWJj"); err != ErrInvalidToken {
			t.Errorf("ValidateToken() error = %v, want %v", err, ErrInvalidToken)
		}
	})

	t.Run("signed_but_unknown", func(t *testing.T) {
		forged := "not-issued." + manager.sign("not-issued")
		if err := manager.ValidateToken(ctx, forged); !errors.Is(err, ErrTokenExpired) {
			t.Errorf("ValidateToken() error = %v, want %v", err, ErrTokenExpired)
		}
	})

	t.Run("expired_token", func(t *testing.T) {
		token, _ := manager.GenerateToken(ctx)
		later := now.Add(10 * time.Minute)
		clock = func() time.Time { return later }
		defer func() { clock = func() time.Time { return now } }()

		if err := manager.ValidateToken(ctx, token); !errors.Is(err, ErrTokenExpired) {
			t.Errorf("ValidateToken() error = %v, want %v", err, ErrTokenExpired)
		}
	})

	t.Run("store_error", func(t *testing.T) {
		token, _ := manager.GenerateToken(ctx)
		store.err = errors.New("store error")
		defer func() { store.err = nil }()
		if err := manager.ValidateToken(ctx, token); err == nil {
			t.Error("ValidateToken() expected error with bad store")
		}
	})
}

func TestManager_ConcurrentSubmitsConsumeOnce(t *testing.T) {
	ctx := context.Background()
	manager := NewManager(&slowStore{Memory: tokenstore.NewMemory[struct{}]()}, secret)

	token, err := manager.GenerateToken(ctx)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if manager.ValidateToken(ctx, token) == nil {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := accepted.Load(); got != 1 {
		t.Errorf("token accepted %d times, want 1", got)
	}
}

func TestManager_CheckHealth(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Memory: tokenstore.NewMemory[struct{}]()}
	manager := NewManager(store, secret)

	if err := manager.CheckHealth(ctx); err != nil {
		t.Errorf("CheckHealth() error = %v", err)
	}

	store.err = errors.New("store error")
	if err := manager.CheckHealth(ctx); err == nil {
		t.Error("CheckHealth() expected error with bad store")
	}
}
