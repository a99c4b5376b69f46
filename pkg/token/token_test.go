package token

import (
	"context"
	"testing"
	"time"
)

func TestMintAndRedeem(t *testing.T) {
	store := NewMemoryStore(StoreConfig{DefaultTTL: time.Minute})
	t.Cleanup(func() { store.Close() })

	svc := New(store, time.Minute)
	ctx := context.Background()

	id, err := svc.Mint(ctx, Grant{Path: "/output/clash/report.json", Kind: "clash"})
	if err != nil {
		t.Fatal(err)
	}

	grant, err := svc.Redeem(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if grant.Path != "/output/clash/report.json" || grant.Kind != "clash" {
		t.Fatalf("unexpected grant: %+v", grant)
	}
}

func TestRedeemUnknownTokenIsInvalid(t *testing.T) {
	store := NewMemoryStore(StoreConfig{DefaultTTL: time.Minute})
	t.Cleanup(func() { store.Close() })

	svc := New(store, time.Minute)
	if _, err := svc.Redeem(context.Background(), "does-not-exist"); err != ErrInvalid {
		t.Fatalf("want ErrInvalid, got %v", err)
	}
}

func TestRedeemAfterExpiryIsInvalid(t *testing.T) {
	store := NewMemoryStore(StoreConfig{DefaultTTL: time.Minute})
	t.Cleanup(func() { store.Close() })

	// A short-lived service so the test observes real expiry rather than
	// the background cleanup loop (spec §8 invariant 5, scenario S4).
	svc := New(store, 20*time.Millisecond)
	ctx := context.Background()

	id, err := svc.Mint(ctx, Grant{Path: "/output/converted/a.glb", Kind: "converted"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Redeem(ctx, id); err != nil {
		t.Fatalf("want a fresh token to redeem, got %v", err)
	}

	time.Sleep(40 * time.Millisecond)

	if _, err := svc.Redeem(ctx, id); err != ErrInvalid {
		t.Fatalf("want ErrInvalid past expiry, got %v", err)
	}
}

func TestRevoke(t *testing.T) {
	store := NewMemoryStore(StoreConfig{DefaultTTL: time.Minute})
	t.Cleanup(func() { store.Close() })

	svc := New(store, time.Minute)
	ctx := context.Background()

	id, err := svc.Mint(ctx, Grant{Path: "/output/diff/result.ifcdiff", Kind: "diff"})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Revoke(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Redeem(ctx, id); err != ErrInvalid {
		t.Fatalf("want ErrInvalid after revoke, got %v", err)
	}
}
