package infra_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/BrandonDHaskell/tollgate/internal/infra"
)

func TestNewRedisClient_EmptyURL(t *testing.T) {
	if _, err := infra.NewRedisClient(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestNewRedisClient_Pings(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := infra.NewRedisClient(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	defer c.Close()
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	if _, err := infra.NewRedisClient(context.Background(), "redis://"+addr); err == nil {
		t.Fatal("expected ping failure")
	}
}

func TestNewPostgresPool_EmptyURL(t *testing.T) {
	if _, err := infra.NewPostgresPool(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestNewPostgresPool_BadURL(t *testing.T) {
	if _, err := infra.NewPostgresPool(context.Background(), "postgres://%zz"); err == nil {
		t.Fatal("expected parse error")
	}
}
