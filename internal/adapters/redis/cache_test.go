package redisad_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	redisad "oryem_comparables/internal/adapters/redis"
	"oryem_comparables/internal/domain"
)

func TestCache_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redisad.New(mr.Addr(), "", 0)
	ctx := context.Background()

	in := domain.PriceStats{SaleCount: 2, TotalCount: 3}
	if err := cache.Set(ctx, "k", in, 60); err != nil {
		t.Fatalf("set: %v", err)
	}

	var out domain.PriceStats
	ok, err := cache.Get(ctx, "k", &out)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if out.SaleCount != 2 || out.TotalCount != 3 {
		t.Fatalf("round trip: %+v", out)
	}
}

func TestCache_MissAndDel(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redisad.New(mr.Addr(), "", 0)
	ctx := context.Background()

	var out domain.PriceStats
	ok, err := cache.Get(ctx, "absent", &out)
	if err != nil || ok {
		t.Fatalf("miss should be ok=false err=nil, got ok=%v err=%v", ok, err)
	}

	if err := cache.Set(ctx, "k", domain.PriceStats{}, 60); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := cache.Del(ctx, "k"); err != nil {
		t.Fatalf("del: %v", err)
	}
	ok, _ = cache.Get(ctx, "k", &out)
	if ok {
		t.Fatalf("key survived delete")
	}
}
