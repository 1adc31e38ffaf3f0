package memory

import (
	"context"
	"io"
	"strings"
	"testing"

	"shelfstock/internal/blob/core"
)

func TestLifecycle(t *testing.T) {
	store := New()
	ctx := context.Background()
	if store.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", store.Driver())
	}
	if _, err := store.Put(ctx, "k", strings.NewReader("payload"), core.PutOptions{ContentType: "text/plain"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "k", strings.NewReader("other"), core.PutOptions{}); err == nil {
		t.Fatalf("expected duplicate key error")
	}
	info, rc, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "payload" || info.ContentType != "text/plain" {
		t.Fatalf("unexpected blob: %q %+v", body, info)
	}
	if _, err := store.Head(ctx, "missing"); err == nil {
		t.Fatalf("expected head miss")
	}
	infos, err := store.List(ctx, "")
	if err != nil || len(infos) != 1 {
		t.Fatalf("list: %+v err=%v", infos, err)
	}
	if ok, err := store.Delete(ctx, "k"); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if ok, _ := store.Delete(ctx, "k"); ok {
		t.Fatalf("delete of missing key reported true")
	}
}
