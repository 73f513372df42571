//go:build integration

package refine

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, client, err := ConnectMongo(ctx, uri, "chartgalaxy_test")
	if err != nil {
		t.Skipf("mongo unavailable: %v", err)
	}
	defer client.Disconnect(ctx)
	defer store.coll.Drop(ctx)

	if err := store.Add(ctx, materials, Variant{Version: 1, URL: "a"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.Add(ctx, materials, Variant{Version: 3, URL: "c"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	list, err := store.List(ctx, materials)
	if err != nil || len(list) != 2 || list[1].Version != 3 {
		t.Errorf("List = %+v, %v", list, err)
	}
}
