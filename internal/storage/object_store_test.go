package storage

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestStaleKeys(t *testing.T) {
	keys := []string{
		"exports/2025/03/database_export_20250307T093000Z.xlsx",
		"exports/2025/01/database_export_20250101T080000Z.xlsx",
		"exports/2025/02/database_export_20250214T120000Z.xlsx",
	}

	tests := []struct {
		name string
		keep int
		want []string
	}{
		{name: "keep all", keep: 5, want: nil},
		{name: "disabled", keep: 0, want: nil},
		{name: "keep newest", keep: 1, want: []string{
			"exports/2025/01/database_export_20250101T080000Z.xlsx",
			"exports/2025/02/database_export_20250214T120000Z.xlsx",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StaleKeys(keys, tt.keep)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNewObjectStoreValidation(t *testing.T) {
	ctx := context.Background()
	if _, err := NewObjectStore(ctx, Config{Bucket: "exports"}); err == nil {
		t.Fatalf("expected endpoint error")
	}
	if _, err := NewObjectStore(ctx, Config{Endpoint: "s3.example.com"}); err == nil {
		t.Fatalf("expected bucket error")
	}
}

func TestPublicURL(t *testing.T) {
	store, err := NewObjectStore(context.Background(), Config{
		Endpoint:        "s3.example.com",
		Bucket:          "exports",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		PublicBaseURL:   "https://files.example.com/",
	})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	got, err := store.URL(context.Background(), "/exports/a.xlsx")
	if err != nil {
		t.Fatalf("url: %v", err)
	}
	if got != "https://files.example.com/exports/a.xlsx" {
		t.Fatalf("unexpected url %s", got)
	}
}

func TestPresignedURLWithoutPublicBase(t *testing.T) {
	store, err := NewObjectStore(context.Background(), Config{
		Endpoint:        "https://s3.example.com",
		Bucket:          "exports",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
	})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	got, err := store.PresignGetObject(context.Background(), "exports/a.xlsx", time.Minute)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.HasPrefix(got, "https://s3.example.com/") || !strings.Contains(got, "X-Amz-Signature") {
		t.Fatalf("unexpected presigned url %s", got)
	}
}
