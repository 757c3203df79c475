package capture

import (
	"context"
	"testing"
)

func TestOptionsDefaults(t *testing.T) {
	o := Options{URL: "https://example.org/calendar"}
	if err := o.normalize(); err != nil {
		t.Fatal(err)
	}
	if o.Width != DefaultWidth || o.Height != DefaultHeight || o.Timeout != DefaultTimeout || o.WaitSelector != "body" {
		t.Errorf("normalized = %+v", o)
	}
}

func TestScreenshotRequiresURL(t *testing.T) {
	if _, err := Screenshot(context.Background(), Options{}); err == nil {
		t.Fatal("expected error for empty URL")
	}
	if _, err := Text(context.Background(), Options{}); err == nil {
		t.Fatal("expected error for empty URL")
	}
}
