package upload_test

import (
	"strings"
	"testing"

	"vidisnap/internal/failure"
	"vidisnap/internal/upload"
)

func TestValidateAcceptsAllowList(t *testing.T) {
	for _, ext := range upload.AllowedExtensions() {
		for _, name := range []string{"clip" + ext, "CLIP" + strings.ToUpper(ext), "dir/with.dots/clip" + ext} {
			got, err := upload.Validate(name)
			if err != nil {
				t.Fatalf("expected %q to be accepted, got %v", name, err)
			}
			if got != ext {
				t.Fatalf("expected normalized extension %q, got %q", ext, got)
			}
		}
	}
}

func TestValidateRejectsOtherExtensions(t *testing.T) {
	for _, name := range []string{"photo.gif", "clip.mp4.txt", "noext", "", "clip.", ".mp4x", "movie.mpeg"} {
		_, err := upload.Validate(name)
		if err == nil {
			t.Fatalf("expected %q to be rejected", name)
		}
		if kind := failure.KindOf(err); kind != failure.KindInvalidFormat {
			t.Fatalf("expected invalid_format for %q, got %q", name, kind)
		}
		detail := failure.PublicDetail(err)
		for _, ext := range upload.AllowedExtensions() {
			if !strings.Contains(detail, ext) {
				t.Fatalf("expected detail to list %s, got %q", ext, detail)
			}
		}
	}
}

func TestAllowedExtensionsReturnsCopy(t *testing.T) {
	exts := upload.AllowedExtensions()
	exts[0] = ".gif"
	if _, err := upload.Validate("photo.gif"); err == nil {
		t.Fatal("mutating the returned slice must not widen the allow-list")
	}
}

func TestVideoExtension(t *testing.T) {
	v := upload.Video{Filename: "Holiday.MOV"}
	if v.Extension() != ".mov" {
		t.Fatalf("expected .mov, got %q", v.Extension())
	}
}
