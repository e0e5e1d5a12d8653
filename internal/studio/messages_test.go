package studio

import "testing"

func TestStatusText(t *testing.T) {
	tests := []struct {
		status Status
		locale string
		want   string
	}{
		{StatusConnecting, "en", "Connecting to ComfyUI..."},
		{StatusGenerating, "en", "Generating image..."},
		{StatusConnecting, "id", "Menghubungkan ke ComfyUI..."},
		{StatusGenerating, "id", "Sedang membuat gambar..."},
		{StatusGenerating, "not-a-locale!", "Generating image..."},
		{StatusNone, "id", ""},
	}
	for _, tc := range tests {
		if got := StatusText(tc.status, tc.locale); got != tc.want {
			t.Fatalf("StatusText(%q, %q) = %q, want %q", tc.status, tc.locale, got, tc.want)
		}
	}
}

func TestErrorTextPassesThroughBackendMessages(t *testing.T) {
	if got := ErrorText(TimeoutError, "id"); got != "Waktu pembuatan gambar habis" {
		t.Fatalf("timeout text = %q", got)
	}
	if got := ErrorText("ComfyUI Error: 100% Bad Gateway", "id"); got != "ComfyUI Error: 100% Bad Gateway" {
		t.Fatalf("backend message altered: %q", got)
	}
}
