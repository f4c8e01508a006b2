package handlers_test

import (
	"fmt"
	"net/http"
	"testing"
)

func BenchmarkCreateLink(b *testing.B) {
	h := newTestRouter(b)
	token := register(b, h, "bench@example.com")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := do(b, h, http.MethodPost, "/api/links", token,
			fmt.Sprintf(`{"title":"link %d","url":"https://%d.example.com"}`, i, i))
		if rec.Code != http.StatusCreated {
			b.Fatalf("unexpected status %d", rec.Code)
		}
	}
}

func BenchmarkGetUserLinks(b *testing.B) {
	h := newTestRouter(b)
	token := register(b, h, "bench@example.com")
	for i := 0; i < 50; i++ {
		createLink(b, h, token, fmt.Sprintf("link %d", i), fmt.Sprintf("https://%d.example.com", i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := do(b, h, http.MethodGet, "/api/links", token, "")
		if rec.Code != http.StatusOK {
			b.Fatalf("unexpected status %d", rec.Code)
		}
	}
}
