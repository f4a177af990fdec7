package cors_test

import (
	"testing"

	"github.com/abearman/mindful-sub000/api/cors"
	"github.com/stretchr/testify/assert"
)

func TestNewPolicy(t *testing.T) {
	p := cors.NewPolicy(" abc , ,def,https://app.example/ ", "https://legacy.example/", true)

	assert.Equal(t, map[string]struct{}{
		"chrome-extension://abc": {},
		"chrome-extension://def": {},
		"https://app.example":    {},
		"https://legacy.example": {},
	}, p.Origins)
	assert.True(t, p.Production)
	assert.False(t, p.Unconfigured())
}

func TestUnconfigured(t *testing.T) {
	assert.True(t, cors.NewPolicy("", "", true).Unconfigured())
	assert.True(t, cors.NewPolicy(" , ", "  ", true).Unconfigured())
	assert.False(t, cors.NewPolicy("", "", false).Unconfigured())
	assert.False(t, cors.NewPolicy("", "https://legacy.example", true).Unconfigured())
}

func TestDecide(t *testing.T) {
	prod := cors.NewPolicy("abc", "https://legacy.example", true)
	dev := cors.NewPolicy("", "", false)

	tests := []struct {
		name       string
		policy     cors.Policy
		origin     string
		wantAllow  bool
		wantOrigin string
	}{
		{"prod extension", prod, "chrome-extension://abc", true, "chrome-extension://abc"},
		{"prod legacy", prod, "https://legacy.example", true, "https://legacy.example"},
		{"prod unknown", prod, "chrome-extension://evil", false, ""},
		{"prod no origin", prod, "", true, ""},
		{"dev reflects anything", dev, "http://localhost:3000", true, "http://localhost:3000"},
		{"unconfigured prod", cors.NewPolicy("", "", true), "chrome-extension://abc", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := cors.Decide(tt.policy, tt.origin)
			assert.Equal(t, tt.wantAllow, d.Allow)
			assert.Equal(t, tt.wantOrigin, d.Headers["Access-Control-Allow-Origin"])
			assert.Equal(t, cors.AllowMethods, d.Headers["Access-Control-Allow-Methods"])
			assert.Equal(t, cors.AllowHeaders, d.Headers["Access-Control-Allow-Headers"])
			assert.Equal(t, "Origin", d.Headers["Vary"])
		})
	}
}

func TestDecide_HeadersNotShared(t *testing.T) {
	p := cors.NewPolicy("abc", "", true)
	a := cors.Decide(p, "chrome-extension://abc")
	a.Headers["X-Mutated"] = "1"

	b := cors.Decide(p, "chrome-extension://abc")
	_, ok := b.Headers["X-Mutated"]
	assert.False(t, ok)
}
