package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDR(t *testing.T) {
	tests := []struct {
		amount int64
		want   string
	}{
		{0, "Rp 0"},
		{500, "Rp 500"},
		{65000, "Rp 65.000"},
		{150000, "Rp 150.000"},
		{1250000, "Rp 1.250.000"},
		{1000000000, "Rp 1.000.000.000"},
		{-65000, "Rp -65.000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IDR(tt.amount))
	}
}

func TestEscapeHTML(t *testing.T) {
	assert.Equal(t, "a &amp; b", EscapeHTML("a & b"))
	assert.Equal(t, "&lt;b&gt;bold&lt;/b&gt;", EscapeHTML("<b>bold</b>"))
	assert.Equal(t, "plain", EscapeHTML("plain"))
}
