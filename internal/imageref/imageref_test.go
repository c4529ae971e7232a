package imageref

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestResolve проверяет нормализацию всех форматов хранения ссылок
func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected []string
	}{
		{
			name:     "empty string",
			raw:      "",
			expected: nil,
		},
		{
			name:     "null literal",
			raw:      "null",
			expected: nil,
		},
		{
			name:     "json array",
			raw:      `["a","b"]`,
			expected: []string{"a", "b"},
		},
		{
			name:     "json array with numeric channel ids",
			raw:      `[-1001234567890, -1009876543210]`,
			expected: []string{"-1001234567890", "-1009876543210"},
		},
		{
			name:     "json array with mixed elements",
			raw:      `["a", 42, "b", null]`,
			expected: []string{"a", "42", "b"},
		},
		{
			name:     "empty json array",
			raw:      `[]`,
			expected: nil,
		},
		{
			name:     "pg array literal",
			raw:      `{http://x,http://y}`,
			expected: []string{"http://x", "http://y"},
		},
		{
			name:     "pg array literal with quotes and spaces",
			raw:      `{"http://x", "http://y" }`,
			expected: []string{"http://x", "http://y"},
		},
		{
			name:     "empty pg array literal",
			raw:      `{}`,
			expected: nil,
		},
		{
			name:     "bare url",
			raw:      "https://example.com/1.png",
			expected: []string{"https://example.com/1.png"},
		},
		{
			name:     "bare data uri",
			raw:      "data:image/png;base64,iVBOR",
			expected: []string{"data:image/png;base64,iVBOR"},
		},
		{
			name:     "bare channel username",
			raw:      "@mychannel",
			expected: []string{"@mychannel"},
		},
		{
			name:     "bare channel id",
			raw:      "-1001234567890",
			expected: []string{"-1001234567890"},
		},
		{
			name:     "garbage",
			raw:      "not json, no braces",
			expected: nil,
		},
		{
			name:     "broken json",
			raw:      `["a",`,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Resolve(tt.raw))
		})
	}
}
