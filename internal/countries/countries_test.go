package countries

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAll(t *testing.T) {
	t.Parallel()

	all, err := All()
	require.NoError(t, err)
	assert.Len(t, all, 249, "ISO 3166-1 assigns 249 alpha-2 codes")

	// Sorted by English name
	for i := 1; i < len(all); i++ {
		assert.LessOrEqual(t, all[i-1].Name, all[i].Name)
	}
}

func TestByCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		code     string
		wantName string
		wantOK   bool
	}{
		{"upper case", "FR", "France", true},
		{"lower case", "fr", "France", true},
		{"padded", " de ", "Germany", true},
		{"unassigned", "XX", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, ok := ByCode(tt.code)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantName, c.Name)
		})
	}
}

func TestCodeForName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantCode string
		wantOK   bool
	}{
		{"exact", "France", "FR", true},
		{"case insensitive", "fRaNcE", "FR", true},
		{"padded", "  United States  ", "US", true},
		{"comma form", "Korea, Republic of", "KR", true},
		{"unknown legacy name", "Republic of Korea", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, ok := CodeForName(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestValidCode(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidCode(""), "country fields are optional")
	assert.True(t, ValidCode("FI"))
	assert.False(t, ValidCode("ZZ"))
}
