package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDOI(t *testing.T) {
	t.Parallel()

	valid := []string{
		"",
		"10.5281/zenodo.1234567",
		"10.1371/journal.pone.0003067",
		"10.1016/j.neubiorev.2016.06.029",
		"10.12345/some(thing);weird",
	}
	for _, doi := range valid {
		assert.NoError(t, ValidateDOI(doi), "doi %q", doi)
	}

	invalid := []string{
		"zenodo.1234567",
		"10.12/tooshortprefix",
		"11.5281/zenodo.1234567",
		"10.5281/",
		"doi:10.5281/zenodo.1234567",
		"10.5281/zenodo 1234567",
	}
	for _, doi := range invalid {
		assert.Error(t, ValidateDOI(doi), "doi %q", doi)
	}
}

func TestValidateURL(t *testing.T) {
	t.Parallel()

	valid := []string{
		"",
		"https://zenodo.org/record/1234567",
		"http://mousetube.fr/media/audio/call.wav",
		"https://example.org:8443/path?query=1",
		"HTTPS://EXAMPLE.ORG/UPPER",
	}
	for _, url := range valid {
		assert.NoError(t, ValidateURL(url), "url %q", url)
	}

	invalid := []string{
		"ftp://example.org/file",
		"example.org/no-scheme",
		"https://nodots/path",
		"https://",
		"not a url at all",
	}
	for _, url := range invalid {
		assert.Error(t, ValidateURL(url), "url %q", url)
	}
}

func TestDOILinkConsistency(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		doi     string
		link    string
		wantErr bool
	}{
		{"both empty", "", "", false},
		{"both set", "10.5281/zenodo.1234567", "https://zenodo.org/record/1234567", false},
		{"doi without link", "10.5281/zenodo.1234567", "", true},
		{"external link without doi", "", "https://elsewhere.example.org/call.wav", true},
		{"local link without doi", "", "https://mousetube.fr/recordings/12", false},
		{"own media link without doi", "", "https://usv.example.org/media/audio/call.wav", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := validateDOILinkConsistency(tc.doi, tc.link)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
