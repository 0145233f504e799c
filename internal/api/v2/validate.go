// validate.go: field validation shared by the recording and dataset
// handlers.
package api

import (
	"regexp"
	"strings"

	"github.com/mousetube/mousetube-go/internal/errors"
)

var (
	doiPattern = regexp.MustCompile(`(?i)^10\.\d{4,9}/[-._;()/:A-Z0-9]+$`)
	urlPattern = regexp.MustCompile(`(?i)^(https?://)(([A-Z0-9][A-Z0-9_-]*)(\.[A-Z0-9][A-Z0-9_-]*)+)(:\d+)?(/.*)?$`)
)

// localLinkPrefixes are link hosts that identify this instance, where a
// recording may live without a DOI.
var localLinkPrefixes = []string{
	"http://127.0.0.1",
	"http://localhost",
	"http://mousetube.fr",
	"https://mousetube.fr",
}

// ValidateDOI checks the DOI format. Empty values pass, the field is
// optional until deposition fills it.
func ValidateDOI(value string) error {
	if value == "" {
		return nil
	}
	if !doiPattern.MatchString(strings.TrimSpace(value)) {
		return errors.Newf("invalid DOI format: %s", value).
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// ValidateURL checks that the value is an absolute http(s) URL with a
// dotted host. Empty values pass.
func ValidateURL(value string) error {
	if value == "" {
		return nil
	}
	if !urlPattern.MatchString(strings.TrimSpace(value)) {
		return errors.Newf("invalid URL format: %s", value).
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// validateDOILinkConsistency enforces the rule between the two fields:
// a DOI needs a link to retrieve the record, and an off-site link needs
// a DOI so the reference stays citable.
func validateDOILinkConsistency(doi, link string) error {
	if doi != "" && link == "" {
		return errors.Newf("a link is required when a DOI is provided").
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}

	if link != "" && doi == "" && !isLocalLink(link) {
		return errors.Newf("a DOI is required when providing an external link").
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

func isLocalLink(link string) bool {
	for _, prefix := range localLinkPrefixes {
		if strings.HasPrefix(link, prefix) {
			return true
		}
	}
	return strings.Contains(link, "/media/")
}
