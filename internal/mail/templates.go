// templates.go: embedded HTML templates for account and admin emails.
package mail

import (
	"embed"
	"html/template"
	"strings"

	"github.com/mousetube/mousetube-go/internal/errors"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template names double as metric labels.
const (
	TemplateActivation    = "activation"
	TemplatePasswordReset = "password_reset"
	TemplateAdminNotice   = "admin_notice"
)

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// accountData is the context for activation and password reset templates.
type accountData struct {
	SiteName  string
	Username  string
	Link      string
	ExpiresIn string
}

// noticeData is the context for the admin notice template.
type noticeData struct {
	SiteName string
	Node     string
	Subject  string
	Lines    []string
}

func render(name string, data any) (string, error) {
	var buf strings.Builder
	if err := templates.ExecuteTemplate(&buf, name+".html", data); err != nil {
		return "", errors.New(err).
			Component("mail").
			Category(errors.CategoryMail).
			Context("template", name).
			Build()
	}
	return buf.String(), nil
}
