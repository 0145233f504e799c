package importer

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/mousetube/mousetube-go/internal/countries"
	"github.com/mousetube/mousetube-go/internal/datastore"
	"github.com/mousetube/mousetube-go/internal/errors"
)

// legacyUserColumns is the column count of the old site's user table:
// id, name, first name, email, phone, unit, institution, address,
// country, login, password, administrator flag, salt, confirm code.
const legacyUserColumns = 14

// legacyUser is one row of the v0 user table.
type legacyUser struct {
	ID          string
	LastName    string
	FirstName   string
	Email       string
	Phone       string
	Unit        string
	Institution string
	Address     string
	Country     string
	Login       string
	Password    string
	Admin       string
	Salt        string
	ConfirmCode string
}

// ImportLegacyUsers loads accounts from a v0 site SQL dump of the user
// table. Existing usernames are left untouched. Imported accounts keep
// their old password hash in a separate column and must go through a
// password reset before the first login.
func (i *Importer) ImportLegacyUsers(ctx context.Context, path string) (*Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("importer").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	users, err := parseLegacyUsers(string(raw))
	if err != nil {
		return nil, err
	}
	logger.Info("parsed legacy user dump", "path", path, "rows", len(users))

	result := &Result{}
	now := time.Now()

	for _, legacy := range users {
		if err := ctx.Err(); err != nil {
			return result, errors.New(err).
				Component("importer").
				Category(errors.CategoryCancellation).
				Build()
		}

		if legacy.Login == "" {
			logger.Warn("skipping legacy row without login", "legacy_id", legacy.ID)
			result.Skipped++
			continue
		}

		if _, err := i.ds.GetUserByUsername(legacy.Login); err == nil {
			result.Skipped++
			continue
		} else if !errors.Is(err, datastore.ErrUserNotFound) {
			return result, err
		}

		countryCode := ""
		if legacy.Country != "" {
			code, ok := countries.CodeForName(legacy.Country)
			if !ok {
				logger.Warn("unknown country in legacy row",
					"login", legacy.Login, "country", legacy.Country)
			}
			countryCode = code
		}

		user := datastore.User{
			Username:       legacy.Login,
			Email:          strings.ToLower(legacy.Email),
			FirstName:      legacy.FirstName,
			LastName:       legacy.LastName,
			LegacyPassword: legacyPasswordHash(legacy.Salt, legacy.Password),
			IsActive:       legacyConfirmed(legacy.ConfirmCode),
			IsAdmin:        legacy.Admin == "1",
			DateJoined:     now,
		}
		if err := i.ds.SaveUser(&user); err != nil {
			return result, err
		}

		profile := datastore.UserProfile{
			UserID:      user.ID,
			Phone:       legacy.Phone,
			Unit:        legacy.Unit,
			Institution: legacy.Institution,
			Address:     legacy.Address,
			CountryCode: countryCode,
		}
		if err := i.ds.SaveUserProfile(&profile); err != nil {
			return result, err
		}
		result.Created++
	}

	logger.Info("legacy user import finished",
		"created", result.Created, "skipped", result.Skipped)
	return result, nil
}

// legacyPasswordHash joins salt and hash so the stored value is
// self-describing.
func legacyPasswordHash(salt, hash string) string {
	if hash == "" {
		return ""
	}
	if salt == "" {
		return hash
	}
	return salt + "$" + hash
}

// legacyConfirmed reports whether a v0 confirm code marks a validated
// account. The old site blanked the code (or set it to "y") once the
// confirmation link was followed.
func legacyConfirmed(code string) bool {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "", "y", "ok":
		return true
	default:
		return false
	}
}

// parseLegacyUsers cuts a "VALUES (...),(...)" dump into rows. Rows
// with an unexpected column count are dropped with a warning, the old
// exports contain a handful of rows broken by unescaped separators.
func parseLegacyUsers(raw string) ([]legacyUser, error) {
	tuples := splitTuples(raw)
	if len(tuples) == 0 {
		return nil, errors.Newf("no user rows found in dump").
			Component("importer").
			Category(errors.CategoryValidation).
			Build()
	}

	users := make([]legacyUser, 0, len(tuples))
	for n, tuple := range tuples {
		fields := splitOutsideQuotes(tuple)
		if len(fields) != legacyUserColumns {
			logger.Warn("skipping malformed legacy row",
				"row", n+1, "columns", len(fields), "expected", legacyUserColumns)
			continue
		}
		for i := range fields {
			fields[i] = cleanField(fields[i])
		}
		users = append(users, legacyUser{
			ID:          fields[0],
			LastName:    fields[1],
			FirstName:   fields[2],
			Email:       fields[3],
			Phone:       fields[4],
			Unit:        fields[5],
			Institution: fields[6],
			Address:     fields[7],
			Country:     fields[8],
			Login:       fields[9],
			Password:    fields[10],
			Admin:       fields[11],
			Salt:        fields[12],
			ConfirmCode: fields[13],
		})
	}
	return users, nil
}

// splitTuples strips everything before the first opening parenthesis
// and splits the remainder on the "),(" row separator.
func splitTuples(raw string) []string {
	start := strings.Index(raw, "(")
	if start < 0 {
		return nil
	}
	raw = raw[start+1:]

	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(raw, ";")
	raw = strings.TrimSuffix(raw, ")")

	parts := strings.Split(raw, "),(")
	tuples := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			tuples = append(tuples, part)
		}
	}
	return tuples
}

// splitOutsideQuotes splits on commas that are not inside a single or
// double quoted run. Backslash escapes inside quotes are honored.
func splitOutsideQuotes(s string) []string {
	var fields []string
	var current strings.Builder
	var quote rune

	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case quote != 0 && r == '\\':
			current.WriteRune(r)
			escaped = true
		case quote == 0 && (r == '\'' || r == '"'):
			quote = r
			current.WriteRune(r)
		case quote != 0 && r == quote:
			quote = 0
			current.WriteRune(r)
		case quote == 0 && r == ',':
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	fields = append(fields, current.String())
	return fields
}

// cleanField trims a dump value: surrounding quotes go, SQL NULL becomes
// the empty string and backslash escapes are resolved.
func cleanField(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "NULL") {
		return ""
	}
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '\'' && last == '\'') || (first == '"' && last == '"') {
			s = s[1 : len(s)-1]
		}
	}
	replacer := strings.NewReplacer(`\'`, `'`, `\"`, `"`, `\\`, `\`)
	return replacer.Replace(s)
}
