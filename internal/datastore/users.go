// users.go implements persistence for accounts, researcher profiles and
// the single-use tokens behind activation and password reset links.
package datastore

import (
	"time"

	"github.com/mousetube/mousetube-go/internal/errors"
	"gorm.io/gorm"
)

func (ds *DataStore) SaveUser(user *User) error {
	if user.Username == "" {
		return validationError("username is required", "username", user.Username)
	}
	// Profiles are saved explicitly through SaveUserProfile
	return mapWriteError(ds.DB.Omit("Profile").Save(user).Error, "save_user", "username", user.Username)
}

func (ds *DataStore) GetUser(id uint) (User, error) {
	var user User
	if err := ds.DB.Preload("Profile").First(&user, id).Error; err != nil {
		return User{}, mapLookupError(err, ErrUserNotFound, "get_user", "id", id)
	}
	return user, nil
}

func (ds *DataStore) GetUserByUsername(username string) (User, error) {
	var user User
	err := ds.DB.Preload("Profile").Where("username = ?", username).First(&user).Error
	if err != nil {
		return User{}, mapLookupError(err, ErrUserNotFound, "get_user_by_username", "username", username)
	}
	return user, nil
}

func (ds *DataStore) GetUserByEmail(email string) (User, error) {
	var user User
	err := ds.DB.Preload("Profile").Where("lower(email) = lower(?)", email).First(&user).Error
	if err != nil {
		return User{}, mapLookupError(err, ErrUserNotFound, "get_user_by_email")
	}
	return user, nil
}

// GetUserByORCID resolves the account linked to an ORCID iD during the
// OAuth callback.
func (ds *DataStore) GetUserByORCID(orcid string) (User, error) {
	if orcid == "" {
		return User{}, validationError("orcid is required", "orcid", orcid)
	}
	var user User
	err := ds.DB.
		Preload("Profile").
		Joins("JOIN user_profiles up ON up.user_id = users.id").
		Where("up.orcid = ?", orcid).
		First(&user).Error
	if err != nil {
		return User{}, mapLookupError(err, ErrUserNotFound, "get_user_by_orcid")
	}
	return user, nil
}

func (ds *DataStore) ListUsers() ([]User, error) {
	var users []User
	if err := ds.DB.Preload("Profile").Order("username ASC").Find(&users).Error; err != nil {
		return nil, dbError(err, "list_users")
	}
	return users, nil
}

// SaveUserProfile upserts the profile of a user. A profile created
// elsewhere for the same user is updated in place.
func (ds *DataStore) SaveUserProfile(profile *UserProfile) error {
	if profile.UserID == 0 {
		return validationError("profile needs a user", "user_id", profile.UserID)
	}
	if profile.ID == 0 {
		var existing UserProfile
		err := ds.DB.Select("id").Where("user_id = ?", profile.UserID).First(&existing).Error
		switch {
		case err == nil:
			profile.ID = existing.ID
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return dbError(err, "save_user_profile", "user_id", profile.UserID)
		}
	}
	return mapWriteError(ds.DB.Save(profile).Error, "save_user_profile", "user_id", profile.UserID)
}

// updateUserColumns applies a column update to one user, verifying the
// row exists first so an unchanged update is not mistaken for a missing
// user.
func (ds *DataStore) updateUserColumns(id uint, operation string, cols map[string]any) error {
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		var user User
		if err := tx.Select("id").First(&user, id).Error; err != nil {
			return err
		}
		return tx.Model(&user).Updates(cols).Error
	})
	return mapLookupError(err, ErrUserNotFound, operation, "id", id)
}

func (ds *DataStore) SetUserActive(id uint, active bool) error {
	return ds.updateUserColumns(id, "set_user_active", map[string]any{
		"is_active": active,
	})
}

// SetUserPassword replaces the stored hash and drops any legacy hash so
// migrated accounts authenticate against bcrypt only from here on.
func (ds *DataStore) SetUserPassword(id uint, passwordHash string) error {
	if passwordHash == "" {
		return validationError("password hash is required", "password_hash", "")
	}
	return ds.updateUserColumns(id, "set_user_password", map[string]any{
		"password_hash":   passwordHash,
		"legacy_password": "",
	})
}

func (ds *DataStore) TouchUserLogin(id uint, when time.Time) error {
	return ds.updateUserColumns(id, "touch_user_login", map[string]any{
		"last_login": when,
	})
}

// --- tokens ---

func validTokenPurpose(purpose string) bool {
	switch purpose {
	case TokenPurposeActivation, TokenPurposePasswordReset:
		return true
	}
	return false
}

func (ds *DataStore) CreateUserToken(token *UserToken) error {
	if token.UserID == 0 {
		return validationError("token needs a user", "user_id", token.UserID)
	}
	if !validTokenPurpose(token.Purpose) {
		return validationError("unknown token purpose", "purpose", token.Purpose)
	}
	if len(token.TokenHash) != 64 {
		return validationError("token hash must be a hex SHA-256", "token_hash", len(token.TokenHash))
	}
	if token.ExpiresAt.IsZero() {
		return validationError("token needs an expiry", "expires_at", token.ExpiresAt)
	}
	return mapWriteError(ds.DB.Create(token).Error, "create_user_token", "purpose", token.Purpose)
}

// ConsumeUserToken redeems an unexpired, unused token and marks it used
// in the same transaction. Unknown, expired and already-used tokens all
// come back as ErrTokenInvalid so callers leak nothing about which case
// applied.
func (ds *DataStore) ConsumeUserToken(tokenHash, purpose string) (UserToken, error) {
	var token UserToken
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.
			Where("token_hash = ? AND purpose = ? AND used_at IS NULL AND expires_at > ?",
				tokenHash, purpose, time.Now()).
			First(&token).Error
		if err != nil {
			return err
		}
		now := time.Now()
		token.UsedAt = &now
		return tx.Model(&token).Update("used_at", now).Error
	})
	if err != nil {
		return UserToken{}, mapLookupError(err, ErrTokenInvalid, "consume_user_token", "purpose", purpose)
	}
	return token, nil
}

// PurgeExpiredTokens removes spent and expired tokens, returning the
// number deleted.
func (ds *DataStore) PurgeExpiredTokens() (int64, error) {
	result := ds.DB.
		Where("expires_at < ? OR used_at IS NOT NULL", time.Now()).
		Delete(&UserToken{})
	if result.Error != nil {
		return 0, dbError(result.Error, "purge_expired_tokens")
	}
	return result.RowsAffected, nil
}
