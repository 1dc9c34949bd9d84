// Package model contains domain models passed between layers.
package model

import "time"

// ProviderEmail marks accounts that sign in with email and password.
const ProviderEmail = "email"

// User is a player account.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	DisplayName  string     `json:"displayName"`
	AvatarURL    string     `json:"avatarUrl,omitempty"`
	Provider     string     `json:"provider"`
	ProviderID   string     `json:"-"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastSignInAt *time.Time `json:"lastSignInAt,omitempty"`
}

// Profile is the public view of a user shown next to questions they wrote.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// ProfileUpdate holds the user-editable fields; nil means unchanged.
type ProfileUpdate struct {
	Username    *string `json:"username,omitempty"`
	DisplayName *string `json:"displayName,omitempty"`
	AvatarURL   *string `json:"avatarUrl,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.Username == nil && u.DisplayName == nil && u.AvatarURL == nil
}

// OAuthIdentity is what an identity provider hands back after sign-in.
type OAuthIdentity struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
	Provider    string `json:"provider"`
	ProviderID  string `json:"providerId"`
}
