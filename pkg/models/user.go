package models

type User struct {
	Base `msgpack:",inline"`

	Username          string `json:"username" msgpack:"username"`
	Email             string `json:"email" msgpack:"email"`
	DisplayName       string `json:"display_name,omitempty" msgpack:"display_name"`
	AvatarURL         string `json:"avatar_url,omitempty" msgpack:"avatar_url"`
	PasswordHash      string `json:"-" msgpack:"password_hash"`
	MustResetPassword bool   `json:"must_reset_password" msgpack:"must_reset_password"`
	Role              string `json:"role" msgpack:"role"`
}

func (u *User) NaturalKey() string { return LegacyKey(u.LegacyID) }
func (u *User) ParentKey() string  { return "" }

// SlugKey indexes the username so it stays unique across the collection.
func (u *User) SlugKey() string { return u.Username }
