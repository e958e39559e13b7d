package models

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"BloodLink/pkg/errors"
	"BloodLink/pkg/flatstore"
)

// LoginForm is the body of POST login.
type LoginForm struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Account is a credential row without its password.
type Account struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	EntityID string `json:"entity_id"`
}

// Authenticate checks form against the credentials table. Unknown users and
// wrong passwords give the same 401.
func (r *Repo) Authenticate(form LoginForm) (*Account, error) {
	rows, err := r.store.Load(CredentialTable)
	if err != nil {
		return nil, err
	}
	user := strings.TrimSpace(form.Username)
	for _, row := range rows {
		if !strings.EqualFold(strings.TrimSpace(row["username"]), user) {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(row["password"]), []byte(form.Password)) != 1 {
			break
		}
		return &Account{
			Username: row["username"],
			Role:     strings.ToLower(strings.TrimSpace(row["role"])),
			EntityID: row["entity_id"],
		}, nil
	}
	return nil, errors.WithCode(http.StatusUnauthorized, "invalid username or password")
}

// AddCredential appends one account; an existing username is a Conflict.
func (r *Repo) AddCredential(username, password, role, entityID string) error {
	return r.store.Append(CredentialTable, flatstore.Row{
		"username":  username,
		"password":  password,
		"role":      role,
		"entity_id": entityID,
	})
}
