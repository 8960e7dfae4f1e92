package model

import "strings"

// Profile is the user read model used for recipient and signer snapshots.
type Profile struct {
	UserID       int64  `db:"user_id" json:"user_id"`
	FirstName    string `db:"first_name" json:"first_name"`
	LastName     string `db:"last_name" json:"last_name"`
	Email        string `db:"email" json:"email"`
	SignatureURL string `db:"signature_url" json:"signature_url"`
}

func (p *Profile) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}
