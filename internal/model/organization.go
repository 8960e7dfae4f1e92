package model

// Organization is the tenant read model. Name and LogoURL are snapshotted into
// certificates at issuance.
type Organization struct {
	ID      int64  `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	LogoURL string `db:"logo_url" json:"logo_url"`
}

// ProviderSetting is one tenant's switch for a delivery provider.
type ProviderSetting struct {
	Enabled bool `json:"enabled"`
	// Endpoint is used by providers that deliver to a tenant-owned URL.
	Endpoint string `json:"endpoint,omitempty"`
	// FromAddress overrides the platform sender address when set.
	FromAddress string `json:"from_address,omitempty"`
}

// ProviderSettings maps provider id to the tenant's setting for it.
type ProviderSettings map[string]ProviderSetting

// Enabled reports whether providerID is switched on. Unknown providers are off.
func (s ProviderSettings) Enabled(providerID string) bool {
	setting, ok := s[providerID]
	return ok && setting.Enabled
}
