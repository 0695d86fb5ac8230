package domain

import "time"

type UserProfile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FullName    string    `json:"full_name,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Company     string    `json:"company,omitempty"`
	Role        string    `json:"role,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CertificateName picks the name printed on a certificate.
func (p *UserProfile) CertificateName() string {
	if p != nil {
		if p.FullName != "" {
			return p.FullName
		}
		if p.DisplayName != "" {
			return p.DisplayName
		}
	}
	return DefaultCertificateName
}
