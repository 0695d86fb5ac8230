package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	CertificatePrefix      = "ACA"
	CertificateValidity    = 365 * 24 * time.Hour
	DefaultCertificateName = "AI Compliance Professional"
)

type Certificate struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	CertificateNumber string          `json:"certificate_number"`
	Data              CertificateData `json:"certificate_data"`
	IssuedAt          *time.Time      `json:"issued_at,omitempty"`
	ExpiresAt         time.Time       `json:"expires_at"`
	IsValid           bool            `json:"is_valid"`
}

// Expired is evaluated at read time, the stored record never changes.
func (c *Certificate) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// CertificateData is the completion snapshot taken at issuance.
type CertificateData struct {
	UserName         string              `json:"user_name"`
	Company          string              `json:"company"`
	CompletionDate   time.Time           `json:"completion_date"`
	ModulesCompleted int                 `json:"modules_completed"`
	TotalHours       float64             `json:"total_hours"`
	ModulesList      []CertificateModule `json:"modules_list"`
	Extra            map[string]any      `json:"-"`
}

type CertificateModule struct {
	Title           string     `json:"title"`
	DurationMinutes int        `json:"duration"`
	CompletedDate   *time.Time `json:"completed_date,omitempty"`
}

var certificateDataKeys = map[string]struct{}{
	"user_name":         {},
	"company":           {},
	"completion_date":   {},
	"modules_completed": {},
	"total_hours":       {},
	"modules_list":      {},
}

func (d *CertificateData) UnmarshalJSON(data []byte) error {
	type known CertificateData
	var k known
	if err := json.Unmarshal(data, &k); err != nil {
		return err
	}

	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}

	*d = CertificateData(k)
	for key, v := range all {
		if _, ok := certificateDataKeys[key]; ok {
			continue
		}
		if d.Extra == nil {
			d.Extra = make(map[string]any)
		}
		d.Extra[key] = v
	}
	return nil
}

func (d CertificateData) MarshalJSON() ([]byte, error) {
	type known CertificateData
	base, err := json.Marshal(known(d))
	if err != nil {
		return nil, err
	}
	if len(d.Extra) == 0 {
		return base, nil
	}

	out := make(map[string]any, len(d.Extra)+len(certificateDataKeys))
	for k, v := range d.Extra {
		out[k] = v
	}
	var fields map[string]any
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		out[k] = v
	}
	return json.Marshal(out)
}

// CertificateNumber builds ACA-<unix millis>-<USERID8>. Unique enough to read
// off a printed certificate, not a security token.
func CertificateNumber(issuedAt time.Time, userID string) string {
	fragment := userID
	if len(fragment) > 8 {
		fragment = fragment[:8]
	}
	return fmt.Sprintf("%s-%d-%s", CertificatePrefix, issuedAt.UnixMilli(), strings.ToUpper(fragment))
}

// TrainingHours converts minutes to hours rounded to one decimal.
func TrainingHours(minutes int) float64 {
	return math.Round(float64(minutes)/60*10) / 10
}
