package domain

import (
	"encoding/json"
	"time"
)

type TrainingModule struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description,omitempty"`
	OrderIndex      int           `json:"order_index"`
	DurationMinutes int           `json:"duration_minutes"`
	VideoURL        string        `json:"video_url,omitempty"`
	PPTURL          string        `json:"ppt_url,omitempty"`
	IsActive        *bool         `json:"is_active,omitempty"`
	Content         ModuleContent `json:"content"`
	CreatedAt       *time.Time    `json:"created_at,omitempty"`
	UpdatedAt       *time.Time    `json:"updated_at,omitempty"`
}

// AIBasicsVideo lives in its own catalog and never counts toward a certificate.
type AIBasicsVideo struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	VideoURL        string     `json:"video_url"`
	ThumbnailURL    string     `json:"thumbnail_url,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	OrderIndex      int        `json:"order_index"`
	IsActive        *bool      `json:"is_active,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
}

// ModuleContent is the authored payload of a module. Known sections are typed,
// anything else authors put there is kept in Extra and written back unchanged.
type ModuleContent struct {
	Topics      []string       `json:"topics,omitempty"`
	Objectives  []string       `json:"objectives,omitempty"`
	KeyConcepts []string       `json:"key_concepts,omitempty"`
	Extra       map[string]any `json:"-"`
}

var moduleContentKeys = map[string]struct{}{
	"topics":       {},
	"objectives":   {},
	"key_concepts": {},
}

func (c *ModuleContent) UnmarshalJSON(data []byte) error {
	type known ModuleContent
	var k known
	if err := json.Unmarshal(data, &k); err != nil {
		return err
	}

	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}

	*c = ModuleContent(k)
	for key, v := range all {
		if _, ok := moduleContentKeys[key]; ok {
			continue
		}
		if c.Extra == nil {
			c.Extra = make(map[string]any)
		}
		c.Extra[key] = v
	}
	return nil
}

func (c ModuleContent) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Extra)+3)
	for k, v := range c.Extra {
		out[k] = v
	}
	if len(c.Topics) > 0 {
		out["topics"] = c.Topics
	}
	if len(c.Objectives) > 0 {
		out["objectives"] = c.Objectives
	}
	if len(c.KeyConcepts) > 0 {
		out["key_concepts"] = c.KeyConcepts
	}
	return json.Marshal(out)
}

// Active treats a missing flag as active.
func (m TrainingModule) Active() bool { return m.IsActive == nil || *m.IsActive }

func (v AIBasicsVideo) Active() bool { return v.IsActive == nil || *v.IsActive }
