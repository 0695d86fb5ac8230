package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/waste3d/training-portal/internal/infrastructure/docstore"
)

// Seed is the authored catalog as kept in YAML.
type Seed struct {
	Modules []SeedModule `yaml:"modules" validate:"dive"`
	Videos  []SeedVideo  `yaml:"videos" validate:"dive"`
}

type SeedModule struct {
	ID              string         `yaml:"id" validate:"required"`
	Title           string         `yaml:"title" validate:"required"`
	Description     string         `yaml:"description"`
	OrderIndex      int            `yaml:"order_index" validate:"gte=0"`
	DurationMinutes int            `yaml:"duration_minutes" validate:"gte=0"`
	VideoURL        string         `yaml:"video_url" validate:"omitempty,url"`
	PPTURL          string         `yaml:"ppt_url" validate:"omitempty,url"`
	IsActive        *bool          `yaml:"is_active"`
	Content         map[string]any `yaml:"content"`
}

type SeedVideo struct {
	ID              string `yaml:"id" validate:"required"`
	Title           string `yaml:"title" validate:"required"`
	Description     string `yaml:"description"`
	VideoURL        string `yaml:"video_url" validate:"required,url"`
	ThumbnailURL    string `yaml:"thumbnail_url" validate:"omitempty,url"`
	DurationMinutes int    `yaml:"duration_minutes" validate:"gte=0"`
	OrderIndex      int    `yaml:"order_index" validate:"gte=0"`
	IsActive        *bool  `yaml:"is_active"`
}

func LoadSeed(r io.Reader) (Seed, error) {
	var s Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	if err := validator.New().Struct(s); err != nil {
		return Seed{}, fmt.Errorf("invalid seed: %w", err)
	}

	seen := make(map[string]bool)
	for _, m := range s.Modules {
		if seen["m:"+m.ID] {
			return Seed{}, fmt.Errorf("duplicate module id %q", m.ID)
		}
		seen["m:"+m.ID] = true
	}
	for _, v := range s.Videos {
		if seen["v:"+v.ID] {
			return Seed{}, fmt.Errorf("duplicate video id %q", v.ID)
		}
		seen["v:"+v.ID] = true
	}
	return s, nil
}

// ApplySeed writes every catalog entry under its own id, replacing what was there.
func ApplySeed(ctx context.Context, store docstore.Store, s Seed) error {
	for _, m := range s.Modules {
		fields := map[string]any{
			"title":            m.Title,
			"description":      m.Description,
			"order_index":      m.OrderIndex,
			"duration_minutes": m.DurationMinutes,
			"video_url":        m.VideoURL,
			"ppt_url":          m.PPTURL,
			"is_active":        active(m.IsActive),
			"content":          content(m.Content),
			"created_at":       docstore.ServerTimestamp,
			"updated_at":       docstore.ServerTimestamp,
		}
		if err := store.Set(ctx, docstore.TrainingModules, m.ID, fields); err != nil {
			return fmt.Errorf("seed module %s: %w", m.ID, err)
		}
	}
	for _, v := range s.Videos {
		fields := map[string]any{
			"title":            v.Title,
			"description":      v.Description,
			"video_url":        v.VideoURL,
			"thumbnail_url":    v.ThumbnailURL,
			"duration_minutes": v.DurationMinutes,
			"order_index":      v.OrderIndex,
			"is_active":        active(v.IsActive),
			"created_at":       docstore.ServerTimestamp,
		}
		if err := store.Set(ctx, docstore.AIBasicsVideos, v.ID, fields); err != nil {
			return fmt.Errorf("seed video %s: %w", v.ID, err)
		}
	}
	return nil
}

func active(v *bool) bool { return v == nil || *v }

func content(c map[string]any) map[string]any {
	if c == nil {
		return map[string]any{}
	}
	return c
}

func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <catalog.yaml>",
		Short: "Load training modules and videos from a YAML file",
		Long: `Load training modules and videos from a YAML file.

Entries are written under their own ids, so re-running the same file is safe.

Example:
  portalctl seed ./seed/catalog.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			s, err := LoadSeed(f)
			if err != nil {
				return err
			}
			cfg, err := rootOpts.config()
			if err != nil {
				return err
			}
			store, err := rootOpts.store(cfg)
			if err != nil {
				return err
			}
			if err := ApplySeed(cmd.Context(), store, s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d modules and %d videos\n", len(s.Modules), len(s.Videos))
			return nil
		},
	}
}
