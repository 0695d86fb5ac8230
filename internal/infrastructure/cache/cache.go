// Package cache is the short-lived read-through memo in front of the document
// store. Values expire DefaultTTL after they were written. Callers must build
// keys from the full user/module tuple, see the key helpers below.
package cache

import (
	"context"
	"fmt"
	"time"
)

const DefaultTTL = 5 * time.Minute

type Cache interface {
	// Get decodes the cached value into dest and reports whether it was present.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, keys ...string) error
}

func UserProgressKey(userID string) string {
	return "progress:user:" + userID
}

func ModuleProgressKey(userID, moduleID string) string {
	return fmt.Sprintf("progress:module:%s:%s", userID, moduleID)
}

func ModulesKey() string { return "catalog:modules" }

func ModuleKey(moduleID string) string { return "catalog:module:" + moduleID }

func VideosKey(limit int) string {
	if limit <= 0 {
		return "catalog:videos:all"
	}
	return fmt.Sprintf("catalog:videos:%d", limit)
}

func CertificateKey(userID string) string { return "certificate:user:" + userID }

func ProfileKey(userID string) string { return "profile:" + userID }
