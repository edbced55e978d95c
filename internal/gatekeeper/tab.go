package gatekeeper

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BradenHooton/admingate/internal/models"
	"github.com/BradenHooton/admingate/internal/store"
)

// TabIDKey is the tab-scoped key caching the tab identifier
const TabIDKey = "adminTabId"

const tabSuffixLen = 9

var tabIDPattern = regexp.MustCompile(`^tab_[0-9]+_[0-9a-z]{9}$`)

// NewTabID returns a fresh identifier of the form tab_<unix-ms>_<9 base36 chars>
func NewTabID(now time.Time) string {
	id := uuid.New()
	suffix := strconv.FormatUint(binary.BigEndian.Uint64(id[:8]), 36)
	if len(suffix) < tabSuffixLen {
		suffix = strings.Repeat("0", tabSuffixLen-len(suffix)) + suffix
	}
	return fmt.Sprintf("tab_%d_%s", now.UnixMilli(), suffix[:tabSuffixLen])
}

// ValidTabID reports whether s has the tab identifier shape
func ValidTabID(s string) bool {
	return tabIDPattern.MatchString(s)
}

// ResolveTabID returns the tab id cached in tabStore, generating and caching one on first use
func ResolveTabID(ctx context.Context, tabStore store.SessionStore, now time.Time) (string, error) {
	tabID, err := tabStore.Get(ctx, TabIDKey)
	if err == nil && ValidTabID(tabID) {
		return tabID, nil
	}
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return "", fmt.Errorf("failed to read tab id: %w", err)
	}

	tabID = NewTabID(now)
	if err := tabStore.Set(ctx, TabIDKey, tabID); err != nil {
		return "", fmt.Errorf("failed to cache tab id: %w", err)
	}
	return tabID, nil
}
