package config

import (
	"fmt"
	"slices"
	"strings"
)

// SaveType selects which creator lists are archived
type SaveType string

const (
	SaveAll        SaveType = "all"
	SaveFollowing  SaveType = "following"
	SaveSupporting SaveType = "supporting"
)

// ParseSaveType accepts all, following or supporting in any case
func ParseSaveType(s string) (SaveType, error) {
	switch t := SaveType(strings.ToLower(strings.TrimSpace(s))); t {
	case SaveAll, SaveFollowing, SaveSupporting:
		return t, nil
	default:
		return "", fmt.Errorf("unknown save type %q (want all, following or supporting)", s)
	}
}

func (s SaveType) AcceptFollowing() bool {
	return s == SaveFollowing || s == SaveAll
}

func (s SaveType) AcceptSupporting() bool {
	return s == SaveSupporting || s == SaveAll
}

func (s SaveType) String() string {
	return string(s)
}

// AcceptCreator applies the skip-free, whitelist and blacklist rules
func (f FilterConfig) AcceptCreator(id string, fee uint32) bool {
	if f.SkipFree && fee == 0 {
		return false
	}
	if len(f.Whitelist) > 0 && !slices.Contains(f.Whitelist, id) {
		return false
	}
	return !slices.Contains(f.Blacklist, id)
}

// AcceptPost drops restricted posts and, with skip-free, free ones
func (f FilterConfig) AcceptPost(feeRequired uint32, restricted bool) bool {
	if restricted {
		return false
	}
	return !(f.SkipFree && feeRequired == 0)
}
