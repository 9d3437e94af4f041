// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package spool

import (
	"strings"

	"github.com/z5labs/spool/storage"
)

// Names of the built-in performance presets.
const (
	LowRuntimeImpact    = "lowRuntimeImpact"
	InstantDataDelivery = "instantDataDelivery"
)

var presets = map[string]storage.Preset{
	strings.ToLower(LowRuntimeImpact):    storage.LowRuntimeImpact,
	strings.ToLower(InstantDataDelivery): storage.InstantDataDelivery,
}

// LookupPreset returns the performance preset called name. Names are
// case insensitive.
func LookupPreset(name string) (storage.Preset, error) {
	p, ok := presets[strings.ToLower(name)]
	if !ok {
		return storage.Preset{}, UnknownPresetError{Name: name}
	}
	return p, nil
}

// PresetNames lists the built-in performance presets.
func PresetNames() []string {
	return []string{LowRuntimeImpact, InstantDataDelivery}
}
