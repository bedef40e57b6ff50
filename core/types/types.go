// Package types defines core domain types shared across all layers.
// This package contains NO business logic - only type definitions,
// enum parsing and the shared defaults table.
package types

import (
	"fmt"
	"strings"
)

// Size is a warehouse size in its canonical DDL spelling.
type Size string

const (
	SizeXSmall   Size = "XSMALL"
	SizeSmall    Size = "SMALL"
	SizeMedium   Size = "MEDIUM"
	SizeLarge    Size = "LARGE"
	SizeXLarge   Size = "XLARGE"
	SizeXXLarge  Size = "XXLARGE"
	SizeXXXLarge Size = "XXXLARGE"
	SizeX4Large  Size = "X4LARGE"
)

// Sizes lists every size from smallest to largest.
var Sizes = []Size{
	SizeXSmall, SizeSmall, SizeMedium, SizeLarge,
	SizeXLarge, SizeXXLarge, SizeXXXLarge, SizeX4Large,
}

var sizeCredits = map[Size]float64{
	SizeXSmall:   1,
	SizeSmall:    2,
	SizeMedium:   4,
	SizeLarge:    8,
	SizeXLarge:   16,
	SizeXXLarge:  32,
	SizeXXXLarge: 64,
	SizeX4Large:  128,
}

// platform spellings, after removing separators and upper-casing
var sizeAliases = map[string]Size{
	"XSMALL":    SizeXSmall,
	"SMALL":     SizeSmall,
	"MEDIUM":    SizeMedium,
	"LARGE":     SizeLarge,
	"XLARGE":    SizeXLarge,
	"XXLARGE":   SizeXXLarge,
	"2XLARGE":   SizeXXLarge,
	"XXXLARGE":  SizeXXXLarge,
	"3XLARGE":   SizeXXXLarge,
	"X4LARGE":   SizeX4Large,
	"4XLARGE":   SizeX4Large,
	"XXXXLARGE": SizeX4Large,
}

// ParseSize accepts canonical and display spellings such as "X-Small" or "2X-Large".
func ParseSize(s string) (Size, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "", "_", "", " ", "").Replace(key)
	if size, ok := sizeAliases[key]; ok {
		return size, nil
	}
	return "", fmt.Errorf("unknown warehouse size %q", s)
}

// IsValid reports whether s is a canonical size
func (s Size) IsValid() bool {
	_, ok := sizeCredits[s]
	return ok
}

// CreditsPerHour is the credit burn of one running cluster.
func (s Size) CreditsPerHour() float64 {
	return sizeCredits[s]
}

// Ordinal is the position of s in Sizes, or -1.
func (s Size) Ordinal() int {
	for i, candidate := range Sizes {
		if candidate == s {
			return i
		}
	}
	return -1
}

// String returns the string representation
func (s Size) String() string {
	return string(s)
}

// ScalingPolicy controls how a multi-cluster warehouse adds clusters.
type ScalingPolicy string

const (
	ScalingStandard ScalingPolicy = "STANDARD"
	ScalingEconomy  ScalingPolicy = "ECONOMY"
)

// ParseScalingPolicy parses a policy case-insensitively
func ParseScalingPolicy(s string) (ScalingPolicy, error) {
	switch p := ScalingPolicy(strings.ToUpper(strings.TrimSpace(s))); p {
	case ScalingStandard, ScalingEconomy:
		return p, nil
	}
	return "", fmt.Errorf("unknown scaling policy %q", s)
}

// Frequency is the reset interval of a resource monitor quota.
type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
	FrequencyYearly  Frequency = "YEARLY"
	FrequencyNever   Frequency = "NEVER"
)

// ParseFrequency parses a frequency case-insensitively
func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(strings.ToUpper(strings.TrimSpace(s))); f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly, FrequencyNever:
		return f, nil
	}
	return "", fmt.Errorf("unknown monitor frequency %q", s)
}

// ObjectKind names a managed platform object type
type ObjectKind string

const (
	KindWarehouse       ObjectKind = "warehouse"
	KindResourceMonitor ObjectKind = "resource_monitor"
)

// Confidence qualifies a recommendation
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)
