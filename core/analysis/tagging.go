package analysis

import (
	"regexp"
	"sort"
	"strings"

	"snowops/core/metadata"
	"snowops/core/types"
)

// Tag names of the governance schema
const (
	TagCostCenter         = "COST_CENTER"
	TagOwner              = "OWNER"
	TagEnvironment        = "ENVIRONMENT"
	TagDataClassification = "DATA_CLASSIFICATION"
	TagCompliance         = "COMPLIANCE"
	TagProject            = "PROJECT"
)

// RequiredTags must be set on every resource
var RequiredTags = []string{TagCostCenter, TagOwner, TagEnvironment}

// AllowedTagValues constrains the tags that are not free-form.
var AllowedTagValues = map[string][]string{
	TagCostCenter:         {"engineering", "analytics", "data_science", "ops", "product"},
	TagDataClassification: {"public", "internal", "confidential", "restricted"},
	TagEnvironment:        {"prod", "staging", "dev", "test"},
	TagCompliance:         {"hipaa", "sox", "gdpr", "none"},
}

// DefaultDataClassification is proposed when nothing better is known
const DefaultDataClassification = "internal"

// Tag review actions
const (
	ActionApprove = "APPROVE"
	ActionReview  = "REVIEW"
)

// TagRecommendation is the proposed tagging of one non-compliant resource.
type TagRecommendation struct {
	Kind     string
	Resource string
	Owner    string

	Missing []string

	// Invalid maps a tag to its value outside the allowed set
	Invalid map[string]string

	// Proposed holds the inferred value of each missing tag that could be
	// inferred
	Proposed map[string]string

	Confidence types.Confidence
	Action     string
}

// Recommendation converts to the generic form
func (r TagRecommendation) Recommendation() types.Recommendation {
	var proposed []string
	for _, k := range sortedKeys(r.Proposed) {
		proposed = append(proposed, k+"="+r.Proposed[k])
	}
	return types.Recommendation{
		Kind:       "tags",
		Subject:    r.Resource,
		Current:    "missing " + strings.Join(r.Missing, ", "),
		Proposed:   strings.Join(proposed, ", "),
		Rationale:  r.Action,
		Confidence: r.Confidence,
	}
}

var nameTokens = regexp.MustCompile(`[a-z0-9]+`)

func tokens(name string) map[string]bool {
	out := make(map[string]bool)
	for _, t := range nameTokens.FindAllString(strings.ToLower(name), -1) {
		out[t] = true
	}
	return out
}

func anyToken(set map[string]bool, words ...string) bool {
	for _, w := range words {
		if set[w] {
			return true
		}
	}
	return false
}

// InferEnvironment reads the environment from naming conventions, or "".
func InferEnvironment(name string) string {
	t := tokens(name)
	switch {
	case anyToken(t, "prod", "prd", "production"):
		return "prod"
	case anyToken(t, "staging", "stg", "stage"):
		return "staging"
	case anyToken(t, "dev", "development"):
		return "dev"
	case anyToken(t, "test", "qa"):
		return "test"
	default:
		return ""
	}
}

// InferCostCenter reads the cost center from naming conventions, or "".
func InferCostCenter(name string) string {
	t := tokens(name)
	switch {
	case anyToken(t, "analytics", "reporting", "bi"):
		return "analytics"
	case anyToken(t, "ml", "ds", "datascience"):
		return "data_science"
	case anyToken(t, "eng", "etl", "engineering", "elt"):
		return "engineering"
	default:
		return ""
	}
}

// ValidTagValue reports whether value is allowed for tag. Free-form tags
// accept any non-empty value.
func ValidTagValue(tag, value string) bool {
	value = strings.TrimSpace(value)
	allowed, ok := AllowedTagValues[upper(tag)]
	if !ok {
		return value != ""
	}
	for _, a := range allowed {
		if strings.EqualFold(a, value) {
			return true
		}
	}
	return false
}

// RecommendTags proposes tags for every resource missing a required tag or
// carrying a value outside the allowed set. Compliant resources are skipped.
func RecommendTags(resources []metadata.TaggedResource) []TagRecommendation {
	var out []TagRecommendation
	for _, res := range resources {
		if rec, ok := recommendTags(res); ok {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Resource < out[j].Resource
	})
	return out
}

func recommendTags(res metadata.TaggedResource) (TagRecommendation, bool) {
	rec := TagRecommendation{
		Kind:     upper(res.Kind),
		Resource: res.Name,
		Owner:    res.Owner,
		Proposed: make(map[string]string),
	}

	tags := make(map[string]string, len(res.Tags))
	for k, v := range res.Tags {
		tags[upper(k)] = v
	}
	for _, tag := range RequiredTags {
		if strings.TrimSpace(tags[tag]) == "" {
			rec.Missing = append(rec.Missing, tag)
		}
	}
	for _, tag := range sortedKeys(tags) {
		if _, constrained := AllowedTagValues[tag]; constrained && !ValidTagValue(tag, tags[tag]) {
			if rec.Invalid == nil {
				rec.Invalid = make(map[string]string)
			}
			rec.Invalid[tag] = tags[tag]
		}
	}
	if len(rec.Missing) == 0 && len(rec.Invalid) == 0 {
		return rec, false
	}

	// the last dotted part carries the naming convention
	short := res.Name
	if dot := strings.LastIndex(short, "."); dot >= 0 {
		short = short[dot+1:]
	}
	env, center := InferEnvironment(short), InferCostCenter(short)
	if env == "" {
		env = InferEnvironment(res.Name)
	}
	if center == "" {
		center = InferCostCenter(res.Name)
	}

	for _, tag := range rec.Missing {
		switch tag {
		case TagEnvironment:
			if env != "" {
				rec.Proposed[tag] = env
			}
		case TagCostCenter:
			if center != "" {
				rec.Proposed[tag] = center
			}
		case TagOwner:
			if res.Owner != "" {
				rec.Proposed[tag] = res.Owner
			}
		}
	}
	if _, set := tags[TagDataClassification]; !set {
		rec.Proposed[TagDataClassification] = DefaultDataClassification
	}

	rec.Confidence = types.ConfidenceLow
	if env != "" && center != "" {
		rec.Confidence = types.ConfidenceHigh
	}
	rec.Action = ActionApprove
	if env == "" || len(rec.Invalid) > 0 {
		rec.Action = ActionReview
	}
	return rec, true
}
