package controlapi

import (
	"strings"
	"time"

	"github.com/rafaeljc/bifrost/internal/experiment"
	"github.com/rafaeljc/bifrost/internal/store"
)

// Rule is the segmentation rule resource as exposed by the API.
type Rule struct {
	ID        int64     `json:"id"`
	Path      string    `json:"path"`
	Segment   int       `json:"segment"`
	VersionA  string    `json:"version_a"`
	VersionB  string    `json:"version_b"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func ruleFromStore(r *store.Rule) Rule {
	return Rule{
		ID:        r.ID,
		Path:      r.Path,
		Segment:   r.SplitThreshold,
		VersionA:  r.VariantA,
		VersionB:  r.VariantB,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// UpsertRuleRequest is the PUT /api/v1/rules payload. The field names match
// the published document. Segment is a pointer so that an omitted value is
// rejected instead of read as 0.
type UpsertRuleRequest struct {
	Path     string `json:"path"`
	Segment  *int   `json:"segment"`
	VersionA string `json:"version_a"`
	VersionB string `json:"version_b"`
}

// Sanitize trims whitespace and gives variant URIs their leading slash.
func (r *UpsertRuleRequest) Sanitize() {
	r.Path = strings.TrimSpace(r.Path)
	r.VersionA = experiment.NormalizeURI(r.VersionA)
	r.VersionB = experiment.NormalizeURI(r.VersionB)
}

// Validate checks the payload and reports every offending field.
func (r *UpsertRuleRequest) Validate() *ErrorResponse {
	var details []ErrorDetail

	if r.Segment == nil {
		details = append(details, ErrorDetail{Field: "segment", Issue: "required"})
	}
	if r.Path == "" {
		details = append(details, ErrorDetail{Field: "path", Issue: "required"})
	}

	if len(details) == 0 {
		if err := r.rule().Validate(); err != nil {
			details = append(details, ErrorDetail{Field: "rule", Issue: err.Error()})
		}
	}

	if len(details) == 0 {
		return nil
	}
	return &ErrorResponse{
		Code:    "ERR_INVALID_INPUT",
		Message: "Rule payload is invalid",
		Details: details,
	}
}

func (r *UpsertRuleRequest) rule() experiment.SegmentationRule {
	seg := 0
	if r.Segment != nil {
		seg = *r.Segment
	}
	return experiment.SegmentationRule{
		Path:           r.Path,
		SplitThreshold: seg,
		VariantA:       r.VersionA,
		VariantB:       r.VersionB,
	}
}

func (r *UpsertRuleRequest) toStore() *store.Rule {
	rule := r.rule()
	return &store.Rule{
		Path:           rule.Path,
		SplitThreshold: rule.SplitThreshold,
		VariantA:       rule.VariantA,
		VariantB:       rule.VariantB,
	}
}

// PaginatedResponse wraps list endpoints using offset pagination.
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// Pagination metadata.
type Pagination struct {
	TotalItems  int64 `json:"total_items"`
	TotalPages  int   `json:"total_pages"`
	CurrentPage int   `json:"current_page"`
	PageSize    int   `json:"page_size"`
}

// ErrorResponse represents a standard structured API error.
type ErrorResponse struct {
	// Code is a machine-readable error code (e.g., "ERR_INVALID_INPUT").
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail describes one field validation failure.
type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}
