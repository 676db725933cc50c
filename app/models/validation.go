package models

// ValidationIssue points at the field that failed a check.
type ValidationIssue struct {
	Field  string `bson:"field" json:"field"`
	Reason string `bson:"reason" json:"reason"`
}

// ValidationResult is the verdict of the hierarchy validator.
type ValidationResult struct {
	IsConsistent bool              `bson:"is_consistent" json:"is_consistent"`
	Confidence   float64           `bson:"confidence" json:"confidence"`
	Issues       []ValidationIssue `bson:"issues,omitempty" json:"issues,omitempty"`
}

// HasIssue reports whether any issue references field.
func (v ValidationResult) HasIssue(field string) bool {
	for _, is := range v.Issues {
		if is.Field == field {
			return true
		}
	}
	return false
}
