package models

import "time"

// ComplianceStatus is the derived trading eligibility of an investor.
type ComplianceStatus string

const (
	ComplianceStatusUnverified ComplianceStatus = "unverified"
	ComplianceStatusPending    ComplianceStatus = "pending"
	ComplianceStatusCleared    ComplianceStatus = "cleared"
	ComplianceStatusRejected   ComplianceStatus = "rejected"
	ComplianceStatusSuspended  ComplianceStatus = "suspended"
)

// CheckResult is the outcome of an individual compliance check.
type CheckResult string

const (
	CheckResultPassed  CheckResult = "passed"
	CheckResultFailed  CheckResult = "failed"
	CheckResultPending CheckResult = "pending"
)

// ComplianceRecord tracks an investor's verification state. Status is the
// reduction of the individual checks, never set directly by callers;
// rejected and suspended are sticky and only leave via the explicit
// reopen/reinstate administrative transitions. Records are never deleted.
type ComplianceRecord struct {
	Base
	InvestorID       string           `gorm:"type:uuid;not null;uniqueIndex" json:"investor_id"`
	Status           ComplianceStatus `gorm:"not null;index" json:"status"`
	SuspensionReason string           `json:"suspension_reason,omitempty"`
	StatusChangedAt  time.Time        `gorm:"not null" json:"status_changed_at"`

	// Relationships
	Investor Investor          `gorm:"foreignKey:InvestorID" json:"investor,omitempty"`
	Checks   []ComplianceCheck `gorm:"foreignKey:RecordID" json:"checks,omitempty"`
}

// ComplianceCheck is one named verification result for a compliance record.
// Submitting the same check name again overwrites the previous result.
type ComplianceCheck struct {
	Base
	RecordID string      `gorm:"type:uuid;not null;uniqueIndex:idx_check_record_name" json:"record_id"`
	Name     string      `gorm:"not null;uniqueIndex:idx_check_record_name" json:"name"`
	Result   CheckResult `gorm:"not null" json:"result"`
}
