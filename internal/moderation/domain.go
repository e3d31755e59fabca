package moderation

import (
	"fmt"
	"time"
)

// FlagStatus is the lifecycle state of a flag. Transitions are one-way:
// confirmed flags expire, nothing comes back.
type FlagStatus string

const (
	FlagConfirmed FlagStatus = "confirmed"
	FlagExpired   FlagStatus = "expired"
)

// RestrictionLevel is the derived rollup written onto the user record.
type RestrictionLevel string

const (
	RestrictionNone    RestrictionLevel = "none"
	RestrictionWarning RestrictionLevel = "warning"
)

// Violation types a moderator can flag an account for.
const (
	ViolationFalseReport        = "false_report"
	ViolationPrankSpam          = "prank_spam"
	ViolationHarassment         = "harassment"
	ViolationOffensiveContent   = "offensive_content"
	ViolationImpersonation      = "impersonation"
	ViolationMultipleAccounts   = "multiple_accounts"
	ViolationSystemAbuse        = "system_abuse"
	ViolationInappropriateMedia = "inappropriate_media"
	ViolationMisleadingInfo     = "misleading_info"
	ViolationOther              = "other"
)

var violationLabels = map[string]string{
	ViolationFalseReport:        "False Report",
	ViolationPrankSpam:          "Prank/Spam",
	ViolationHarassment:         "Harassment",
	ViolationOffensiveContent:   "Offensive Content",
	ViolationImpersonation:      "Impersonation",
	ViolationMultipleAccounts:   "Multiple Accounts",
	ViolationSystemAbuse:        "System Abuse",
	ViolationInappropriateMedia: "Inappropriate Media",
	ViolationMisleadingInfo:     "Misleading Information",
	ViolationOther:              "Other Violation",
}

// Flag is one recorded violation. Rows are append-only: the sweeper flips
// status but flags are never deleted.
type Flag struct {
	ID            int64
	UserID        int64
	ReportedBy    int64
	ViolationType string
	Reason        string
	Status        FlagStatus
	DurationDays  int
	ExpiresAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Restriction is the enforced limitation tied to active flags.
type Restriction struct {
	ID        int64
	UserID    int64
	Type      string
	Reason    string
	IsActive  bool
	ExpiresAt *time.Time
	LiftedAt  *time.Time
	CreatedAt time.Time
}

// Rollup mirrors the cached summary fields on the user record. They are a
// materialized view over the flag ledger, recomputed and never hand-edited.
type Rollup struct {
	TotalFlags       int
	RestrictionLevel RestrictionLevel
}

// StatusSummary is the flag-status view the clients render.
type StatusSummary struct {
	IsFlagged   bool
	Rollup      Rollup
	Restriction *Restriction
	LatestFlag  *Flag
}

// DeriveRestrictionLevel maps an active-flag count onto a restriction level.
// The policy is intentionally coarse: any active flag means warning. A graded
// scale by count is a possible extension, not current behavior.
func DeriveRestrictionLevel(activeFlags int) RestrictionLevel {
	if activeFlags > 0 {
		return RestrictionWarning
	}
	return RestrictionNone
}

// FlaggedMessage builds the notification text sent when an account is flagged.
func FlaggedMessage(violationType string, durationDays int) string {
	label, ok := violationLabels[violationType]
	if !ok {
		label = "Violation"
	}
	msg := fmt.Sprintf("Your account has been flagged for: %s", label)
	if durationDays > 0 {
		msg += fmt.Sprintf(". A warning restriction has been applied to your account for %d day(s).", durationDays)
	}
	return msg
}

// ExpiredMessage is the notification text sent when a flag expires.
const ExpiredMessage = "Good news! Your account restriction has expired. You can now submit reports and access all features normally."

// ClearedMessage is the notification text sent when a moderator lifts all flags.
const ClearedMessage = "Your account restrictions have been removed. You can now submit reports and access all features normally."
