package shared

// Protected moderation operations. Names double as route identifiers in the
// protected_operations catalog.
const (
	OpUsersFlag       = "users.flag"
	OpUsersUnflag     = "users.unflag"
	OpUsersFlags      = "users.flags"
	OpUsersFlagStatus = "users.flagStatus"

	OpReportsRescore = "reports.rescore"

	OpJobsExpireFlags = "jobs.expireFlags"
)

// ModerationScopes lists all operations related to moderation and report scoring.
func ModerationScopes() []string {
	return []string{
		OpUsersFlag,
		OpUsersUnflag,
		OpUsersFlags,
		OpUsersFlagStatus,
		OpReportsRescore,
		OpJobsExpireFlags,
	}
}
