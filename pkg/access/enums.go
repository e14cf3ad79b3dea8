package access

// Mode is the device operating mode.
type Mode int

const (
	// ModeUninitialized means no master is set (or a master swap was
	// requested). The next valid credential becomes the master.
	ModeUninitialized Mode = iota

	// ModeArmed is normal operation: members unlock, others are denied.
	ModeArmed

	// ModeAdminPending means the master unlocked once and a second master
	// swipe within the pending window enters admin mode.
	ModeAdminPending

	// ModeAdminMode means non-master swipes toggle store membership.
	ModeAdminMode
)

// String returns a human-readable name for the mode.
func (m Mode) String() string {
	switch m {
	case ModeUninitialized:
		return "Uninitialized"
	case ModeArmed:
		return "Armed"
	case ModeAdminPending:
		return "AdminPending"
	case ModeAdminMode:
		return "AdminMode"
	default:
		return "Unknown"
	}
}

// Intent is a user-visible outcome rendered by the Indicator.
type Intent int

const (
	// IntentArmed signals normal operation (entered or resumed).
	IntentArmed Intent = iota

	// IntentAdminMode signals that admin mode was entered.
	IntentAdminMode

	// IntentGrant signals an unlock.
	IntentGrant

	// IntentDeny signals a rejected credential or a failed operation.
	IntentDeny

	// IntentAdded signals a credential was added in admin mode.
	IntentAdded

	// IntentRemoved signals a credential was removed in admin mode.
	IntentRemoved

	// IntentReset signals that a button tier left the device waiting for
	// a new master.
	IntentReset
)

// String returns a human-readable name for the intent.
func (i Intent) String() string {
	switch i {
	case IntentArmed:
		return "Armed"
	case IntentAdminMode:
		return "AdminMode"
	case IntentGrant:
		return "Grant"
	case IntentDeny:
		return "Deny"
	case IntentAdded:
		return "Added"
	case IntentRemoved:
		return "Removed"
	case IntentReset:
		return "Reset"
	default:
		return "Unknown"
	}
}
