package launtel

import "errors"

var (
	// ErrAuthentication covers rejected credentials and sessions the
	// portal no longer accepts.
	ErrAuthentication = errors.New("authentication failed with the portal")
	// ErrPortalUnavailable covers transport failures and non-2xx page
	// fetches; it says nothing about the account itself.
	ErrPortalUnavailable = errors.New("portal page unavailable")
	// ErrCatalogUnusable means the plan page was fetched but is missing
	// the fields a plan change needs.
	ErrCatalogUnusable = errors.New("plan catalog page is unusable")
	// ErrPlanChange means one of the two submission steps failed; no
	// partial state is left behind.
	ErrPlanChange = errors.New("plan change submission failed")
)
