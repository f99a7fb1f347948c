package access

import "sanastro.app/internal/auth"

// Decision is either Forward or a redirect to Target.
type Decision struct {
	Target string
}

// Forward lets the request continue to its handler.
var Forward = Decision{}

// RedirectTo builds a redirect decision.
func RedirectTo(target string) Decision {
	return Decision{Target: target}
}

// Redirect reports whether the request must be sent elsewhere.
func (d Decision) Redirect() bool {
	return d.Target != ""
}

func (d Decision) String() string {
	if d.Redirect() {
		return "redirect:" + d.Target
	}
	return "forward"
}

// Decide applies the routing table to path for the given caller.
func Decide(path string, ac AccessContext) Decision {
	switch Classify(path) {
	case AuthRoute:
		return decideAuth(ac)
	case PublicAuthRoute:
		return Forward
	case AdminRoute:
		if ac.Anonymous() {
			return RedirectTo(LoginPath)
		}
		if !ac.IsAdmin {
			return RedirectTo(DashboardPath)
		}
		return Forward
	case ProtectedRoute:
		return decideProtected(ac)
	default:
		return Forward
	}
}

// decideAuth sends signed-in callers away from the login page to where they belong.
func decideAuth(ac AccessContext) Decision {
	if ac.Anonymous() {
		return Forward
	}
	if ac.IsAdmin {
		return RedirectTo(AdminHomePath)
	}
	switch ac.ApprovalStatus {
	case auth.StatusApproved:
		return RedirectTo(DashboardPath)
	case auth.StatusPending:
		return RedirectTo(PendingPath)
	case auth.StatusRejected:
		return RedirectTo(RejectedPath)
	}
	return Forward
}

func decideProtected(ac AccessContext) Decision {
	if ac.Anonymous() {
		return RedirectTo(LoginPath)
	}
	if ac.IsAdmin {
		return Forward
	}
	switch ac.ApprovalStatus {
	case auth.StatusApproved:
		return Forward
	case auth.StatusPending:
		return RedirectTo(PendingPath)
	case auth.StatusRejected:
		return RedirectTo(RejectedPath)
	}
	// No application record: treated as unapproved.
	return RedirectTo(LoginPath)
}
