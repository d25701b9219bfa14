package core

import "staffdesk/internal/domain/auth"

// FilterUserFields strips contact and login details that only the user
// themselves and directory administrators may see.
func FilterUserFields(user *User, viewer auth.UserContext) {
	if viewer.UserID == user.ID || auth.IsHRRole(viewer.RoleName) || auth.IsAdminRole(viewer.RoleName) {
		return
	}
	user.Email = ""
	user.StaffRef = ""
	user.LastLogin = nil
}
