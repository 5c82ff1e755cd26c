package session

// Reduce returns the state that follows s after e. It is pure: s is not
// modified and the result never aliases a User held by s or e.
func Reduce(s State, e Event) State {
	next := s.Clone()

	switch ev := e.(type) {
	case AuthStart:
		next.Loading = true
		next.Error = ""
	case AuthSuccess:
		next.User = ev.User.Clone()
		next.Token = ev.Token
		next.Loading = false
		next.Error = ""
	case AuthFail:
		next.User = nil
		next.Token = ""
		next.Loading = false
		next.Error = ev.Message
	case Logout:
		next.User = nil
		next.Token = ""
		next.Loading = false
		next.Error = ""
	case ClearError:
		next.Error = ""
	case UpdateUser:
		if next.User != nil {
			merged := next.User.Merge(ev.Patch)
			next.User = &merged
		}
	default:
		return next
	}

	next.IsAuthenticated = next.User != nil && next.Token != ""
	return next
}
