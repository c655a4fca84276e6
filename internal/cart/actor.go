package cart

// Actor identifies who is acting on a cart: a signed-in user or the holder of
// a guest cart token. UserID wins when both are present.
type Actor struct {
	UserID     int64
	GuestToken string
}

func (a Actor) Authenticated() bool {
	return a.UserID > 0
}

// Kind names the actor for logs and event envelopes.
func (a Actor) Kind() string {
	if a.Authenticated() {
		return "user"
	}
	return "guest"
}
