package domain

// Actor identifies whoever performed an activity on a platform.
// ID is the correlation key (email or platform id), Name the display name.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IsZero reports whether the actor carries no identifier.
func (a Actor) IsZero() bool {
	return a.ID == ""
}
