package ui

// MenuHint describes a keyboard shortcut for display in the menu bar.
type MenuHint struct {
	Key         string
	Description string
	Numeric     bool // true for 0-9 shortcuts (displayed in a different color)
}

// Component is a page the app can push. Start runs when the page becomes
// visible and Stop when it is popped or covered.
type Component interface {
	Name() string
	Start()
	Stop()
	Hints() []MenuHint
}
