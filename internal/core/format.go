package core

// NameResolver maps a user id to its display name.
type NameResolver interface {
	ResolveName(userID string) string
}

// NameResolverFunc adapts a function to NameResolver.
type NameResolverFunc func(userID string) string

// ResolveName calls f(userID).
func (f NameResolverFunc) ResolveName(userID string) string {
	return f(userID)
}

// Format renders the receiver-facing text of a message:
//
//	[2006-01-02 15:04:05] Alice: body   user-authored message
//	[2006-01-02 15:04:05] body          system notice
//
// The sender name is resolved once, here.
func Format(m Message, names NameResolver) string {
	prefix := "[" + m.FormattedTimestamp() + "] "
	if m.IsSystem() {
		return prefix + m.Body
	}
	return prefix + names.ResolveName(m.From) + ": " + m.Body
}
