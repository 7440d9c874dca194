package core

// Logger is the application-wide logging contract.
// args may carry an error, a map of extra fields and an Actor.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Actor identifies the authenticated user an operation is performed for.
type Actor struct {
	ID       string
	Username string
	Email    string
}
