package domain

const (
	EventAccountRegistered = "identity.account.registered"
)
