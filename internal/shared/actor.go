package shared

// ActorClass separates UI-driven mutations from webhook-driven ones. Ledger
// statuses that represent confirmed money movement are reachable only by the
// webhook class.
type ActorClass string

const (
	ActorClassAdmin   ActorClass = "ADMIN"
	ActorClassWebhook ActorClass = "WEBHOOK"
	ActorClassSystem  ActorClass = "SYSTEM"
)

// Actor identifies who performs a mutation.
type Actor struct {
	ID    int64
	Name  string
	Class ActorClass
}

// IsAdmin reports whether the actor belongs to the admin class.
func (a Actor) IsAdmin() bool {
	return a.Class == ActorClassAdmin
}

// IsWebhook reports whether the actor belongs to the webhook class.
func (a Actor) IsWebhook() bool {
	return a.Class == ActorClassWebhook
}
