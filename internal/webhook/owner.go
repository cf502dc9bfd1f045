package webhook

// OwnerResolver maps an inbound dialed number to the tenant that owns it.
// Inbound webhooks are unauthenticated, so ownership has to be derived from
// the number the caller dialed.
type OwnerResolver interface {
	ResolveOwner(dialedNumber string) (string, bool)
}

// StaticOwnerResolver resolves owners from a fixed number-to-owner map
type StaticOwnerResolver struct {
	owners map[string]string
}

// NewStaticOwnerResolver creates a resolver over a dialed-number map
func NewStaticOwnerResolver(owners map[string]string) *StaticOwnerResolver {
	return &StaticOwnerResolver{owners: owners}
}

func (r *StaticOwnerResolver) ResolveOwner(dialedNumber string) (string, bool) {
	ownerID, ok := r.owners[dialedNumber]
	return ownerID, ok
}
