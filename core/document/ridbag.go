package document

import "github.com/goccy/go-json"

// RidBag is a multi-valued reference collection. Order of insertion is kept.
type RidBag struct {
	rids []RID
}

// NewRidBag creates a bag holding the given identities.
func NewRidBag(rids ...RID) *RidBag {
	bag := &RidBag{}
	bag.rids = append(bag.rids, rids...)
	return bag
}

// Add appends an identity.
func (b *RidBag) Add(rid RID) {
	b.rids = append(b.rids, rid)
}

// Len returns the number of references held.
func (b *RidBag) Len() int {
	return len(b.rids)
}

// RIDs returns a copy of the references without dereferencing them.
func (b *RidBag) RIDs() []RID {
	out := make([]RID, len(b.rids))
	copy(out, b.rids)
	return out
}

// MarshalJSON encodes the bag as a list of identity strings.
func (b *RidBag) MarshalJSON() ([]byte, error) {
	ids := make([]string, len(b.rids))
	for i, rid := range b.rids {
		ids[i] = rid.String()
	}
	return json.Marshal(ids)
}
