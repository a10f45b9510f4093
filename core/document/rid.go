package document

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// RID is the permanent address of a record: the storage cluster it lives in and
// its position inside that cluster.
type RID struct {
	Cluster  int
	Position int64
}

// EmptyRID is the identity of a record that has not been saved yet.
var EmptyRID = RID{Cluster: -1, Position: -1}

// String returns the "#cluster:position" form of the identity.
func (r RID) String() string {
	return "#" + strconv.Itoa(r.Cluster) + ":" + strconv.FormatInt(r.Position, 10)
}

// IsValid reports whether the identity points at a cluster.
func (r RID) IsValid() bool {
	return r.Cluster >= 0
}

// IsPersistent reports whether the identity occupies a durable position.
func (r RID) IsPersistent() bool {
	return r.Cluster >= 0 && r.Position >= 0
}

// ErrInvalidRID is returned by ParseRID for malformed identities.
var ErrInvalidRID = errors.New("invalid record id")

// ParseRID parses an identity in "#cluster:position" form. The leading '#' is optional.
func ParseRID(s string) (RID, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "#")
	clusterPart, positionPart, ok := strings.Cut(raw, ":")
	if !ok {
		return EmptyRID, fmt.Errorf("%w %q", ErrInvalidRID, s)
	}

	cluster, err := strconv.Atoi(clusterPart)
	if err != nil {
		return EmptyRID, fmt.Errorf("%w %q: bad cluster: %w", ErrInvalidRID, s, err)
	}
	position, err := strconv.ParseInt(positionPart, 10, 64)
	if err != nil {
		return EmptyRID, fmt.Errorf("%w %q: bad position: %w", ErrInvalidRID, s, err)
	}

	return RID{Cluster: cluster, Position: position}, nil
}

// MustParseRID is like ParseRID but panics on malformed input.
func MustParseRID(s string) RID {
	rid, err := ParseRID(s)
	if err != nil {
		panic(err)
	}
	return rid
}

// MarshalJSON encodes the identity as its string form.
func (r RID) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes an identity from its string form.
func (r *RID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRID(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
