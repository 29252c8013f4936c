package knowledge

import "github.com/google/uuid"

// IDPrefix is the prefix used for generated fact ids.
const IDPrefix = "fact_"

// NewFactID generates a unique fact identifier. Ids are caller-generated by
// contract; this helper exists for callers without their own scheme.
func NewFactID() string {
	return IDPrefix + uuid.New().String()
}
