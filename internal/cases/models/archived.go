package models

import (
	"time"

	"github.com/google/uuid"
)

// ArchivedCase is a soft-deleted case held for restoration until ExpiresAt.
// Expiry is enforced out-of-band by the retention worker; reads never filter on it.
type ArchivedCase struct {
	ID                 uuid.UUID `json:"id"`
	OriginalCase       Case      `json:"originalCase"`
	DeletedAt          time.Time `json:"deletedAt"`
	DeletedBy          string    `json:"deletedBy"`
	OriginalCollection CaseType  `json:"originalCollection"`
	ExpiresAt          time.Time `json:"expiresAt"`
}

// NewArchivedCase snapshots c for archival.
func NewArchivedCase(c *Case, deletedBy string, now time.Time, retention time.Duration) *ArchivedCase {
	return &ArchivedCase{
		ID:                 uuid.New(),
		OriginalCase:       *c.Clone(),
		DeletedAt:          now,
		DeletedBy:          deletedBy,
		OriginalCollection: c.TypeCase,
		ExpiresAt:          now.Add(retention),
	}
}

// Expired reports whether the entry is past its retention window.
func (a *ArchivedCase) Expired(now time.Time) bool {
	return !a.ExpiresAt.After(now)
}

func (a *ArchivedCase) Clone() *ArchivedCase {
	if a == nil {
		return nil
	}
	out := *a
	out.OriginalCase = *a.OriginalCase.Clone()
	return &out
}
