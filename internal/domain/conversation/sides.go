package conversation

import (
	"marketplace-chat/internal/domain/user"
	market_errors "marketplace-chat/pkg/errors"

	"github.com/google/uuid"
)

// ResolveSides decides which user is the client and which the professional.
// Request order is irrelevant; exactly one side must be professional.
func ResolveSides(a, b user.User) (clientID, professionalID uuid.UUID, err error) {
	switch {
	case a.IsProfessional() && !b.IsProfessional():
		return b.ID, a.ID, nil
	case b.IsProfessional() && !a.IsProfessional():
		return a.ID, b.ID, nil
	default:
		return uuid.Nil, uuid.Nil, market_errors.ErrInvalidParticipants
	}
}
