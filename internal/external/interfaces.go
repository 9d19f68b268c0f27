package external

import (
	"context"

	"lexflow/internal/types"
)

// EmailProvider abstracts the transactional email vendor. Implementations
// transmit pre-rendered content (Subject, BodyHTML, BodyText) verbatim and
// return the provider's message ID for correlation.
type EmailProvider interface {
	Send(ctx context.Context, input types.SendInput) (providerMsgID string, err error)
}
