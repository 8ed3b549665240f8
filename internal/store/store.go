package store

import (
	"context"

	"github.com/znz-systems/mailsift/internal/models"
)

// RuleSetStore keeps serialized rule sets as named rows. GetRuleSet returns
// sql.ErrNoRows when the name is unknown.
type RuleSetStore interface {
	GetRuleSet(ctx context.Context, name string) ([]byte, error)
	PutRuleSet(ctx context.Context, name string, payload []byte) error
}

type SenderActionStore interface {
	RecordAction(ctx context.Context, sender string, action models.SenderAction) error
	// BehaviorFor returns counts for the given senders. Senders with no
	// history are absent from the map.
	BehaviorFor(ctx context.Context, senders []string) (map[string]models.SenderBehavior, error)
}
