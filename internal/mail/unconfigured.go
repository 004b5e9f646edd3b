package mail

import (
	"context"
	"fmt"
)

// Unconfigured stands in for the SMTP sender when no account is set. Every
// attempt fails, so queued messages surface as failures instead of
// disappearing.
type Unconfigured struct{}

func (Unconfigured) Send(context.Context, *Message) error {
	return fmt.Errorf("email credentials not configured")
}
