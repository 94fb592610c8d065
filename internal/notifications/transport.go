package notifications

import (
	"context"
	"fmt"

	"github.com/mkrogh/bookmarket-backend/pkg/logger"
)

// Email is one outbound message handed to the transport.
type Email struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Transport delivers email. Implementations must be safe for concurrent use.
type Transport interface {
	Deliver(ctx context.Context, email Email) error
}

type logTransport struct {
	logg *logger.Logger
}

// NewLogTransport returns a transport that logs instead of sending, used in
// development and as the default until a real provider is configured.
func NewLogTransport(logg *logger.Logger) (Transport, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &logTransport{logg: logg}, nil
}

func (t *logTransport) Deliver(ctx context.Context, email Email) error {
	if email.To == "" {
		return fmt.Errorf("recipient address required")
	}
	t.logg.Info(t.logg.WithFields(ctx, map[string]any{
		"to":      email.To,
		"subject": email.Subject,
	}), "email delivered (log transport)")
	return nil
}
