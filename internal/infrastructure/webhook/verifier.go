package webhook

import (
	"fmt"
	"net/http"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
)

// ProviderLookup resolves a configured provider by name.
type ProviderLookup interface {
	Get(name string) (domain.PaymentProvider, bool)
}

// Verifier is the single entry point for webhook authentication. Each
// provider carries its own scheme; callers never pick one themselves.
type Verifier struct {
	providers ProviderLookup
}

func NewVerifier(providers ProviderLookup) *Verifier {
	return &Verifier{providers: providers}
}

func (v *Verifier) Verify(provider string, headers http.Header, payload []byte) error {
	p, ok := v.providers.Get(provider)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownProvider, provider)
	}
	return p.VerifySignature(headers.Get(p.SignatureHeader()), payload)
}

// Parse must only be called after Verify accepted the same payload.
func (v *Verifier) Parse(provider string, payload []byte) (domain.WebhookEvent, error) {
	p, ok := v.providers.Get(provider)
	if !ok {
		return domain.WebhookEvent{}, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, provider)
	}
	event, err := p.ParseWebhook(payload)
	if err != nil {
		return domain.WebhookEvent{}, err
	}
	event.Provider = p.Name()
	return event, nil
}
