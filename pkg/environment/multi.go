package environment

import "context"

// MultiProvider asks each provider in turn and returns the first non-empty value.
type MultiProvider struct {
	providers []Provider
}

func NewMultiProvider(providers ...Provider) *MultiProvider {
	return &MultiProvider{
		providers: providers,
	}
}

func (p *MultiProvider) Get(ctx context.Context, name string) (string, bool) {
	for _, provider := range p.providers {
		if value, found := provider.Get(ctx, name); found && value != "" {
			return value, true
		}
	}

	return "", false
}
