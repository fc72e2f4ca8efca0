package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"canvas-sync/internal/canvas"
	"canvas-sync/internal/docstore"
)

const credentialsField = "canvasCredentials"

// StoreResolver reads users/{owner}.canvasCredentials{url, apiKey|apiKeySealed}.
type StoreResolver struct {
	store  docstore.Store
	sealer *Sealer
	logger *zap.Logger
}

// NewStoreResolver builds a resolver. sealer may be nil, in which case only
// plain apiKey values can be read and Save stores keys unsealed.
func NewStoreResolver(store docstore.Store, sealer *Sealer, logger *zap.Logger) *StoreResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreResolver{store: store, sealer: sealer, logger: logger.Named("credentials")}
}

func UserPath(owner string) string {
	return docstore.Join("users", owner)
}

func (r *StoreResolver) Resolve(ctx context.Context, owner string) (canvas.Credentials, error) {
	if err := docstore.ValidSegment(owner); err != nil {
		return canvas.Credentials{}, needsSetup(owner, "invalid owner")
	}

	doc, err := r.store.Get(ctx, UserPath(owner))
	if errors.Is(err, docstore.ErrNotFound) {
		return canvas.Credentials{}, needsSetup(owner, "no user document")
	}
	if err != nil {
		return canvas.Credentials{}, &CredentialError{Owner: owner, Err: err}
	}

	raw, _ := doc.Data[credentialsField].(map[string]any)
	if raw == nil {
		return canvas.Credentials{}, needsSetup(owner, "no canvasCredentials field")
	}

	url, _ := raw["url"].(string)
	key, _ := raw["apiKey"].(string)
	if sealed, _ := raw["apiKeySealed"].(string); strings.TrimSpace(key) == "" && sealed != "" {
		if r.sealer == nil {
			return canvas.Credentials{}, &CredentialError{Owner: owner, Err: errors.New("sealed api key but no encryption key configured")}
		}
		key, err = r.sealer.Open(sealed)
		if err != nil {
			r.logger.Warn("cannot open sealed api key", zap.String("owner", owner), zap.Error(err))
			return canvas.Credentials{}, &CredentialError{Owner: owner, Err: err}
		}
	}

	return checked(owner, canvas.Credentials{BaseURL: url, APIKey: key})
}

// Save validates and stores credentials on the owner's user document,
// keeping the rest of the document.
func (r *StoreResolver) Save(ctx context.Context, owner string, creds canvas.Credentials) error {
	if err := docstore.ValidSegment(owner); err != nil {
		return &CredentialError{Owner: owner, Err: err}
	}
	if err := creds.Validate(); err != nil {
		return &CredentialError{Owner: owner, Err: err}
	}
	creds = creds.Normalized()

	data := map[string]any{}
	doc, err := r.store.Get(ctx, UserPath(owner))
	switch {
	case err == nil:
		data = doc.Data
	case !errors.Is(err, docstore.ErrNotFound):
		return fmt.Errorf("credentials: load user %s: %w", owner, err)
	}

	field := map[string]any{"url": creds.BaseURL}
	if r.sealer != nil {
		sealed, err := r.sealer.Seal(creds.APIKey)
		if err != nil {
			return fmt.Errorf("credentials: seal: %w", err)
		}
		field["apiKeySealed"] = sealed
	} else {
		field["apiKey"] = creds.APIKey
	}
	data[credentialsField] = field

	b := r.store.Batch()
	b.Set(UserPath(owner), data)
	if err := b.Commit(ctx); err != nil {
		return fmt.Errorf("credentials: save %s: %w", owner, err)
	}
	r.logger.Info("canvas credentials saved", zap.String("owner", owner), zap.Bool("sealed", r.sealer != nil))
	return nil
}
