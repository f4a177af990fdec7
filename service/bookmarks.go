package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/abearman/mindful-sub000/aesgcm"
	"github.com/abearman/mindful-sub000/envelope"
	"github.com/abearman/mindful-sub000/models"
	"github.com/abearman/mindful-sub000/store"
	"go.uber.org/zap"
)

const (
	contentTypeEnvelope = "application/json"
	contentTypeKey      = "application/octet-stream"
)

type SaveResult struct {
	// ContentHash is the hex SHA-256 of the stored envelope. Saves are
	// last-writer-wins; the hash is what a conditional write would key on.
	ContentHash string
}

// SaveBookmarks encrypts body under a fresh data key and stores it as a v2
// envelope. After the payload is stored, the wrapped key is also written to
// the legacy sibling object for v1 readers; that write is best-effort.
func (s *Service) SaveBookmarks(ctx context.Context, userId string, body []byte) (SaveResult, error) {
	if err := store.ValidateUserId(userId); err != nil {
		return SaveResult{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return SaveResult{}, fmt.Errorf("%w: missing request body", ErrBadRequest)
	}

	groups, err := models.ParseGroups(body)
	if err != nil {
		return SaveResult{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	plaintext, err := json.Marshal(models.StripAddNewGroup(groups))
	if err != nil {
		return SaveResult{}, fmt.Errorf("%w: marshal groups: %v", ErrInternal, err)
	}

	dataKey, err := s.Keys.GenerateDataKey(ctx, userId)
	if err != nil {
		return SaveResult{}, err
	}

	sealed, err := aesgcm.Encrypt(dataKey.Plaintext, plaintext, []byte(userId))
	if err != nil {
		return SaveResult{}, err
	}

	env, err := envelope.Encode(envelope.V2, sealed, dataKey.Wrapped)
	if err != nil {
		return SaveResult{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	raw, err := envelope.Marshal(env)
	if err != nil {
		return SaveResult{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	if err := s.Objects.Put(ctx, store.PayloadKey(userId), raw, contentTypeEnvelope); err != nil {
		return SaveResult{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	// The sibling only changes once the new payload is in place; a stored v1
	// payload still needs the old wrapped key if the payload write fails.
	if err := s.Objects.Put(ctx, store.LegacyKeyKey(userId), dataKey.Wrapped, contentTypeKey); err != nil {
		s.Logger.Warn("legacy key write failed",
			zap.String("user_id", userId),
			zap.Error(err),
		)
	}

	sum := sha256.Sum256(raw)
	return SaveResult{ContentHash: hex.EncodeToString(sum[:])}, nil
}

// LoadBookmarks returns the user's groups, or an empty slice for a user who
// has never saved.
func (s *Service) LoadBookmarks(ctx context.Context, userId string) ([]models.BookmarkGroup, error) {
	if err := store.ValidateUserId(userId); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	raw, err := s.Objects.Get(ctx, store.PayloadKey(userId))
	if errors.Is(err, store.ErrObjectNotFound) {
		return []models.BookmarkGroup{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	env, err := envelope.Unmarshal(raw)
	if err != nil {
		return nil, err
	}
	decoded, err := envelope.Decode(env)
	if err != nil {
		return nil, err
	}

	wrapped, err := s.wrappedKeyFor(ctx, userId, decoded)
	if err != nil {
		return nil, err
	}

	dataKey, err := s.Keys.UnwrapKey(ctx, wrapped, userId)
	if err != nil {
		return nil, err
	}

	// Envelopes written by this service always bind the owner as AAD. Older
	// payloads without an aad field were sealed without one.
	if decoded.AAD != nil && !bytes.Equal(decoded.AAD, []byte(userId)) {
		return nil, aesgcm.ErrAuthTagMismatch
	}

	plaintext, err := aesgcm.Decrypt(dataKey, decoded.Sealed)
	if err != nil {
		return nil, err
	}

	groups, err := models.ParseGroups(plaintext)
	if err != nil {
		s.Logger.Error("authenticated payload is not valid bookmark JSON",
			zap.String("user_id", userId),
			zap.Int("version", decoded.Version),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	return groups, nil
}

func (s *Service) wrappedKeyFor(ctx context.Context, userId string, decoded envelope.Decoded) ([]byte, error) {
	if decoded.Version == envelope.V2 {
		return decoded.EncKey, nil
	}

	wrapped, err := s.Objects.Get(ctx, store.LegacyKeyKey(userId))
	if errors.Is(err, store.ErrObjectNotFound) || (err == nil && len(wrapped) == 0) {
		s.Logger.Error("v1 payload without legacy key object", zap.String("user_id", userId))
		return nil, ErrMissingLegacyKey
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return wrapped, nil
}

// DeleteBookmarks removes the payload and the legacy key sibling. Both
// deletes are attempted regardless of the other's outcome.
func (s *Service) DeleteBookmarks(ctx context.Context, userId string) error {
	if err := store.ValidateUserId(userId); err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	payloadErr := s.deleteObject(ctx, store.PayloadKey(userId))
	siblingErr := s.deleteObject(ctx, store.LegacyKeyKey(userId))

	if err := errors.Join(payloadErr, siblingErr); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *Service) deleteObject(ctx context.Context, key string) error {
	err := s.Objects.Delete(ctx, key)
	if errors.Is(err, store.ErrObjectNotFound) {
		return nil
	}
	return err
}
