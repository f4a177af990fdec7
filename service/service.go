package service

import (
	"github.com/abearman/mindful-sub000/keys"
	"github.com/abearman/mindful-sub000/store"
	"go.uber.org/zap"
)

// Service runs the bookmark vault pipeline. It holds no per-user state; every
// call reads what it needs from the object store and the key service.
type Service struct {
	Objects store.ObjectStore
	Prefs   store.PreferenceStore
	Keys    keys.KeyService
	Logger  *zap.Logger
}

func NewService(
	objects store.ObjectStore,
	prefs store.PreferenceStore,
	keyService keys.KeyService,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		Objects: objects,
		Prefs:   prefs,
		Keys:    keyService,
		Logger:  logger,
	}
}
