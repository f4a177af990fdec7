package service_test

import (
	"testing"

	keymocks "github.com/abearman/mindful-sub000/keys/mocks"
	"github.com/abearman/mindful-sub000/keys/localkeys"
	"github.com/abearman/mindful-sub000/service"
	"github.com/abearman/mindful-sub000/store/memstore"
	storemocks "github.com/abearman/mindful-sub000/store/mocks"
	"go.uber.org/zap"
)

func setupService(t *testing.T) (*service.Service, *storemocks.MockObjectStore, *storemocks.MockPreferenceStore, *keymocks.MockKeyService) {
	t.Helper()
	mockObjects := new(storemocks.MockObjectStore)
	mockPrefs := new(storemocks.MockPreferenceStore)
	mockKeys := new(keymocks.MockKeyService)

	svc := service.NewService(mockObjects, mockPrefs, mockKeys, zap.NewNop())
	return svc, mockObjects, mockPrefs, mockKeys
}

// setupMemoryService wires the real pipeline over in-memory storage and an
// in-process key service.
func setupMemoryService(t *testing.T) (*service.Service, *memstore.MemoryObjectStore, *localkeys.LocalKeyService) {
	t.Helper()
	objects := memstore.NewObjectStore()
	keyService := localkeys.NewRandom()

	svc := service.NewService(objects, memstore.NewPreferenceStore(), keyService, zap.NewNop())
	return svc, objects, keyService
}
