package api

import (
	"context"
	"net/http"
	"time"

	"github.com/abearman/mindful-sub000/api/auth"
	"github.com/abearman/mindful-sub000/api/cors"
	"github.com/abearman/mindful-sub000/api/rest"
	"github.com/abearman/mindful-sub000/api/ws"
	"github.com/abearman/mindful-sub000/broker"
	"github.com/abearman/mindful-sub000/keys"
	"github.com/abearman/mindful-sub000/mq"
	"github.com/abearman/mindful-sub000/service"
	"github.com/abearman/mindful-sub000/store"
	"github.com/abearman/mindful-sub000/worker"
	"go.uber.org/zap"
)

type Options struct {
	Objects    store.ObjectStore
	Prefs      store.PreferenceStore
	Keys       keys.KeyService
	Broker     broker.Broker
	PurgeQueue mq.MessageQueue // optional
	CorsPolicy cors.Policy
	JWTSecret  []byte
	JWTIssuer  string
	Timeout    time.Duration
	Logger     *zap.Logger
}

type MindfulAPI struct {
	restHandler *rest.Handler
	wsHandler   *ws.Handler
	corsPolicy  cors.Policy
	logger      *zap.Logger
	shutdownCtx context.Context
}

// NewMindfulAPI builds the service and starts its background loops, which
// stop when shutdownCtx is cancelled.
func NewMindfulAPI(opts Options, shutdownCtx context.Context) (*MindfulAPI, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	svc := service.NewService(opts.Objects, opts.Prefs, opts.Keys, logger.Named("service"))
	authenticator := auth.NewAuthenticator(opts.JWTSecret, opts.JWTIssuer)

	wsHub := ws.NewHub(opts.Broker, logger.Named("ws"))
	if err := wsHub.InitSubscriptions(shutdownCtx); err != nil {
		logger.Error("failed to start ws hub subscriptions", zap.Error(err))
		return nil, err
	}
	go wsHub.Run(shutdownCtx)

	if opts.PurgeQueue != nil {
		purgeConsumer := worker.NewPurgeConsumer(opts.PurgeQueue, svc, opts.Broker, logger.Named("purge"))
		go purgeConsumer.Run(shutdownCtx)
	}

	if opts.CorsPolicy.Unconfigured() {
		logger.Error("no CORS allow-list configured in production; every request will be refused")
	}

	return &MindfulAPI{
		restHandler: rest.NewHandler(svc, authenticator, opts.CorsPolicy, opts.Timeout, logger.Named("rest")),
		wsHandler:   ws.NewHandler(authenticator, opts.Broker, wsHub, logger.Named("ws")),
		corsPolicy:  opts.CorsPolicy,
		logger:      logger,
		shutdownCtx: shutdownCtx,
	}, nil
}

func (mindfulAPI *MindfulAPI) RestHandler() *rest.Handler {
	return mindfulAPI.restHandler
}

func (mindfulAPI *MindfulAPI) RegisterRoutes(mux *http.ServeMux) {
	// Health check endpoint (no auth required)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("/bookmarks", mindfulAPI.restHandler.HandleBookmarks)
	mux.HandleFunc("/preferences", mindfulAPI.restHandler.HandlePreferences)

	wsUpgrader := mindfulAPI.wsHandler.NewWsUpgrader(mindfulAPI.corsPolicy)
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		mindfulAPI.wsHandler.ServeWS(wsUpgrader, w, r, mindfulAPI.shutdownCtx)
	})
}

// Handler returns the routed mux wrapped in request logging.
func (mindfulAPI *MindfulAPI) Handler() http.Handler {
	mux := http.NewServeMux()
	mindfulAPI.RegisterRoutes(mux)
	return rest.RequestLogger(mindfulAPI.logger.Named("http"), mux)
}
