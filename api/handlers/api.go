package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/linesmerrill/esg-identity-api/api"
	"github.com/linesmerrill/esg-identity-api/api/scheduler"
	"github.com/linesmerrill/esg-identity-api/config"
	"github.com/linesmerrill/esg-identity-api/databases"
	"github.com/linesmerrill/esg-identity-api/identities"
	"github.com/linesmerrill/esg-identity-api/invitations"
	"github.com/linesmerrill/esg-identity-api/models"
	"github.com/linesmerrill/esg-identity-api/notifications"
)

// App stores the router and the services behind it, so it can be reused
type App struct {
	Router      *mux.Router
	Config      config.Config
	Invitations InvitationService
	Identities  IdentityService
	Metrics     *api.Metrics

	client     databases.ClientHelper
	dispatcher *notifications.Dispatcher
	scheduler  *scheduler.Scheduler
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	r := mux.NewRouter()
	r.Use(api.RequestLogger)
	if a.Metrics != nil {
		r.Use(api.MetricsMiddleware(a.Metrics))
		r.Handle("/metrics", a.Metrics.Handler()).Methods("GET")
	}

	inv := Invitation{Service: a.Invitations}
	id := Identity{Service: a.Identities}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(api.TimeoutMiddleware(a.Config.RequestTimeout))

	apiCreate.HandleFunc("/admin/invitations", inv.CreateInvitationHandler).Methods("POST")
	apiCreate.HandleFunc("/admin/invitations", inv.ListInvitationsHandler).Methods("GET")
	apiCreate.HandleFunc("/admin/invitations/stats", inv.InvitationStatsHandler).Methods("GET")
	apiCreate.HandleFunc("/admin/invitations/{invitation_id}", inv.InvitationByIDHandler).Methods("GET")
	apiCreate.HandleFunc("/admin/invitations/{invitation_id}/resend", inv.ResendInvitationHandler).Methods("POST")
	apiCreate.HandleFunc("/admin/invitations/{invitation_id}/revoke", inv.RevokeInvitationHandler).Methods("POST")
	apiCreate.HandleFunc("/invitations/accept", inv.AcceptInvitationHandler).Methods("POST")

	apiCreate.HandleFunc("/admin/identities", id.ListIdentitiesHandler).Methods("GET")
	apiCreate.HandleFunc("/admin/identities/stats", id.IdentityStatsHandler).Methods("GET")
	apiCreate.HandleFunc("/admin/identities/{identity_id}", id.IdentityByIDHandler).Methods("GET")
	apiCreate.HandleFunc("/admin/identities/{identity_id}/status", id.ChangeIdentityStatusHandler).Methods("PATCH")
	apiCreate.HandleFunc("/admin/identities/{identity_id}/role", id.ChangeIdentityRoleHandler).Methods("PATCH")

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize(ctx context.Context) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = api.NewMetrics(registry)

	invitationDB, accountDBs, err := a.openStores(ctx)
	if err != nil {
		return err
	}

	var sender notifications.Sender = notifications.LogSender{}
	if a.Config.SendGridAPIKey != "" {
		sender = notifications.NewSendGridSender(a.Config.SendGridAPIKey, a.Config.MailFromName, a.Config.MailFromAddress)
	} else {
		zap.S().Warn("SENDGRID_API_KEY is not set, invitation emails will only be logged")
	}
	a.dispatcher = notifications.NewDispatcher(sender, notifications.DefaultSendTimeout, a.Metrics.ObserveNotification)

	lifecycle := invitations.New(invitationDB, a.dispatcher,
		invitations.WithAcceptURL(a.Config.AcceptURL()),
		invitations.WithDefaultExpiryDays(a.Config.InvitationExpiryDays),
		invitations.WithRecorder(a.Metrics),
	)
	a.Invitations = lifecycle
	a.Identities = identities.NewDirectory(accountDBs, identities.WithRecorder(a.Metrics))

	if a.Config.SweepSchedule != "" {
		a.scheduler = scheduler.NewScheduler(lifecycle, a.Config.SweepSchedule, a.Config.StoreTimeout)
		if err := a.scheduler.Start(); err != nil {
			return err
		}
	}

	// initialize api router
	a.initializeRoutes()
	return nil
}

func (a *App) openStores(ctx context.Context) (databases.InvitationDatabase, map[models.Role]databases.AccountDatabase, error) {
	if a.Config.InMemory() {
		zap.S().Warn("DB_URI is not set, using in-memory stores")
		return databases.NewMemoryInvitationDatabase(), databases.NewMemoryAccountDatabases(), nil
	}

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With("error", err).Error("failed to create new client")
		return nil, nil, err
	}
	if err := client.Connect(ctx); err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With("error", err).Error("failed to connect to database")
		return nil, nil, err
	}
	a.client = client
	zap.S().Info("esg-identity-api has connected to the database")

	db := databases.NewDatabase(&a.Config, client)
	invitationDB := databases.NewInvitationDatabase(db, a.Config.StoreTimeout)
	accountDBs := databases.NewAccountDatabases(db, a.Config.StoreTimeout)

	if err := invitationDB.EnsureIndexes(ctx); err != nil {
		zap.S().With("error", err).Error("failed to create invitation indexes")
		return nil, nil, err
	}
	for _, role := range models.Roles {
		if err := accountDBs[role].EnsureIndexes(ctx); err != nil {
			zap.S().With("error", err, "collection", accountDBs[role].Name()).Error("failed to create account indexes")
			return nil, nil, err
		}
	}
	return invitationDB, accountDBs, nil
}

// Shutdown stops the scheduler, waits for in-flight notifications and disconnects
func (a *App) Shutdown(ctx context.Context) {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.dispatcher != nil {
		done := make(chan struct{})
		go func() {
			a.dispatcher.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			zap.S().Warn("shutdown deadline reached with notifications still in flight")
		}
	}
	if a.client != nil {
		if err := a.client.Disconnect(ctx); err != nil {
			zap.S().With("error", err).Warn("failed to disconnect from database")
		}
	}
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
