package main

import (
	"net/http"

	"github.com/gigboard/backend/internal/auth"
	"github.com/gigboard/backend/internal/handlers"
	"github.com/gigboard/backend/internal/middleware"
)

// RegisterRoutes adds the /api/v1 endpoints to the given mux.
// Everything except register/login sits behind the JWT middleware.
func RegisterRoutes(
	mux *http.ServeMux,
	authHandler *auth.Handler,
	jobHandler *handlers.JobHandler,
	appHandler *handlers.ApplicationHandler,
	walletHandler *handlers.WalletHandler,
	authSvc auth.Service,
) {
	authed := middleware.JWTAuth(authSvc)

	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.Handle("GET /api/v1/auth/me", authed(http.HandlerFunc(authHandler.Me)))

	mux.Handle("POST /api/v1/jobs", authed(http.HandlerFunc(jobHandler.CreateJob)))
	mux.Handle("GET /api/v1/jobs", authed(http.HandlerFunc(jobHandler.ListJobs)))
	mux.Handle("GET /api/v1/jobs/{id}", authed(http.HandlerFunc(jobHandler.GetJob)))
	mux.Handle("GET /api/v1/jobs/{id}/transactions", authed(http.HandlerFunc(jobHandler.ListJobTransactions)))
	mux.Handle("PUT /api/v1/jobs/{id}/submit-work", authed(http.HandlerFunc(jobHandler.SubmitWork)))
	mux.Handle("PUT /api/v1/jobs/{id}/complete", authed(http.HandlerFunc(jobHandler.Complete)))
	mux.Handle("PUT /api/v1/jobs/{id}/cancel", authed(http.HandlerFunc(jobHandler.Cancel)))

	mux.Handle("POST /api/v1/jobs/{id}/applications", authed(http.HandlerFunc(appHandler.Apply)))
	mux.Handle("GET /api/v1/jobs/{id}/applications", authed(http.HandlerFunc(appHandler.ListForJob)))
	mux.Handle("GET /api/v1/applications", authed(http.HandlerFunc(appHandler.ListMine)))
	mux.Handle("PUT /api/v1/applications/{id}/accept", authed(http.HandlerFunc(appHandler.AcceptApplication)))
	mux.Handle("PUT /api/v1/applications/{id}/reject", authed(http.HandlerFunc(appHandler.RejectApplication)))

	mux.Handle("GET /api/v1/wallet", authed(http.HandlerFunc(walletHandler.GetWallet)))
	mux.Handle("GET /api/v1/wallet/transactions", authed(http.HandlerFunc(walletHandler.ListTransactions)))
	mux.Handle("POST /api/v1/wallet/topup", authed(http.HandlerFunc(walletHandler.Topup)))
}
