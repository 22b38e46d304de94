package main

import "net/http"

func (app *application) routes() *http.ServeMux {
	mux := http.NewServeMux()

	var (
		base = func(next http.Handler) http.Handler {
			return app.logAndTraceRequest(secureHeaders(app.crossOriginProtection(
				commonContext(app.timeout(next)))))
		}
		session = func(next http.Handler) http.Handler {
			return app.recoverPanic(noCache(app.sessionManager.LoadAndSave(
				app.sessionHandler.AuthenticateMiddleware(base(next)))))
		}
		mustSession = func(next http.Handler) http.Handler {
			return session(app.mustAuthenticate(next))
		}
	)

	mux.Handle("GET /api/healthy", session(http.HandlerFunc(app.healthy)))
	mux.Handle("POST /api/session", session(http.HandlerFunc(app.sessionPOST)))
	mux.Handle("DELETE /api/session", mustSession(http.HandlerFunc(app.sessionDELETE)))

	mux.Handle("POST /api/loads", mustSession(http.HandlerFunc(app.loadsPOST)))
	mux.Handle("GET /api/loads/trend", mustSession(http.HandlerFunc(app.loadTrendGET)))

	mux.Handle("POST /api/readiness", mustSession(http.HandlerFunc(app.readinessPOST)))
	mux.Handle("GET /api/readiness/{date}", mustSession(http.HandlerFunc(app.readinessGET)))
	mux.Handle("GET /api/baselines", mustSession(http.HandlerFunc(app.baselinesGET)))

	mux.Handle("POST /api/adjustments/evaluate", mustSession(http.HandlerFunc(app.adjustmentEvaluatePOST)))
	mux.Handle("POST /api/adjustments/{id}/dismiss", mustSession(http.HandlerFunc(app.adjustmentDismissPOST)))

	mux.Handle("GET /api/workouts/suggested", mustSession(http.HandlerFunc(app.suggestedWorkoutsGET)))
	mux.Handle("POST /api/workouts/suggested", mustSession(http.HandlerFunc(app.suggestedWorkoutsPOST)))

	mux.Handle("GET /api/settings", mustSession(http.HandlerFunc(app.settingsGET)))
	mux.Handle("PUT /api/settings", mustSession(http.HandlerFunc(app.settingsPUT)))

	mux.Handle("POST /api/chat", mustSession(http.HandlerFunc(app.chatPOST)))
	mux.Handle("GET /api/chat/history", mustSession(http.HandlerFunc(app.chatHistoryGET)))

	return mux
}
