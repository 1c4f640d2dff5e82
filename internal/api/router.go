// Package api wires TaskCore's authenticated HTTP surface: task CRUD, the
// chat/agent turn endpoint, registration/login, health, and the bus's
// HTTP-delivered subscription endpoints.
package api

import (
	"github.com/gorilla/mux"

	"github.com/taskflow/taskcore/internal/agent"
	"github.com/taskflow/taskcore/internal/api/middleware"
	"github.com/taskflow/taskcore/internal/api/recovery"
	"github.com/taskflow/taskcore/internal/auth"
	"github.com/taskflow/taskcore/internal/events"
	"github.com/taskflow/taskcore/internal/notify"
	"github.com/taskflow/taskcore/internal/recurrence"
	"github.com/taskflow/taskcore/internal/services/taskcore"
)

// Deps collects every service NewRouter needs to wire a handler. Grounded
// on the teacher's router.go constructing its handlers inline from a
// single storage.Storage; generalized to a struct since this domain has
// more independently-testable services than the teacher's one-store shape.
type Deps struct {
	Tasks            *taskcore.Service
	Users            *taskcore.UserService
	Conversations    *taskcore.ConversationService
	Agent            *agent.Agent
	Authorizer       auth.Authorizer
	RecurrenceWorker *recurrence.Worker
	NotifyWorker     *notify.Worker
}

func NewRouter(deps Deps) *mux.Router {
	router := mux.NewRouter()
	router.Use(recovery.Middleware)

	health := NewHealthHandler()
	router.HandleFunc("/api/health", health.CheckHealth).Methods("GET")

	authHandler := NewAuthHandler(deps.Users)
	router.HandleFunc("/api/register", authHandler.Register).Methods("POST")
	router.HandleFunc("/api/login", authHandler.Login).Methods("POST")

	authenticated := router.NewRoute().Subrouter()
	authenticated.Use(middleware.Authenticate(deps.Authorizer))

	taskHandler := NewTaskHandler(deps.Tasks)
	authenticated.HandleFunc("/api/users/{userId}/tasks", taskHandler.CreateTask).Methods("POST")
	authenticated.HandleFunc("/api/users/{userId}/tasks", taskHandler.ListTasks).Methods("GET")
	authenticated.HandleFunc("/api/users/{userId}/tasks/{taskId}", taskHandler.GetTask).Methods("GET")
	authenticated.HandleFunc("/api/users/{userId}/tasks/{taskId}", taskHandler.UpdateTask).Methods("PATCH")
	authenticated.HandleFunc("/api/users/{userId}/tasks/{taskId}", taskHandler.DeleteTask).Methods("DELETE")
	authenticated.HandleFunc("/api/users/{userId}/tasks/{taskId}/complete", taskHandler.CompleteTask).Methods("POST")
	authenticated.HandleFunc("/api/users/{userId}/tasks/{taskId}/tags", taskHandler.AddTag).Methods("POST")
	authenticated.HandleFunc("/api/users/{userId}/tasks/{taskId}/tags/{tag}", taskHandler.RemoveTag).Methods("DELETE")
	authenticated.HandleFunc("/api/users/{userId}/tasks/{taskId}/reminder", taskHandler.SetReminder).Methods("POST")

	convHandler := NewConversationHandler(deps.Conversations, deps.Agent)
	authenticated.HandleFunc("/api/users/{userId}/conversations", convHandler.CreateConversation).Methods("POST")
	authenticated.HandleFunc("/api/users/{userId}/conversations", convHandler.ListConversations).Methods("GET")
	authenticated.HandleFunc("/api/conversations/{conversationId}/messages", convHandler.ListMessages).Methods("GET")
	authenticated.HandleFunc("/api/conversations/{conversationId}/messages", convHandler.PostMessage).Methods("POST")

	// Subscription endpoints: the bus sidecar delivers one event per
	// request here. Only a service credential may call them.
	if deps.RecurrenceWorker != nil {
		taskEvents := authenticated.NewRoute().Subrouter()
		taskEvents.Use(middleware.RequireService)
		taskEvents.HandleFunc("/events/task-completed",
			NewEventDeliveryHandler(events.Handler(deps.RecurrenceWorker.HandleTaskCompleted)).Deliver,
		).Methods("POST")
	}
	if deps.NotifyWorker != nil {
		reminderEvents := authenticated.NewRoute().Subrouter()
		reminderEvents.Use(middleware.RequireService)
		reminderEvents.HandleFunc("/events/reminder-due",
			NewEventDeliveryHandler(events.Handler(deps.NotifyWorker.HandleReminderDue)).Deliver,
		).Methods("POST")
	}

	return router
}
