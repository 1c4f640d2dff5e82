package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/taskflow/taskcore/internal/api/respond"
	"github.com/taskflow/taskcore/internal/api/validate"
	"github.com/taskflow/taskcore/internal/dateparse"
	"github.com/taskflow/taskcore/internal/model"
	"github.com/taskflow/taskcore/internal/services/taskcore"
)

// TaskHandler exposes the GUI-facing equivalent of the agent's tool
// surface directly over HTTP, grounded on the teacher's MemoryHandler
// (handlers_memory.go): one method per operation, mux.Vars for path
// parameters, validate.* at the edge before the service layer's own
// invariant checks run.
type TaskHandler struct {
	tasks *taskcore.Service
}

func NewTaskHandler(tasks *taskcore.Service) *TaskHandler { return &TaskHandler{tasks: tasks} }

type createTaskRequest struct {
	Title       string   `json:"title" validate:"required"`
	Description *string  `json:"description"`
	Priority    string   `json:"priority"`
	DueDate     string   `json:"dueDate"`
	RemindAt    string   `json:"remindAt"`
	Recurrence  string   `json:"recurrence"`
	Tags        []string `json:"tags"`
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	ownerID, err := resolveOwnerID(r)
	if err != nil {
		respond.WriteForbidden(w, err.Error())
		return
	}
	var in createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if err := validate.Struct(in); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := validate.Priority(in.Priority); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := validate.Recurrence(in.Recurrence); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	req := taskcore.CreateTaskInput{
		Title:       in.Title,
		Description: in.Description,
		Priority:    model.Priority(strings.ToLower(in.Priority)),
		Recurrence:  model.Recurrence(strings.ToLower(in.Recurrence)),
		Tags:        in.Tags,
	}
	now := timeNow()
	if in.DueDate != "" {
		t, err := dateparse.Parse(in.DueDate, now)
		if err != nil {
			respond.WriteBadRequest(w, "dueDate: "+err.Error())
			return
		}
		req.DueAt = &t
	}
	if in.RemindAt != "" {
		t, err := dateparse.Parse(in.RemindAt, now)
		if err != nil {
			respond.WriteBadRequest(w, "remindAt: "+err.Error())
			return
		}
		req.RemindAt = &t
	}

	task, err := h.tasks.CreateTask(r.Context(), ownerID, req)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	ownerID, err := resolveOwnerID(r)
	if err != nil {
		respond.WriteForbidden(w, err.Error())
		return
	}
	task, err := h.tasks.GetTask(r.Context(), ownerID, mux.Vars(r)["taskId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, task)
}

// ListTasks also serves as search_tasks/filter_by_*/combined_filter/sort_tasks'
// HTTP equivalent: the same query-parameter surface covers every one of
// the agent tool surface's read-side tools with a single handler.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	ownerID, err := resolveOwnerID(r)
	if err != nil {
		respond.WriteForbidden(w, err.Error())
		return
	}
	q := r.URL.Query()
	if query := q.Get("q"); query != "" {
		tasks, err := h.tasks.SearchTasks(r.Context(), ownerID, query)
		if err != nil {
			respond.WriteDomainError(w, err)
			return
		}
		respond.WriteJSON(w, http.StatusOK, tasks)
		return
	}

	filter := model.TaskFilter{SortKey: model.SortCreatedAt, SortDesc: true}
	if p := q.Get("priority"); p != "" {
		pr := model.Priority(strings.ToLower(p))
		filter.Priority = &pr
	}
	if tag := q.Get("tag"); tag != "" {
		filter.Tag = &tag
	}
	if completed := q.Get("completed"); completed != "" {
		v := completed == "true"
		filter.Completed = &v
	}
	if q.Get("overdue") == "true" {
		filter.Overdue = true
	}
	if sortBy := q.Get("sortBy"); sortBy != "" {
		filter.SortKey = model.SortKey(sortBy)
	}
	if q.Get("sortDesc") == "true" {
		filter.SortDesc = true
	} else if q.Get("sortDesc") == "false" {
		filter.SortDesc = false
	}

	tasks, err := h.tasks.ListTasks(r.Context(), ownerID, filter)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, tasks)
}

type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
	DueDate     *string `json:"dueDate"`
	Recurrence  *string `json:"recurrence"`
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	ownerID, err := resolveOwnerID(r)
	if err != nil {
		respond.WriteForbidden(w, err.Error())
		return
	}
	var in updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}

	var partial model.TaskPartial
	partial.Title = in.Title
	partial.Description = in.Description
	if in.Priority != nil {
		if err := validate.Priority(*in.Priority); err != nil {
			respond.WriteBadRequest(w, err.Error())
			return
		}
		p := model.Priority(strings.ToLower(*in.Priority))
		partial.Priority = &p
	}
	if in.Recurrence != nil {
		if err := validate.Recurrence(*in.Recurrence); err != nil {
			respond.WriteBadRequest(w, err.Error())
			return
		}
		rc := model.Recurrence(strings.ToLower(*in.Recurrence))
		partial.Recurrence = &rc
	}
	if in.DueDate != nil {
		t, err := dateparse.Parse(*in.DueDate, timeNow())
		if err != nil {
			respond.WriteBadRequest(w, "dueDate: "+err.Error())
			return
		}
		partial.DueAt = &t
	}

	task, err := h.tasks.UpdateTask(r.Context(), ownerID, mux.Vars(r)["taskId"], partial)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	ownerID, err := resolveOwnerID(r)
	if err != nil {
		respond.WriteForbidden(w, err.Error())
		return
	}
	if err := h.tasks.DeleteTask(r.Context(), ownerID, mux.Vars(r)["taskId"]); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusNoContent, nil)
}

func (h *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	ownerID, err := resolveOwnerID(r)
	if err != nil {
		respond.WriteForbidden(w, err.Error())
		return
	}
	task, err := h.tasks.ToggleComplete(r.Context(), ownerID, mux.Vars(r)["taskId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, task)
}

type tagRequest struct {
	Tag string `json:"tag" validate:"required"`
}

func (h *TaskHandler) AddTag(w http.ResponseWriter, r *http.Request) {
	ownerID, err := resolveOwnerID(r)
	if err != nil {
		respond.WriteForbidden(w, err.Error())
		return
	}
	var in tagRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if err := validate.Struct(in); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := h.tasks.AddTag(r.Context(), ownerID, mux.Vars(r)["taskId"], in.Tag); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusNoContent, nil)
}

func (h *TaskHandler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	ownerID, err := resolveOwnerID(r)
	if err != nil {
		respond.WriteForbidden(w, err.Error())
		return
	}
	vars := mux.Vars(r)
	if err := h.tasks.RemoveTag(r.Context(), ownerID, vars["taskId"], vars["tag"]); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusNoContent, nil)
}

type setReminderRequest struct {
	RemindAt string `json:"remindAt" validate:"required"`
}

func (h *TaskHandler) SetReminder(w http.ResponseWriter, r *http.Request) {
	ownerID, err := resolveOwnerID(r)
	if err != nil {
		respond.WriteForbidden(w, err.Error())
		return
	}
	var in setReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if err := validate.Struct(in); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	t, err := dateparse.Parse(in.RemindAt, timeNow())
	if err != nil {
		respond.WriteBadRequest(w, "remindAt: "+err.Error())
		return
	}
	task, err := h.tasks.SetReminder(r.Context(), ownerID, mux.Vars(r)["taskId"], t)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, task)
}
