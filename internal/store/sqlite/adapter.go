package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taskflow/taskcore/internal/model"
	"github.com/taskflow/taskcore/internal/store"
)

// SQLiteStore implements store.Store over a *sql.DB opened with Open.
type SQLiteStore struct {
	db *sql.DB
}

func New(db *sql.DB) *SQLiteStore { return &SQLiteStore{db: db} }

func (s *SQLiteStore) DB() *sql.DB { return s.db }

func (s *SQLiteStore) HealthPing(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) Users() store.Users                       { return &users{db: s.db} }
func (s *SQLiteStore) Tasks() store.Tasks                       { return &tasks{db: s.db} }
func (s *SQLiteStore) Tags() store.Tags                         { return &tags{db: s.db} }
func (s *SQLiteStore) Conversations() store.Conversations       { return &conversations{db: s.db} }
func (s *SQLiteStore) Messages() store.Messages                 { return &messages{db: s.db} }
func (s *SQLiteStore) ProcessedEvents() store.ProcessedEvents   { return &processedEvents{db: s.db} }
func (s *SQLiteStore) Outbox() store.Outbox                     { return &outboxStore{db: s.db} }

// --- Users ---

type users struct{ db *sql.DB }

func (u *users) Create(ctx context.Context, m *model.User) (*model.User, error) {
	now := time.Now().UTC()
	out := *m
	if out.UserID == "" {
		out.UserID = uuid.New().String()
	}
	out.CreationTime = now
	out.UpdateTime = now
	_, err := u.db.ExecContext(ctx, `
		INSERT INTO users (user_id, email, email_ci, password_hash, display_name, avatar_url, creation_time, update_time)
		VALUES (?,?,?,?,?,?,?,?)`,
		out.UserID, out.Email, strings.ToLower(out.Email), out.PasswordHash, out.DisplayName, out.AvatarURL, out.CreationTime, out.UpdateTime)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("email already registered: %w", model.ErrConflict)
		}
		return nil, err
	}
	return &out, nil
}

func (u *users) GetByID(ctx context.Context, userID string) (*model.User, error) {
	row := u.db.QueryRowContext(ctx, `
		SELECT user_id, email, password_hash, display_name, avatar_url, creation_time, update_time
		FROM users WHERE user_id = ?`, userID)
	return scanUser(row)
}

func (u *users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := u.db.QueryRowContext(ctx, `
		SELECT user_id, email, password_hash, display_name, avatar_url, creation_time, update_time
		FROM users WHERE email_ci = ?`, strings.ToLower(email))
	return scanUser(row)
}

func (u *users) Delete(ctx context.Context, userID string) error {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM task_tag_associations WHERE task_id IN (SELECT task_id FROM tasks WHERE owner_id=?)`, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE owner_id=?`, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE owner_id=?`, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id IN (SELECT conversation_id FROM conversations WHERE owner_id=?)`, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE owner_id=?`, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE user_id=?`, userID); err != nil {
		return err
	}
	return tx.Commit()
}

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.UserID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.AvatarURL, &u.CreationTime, &u.UpdateTime); err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// --- Tasks ---

type tasks struct{ db *sql.DB }

func (t *tasks) Create(ctx context.Context, m *model.Task) (*model.Task, error) {
	now := time.Now().UTC()
	out := *m
	if out.TaskID == "" {
		out.TaskID = uuid.New().String()
	}
	if out.Priority == "" {
		out.Priority = model.PriorityMedium
	}
	if out.Recurrence == "" {
		out.Recurrence = model.RecurrenceNone
	}
	out.CreationTime = now
	out.UpdateTime = now

	_, err := t.db.ExecContext(ctx, `
		INSERT INTO tasks (task_id, owner_id, title, description, completed, priority, due_at, remind_at, reminder_sent, recurrence, parent_task_id, creation_time, update_time)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		out.TaskID, out.OwnerID, out.Title, out.Description, boolToInt(out.Completed), string(out.Priority), out.DueAt, out.RemindAt, boolToInt(out.ReminderSent), string(out.Recurrence), out.ParentTaskID, out.CreationTime, out.UpdateTime)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *tasks) GetByID(ctx context.Context, ownerID, taskID string) (*model.Task, error) {
	row := t.db.QueryRowContext(ctx, taskSelectSQL+` WHERE task_id = ? AND owner_id = ?`, taskID, ownerID)
	task, err := scanTask(row)
	if err != nil {
		return nil, err
	}
	tagNames, err := (&tags{db: t.db}).ListForTask(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}
	task.Tags = tagNames
	return task, nil
}

const taskSelectSQL = `
	SELECT task_id, owner_id, title, description, completed, priority, due_at, remind_at, reminder_sent, recurrence, parent_task_id, creation_time, update_time
	FROM tasks`

func scanTask(row *sql.Row) (*model.Task, error) {
	var task model.Task
	var completed, reminderSent int
	if err := row.Scan(&task.TaskID, &task.OwnerID, &task.Title, &task.Description, &completed, &task.Priority, &task.DueAt, &task.RemindAt, &reminderSent, &task.Recurrence, &task.ParentTaskID, &task.CreationTime, &task.UpdateTime); err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	task.Completed = completed != 0
	task.ReminderSent = reminderSent != 0
	return &task, nil
}

func (t *tasks) List(ctx context.Context, ownerID string, filter model.TaskFilter) ([]*model.Task, error) {
	q := strings.Builder{}
	q.WriteString(taskSelectSQL)
	q.WriteString(` WHERE owner_id = ?`)
	args := []interface{}{ownerID}

	if filter.Priority != nil {
		q.WriteString(` AND priority = ?`)
		args = append(args, string(*filter.Priority))
	}
	if filter.Completed != nil {
		q.WriteString(` AND completed = ?`)
		args = append(args, boolToInt(*filter.Completed))
	}
	if filter.Overdue {
		q.WriteString(` AND due_at IS NOT NULL AND due_at < ? AND completed = 0`)
		args = append(args, time.Now().UTC())
	}
	if filter.Query != nil && *filter.Query != "" {
		q.WriteString(` AND (lower(title) LIKE ? OR lower(coalesce(description,'')) LIKE ?)`)
		like := "%" + strings.ToLower(*filter.Query) + "%"
		args = append(args, like, like)
	}
	if filter.Tag != nil && *filter.Tag != "" {
		q.WriteString(` AND task_id IN (
			SELECT tta.task_id FROM task_tag_associations tta
			JOIN tags g ON g.tag_id = tta.tag_id
			WHERE g.owner_id = ? AND g.name_ci = ?)`)
		args = append(args, ownerID, strings.ToLower(*filter.Tag))
	}

	q.WriteString(orderClause(filter))

	rows, err := t.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Task
	for rows.Next() {
		var task model.Task
		var completed, reminderSent int
		if err := rows.Scan(&task.TaskID, &task.OwnerID, &task.Title, &task.Description, &completed, &task.Priority, &task.DueAt, &task.RemindAt, &reminderSent, &task.Recurrence, &task.ParentTaskID, &task.CreationTime, &task.UpdateTime); err != nil {
			return nil, err
		}
		task.Completed = completed != 0
		task.ReminderSent = reminderSent != 0
		out = append(out, &task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Priority and title sorts collate in Go since SQLite has no native
	// CASE-free way to rank the enum or fold case portably across drivers.
	switch filter.SortKey {
	case model.SortPriority:
		sortTasks(out, filter.SortDesc, func(a, b *model.Task) bool { return a.Priority.Rank() < b.Priority.Rank() })
	case model.SortTitle:
		sortTasks(out, filter.SortDesc, func(a, b *model.Task) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) })
	}

	tg := &tags{db: t.db}
	for _, task := range out {
		names, err := tg.ListForTask(ctx, ownerID, task.TaskID)
		if err != nil {
			return nil, err
		}
		task.Tags = names
	}
	return out, nil
}

func orderClause(filter model.TaskFilter) string {
	col := "creation_time"
	switch filter.SortKey {
	case model.SortUpdatedAt:
		col = "update_time"
	case model.SortDueAt:
		col = "due_at"
	case model.SortCreatedAt, "":
		col = "creation_time"
	default:
		// priority/title sorted in Go after fetch; order by creation_time as a stable base.
		return " ORDER BY creation_time DESC"
	}
	dir := "ASC"
	if filter.SortDesc {
		dir = "DESC"
	}
	if col == "due_at" {
		// Nulls last ascending, first descending, so "no due date" never
		// looks like the most urgent task (spec §4.1).
		if filter.SortDesc {
			return fmt.Sprintf(" ORDER BY %s IS NULL DESC, %s %s", col, col, dir)
		}
		return fmt.Sprintf(" ORDER BY %s IS NULL, %s %s", col, col, dir)
	}
	return fmt.Sprintf(" ORDER BY %s %s", col, dir)
}

func sortTasks(list []*model.Task, desc bool, less func(a, b *model.Task) bool) {
	sort.SliceStable(list, func(i, j int) bool {
		if desc {
			return less(list[j], list[i])
		}
		return less(list[i], list[j])
	})
}

func (t *tasks) Update(ctx context.Context, ownerID, taskID string, partial model.TaskPartial) (*model.Task, error) {
	sets := []string{}
	args := []interface{}{}

	if partial.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *partial.Title)
	}
	if partial.ClearDesc {
		sets = append(sets, "description = NULL")
	} else if partial.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *partial.Description)
	}
	if partial.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, string(*partial.Priority))
	}
	if partial.ClearDueAt {
		sets = append(sets, "due_at = NULL")
	} else if partial.DueAt != nil {
		sets = append(sets, "due_at = ?")
		args = append(args, *partial.DueAt)
	}
	if partial.Recurrence != nil {
		sets = append(sets, "recurrence = ?")
		args = append(args, string(*partial.Recurrence))
	}
	if partial.ClearRemindAt {
		sets = append(sets, "remind_at = NULL", "reminder_sent = 0")
	} else if partial.RemindAt != nil {
		sets = append(sets, "remind_at = ?", "reminder_sent = 0")
		args = append(args, *partial.RemindAt)
	}
	if len(sets) == 0 {
		return t.GetByID(ctx, ownerID, taskID)
	}
	sets = append(sets, "update_time = ?")
	args = append(args, time.Now().UTC())
	args = append(args, taskID, ownerID)

	q := fmt.Sprintf(`UPDATE tasks SET %s WHERE task_id = ? AND owner_id = ?`, strings.Join(sets, ", "))
	res, err := t.db.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.ErrNotFound
	}
	return t.GetByID(ctx, ownerID, taskID)
}

func (t *tasks) Delete(ctx context.Context, ownerID, taskID string) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM task_tag_associations WHERE task_id = ?`, taskID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE task_id = ? AND owner_id = ?`, taskID, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return tx.Commit()
}

func (t *tasks) SetCompleted(ctx context.Context, ownerID, taskID string, completed bool) (*model.Task, error) {
	res, err := t.db.ExecContext(ctx, `UPDATE tasks SET completed = ?, update_time = ? WHERE task_id = ? AND owner_id = ?`,
		boolToInt(completed), time.Now().UTC(), taskID, ownerID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.ErrNotFound
	}
	return t.GetByID(ctx, ownerID, taskID)
}

// ClaimDueReminders uses an IMMEDIATE transaction as sqlite's skip-locked
// equivalent: sqlite serializes writers at the database level, so holding an
// IMMEDIATE lock for the claim-and-flip prevents a second concurrent
// scheduler (in this process or another) from claiming the same rows. The
// postgres adapter instead uses SELECT ... FOR UPDATE SKIP LOCKED.
func (t *tasks) ClaimDueReminders(ctx context.Context, asOf time.Time, limit int) ([]*model.Task, error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `BEGIN IMMEDIATE`); err != nil {
		// Some modernc.org/sqlite configurations already open the tx
		// non-deferred; ignore "cannot start a transaction within a transaction".
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT task_id, owner_id, title, description, completed, priority, due_at, remind_at, reminder_sent, recurrence, parent_task_id, creation_time, update_time
		FROM tasks
		WHERE remind_at IS NOT NULL AND remind_at <= ? AND reminder_sent = 0 AND completed = 0
		ORDER BY remind_at ASC
		LIMIT ?`, asOf, limit)
	if err != nil {
		return nil, err
	}
	var ids []string
	var claimed []*model.Task
	for rows.Next() {
		var task model.Task
		var completed, reminderSent int
		if err := rows.Scan(&task.TaskID, &task.OwnerID, &task.Title, &task.Description, &completed, &task.Priority, &task.DueAt, &task.RemindAt, &reminderSent, &task.Recurrence, &task.ParentTaskID, &task.CreationTime, &task.UpdateTime); err != nil {
			rows.Close()
			return nil, err
		}
		task.Completed = completed != 0
		claimed = append(claimed, &task)
		ids = append(ids, task.TaskID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, task := range claimed {
		if _, err := tx.ExecContext(ctx, `UPDATE tasks SET reminder_sent = 1, update_time = ? WHERE task_id = ?`, time.Now().UTC(), task.TaskID); err != nil {
			return nil, err
		}
		task.ReminderSent = true
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return claimed, nil
}

// --- Tags ---

type tags struct{ db *sql.DB }

func (g *tags) GetOrCreate(ctx context.Context, ownerID, name string) (*model.Tag, error) {
	nameCI := strings.ToLower(name)
	row := g.db.QueryRowContext(ctx, `SELECT tag_id, owner_id, name, creation_time FROM tags WHERE owner_id=? AND name_ci=?`, ownerID, nameCI)
	var tg model.Tag
	err := row.Scan(&tg.TagID, &tg.OwnerID, &tg.Name, &tg.CreationTime)
	if err == nil {
		return &tg, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	tg = model.Tag{TagID: uuid.New().String(), OwnerID: ownerID, Name: name, CreationTime: time.Now().UTC()}
	_, err = g.db.ExecContext(ctx, `INSERT INTO tags (tag_id, owner_id, name, name_ci, creation_time) VALUES (?,?,?,?,?)`,
		tg.TagID, tg.OwnerID, tg.Name, nameCI, tg.CreationTime)
	if err != nil {
		if isUniqueViolation(err) {
			return g.GetOrCreate(ctx, ownerID, name)
		}
		return nil, err
	}
	return &tg, nil
}

func (g *tags) AddToTask(ctx context.Context, ownerID, taskID, tagID string) error {
	_, err := g.db.ExecContext(ctx, `INSERT OR IGNORE INTO task_tag_associations (task_id, tag_id) VALUES (?,?)`, taskID, tagID)
	return err
}

func (g *tags) RemoveFromTask(ctx context.Context, ownerID, taskID, tagID string) error {
	_, err := g.db.ExecContext(ctx, `DELETE FROM task_tag_associations WHERE task_id=? AND tag_id=?`, taskID, tagID)
	return err
}

func (g *tags) ListForTask(ctx context.Context, ownerID, taskID string) ([]string, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT t.name FROM task_tag_associations a JOIN tags t ON t.tag_id = a.tag_id
		WHERE a.task_id = ? ORDER BY t.name`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// --- Conversations ---

type conversations struct{ db *sql.DB }

func (c *conversations) Create(ctx context.Context, m *model.Conversation) (*model.Conversation, error) {
	now := time.Now().UTC()
	out := *m
	if out.ConversationID == "" {
		out.ConversationID = uuid.New().String()
	}
	out.CreationTime = now
	out.UpdateTime = now
	_, err := c.db.ExecContext(ctx, `INSERT INTO conversations (conversation_id, owner_id, title, creation_time, update_time) VALUES (?,?,?,?,?)`,
		out.ConversationID, out.OwnerID, out.Title, out.CreationTime, out.UpdateTime)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *conversations) GetByID(ctx context.Context, ownerID, conversationID string) (*model.Conversation, error) {
	row := c.db.QueryRowContext(ctx, `SELECT conversation_id, owner_id, title, creation_time, update_time FROM conversations WHERE conversation_id=? AND owner_id=?`, conversationID, ownerID)
	var conv model.Conversation
	if err := row.Scan(&conv.ConversationID, &conv.OwnerID, &conv.Title, &conv.CreationTime, &conv.UpdateTime); err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &conv, nil
}

func (c *conversations) List(ctx context.Context, ownerID string) ([]*model.Conversation, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT conversation_id, owner_id, title, creation_time, update_time FROM conversations WHERE owner_id=? ORDER BY update_time DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Conversation
	for rows.Next() {
		var conv model.Conversation
		if err := rows.Scan(&conv.ConversationID, &conv.OwnerID, &conv.Title, &conv.CreationTime, &conv.UpdateTime); err != nil {
			return nil, err
		}
		out = append(out, &conv)
	}
	return out, rows.Err()
}

func (c *conversations) SetTitle(ctx context.Context, ownerID, conversationID, title string) error {
	res, err := c.db.ExecContext(ctx, `UPDATE conversations SET title=?, update_time=? WHERE conversation_id=? AND owner_id=?`,
		title, time.Now().UTC(), conversationID, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// --- Messages ---

type messages struct{ db *sql.DB }

func (m *messages) Append(ctx context.Context, msg *model.Message) (*model.Message, error) {
	out := *msg
	if out.MessageID == "" {
		out.MessageID = uuid.New().String()
	}
	out.CreationTime = time.Now().UTC()
	_, err := m.db.ExecContext(ctx, `INSERT INTO messages (message_id, conversation_id, role, content, creation_time) VALUES (?,?,?,?,?)`,
		out.MessageID, out.ConversationID, string(out.Role), out.Content, out.CreationTime)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *messages) List(ctx context.Context, conversationID string) ([]*model.Message, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT message_id, conversation_id, role, content, creation_time FROM messages WHERE conversation_id=? ORDER BY creation_time ASC, message_id ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Message
	for rows.Next() {
		var msg model.Message
		if err := rows.Scan(&msg.MessageID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.CreationTime); err != nil {
			return nil, err
		}
		out = append(out, &msg)
	}
	return out, rows.Err()
}

// --- ProcessedEvents ---

type processedEvents struct{ db *sql.DB }

func (p *processedEvents) MarkProcessed(ctx context.Context, consumer, eventID string) (bool, error) {
	_, err := p.db.ExecContext(ctx, `INSERT INTO processed_events (consumer, event_id, processed_time) VALUES (?,?,?)`,
		consumer, eventID, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// --- Outbox ---

type outboxStore struct{ db *sql.DB }

func (o *outboxStore) Enqueue(ctx context.Context, topic, eventID string, payload []byte) error {
	now := time.Now().UTC()
	_, err := o.db.ExecContext(ctx, `INSERT INTO outbox (topic, event_id, payload, status, attempt_count, next_attempt_at, creation_time, update_time)
		VALUES (?,?,?, 'pending', 0, ?, ?, ?)`, topic, eventID, payload, now, now, now)
	return err
}

// LeaseBatch claims pending rows and flips them to 'leased' inside one
// IMMEDIATE transaction, the same claim-then-flip discipline as
// ClaimDueReminders: selecting without marking would let a second poller
// select the same pending row before the first finishes processing it.
func (o *outboxStore) LeaseBatch(ctx context.Context, limit int) ([]store.OutboxRow, error) {
	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `BEGIN IMMEDIATE`); err != nil {
		// Already inside a non-deferred transaction on some driver configurations; ignore.
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT id, topic, event_id, payload FROM outbox WHERE status='pending' AND next_attempt_at <= ? ORDER BY id ASC LIMIT ?`,
		time.Now().UTC(), limit)
	if err != nil {
		return nil, err
	}
	var out []store.OutboxRow
	for rows.Next() {
		var r store.OutboxRow
		if err := rows.Scan(&r.ID, &r.Topic, &r.EventID, &r.Payload); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, r := range out {
		if _, err := tx.ExecContext(ctx, `UPDATE outbox SET status='leased', update_time=? WHERE id=?`, time.Now().UTC(), r.ID); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *outboxStore) MarkDone(ctx context.Context, id int64) error {
	_, err := o.db.ExecContext(ctx, `UPDATE outbox SET status='done', update_time=? WHERE id=?`, time.Now().UTC(), id)
	return err
}

func (o *outboxStore) MarkFailed(ctx context.Context, id int64) error {
	_, err := o.db.ExecContext(ctx, `UPDATE outbox SET status='pending', attempt_count = attempt_count + 1, next_attempt_at = ?, update_time = ? WHERE id=?`,
		time.Now().UTC().Add(30*time.Second), time.Now().UTC(), id)
	return err
}

// --- helpers ---

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}
