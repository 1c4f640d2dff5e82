// Package postgres implements store.Store on PostgreSQL via the pgx stdlib
// driver. It is the production-scale counterpart to internal/store/sqlite;
// unlike sqlite it can use SELECT ... FOR UPDATE SKIP LOCKED for reminder
// and outbox claiming, giving true multi-process skip-not-block semantics.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/taskflow/taskcore/internal/model"
	"github.com/taskflow/taskcore/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Bootstrap performs a connectivity check only; schema migrations are
// expected to have been applied externally (the sqlite adapter applies
// schema.sql inline because dev/test databases are throwaway, but a
// production Postgres instance's schema is managed by migration tooling).
func Bootstrap(ctx context.Context, dsn string) error {
	if dsn == "" {
		return nil
	}
	db, err := Open(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return db.PingContext(ctx)
}

// New constructs a Postgres-backed store.Store.
func New(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Users() store.Users                     { return &users{db: s.db} }
func (s *pgStore) Tasks() store.Tasks                     { return &tasks{db: s.db} }
func (s *pgStore) Tags() store.Tags                       { return &tags{db: s.db} }
func (s *pgStore) Conversations() store.Conversations     { return &conversations{db: s.db} }
func (s *pgStore) Messages() store.Messages               { return &messages{db: s.db} }
func (s *pgStore) ProcessedEvents() store.ProcessedEvents { return &processedEvents{db: s.db} }
func (s *pgStore) Outbox() store.Outbox                   { return &outboxStore{db: s.db} }

func (s *pgStore) HealthPing(ctx context.Context) error { return s.db.PingContext(ctx) }

// --- Users ---

type users struct{ db *sql.DB }

func (u *users) Create(ctx context.Context, m *model.User) (*model.User, error) {
	out := *m
	if out.UserID == "" {
		out.UserID = uuid.New().String()
	}
	row := u.db.QueryRowContext(ctx, `
		INSERT INTO users (user_id, email, email_ci, password_hash, display_name, avatar_url, creation_time, update_time)
		VALUES ($1,$2,$3,$4,$5,$6, now(), now())
		RETURNING creation_time, update_time`,
		out.UserID, out.Email, strings.ToLower(out.Email), out.PasswordHash, out.DisplayName, out.AvatarURL)
	if err := row.Scan(&out.CreationTime, &out.UpdateTime); err != nil {
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
		FROM users WHERE user_id = $1`, userID)
	return scanUser(row)
}

func (u *users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := u.db.QueryRowContext(ctx, `
		SELECT user_id, email, password_hash, display_name, avatar_url, creation_time, update_time
		FROM users WHERE email_ci = $1`, strings.ToLower(email))
	return scanUser(row)
}

func (u *users) Delete(ctx context.Context, userID string) error {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		`DELETE FROM task_tag_associations WHERE task_id IN (SELECT task_id FROM tasks WHERE owner_id=$1)`,
		`DELETE FROM tasks WHERE owner_id=$1`,
		`DELETE FROM tags WHERE owner_id=$1`,
		`DELETE FROM messages WHERE conversation_id IN (SELECT conversation_id FROM conversations WHERE owner_id=$1)`,
		`DELETE FROM conversations WHERE owner_id=$1`,
		`DELETE FROM users WHERE user_id=$1`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, userID); err != nil {
			return err
		}
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
	row := t.db.QueryRowContext(ctx, `
		INSERT INTO tasks (task_id, owner_id, title, description, completed, priority, due_at, remind_at, reminder_sent, recurrence, parent_task_id, creation_time, update_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11, now(), now())
		RETURNING creation_time, update_time`,
		out.TaskID, out.OwnerID, out.Title, out.Description, out.Completed, string(out.Priority), out.DueAt, out.RemindAt, out.ReminderSent, string(out.Recurrence), out.ParentTaskID)
	if err := row.Scan(&out.CreationTime, &out.UpdateTime); err != nil {
		return nil, err
	}
	return &out, nil
}

const taskSelectSQL = `
	SELECT task_id, owner_id, title, description, completed, priority, due_at, remind_at, reminder_sent, recurrence, parent_task_id, creation_time, update_time
	FROM tasks`

func (t *tasks) GetByID(ctx context.Context, ownerID, taskID string) (*model.Task, error) {
	row := t.db.QueryRowContext(ctx, taskSelectSQL+` WHERE task_id = $1 AND owner_id = $2`, taskID, ownerID)
	task, err := scanTask(row)
	if err != nil {
		return nil, err
	}
	names, err := (&tags{db: t.db}).ListForTask(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}
	task.Tags = names
	return task, nil
}

func scanTask(row *sql.Row) (*model.Task, error) {
	var task model.Task
	if err := row.Scan(&task.TaskID, &task.OwnerID, &task.Title, &task.Description, &task.Completed, &task.Priority, &task.DueAt, &task.RemindAt, &task.ReminderSent, &task.Recurrence, &task.ParentTaskID, &task.CreationTime, &task.UpdateTime); err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

func (t *tasks) List(ctx context.Context, ownerID string, filter model.TaskFilter) ([]*model.Task, error) {
	q := strings.Builder{}
	q.WriteString(taskSelectSQL)
	q.WriteString(` WHERE owner_id = $1`)
	args := []interface{}{ownerID}
	next := func() string { args = append(args, nil); return fmt.Sprintf("$%d", len(args)) }

	if filter.Priority != nil {
		ph := next()
		args[len(args)-1] = string(*filter.Priority)
		q.WriteString(fmt.Sprintf(" AND priority = %s", ph))
	}
	if filter.Completed != nil {
		ph := next()
		args[len(args)-1] = *filter.Completed
		q.WriteString(fmt.Sprintf(" AND completed = %s", ph))
	}
	if filter.Overdue {
		ph := next()
		args[len(args)-1] = time.Now().UTC()
		q.WriteString(fmt.Sprintf(" AND due_at IS NOT NULL AND due_at < %s AND completed = false", ph))
	}
	if filter.Query != nil && *filter.Query != "" {
		ph1, ph2 := next(), next()
		like := "%" + strings.ToLower(*filter.Query) + "%"
		args[len(args)-2] = like
		args[len(args)-1] = like
		q.WriteString(fmt.Sprintf(" AND (lower(title) LIKE %s OR lower(coalesce(description,'')) LIKE %s)", ph1, ph2))
	}
	if filter.Tag != nil && *filter.Tag != "" {
		ph1, ph2 := next(), next()
		args[len(args)-2] = ownerID
		args[len(args)-1] = strings.ToLower(*filter.Tag)
		q.WriteString(fmt.Sprintf(` AND task_id IN (
			SELECT tta.task_id FROM task_tag_associations tta
			JOIN tags g ON g.tag_id = tta.tag_id
			WHERE g.owner_id = %s AND g.name_ci = %s)`, ph1, ph2))
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
		if err := rows.Scan(&task.TaskID, &task.OwnerID, &task.Title, &task.Description, &task.Completed, &task.Priority, &task.DueAt, &task.RemindAt, &task.ReminderSent, &task.Recurrence, &task.ParentTaskID, &task.CreationTime, &task.UpdateTime); err != nil {
			return nil, err
		}
		out = append(out, &task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

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
		return " ORDER BY creation_time DESC"
	}
	dir := "ASC"
	if filter.SortDesc {
		dir = "DESC"
	}
	if col == "due_at" {
		// NULLS LAST/FIRST is native in Postgres, unlike sqlite's IS NULL trick.
		nulls := "NULLS LAST"
		if filter.SortDesc {
			nulls = "NULLS FIRST"
		}
		return fmt.Sprintf(" ORDER BY %s %s %s", col, dir, nulls)
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
	ph := func(v interface{}) string { args = append(args, v); return fmt.Sprintf("$%d", len(args)) }

	if partial.Title != nil {
		sets = append(sets, "title = "+ph(*partial.Title))
	}
	if partial.ClearDesc {
		sets = append(sets, "description = NULL")
	} else if partial.Description != nil {
		sets = append(sets, "description = "+ph(*partial.Description))
	}
	if partial.Priority != nil {
		sets = append(sets, "priority = "+ph(string(*partial.Priority)))
	}
	if partial.ClearDueAt {
		sets = append(sets, "due_at = NULL")
	} else if partial.DueAt != nil {
		sets = append(sets, "due_at = "+ph(*partial.DueAt))
	}
	if partial.Recurrence != nil {
		sets = append(sets, "recurrence = "+ph(string(*partial.Recurrence)))
	}
	if partial.ClearRemindAt {
		sets = append(sets, "remind_at = NULL", "reminder_sent = false")
	} else if partial.RemindAt != nil {
		sets = append(sets, "remind_at = "+ph(*partial.RemindAt), "reminder_sent = false")
	}
	if len(sets) == 0 {
		return t.GetByID(ctx, ownerID, taskID)
	}
	sets = append(sets, "update_time = now()")
	q := fmt.Sprintf(`UPDATE tasks SET %s WHERE task_id = %s AND owner_id = %s`, strings.Join(sets, ", "), ph(taskID), ph(ownerID))
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

	if _, err := tx.ExecContext(ctx, `DELETE FROM task_tag_associations WHERE task_id = $1`, taskID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE task_id = $1 AND owner_id = $2`, taskID, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return tx.Commit()
}

func (t *tasks) SetCompleted(ctx context.Context, ownerID, taskID string, completed bool) (*model.Task, error) {
	res, err := t.db.ExecContext(ctx, `UPDATE tasks SET completed = $1, update_time = now() WHERE task_id = $2 AND owner_id = $3`,
		completed, taskID, ownerID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.ErrNotFound
	}
	return t.GetByID(ctx, ownerID, taskID)
}

// ClaimDueReminders uses SELECT ... FOR UPDATE SKIP LOCKED, the same
// leasing primitive the outbox worker uses for event leases: a second
// concurrent scheduler skips rows already locked by the first instead of
// blocking on them, so horizontally scaled schedulers never double-claim.
func (t *tasks) ClaimDueReminders(ctx context.Context, asOf time.Time, limit int) ([]*model.Task, error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT task_id, owner_id, title, description, completed, priority, due_at, remind_at, reminder_sent, recurrence, parent_task_id, creation_time, update_time
		FROM tasks
		WHERE remind_at IS NOT NULL AND remind_at <= $1 AND reminder_sent = false AND completed = false
		ORDER BY remind_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, asOf, limit)
	if err != nil {
		return nil, err
	}
	var claimed []*model.Task
	for rows.Next() {
		var task model.Task
		if err := rows.Scan(&task.TaskID, &task.OwnerID, &task.Title, &task.Description, &task.Completed, &task.Priority, &task.DueAt, &task.RemindAt, &task.ReminderSent, &task.Recurrence, &task.ParentTaskID, &task.CreationTime, &task.UpdateTime); err != nil {
			rows.Close()
			return nil, err
		}
		claimed = append(claimed, &task)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, task := range claimed {
		if _, err := tx.ExecContext(ctx, `UPDATE tasks SET reminder_sent = true, update_time = now() WHERE task_id = $1`, task.TaskID); err != nil {
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
	row := g.db.QueryRowContext(ctx, `SELECT tag_id, owner_id, name, creation_time FROM tags WHERE owner_id=$1 AND name_ci=$2`, ownerID, nameCI)
	var tg model.Tag
	err := row.Scan(&tg.TagID, &tg.OwnerID, &tg.Name, &tg.CreationTime)
	if err == nil {
		return &tg, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	tg = model.Tag{TagID: uuid.New().String(), OwnerID: ownerID, Name: name}
	row = g.db.QueryRowContext(ctx, `INSERT INTO tags (tag_id, owner_id, name, name_ci, creation_time) VALUES ($1,$2,$3,$4, now())
		ON CONFLICT (owner_id, name_ci) DO UPDATE SET name_ci = EXCLUDED.name_ci
		RETURNING tag_id, creation_time`, tg.TagID, tg.OwnerID, tg.Name, nameCI)
	if err := row.Scan(&tg.TagID, &tg.CreationTime); err != nil {
		return nil, err
	}
	return &tg, nil
}

func (g *tags) AddToTask(ctx context.Context, ownerID, taskID, tagID string) error {
	_, err := g.db.ExecContext(ctx, `INSERT INTO task_tag_associations (task_id, tag_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`, taskID, tagID)
	return err
}

func (g *tags) RemoveFromTask(ctx context.Context, ownerID, taskID, tagID string) error {
	_, err := g.db.ExecContext(ctx, `DELETE FROM task_tag_associations WHERE task_id=$1 AND tag_id=$2`, taskID, tagID)
	return err
}

func (g *tags) ListForTask(ctx context.Context, ownerID, taskID string) ([]string, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT t.name FROM task_tag_associations a JOIN tags t ON t.tag_id = a.tag_id
		WHERE a.task_id = $1 ORDER BY t.name`, taskID)
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
	out := *m
	if out.ConversationID == "" {
		out.ConversationID = uuid.New().String()
	}
	row := c.db.QueryRowContext(ctx, `INSERT INTO conversations (conversation_id, owner_id, title, creation_time, update_time) VALUES ($1,$2,$3, now(), now())
		RETURNING creation_time, update_time`, out.ConversationID, out.OwnerID, out.Title)
	if err := row.Scan(&out.CreationTime, &out.UpdateTime); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *conversations) GetByID(ctx context.Context, ownerID, conversationID string) (*model.Conversation, error) {
	row := c.db.QueryRowContext(ctx, `SELECT conversation_id, owner_id, title, creation_time, update_time FROM conversations WHERE conversation_id=$1 AND owner_id=$2`, conversationID, ownerID)
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
	rows, err := c.db.QueryContext(ctx, `SELECT conversation_id, owner_id, title, creation_time, update_time FROM conversations WHERE owner_id=$1 ORDER BY update_time DESC`, ownerID)
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
	res, err := c.db.ExecContext(ctx, `UPDATE conversations SET title=$1, update_time=now() WHERE conversation_id=$2 AND owner_id=$3`,
		title, conversationID, ownerID)
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
	row := m.db.QueryRowContext(ctx, `INSERT INTO messages (message_id, conversation_id, role, content, creation_time) VALUES ($1,$2,$3,$4, now())
		RETURNING creation_time`, out.MessageID, out.ConversationID, string(out.Role), out.Content)
	if err := row.Scan(&out.CreationTime); err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *messages) List(ctx context.Context, conversationID string) ([]*model.Message, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT message_id, conversation_id, role, content, creation_time FROM messages WHERE conversation_id=$1 ORDER BY creation_time ASC, message_id ASC`, conversationID)
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
	res, err := p.db.ExecContext(ctx, `INSERT INTO processed_events (consumer, event_id, processed_time) VALUES ($1,$2, now())
		ON CONFLICT (consumer, event_id) DO NOTHING`, consumer, eventID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// --- Outbox ---

type outboxStore struct{ db *sql.DB }

func (o *outboxStore) Enqueue(ctx context.Context, topic, eventID string, payload []byte) error {
	_, err := o.db.ExecContext(ctx, `INSERT INTO outbox (topic, event_id, payload, status, attempt_count, next_attempt_at, creation_time, update_time)
		VALUES ($1,$2,$3, 'pending', 0, now(), now(), now())`, topic, eventID, payload)
	return err
}

// LeaseBatch uses FOR UPDATE SKIP LOCKED, the pattern the teacher's own
// outbox worker is built on for vector-upsert events, here draining
// task/reminder events instead. The select and the leased-status flip share
// one transaction so the lock actually protects the claim: without it, the
// row lock is released the instant the SELECT's implicit transaction ends
// and a second poller could select the same pending row.
func (o *outboxStore) LeaseBatch(ctx context.Context, limit int) ([]store.OutboxRow, error) {
	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, topic, event_id, payload FROM outbox
		WHERE status='pending' AND next_attempt_at <= now()
		ORDER BY id ASC LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
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
		if _, err := tx.ExecContext(ctx, `UPDATE outbox SET status='leased', update_time=now() WHERE id=$1`, r.ID); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *outboxStore) MarkDone(ctx context.Context, id int64) error {
	_, err := o.db.ExecContext(ctx, `UPDATE outbox SET status='done', update_time=now() WHERE id=$1`, id)
	return err
}

func (o *outboxStore) MarkFailed(ctx context.Context, id int64) error {
	_, err := o.db.ExecContext(ctx, `UPDATE outbox SET status='pending', attempt_count = attempt_count + 1, next_attempt_at = now() + interval '30 seconds', update_time = now() WHERE id=$1`, id)
	return err
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "unique")
}
