package repository

import "promptflow/backend/pkg/models"

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS workflows (
		id          BIGSERIAL PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS steps (
		id          BIGSERIAL PRIMARY KEY,
		workflow_id BIGINT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
		prompt      TEXT NOT NULL,
		result      TEXT,
		progress    INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS ix_steps_workflow_id ON steps (workflow_id)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS workflows (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT NOT NULL,
		description TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS steps (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		workflow_id INTEGER NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
		prompt      TEXT NOT NULL,
		result      TEXT,
		progress    INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS ix_steps_workflow_id ON steps (workflow_id)`,
}

// attachSteps distributes steps (ordered by id) onto their workflows.
func attachSteps(workflows []*models.Workflow, steps []*models.Step) {
	byID := make(map[int64]*models.Workflow, len(workflows))
	for _, w := range workflows {
		w.Steps = []*models.Step{}
		byID[w.ID] = w
	}
	for _, s := range steps {
		if w, ok := byID[s.WorkflowID]; ok {
			w.Steps = append(w.Steps, s)
		}
	}
}
