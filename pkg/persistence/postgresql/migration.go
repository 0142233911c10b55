package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflow_definitions (
				id TEXT PRIMARY KEY,
				organization_id TEXT NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				color VARCHAR(32) NOT NULL DEFAULT '',
				is_active BOOLEAN NOT NULL DEFAULT false,
				trigger_type VARCHAR(32) NOT NULL,
				trigger_entity VARCHAR(255) NOT NULL DEFAULT '',
				trigger_config JSONB,
				default_sla_hours INT,
				version INT NOT NULL DEFAULT 1,
				created_by TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_definitions_org_updated ON workflow_definitions(organization_id, updated_at DESC);
			CREATE INDEX idx_workflow_definitions_trigger ON workflow_definitions(trigger_type) WHERE is_active;

			CREATE TABLE workflow_steps (
				id TEXT PRIMARY KEY,
				definition_id TEXT NOT NULL REFERENCES workflow_definitions(id) ON DELETE CASCADE,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				step_type VARCHAR(32) NOT NULL,
				assignee_type VARCHAR(32) NOT NULL,
				assignee_value TEXT NOT NULL DEFAULT '',
				sla_hours INT,
				step_order INT NOT NULL,
				max_revisions INT,
				condition JSONB,
				form_schema JSONB,
				UNIQUE (definition_id, step_order)
			);

			CREATE TABLE workflow_runs (
				id TEXT PRIMARY KEY,
				definition_id TEXT NOT NULL REFERENCES workflow_definitions(id) ON DELETE RESTRICT,
				organization_id TEXT NOT NULL,
				status VARCHAR(16) NOT NULL CHECK (status IN ('RUNNING', 'COMPLETED', 'CANCELLED', 'FAILED')),
				current_step_index INT NOT NULL,
				current_assignee_id TEXT,
				steps JSONB NOT NULL,
				executions JSONB NOT NULL,
				context JSONB,
				history JSONB NOT NULL,
				triggered_by_id TEXT NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				failure_reason TEXT NOT NULL DEFAULT '',
				cancel_reason TEXT NOT NULL DEFAULT '',
				version INT NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_runs_definition ON workflow_runs(definition_id, started_at DESC);
			CREATE INDEX idx_workflow_runs_assignee ON workflow_runs(current_assignee_id) WHERE status = 'RUNNING';
		`,
		2: `
			CREATE TABLE dashboards (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				organization_id TEXT NOT NULL,
				name VARCHAR(255) NOT NULL,
				is_default BOOLEAN NOT NULL DEFAULT false,
				layout JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_dashboards_owner ON dashboards(user_id, organization_id, updated_at DESC);

			-- at most one default per owner
			CREATE UNIQUE INDEX idx_dashboards_single_default ON dashboards(user_id, organization_id) WHERE is_default;
		`,
		3: `
			CREATE TABLE rotation_cursors (
				key TEXT PRIMARY KEY,
				position BIGINT NOT NULL
			);
		`,
	}
}
