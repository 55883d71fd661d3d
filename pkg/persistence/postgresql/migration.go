package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Core workflow tables
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				user_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('created', 'in_progress', 'awaiting_review', 'completed', 'cancelled')),
				title VARCHAR(255) NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_user_id ON workflows(user_id);
			CREATE INDEX idx_workflows_status ON workflows(status);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);

			CREATE TABLE platform_states (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				platform VARCHAR(50) NOT NULL,
				status VARCHAR(50) NOT NULL,
				active_draft_id UUID,
				human_override BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (workflow_id, platform)
			);

			CREATE INDEX idx_platform_states_workflow_id ON platform_states(workflow_id);
			CREATE INDEX idx_platform_states_status ON platform_states(status);

			CREATE TABLE drafts (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				platform VARCHAR(50) NOT NULL,
				content TEXT NOT NULL,
				source VARCHAR(20) NOT NULL CHECK (source IN ('ai', 'human')),
				media_urls JSONB,
				media_type VARCHAR(20) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_drafts_workflow_platform ON drafts(workflow_id, platform);
		`,
		2: `
			-- Publishing job ledger
			CREATE TABLE publishing_jobs (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				platform VARCHAR(50) NOT NULL,
				draft_id UUID NOT NULL REFERENCES drafts(id),
				publish_at TIMESTAMP WITH TIME ZONE NOT NULL,
				timezone VARCHAR(64) NOT NULL DEFAULT 'UTC',
				status VARCHAR(20) NOT NULL CHECK (status IN ('pending', 'running', 'success', 'failed', 'cancelled')),
				attempts INTEGER NOT NULL DEFAULT 0,
				last_error TEXT NOT NULL DEFAULT '',
				immediate BOOLEAN NOT NULL DEFAULT false,
				external_id VARCHAR(255) NOT NULL DEFAULT '',
				post_url TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				executed_at TIMESTAMP WITH TIME ZONE,
				UNIQUE (workflow_id, platform, draft_id)
			);

			CREATE INDEX idx_publishing_jobs_workflow_id ON publishing_jobs(workflow_id);
			CREATE INDEX idx_publishing_jobs_due ON publishing_jobs(status, publish_at);
		`,
		3: `
			-- Durable workflow execution checkpoints
			CREATE TABLE checkpoints (
				workflow_id UUID PRIMARY KEY REFERENCES workflows(id) ON DELETE CASCADE,
				state JSONB NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);
		`,
	}
}
